// Package platform defines the two host capabilities recpurge depends on.
//
// The host ERP platform exposes:
//   - A Query Service that runs a SuiteQL string and returns mapped rows
//   - A Record Service that deletes a record identified by {id, type}
//
// Both are expressed as small interfaces so the deleter can run against the
// NetSuite REST client, the SQLite sandbox, or an in-memory test double.
//
// Host failures are reported as *Error values with a Kind that callers
// classify with errors.As or the Is* helpers.
package platform
