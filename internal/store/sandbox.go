package store

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/recpurge/internal/platform"
)

// recordTypePattern restricts sandbox table names to NetSuite script ids.
// Type names are interpolated into SQL, so nothing else is accepted.
var recordTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Sandbox is a local stand-in for the host platform.
//
// Each record type is a table of the same name with an integer id column, so
// a SuiteQL enumeration like "SELECT id from customrecord_x" runs unmodified.
// Deleting an absent id fails with a platform not-found error, as the host does.
type Sandbox struct {
	store *Store
}

var _ platform.Backend = (*Sandbox)(nil)

// Sandbox returns the sandbox backend over this store's database.
func (s *Store) Sandbox() *Sandbox {
	return &Sandbox{store: s}
}

// EnsureType creates the table for a record type if it doesn't exist.
func (sb *Sandbox) EnsureType(ctx context.Context, recordType string) error {
	table, err := sandboxTable(recordType)
	if err != nil {
		return err
	}
	_, err = sb.store.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			name    TEXT NOT NULL DEFAULT '',
			created TEXT NOT NULL DEFAULT (strftime('%%Y-%%m-%%dT%%H:%%M:%%fZ', 'now'))
		)
	`, table))
	if err != nil {
		return fmt.Errorf("ensure sandbox type %s: %w", table, err)
	}
	return nil
}

// Seed inserts count new records of recordType and returns their ids.
func (sb *Sandbox) Seed(ctx context.Context, recordType string, count int) ([]string, error) {
	if count < 0 {
		return nil, fmt.Errorf("seed count must be >= 0, got %d", count)
	}
	if err := sb.EnsureType(ctx, recordType); err != nil {
		return nil, err
	}
	table, _ := sandboxTable(recordType)

	tx, err := sb.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("seed: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (name) VALUES (?)`, table))
	if err != nil {
		return nil, fmt.Errorf("seed: prepare: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		res, err := stmt.ExecContext(ctx, fmt.Sprintf("sandbox line %d", i+1))
		if err != nil {
			return nil, fmt.Errorf("seed: insert: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("seed: last insert id: %w", err)
		}
		ids = append(ids, strconv.FormatInt(id, 10))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("seed: commit: %w", err)
	}
	return ids, nil
}

// Count returns the number of live records of recordType.
// A type that was never created has zero records.
func (sb *Sandbox) Count(ctx context.Context, recordType string) (int, error) {
	table, err := sandboxTable(recordType)
	if err != nil {
		return 0, err
	}
	exists, err := sb.tableExists(ctx, table)
	if err != nil || !exists {
		return 0, err
	}

	var n int
	if err := sb.store.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// RunSuiteQL executes a read-only query against the sandbox tables.
// Column names are lower-cased, matching SuiteQL's mapped results.
func (sb *Sandbox) RunSuiteQL(ctx context.Context, query string) (*platform.QueryResult, error) {
	if !isReadOnly(query) {
		return nil, &platform.Error{
			Kind:    platform.KindInvalidQuery,
			Message: "sandbox accepts SELECT statements only",
		}
	}

	rows, err := sb.store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &platform.Error{Kind: platform.KindInvalidQuery, Message: err.Error()}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sandbox columns: %w", err)
	}
	for i, c := range cols {
		cols[i] = strings.ToLower(c)
	}

	result := &platform.QueryResult{Rows: []platform.Row{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sandbox scan: %w", err)
		}

		row := make(platform.Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sandbox iterate: %w", err)
	}

	result.TotalResults = len(result.Rows)
	return result, nil
}

// Delete removes one record. Returns the deleted id.
func (sb *Sandbox) Delete(ctx context.Context, ref platform.Ref) (string, error) {
	table, err := sandboxTable(ref.Type)
	if err != nil {
		return "", err
	}
	exists, err := sb.tableExists(ctx, table)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", &platform.Error{
			Kind:    platform.KindInvalidQuery,
			Code:    "INVALID_RCRD_TYPE",
			Message: fmt.Sprintf("record type %s does not exist", table),
			Ref:     &ref,
		}
	}

	res, err := sb.store.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), ref.ID)
	if err != nil {
		return "", fmt.Errorf("sandbox delete %s: %w", ref, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("sandbox delete %s: %w", ref, err)
	}
	if n == 0 {
		return "", platform.NotFound(ref)
	}
	return ref.ID, nil
}

func (sb *Sandbox) tableExists(ctx context.Context, table string) (bool, error) {
	var n int
	err := sb.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup table %s: %w", table, err)
	}
	return n > 0, nil
}

// sandboxTable validates a record type and returns its table name.
func sandboxTable(recordType string) (string, error) {
	table := platform.NormalizeType(recordType)
	if !recordTypePattern.MatchString(table) {
		return "", fmt.Errorf("invalid record type %q: must match %s", recordType, recordTypePattern)
	}
	if table == "runs" || table == "outcomes" || strings.HasPrefix(table, "sqlite_") {
		return "", fmt.Errorf("invalid record type %q: reserved name", recordType)
	}
	return table, nil
}

func isReadOnly(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(q, "SELECT") && !strings.Contains(q, ";")
}
