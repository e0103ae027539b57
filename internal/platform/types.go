package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Default record type and query used when nothing else is configured.
const (
	DefaultRecordType = "customrecord_sw2022_contract_tranlines"
	DefaultQuery      = "SELECT id from " + DefaultRecordType
)

// IDColumn is the result column every enumeration row must carry.
const IDColumn = "id"

// Ref identifies a single record on the host platform.
type Ref struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

func (r Ref) String() string {
	return r.Type + "/" + r.ID
}

// Row is one mapped query result row (column name -> value).
type Row map[string]any

// QueryResult is what a single SuiteQL call returns.
type QueryResult struct {
	Rows []Row

	// HasMore is set when the host holds rows beyond this page.
	HasMore bool

	// TotalResults is the host-reported row count, or len(Rows) if unknown.
	TotalResults int
}

// QueryService runs read-only SuiteQL.
type QueryService interface {
	RunSuiteQL(ctx context.Context, query string) (*QueryResult, error)
}

// RecordService deletes records.
//
// Delete returns the id the host reports as deleted.
type RecordService interface {
	Delete(ctx context.Context, ref Ref) (string, error)
}

// Backend is a host platform offering both services.
type Backend interface {
	QueryService
	RecordService
}

// IDOf extracts the record id of a row as a normalized string.
// Returns false if the row has no usable id column.
func IDOf(row Row) (string, bool) {
	v, ok := row[IDColumn]
	if !ok || v == nil {
		return "", false
	}

	var s string
	switch val := v.(type) {
	case string:
		s = val
	case json.Number:
		s = val.String()
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case float64:
		// JSON numbers decoded without UseNumber
		if val != math.Trunc(val) || math.IsInf(val, 0) {
			s = strconv.FormatFloat(val, 'f', -1, 64)
		} else {
			s = strconv.FormatFloat(val, 'f', 0, 64)
		}
	default:
		s = fmt.Sprint(val)
	}

	s = NormalizeID(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// NormalizeID trims and NFC-normalizes an id so equal ids compare equal
// regardless of how the host encoded them.
func NormalizeID(id string) string {
	return norm.NFC.String(strings.TrimSpace(id))
}

// NormalizeType normalizes a record type script id.
// NetSuite script ids are case-insensitive and stored lower case.
func NormalizeType(recordType string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(recordType)))
}
