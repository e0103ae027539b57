package netsuite

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/roach88/recpurge/internal/platform"
)

// errorDocument is the body NetSuite returns with non-2xx responses.
type errorDocument struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Status  int    `json:"status"`
	Details []struct {
		Detail    string `json:"detail"`
		ErrorCode string `json:"o:errorCode"`
	} `json:"o:errorDetails"`
}

// decodeError turns a failed response into a *platform.Error.
// query distinguishes SuiteQL calls, where 400 means the query was rejected.
func decodeError(resp *http.Response, ref *platform.Ref, query bool) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	pe := &platform.Error{
		Status: resp.StatusCode,
		Ref:    ref,
	}

	var doc errorDocument
	if json.Unmarshal(body, &doc) == nil {
		pe.Message = doc.Title
		if len(doc.Details) > 0 {
			if doc.Details[0].Detail != "" {
				pe.Message = doc.Details[0].Detail
			}
			pe.Code = doc.Details[0].ErrorCode
		}
	}
	if pe.Message == "" {
		pe.Message = strings.TrimSpace(string(body))
	}
	if pe.Message == "" {
		pe.Message = http.StatusText(resp.StatusCode)
	}

	pe.Kind = classify(resp.StatusCode, pe.Code, query)
	return pe
}

func classify(status int, code string, query bool) platform.ErrorKind {
	switch {
	case status == http.StatusNotFound || code == "NONEXISTENT_ID":
		return platform.KindNotFound
	case status == http.StatusUnauthorized || code == "INVALID_LOGIN":
		return platform.KindUnauthorized
	case status == http.StatusForbidden || code == "INSUFFICIENT_PERMISSION":
		return platform.KindForbidden
	case status == http.StatusTooManyRequests || code == "CONCURRENCY_LIMIT_EXCEEDED":
		return platform.KindRateLimited
	case status == http.StatusBadRequest && query:
		return platform.KindInvalidQuery
	case status >= 500:
		return platform.KindUnavailable
	default:
		return platform.KindUnknown
	}
}
