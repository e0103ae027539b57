// Package netsuite implements the platform services against NetSuite's
// SuiteTalk REST web services: SuiteQL for enumeration and the record
// API for deletion.
package netsuite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/recpurge/internal/platform"
)

const (
	suiteQLPath = "services/rest/query/v1/suiteql"
	recordPath  = "services/rest/record/v1"

	// MaxQueryLimit is the largest page SuiteQL REST returns per call.
	MaxQueryLimit = 1000

	defaultTimeout = 30 * time.Second
)

// Config describes how to reach one NetSuite account.
type Config struct {
	// AccountID is the NetSuite account, e.g. "1234567" or "1234567_SB1".
	AccountID string

	// BaseURL overrides the URL derived from AccountID.
	BaseURL string

	// Token is an already-issued OAuth 2.0 bearer token.
	Token string

	// QueryLimit is the page size requested from SuiteQL (1..1000).
	QueryLimit int

	// Timeout applies to each HTTP request.
	Timeout time.Duration

	// HTTPClient overrides the default client (for tests).
	HTTPClient *http.Client
}

type header struct {
	key   string
	value string
}

// Client talks to one NetSuite account. Safe for concurrent use.
type Client struct {
	base       *url.URL
	http       *http.Client
	headers    []header
	queryLimit int
}

var _ platform.Backend = (*Client)(nil)

// New creates a client from cfg.
func New(cfg Config) (*Client, error) {
	site := cfg.BaseURL
	if site == "" {
		if cfg.AccountID == "" {
			return nil, errors.New("netsuite: account id or base url is required")
		}
		site = AccountURL(cfg.AccountID)
	}
	base, err := url.Parse(site)
	if err != nil {
		return nil, fmt.Errorf("netsuite: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("netsuite: base url %q must be absolute", site)
	}
	if cfg.Token == "" {
		return nil, errors.New("netsuite: bearer token is required")
	}

	limit := cfg.QueryLimit
	if limit <= 0 || limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		base: base,
		http: hc,
		headers: []header{
			{key: "Authorization", value: "Bearer " + cfg.Token},
			{key: "Accept", value: "application/json"},
		},
		queryLimit: limit,
	}, nil
}

// AccountURL derives the REST host for an account id.
// "1234567_SB1" becomes https://1234567-sb1.suitetalk.api.netsuite.com.
func AccountURL(accountID string) string {
	host := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(accountID), "_", "-"))
	return "https://" + host + ".suitetalk.api.netsuite.com"
}

// Site returns the base URL requests are sent to.
func (c *Client) Site() *url.URL {
	return c.base
}

func (c *Client) do(ctx context.Context, method string, path string, extra []header, body []byte, query url.Values) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reader)
	if err != nil {
		return nil, err
	}
	for _, h := range c.headers {
		req.Header.Set(h.key, h.value)
	}
	for _, h := range extra {
		req.Header.Set(h.key, h.value)
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &platform.Error{Kind: platform.KindUnavailable, Message: err.Error()}
	}
	return resp, nil
}
