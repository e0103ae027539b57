package netsuite

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/roach88/recpurge/internal/platform"
)

type suiteQLRequest struct {
	Q string `json:"q"`
}

type suiteQLResponse struct {
	Items        []map[string]any `json:"items"`
	HasMore      bool             `json:"hasMore"`
	Count        int              `json:"count"`
	Offset       int              `json:"offset"`
	TotalResults int              `json:"totalResults"`
}

// RunSuiteQL runs query once, returning at most one page of rows.
// Further pages are not fetched; HasMore reports whether they exist.
func (c *Client) RunSuiteQL(ctx context.Context, query string) (*platform.QueryResult, error) {
	body, err := json.Marshal(suiteQLRequest{Q: query})
	if err != nil {
		return nil, fmt.Errorf("marshal suiteql request: %w", err)
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(c.queryLimit))
	params.Set("offset", "0")

	resp, err := c.do(ctx, http.MethodPost, suiteQLPath, []header{
		{key: "Content-Type", value: "application/json"},
		{key: "Prefer", value: "transient"},
	}, body, params)
	if err != nil {
		return nil, fmt.Errorf("suiteql: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("suiteql: %w", decodeError(resp, nil, true))
	}

	var page suiteQLResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&page); err != nil {
		return nil, fmt.Errorf("suiteql: decode response: %w", err)
	}

	result := &platform.QueryResult{
		Rows:         make([]platform.Row, 0, len(page.Items)),
		HasMore:      page.HasMore,
		TotalResults: page.TotalResults,
	}
	for _, item := range page.Items {
		delete(item, "links")
		result.Rows = append(result.Rows, platform.Row(item))
	}
	if result.TotalResults == 0 {
		result.TotalResults = len(result.Rows)
	}
	return result, nil
}
