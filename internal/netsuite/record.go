package netsuite

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/roach88/recpurge/internal/platform"
)

// Delete removes one record. NetSuite answers 204 No Content on success.
// The type and id are each escaped into a single path segment.
func (c *Client) Delete(ctx context.Context, ref platform.Ref) (string, error) {
	if !isSegment(ref.Type) || !isSegment(ref.ID) {
		return "", fmt.Errorf("delete %s: invalid record reference", ref)
	}
	path := recordPath + "/" + url.PathEscape(ref.Type) + "/" + url.PathEscape(ref.ID)
	resp, err := c.do(ctx, http.MethodDelete, path, nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("delete %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("delete %s: %w", ref, decodeError(resp, &ref, false))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return ref.ID, nil
}

// isSegment rejects values that path cleaning would collapse or drop.
func isSegment(s string) bool {
	return s != "" && s != "." && s != ".."
}
