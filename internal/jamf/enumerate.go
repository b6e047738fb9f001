package jamf

import (
	"context"
	"fmt"
	"strings"

	"github.com/macadmin-tools/jamfkit/internal/resource"
)

// ListIDs lists a collection with one GET and returns a ref for every
// element under the endpoint's list key, in the order the server returned
// them. Any failure wraps ErrEnumeration: a partial id list is never
// returned.
func (c *Client) ListIDs(ctx context.Context, ep resource.Endpoint, cred resource.Credential) ([]resource.Ref, error) {
	status, body, err := c.get(ctx, ep.ListPath, cred)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %w", ErrEnumeration, ep.Collection, err)
	}
	if !isSuccess(status) {
		return nil, fmt.Errorf("%w: listing %s failed (status %d): %s", ErrEnumeration, ep.Collection, status, sanitizeErrorBody(body))
	}

	ids, err := parseIDs(body, ep.ListKey)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %w", ErrEnumeration, ep.Collection, err)
	}

	refs := make([]resource.Ref, len(ids))
	for i, id := range ids {
		refs[i] = resource.Ref{ID: id, Collection: ep.Collection}
	}

	c.logger.Info("Enumerated collection", "collection", ep.Collection, "path", ep.ListPath, "count", len(refs))
	return refs, nil
}

// parseIDs extracts the id of every element of the array at key.
func parseIDs(body []byte, key []string) ([]int, error) {
	listing, err := resource.DecodeDetail(body)
	if err != nil {
		return nil, fmt.Errorf("decoding listing: %w", err)
	}

	v, err := listing.Lookup(key...)
	if err != nil {
		return nil, err
	}
	// The classic API renders an empty collection as null.
	if v == nil {
		return []int{}, nil
	}
	elements, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s is not an array", strings.Join(key, "."))
	}

	ids := make([]int, 0, len(elements))
	for i, el := range elements {
		obj, ok := el.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not an object", strings.Join(key, "."), i)
		}
		id, ok := resource.ToInt(obj["id"])
		if !ok {
			return nil, fmt.Errorf("%s[%d] has no integer id", strings.Join(key, "."), i)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
