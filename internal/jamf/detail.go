package jamf

import (
	"context"
	"fmt"

	"github.com/macadmin-tools/jamfkit/internal/outcome"
	"github.com/macadmin-tools/jamfkit/internal/resource"
)

// FetchDetail retrieves one resource's detail. Failures that concern only
// this resource are returned as *outcome.Skip so the caller can move on to
// the next id. Context cancellation is returned as-is.
func (c *Client) FetchDetail(ctx context.Context, ep resource.Endpoint, ref resource.Ref, cred resource.Credential) (resource.Detail, error) {
	status, body, err := c.get(ctx, ep.DetailURLPath(ref.ID), cred)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &outcome.Skip{Ref: ref, Reason: outcome.FetchFailed, Err: err}
	}
	if !isSuccess(status) {
		return nil, &outcome.Skip{
			Ref:    ref,
			Reason: outcome.Unavailable,
			Err:    fmt.Errorf("status %d: %s", status, sanitizeErrorBody(body)),
		}
	}

	detail, err := resource.DecodeDetail(body)
	if err != nil {
		return nil, &outcome.Skip{Ref: ref, Reason: outcome.DecodeFailed, Err: err}
	}
	return detail, nil
}
