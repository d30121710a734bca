package gce

import (
	"context"
	"fmt"
	"net/http"
)

// The wait endpoints block server-side until the operation completes or a
// platform-defined timeout elapses, then return the operation's current
// view. One call is one wait: if the platform times out first, the returned
// operation is not Done and the caller re-invokes.

// WaitZoneOperation waits on a zone-scoped operation.
func (c *Client) WaitZoneOperation(ctx context.Context, project, zone, name string) (*Operation, error) {
	path := fmt.Sprintf("/projects/%s/zones/%s/operations/%s/wait", project, zone, name)
	return c.waitOperation(ctx, path)
}

// WaitRegionOperation waits on a region-scoped operation.
func (c *Client) WaitRegionOperation(ctx context.Context, region RegionLocator, name string) (*Operation, error) {
	path := fmt.Sprintf("/projects/%s/regions/%s/operations/%s/wait", region.Project, region.Region, name)
	return c.waitOperation(ctx, path)
}

// WaitGlobalOperation waits on a project-global operation.
func (c *Client) WaitGlobalOperation(ctx context.Context, project, name string) (*Operation, error) {
	path := fmt.Sprintf("/projects/%s/global/operations/%s/wait", project, name)
	return c.waitOperation(ctx, path)
}

func (c *Client) waitOperation(ctx context.Context, path string) (*Operation, error) {
	op := &Operation{}
	if err := c.do(ctx, http.MethodPost, path, nil, nil, op); err != nil {
		return nil, err
	}
	if err := op.Err(); err != nil {
		return op, err
	}
	return op, nil
}

// Err surfaces the operation's embedded error list as an *OperationError.
// Only the first entry is carried; the rest are discarded.
func (o *Operation) Err() error {
	if o.Error == nil || len(o.Error.Errors) == 0 {
		return nil
	}
	first := o.Error.Errors[0]
	return &OperationError{Code: first.Code, Message: first.Message}
}
