package gce

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// GuestAttributeNamespace is the attribute namespace reserved for the
// install handshake between the orchestrator and the in-guest installer.
const GuestAttributeNamespace = "strato"

// InsertInstance submits instance creation and returns the zone-scoped
// operation handle. The instance is not usable until that operation is
// waited to completion.
func (c *Client) InsertInstance(ctx context.Context, project, zone string, inst *Instance) (*Operation, error) {
	path := fmt.Sprintf("/projects/%s/zones/%s/instances", project, zone)
	op := &Operation{}
	if err := c.do(ctx, http.MethodPost, path, nil, inst, op); err != nil {
		return nil, err
	}
	slog.Debug("submitted instance creation", "project", project, "zone", zone, "name", inst.Name, "operation", op.Name)
	return op, nil
}

// GetInstance fetches the current view of an instance.
func (c *Client) GetInstance(ctx context.Context, loc InstanceLocator) (*Instance, error) {
	path := fmt.Sprintf("/projects/%s/zones/%s/instances/%s", loc.Project, loc.Zone, loc.Name)
	inst := &Instance{}
	if err := c.do(ctx, http.MethodGet, path, nil, nil, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// DeleteInstance requests instance deletion and returns the zone-scoped
// operation handle.
func (c *Client) DeleteInstance(ctx context.Context, loc InstanceLocator) (*Operation, error) {
	path := fmt.Sprintf("/projects/%s/zones/%s/instances/%s", loc.Project, loc.Zone, loc.Name)
	op := &Operation{}
	if err := c.do(ctx, http.MethodDelete, path, nil, nil, op); err != nil {
		return nil, err
	}
	slog.Debug("submitted instance deletion", "instance", loc.String(), "operation", op.Name)
	return op, nil
}

// ListInstances lists instances in a zone, optionally filtered with the
// compute filter syntax (e.g. `labels.strato-managed=true`).
func (c *Client) ListInstances(ctx context.Context, project, zone, filter string) ([]Instance, error) {
	path := fmt.Sprintf("/projects/%s/zones/%s/instances", project, zone)
	query := url.Values{}
	if filter != "" {
		query.Set("filter", filter)
	}
	list := &InstanceList{}
	if err := c.do(ctx, http.MethodGet, path, query, nil, list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// GuestAttributes fetches the key/value entries below one namespace of an
// instance's guest attributes. An absent namespace is a recoverable
// condition: nothing inside the guest has published yet, so it comes back
// as an empty map rather than an error.
func (c *Client) GuestAttributes(ctx context.Context, loc InstanceLocator, namespace string) (map[string]string, error) {
	path := fmt.Sprintf("/projects/%s/zones/%s/instances/%s/getGuestAttributes", loc.Project, loc.Zone, loc.Name)
	query := url.Values{"queryPath": {namespace + "/"}}

	var resp guestAttributesResponse
	if err := c.do(ctx, http.MethodGet, path, query, nil, &resp); err != nil {
		if IsNotFound(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}

	attrs := make(map[string]string)
	if resp.QueryValue != nil {
		for _, item := range resp.QueryValue.Items {
			attrs[item.Key] = item.Value
		}
	}
	return attrs, nil
}
