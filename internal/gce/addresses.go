package gce

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// GetAddress fetches a static address by name. Returns a *StatusError with
// code 404 when no address of that name exists; callers probing for
// pre-existing addresses convert that with IsNotFound.
func (c *Client) GetAddress(ctx context.Context, region RegionLocator, name string) (*Address, error) {
	path := fmt.Sprintf("/projects/%s/regions/%s/addresses/%s", region.Project, region.Region, name)
	addr := &Address{}
	if err := c.do(ctx, http.MethodGet, path, nil, nil, addr); err != nil {
		return nil, err
	}
	return addr, nil
}

// InsertAddress reserves a static address in the region. Passing the
// instance's current ephemeral IP in addr.Address promotes it in place, so
// the instance keeps the address it already holds.
func (c *Client) InsertAddress(ctx context.Context, region RegionLocator, addr *Address) (*Operation, error) {
	path := fmt.Sprintf("/projects/%s/regions/%s/addresses", region.Project, region.Region)
	op := &Operation{}
	if err := c.do(ctx, http.MethodPost, path, nil, addr, op); err != nil {
		return nil, err
	}
	slog.Debug("submitted address reservation", "region", region.Region, "name", addr.Name, "address", addr.Address)
	return op, nil
}

// DeleteAddress releases a static address by name.
func (c *Client) DeleteAddress(ctx context.Context, region RegionLocator, name string) (*Operation, error) {
	path := fmt.Sprintf("/projects/%s/regions/%s/addresses/%s", region.Project, region.Region, name)
	op := &Operation{}
	if err := c.do(ctx, http.MethodDelete, path, nil, nil, op); err != nil {
		return nil, err
	}
	slog.Debug("submitted address release", "region", region.Region, "name", name)
	return op, nil
}
