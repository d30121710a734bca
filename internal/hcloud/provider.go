// Package hcloud is the direct-style provisioning backend: instance
// creation returns the server synchronously instead of handing back a
// long-running operation, so the only orchestration it needs is a bounded
// retry around the create call.
package hcloud

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

const (
	// createAttempts bounds the retry around server creation. The platform
	// may reject creation while a prior same-named server is still being
	// torn down server-side; the error message contains "finalizing".
	createAttempts = 10
	createRetryGap = 5000 * time.Millisecond
)

// ServerAPI is the subset of the hcloud server client used here.
type ServerAPI interface {
	Create(ctx context.Context, opts hcloud.ServerCreateOpts) (hcloud.ServerCreateResult, *hcloud.Response, error)
	GetByName(ctx context.Context, name string) (*hcloud.Server, *hcloud.Response, error)
	AllWithOpts(ctx context.Context, opts hcloud.ServerListOpts) ([]*hcloud.Server, error)
	DeleteWithResult(ctx context.Context, server *hcloud.Server) (*hcloud.ServerDeleteResult, *hcloud.Response, error)
}

// SSHKeyAPI is the subset of the hcloud SSH key client used here.
type SSHKeyAPI interface {
	Create(ctx context.Context, opts hcloud.SSHKeyCreateOpts) (*hcloud.SSHKey, *hcloud.Response, error)
	GetByName(ctx context.Context, name string) (*hcloud.SSHKey, *hcloud.Response, error)
}

// Provider provisions servers through the Hetzner Cloud API.
type Provider struct {
	servers ServerAPI
	sshKeys SSHKeyAPI

	retryGap time.Duration
}

// NewProvider creates a Provider from an API token.
func NewProvider(token string) *Provider {
	client := hcloud.NewClient(hcloud.WithToken(token))
	return &Provider{
		servers:  &client.Server,
		sshKeys:  &client.SSHKey,
		retryGap: createRetryGap,
	}
}

// NewProviderFromClients creates a Provider from pre-built clients. Used
// for testing with mocked interfaces.
func NewProviderFromClients(servers ServerAPI, sshKeys SSHKeyAPI) *Provider {
	return &Provider{
		servers:  servers,
		sshKeys:  sshKeys,
		retryGap: createRetryGap,
	}
}

// SetRetryGap overrides the delay between create attempts (used in tests).
func (p *Provider) SetRetryGap(d time.Duration) {
	p.retryGap = d
}

// InstanceSpec describes the server to create.
type InstanceSpec struct {
	ServerType string
	Image      string
	Labels     map[string]string
	UserData   string
}

// CreateInstance creates a server, retrying while the platform reports the
// name as still finalizing from a prior deletion. The attempt counter is
// shared across the whole call; once the budget is spent the last
// underlying error is returned unchanged.
func (p *Provider) CreateInstance(ctx context.Context, name, location string, keyID int64, spec InstanceSpec) (*hcloud.Server, error) {
	opts := hcloud.ServerCreateOpts{
		Name:       name,
		ServerType: &hcloud.ServerType{Name: spec.ServerType},
		Image:      &hcloud.Image{Name: spec.Image},
		Location:   &hcloud.Location{Name: location},
		SSHKeys:    []*hcloud.SSHKey{{ID: keyID}},
		Labels:     spec.Labels,
		UserData:   spec.UserData,
	}

	var lastErr error
	for attempt := 1; attempt <= createAttempts; attempt++ {
		result, _, err := p.servers.Create(ctx, opts)
		if err == nil {
			slog.Debug("created server", "name", name, "id", result.Server.ID, "attempt", attempt)
			return result.Server, nil
		}
		lastErr = err
		if !isFinalizing(err) || attempt == createAttempts {
			return nil, lastErr
		}

		slog.Debug("server name still finalizing, retrying", "name", name, "attempt", attempt)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.retryGap):
		}
	}
	return nil, lastErr
}

// EnsureSSHKey uploads the public key under the given name if it is not
// registered yet, and returns the key's ID. Idempotent.
func (p *Provider) EnsureSSHKey(ctx context.Context, name, publicKey string) (int64, error) {
	existing, _, err := p.sshKeys.GetByName(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("looking up SSH key %s: %w", name, err)
	}
	if existing != nil {
		return existing.ID, nil
	}

	key, _, err := p.sshKeys.Create(ctx, hcloud.SSHKeyCreateOpts{
		Name:      name,
		PublicKey: publicKey,
	})
	if err != nil {
		return 0, fmt.Errorf("uploading SSH key %s: %w", name, err)
	}
	slog.Debug("uploaded SSH key", "name", name, "id", key.ID)
	return key.ID, nil
}

// ListInstances returns all servers carrying the managed label.
func (p *Provider) ListInstances(ctx context.Context, labelSelector string) ([]*hcloud.Server, error) {
	servers, err := p.servers.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: labelSelector},
	})
	if err != nil {
		return nil, fmt.Errorf("listing servers: %w", err)
	}
	return servers, nil
}

// DeleteInstance deletes a server by name. A server that does not exist is
// treated as already deleted.
func (p *Provider) DeleteInstance(ctx context.Context, name string) error {
	srv, _, err := p.servers.GetByName(ctx, name)
	if err != nil {
		return fmt.Errorf("looking up server %s: %w", name, err)
	}
	if srv == nil {
		return nil
	}
	if _, _, err := p.servers.DeleteWithResult(ctx, srv); err != nil {
		if hcloud.IsError(err, hcloud.ErrorCodeNotFound) {
			return nil
		}
		return fmt.Errorf("deleting server %s: %w", name, err)
	}
	slog.Debug("deleted server", "name", name)
	return nil
}

// isFinalizing matches the transient error class the platform returns
// while a same-named resource from a prior deletion has not fully released.
func isFinalizing(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "finalizing")
}
