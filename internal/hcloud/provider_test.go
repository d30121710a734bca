package hcloud

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockServers struct {
	createFn           func(ctx context.Context, opts hcloud.ServerCreateOpts) (hcloud.ServerCreateResult, *hcloud.Response, error)
	getByNameFn        func(ctx context.Context, name string) (*hcloud.Server, *hcloud.Response, error)
	allWithOptsFn      func(ctx context.Context, opts hcloud.ServerListOpts) ([]*hcloud.Server, error)
	deleteWithResultFn func(ctx context.Context, server *hcloud.Server) (*hcloud.ServerDeleteResult, *hcloud.Response, error)
}

func (m *mockServers) Create(ctx context.Context, opts hcloud.ServerCreateOpts) (hcloud.ServerCreateResult, *hcloud.Response, error) {
	return m.createFn(ctx, opts)
}
func (m *mockServers) GetByName(ctx context.Context, name string) (*hcloud.Server, *hcloud.Response, error) {
	return m.getByNameFn(ctx, name)
}
func (m *mockServers) AllWithOpts(ctx context.Context, opts hcloud.ServerListOpts) ([]*hcloud.Server, error) {
	return m.allWithOptsFn(ctx, opts)
}
func (m *mockServers) DeleteWithResult(ctx context.Context, server *hcloud.Server) (*hcloud.ServerDeleteResult, *hcloud.Response, error) {
	return m.deleteWithResultFn(ctx, server)
}

type mockSSHKeys struct {
	createFn    func(ctx context.Context, opts hcloud.SSHKeyCreateOpts) (*hcloud.SSHKey, *hcloud.Response, error)
	getByNameFn func(ctx context.Context, name string) (*hcloud.SSHKey, *hcloud.Response, error)
}

func (m *mockSSHKeys) Create(ctx context.Context, opts hcloud.SSHKeyCreateOpts) (*hcloud.SSHKey, *hcloud.Response, error) {
	return m.createFn(ctx, opts)
}
func (m *mockSSHKeys) GetByName(ctx context.Context, name string) (*hcloud.SSHKey, *hcloud.Response, error) {
	return m.getByNameFn(ctx, name)
}

// --- Helpers ---

func newTestProvider(servers *mockServers, sshKeys *mockSSHKeys) *Provider {
	p := NewProviderFromClients(servers, sshKeys)
	p.SetRetryGap(time.Millisecond)
	return p
}

var finalizingErr = errors.New(`server name "edge-1" is still finalizing from a previous deletion`)

var testSpec = InstanceSpec{
	ServerType: "cx32",
	Image:      "ubuntu-24.04",
	Labels:     map[string]string{"strato-managed": "true"},
	UserData:   "#cloud-config\n",
}

// --- Tests ---

func TestCreateInstanceFirstAttempt(t *testing.T) {
	t.Parallel()

	servers := &mockServers{
		createFn: func(_ context.Context, opts hcloud.ServerCreateOpts) (hcloud.ServerCreateResult, *hcloud.Response, error) {
			assert.Equal(t, "edge-1", opts.Name)
			assert.Equal(t, "cx32", opts.ServerType.Name)
			assert.Equal(t, "fsn1", opts.Location.Name)
			require.Len(t, opts.SSHKeys, 1)
			assert.Equal(t, int64(42), opts.SSHKeys[0].ID)
			return hcloud.ServerCreateResult{Server: &hcloud.Server{ID: 7, Name: "edge-1"}}, nil, nil
		},
	}

	srv, err := newTestProvider(servers, nil).CreateInstance(context.Background(), "edge-1", "fsn1", 42, testSpec)
	require.NoError(t, err)
	assert.Equal(t, int64(7), srv.ID)
}

func TestCreateInstanceRetriesWhileFinalizing(t *testing.T) {
	t.Parallel()

	attempts := 0
	servers := &mockServers{
		createFn: func(context.Context, hcloud.ServerCreateOpts) (hcloud.ServerCreateResult, *hcloud.Response, error) {
			attempts++
			if attempts < 4 {
				return hcloud.ServerCreateResult{}, nil, finalizingErr
			}
			return hcloud.ServerCreateResult{Server: &hcloud.Server{ID: 7}}, nil, nil
		},
	}

	srv, err := newTestProvider(servers, nil).CreateInstance(context.Background(), "edge-1", "fsn1", 42, testSpec)
	require.NoError(t, err)
	assert.Equal(t, int64(7), srv.ID)
	assert.Equal(t, 4, attempts)
}

func TestCreateInstanceExhaustsRetryBudget(t *testing.T) {
	t.Parallel()

	attempts := 0
	servers := &mockServers{
		createFn: func(context.Context, hcloud.ServerCreateOpts) (hcloud.ServerCreateResult, *hcloud.Response, error) {
			attempts++
			return hcloud.ServerCreateResult{}, nil, finalizingErr
		},
	}

	_, err := newTestProvider(servers, nil).CreateInstance(context.Background(), "edge-1", "fsn1", 42, testSpec)
	// The last underlying error comes back unchanged, not wrapped in retry
	// bookkeeping.
	assert.Equal(t, finalizingErr, err)
	assert.Equal(t, createAttempts, attempts)
}

func TestCreateInstanceNonRetriableError(t *testing.T) {
	t.Parallel()

	boom := errors.New("invalid server type")
	attempts := 0
	servers := &mockServers{
		createFn: func(context.Context, hcloud.ServerCreateOpts) (hcloud.ServerCreateResult, *hcloud.Response, error) {
			attempts++
			return hcloud.ServerCreateResult{}, nil, boom
		},
	}

	_, err := newTestProvider(servers, nil).CreateInstance(context.Background(), "edge-1", "fsn1", 42, testSpec)
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, attempts, "only finalizing errors are retried")
}

func TestCreateInstanceContextCanceledBetweenAttempts(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	servers := &mockServers{
		createFn: func(context.Context, hcloud.ServerCreateOpts) (hcloud.ServerCreateResult, *hcloud.Response, error) {
			cancel()
			return hcloud.ServerCreateResult{}, nil, finalizingErr
		},
	}

	p := NewProviderFromClients(servers, nil)
	p.SetRetryGap(time.Hour) // cancellation must win over the gap
	_, err := p.CreateInstance(ctx, "edge-1", "fsn1", 42, testSpec)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsFinalizing(t *testing.T) {
	t.Parallel()

	assert.True(t, isFinalizing(finalizingErr))
	assert.True(t, isFinalizing(errors.New("FINALIZING")))
	assert.False(t, isFinalizing(errors.New("rate limit exceeded")))
	assert.False(t, isFinalizing(nil))
}

func TestEnsureSSHKey(t *testing.T) {
	t.Parallel()

	t.Run("already registered", func(t *testing.T) {
		t.Parallel()
		sshKeys := &mockSSHKeys{
			getByNameFn: func(_ context.Context, name string) (*hcloud.SSHKey, *hcloud.Response, error) {
				return &hcloud.SSHKey{ID: 42, Name: name}, nil, nil
			},
			createFn: func(context.Context, hcloud.SSHKeyCreateOpts) (*hcloud.SSHKey, *hcloud.Response, error) {
				t.Error("Create must not be called when the key exists")
				return nil, nil, errors.New("unexpected")
			},
		}

		id, err := newTestProvider(nil, sshKeys).EnsureSSHKey(context.Background(), "strato", "ssh-ed25519 AAAA")
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
	})

	t.Run("uploads on first use", func(t *testing.T) {
		t.Parallel()
		sshKeys := &mockSSHKeys{
			getByNameFn: func(context.Context, string) (*hcloud.SSHKey, *hcloud.Response, error) {
				return nil, nil, nil
			},
			createFn: func(_ context.Context, opts hcloud.SSHKeyCreateOpts) (*hcloud.SSHKey, *hcloud.Response, error) {
				assert.Equal(t, "strato", opts.Name)
				assert.Equal(t, "ssh-ed25519 AAAA", opts.PublicKey)
				return &hcloud.SSHKey{ID: 43}, nil, nil
			},
		}

		id, err := newTestProvider(nil, sshKeys).EnsureSSHKey(context.Background(), "strato", "ssh-ed25519 AAAA")
		require.NoError(t, err)
		assert.Equal(t, int64(43), id)
	})
}

func TestDeleteInstance(t *testing.T) {
	t.Parallel()

	t.Run("deletes existing", func(t *testing.T) {
		t.Parallel()
		deleted := false
		servers := &mockServers{
			getByNameFn: func(_ context.Context, name string) (*hcloud.Server, *hcloud.Response, error) {
				return &hcloud.Server{ID: 7, Name: name}, nil, nil
			},
			deleteWithResultFn: func(_ context.Context, srv *hcloud.Server) (*hcloud.ServerDeleteResult, *hcloud.Response, error) {
				deleted = true
				assert.Equal(t, int64(7), srv.ID)
				return &hcloud.ServerDeleteResult{}, nil, nil
			},
		}

		require.NoError(t, newTestProvider(servers, nil).DeleteInstance(context.Background(), "edge-1"))
		assert.True(t, deleted)
	})

	t.Run("absent server is already deleted", func(t *testing.T) {
		t.Parallel()
		servers := &mockServers{
			getByNameFn: func(context.Context, string) (*hcloud.Server, *hcloud.Response, error) {
				return nil, nil, nil
			},
		}

		assert.NoError(t, newTestProvider(servers, nil).DeleteInstance(context.Background(), "edge-1"))
	})

	t.Run("vanishes between lookup and delete", func(t *testing.T) {
		t.Parallel()
		servers := &mockServers{
			getByNameFn: func(_ context.Context, name string) (*hcloud.Server, *hcloud.Response, error) {
				return &hcloud.Server{ID: 7, Name: name}, nil, nil
			},
			deleteWithResultFn: func(context.Context, *hcloud.Server) (*hcloud.ServerDeleteResult, *hcloud.Response, error) {
				return nil, nil, hcloud.Error{Code: hcloud.ErrorCodeNotFound, Message: "server not found"}
			},
		}

		assert.NoError(t, newTestProvider(servers, nil).DeleteInstance(context.Background(), "edge-1"))
	})
}

func TestListInstances(t *testing.T) {
	t.Parallel()

	servers := &mockServers{
		allWithOptsFn: func(_ context.Context, opts hcloud.ServerListOpts) ([]*hcloud.Server, error) {
			assert.Equal(t, "strato-managed=true", opts.LabelSelector)
			return []*hcloud.Server{{ID: 7, Name: "edge-1"}}, nil
		},
	}

	got, err := newTestProvider(servers, nil).ListInstances(context.Background(), "strato-managed=true")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "edge-1", got[0].Name)
}

func TestListInstancesError(t *testing.T) {
	t.Parallel()

	servers := &mockServers{
		allWithOptsFn: func(context.Context, hcloud.ServerListOpts) ([]*hcloud.Server, error) {
			return nil, fmt.Errorf("rate limit exceeded")
		},
	}

	_, err := newTestProvider(servers, nil).ListInstances(context.Background(), "strato-managed=true")
	assert.ErrorContains(t, err, "rate limit exceeded")
}
