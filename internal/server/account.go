package server

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/stratohq/strato/internal/gce"
	"github.com/stratohq/strato/internal/install"
)

const (
	// ManagedLabel tags instances provisioned by strato so listing can
	// tell them apart from everything else in the project.
	ManagedLabel = "strato-managed"

	// userDataKey is the metadata key cloud-init reads the rendered
	// cloud-config from.
	userDataKey = "user-data"

	// guestAttributesKey must be TRUE for the guest to be allowed to
	// publish the install handshake.
	guestAttributesKey = "enable-guest-attributes"
)

// API is the compute surface an account and its server handles drive.
// *gce.Client satisfies it.
type API interface {
	install.API
	InsertInstance(ctx context.Context, project, zone string, inst *gce.Instance) (*gce.Operation, error)
	ListInstances(ctx context.Context, project, zone, filter string) ([]gce.Instance, error)
	DeleteInstance(ctx context.Context, loc gce.InstanceLocator) (*gce.Operation, error)
	DeleteAddress(ctx context.Context, region gce.RegionLocator, name string) (*gce.Operation, error)
}

// Account scopes server operations to one cloud account (project). Server
// orchestration across one account's servers is fully independent; the
// only shared mutable state is the API client's cached access token, which
// is safe for concurrent use.
type Account struct {
	id      string
	project string
	zone    string
	api     API

	machineOpts []install.MachineOption
}

// NewAccount creates an account view over a project and zone. The account
// id becomes the prefix of every server identity.
func NewAccount(api API, id, project, zone string, opts ...install.MachineOption) *Account {
	return &Account{
		id:          id,
		project:     project,
		zone:        zone,
		api:         api,
		machineOpts: opts,
	}
}

// CreateOptions are the parameters for provisioning a new server.
type CreateOptions struct {
	Name        string
	MachineType string
	SourceImage string
	DiskSizeGB  int
	Network     string
	UserData    string // rendered cloud-config (optional)
}

// CreateServer submits instance creation and returns a handle immediately,
// before provisioning completes. The handle's progress stream reports the
// install as it advances; ctx bounds the whole provisioning attempt.
func (a *Account) CreateServer(ctx context.Context, opts CreateOptions) (*Server, error) {
	inst := buildInstance(a.zone, opts)
	op, err := a.api.InsertInstance(ctx, a.project, a.zone, inst)
	if err != nil {
		return nil, fmt.Errorf("submitting instance creation: %w", err)
	}

	loc := gce.InstanceLocator{Project: a.project, Zone: a.zone, Name: opts.Name}
	machine := install.NewMachine(a.api, loc, op.Name, a.machineOpts...)
	machine.Start(ctx)

	s := &Server{
		id:      a.serverID(opts.Name),
		loc:     loc,
		api:     a.api,
		machine: machine,
	}
	slog.Debug("created server handle", "server", s.id, "operation", op.Name)
	return s, nil
}

// ListServers returns a handle for every instance in the zone tagged as
// managed. Listed servers are already provisioned: their readiness is
// pre-resolved and their progress stream ends immediately.
func (a *Account) ListServers(ctx context.Context) ([]*Server, error) {
	filter := fmt.Sprintf("labels.%s=true", ManagedLabel)
	items, err := a.api.ListInstances(ctx, a.project, a.zone, filter)
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}

	servers := make([]*Server, 0, len(items))
	for _, inst := range items {
		loc := gce.InstanceLocator{Project: a.project, Zone: a.zone, Name: inst.Name}
		if inst.SelfLink != "" {
			parsed, err := gce.ParseInstanceURL(inst.SelfLink)
			if err != nil {
				return nil, err
			}
			loc = parsed
		}
		servers = append(servers, &Server{
			id:      a.serverID(loc.Name),
			loc:     loc,
			api:     a.api,
			machine: install.NewResolvedMachine(loc),
		})
	}
	return servers, nil
}

// Server returns a handle for an instance assumed to exist, without
// listing. Its readiness is pre-resolved; Delete still tolerates the
// underlying resources being gone.
func (a *Account) Server(name string) *Server {
	loc := gce.InstanceLocator{Project: a.project, Zone: a.zone, Name: name}
	return &Server{
		id:      a.serverID(name),
		loc:     loc,
		api:     a.api,
		machine: install.NewResolvedMachine(loc),
	}
}

// serverID builds the composite `account-id:instance-id` identity.
func (a *Account) serverID(name string) string {
	return a.id + ":" + name
}

func buildInstance(zone string, opts CreateOptions) *gce.Instance {
	diskGB := opts.DiskSizeGB
	if diskGB <= 0 {
		diskGB = 50
	}
	network := opts.Network
	if network == "" {
		network = "global/networks/default"
	}

	trueValue := "TRUE"
	metadata := &gce.Metadata{Items: []gce.MetadataItem{
		{Key: guestAttributesKey, Value: &trueValue},
	}}
	if opts.UserData != "" {
		userData := opts.UserData
		metadata.Items = append(metadata.Items, gce.MetadataItem{Key: userDataKey, Value: &userData})
	}

	return &gce.Instance{
		Name:        opts.Name,
		MachineType: fmt.Sprintf("zones/%s/machineTypes/%s", zone, opts.MachineType),
		Labels:      map[string]string{ManagedLabel: "true"},
		Metadata:    metadata,
		Disks: []gce.AttachedDisk{{
			Boot:       true,
			AutoDelete: true,
			InitializeParams: &gce.DiskInitializeParams{
				SourceImage: opts.SourceImage,
				DiskSizeGb:  strconv.Itoa(diskGB),
			},
		}},
		NetworkInterfaces: []gce.NetworkInterface{{
			Network: network,
			AccessConfigs: []gce.AccessConfig{{
				Type: "ONE_TO_ONE_NAT",
				Name: "External NAT",
			}},
		}},
	}
}
