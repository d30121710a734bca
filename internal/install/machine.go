package install

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stratohq/strato/internal/gce"
)

// Guest attribute keys of the install handshake. The in-guest installer
// publishes these; presence, not order, drives the transitions.
const (
	attrInstallStarted = "install-started"
	attrInstallError   = "install-error"
	attrCertSHA256     = "certSha256"
	attrAPIURL         = "apiUrl"
)

// defaultPollInterval is the guest-attribute polling cadence.
const defaultPollInterval = 5 * time.Second

// API is the subset of the compute client the machine drives. The real
// *gce.Client satisfies it; tests substitute function-field mocks.
type API interface {
	WaitZoneOperation(ctx context.Context, project, zone, name string) (*gce.Operation, error)
	WaitRegionOperation(ctx context.Context, region gce.RegionLocator, name string) (*gce.Operation, error)
	GetInstance(ctx context.Context, loc gce.InstanceLocator) (*gce.Instance, error)
	GetAddress(ctx context.Context, region gce.RegionLocator, name string) (*gce.Address, error)
	InsertAddress(ctx context.Context, region gce.RegionLocator, addr *gce.Address) (*gce.Operation, error)
	GuestAttributes(ctx context.Context, loc gce.InstanceLocator, namespace string) (map[string]string, error)
}

// Endpoint is the management endpoint inside the provisioned instance,
// published once install completes.
type Endpoint struct {
	URL        string
	CertSHA256 string
}

// Machine drives one instance from submitted creation to confirmed
// application readiness. Transitions are strictly sequential: the poll
// loop only starts after the creation-wait phase completes, so no two
// transitions for the same instance are evaluated concurrently.
type Machine struct {
	api          API
	loc          gce.InstanceLocator
	createOp     string
	pollInterval time.Duration

	tracker *Tracker
	done    chan struct{}

	mu       sync.Mutex
	endpoint *Endpoint
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithPollInterval overrides the attribute polling interval (used in tests).
func WithPollInterval(d time.Duration) MachineOption {
	return func(m *Machine) {
		m.pollInterval = d
	}
}

// NewMachine creates a machine for an instance whose creation operation has
// been submitted. Start begins driving it.
func NewMachine(api API, loc gce.InstanceLocator, createOp string, opts ...MachineOption) *Machine {
	m := &Machine{
		api:          api,
		loc:          loc,
		createOp:     createOp,
		pollInterval: defaultPollInterval,
		tracker:      NewTracker(),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewResolvedMachine creates a machine already in the completed state, for
// servers discovered via listing rather than created here.
func NewResolvedMachine(loc gce.InstanceLocator) *Machine {
	m := &Machine{
		loc:     loc,
		tracker: NewTracker(),
		done:    make(chan struct{}),
	}
	m.tracker.Advance(StateCompleted)
	close(m.done)
	return m
}

// Start launches the machine. ctx bounds the whole attempt: cancellation or
// deadline expiry between polls terminates the machine as failed.
func (m *Machine) Start(ctx context.Context) {
	go m.run(ctx)
}

// State returns the current install state.
func (m *Machine) State() State {
	return m.tracker.State()
}

// Progress subscribes to the fractional-completion stream. See
// Tracker.Subscribe.
func (m *Machine) Progress() <-chan float64 {
	return m.tracker.Subscribe()
}

// Done is closed once the machine reaches a terminal state and stops
// issuing network calls.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

// Err reports how the install ended; nil while running or after success.
func (m *Machine) Err() error {
	return m.tracker.Err()
}

// Endpoint returns the management endpoint once install completed.
func (m *Machine) Endpoint() (*Endpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endpoint, m.endpoint != nil
}

// Cancel transitions to StateCanceled unless a terminal state was already
// reached. It does not abort an in-flight call; it prevents the next one
// from being scheduled.
func (m *Machine) Cancel() {
	if m.tracker.Cancel() {
		slog.Debug("install canceled", "instance", m.loc.String())
	}
}

func (m *Machine) run(ctx context.Context) {
	defer close(m.done)

	if err := m.provision(ctx); err != nil {
		m.fail(err)
		return
	}
	if m.tracker.State().Terminal() {
		return
	}
	m.poll(ctx)
}

// provision resolves the creation operation and ensures the instance holds
// a static address, advancing through StateInstanceCreated and
// StateIPAllocated.
func (m *Machine) provision(ctx context.Context) error {
	region, err := m.loc.Region()
	if err != nil {
		return err
	}

	// Concurrently wait out the creation operation and probe whether a
	// static address already exists under this server's name. "Not found"
	// means it does not exist yet; anything else is fatal.
	var haveStatic bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.awaitZoneOperation(gctx, m.createOp)
	})
	g.Go(func() error {
		_, err := m.api.GetAddress(gctx, region, m.loc.Name)
		if err == nil {
			haveStatic = true
			return nil
		}
		if gce.IsNotFound(err) {
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if m.tracker.State().Terminal() {
		return nil
	}
	m.tracker.Advance(StateInstanceCreated)
	slog.Debug("instance created", "instance", m.loc.String())

	if !haveStatic {
		if err := m.promoteAddress(ctx, region); err != nil {
			return err
		}
	}

	if m.tracker.State().Terminal() {
		return nil
	}
	m.tracker.Advance(StateIPAllocated)
	return nil
}

// promoteAddress reserves the instance's current ephemeral address as a
// static one named after the instance. A cancellation that landed since the
// last terminal check makes it a no-op: no network call is issued once the
// machine is terminal.
func (m *Machine) promoteAddress(ctx context.Context, region gce.RegionLocator) error {
	if m.tracker.State().Terminal() {
		return nil
	}
	inst, err := m.api.GetInstance(ctx, m.loc)
	if err != nil {
		return err
	}
	ip, ok := inst.EphemeralIP()
	if !ok {
		return fmt.Errorf("instance %s has no external address to promote", m.loc.String())
	}

	op, err := m.api.InsertAddress(ctx, region, &gce.Address{Name: m.loc.Name, Address: ip})
	if err != nil {
		return err
	}
	for {
		waited, err := m.api.WaitRegionOperation(ctx, region, op.Name)
		if err != nil {
			return err
		}
		if waited.Done() {
			break
		}
	}
	slog.Debug("promoted address to static", "instance", m.loc.String(), "address", ip)
	return nil
}

// awaitZoneOperation re-invokes the zone wait endpoint until the operation
// is done, surfacing any embedded operation error.
func (m *Machine) awaitZoneOperation(ctx context.Context, name string) error {
	for {
		op, err := m.api.WaitZoneOperation(ctx, m.loc.Project, m.loc.Zone, name)
		if err != nil {
			return err
		}
		if op.Done() {
			return nil
		}
	}
}

// poll fetches the install handshake namespace at a fixed interval and maps
// attribute presence to transitions. Later milestones imply earlier ones,
// so keys are evaluated most-advanced first; a snapshot observed "out of
// order" can only move the state forward.
func (m *Machine) poll(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.fail(ctx.Err())
			return
		case <-ticker.C:
		}

		// Cancellation must be observed before the next network call.
		if m.tracker.State().Terminal() {
			return
		}

		attrs, err := m.api.GuestAttributes(ctx, m.loc, gce.GuestAttributeNamespace)
		if err != nil {
			m.fail(err)
			return
		}

		apiURL, hasURL := attrs[attrAPIURL]
		cert, hasCert := attrs[attrCertSHA256]
		reason, hasError := attrs[attrInstallError]
		_, hasStarted := attrs[attrInstallStarted]

		switch {
		case hasURL && hasCert:
			m.mu.Lock()
			m.endpoint = &Endpoint{URL: apiURL, CertSHA256: cert}
			m.mu.Unlock()
			m.tracker.Advance(StateCompleted)
			slog.Debug("install completed", "instance", m.loc.String(), "url", apiURL)
			return
		case hasError:
			m.tracker.Fail(&FailedError{Reason: reason})
			return
		case hasCert:
			m.tracker.Advance(StateCertificateCreated)
		case hasStarted:
			m.tracker.Advance(StateInstanceRunning)
		}
	}
}

// fail records err as the terminal failure, unless the machine was already
// terminal (e.g. canceled while the failing call was in flight).
func (m *Machine) fail(err error) {
	var fe *FailedError
	if !errors.As(err, &fe) {
		err = &FailedError{Err: err}
	}
	if m.tracker.Fail(err) {
		slog.Debug("install failed", "instance", m.loc.String(), "error", err)
	}
}
