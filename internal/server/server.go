package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stratohq/strato/internal/gce"
	"github.com/stratohq/strato/internal/install"
)

// Server is the handle for one managed server: an identity, a lazy
// progress stream, and teardown. Servers created here carry a pending
// install machine; servers discovered by listing carry a pre-resolved one.
// Both satisfy the same surface.
type Server struct {
	id      string
	loc     gce.InstanceLocator
	api     API
	machine *install.Machine
}

// ID returns the composite identity, unique within the account's view.
// Created once, never mutated.
func (s *Server) ID() string {
	return s.id
}

// Name returns the instance name.
func (s *Server) Name() string {
	return s.loc.Name
}

// Locator returns the instance locator.
func (s *Server) Locator() gce.InstanceLocator {
	return s.loc
}

// State returns the current install state.
func (s *Server) State() install.State {
	return s.machine.State()
}

// Progress subscribes to the install's fractional-completion stream. The
// stream is finite: it ends when a terminal state is reached, after which
// Err reports success, failure, or cancellation.
func (s *Server) Progress() <-chan float64 {
	return s.machine.Progress()
}

// Err reports how the install ended. Callers learn failure only through
// the terminal state of the progress stream and this accessor, never
// through ad hoc state inspection mid-flight.
func (s *Server) Err() error {
	return s.machine.Err()
}

// Endpoint returns the management endpoint once install completed.
func (s *Server) Endpoint() (*install.Endpoint, bool) {
	return s.machine.Endpoint()
}

// Delete tears down the server's cloud resources. Deletion requested
// before provisioning completes cancels the install instead of racing it:
// the machine is signaled first, then allowed to settle, and only then are
// the network resources removed. Resources that never came to exist are
// tolerated; any other deletion error propagates.
func (s *Server) Delete(ctx context.Context) error {
	// 1. Signal cancellation immediately (non-blocking; a no-op when the
	// install already reached a terminal state).
	s.machine.Cancel()

	// 2. Let the readiness future settle so deletion cannot race the
	// creation in flight. A setup failure does not block teardown.
	select {
	case <-s.machine.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := s.machine.Err(); err != nil && !errors.Is(err, install.ErrCanceled) {
		slog.Debug("setup had failed before teardown", "server", s.id, "error", err)
	}

	region, err := s.loc.Region()
	if err != nil {
		return err
	}

	// 3. Release the static address. It may never have been created if
	// cancellation landed before promotion.
	if err := s.deleteAddress(ctx, region); err != nil {
		return fmt.Errorf("deleting static address %s: %w", s.loc.Name, err)
	}

	// 4. Delete the instance. Independent of the address; ordered after it
	// for cleanliness, not correctness.
	if err := s.deleteInstance(ctx); err != nil {
		return fmt.Errorf("deleting instance %s: %w", s.loc.Name, err)
	}

	slog.Debug("server deleted", "server", s.id)
	return nil
}

func (s *Server) deleteAddress(ctx context.Context, region gce.RegionLocator) error {
	op, err := s.api.DeleteAddress(ctx, region, s.loc.Name)
	if err != nil {
		if gce.IsNotFound(err) {
			return nil
		}
		return err
	}
	for {
		waited, err := s.api.WaitRegionOperation(ctx, region, op.Name)
		if err != nil {
			return err
		}
		if waited.Done() {
			return nil
		}
	}
}

func (s *Server) deleteInstance(ctx context.Context) error {
	op, err := s.api.DeleteInstance(ctx, s.loc)
	if err != nil {
		if gce.IsNotFound(err) {
			return nil
		}
		return err
	}
	for {
		waited, err := s.api.WaitZoneOperation(ctx, s.loc.Project, s.loc.Zone, op.Name)
		if err != nil {
			return err
		}
		if waited.Done() {
			return nil
		}
	}
}
