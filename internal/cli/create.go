package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/stratohq/strato/internal/config"
	hetzner "github.com/stratohq/strato/internal/hcloud"
	"github.com/stratohq/strato/internal/provision"
	"github.com/stratohq/strato/internal/server"
	"github.com/stratohq/strato/internal/state"
)

func newCreateCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Provision a new managed server",
		Long: `Creates a server in your cloud account and installs the managed
application on it, streaming install progress until the server is ready.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := resolveCmdContext(cmd.Context(), f.outputMode())
			if err != nil {
				return err
			}
			return RunCreate(cmd.Context(), cc, args[0])
		},
	}
}

// RunCreate provisions a server named name on the configured backend.
func RunCreate(ctx context.Context, cc *cmdContext, name string) error {
	userData, err := provision.Generate(provision.Options{
		InstallerURL: cc.Config.Install.InstallerURL,
		Channel:      cc.Config.Install.Channel,
	}).Render()
	if err != nil {
		return err
	}

	if cc.Account != nil {
		return createGCE(ctx, cc, name, userData)
	}
	return createHetzner(ctx, cc, name, userData)
}

func createGCE(ctx context.Context, cc *cmdContext, name, userData string) error {
	w := cc.Output

	// install.timeout bounds the whole provisioning attempt, including the
	// attribute-poll loop, which otherwise has no deadline of its own.
	timeout, err := cc.Config.Install.InstallTimeout()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	srv, err := cc.Account.CreateServer(ctx, server.CreateOptions{
		Name:        name,
		MachineType: cc.Config.GCP.MachineType,
		SourceImage: cc.Config.GCP.Image,
		DiskSizeGB:  cc.Config.GCP.DiskGB,
		UserData:    userData,
	})
	if err != nil {
		if printClassifiedError(w, err) {
			return displayed(err)
		}
		return err
	}

	if err := cc.State.SaveServer(state.ServerRecord{
		ID:      srv.ID(),
		Name:    name,
		Backend: config.BackendGCE,
		Project: cc.Config.GCP.Project,
		Zone:    cc.Config.GCP.Zone,
		Created: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("recording server: %w", err)
	}

	w.StartSpinner("installing (0%)...")
	for frac := range srv.Progress() {
		w.UpdateSpinner(fmt.Sprintf("installing (%d%%)...", int(frac*100)))
	}
	// The stream is finite: it ended because a terminal state was reached.
	if err := srv.Err(); err != nil {
		w.StopSpinner(fmt.Sprintf("install did not complete: %v", err), false)
		return displayed(err)
	}

	w.StopSpinner(fmt.Sprintf("server %s is ready", srv.ID()), true)
	if ep, ok := srv.Endpoint(); ok {
		w.Infof("management endpoint: %s", ep.URL)
		w.Infof("certificate sha256: %s", ep.CertSHA256)
	}
	return nil
}

func createHetzner(ctx context.Context, cc *cmdContext, name, userData string) error {
	w := cc.Output

	keyID, err := ensureSSHKey(ctx, cc)
	if err != nil {
		return err
	}

	w.StartSpinner(fmt.Sprintf("creating server %s...", name))
	srv, err := cc.Hetzner.CreateInstance(ctx, name, cc.Config.Hetzner.Location, keyID, hetznerSpec(cc.Config, userData))
	if err != nil {
		w.StopSpinner("failed to create server", false)
		return err
	}
	w.StopSpinner(fmt.Sprintf("server %s created", name), true)

	if err := cc.State.SaveServer(state.ServerRecord{
		ID:      fmt.Sprintf("hetzner:%s", name),
		Name:    name,
		Backend: config.BackendHetzner,
		Created: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("recording server: %w", err)
	}

	if srv.PublicNet.IPv4.IP != nil {
		w.Infof("public address: %s", srv.PublicNet.IPv4.IP)
	}
	return nil
}

// ensureSSHKey generates a local key pair on first use and registers its
// public half with the Hetzner account.
func ensureSSHKey(ctx context.Context, cc *cmdContext) (int64, error) {
	pubPath := filepath.Join(cc.State.BaseDir(), "id_ed25519.pub")
	privPath := filepath.Join(cc.State.BaseDir(), "id_ed25519")

	pub, err := readOrGenerateKey(privPath, pubPath)
	if err != nil {
		return 0, err
	}
	return cc.Hetzner.EnsureSSHKey(ctx, "strato", string(pub))
}

func hetznerSpec(cfg config.Config, userData string) hetzner.InstanceSpec {
	return hetzner.InstanceSpec{
		ServerType: cfg.Hetzner.ServerType,
		Image:      cfg.Hetzner.Image,
		Labels:     map[string]string{server.ManagedLabel: "true"},
		UserData:   userData,
	}
}
