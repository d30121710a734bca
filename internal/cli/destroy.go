package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratohq/strato/internal/config"
)

func newDestroyCmd(f *flags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "destroy <name>",
		Short: "Tear a managed server down",
		Long: `Deletes the server and its static address from your cloud account.
Resources that are already gone are tolerated, so destroy can be re-run
after a partial failure.

Use --force to skip the confirmation warning.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := resolveCmdContext(cmd.Context(), f.outputMode())
			if err != nil {
				return err
			}
			return RunDestroy(cmd.Context(), cc, args[0], force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation warning")
	return cmd
}

// RunDestroy deletes the named server from the configured backend and
// removes its local record.
func RunDestroy(ctx context.Context, cc *cmdContext, name string, force bool) error {
	w := cc.Output

	if !force {
		w.Warn(fmt.Sprintf("this permanently deletes server %s and everything on it", name))
		w.Hint("re-run with --force to proceed")
		return nil
	}

	w.StartSpinner(fmt.Sprintf("destroying server %s...", name))

	var recordID string
	if cc.Account != nil {
		srv := cc.Account.Server(name)
		if err := srv.Delete(ctx); err != nil {
			w.StopSpinner("failed to destroy server", false)
			if printClassifiedError(w, err) {
				return displayed(err)
			}
			return err
		}
		recordID = srv.ID()
	} else {
		if err := cc.Hetzner.DeleteInstance(ctx, name); err != nil {
			w.StopSpinner("failed to destroy server", false)
			return err
		}
		recordID = fmt.Sprintf("%s:%s", config.BackendHetzner, name)
	}

	if err := cc.State.DeleteServer(recordID); err != nil {
		return fmt.Errorf("removing server record: %w", err)
	}

	w.StopSpinner(fmt.Sprintf("server %s destroyed", name), true)
	return nil
}
