package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratohq/strato/internal/config"
	"github.com/stratohq/strato/internal/output"
	"github.com/stratohq/strato/internal/server"
	"github.com/stratohq/strato/internal/state"
)

func newListCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List managed servers",
		Long: `Lists the servers strato manages in your cloud account. The cloud is
the source of truth; servers created from another machine show up too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := resolveCmdContext(cmd.Context(), f.outputMode())
			if err != nil {
				return err
			}
			return RunList(cmd.Context(), cc)
		},
	}
}

// RunList prints every managed server on the configured backend.
func RunList(ctx context.Context, cc *cmdContext) error {
	w := cc.Output

	if cc.Account != nil {
		servers, err := cc.Account.ListServers(ctx)
		if err != nil {
			if printClassifiedError(w, err) {
				return displayed(err)
			}
			return err
		}
		stale, err := staleRecords(cc, servers)
		if err != nil {
			return err
		}
		if len(servers) == 0 && len(stale) == 0 {
			w.Info("no managed servers")
			return nil
		}
		for _, srv := range servers {
			w.Info(formatServerLine(srv))
		}
		// Locally recorded servers the cloud no longer knows about: deleted
		// out-of-band, or created from here and torn down elsewhere.
		for _, rec := range stale {
			w.Warn(fmt.Sprintf("%s  not found in cloud (run: strato destroy %s to drop the record)", rec.Name, rec.Name))
		}
		return nil
	}

	servers, err := cc.Hetzner.ListInstances(ctx, server.ManagedLabel+"=true")
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		w.Info("no managed servers")
		return nil
	}
	for _, srv := range servers {
		line := fmt.Sprintf("%s  %s", output.BoldStyle.Render(srv.Name), srv.Status)
		if srv.PublicNet.IPv4.IP != nil {
			line += fmt.Sprintf("  %s", srv.PublicNet.IPv4.IP)
		}
		w.Info(line)
	}
	return nil
}

// staleRecords returns local records without a matching cloud server.
func staleRecords(cc *cmdContext, servers []*server.Server) ([]state.ServerRecord, error) {
	records, err := cc.State.LoadServers()
	if err != nil {
		return nil, fmt.Errorf("loading server records: %w", err)
	}
	live := make(map[string]bool, len(servers))
	for _, srv := range servers {
		live[srv.ID()] = true
	}
	var stale []state.ServerRecord
	for _, rec := range records {
		if rec.Backend == config.BackendGCE && !live[rec.ID] {
			stale = append(stale, rec)
		}
	}
	return stale, nil
}

func formatServerLine(srv *server.Server) string {
	loc := srv.Locator()
	return fmt.Sprintf("%s  %s  %s/%s",
		output.BoldStyle.Render(srv.Name()), srv.State(), loc.Project, loc.Zone)
}
