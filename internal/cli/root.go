package cli

import (
	"context"
	"errors"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/stratohq/strato/internal/gce"
	"github.com/stratohq/strato/internal/output"
)

// displayedError wraps an error that has already been printed to the user.
// Execute() checks for this to avoid double-printing.
type displayedError struct {
	err error
}

func (e *displayedError) Error() string { return e.err.Error() }
func (e *displayedError) Unwrap() error { return e.err }

// displayed wraps an error to mark it as already shown to the user.
func displayed(err error) error {
	if err == nil {
		return nil
	}
	return &displayedError{err: err}
}

// flags holds per-invocation flag state (no package globals).
type flags struct {
	json    bool
	quiet   bool
	verbose bool
}

func (f *flags) outputMode() output.Mode {
	if f.json {
		return output.ModeJSON
	}
	if f.quiet {
		return output.ModeQuiet
	}
	return output.ModeText
}

// Execute runs the CLI with the given version and args. Returns exit code.
func Execute(version string, args []string) int {
	root := newRootCmd(version)
	root.SetArgs(args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		// If the error was already displayed inline, don't print again.
		var de *displayedError
		if !errors.As(err, &de) {
			// Safety net: always print something so users never see silent failures.
			w := output.New(output.ModeText)
			if ce := gce.ClassifyError(err); ce != nil {
				w.Error(ce.Message, ce.Fix)
			} else {
				w.Error(err.Error(), "")
			}
		}
		return 1
	}
	return 0
}

func newRootCmd(version string) *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "strato <command> [args...]",
		Short: "Provision a managed server in your own cloud account",
		Long: `strato creates a server in your cloud account, installs the managed
application on it, and streams install progress until the server is ready.`,
		Example: `  strato create edge-1     # provision a new managed server
  strato list              # show managed servers
  strato destroy edge-1    # tear the server down`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			output.SetupSlog(f.verbose)
		},
	}

	root.PersistentFlags().SetNormalizeFunc(normalizeFlag)
	root.PersistentFlags().BoolVarP(&f.json, "json", "j", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&f.quiet, "quiet", "q", false, "suppress strato messages")
	root.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newCreateCmd(f),
		newListCmd(f),
		newDestroyCmd(f),
		newInitCmd(f),
	)

	return root
}

// normalizeFlag accepts underscore spellings for flags, matching the
// config-file key style.
func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}
