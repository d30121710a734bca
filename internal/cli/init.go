package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stratohq/strato/internal/config"
	"github.com/stratohq/strato/internal/output"
)

const configTemplate = `# strato configuration
# Settings here can be overridden with STRATO_* environment variables,
# e.g. STRATO_GCP_PROJECT or STRATO_HETZNER_TOKEN.

[compute]
# Which cloud the server is created in: "gce" or "hetzner".
backend = "gce"

[gcp]
project = "%s"
zone = "%s"
machine_type = "%s"
# credentials_file points at a JSON file holding client_id, client_secret
# and refresh_token for an OAuth client with compute scope.
credentials_file = "%s"

[hetzner]
# The API token is read from STRATO_HETZNER_TOKEN; set it in the
# environment rather than committing it here.
location = "%s"
server_type = "%s"

[install]
timeout = "%s"
`

func newInitCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Long: `Writes a commented ` + config.FileName + ` into the current directory.
Edit it to point at your cloud project before running create.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// No resolveCmdContext here: init exists precisely so that a
			// config can be created before preflight checks can pass.
			w := output.New(f.outputMode())
			return RunInit(w)
		},
	}
}

// RunInit writes a starter config into the working directory.
func RunInit(w *output.Writer) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	target := filepath.Join(cwd, config.FileName)
	if _, err := os.Stat(target); err == nil {
		w.Error(fmt.Sprintf("%s already exists", config.FileName),
			"edit the existing file, or delete it and re-run: strato init")
		return displayed(fmt.Errorf("%s already exists", target))
	}

	defaults := config.Defaults()
	content := fmt.Sprintf(configTemplate,
		"my-project",
		defaults.GCP.Zone,
		defaults.GCP.MachineType,
		"~/.config/strato/credentials.json",
		defaults.Hetzner.Location,
		defaults.Hetzner.ServerType,
		defaults.Install.Timeout,
	)
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", config.FileName, err)
	}

	w.Success(fmt.Sprintf("wrote %s", config.FileName))
	w.Hint("set gcp.project (or switch compute.backend) and run: strato create <name>")
	return nil
}
