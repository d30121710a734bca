package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/stratohq/strato/internal/config"
	"github.com/stratohq/strato/internal/gce"
	hetzner "github.com/stratohq/strato/internal/hcloud"
	"github.com/stratohq/strato/internal/output"
	"github.com/stratohq/strato/internal/preflight"
	"github.com/stratohq/strato/internal/server"
	"github.com/stratohq/strato/internal/state"
)

// cmdContext holds the resolved context for a CLI command.
// Created once per command invocation, not shared between commands.
type cmdContext struct {
	Config config.Config
	Output *output.Writer
	State  *state.Store

	// Exactly one of these is set, per compute.backend.
	Account *server.Account
	Hetzner *hetzner.Provider
}

// resolveCmdContext builds the full context needed by server-facing commands.
func resolveCmdContext(ctx context.Context, mode output.Mode) (*cmdContext, error) {
	w := output.New(mode)

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}

	cfg, _, err := config.Load(cwd)
	if err != nil {
		w.Error("invalid configuration", "check .strato.toml syntax, or delete it and run: strato init")
		return nil, displayed(err)
	}

	// Preflight checks — detect missing prerequisites with actionable errors.
	if failures := preflight.RunAll(cfg, os.LookupEnv, fileExists); len(failures) > 0 {
		for _, f := range failures {
			w.Error(f.Message, f.Fix)
		}
		return nil, displayed(fmt.Errorf("preflight checks failed"))
	}

	store, err := state.NewStore("")
	if err != nil {
		return nil, fmt.Errorf("initializing state store: %w", err)
	}

	cc := &cmdContext{
		Config: cfg,
		Output: w,
		State:  store,
	}

	switch cfg.Compute.Backend {
	case config.BackendGCE:
		creds, err := gce.LoadCredentials(cfg.GCP.CredentialsFile)
		if err != nil {
			return nil, err
		}
		client := gce.NewClient(ctx, creds)
		cc.Account = server.NewAccount(client, cfg.GCP.Project, cfg.GCP.Project, cfg.GCP.Zone)
	case config.BackendHetzner:
		token := cfg.Hetzner.Token
		if token == "" {
			token, _ = os.LookupEnv("STRATO_HETZNER_TOKEN")
		}
		cc.Hetzner = hetzner.NewProvider(token)
	}

	return cc, nil
}

// fileExists returns true if a file exists at the given path.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// printClassifiedError checks if an error is a recognized control-plane
// error and prints an actionable message. Returns true if one was printed.
func printClassifiedError(w *output.Writer, err error) bool {
	if ce := gce.ClassifyError(err); ce != nil {
		w.Error(ce.Message, ce.Fix)
		return true
	}
	return false
}
