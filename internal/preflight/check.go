package preflight

import (
	"fmt"

	"github.com/stratohq/strato/internal/config"
)

// Result is the outcome of a single preflight check.
type Result struct {
	Name    string // e.g. "gcp-credentials"
	OK      bool
	Message string // user-facing error description
	Fix     string // actionable fix instruction
}

// CheckGCPCredentials verifies that the GCE backend has a credentials file
// to mint access tokens from. Fast, offline — it does not call the API.
func CheckGCPCredentials(cfg config.GCPConfig, fileExists func(string) bool) Result {
	r := Result{Name: "gcp-credentials"}
	if cfg.Project == "" {
		r.Message = "no GCP project configured"
		r.Fix = "set gcp.project in .strato.toml (or STRATO_GCP_PROJECT)"
		return r
	}
	if cfg.CredentialsFile == "" || !fileExists(cfg.CredentialsFile) {
		r.Message = "no GCP credentials file found"
		r.Fix = "run: strato init (or point gcp.credentials_file at an existing one)"
		return r
	}
	r.OK = true
	return r
}

// CheckHetznerToken verifies that the Hetzner backend has an API token.
func CheckHetznerToken(cfg config.HetznerConfig, lookupEnv func(string) (string, bool)) Result {
	r := Result{Name: "hetzner-token"}
	if cfg.Token != "" {
		r.OK = true
		return r
	}
	if tok, ok := lookupEnv("STRATO_HETZNER_TOKEN"); ok && tok != "" {
		r.OK = true
		return r
	}
	r.Message = "no Hetzner Cloud API token found"
	r.Fix = "set STRATO_HETZNER_TOKEN (create a token in the Hetzner Cloud console)"
	return r
}

// RunAll runs the checks relevant for the configured backend and returns
// any failures.
func RunAll(cfg config.Config, lookupEnv func(string) (string, bool), fileExists func(string) bool) []Result {
	var checks []Result
	switch cfg.Compute.Backend {
	case config.BackendGCE:
		checks = append(checks, CheckGCPCredentials(cfg.GCP, fileExists))
	case config.BackendHetzner:
		checks = append(checks, CheckHetznerToken(cfg.Hetzner, lookupEnv))
	default:
		checks = append(checks, Result{
			Name:    "backend",
			Message: fmt.Sprintf("unknown backend %q", cfg.Compute.Backend),
			Fix:     "set compute.backend to gce or hetzner",
		})
	}

	var failures []Result
	for _, c := range checks {
		if !c.OK {
			failures = append(failures, c)
		}
	}
	return failures
}
