package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	FileName  = ".strato.toml"
	EnvPrefix = "STRATO"
)

// Backends selectable under compute.backend.
const (
	BackendGCE     = "gce"
	BackendHetzner = "hetzner"
)

// Config is the full strato configuration.
type Config struct {
	Compute ComputeConfig `mapstructure:"compute"`
	GCP     GCPConfig     `mapstructure:"gcp"`
	Hetzner HetznerConfig `mapstructure:"hetzner"`
	Install InstallConfig `mapstructure:"install"`
}

// ComputeConfig selects the provisioning backend.
type ComputeConfig struct {
	Backend string `mapstructure:"backend"`
}

// GCPConfig controls the GCE backend.
type GCPConfig struct {
	Project         string `mapstructure:"project"`
	Zone            string `mapstructure:"zone"`
	CredentialsFile string `mapstructure:"credentials_file"`
	MachineType     string `mapstructure:"machine_type"`
	Image           string `mapstructure:"image"`
	DiskGB          int    `mapstructure:"disk_gb"`
}

// HetznerConfig controls the Hetzner backend. The token is normally
// supplied via STRATO_HETZNER_TOKEN rather than the config file.
type HetznerConfig struct {
	Token      string `mapstructure:"token"`
	Location   string `mapstructure:"location"`
	ServerType string `mapstructure:"server_type"`
	Image      string `mapstructure:"image"`
}

// InstallConfig controls the install sequence on the new server.
// Timeout is stored as a string (e.g. "30m", "1d") for Viper compatibility.
type InstallConfig struct {
	InstallerURL string `mapstructure:"installer_url"`
	Channel      string `mapstructure:"channel"`
	Timeout      string `mapstructure:"timeout"`
}

// ParseDuration parses a duration string with support for "Nd" day syntax.
func ParseDuration(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		numStr := strings.TrimSuffix(s, "d")
		var days float64
		if _, err := fmt.Sscanf(numStr, "%f", &days); err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		return time.Duration(days * float64(24*time.Hour)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// InstallTimeout returns the parsed install.timeout: the overall deadline
// for one provisioning attempt.
func (ic *InstallConfig) InstallTimeout() (time.Duration, error) {
	return ParseDuration(ic.Timeout)
}

// Defaults returns a Config with all default values.
func Defaults() Config {
	return Config{
		Compute: ComputeConfig{
			Backend: BackendGCE,
		},
		GCP: GCPConfig{
			Zone:        "us-central1-a",
			MachineType: "e2-standard-4",
			Image:       "projects/ubuntu-os-cloud/global/images/family/ubuntu-2404-lts-amd64",
			DiskGB:      50,
		},
		Hetzner: HetznerConfig{
			Location:   "fsn1",
			ServerType: "cx32",
			Image:      "ubuntu-24.04",
		},
		Install: InstallConfig{
			InstallerURL: "https://get.strato.dev/install.sh",
			Timeout:      "30m",
		},
	}
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.Compute.Backend {
	case BackendGCE, BackendHetzner:
	default:
		return fmt.Errorf("invalid compute.backend %q (must be %s or %s)", c.Compute.Backend, BackendGCE, BackendHetzner)
	}
	if c.Install.Timeout != "" {
		if _, err := ParseDuration(c.Install.Timeout); err != nil {
			return fmt.Errorf("invalid install.timeout: %w", err)
		}
	}
	if c.GCP.DiskGB < 0 {
		return fmt.Errorf("invalid gcp.disk_gb %d", c.GCP.DiskGB)
	}
	return nil
}

// Load reads configuration from .strato.toml (discovered by walking up from
// startDir), environment variables (STRATO_*), and applies defaults.
// CLI flag overrides should be applied by the caller after Load returns.
func Load(startDir string) (Config, string, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setViperDefaults(v, cfg)

	configPath := FindConfig(startDir)
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, "", fmt.Errorf("reading %s: %w", configPath, err)
		}
	}

	decoderOpt := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToBasicTypeHookFunc(),
	))
	if err := v.Unmarshal(&cfg, decoderOpt); err != nil {
		return Config{}, "", fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, "", err
	}

	return cfg, configPath, nil
}

// FindConfig walks up from startDir looking for .strato.toml.
// Returns the path if found, empty string otherwise.
func FindConfig(startDir string) string {
	dir := startDir
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// setViperDefaults registers every key, including empty ones: AutomaticEnv
// only surfaces keys Viper already knows about during Unmarshal.
func setViperDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("compute.backend", cfg.Compute.Backend)
	v.SetDefault("gcp.project", cfg.GCP.Project)
	v.SetDefault("gcp.credentials_file", cfg.GCP.CredentialsFile)
	v.SetDefault("gcp.zone", cfg.GCP.Zone)
	v.SetDefault("gcp.machine_type", cfg.GCP.MachineType)
	v.SetDefault("gcp.image", cfg.GCP.Image)
	v.SetDefault("gcp.disk_gb", cfg.GCP.DiskGB)
	v.SetDefault("hetzner.token", cfg.Hetzner.Token)
	v.SetDefault("hetzner.location", cfg.Hetzner.Location)
	v.SetDefault("hetzner.server_type", cfg.Hetzner.ServerType)
	v.SetDefault("hetzner.image", cfg.Hetzner.Image)
	v.SetDefault("install.installer_url", cfg.Install.InstallerURL)
	v.SetDefault("install.channel", cfg.Install.Channel)
	v.SetDefault("install.timeout", cfg.Install.Timeout)
}
