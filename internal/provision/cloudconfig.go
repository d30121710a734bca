// Package provision renders the cloud-config document a new server boots
// with. The document installs the appliance and publishes the install
// handshake through guest attributes, which the orchestrator polls.
package provision

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// attributeBase is the metadata-server path the guest publishes handshake
// attributes under. The namespace must match what the orchestrator polls.
const attributeBase = "http://metadata.google.internal/computeMetadata/v1/instance/guest-attributes/strato"

// basePackages are installed on every server before the appliance itself.
var basePackages = []string{
	"curl",
	"ca-certificates",
	"jq",
}

// CloudConfig is a cloud-init document.
type CloudConfig struct {
	Packages []string `yaml:"packages,omitempty"`
	RunCmd   []string `yaml:"runcmd,omitempty"`
}

// Options control the rendered install sequence.
type Options struct {
	// InstallerURL is where the appliance installer is downloaded from.
	InstallerURL string
	// Channel selects the appliance release channel (optional).
	Channel string
}

// Generate builds the cloud-config for a new server. The run sequence
// publishes install-started first, then runs the installer; the installer
// itself publishes certSha256 and apiUrl on success or install-error with
// a reason on failure.
func Generate(opts Options) *CloudConfig {
	cc := &CloudConfig{Packages: basePackages}

	cc.RunCmd = append(cc.RunCmd,
		putAttribute("install-started", "$(date -u +%Y-%m-%dT%H:%M:%SZ)"),
		fmt.Sprintf("curl -fsSL %s -o /opt/strato-install.sh", opts.InstallerURL),
		"chmod +x /opt/strato-install.sh",
	)

	install := "/opt/strato-install.sh"
	if opts.Channel != "" {
		install += " --channel " + opts.Channel
	}
	// The installer exits non-zero on failure; surface its last log line as
	// the install-error reason so the orchestrator can report it.
	cc.RunCmd = append(cc.RunCmd, fmt.Sprintf(
		"%s || %s", install,
		putAttribute("install-error", "$(tail -n1 /var/log/strato-install.log 2>/dev/null || echo 'installer failed')"),
	))

	return cc
}

// Render returns the document as a #cloud-config user-data string.
func (cc *CloudConfig) Render() (string, error) {
	var b strings.Builder
	b.WriteString("#cloud-config\n")
	data, err := yaml.Marshal(cc)
	if err != nil {
		return "", fmt.Errorf("rendering cloud-config: %w", err)
	}
	b.Write(data)
	return b.String(), nil
}

// putAttribute writes one guest attribute via the metadata server.
func putAttribute(key, value string) string {
	return fmt.Sprintf(`curl -s -X PUT -H "Metadata-Flavor: Google" --data "%s" %s/%s`, value, attributeBase, key)
}
