package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/stratohq/strato/internal/keygen"
)

// readOrGenerateKey returns the public half of the local SSH key pair,
// generating and persisting a new pair on first use. The private key is
// written with owner-only permissions.
func readOrGenerateKey(privPath, pubPath string) ([]byte, error) {
	pub, err := os.ReadFile(pubPath)
	if err == nil {
		return pub, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading public key: %w", err)
	}

	pair, err := keygen.Generate("strato")
	if err != nil {
		return nil, err
	}
	// First use may precede any state write, so the directory may not exist.
	if err := os.MkdirAll(filepath.Dir(privPath), 0o700); err != nil {
		return nil, fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(privPath, pair.PrivateKey, 0o600); err != nil {
		return nil, fmt.Errorf("writing private key: %w", err)
	}
	if err := os.WriteFile(pubPath, pair.PublicKey, 0o644); err != nil {
		return nil, fmt.Errorf("writing public key: %w", err)
	}
	return pair.PublicKey, nil
}
