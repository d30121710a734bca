package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	stateDir    = "strato"
	serversFile = "servers.json"
)

// ServerRecord is the locally persisted record of a server this machine
// created. It exists for CLI convenience (fast listing, destroy-by-name);
// the cloud remains the source of truth.
type ServerRecord struct {
	ID      string    `json:"id"` // account:instance composite
	Name    string    `json:"name"`
	Backend string    `json:"backend"`
	Project string    `json:"project,omitempty"`
	Zone    string    `json:"zone,omitempty"`
	Created time.Time `json:"created"`
}

// Store manages strato state on the local filesystem.
// State lives at ~/.config/strato/.
type Store struct {
	baseDir string
}

// NewStore creates a Store rooted at the given base directory.
// If baseDir is empty, uses the default (~/.config/strato).
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("finding config directory: %w", err)
		}
		baseDir = filepath.Join(configDir, stateDir)
	}
	return &Store{baseDir: baseDir}, nil
}

// SaveServer appends or replaces the record with the same ID.
// Uses atomic write (temp + rename).
func (s *Store) SaveServer(rec ServerRecord) error {
	records, err := s.LoadServers()
	if err != nil {
		return err
	}

	replaced := false
	for i, r := range records {
		if r.ID == rec.ID {
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, rec)
	}
	return s.writeServers(records)
}

// LoadServers reads all recorded servers. Returns nil, nil if no state
// exists yet.
func (s *Store) LoadServers() ([]ServerRecord, error) {
	target := filepath.Join(s.baseDir, serversFile)
	data, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading servers file: %w", err)
	}

	var records []ServerRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing servers file: %w", err)
	}
	return records, nil
}

// DeleteServer removes the record with the given ID. Removing an unknown
// ID is not an error.
func (s *Store) DeleteServer(id string) error {
	records, err := s.LoadServers()
	if err != nil {
		return err
	}

	kept := records[:0]
	for _, r := range records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	return s.writeServers(kept)
}

// writeServers persists the record list. Uses atomic write (temp + rename)
// to avoid corruption from concurrent writers.
func (s *Store) writeServers(records []ServerRecord) error {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling servers: %w", err)
	}

	target := filepath.Join(s.baseDir, serversFile)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp servers file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp) //nolint:errcheck // best-effort cleanup of temp file
		return fmt.Errorf("renaming servers file: %w", err)
	}
	return nil
}

// BaseDir returns the store's base directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}
