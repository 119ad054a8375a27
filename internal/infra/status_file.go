package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clipsentry/clipsentry/internal/domain"
)

const statusFileName = "status.json"

// StatusFile persists the presenter's badge snapshot so the status
// command can read daemon state without a live connection.
type StatusFile struct {
	path string
}

// NewStatusFile creates a status file in the data directory.
func NewStatusFile(dataDir string) *StatusFile {
	return &StatusFile{path: filepath.Join(dataDir, statusFileName)}
}

// Path returns the status file location.
func (f *StatusFile) Path() string {
	return f.path
}

// Write persists a snapshot atomically (write + rename).
func (f *StatusFile) Write(snap domain.StatusSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", f.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Read loads the last snapshot. Returns nil with no error when the daemon
// has never written one.
func (f *StatusFile) Read() (*domain.StatusSnapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var snap domain.StatusSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
