//go:build windows

package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/clipsentry/clipsentry/internal/domain"
)

// StartupAutostart registers the daemon via a .bat launcher in the user's
// Startup folder.
type StartupAutostart struct {
	batPath string
}

// NewAutostartManager creates the platform autostart manager.
func NewAutostartManager(cfg Config) domain.AutostartManager {
	appData := os.Getenv("APPDATA")
	dir := filepath.Join(appData, "Microsoft", "Windows", "Start Menu", "Programs", "Startup")
	return &StartupAutostart{batPath: filepath.Join(dir, "clipsentry.bat")}
}

// Install writes the launcher script.
func (m *StartupAutostart) Install(execPath string) error {
	content := fmt.Sprintf("@echo off\r\nstart \"\" \"%s\" start\r\n", execPath)
	return os.WriteFile(m.batPath, []byte(content), 0644)
}

// Uninstall removes the launcher script.
func (m *StartupAutostart) Uninstall() error {
	err := os.Remove(m.batPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Installed reports whether the launcher exists.
func (m *StartupAutostart) Installed() bool {
	_, err := os.Stat(m.batPath)
	return err == nil
}

// Path returns the launcher location.
func (m *StartupAutostart) Path() string {
	return m.batPath
}

var _ domain.AutostartManager = (*StartupAutostart)(nil)
