//go:build linux

package infra

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/clipsentry/clipsentry/internal/domain"
)

const systemdUnitName = "clipsentry.service"

// systemd user unit: starts the daemon at login, restarts it on failure.
const systemdUnitTemplate = `[Unit]
Description=clipsentry clipboard auto-clear daemon

[Service]
Type=simple
ExecStart={{.ExecutablePath}} serve
Restart=on-failure
RestartSec=10

[Install]
WantedBy=default.target
`

type unitData struct {
	ExecutablePath string
}

// SystemdAutostart registers the daemon as a systemd user service.
type SystemdAutostart struct {
	unitDir  string
	unitPath string
}

// NewAutostartManager creates the platform autostart manager.
func NewAutostartManager(cfg Config) domain.AutostartManager {
	home, _ := os.UserHomeDir()
	dir := filepath.Join(home, ".config", "systemd", "user")
	return &SystemdAutostart{
		unitDir:  dir,
		unitPath: filepath.Join(dir, systemdUnitName),
	}
}

func (m *SystemdAutostart) render(execPath string) ([]byte, error) {
	tmpl, err := template.New("unit").Parse(systemdUnitTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse unit template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, unitData{ExecutablePath: execPath}); err != nil {
		return nil, fmt.Errorf("render unit: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes and enables the user unit.
func (m *SystemdAutostart) Install(execPath string) error {
	if err := os.MkdirAll(m.unitDir, 0755); err != nil {
		return err
	}

	content, err := m.render(execPath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(m.unitPath, content, 0644); err != nil {
		return err
	}

	if err := exec.Command("systemctl", "--user", "daemon-reload").Run(); err != nil {
		return fmt.Errorf("systemctl daemon-reload: %w", err)
	}
	return exec.Command("systemctl", "--user", "enable", "--now", systemdUnitName).Run()
}

// Uninstall disables and removes the user unit.
func (m *SystemdAutostart) Uninstall() error {
	_ = exec.Command("systemctl", "--user", "disable", "--now", systemdUnitName).Run()
	err := os.Remove(m.unitPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return exec.Command("systemctl", "--user", "daemon-reload").Run()
}

// Installed reports whether the unit file exists.
func (m *SystemdAutostart) Installed() bool {
	_, err := os.Stat(m.unitPath)
	return err == nil
}

// Path returns the unit file location.
func (m *SystemdAutostart) Path() string {
	return m.unitPath
}

var _ domain.AutostartManager = (*SystemdAutostart)(nil)
