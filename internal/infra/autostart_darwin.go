//go:build darwin

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

const launchdLabel = "com.clipsentry.daemon"

// LaunchAgent plist: starts the daemon at login, restarts it on crash.
const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>serve</string>
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>KeepAlive</key>
    <dict>
        <key>Crashed</key>
        <true/>
    </dict>

    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{.LogPath}}</string>

    <key>ProcessType</key>
    <string>Background</string>

    <key>ThrottleInterval</key>
    <integer>10</integer>
</dict>
</plist>`

type plistData struct {
	Label          string
	ExecutablePath string
	LogPath        string
}

// LaunchdAutostart registers the daemon as a per-user LaunchAgent.
type LaunchdAutostart struct {
	plistDir  string
	plistPath string
	logPath   string
}

// NewAutostartManager creates the platform autostart manager.
func NewAutostartManager(cfg Config) domain.AutostartManager {
	home, _ := os.UserHomeDir()
	dir := filepath.Join(home, "Library/LaunchAgents")
	return &LaunchdAutostart{
		plistDir:  dir,
		plistPath: filepath.Join(dir, launchdLabel+".plist"),
		logPath:   cfg.LogPath,
	}
}

func (m *LaunchdAutostart) render(execPath string) ([]byte, error) {
	tmpl, err := template.New("plist").Parse(launchAgentTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse plist template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, plistData{
		Label:          launchdLabel,
		ExecutablePath: execPath,
		LogPath:        m.logPath,
	})
	if err != nil {
		return nil, fmt.Errorf("render plist: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes and loads the LaunchAgent plist.
func (m *LaunchdAutostart) Install(execPath string) error {
	if err := os.MkdirAll(m.plistDir, 0755); err != nil {
		return err
	}

	content, err := m.render(execPath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(m.plistPath, content, 0644); err != nil {
		return err
	}

	return exec.Command("launchctl", "load", m.plistPath).Run()
}

// Uninstall unloads and removes the plist.
func (m *LaunchdAutostart) Uninstall() error {
	_ = exec.Command("launchctl", "unload", m.plistPath).Run()
	err := os.Remove(m.plistPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Installed reports whether the plist exists.
func (m *LaunchdAutostart) Installed() bool {
	_, err := os.Stat(m.plistPath)
	return err == nil
}

// Path returns the plist location.
func (m *LaunchdAutostart) Path() string {
	return m.plistPath
}

var _ domain.AutostartManager = (*LaunchdAutostart)(nil)
