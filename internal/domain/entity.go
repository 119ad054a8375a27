// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"strings"
	"time"
)

// Settings is the process-wide configuration, persisted externally and
// cached by the coordinator.
type Settings struct {
	// ClearDelaySeconds is the countdown length, in [1, 300].
	ClearDelaySeconds int `json:"clipboardInterval"`
	// Enabled gates all paste handling. While false the coordinator
	// never acts on detection events.
	Enabled bool `json:"extensionEnabled"`
	// ClearOnlyOnPasswordPaste restricts countdowns to pastes into
	// password fields.
	ClearOnlyOnPasswordPaste bool `json:"clearOnlyOnPasswordPaste"`
}

const (
	MinClearDelaySeconds     = 1
	MaxClearDelaySeconds     = 300
	DefaultClearDelaySeconds = 10
)

// DefaultSettings returns the settings used until the persisted record is
// loaded, and whenever storage is unavailable.
func DefaultSettings() Settings {
	return Settings{
		ClearDelaySeconds:        DefaultClearDelaySeconds,
		Enabled:                  true,
		ClearOnlyOnPasswordPaste: false,
	}
}

// ValidDelay reports whether seconds is inside the allowed interval domain.
func ValidDelay(seconds int) bool {
	return seconds >= MinClearDelaySeconds && seconds <= MaxClearDelaySeconds
}

// Normalize clamps out-of-domain values loaded from storage back to the
// default rather than rejecting the whole record.
func (s Settings) Normalize() Settings {
	if !ValidDelay(s.ClearDelaySeconds) {
		s.ClearDelaySeconds = DefaultClearDelaySeconds
	}
	return s
}

// EventKind identifies the clipboard interaction a detector observed.
type EventKind string

const (
	KindCopy  EventKind = "copy"
	KindPaste EventKind = "paste"
)

// DetectionEvent is emitted by a detector per interaction, consumed once
// by the coordinator and never persisted.
type DetectionEvent struct {
	Kind            EventKind
	Timestamp       time.Time
	SourceURL       string
	IsPasswordField bool
}

// Phase is the coordinator's externally visible state.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseCountingDown Phase = "counting_down"
	PhaseDisabled     Phase = "disabled"
)

// CountdownState is owned exclusively by the coordinator: a single mutable
// instance, replaced (never stacked) when a new qualifying paste arrives.
type CountdownState struct {
	Active           bool
	RemainingSeconds int
	Deadline         time.Time
}

// SessionRole identifies what kind of endpoint a transport session is.
type SessionRole string

const (
	RoleAgent     SessionRole = "agent"     // detector embedded in a host surface
	RoleUI        SessionRole = "ui"        // settings/clear-now front end
	RoleOffscreen SessionRole = "offscreen" // hidden helper dedicated to clearing
)

// SessionInfo describes a connected transport session.
type SessionInfo struct {
	ID          string
	Role        SessionRole
	SourceURL   string
	ConnectedAt time.Time
}

// Privileged reports whether the session's host surface forbids running
// the clear primitive in it (internal browser pages and the like).
func (s SessionInfo) Privileged() bool {
	return PrivilegedURL(s.SourceURL)
}

var privilegedPrefixes = []string{
	"chrome://", "chrome-extension://", "edge://", "about:",
	"devtools://", "view-source:", "chrome-error://", "brave://",
}

// PrivilegedURL reports whether a source URL belongs to a privileged or
// internal surface where clearing must not be attempted.
func PrivilegedURL(url string) bool {
	for _, p := range privilegedPrefixes {
		if strings.HasPrefix(url, p) {
			return true
		}
	}
	return false
}

// ClearReport captures the outcome of one clear operation.
type ClearReport struct {
	Success    bool
	ContextID  string // execution context that succeeded, empty on failure
	Attempts   int
	ExecutedAt time.Time
}

// StatusSnapshot is the presenter's persisted projection of coordinator
// state, read by the status command.
type StatusSnapshot struct {
	Phase            Phase     `json:"phase"`
	Badge            string    `json:"badge"`
	RemainingSeconds int       `json:"remaining_seconds"`
	Deadline         time.Time `json:"deadline,omitempty"`
	DaemonPID        int       `json:"daemon_pid"`
	UpdatedAt        time.Time `json:"updated_at"`
}
