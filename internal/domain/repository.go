package domain

import "context"

// SettingsStore persists the settings record across daemon restarts.
// Implementation: SQLCipher-encrypted key/value table.
type SettingsStore interface {
	// Load reads the persisted record, applying defaults for missing keys.
	Load(ctx context.Context) (Settings, error)

	// Save persists the full record.
	Save(ctx context.Context, s Settings) error

	// Close releases the underlying database connection.
	Close() error
}

// KeyProvider abstracts the source of the store encryption key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// Requester delivers one envelope and awaits one structured response.
// Delivery is at-most-once, possibly zero; failures are distinguished via
// ErrEndpointGone and ErrTimeout.
type Requester interface {
	Request(ctx context.Context, env Envelope) (Response, error)
}

// SessionDirectory exposes the hub's connected sessions to the clearer.
type SessionDirectory interface {
	// Sessions returns currently connected sessions with the given role.
	Sessions(role SessionRole) []SessionInfo

	// ActiveSession returns the most recently active agent session.
	ActiveSession() (SessionInfo, bool)

	// RequestSession sends an envelope to one session and awaits its
	// response within the context deadline.
	RequestSession(ctx context.Context, sessionID string, env Envelope) (Response, error)
}

// ExecContext is one place the clear primitive can run.
type ExecContext interface {
	// ID names the context for logging and reports.
	ID() string

	// Privileged reports whether clearing is forbidden here.
	Privileged() bool

	// Clear makes the clipboard in this context contain the empty string.
	Clear(ctx context.Context) error
}

// Clearer executes the clear operation, trying execution contexts in
// priority order until one succeeds.
type Clearer interface {
	Clear(ctx context.Context) (ClearReport, error)
}

// Presenter projects coordinator state transitions onto user-visible
// feedback. It owns no state beyond its own auto-clear timers.
type Presenter interface {
	// ShowCountdown renders the remaining seconds, called once per second
	// while counting down.
	ShowCountdown(state CountdownState)

	// ShowCleared flashes the success indicator.
	ShowCleared()

	// ShowDisabled flashes the disabled indicator.
	ShowDisabled()

	// ShowIdle blanks the indicator.
	ShowIdle()
}

// AutostartManager registers the daemon with the OS login-time launcher.
// Implementation: launchd plist on macOS, systemd user unit on Linux.
type AutostartManager interface {
	// Install registers execPath to start at login.
	Install(execPath string) error

	// Uninstall removes the registration.
	Uninstall() error

	// Installed reports whether a registration exists.
	Installed() bool

	// Path returns the registration file location.
	Path() string
}

// ProcessManager handles OS process liveness for helper contexts.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// Kill terminates a process by PID.
	Kill(pid int) error

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}
