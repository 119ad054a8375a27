// Package coordinator implements the daemon's core state machine. It owns
// the cached settings and the debounced countdown, and decides when the
// clearer runs. All mutation is funneled through HandleMessage; there is
// no ambient global state.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clipsentry/clipsentry/internal/domain"
)

// Config holds coordinator configuration.
type Config struct {
	// SettingsLoadTimeout bounds the startup settings fetch. Until it
	// completes, defaults are in effect and reads return best-known values
	// without blocking.
	SettingsLoadTimeout time.Duration

	// StoreTimeout bounds each settings write.
	StoreTimeout time.Duration

	// ClearTimeout bounds one full run of the clear fallback chain.
	ClearTimeout time.Duration

	// Second is the length of one countdown second. Tests shrink it.
	Second time.Duration
}

// DefaultConfig returns default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		SettingsLoadTimeout: 5 * time.Second,
		StoreTimeout:        3 * time.Second,
		ClearTimeout:        15 * time.Second,
		Second:              time.Second,
	}
}

// Coordinator is constructed once per daemon lifetime. The process may be
// torn down at any moment, so settings are the only state that survives a
// restart; an in-flight countdown does not.
type Coordinator struct {
	cfg       Config
	store     domain.SettingsStore
	clearer   domain.Clearer
	presenter domain.Presenter
	logger    *zap.Logger

	mu        sync.Mutex
	settings  domain.Settings
	loaded    bool
	mutated   bool
	phase     domain.Phase
	remaining int
	deadline  time.Time
	gen       uint64
	timer     *time.Timer
}

// New creates a coordinator running on defaults until Start loads the
// persisted settings.
func New(cfg Config, store domain.SettingsStore, clearer domain.Clearer, presenter domain.Presenter, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		store:     store,
		clearer:   clearer,
		presenter: presenter,
		logger:    logger,
		settings:  domain.DefaultSettings(),
		phase:     domain.PhaseIdle,
	}
}

// Start kicks off the asynchronous settings load. Message handling is
// never blocked on it: until the load finishes the defaults apply.
func (c *Coordinator) Start() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.SettingsLoadTimeout)
		defer cancel()

		s, err := c.store.Load(ctx)
		if err != nil {
			c.logger.Warn("settings load failed, operating on defaults", zap.Error(err))
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.mutated {
			// A settings mutation won the race against the load; the
			// in-memory record is newer than the store read.
			c.loaded = true
			c.logger.Info("settings changed during load, keeping in-memory record")
			return
		}
		c.settings = s.Normalize()
		c.loaded = true
		if !c.settings.Enabled && c.phase != domain.PhaseCountingDown {
			c.phase = domain.PhaseDisabled
		}
		c.logger.Info("settings loaded",
			zap.Int("delay_seconds", c.settings.ClearDelaySeconds),
			zap.Bool("enabled", c.settings.Enabled),
			zap.Bool("password_only", c.settings.ClearOnlyOnPasswordPaste))
	}()
}

// Stop cancels any pending countdown without clearing.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelCountdownLocked()
	c.phase = domain.PhaseIdle
}

// Settings returns the best-known settings record. Never blocks on the
// startup load.
func (c *Coordinator) Settings() domain.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Countdown returns the current countdown state.
func (c *Coordinator) Countdown() domain.CountdownState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CountdownState{
		Active:           c.phase == domain.PhaseCountingDown,
		RemainingSeconds: c.remaining,
		Deadline:         c.deadline,
	}
}

// Phase returns the coordinator's current state.
func (c *Coordinator) Phase() domain.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// HandleMessage is the single entry point for every inbound envelope.
func (c *Coordinator) HandleMessage(session domain.SessionInfo, env domain.Envelope) domain.Response {
	msg, err := domain.DecodeMessage(env)
	if err != nil {
		return domain.Response{Success: false, Error: err.Error()}
	}

	switch m := msg.(type) {
	case domain.PasteDetected:
		return c.handlePaste(m)
	case domain.CopyDetected:
		// Presentation-only signal; copies never drive the countdown.
		c.logger.Debug("copy detected", zap.String("source", m.SourceURL))
		return domain.Response{Success: true}
	case domain.GetSettings:
		s := c.Settings()
		return domain.Response{Success: true, Settings: &s}
	case domain.ToggleExtension:
		return c.setEnabled(m.Enabled)
	case domain.UpdateSettings:
		return c.setInterval(m.Interval)
	case domain.UpdatePasswordOnly:
		return c.setPasswordOnly(m.Value)
	case domain.ClearClipboardNow:
		return c.clearNow()
	case domain.Ping:
		return domain.Response{Success: true}
	case domain.UnknownMessage:
		return domain.Response{Success: false, Error: fmt.Sprintf("unknown message kind %q", m.Kind)}
	default:
		return domain.Response{Success: false, Error: "unhandled message"}
	}
}

// handlePaste starts or debounce-restarts the countdown for a qualifying
// paste. Never stacks: a new qualifying paste replaces the pending one.
func (c *Coordinator) handlePaste(m domain.PasteDetected) domain.Response {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.settings.Enabled {
		return domain.Response{Success: true}
	}
	if c.settings.ClearOnlyOnPasswordPaste && !m.IsPassword {
		c.logger.Debug("paste ignored by password-only policy",
			zap.String("source", m.SourceURL))
		return domain.Response{Success: true}
	}

	c.startCountdownLocked()
	c.logger.Info("countdown started",
		zap.Int("delay_seconds", c.settings.ClearDelaySeconds),
		zap.Bool("password_field", m.IsPassword),
		zap.String("source", m.SourceURL))
	return domain.Response{Success: true}
}

// startCountdownLocked cancels any pending countdown and schedules a full
// one. The generation counter guarantees a superseded timer callback can
// never fire a clear.
func (c *Coordinator) startCountdownLocked() {
	c.cancelCountdownLocked()

	c.gen++
	g := c.gen
	c.phase = domain.PhaseCountingDown
	c.remaining = c.settings.ClearDelaySeconds
	c.deadline = time.Now().Add(time.Duration(c.settings.ClearDelaySeconds) * c.cfg.Second)
	c.presenter.ShowCountdown(domain.CountdownState{
		Active:           true,
		RemainingSeconds: c.remaining,
		Deadline:         c.deadline,
	})
	c.timer = time.AfterFunc(c.cfg.Second, func() { c.tick(g) })
}

// cancelCountdownLocked stops the pending tick. Canceled countdowns issue
// zero clear commands.
func (c *Coordinator) cancelCountdownLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.remaining = 0
	c.deadline = time.Time{}
}

// tick advances the countdown once per second. A stale generation means
// this countdown was superseded or canceled after the timer fired.
func (c *Coordinator) tick(g uint64) {
	c.mu.Lock()
	if g != c.gen {
		c.mu.Unlock()
		return
	}

	c.remaining--
	if c.remaining > 0 {
		c.presenter.ShowCountdown(domain.CountdownState{
			Active:           true,
			RemainingSeconds: c.remaining,
			Deadline:         c.deadline,
		})
		c.timer = time.AfterFunc(c.cfg.Second, func() { c.tick(g) })
		c.mu.Unlock()
		return
	}

	// Deadline reached: exactly one clear command per expiry.
	c.cancelCountdownLocked()
	c.phase = domain.PhaseIdle
	c.mu.Unlock()

	c.presenter.ShowIdle()
	c.executeClear("countdown expired")
}

// clearNow cancels any countdown and issues an immediate clear.
func (c *Coordinator) clearNow() domain.Response {
	c.mu.Lock()
	wasCounting := c.phase == domain.PhaseCountingDown
	c.cancelCountdownLocked()
	if c.phase != domain.PhaseDisabled {
		c.phase = domain.PhaseIdle
	}
	c.mu.Unlock()

	if wasCounting {
		c.presenter.ShowIdle()
	}

	report := c.executeClear("manual clear")
	if !report.Success {
		return domain.Response{Success: false, Error: "could not clear clipboard in any context"}
	}
	return domain.Response{Success: true, Message: "clipboard cleared"}
}

func (c *Coordinator) executeClear(reason string) domain.ClearReport {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ClearTimeout)
	defer cancel()

	report, err := c.clearer.Clear(ctx)
	if err != nil || !report.Success {
		c.logger.Warn("clear failed in all contexts",
			zap.String("reason", reason),
			zap.Int("attempts", report.Attempts),
			zap.Error(err))
		return report
	}

	c.logger.Info("clipboard cleared",
		zap.String("reason", reason),
		zap.String("context", report.ContextID),
		zap.Int("attempts", report.Attempts))
	c.presenter.ShowCleared()
	return report
}

// setEnabled flips the kill switch. Disabling mid-countdown cancels with
// no side effect on the clipboard. Enabling only transitions out of
// Disabled: a redundant enable while counting down leaves the countdown
// untouched, so the reported state keeps matching the running timer.
func (c *Coordinator) setEnabled(enabled bool) domain.Response {
	c.mu.Lock()
	c.settings.Enabled = enabled
	c.mutated = true
	leftDisabled := enabled && c.phase == domain.PhaseDisabled
	if leftDisabled {
		c.phase = domain.PhaseIdle
	} else if !enabled {
		c.cancelCountdownLocked()
		c.phase = domain.PhaseDisabled
	}
	s := c.settings
	c.mu.Unlock()

	if leftDisabled {
		c.presenter.ShowIdle()
	} else if !enabled {
		c.presenter.ShowDisabled()
	}
	c.logger.Info("extension toggled", zap.Bool("enabled", enabled))
	return c.persist(s)
}

// setInterval changes the delay. An active countdown restarts at the new
// full delay; the already-elapsed portion is not carried over.
func (c *Coordinator) setInterval(seconds int) domain.Response {
	if !domain.ValidDelay(seconds) {
		return domain.Response{
			Success: false,
			Error: fmt.Sprintf("interval must be between %d and %d seconds",
				domain.MinClearDelaySeconds, domain.MaxClearDelaySeconds),
		}
	}

	c.mu.Lock()
	c.settings.ClearDelaySeconds = seconds
	c.mutated = true
	if c.phase == domain.PhaseCountingDown {
		c.startCountdownLocked()
	}
	s := c.settings
	c.mu.Unlock()

	c.logger.Info("clear delay updated", zap.Int("seconds", seconds))
	return c.persist(s)
}

func (c *Coordinator) setPasswordOnly(value bool) domain.Response {
	c.mu.Lock()
	c.settings.ClearOnlyOnPasswordPaste = value
	c.mutated = true
	s := c.settings
	c.mu.Unlock()

	c.logger.Info("password-only policy updated", zap.Bool("value", value))
	return c.persist(s)
}

// persist writes the record with a bounded wait. The in-memory value is
// already applied; a storage failure only surfaces as a non-success
// response so the UI can show its save-error indicator.
func (c *Coordinator) persist(s domain.Settings) domain.Response {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.StoreTimeout)
	defer cancel()

	if err := c.store.Save(ctx, s); err != nil {
		c.logger.Warn("settings save failed", zap.Error(err))
		return domain.Response{Success: false, Error: "failed to save settings"}
	}
	return domain.Response{Success: true}
}
