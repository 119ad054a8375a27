// Package presenter projects coordinator state transitions onto the
// user-visible badge. It is a pure projection: no state of its own beyond
// the auto-clear flash timers.
package presenter

import (
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clipsentry/clipsentry/internal/domain"
)

// Badge indicator texts.
const (
	textBlank    = ""
	textDisabled = "OFF"
	textCleared  = "✓"
)

// Config holds presenter configuration.
type Config struct {
	// FlashTTL is how long the disabled/cleared indicators stay visible.
	FlashTTL time.Duration
}

// DefaultConfig returns default presenter configuration.
func DefaultConfig() Config {
	return Config{FlashTTL: 2 * time.Second}
}

// Sink receives every badge snapshot, e.g. to persist it for the status
// command. May be nil.
type Sink func(domain.StatusSnapshot)

// Badge renders coordinator state as a short text indicator: blank when
// idle, remaining seconds while counting down, short-lived "OFF" and
// success flashes that auto-clear.
type Badge struct {
	cfg    Config
	sink   Sink
	logger *zap.Logger

	mu         sync.Mutex
	text       string
	phase      domain.Phase
	countdown  domain.CountdownState
	flashTimer *time.Timer
}

// New creates a badge presenter.
func New(cfg Config, sink Sink, logger *zap.Logger) *Badge {
	return &Badge{cfg: cfg, sink: sink, logger: logger, phase: domain.PhaseIdle}
}

// Text returns the currently rendered indicator.
func (b *Badge) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// ShowCountdown renders the remaining seconds.
func (b *Badge) ShowCountdown(state domain.CountdownState) {
	b.set(strconv.Itoa(state.RemainingSeconds), domain.PhaseCountingDown, state, false)
}

// ShowIdle blanks the indicator.
func (b *Badge) ShowIdle() {
	b.set(textBlank, domain.PhaseIdle, domain.CountdownState{}, false)
}

// ShowDisabled flashes the disabled indicator, auto-clearing after the
// configured TTL.
func (b *Badge) ShowDisabled() {
	b.set(textDisabled, domain.PhaseDisabled, domain.CountdownState{}, true)
}

// ShowCleared flashes the success indicator after a confirmed clear.
func (b *Badge) ShowCleared() {
	b.set(textCleared, domain.PhaseIdle, domain.CountdownState{}, true)
}

func (b *Badge) set(text string, phase domain.Phase, state domain.CountdownState, flash bool) {
	b.mu.Lock()
	if b.flashTimer != nil {
		b.flashTimer.Stop()
		b.flashTimer = nil
	}
	b.text = text
	b.phase = phase
	b.countdown = state
	if flash {
		b.flashTimer = time.AfterFunc(b.cfg.FlashTTL, b.clearFlash)
	}
	snap := b.snapshotLocked()
	b.mu.Unlock()

	b.publish(snap)
}

// clearFlash blanks a transient indicator once its TTL expires. The phase
// is untouched: only the badge text auto-clears.
func (b *Badge) clearFlash() {
	b.mu.Lock()
	if b.flashTimer == nil {
		b.mu.Unlock()
		return
	}
	b.flashTimer = nil
	b.text = textBlank
	snap := b.snapshotLocked()
	b.mu.Unlock()

	b.publish(snap)
}

func (b *Badge) snapshotLocked() domain.StatusSnapshot {
	return domain.StatusSnapshot{
		Phase:            b.phase,
		Badge:            b.text,
		RemainingSeconds: b.countdown.RemainingSeconds,
		Deadline:         b.countdown.Deadline,
		DaemonPID:        os.Getpid(),
		UpdatedAt:        time.Now(),
	}
}

func (b *Badge) publish(snap domain.StatusSnapshot) {
	if b.sink != nil {
		b.sink(snap)
	}
	b.logger.Debug("badge updated",
		zap.String("badge", snap.Badge),
		zap.String("phase", string(snap.Phase)))
}

// Ensure Badge implements domain.Presenter.
var _ domain.Presenter = (*Badge)(nil)
