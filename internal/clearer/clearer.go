// Package clearer executes the clear operation, trying execution contexts
// in priority order until one succeeds: the active agent surface, other
// agent surfaces, the daemon's own primitive, a dedicated offscreen helper
// process, and finally a short-lived auxiliary helper.
package clearer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/clipsentry/clipsentry/internal/clipboard"
	"github.com/clipsentry/clipsentry/internal/domain"
)

// Config holds clearer configuration.
type Config struct {
	// RequestTimeout bounds each per-context clear attempt.
	RequestTimeout time.Duration

	// HandshakeTimeout bounds one offscreen readiness ping.
	HandshakeTimeout time.Duration

	// HandshakeRetries bounds how often the offscreen handshake is retried
	// while the helper comes up.
	HandshakeRetries int

	// RetryDelay is the pause before the single offscreen clear retry and
	// between handshake attempts.
	RetryDelay time.Duration

	// GracePeriod is how long the auxiliary helper may live.
	GracePeriod time.Duration
}

// DefaultConfig returns default clearer configuration.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:   3 * time.Second,
		HandshakeTimeout: 1500 * time.Millisecond,
		HandshakeRetries: 5,
		RetryDelay:       500 * time.Millisecond,
		GracePeriod:      2 * time.Second,
	}
}

// AuxClearer hosts the clear primitive in a short-lived helper created
// only for that purpose.
type AuxClearer interface {
	ClearOnce(ctx context.Context) error
}

// Chain is the ordered-fallback clearer. Either offscreen or aux may be
// nil when the capability does not exist on this install.
type Chain struct {
	cfg       Config
	sessions  domain.SessionDirectory
	offscreen *OffscreenHost
	aux       AuxClearer
	logger    *zap.Logger

	// localClear is the daemon-side primitive; swapped in tests.
	localClear func(ctx context.Context) error
}

// New creates the fallback chain.
func New(cfg Config, sessions domain.SessionDirectory, offscreen *OffscreenHost, aux AuxClearer, logger *zap.Logger) *Chain {
	return &Chain{
		cfg:        cfg,
		sessions:   sessions,
		offscreen:  offscreen,
		aux:        aux,
		logger:     logger,
		localClear: clipboard.Clear,
	}
}

// Clear walks the contexts in priority order, skipping privileged ones,
// and stops at the first success. Exhaustion is an overall failure: it is
// logged, never surfaced as a user-facing error beyond a non-success
// report.
func (ch *Chain) Clear(ctx context.Context) (domain.ClearReport, error) {
	report := domain.ClearReport{ExecutedAt: time.Now()}

	for _, ec := range ch.contexts() {
		if ec.Privileged() {
			ch.logger.Debug("skipping privileged context", zap.String("context", ec.ID()))
			continue
		}

		report.Attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, ch.cfg.RequestTimeout)
		err := ec.Clear(attemptCtx)
		cancel()

		if err == nil {
			report.Success = true
			report.ContextID = ec.ID()
			return report, nil
		}
		ch.logger.Debug("clear attempt failed",
			zap.String("context", ec.ID()), zap.Error(err))
	}

	return report, domain.ErrPrimitiveFailed
}

// contexts assembles the current priority order. Session contexts are
// rebuilt per clear because sessions come and go.
func (ch *Chain) contexts() []domain.ExecContext {
	var out []domain.ExecContext

	active, hasActive := ch.sessions.ActiveSession()
	if hasActive {
		out = append(out, &agentContext{dir: ch.sessions, info: active, label: "active-agent"})
	}
	for _, info := range ch.sessions.Sessions(domain.RoleAgent) {
		if hasActive && info.ID == active.ID {
			continue
		}
		out = append(out, &agentContext{dir: ch.sessions, info: info, label: "agent"})
	}

	out = append(out, &localContext{clear: ch.localClear})

	if ch.offscreen != nil {
		out = append(out, &offscreenContext{host: ch.offscreen, cfg: ch.cfg})
	}
	if ch.aux != nil {
		out = append(out, &auxContext{aux: ch.aux, grace: ch.cfg.GracePeriod})
	}
	return out
}

// Ensure Chain implements domain.Clearer.
var _ domain.Clearer = (*Chain)(nil)
