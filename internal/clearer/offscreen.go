package clearer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clipsentry/clipsentry/internal/domain"
)

// SpawnFunc launches the hidden helper process and returns its PID.
type SpawnFunc func() (pid int, err error)

// OffscreenHost manages the dedicated hidden helper: a separate process
// that connects back to the hub as an offscreen session and exists only
// to run the clear primitive. Creation is asynchronous, so readiness is
// confirmed with a ping/pong handshake under bounded retries.
type OffscreenHost struct {
	cfg    Config
	dir    domain.SessionDirectory
	procs  domain.ProcessManager
	spawn  SpawnFunc
	logger *zap.Logger

	mu  sync.Mutex
	pid int
}

// NewOffscreenHost creates the helper host.
func NewOffscreenHost(cfg Config, dir domain.SessionDirectory, procs domain.ProcessManager, spawn SpawnFunc, logger *zap.Logger) *OffscreenHost {
	return &OffscreenHost{
		cfg:    cfg,
		dir:    dir,
		procs:  procs,
		spawn:  spawn,
		logger: logger,
	}
}

// Clear ensures the helper exists and is ready, then sends it the clear
// command with a bounded wait.
func (o *OffscreenHost) Clear(ctx context.Context) error {
	session, err := o.ensureReady(ctx)
	if err != nil {
		return err
	}

	env, err := domain.NewEnvelope("", domain.MsgOffscreenClearClipboard, nil)
	if err != nil {
		return err
	}
	resp, err := o.dir.RequestSession(ctx, session.ID, env)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", domain.ErrPrimitiveFailed, resp.Error)
	}
	return nil
}

// ensureReady returns a connected, ping-confirmed offscreen session,
// spawning the helper process if it is absent or dead.
func (o *OffscreenHost) ensureReady(ctx context.Context) (domain.SessionInfo, error) {
	o.mu.Lock()
	if len(o.dir.Sessions(domain.RoleOffscreen)) == 0 {
		if o.pid == 0 || !o.procs.IsRunning(o.pid) {
			pid, err := o.spawn()
			if err != nil {
				o.mu.Unlock()
				return domain.SessionInfo{}, fmt.Errorf("spawn offscreen helper: %w", err)
			}
			o.pid = pid
			o.logger.Info("offscreen helper spawned", zap.Int("pid", pid))
		}
	}
	o.mu.Unlock()

	// The helper may not accept messages immediately after creation.
	var lastErr error
	for attempt := 0; attempt < o.cfg.HandshakeRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(o.cfg.RetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return domain.SessionInfo{}, domain.ErrTimeout
			case <-timer.C:
			}
		}

		sessions := o.dir.Sessions(domain.RoleOffscreen)
		if len(sessions) == 0 {
			lastErr = errors.New("offscreen session not yet connected")
			continue
		}

		session := sessions[0]
		pingCtx, cancel := context.WithTimeout(ctx, o.cfg.HandshakeTimeout)
		env, _ := domain.NewEnvelope("", domain.MsgOffscreenPing, nil)
		resp, err := o.dir.RequestSession(pingCtx, session.ID, env)
		cancel()
		if err == nil && resp.Success {
			return session, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("offscreen ping rejected: %s", resp.Error)
		}
	}

	return domain.SessionInfo{}, fmt.Errorf("offscreen helper not ready: %w", lastErr)
}

// Shutdown kills the helper process if this host spawned one.
func (o *OffscreenHost) Shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pid != 0 && o.procs.IsRunning(o.pid) {
		if err := o.procs.Kill(o.pid); err != nil {
			o.logger.Warn("failed to kill offscreen helper", zap.Int("pid", o.pid), zap.Error(err))
		}
	}
	o.pid = 0
}
