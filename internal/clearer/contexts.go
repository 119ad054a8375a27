package clearer

import (
	"context"
	"fmt"
	"time"

	"github.com/clipsentry/clipsentry/internal/domain"
)

// agentContext runs the clear primitive inside one connected agent
// session, asking the detector there to execute it locally.
type agentContext struct {
	dir   domain.SessionDirectory
	info  domain.SessionInfo
	label string
}

func (a *agentContext) ID() string {
	return fmt.Sprintf("%s:%s", a.label, a.info.ID)
}

func (a *agentContext) Privileged() bool {
	return a.info.Privileged()
}

func (a *agentContext) Clear(ctx context.Context) error {
	env, err := domain.NewEnvelope("", domain.MsgClearClipboardRequest, nil)
	if err != nil {
		return err
	}
	resp, err := a.dir.RequestSession(ctx, a.info.ID, env)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", domain.ErrPrimitiveFailed, resp.Error)
	}
	return nil
}

// localContext runs the clear primitive in the daemon process itself.
type localContext struct {
	clear func(ctx context.Context) error
}

func (l *localContext) ID() string       { return "daemon-local" }
func (l *localContext) Privileged() bool { return false }

func (l *localContext) Clear(ctx context.Context) error {
	return l.clear(ctx)
}

// offscreenContext clears via the dedicated hidden helper process,
// retrying once after a short delay if the first attempt errors.
type offscreenContext struct {
	host *OffscreenHost
	cfg  Config
}

func (o *offscreenContext) ID() string       { return "offscreen" }
func (o *offscreenContext) Privileged() bool { return false }

func (o *offscreenContext) Clear(ctx context.Context) error {
	err := o.host.Clear(ctx)
	if err == nil {
		return nil
	}

	timer := time.NewTimer(o.cfg.RetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return domain.ErrTimeout
	case <-timer.C:
	}
	return o.host.Clear(ctx)
}

// auxContext hosts the primitive in a short-lived helper that is
// destroyed after a grace period regardless of confirmed success.
type auxContext struct {
	aux   AuxClearer
	grace time.Duration
}

func (a *auxContext) ID() string       { return "aux-helper" }
func (a *auxContext) Privileged() bool { return false }

func (a *auxContext) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.grace)
	defer cancel()
	return a.aux.ClearOnce(ctx)
}
