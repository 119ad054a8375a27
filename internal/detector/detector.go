// Package detector is the agent-side component embedded in host surfaces.
// It classifies clipboard interactions and reports them to the daemon,
// tracking daemon liveness so a dead channel never produces user-visible
// errors.
package detector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipsentry/clipsentry/internal/domain"
)

// Config holds detector configuration.
type Config struct {
	SourceURL      string        // URL of the host surface this instance observes
	ProbeInterval  time.Duration // how often to probe daemon liveness
	RequestTimeout time.Duration // bound on every transport round trip
}

// DefaultConfig returns default detector configuration.
func DefaultConfig(sourceURL string) Config {
	return Config{
		SourceURL:      sourceURL,
		ProbeInterval:  30 * time.Second,
		RequestTimeout: 3 * time.Second,
	}
}

// Detector observes clipboard interactions on one host surface. A single
// instance exists per surface; once the daemon is confirmed unreachable
// the instance goes permanently non-live and a fresh instance is created
// when the surface reloads.
type Detector struct {
	cfg       Config
	transport domain.Requester
	logger    *zap.Logger

	mu        sync.Mutex
	installed bool
	alive     bool
	stop      chan struct{}
}

// New creates a detector. It is not observing until Install is called.
func New(cfg Config, transport domain.Requester, logger *zap.Logger) *Detector {
	return &Detector{
		cfg:       cfg,
		transport: transport,
		logger:    logger,
		alive:     true,
		stop:      make(chan struct{}),
	}
}

// Install activates the detector and starts the liveness probe loop.
// Idempotent: a second call in the same instance is a no-op, installing
// no duplicate listeners and causing no duplicate events.
func (d *Detector) Install() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.installed {
		d.logger.Debug("detector already installed, skipping")
		return false
	}
	d.installed = true
	go d.probeLoop()
	return true
}

// Alive reports whether the daemon endpoint is still considered reachable.
func (d *Detector) Alive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alive
}

// Close stops the liveness probe loop.
func (d *Detector) Close() {
	d.markDead()
}

// OnPaste handles an observed paste of text into field. Empty or
// all-whitespace text is dropped so no-op pastes never fire countdowns.
// All failures are swallowed and logged: the host surface must never see
// an error from here.
func (d *Detector) OnPaste(ctx context.Context, text string, field FieldInfo) {
	if !d.ready() || IsBlank(text) {
		return
	}
	d.notify(ctx, domain.MsgPasteDetected, domain.PasteDetected{
		TimestampMs: time.Now().UnixMilli(),
		IsPassword:  field.IsPasswordField(),
		SourceURL:   d.cfg.SourceURL,
	})
}

// OnCopy handles observed copy/cut activity. Copies never start a
// countdown; the daemon uses them as presentation-only signals.
func (d *Detector) OnCopy(ctx context.Context) {
	if !d.ready() {
		return
	}
	d.notify(ctx, domain.MsgCopyDetected, domain.CopyDetected{
		TimestampMs: time.Now().UnixMilli(),
		SourceURL:   d.cfg.SourceURL,
	})
}

// OnContextMenuPaste handles a paste triggered from the context menu.
// The transferred text may not be observable synchronously, so the host
// provides a one-shot read callback invoked after a short settle delay.
// Detection here is best-effort and may legitimately miss.
func (d *Detector) OnContextMenuPaste(ctx context.Context, read func() (string, FieldInfo)) {
	if !d.ready() {
		return
	}
	timer := time.NewTimer(50 * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	text, field := read()
	d.OnPaste(ctx, text, field)
}

// WrapRead wraps a clipboard read operation. The wrapped operation's
// result and error are returned verbatim; a successful read additionally
// notifies the daemon as a paste. The notification is a side effect, not
// a replacement.
func (d *Detector) WrapRead(ctx context.Context, field FieldInfo, op func() (string, error)) (string, error) {
	text, err := op()
	if err == nil {
		d.OnPaste(ctx, text, field)
	}
	return text, err
}

// WrapWrite wraps a clipboard write operation, notifying the daemon of
// copy activity on success. Behavior of the wrapped operation is
// preserved exactly.
func (d *Detector) WrapWrite(ctx context.Context, op func() error) error {
	err := op()
	if err == nil {
		d.OnCopy(ctx)
	}
	return err
}

func (d *Detector) ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.installed && d.alive
}

// notify delivers one event. Sending into a dead channel is a silent
// no-op; EndpointGone permanently kills this instance.
func (d *Detector) notify(ctx context.Context, kind domain.MsgKind, payload any) {
	env, err := domain.NewEnvelope(uuid.NewString(), kind, payload)
	if err != nil {
		d.logger.Debug("encode event failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	defer cancel()

	if _, err := d.transport.Request(ctx, env); err != nil {
		if errors.Is(err, domain.ErrEndpointGone) {
			d.logger.Debug("daemon gone, detector going non-live")
			d.markDead()
			return
		}
		d.logger.Debug("event delivery failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

// probeLoop checks daemon reachability at a fixed interval. One confirmed
// EndpointGone is permanent: there is no recovery for this instance.
func (d *Detector) probeLoop() {
	ticker := time.NewTicker(d.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), d.cfg.RequestTimeout)
			env, _ := domain.NewEnvelope(uuid.NewString(), domain.MsgPing, nil)
			_, err := d.transport.Request(ctx, env)
			cancel()
			if errors.Is(err, domain.ErrEndpointGone) {
				d.logger.Debug("liveness probe failed, detector going non-live")
				d.markDead()
				return
			}
		}
	}
}

func (d *Detector) markDead() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.alive {
		return
	}
	d.alive = false
	close(d.stop)
}
