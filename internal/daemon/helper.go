package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/clipsentry/clipsentry/internal/clipboard"
	"github.com/clipsentry/clipsentry/internal/domain"
	"github.com/clipsentry/clipsentry/internal/infra"
	"github.com/clipsentry/clipsentry/internal/transport"
)

// RunHelperOnce hosts the clear primitive for a single invocation: clear
// and exit. Used by the auxiliary fallback context.
func RunHelperOnce(ctx context.Context, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := clipboard.Clear(ctx); err != nil {
		logger.Warn("one-shot clear failed", zap.Error(err))
		return err
	}
	return nil
}

// RunHelper runs the dedicated offscreen helper: it connects back to the
// hub as an offscreen session and answers readiness pings and clear
// commands until the daemon disconnects it.
func RunHelper(ctx context.Context, cfg infra.Config, logger *zap.Logger) error {
	handler := func(env domain.Envelope) domain.Response {
		switch env.Kind {
		case domain.MsgOffscreenPing:
			return domain.Response{Success: true}
		case domain.MsgOffscreenClearClipboard:
			clearCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := clipboard.Clear(clearCtx); err != nil {
				logger.Warn("offscreen clear failed", zap.Error(err))
				return domain.Response{Success: false, Error: err.Error()}
			}
			return domain.Response{Success: true}
		default:
			return domain.Response{Success: false, Error: "unsupported offscreen command"}
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := transport.Dial(dialCtx, cfg.WSURL(), cfg.AuthToken, domain.RoleOffscreen, "", handler, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	logger.Info("offscreen helper connected")

	select {
	case <-ctx.Done():
		return nil
	case <-client.Done():
		return nil
	}
}
