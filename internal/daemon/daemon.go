// Package daemon assembles and runs the background coordination process.
package daemon

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clipsentry/clipsentry/internal/clearer"
	"github.com/clipsentry/clipsentry/internal/coordinator"
	"github.com/clipsentry/clipsentry/internal/domain"
	"github.com/clipsentry/clipsentry/internal/infra"
	"github.com/clipsentry/clipsentry/internal/presenter"
	"github.com/clipsentry/clipsentry/internal/transport"
)

// Daemon wires the hub, coordinator, clearer and presenter together. It
// is constructed fresh on every cold start; only the settings database
// carries state across restarts.
type Daemon struct {
	cfg       infra.Config
	logger    *zap.Logger
	hub       *transport.Hub
	coord     *coordinator.Coordinator
	store     *infra.EncryptedSettingsStore
	offscreen *clearer.OffscreenHost
}

// New builds a daemon from configuration.
func New(cfg infra.Config, logger *zap.Logger) (*Daemon, error) {
	keyProvider := infra.NewFileKeyProvider(cfg.DataDir)
	key, err := infra.EnsureKey(keyProvider)
	if err != nil {
		return nil, fmt.Errorf("settings encryption key: %w", err)
	}

	store, err := infra.NewEncryptedSettingsStore(cfg.DataDir, key)
	if err != nil {
		return nil, fmt.Errorf("settings store: %w", err)
	}

	statusFile := infra.NewStatusFile(cfg.DataDir)
	badge := presenter.New(presenter.DefaultConfig(), func(snap domain.StatusSnapshot) {
		if err := statusFile.Write(snap); err != nil {
			logger.Warn("status snapshot write failed", zap.Error(err))
		}
	}, logger)

	d := &Daemon{cfg: cfg, logger: logger, store: store}

	// The hub's handler and the coordinator reference each other, so the
	// hub dispatches through the daemon.
	d.hub = transport.NewHub(cfg.AuthToken, func(session domain.SessionInfo, env domain.Envelope) domain.Response {
		return d.coord.HandleMessage(session, env)
	}, logger)

	clearCfg := clearer.DefaultConfig()
	procs := infra.NewProcessManager()
	d.offscreen = clearer.NewOffscreenHost(clearCfg, d.hub, procs, SpawnHelper, logger)
	chain := clearer.New(clearCfg, d.hub, d.offscreen, &AuxProcessClearer{}, logger)

	d.coord = coordinator.New(coordinator.DefaultConfig(), store, chain, badge, logger)
	badge.ShowIdle()

	return d, nil
}

// Run serves until the context is canceled. An in-flight countdown does
// not survive this returning; settings do, via the store.
func (d *Daemon) Run(ctx context.Context) error {
	d.coord.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.hub.Start(d.cfg.ListenAddr)
	}()

	d.logger.Info("daemon started", zap.String("listen", d.cfg.ListenAddr))

	select {
	case err := <-errCh:
		d.shutdown()
		if err != nil {
			return fmt.Errorf("hub serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		d.shutdown()
		return nil
	}
}

func (d *Daemon) shutdown() {
	d.logger.Info("daemon stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := d.hub.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("hub shutdown failed", zap.Error(err))
	}

	d.coord.Stop()
	d.offscreen.Shutdown()
	if err := d.store.Close(); err != nil {
		d.logger.Warn("settings store close failed", zap.Error(err))
	}
}
