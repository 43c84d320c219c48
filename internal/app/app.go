// Package app wires the process: store, platform client, lifecycle,
// reconciler, gateway and the admin HTTP server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"pressbot/pkg/bindings"
	"pressbot/pkg/config"
	"pressbot/pkg/control"
	"pressbot/pkg/gateway"
	"pressbot/pkg/logger"
	"pressbot/pkg/metrics"
	"pressbot/pkg/models"
	"pressbot/pkg/platform"
	"pressbot/pkg/reconcile"
	"pressbot/pkg/service"
	"pressbot/pkg/state"
	"pressbot/pkg/stats"
	"pressbot/pkg/store"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	client     platform.Client
	svc        *service.Service
	lifecycle  *control.Lifecycle
	reconciler *reconcile.Reconciler
	gw         *gateway.Gateway

	srv        *http.Server
	reconciled atomic.Bool
}

// New initializes resources that do not require a running context: state
// dirs, the store, the audit sink and the component graph. Call Run to
// start the reconciler, gateway and HTTP server and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	cfg := eff.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := state.EnsureStateDirs(eff.DBPath); err != nil {
		return nil, err
	}
	if err := store.Open(state.PathsVar.Store); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", state.PathsVar.Store, err)
	}
	if err := logger.AttachAuditFileSink(state.PathsVar.Audit); err != nil {
		logger.Warn("audit_sink_unavailable", "error", err)
	}

	var client platform.Client
	if cfg.Platform.Offline {
		client = platform.NewMemory()
		logger.Warn("platform_offline_mode")
	} else {
		client = platform.NewREST(cfg.Platform.APIBase, cfg.Platform.Token,
			cfg.Platform.RateLimit.RPS, cfg.Platform.RateLimit.Burst)
	}

	bstore := bindings.NewStore()
	counter := stats.New(cfg.CounterNames())
	lifecycle := control.NewLifecycle(bstore, counter, client, cfg.Assets)
	svc := service.New(bstore, counter, lifecycle, client)
	reconciler := reconcile.New(bstore, lifecycle, client)

	a := &App{
		eff:        eff,
		version:    version,
		commit:     commit,
		buildDate:  buildDate,
		client:     client,
		svc:        svc,
		lifecycle:  lifecycle,
		reconciler: reconciler,
	}
	if !cfg.Platform.Offline && cfg.Platform.GatewayURL != "" {
		a.gw = gateway.New(cfg.Platform.GatewayURL, cfg.Platform.Token, a.handlePress)
	}
	return a, nil
}

// Run starts every component and blocks until ctx is canceled or a fatal
// server error occurs.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()

	// startup reconciliation: repair every binding before accepting events
	if err := a.reconciler.Run(ctx); err != nil {
		return fmt.Errorf("startup reconciliation: %w", err)
	}
	a.reconciled.Store(true)
	a.seedGauges()

	sweepCancel, err := a.reconciler.StartSweep(ctx,
		a.eff.Config.Reconcile.SweepEnabled, a.eff.Config.Reconcile.Cron)
	if err != nil {
		return err
	}
	defer sweepCancel()

	if a.gw != nil {
		go func() {
			if err := a.gw.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("gateway_stopped", "error", err)
			}
		}()
	}

	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}

// handlePress routes one gateway press event into the activation protocol.
// Presses on unbound channels or with foreign custom ids are ignored with a
// warning; they are expected after out-of-band tampering.
func (a *App) handlePress(ctx context.Context, ev gateway.PressEvent) {
	asset, channelID, ok := control.ParseCustomID(ev.CustomID)
	if !ok {
		logger.Warn("press_unknown_custom_id", "custom_id", ev.CustomID)
		return
	}
	if channelID != ev.ChannelID {
		logger.Warn("press_channel_mismatch", "custom_id", ev.CustomID, "channel", ev.ChannelID)
		return
	}
	bound, err := a.svc.IsBound(ev.CommunityID, ev.ChannelID)
	if err != nil {
		logger.Error("press_bound_check_failed", "error", err)
		return
	}
	if !bound {
		logger.Warn("press_on_unbound_channel", "community", ev.CommunityID, "channel", ev.ChannelID)
		return
	}
	act := models.Activation{Asset: asset, ActorName: ev.ActorName, ActorAvatar: ev.ActorAvatar}
	if err := a.lifecycle.Activate(ctx, ev.CommunityID, ev.ChannelID, ev.MessageID, act); err != nil {
		logger.Error("activation_failed", "community", ev.CommunityID, "channel", ev.ChannelID, "error", err)
	}
}

// seedGauges initializes the bound-channel gauge from persisted state.
func (a *App) seedGauges() {
	communities, err := a.svc.Bindings.Communities()
	if err != nil {
		return
	}
	total := 0
	for _, c := range communities {
		bs, err := a.svc.Bindings.List(c)
		if err != nil {
			continue
		}
		total += len(bs)
	}
	metrics.BoundChannels.Set(float64(total))
}

func (a *App) shutdown() {
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.stopHTTP(shCtx)
	if err := store.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
}
