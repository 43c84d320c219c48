// Package reconcile restores consistency between persisted bindings and
// live control messages. It runs once at startup and, optionally, on a cron
// schedule so controls deleted out-of-band get repaired without a restart.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"pressbot/pkg/bindings"
	"pressbot/pkg/control"
	"pressbot/pkg/logger"
	"pressbot/pkg/metrics"
	"pressbot/pkg/models"
	"pressbot/pkg/platform"
)

// Reconciler verifies every persisted binding against the platform and
// repairs the ones whose control message is gone.
type Reconciler struct {
	bindings  *bindings.Store
	lifecycle *control.Lifecycle
	client    platform.Client
}

// New wires a reconciler over its collaborators.
func New(b *bindings.Store, l *control.Lifecycle, c platform.Client) *Reconciler {
	return &Reconciler{bindings: b, lifecycle: l, client: c}
}

// Run reconciles every community. Failure on one binding never aborts the
// others; errors are logged per binding and the pass continues. The
// returned error covers only the inability to enumerate state.
func (r *Reconciler) Run(ctx context.Context) error {
	communities, err := r.bindings.Communities()
	if err != nil {
		return fmt.Errorf("list communities: %w", err)
	}
	var repaired, reattached, failed int
	for _, community := range communities {
		bs, err := r.bindings.List(community)
		if err != nil {
			logger.Error("reconcile_list_failed", "community", community, "error", err)
			failed++
			continue
		}
		for _, b := range bs {
			action, err := r.reconcileBinding(ctx, community, b)
			if err != nil {
				logger.Error("reconcile_binding_failed", "community", community, "channel", b.ChannelID, "error", err)
				failed++
				continue
			}
			switch action {
			case actionRepaired:
				repaired++
			case actionReattached:
				reattached++
			}
		}
	}
	logger.Info("reconcile_pass_complete", "repaired", repaired, "reattached", reattached, "failed", failed)
	return nil
}

type action int

const (
	actionNone action = iota
	actionRepaired
	actionReattached
)

// reconcileBinding checks a single binding. A missing or never-created
// control message is repaired by creating a fresh control; a live one is
// reattached as-is (no new message).
func (r *Reconciler) reconcileBinding(ctx context.Context, community string, b models.ChannelBinding) (action, error) {
	if !b.HasControl() {
		// de-armed channel, e.g. a crash between deactivation and re-arm
		if _, err := r.lifecycle.CreateControl(ctx, community, b); err != nil {
			return actionNone, err
		}
		metrics.ReconcileRepairs.Inc()
		return actionRepaired, nil
	}
	_, err := r.client.FetchMessage(ctx, b.ChannelID, b.ControlMessageID)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			// deleted while offline; recreate
			if _, cerr := r.lifecycle.CreateControl(ctx, community, b); cerr != nil {
				return actionNone, cerr
			}
			metrics.ReconcileRepairs.Inc()
			return actionRepaired, nil
		}
		return actionNone, err
	}
	metrics.ReconcileReattached.Inc()
	logger.Debug("control_reattached", "community", community, "channel", b.ChannelID, "message", b.ControlMessageID)
	return actionReattached, nil
}

// StartSweep starts the periodic reconcile scheduler when enabled. Returns
// a cancel func stopping the scheduler.
func (r *Reconciler) StartSweep(ctx context.Context, enabled bool, cronExpr string) (context.CancelFunc, error) {
	if !enabled {
		logger.Info("reconcile_sweep_disabled")
		return func() {}, nil
	}
	if cronExpr == "" {
		cronExpr = "*/15 * * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("reconcile_invalid_cron", "cron", cronExpr)
		return nil, fmt.Errorf("invalid reconcile cron expression: %s", cronExpr)
	}
	ctx2, cancel := context.WithCancel(ctx)
	go r.runScheduler(ctx2, cronExpr)
	logger.Info("reconcile_sweep_started", "cron", cronExpr)
	return cancel, nil
}

// runScheduler sleeps until each next cron tick and triggers a pass.
func (r *Reconciler) runScheduler(ctx context.Context, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("reconcile_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("reconcile_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if err := r.Run(ctx); err != nil {
				logger.Error("reconcile_sweep_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("reconcile_scheduler_stopping")
			return
		}
	}
}
