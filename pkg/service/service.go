// Package service is the operation surface exposed to command layers
// (admin HTTP API, gateway command handlers): the binding provisioning and
// teardown transactions and the stats display payloads.
package service

import (
	"context"
	"errors"
	"fmt"

	"pressbot/pkg/bindings"
	"pressbot/pkg/control"
	"pressbot/pkg/logger"
	"pressbot/pkg/metrics"
	"pressbot/pkg/models"
	"pressbot/pkg/platform"
	"pressbot/pkg/stats"
)

// Service bundles the state a command layer needs behind a single explicit
// handle; no package-level singletons for cross-cutting lookups.
type Service struct {
	Bindings  *bindings.Store
	Counter   *stats.Counter
	Lifecycle *control.Lifecycle
	Client    platform.Client
}

// New wires a Service.
func New(b *bindings.Store, c *stats.Counter, l *control.Lifecycle, client platform.Client) *Service {
	return &Service{Bindings: b, Counter: c, Lifecycle: l, Client: client}
}

// CreateBinding provisions a dedicated endpoint for the channel, persists
// the binding, and arms the channel with its initial control. Fails with
// bindings.ErrAlreadyBound when the channel is already bound; the failed
// call leaves no state behind.
func (s *Service) CreateBinding(ctx context.Context, community, channelID string) (models.ChannelBinding, error) {
	bound, err := s.Bindings.IsBound(community, channelID)
	if err != nil {
		return models.ChannelBinding{}, err
	}
	if bound {
		return models.ChannelBinding{}, fmt.Errorf("channel %s in community %s: %w", channelID, community, bindings.ErrAlreadyBound)
	}

	ep, err := s.Client.CreateEndpoint(ctx, channelID, "press-to-post")
	if err != nil {
		return models.ChannelBinding{}, fmt.Errorf("provision endpoint for channel %s: %w", channelID, err)
	}
	b, err := s.Bindings.Create(community, channelID, ep.ID, ep.Token)
	if err != nil {
		// roll the endpoint back so the failed call leaves nothing behind
		_ = s.Client.DeleteEndpoint(ctx, ep.ID)
		return models.ChannelBinding{}, err
	}
	if _, err := s.Lifecycle.CreateControl(ctx, community, b); err != nil {
		_ = s.Bindings.Delete(community, channelID)
		_ = s.Client.DeleteEndpoint(ctx, ep.ID)
		return models.ChannelBinding{}, err
	}

	metrics.BoundChannels.Inc()
	logger.AuditEvent("binding_provisioned", "community", community, "channel", channelID, "endpoint", ep.ID)
	// return the stored binding so the control reference is populated
	return s.Bindings.Get(community, channelID)
}

// DeleteBinding tears down the endpoint, the live control and the binding
// record. It fails loudly with bindings.ErrUnknownBinding when the channel
// is not bound.
func (s *Service) DeleteBinding(ctx context.Context, community, channelID string) error {
	b, err := s.Bindings.Get(community, channelID)
	if err != nil {
		return err
	}
	if b.HasControl() {
		if err := s.Client.DeleteMessage(ctx, channelID, b.ControlMessageID); err != nil && !errors.Is(err, platform.ErrNotFound) {
			return fmt.Errorf("remove control for channel %s: %w", channelID, err)
		}
	}
	if err := s.Client.DeleteEndpoint(ctx, b.EndpointID); err != nil && !errors.Is(err, platform.ErrNotFound) {
		return fmt.Errorf("tear down endpoint %s: %w", b.EndpointID, err)
	}
	if err := s.Bindings.Delete(community, channelID); err != nil {
		return err
	}
	metrics.BoundChannels.Dec()
	logger.AuditEvent("binding_torn_down", "community", community, "channel", channelID, "endpoint", b.EndpointID)
	return nil
}

// IsBound reports whether the channel has a binding.
func (s *Service) IsBound(community, channelID string) (bool, error) {
	return s.Bindings.IsBound(community, channelID)
}

// ListBindings returns all bindings of a community.
func (s *Service) ListBindings(community string) ([]models.ChannelBinding, error) {
	return s.Bindings.List(community)
}

// Stats returns the display payload (counts and per-hour rates) for the
// community scope, or the global scope when community is empty.
func (s *Service) Stats(community string) (models.ScopeStats, error) {
	scope := stats.Global()
	if community != "" {
		scope = stats.Community(community)
	}
	return s.Counter.Snapshot(scope)
}
