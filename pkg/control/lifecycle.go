// Package control owns the interactive control lifecycle: creating the
// control message, guarding its deletion, and running the activation
// protocol that keeps at most one control live per channel.
package control

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"pressbot/pkg/bindings"
	"pressbot/pkg/config"
	"pressbot/pkg/logger"
	"pressbot/pkg/metrics"
	"pressbot/pkg/models"
	"pressbot/pkg/platform"
	"pressbot/pkg/stats"
)

const customIDPrefix = "press"

// BuildCustomID returns the control button id for an asset on a channel.
func BuildCustomID(asset, channelID string) string {
	return customIDPrefix + ":" + asset + ":" + channelID
}

// ParseCustomID splits a control button id into asset and channel.
func ParseCustomID(id string) (asset, channelID string, ok bool) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) != 3 || parts[0] != customIDPrefix {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// Lifecycle creates, destroys and rebinds control messages for bound
// channels. Activations on the same channel are serialized by a per-channel
// lock; the message-id match check guards deletion against races and
// external tampering.
type Lifecycle struct {
	bindings *bindings.Store
	counter  *stats.Counter
	client   platform.Client
	assets   []config.AssetConfig

	locks sync.Map // channel id -> *sync.Mutex
}

// NewLifecycle wires the lifecycle over its collaborators.
func NewLifecycle(b *bindings.Store, c *stats.Counter, client platform.Client, assets []config.AssetConfig) *Lifecycle {
	return &Lifecycle{bindings: b, counter: c, client: client, assets: assets}
}

func (l *Lifecycle) channelLock(channelID string) *sync.Mutex {
	mu, _ := l.locks.LoadOrStore(channelID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// payload renders the control message for a channel: one button per
// configured asset variant.
func (l *Lifecycle) payload(channelID string) platform.ControlPayload {
	p := platform.ControlPayload{}
	for _, a := range l.assets {
		p.Buttons = append(p.Buttons, platform.Button{
			CustomID: BuildCustomID(a.Name, channelID),
			Label:    a.Label,
			Style:    a.Style,
		})
	}
	return p
}

// CreateControl renders a fresh control message into the bound channel and
// persists its id as the tracked control reference. This is the only way a
// binding transitions to CONTROL_LIVE. Exactly one message is sent.
func (l *Lifecycle) CreateControl(ctx context.Context, community string, b models.ChannelBinding) (platform.Message, error) {
	msg, err := l.client.SendMessage(ctx, b.ChannelID, l.payload(b.ChannelID))
	if err != nil {
		return platform.Message{}, fmt.Errorf("create control for channel %s: %w", b.ChannelID, err)
	}
	if err := l.bindings.SetControl(community, b.ChannelID, msg.ID); err != nil {
		// the reference was never persisted; take the orphaned message back
		// down rather than leaving an untracked control in the channel
		if derr := l.client.DeleteMessage(ctx, b.ChannelID, msg.ID); derr != nil && !errors.Is(derr, platform.ErrNotFound) {
			logger.Warn("orphan_control_cleanup_failed", "channel", b.ChannelID, "message", msg.ID, "error", derr)
		}
		return platform.Message{}, err
	}
	logger.Info("control_created", "community", community, "channel", b.ChannelID, "message", msg.ID)
	return msg, nil
}

// DeactivateControl deletes the control message after verifying it is the
// one the binding tracks. On mismatch (externally replaced or stale) the
// deletion is skipped: deleting the wrong message is worse than leaving a
// dead button behind. The mismatch is logged, never raised.
func (l *Lifecycle) DeactivateControl(ctx context.Context, community string, b models.ChannelBinding, messageID string) error {
	if messageID != b.ControlMessageID {
		logger.Warn("control_mismatch",
			"community", community,
			"channel", b.ChannelID,
			"tracked", b.ControlMessageID,
			"got", messageID)
		metrics.ControlMismatches.Inc()
		return nil
	}
	if err := l.client.DeleteMessage(ctx, b.ChannelID, messageID); err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			// already gone; the press still wins the race
			logger.Info("control_already_deleted", "channel", b.ChannelID, "message", messageID)
		} else {
			return fmt.Errorf("deactivate control on channel %s: %w", b.ChannelID, err)
		}
	}
	// record the de-armed state so a crash before re-arming is visible
	return l.bindings.SetControl(community, b.ChannelID, "")
}

// Activate runs the activation protocol for one control press:
//
//	1. deactivate the pressed control (no second press can double-fire)
//	2. deliver the asset through the channel's endpoint, attributed to
//	   the pressing actor
//	3. count the press in the community and global scopes
//	4. re-arm the channel with a fresh control
//
// Delivery failures propagate to the caller and leave the channel de-armed;
// an explicit re-provisioning or the reconciler repairs it.
func (l *Lifecycle) Activate(ctx context.Context, community, channelID, messageID string, act models.Activation) error {
	mu := l.channelLock(channelID)
	mu.Lock()
	defer mu.Unlock()

	b, err := l.bindings.Get(community, channelID)
	if err != nil {
		return err
	}
	asset, ok := assetByName(l.assets, act.Asset)
	if !ok {
		return fmt.Errorf("unknown asset %q", act.Asset)
	}

	if err := l.DeactivateControl(ctx, community, b, messageID); err != nil {
		return err
	}

	d := platform.Delivery{
		FilePath:    asset.File,
		DisplayName: act.ActorName,
		AvatarURL:   act.ActorAvatar,
	}
	if err := l.client.ExecuteEndpoint(ctx, b.EndpointID, b.EndpointToken, d); err != nil {
		metrics.DeliveryFailures.Inc()
		logger.Error("delivery_failed", "community", community, "channel", channelID, "asset", act.Asset, "error", err)
		return err
	}

	if err := l.counter.Increment(stats.Community(community), act.Asset); err != nil {
		return fmt.Errorf("count press in community scope: %w", err)
	}
	if err := l.counter.Increment(stats.Global(), act.Asset); err != nil {
		return fmt.Errorf("count press in global scope: %w", err)
	}

	if _, err := l.CreateControl(ctx, community, b); err != nil {
		return err
	}
	metrics.Activations.WithLabelValues(act.Asset).Inc()
	logger.Info("activation_complete", "community", community, "channel", channelID, "asset", act.Asset, "actor", act.ActorName)
	return nil
}

func assetByName(assets []config.AssetConfig, name string) (config.AssetConfig, bool) {
	for _, a := range assets {
		if a.Name == name {
			return a, true
		}
	}
	return config.AssetConfig{}, false
}
