// Package bindings persists channel bindings under each community's
// configuration subtree. The store is the authoritative record of which
// channels are bound and what their endpoint credentials and current
// control message references are.
package bindings

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pressbot/pkg/logger"
	"pressbot/pkg/models"
	"pressbot/pkg/store"
)

// Store provides CRUD over the persisted channel bindings of all
// communities. Layout: communities/<community>/channels/<channel_id>.
type Store struct{}

// NewStore returns a binding store backed by the opened global store.
func NewStore() *Store { return &Store{} }

func channelsTree(community string) store.Tree {
	return store.Sub("communities/" + community + "/channels")
}

// validIDs rejects identifiers that would break out of their subtree.
// Create is the only writer, so guarding it keeps the hierarchy clean.
func validIDs(ids ...string) error {
	for _, id := range ids {
		if id == "" || strings.Contains(id, "/") {
			return fmt.Errorf("%q: %w", id, ErrInvalidID)
		}
	}
	return nil
}

// Create persists a new binding for the channel with no control message
// tracked yet. It fails with ErrAlreadyBound when a binding exists.
func (s *Store) Create(community, channelID, endpointID, endpointToken string) (models.ChannelBinding, error) {
	if err := validIDs(community, channelID); err != nil {
		return models.ChannelBinding{}, err
	}
	t := channelsTree(community)
	ok, err := t.Has(channelID)
	if err != nil {
		return models.ChannelBinding{}, err
	}
	if ok {
		return models.ChannelBinding{}, fmt.Errorf("channel %s in community %s: %w", channelID, community, ErrAlreadyBound)
	}
	b := models.ChannelBinding{
		ChannelID:     channelID,
		EndpointID:    endpointID,
		EndpointToken: endpointToken,
	}
	data, err := json.Marshal(b)
	if err != nil {
		return models.ChannelBinding{}, err
	}
	if err := t.Set(channelID, data); err != nil {
		return models.ChannelBinding{}, err
	}
	logger.Info("binding_created", "community", community, "channel", channelID, "endpoint", endpointID)
	return b, nil
}

// Get returns the binding for the channel, or ErrUnknownBinding.
func (s *Store) Get(community, channelID string) (models.ChannelBinding, error) {
	v, err := channelsTree(community).Get(channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.ChannelBinding{}, fmt.Errorf("channel %s in community %s: %w", channelID, community, ErrUnknownBinding)
		}
		return models.ChannelBinding{}, err
	}
	var b models.ChannelBinding
	if err := json.Unmarshal(v, &b); err != nil {
		return models.ChannelBinding{}, fmt.Errorf("corrupt binding for channel %s: %w", channelID, err)
	}
	return b, nil
}

// IsBound reports whether the channel has a binding.
func (s *Store) IsBound(community, channelID string) (bool, error) {
	return channelsTree(community).Has(channelID)
}

// SetControl updates the tracked control message reference in place. An
// empty messageID clears the reference (no control armed). Fails with
// ErrUnknownBinding when the channel has no binding.
func (s *Store) SetControl(community, channelID, messageID string) error {
	t := channelsTree(community)
	return t.GetAndSet(channelID, func(cur []byte) ([]byte, error) {
		if cur == nil {
			return nil, fmt.Errorf("channel %s in community %s: %w", channelID, community, ErrUnknownBinding)
		}
		var b models.ChannelBinding
		if err := json.Unmarshal(cur, &b); err != nil {
			return nil, fmt.Errorf("corrupt binding for channel %s: %w", channelID, err)
		}
		b.ControlMessageID = messageID
		return json.Marshal(b)
	})
}

// Delete removes the binding entirely. Callers that must fail loudly on an
// unbound channel check IsBound first; Delete itself is idempotent.
func (s *Store) Delete(community, channelID string) error {
	if err := channelsTree(community).Delete(channelID); err != nil {
		return err
	}
	logger.Info("binding_deleted", "community", community, "channel", channelID)
	return nil
}

// List returns all bindings of a community. Order is storage order; callers
// must not depend on it.
func (s *Store) List(community string) ([]models.ChannelBinding, error) {
	t := channelsTree(community)
	keys, err := t.Keys("")
	if err != nil {
		return nil, err
	}
	out := make([]models.ChannelBinding, 0, len(keys))
	for _, k := range keys {
		b, err := s.Get(community, k)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Communities returns the ids of every community that has at least one
// stored subtree (bindings or stats).
func (s *Store) Communities() ([]string, error) {
	return store.Sub("communities").Keys("")
}
