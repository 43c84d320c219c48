package platform

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// DeliveryRecord is one ExecuteEndpoint call observed by the Memory client.
type DeliveryRecord struct {
	EndpointID string
	Token      string
	Delivery   Delivery
}

// Memory is an in-process Client used by tests and offline development
// runs. It assigns platform-style ids and keeps every message and endpoint
// in maps; helpers allow simulating out-of-band tampering.
type Memory struct {
	mu        sync.Mutex
	messages  map[string]map[string]Message // channel -> message id -> message
	endpoints map[string]Endpoint           // endpoint id -> endpoint
	epChannel map[string]string             // endpoint id -> channel
	delivered []DeliveryRecord

	deliverErr error
	sendErr    error
}

// NewMemory returns an empty in-memory platform.
func NewMemory() *Memory {
	return &Memory{
		messages:  map[string]map[string]Message{},
		endpoints: map[string]Endpoint{},
		epChannel: map[string]string{},
	}
}

func (m *Memory) FetchMessage(_ context.Context, channelID, messageID string) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[channelID][messageID]
	if !ok {
		return Message{}, ErrNotFound
	}
	return msg, nil
}

func (m *Memory) SendMessage(_ context.Context, channelID string, payload ControlPayload) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return Message{}, m.sendErr
	}
	msg := Message{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		Buttons:   append([]Button(nil), payload.Buttons...),
	}
	if m.messages[channelID] == nil {
		m.messages[channelID] = map[string]Message{}
	}
	m.messages[channelID][msg.ID] = msg
	return msg, nil
}

func (m *Memory) DeleteMessage(_ context.Context, channelID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[channelID][messageID]; !ok {
		return ErrNotFound
	}
	delete(m.messages[channelID], messageID)
	return nil
}

func (m *Memory) CreateEndpoint(_ context.Context, channelID, name string) (Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := Endpoint{ID: uuid.NewString(), Token: uuid.NewString()}
	m.endpoints[e.ID] = e
	m.epChannel[e.ID] = channelID
	_ = name
	return e, nil
}

func (m *Memory) DeleteEndpoint(_ context.Context, endpointID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.endpoints[endpointID]; !ok {
		return ErrNotFound
	}
	delete(m.endpoints, endpointID)
	delete(m.epChannel, endpointID)
	return nil
}

func (m *Memory) ExecuteEndpoint(_ context.Context, endpointID, token string, d Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deliverErr != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, m.deliverErr)
	}
	e, ok := m.endpoints[endpointID]
	if !ok {
		return ErrNotFound
	}
	if e.Token != token {
		return fmt.Errorf("%w: bad endpoint token", ErrDeliveryFailed)
	}
	m.delivered = append(m.delivered, DeliveryRecord{EndpointID: endpointID, Token: token, Delivery: d})
	return nil
}

// Deliveries returns every recorded endpoint execution.
func (m *Memory) Deliveries() []DeliveryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DeliveryRecord(nil), m.delivered...)
}

// FailDeliveries makes subsequent ExecuteEndpoint calls fail with the given
// error; nil restores normal behavior.
func (m *Memory) FailDeliveries(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliverErr = err
}

// FailSends makes subsequent SendMessage calls fail with the given error.
func (m *Memory) FailSends(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// RemoveExternally deletes a message the way a human moderator would,
// bypassing the binding bookkeeping entirely.
func (m *Memory) RemoveExternally(channelID, messageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages[channelID], messageID)
}

// MessageCount returns how many messages currently live in the channel.
func (m *Memory) MessageCount(channelID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages[channelID])
}

// Endpoints returns the ids of all live endpoints.
func (m *Memory) Endpoints() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.endpoints))
	for id := range m.endpoints {
		out = append(out, id)
	}
	return out
}
