// Package platform is the boundary to the external message-delivery system.
// The rest of the codebase only sees the Client interface; the production
// implementation talks REST, the in-memory one backs tests and offline runs.
package platform

import (
	"context"
	"errors"
)

// ErrNotFound reports that a referenced message (or endpoint) no longer
// exists on the platform. It is an expected, recoverable condition during
// reconciliation and control deactivation, never fatal.
var ErrNotFound = errors.New("platform: not found")

// ErrDeliveryFailed wraps outbound endpoint execution failures. They are
// surfaced to the invoking actor and not retried.
var ErrDeliveryFailed = errors.New("platform: delivery failed")

// Button is one clickable affordance on a control message.
type Button struct {
	CustomID string `json:"custom_id"`
	Label    string `json:"label"`
	Style    string `json:"style"`
}

// ControlPayload is the renderable content of a control message.
type ControlPayload struct {
	Content string   `json:"content,omitempty"`
	Buttons []Button `json:"buttons"`
}

// Message is a platform message reference. Only the identity fields matter
// to this system; the platform owns the object.
type Message struct {
	ID        string   `json:"id"`
	ChannelID string   `json:"channel_id"`
	Buttons   []Button `json:"buttons,omitempty"`
}

// Endpoint is a channel-scoped credentialed outbound delivery mechanism.
type Endpoint struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// Delivery is one outbound post through an endpoint, attributed to a
// configurable display identity.
type Delivery struct {
	FilePath    string `json:"file_path"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Client is the transport consumed by the lifecycle and reconciler.
type Client interface {
	// FetchMessage returns the message or ErrNotFound.
	FetchMessage(ctx context.Context, channelID, messageID string) (Message, error)
	// SendMessage posts a new control message and returns it with its
	// platform-assigned id.
	SendMessage(ctx context.Context, channelID string, payload ControlPayload) (Message, error)
	// DeleteMessage removes a message; deleting an absent message returns
	// ErrNotFound.
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	// CreateEndpoint provisions a delivery endpoint bound to the channel.
	CreateEndpoint(ctx context.Context, channelID, name string) (Endpoint, error)
	// DeleteEndpoint tears an endpoint down.
	DeleteEndpoint(ctx context.Context, endpointID string) error
	// ExecuteEndpoint posts a delivery through the endpoint.
	ExecuteEndpoint(ctx context.Context, endpointID, token string, d Delivery) error
}
