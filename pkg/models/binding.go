package models

// ChannelBinding is the persisted association of a channel with its
// dedicated outbound endpoint and the currently tracked control message.
// One binding exists per bound channel, stored under the owning
// community's subtree at channels/<channel_id>.
type ChannelBinding struct {
	ChannelID     string `json:"channel_id"`
	EndpointID    string `json:"endpoint_id"`
	EndpointToken string `json:"endpoint_token"`
	// ControlMessageID references the live control message. Empty means no
	// control is currently armed. The message is owned by the platform and
	// may vanish at any time; holders must treat dereferencing as fallible.
	ControlMessageID string `json:"control_message_id,omitempty"`
}

// HasControl reports whether the binding tracks a control message.
func (b ChannelBinding) HasControl() bool {
	return b.ControlMessageID != ""
}
