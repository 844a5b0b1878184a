package session

import "fmt"

// EventType names an event the vendor SDK raised in the browser.
type EventType string

const (
	EventStreamReady              EventType = "stream_ready"
	EventStreamDisconnected       EventType = "stream_disconnected"
	EventConnectionQualityChanged EventType = "connection_quality_changed"
	EventUserStart                EventType = "user_start"
	EventUserStop                 EventType = "user_stop"
	EventAvatarStartTalking       EventType = "avatar_start_talking"
	EventAvatarStopTalking        EventType = "avatar_stop_talking"
	EventUserTalkingMessage       EventType = "user_talking_message"
	EventAvatarTalkingMessage     EventType = "avatar_talking_message"
	EventUserEndMessage           EventType = "user_end_message"
	EventAvatarEndMessage         EventType = "avatar_end_message"
	EventVoiceChatReconnected     EventType = "voice_chat_reconnected"
	EventVoiceChatDisconnected    EventType = "voice_chat_disconnected"
)

var knownEvents = map[EventType]struct{}{
	EventStreamReady:              {},
	EventStreamDisconnected:       {},
	EventConnectionQualityChanged: {},
	EventUserStart:                {},
	EventUserStop:                 {},
	EventAvatarStartTalking:       {},
	EventAvatarStopTalking:        {},
	EventUserTalkingMessage:       {},
	EventAvatarTalkingMessage:     {},
	EventUserEndMessage:           {},
	EventAvatarEndMessage:         {},
	EventVoiceChatReconnected:     {},
	EventVoiceChatDisconnected:    {},
}

// Event is one inbound vendor event. Only the fields relevant to Type are set.
type Event struct {
	Type EventType `json:"type"`

	// stream_ready: the video track's native dimensions.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	// connection_quality_changed
	Quality ConnectionQuality `json:"quality,omitempty"`

	// *_talking_message: one streamed fragment.
	Message string `json:"message,omitempty"`
}

// Validate reports whether the event type is known.
func (e Event) Validate() error {
	if _, ok := knownEvents[e.Type]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, e.Type)
	}
	return nil
}
