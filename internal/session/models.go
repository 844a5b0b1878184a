package session

import (
	"fmt"
	"time"

	"avatar-compositor/internal/chromakey"
)

// ID uniquely identifies an avatar session.
type ID string

// State is the connection state of a session.
type State int

const (
	// StateInactive means no vendor session is running.
	StateInactive State = iota
	// StateConnecting means the vendor session was requested and no stream is ready yet.
	StateConnecting
	// StateConnected means the avatar stream is ready and being keyed.
	StateConnected
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "inactive":
		*s = StateInactive
	case "connecting":
		*s = StateConnecting
	case "connected":
		*s = StateConnected
	default:
		return fmt.Errorf("unknown session state %q", b)
	}
	return nil
}

// ConnectionQuality is the vendor-reported link quality.
type ConnectionQuality string

const (
	QualityUnknown ConnectionQuality = "UNKNOWN"
	QualityGood    ConnectionQuality = "GOOD"
	QualityBad     ConnectionQuality = "BAD"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderClient Sender = "client"
	SenderAvatar Sender = "avatar"
)

// Message is one entry of the conversation history.
type Message struct {
	ID      int    `json:"id"`
	Sender  Sender `json:"sender"`
	Content string `json:"content"`
}

// StartRequest configures the vendor avatar session.
// This also matches the JSON body of POST /sessions.
type StartRequest struct {
	AvatarName         string `json:"avatarName"`
	Quality            string `json:"quality,omitempty"`
	VoiceID            string `json:"voiceId,omitempty"`
	Language           string `json:"language,omitempty"`
	KnowledgeBaseID    string `json:"knowledgeBaseId,omitempty"`
	DisableIdleTimeout bool   `json:"disableIdleTimeout,omitempty"`

	// Background is always forced to "transparent" on start so the
	// vendor renders the green screen that the compositor keys out.
	Background string `json:"background,omitempty"`
}

// Snapshot is a point-in-time, JSON-friendly view of a session.
type Snapshot struct {
	ID                ID                   `json:"id"`
	State             State                `json:"state"`
	CreatedAt         time.Time            `json:"created_at"`
	ConnectionQuality ConnectionQuality    `json:"connection_quality"`
	UserTalking       bool                 `json:"user_talking"`
	AvatarTalking     bool                 `json:"avatar_talking"`
	VoiceChatActive   bool                 `json:"voice_chat_active"`
	Muted             bool                 `json:"muted"`
	Keying            bool                 `json:"keying"`
	StreamWidth       int                  `json:"stream_width,omitempty"`
	StreamHeight      int                  `json:"stream_height,omitempty"`
	Frames            chromakey.FrameStats `json:"frames"`
	Messages          []Message            `json:"messages"`
}
