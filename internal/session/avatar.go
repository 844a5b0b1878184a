package session

import "context"

// Avatar is the vendor streaming-avatar contract a session drives.
// Each capability is one method; implementations do not probe for
// alternatives.
type Avatar interface {
	// Start creates and starts the vendor session.
	Start(ctx context.Context, req StartRequest) error
	// Stop ends the vendor session.
	Stop(ctx context.Context) error
	// SendText asks the avatar to speak text.
	SendText(ctx context.Context, text string) error
	// StartVoiceChat opens two-way voice, with the microphone muted if muted is set.
	StartVoiceChat(ctx context.Context, muted bool) error
	// CloseVoiceChat ends two-way voice.
	CloseVoiceChat(ctx context.Context) error
	MuteInput(ctx context.Context) error
	UnmuteInput(ctx context.Context) error
}

// AvatarFactory builds an Avatar bound to a short-lived session token.
type AvatarFactory func(token string) Avatar

// TokenSource exchanges the server-held API key for a session token.
type TokenSource interface {
	CreateToken(ctx context.Context) (string, error)
}
