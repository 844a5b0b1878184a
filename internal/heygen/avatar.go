package heygen

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"avatar-compositor/internal/session"
)

// ErrNoSession is returned by calls that need a started vendor session.
var ErrNoSession = errors.New("heygen: no streaming session")

// Task types accepted by streaming.task.
const (
	TaskRepeat = "repeat"
	TaskTalk   = "talk"
)

// SessionInfo is the data returned by streaming.new.
type SessionInfo struct {
	SessionID   string `json:"session_id"`
	URL         string `json:"url"`
	AccessToken string `json:"access_token"`
}

type newSessionRequest struct {
	Quality            string        `json:"quality,omitempty"`
	AvatarName         string        `json:"avatar_name"`
	Voice              *voiceSetting `json:"voice,omitempty"`
	Language           string        `json:"language,omitempty"`
	KnowledgeBaseID    string        `json:"knowledge_base_id,omitempty"`
	DisableIdleTimeout bool          `json:"disable_idle_timeout,omitempty"`
	Background         string        `json:"background,omitempty"`
	Version            string        `json:"version"`
	VideoEncoding      string        `json:"video_encoding"`
}

type voiceSetting struct {
	VoiceID string `json:"voice_id"`
}

type sessionRef struct {
	SessionID string `json:"session_id"`
}

type taskRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	TaskType  string `json:"task_type"`
}

// Avatar implements session.Avatar over the streaming REST control plane,
// authenticated with one session token.
//
// Microphone capture and the voice-chat media path live in the browser SDK,
// so the voice methods only track local state here.
type Avatar struct {
	baseURL  string
	token    string
	http     *http.Client
	taskType string

	mu        sync.Mutex
	info      SessionInfo
	voiceChat bool
	muted     bool
}

var _ session.Avatar = (*Avatar)(nil)

// NewAvatar returns an Avatar that uses the client's base URL and HTTP client
// with the given session token. Text is sent as TaskTalk tasks.
func NewAvatar(c *Client, token string) *Avatar {
	return &Avatar{baseURL: c.baseURL, token: token, http: c.http, taskType: TaskTalk}
}

// Factory adapts NewAvatar to session.AvatarFactory.
func Factory(c *Client) session.AvatarFactory {
	return func(token string) session.Avatar { return NewAvatar(c, token) }
}

// Info returns the vendor session details, zero before Start.
func (a *Avatar) Info() SessionInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.info
}

// Start implements session.Avatar.Start: streaming.new then streaming.start.
func (a *Avatar) Start(ctx context.Context, req session.StartRequest) error {
	body := newSessionRequest{
		Quality:            req.Quality,
		AvatarName:         req.AvatarName,
		Language:           req.Language,
		KnowledgeBaseID:    req.KnowledgeBaseID,
		DisableIdleTimeout: req.DisableIdleTimeout,
		Background:         req.Background,
		Version:            "v2",
		VideoEncoding:      "H264",
	}
	if req.VoiceID != "" {
		body.Voice = &voiceSetting{VoiceID: req.VoiceID}
	}

	var info SessionInfo
	if err := postJSON(ctx, a.http, a.baseURL, a.token, "/v1/streaming.new", body, &info); err != nil {
		return err
	}
	if err := postJSON(ctx, a.http, a.baseURL, a.token, "/v1/streaming.start", sessionRef{SessionID: info.SessionID}, nil); err != nil {
		return err
	}

	a.mu.Lock()
	a.info = info
	a.mu.Unlock()
	return nil
}

// Stop implements session.Avatar.Stop.
func (a *Avatar) Stop(ctx context.Context) error {
	id, err := a.sessionID()
	if err != nil {
		return err
	}
	if err := postJSON(ctx, a.http, a.baseURL, a.token, "/v1/streaming.stop", sessionRef{SessionID: id}, nil); err != nil {
		return err
	}
	a.mu.Lock()
	a.info = SessionInfo{}
	a.voiceChat = false
	a.mu.Unlock()
	return nil
}

// SendText implements session.Avatar.SendText via streaming.task.
func (a *Avatar) SendText(ctx context.Context, text string) error {
	id, err := a.sessionID()
	if err != nil {
		return err
	}
	return postJSON(ctx, a.http, a.baseURL, a.token, "/v1/streaming.task",
		taskRequest{SessionID: id, Text: text, TaskType: a.taskType}, nil)
}

// StartVoiceChat implements session.Avatar.StartVoiceChat.
func (a *Avatar) StartVoiceChat(_ context.Context, muted bool) error {
	if _, err := a.sessionID(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.voiceChat = true
	a.muted = muted
	return nil
}

// CloseVoiceChat implements session.Avatar.CloseVoiceChat.
func (a *Avatar) CloseVoiceChat(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.voiceChat = false
	a.muted = true
	return nil
}

// MuteInput implements session.Avatar.MuteInput.
func (a *Avatar) MuteInput(context.Context) error {
	return a.setMuted(true)
}

// UnmuteInput implements session.Avatar.UnmuteInput.
func (a *Avatar) UnmuteInput(context.Context) error {
	return a.setMuted(false)
}

func (a *Avatar) setMuted(muted bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.voiceChat {
		return errors.New("heygen: voice chat is not active")
	}
	a.muted = muted
	return nil
}

func (a *Avatar) sessionID() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.info.SessionID == "" {
		return "", ErrNoSession
	}
	return a.info.SessionID, nil
}
