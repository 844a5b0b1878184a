package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const (
	// DefaultAvatarName is used when a start request names no avatar.
	DefaultAvatarName = "matilda"
	// DefaultQuality is used when a start request sets no quality.
	DefaultQuality = "high"
)

// Service creates, looks up and stops sessions. Each session gets its own
// vendor adapter built from a fresh token; the compositor, scheduler and
// binder in the template Deps are shared.
type Service struct {
	repo      Repository
	tokens    TokenSource
	newAvatar AvatarFactory
	deps      Deps
}

// NewService returns a Service. deps.Avatar is ignored: every session gets
// its own adapter from newAvatar.
func NewService(repo Repository, tokens TokenSource, newAvatar AvatarFactory, deps Deps) *Service {
	return &Service{repo: repo, tokens: tokens, newAvatar: newAvatar, deps: deps}
}

// Create fetches a session token, builds a session around it and starts it.
// The session is only registered if the vendor accepted the start request.
func (s *Service) Create(ctx context.Context, req StartRequest) (*Session, error) {
	req = withDefaults(req)

	token, err := s.tokens.CreateToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	d := s.deps
	d.Avatar = s.newAvatar(token)
	sess := New(ID(uuid.NewString()), d)

	if err := sess.Start(ctx, req); err != nil {
		sess.Close(ctx)
		return nil, err
	}
	if err := s.repo.Add(sess); err != nil {
		sess.Close(ctx)
		return nil, err
	}
	return sess, nil
}

// Restart starts a registered session again, e.g. after the stream
// disconnected. It fails with ErrSessionActive unless the session is inactive.
func (s *Service) Restart(ctx context.Context, id ID, req StartRequest) (*Session, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := sess.Start(ctx, withDefaults(req)); err != nil {
		return nil, err
	}
	return sess, nil
}

func withDefaults(req StartRequest) StartRequest {
	if req.AvatarName == "" {
		req.AvatarName = DefaultAvatarName
	}
	if req.Quality == "" {
		req.Quality = DefaultQuality
	}
	return req
}

// Get returns the session with the given ID or ErrNotFound.
func (s *Service) Get(id ID) (*Session, error) {
	sess, ok := s.repo.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Stop stops and unregisters the session. Stopping an unknown session
// returns ErrNotFound.
func (s *Service) Stop(ctx context.Context, id ID) error {
	sess, ok := s.repo.Remove(id)
	if !ok {
		return ErrNotFound
	}
	sess.Close(ctx)
	return nil
}

// Shutdown stops every session so no render loop outlives the service.
func (s *Service) Shutdown(ctx context.Context) {
	for _, sess := range s.repo.List() {
		if _, ok := s.repo.Remove(sess.ID()); ok {
			sess.Close(ctx)
		}
	}
}

// ActiveCount returns the number of sessions that are not inactive.
func (s *Service) ActiveCount() int {
	return s.repo.ActiveCount()
}
