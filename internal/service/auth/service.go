// Package auth manages login sessions. A session lives in a TTL cache keyed by
// its id and is presented by the client as a signed access token; logging out
// drops the cache entry, which invalidates the token before it expires.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/service/user"
	"github.com/jwalitptl/clinic-portal/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-portal/pkg/errors"
)

var ErrSessionNotFound = errors.New("session not found")

type Config struct {
	TokenTTL time.Duration
	GuestTTL time.Duration
}

type Service struct {
	users    *user.Service
	tokens   auth.TokenManager
	sessions *cache.Cache
	cfg      Config
	now      func() time.Time
}

func NewService(users *user.Service, tokens auth.TokenManager, cfg Config, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.GuestTTL <= 0 {
		cfg.GuestTTL = time.Hour
	}
	return &Service{
		users:    users,
		tokens:   tokens,
		sessions: cache.New(cfg.TokenTTL, 10*time.Minute),
		cfg:      cfg,
		now:      now,
	}
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	u, err := s.users.Authenticate(ctx, req.Email, req.Password, req.Role)
	if err != nil {
		return nil, err
	}
	return s.open(u, false, s.cfg.TokenTTL)
}

// Register creates a patient account and signs it in.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	u, err := s.users.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.open(u, false, s.cfg.TokenTTL)
}

// GuestLogin opens a short patient session with no directory record.
func (s *Service) GuestLogin(ctx context.Context) (*model.AuthResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.open(&model.User{Name: "Guest", Role: model.RolePatient}, true, s.cfg.GuestTTL)
}

func (s *Service) open(u *model.User, guest bool, ttl time.Duration) (*model.AuthResponse, error) {
	now := s.now()
	session := &model.Session{
		ID:        uuid.New(),
		UserID:    u.ID,
		Role:      u.Role,
		Guest:     guest,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	token, err := s.tokens.Generate(session)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to issue token: %w", err))
	}
	s.sessions.Set(session.ID.String(), session, ttl)

	resp := &model.AuthResponse{Token: token, ExpiresAt: session.ExpiresAt, Guest: guest}
	if !guest {
		resp.User = u
	}
	return resp, nil
}

// Resolve returns the live session behind token.
func (s *Service) Resolve(ctx context.Context, token string) (*model.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}

	cached, ok := s.sessions.Get(claims.SessionID)
	if !ok {
		return nil, apperrors.Unauthorized(ErrSessionNotFound)
	}
	session := cached.(*model.Session)
	if !s.now().Before(session.ExpiresAt) {
		s.sessions.Delete(claims.SessionID)
		return nil, apperrors.Unauthorized(ErrSessionNotFound)
	}
	c := *session
	return &c, nil
}

// CurrentUser reloads the session's user so profile edits show up immediately.
// Guest sessions have no user.
func (s *Service) CurrentUser(ctx context.Context, token string) (*model.User, error) {
	session, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.Guest {
		return nil, nil
	}

	u, err := s.users.GetByID(ctx, session.UserID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Unauthorized(err)
	}
	return u, err
}

// Logout ends the session behind token. Unknown or expired tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil
	}
	s.sessions.Delete(claims.SessionID)
	return nil
}

// ActiveSessions reports how many sessions are currently live.
func (s *Service) ActiveSessions() int {
	return s.sessions.ItemCount()
}
