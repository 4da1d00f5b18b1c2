package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/ramonsarchive/ascend/internal/auth/domain"
	"github.com/ramonsarchive/ascend/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// lastSeenResolution is how stale last_seen_at may get before a request rewrites it.
const lastSeenResolution = time.Minute

type Params struct {
	fx.In

	Log         *zap.Logger
	Repo        domain.Repository
	SessionRepo domain.SessionRepository
	Clock       clock.Clock
}

type Service struct {
	log         *zap.Logger
	repo        domain.Repository
	sessionRepo domain.SessionRepository
	clock       clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("auth.service"),
		repo:        p.Repo,
		sessionRepo: p.SessionRepo,
		clock:       p.Clock,
	}
}

// Authenticate resolves a raw session token to the identity behind it.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Identity, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, domain.ErrInvalidSession
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}

	now := s.clock.Now()
	if session.RevokedAt != nil {
		return nil, domain.ErrSessionRevoked
	}
	if now.After(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}

	user, err := s.repo.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}

	if _, err := s.sessionRepo.TouchSession(ctx, session.ID, now, now.Add(-lastSeenResolution)); err != nil {
		s.log.Warn("failed to touch session", zap.String("session_id", session.ID.String()), zap.Error(err))
	}

	return &domain.Identity{
		UserID:        user.ID,
		SessionID:     session.ID,
		Email:         strings.ToLower(strings.TrimSpace(user.Email)),
		EmailVerified: user.EmailVerified,
	}, nil
}

// HashToken is how session tokens are stored by the identity service.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
