package auth

import (
	"context"

	"github.com/medicore/portal/pkg/common/models"
)

// Service binds the credential table to the session store: login validates
// credentials and establishes a session, logout tears it down.
type Service struct {
	creds    *CredentialSet
	sessions SessionStore
}

func NewService(creds *CredentialSet, sessions SessionStore) *Service {
	return &Service{creds: creds, sessions: sessions}
}

func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	identity, err := s.creds.Authenticate(username, password)
	if err != nil {
		return Session{}, err
	}
	return s.sessions.Create(ctx, identity)
}

// Logout is idempotent: deleting an unknown or already-cleared token
// succeeds.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// Resolve maps a session token to its identity, or ErrNoSession.
func (s *Service) Resolve(ctx context.Context, token string) (models.Identity, error) {
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		return models.Identity{}, err
	}
	return session.Identity, nil
}
