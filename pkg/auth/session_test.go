package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/medicore/portal/pkg/common/models"
)

func TestMemorySessionLifecycle(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)
	ctx := context.Background()

	session, err := store.Create(ctx, models.Identity{Role: models.RoleDoctor, Name: "Doctor Wu"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected opaque token")
	}

	loaded, err := store.Get(ctx, session.Token)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if loaded.Identity.Name != "Doctor Wu" || loaded.Identity.Role != models.RoleDoctor {
		t.Fatalf("unexpected identity: %+v", loaded.Identity)
	}

	if err := store.Delete(ctx, session.Token); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get(ctx, session.Token); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after delete, got %v", err)
	}
	// Logout is idempotent.
	if err := store.Delete(ctx, session.Token); err != nil {
		t.Fatalf("second delete should succeed: %v", err)
	}
}

func TestMemorySessionExpiry(t *testing.T) {
	store := NewMemorySessionStore(time.Nanosecond)
	ctx := context.Background()

	session, err := store.Create(ctx, models.Identity{Role: models.RolePatient, Name: "Liao"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	time.Sleep(time.Millisecond)
	if _, err := store.Get(ctx, session.Token); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected expired session, got %v", err)
	}
}

func TestUnknownTokenYieldsNoSession(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)
	if _, err := store.Get(context.Background(), "bogus"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestServiceLoginLogout(t *testing.T) {
	service := NewService(DefaultCredentials(), NewMemorySessionStore(time.Hour))
	ctx := context.Background()

	session, err := service.Login(ctx, "Patient", "AAAAAAAA")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	identity, err := service.Resolve(ctx, session.Token)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if identity.Name != "Liao" {
		t.Fatalf("unexpected identity: %+v", identity)
	}

	if err := service.Logout(ctx, session.Token); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := service.Resolve(ctx, session.Token); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected cleared session, got %v", err)
	}
	if err := service.Logout(ctx, session.Token); err != nil {
		t.Fatalf("logout must be idempotent: %v", err)
	}
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	service := NewService(DefaultCredentials(), NewMemorySessionStore(time.Hour))
	if _, err := service.Login(context.Background(), "Patient", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
