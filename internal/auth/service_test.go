package auth

import (
	"context"
	"testing"
	"time"

	pkgAuth "github.com/exclusivemerch/store-backend/pkg/auth"
	"github.com/exclusivemerch/store-backend/pkg/config"
	pkgmodels "github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/exclusivemerch/store-backend/pkg/security"
	"github.com/google/uuid"
)

func seedUser(t *testing.T, repo *stubUserRepository, email, password string, role enums.Role, cfg config.PasswordConfig) *pkgmodels.User {
	t.Helper()
	hash, err := security.HashPassword(password, cfg)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &pkgmodels.User{ID: uuid.New(), Email: email, Name: "Seeded", PasswordHash: hash, Role: role}
	repo.data[email] = user
	return user
}

func newLoginService(t *testing.T, repo *stubUserRepository, now time.Time) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		JWTConfig:      testJWTConfig(),
		PasswordConfig: testPasswordConfig(),
		Now:            func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestLoginIssuesRoleClaim(t *testing.T) {
	repo := newStubUserRepository()
	admin := seedUser(t, repo, "ops@example.com", "admin-secret", enums.RoleAdmin, testPasswordConfig())
	now := time.Now().UTC()
	svc := newLoginService(t, repo, now)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: " OPS@example.com", Password: "admin-secret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Role != enums.RoleAdmin || claims.UserID != admin.ID {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if !repo.lastLoginAt.Equal(now) {
		t.Fatalf("expected last login to be recorded")
	}
	if !resp.ExpiresAt.Equal(now.Add(30 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", resp.ExpiresAt)
	}
	if repo.rehashed != "" {
		t.Fatalf("current hash should not be rehashed")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	repo := newStubUserRepository()
	seedUser(t, repo, "buyer@example.com", "right-password", enums.RoleUser, testPasswordConfig())
	svc := newLoginService(t, repo, time.Now())

	cases := []LoginRequest{
		{Email: "buyer@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "right-password"},
		{Email: "  ", Password: "right-password"},
	}
	for _, req := range cases {
		_, err := svc.Login(context.Background(), req)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized || typed.Message() != invalidCredentialsMessage {
			t.Fatalf("expected generic unauthorized for %+v, got %v", req, err)
		}
	}
}

func TestLoginRehashesWeakHash(t *testing.T) {
	repo := newStubUserRepository()
	weak := config.PasswordConfig{ArgonMemoryKB: 8, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 16}
	seedUser(t, repo, "old@example.com", "legacy-pass", enums.RoleUser, weak)
	svc := newLoginService(t, repo, time.Now())

	if _, err := svc.Login(context.Background(), LoginRequest{Email: "old@example.com", Password: "legacy-pass"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if repo.rehashed == "" {
		t.Fatalf("expected weak hash to be upgraded")
	}
	if ok, _ := security.VerifyPassword("legacy-pass", repo.rehashed); !ok {
		t.Fatalf("upgraded hash does not verify")
	}
}
