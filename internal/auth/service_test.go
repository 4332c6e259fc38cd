package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/harvestfield/farmlink-backend/pkg/auth"
	"github.com/harvestfield/farmlink-backend/pkg/auth/session"
	"github.com/harvestfield/farmlink-backend/pkg/config"
	"github.com/harvestfield/farmlink-backend/pkg/db/models"
	"github.com/harvestfield/farmlink-backend/pkg/enums"
	pkgerrors "github.com/harvestfield/farmlink-backend/pkg/errors"
	"github.com/harvestfield/farmlink-backend/pkg/security"
)

type stubUserRepo struct {
	byEmail map[string]*models.User
	byID    map[uuid.UUID]*models.User
	created []*models.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		byEmail: map[string]*models.User{},
		byID:    map[uuid.UUID]*models.User{},
	}
}

func (s *stubUserRepo) add(user *models.User) {
	s.byEmail[user.Email] = user
	s.byID[user.ID] = user
}

func (s *stubUserRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New()
	s.add(user)
	s.created = append(s.created, user)
	return user, nil
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if user, ok := s.byEmail[email]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := s.byID[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	if user, ok := s.byID[id]; ok {
		user.LastLoginAt = &at
	}
	return nil
}

type stubSessionManager struct {
	tokens  map[string]string
	revoked []string
}

func newStubSessionManager() *stubSessionManager {
	return &stubSessionManager{tokens: map[string]string{}}
}

func (s *stubSessionManager) Generate(_ context.Context, accessID string) (string, error) {
	token := "refresh-" + accessID
	s.tokens[accessID] = token
	return token, nil
}

func (s *stubSessionManager) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	if stored, ok := s.tokens[oldAccessID]; !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(s.tokens, oldAccessID)
	newID := uuid.NewString()
	token := "refresh-" + newID
	s.tokens[newID] = token
	return newID, token, nil
}

func (s *stubSessionManager) Revoke(_ context.Context, accessID string) error {
	delete(s.tokens, accessID)
	s.revoked = append(s.revoked, accessID)
	return nil
}

func testService(t *testing.T, repo *stubUserRepo, sessions *stubSessionManager) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		JWTConfig:      config.JWTConfig{Secret: "secret", Issuer: "farmlink-test", ExpirationMinutes: 15},
		PasswordConfig: config.PasswordConfig{},
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func seedUser(t *testing.T, repo *stubUserRepo, email, password string, role enums.UserRole) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  "Test User",
		Role:         role,
		IsActive:     true,
	}
	repo.add(user)
	return user
}

func TestRegisterIssuesTokenPair(t *testing.T) {
	repo := newStubUserRepo()
	sessions := newStubSessionManager()
	svc := testService(t, repo, sessions)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Email:       "Buyer@Example.com",
		Password:    "correct-horse",
		DisplayName: "Buyer",
		Role:        "buyer",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected a token pair")
	}
	if resp.User.Role != enums.UserRoleBuyer {
		t.Fatalf("expected buyer role, got %s", resp.User.Role)
	}
	if len(repo.created) != 1 || repo.created[0].Email != "buyer@example.com" {
		t.Fatal("expected normalized email on the stored user")
	}
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	svc := testService(t, newStubUserRepo(), newStubSessionManager())
	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:       "admin@example.com",
		Password:    "correct-horse",
		DisplayName: "Admin",
		Role:        "admin",
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestLoginSucceedsWithValidCredentials(t *testing.T) {
	repo := newStubUserRepo()
	sessions := newStubSessionManager()
	user := seedUser(t, repo, "farmer@example.com", "correct-horse", enums.UserRoleFarmer)
	farmID := uuid.New()
	user.FarmID = &farmID
	svc := testService(t, repo, sessions)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "farmer@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.LastLoginAt == nil {
		t.Fatal("expected last login to be stamped")
	}

	cfg := config.JWTConfig{Secret: "secret", Issuer: "farmlink-test", ExpirationMinutes: 15}
	claims, err := pkgAuth.ParseAccessToken(cfg, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatal("access token must carry the user id")
	}
	if claims.FarmID == nil || *claims.FarmID != farmID {
		t.Fatal("access token must carry the farm id")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(t, repo, "buyer@example.com", "correct-horse", enums.UserRoleBuyer)
	svc := testService(t, repo, newStubSessionManager())

	_, err := svc.Login(context.Background(), LoginRequest{Email: "buyer@example.com", Password: "wrong"})
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	repo := newStubUserRepo()
	user := seedUser(t, repo, "buyer@example.com", "correct-horse", enums.UserRoleBuyer)
	user.IsActive = false
	svc := testService(t, repo, newStubSessionManager())

	_, err := svc.Login(context.Background(), LoginRequest{Email: "buyer@example.com", Password: "correct-horse"})
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestRefreshRotatesSession(t *testing.T) {
	repo := newStubUserRepo()
	sessions := newStubSessionManager()
	seedUser(t, repo, "buyer@example.com", "correct-horse", enums.UserRoleBuyer)
	svc := testService(t, repo, sessions)

	first, err := svc.Login(context.Background(), LoginRequest{Email: "buyer@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	second, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  first.AccessToken,
		RefreshToken: first.RefreshToken,
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh must rotate the refresh token")
	}

	// the original pair must now be dead
	_, err = svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  first.AccessToken,
		RefreshToken: first.RefreshToken,
	})
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestLogoutRevokesSession(t *testing.T) {
	repo := newStubUserRepo()
	sessions := newStubSessionManager()
	seedUser(t, repo, "buyer@example.com", "correct-horse", enums.UserRoleBuyer)
	svc := testService(t, repo, sessions)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "buyer@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	cfg := config.JWTConfig{Secret: "secret", Issuer: "farmlink-test", ExpirationMinutes: 15}
	claims, err := pkgAuth.ParseAccessToken(cfg, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if err := svc.Logout(context.Background(), claims.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(sessions.revoked) != 1 || sessions.revoked[0] != claims.ID {
		t.Fatal("expected the session to be revoked")
	}
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code() != code {
		t.Fatalf("expected code %s got %s", code, typed.Code())
	}
}
