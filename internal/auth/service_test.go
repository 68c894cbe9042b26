package auth

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/CarlusInnocent/HotPOS/internal/users"
	pkgAuth "github.com/CarlusInnocent/HotPOS/pkg/auth"
	"github.com/CarlusInnocent/HotPOS/pkg/auth/session"
	"github.com/CarlusInnocent/HotPOS/pkg/config"
	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
	"github.com/CarlusInnocent/HotPOS/pkg/enums"
	pkgerrors "github.com/CarlusInnocent/HotPOS/pkg/errors"
	"github.com/CarlusInnocent/HotPOS/pkg/security"
)

type fakeSessions struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{tokens: map[string]string{}}
}

func (f *fakeSessions) Generate(_ context.Context, accessID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := "refresh-" + accessID
	f.tokens[accessID] = token
	return token, nil
}

func (f *fakeSessions) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.tokens[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(f.tokens, oldAccessID)
	newAccessID := session.NewAccessID()
	newToken := "refresh-" + newAccessID
	f.tokens[newAccessID] = newToken
	return newAccessID, newToken, nil
}

func (f *fakeSessions) Revoke(_ context.Context, accessID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, accessID)
	return nil
}

type fixture struct {
	conn     *gorm.DB
	svc      Service
	sessions *fakeSessions
	jwtCfg   config.JWTConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:auth_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Branch{}, &models.User{}))

	sessions := newFakeSessions()
	jwtCfg := config.JWTConfig{Secret: "test-secret", Issuer: "hotpos-test", ExpirationMinutes: 15}
	svc, err := NewService(ServiceParams{
		UserRepo:       users.NewRepository(conn),
		SessionManager: sessions,
		JWTConfig:      jwtCfg,
	})
	require.NoError(t, err)

	return &fixture{conn: conn, svc: svc, sessions: sessions, jwtCfg: jwtCfg}
}

func (f *fixture) seedUser(t *testing.T, username, password string, active bool) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	require.NoError(t, err)
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		FullName:     "Test " + username,
		Role:         enums.UserRoleManager,
		IsActive:     active,
	}
	require.NoError(t, f.conn.Create(user).Error)
	return user
}

func TestLoginReturnsTokenPair(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	user := f.seedUser(t, "alice", "correct-horse", true)

	resp, err := f.svc.Login(context.Background(), LoginRequest{Login: "alice", Password: "correct-horse"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, user.ID, resp.User.ID)

	claims, err := pkgAuth.ParseAccessToken(f.jwtCfg, resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, enums.UserRoleManager, claims.Role)

	var reloaded models.User
	require.NoError(t, f.conn.First(&reloaded, user.ID).Error)
	require.NotNil(t, reloaded.LastLoginAt)
}

func TestLoginAcceptsEmail(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seedUser(t, "bob", "password-123", true)

	resp, err := f.svc.Login(context.Background(), LoginRequest{Login: "bob@example.com", Password: "password-123"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seedUser(t, "carol", "right-password", true)

	_, err := f.svc.Login(context.Background(), LoginRequest{Login: "carol", Password: "wrong-password"})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())

	_, err = f.svc.Login(context.Background(), LoginRequest{Login: "nobody", Password: "whatever"})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seedUser(t, "dan", "password-123", false)

	_, err := f.svc.Login(context.Background(), LoginRequest{Login: "dan", Password: "password-123"})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestRefreshRotatesSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seedUser(t, "eve", "password-123", true)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, LoginRequest{Login: "eve", Password: "password-123"})
	require.NoError(t, err)

	refreshed, err := f.svc.Refresh(ctx, RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The old refresh token is single use.
	_, err = f.svc.Refresh(ctx, RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestRefreshRejectsTamperedToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seedUser(t, "frank", "password-123", true)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, LoginRequest{Login: "frank", Password: "password-123"})
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, RefreshRequest{
		AccessToken:  login.AccessToken + "x",
		RefreshToken: login.RefreshToken,
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestLogoutRevokesSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seedUser(t, "grace", "password-123", true)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, LoginRequest{Login: "grace", Password: "password-123"})
	require.NoError(t, err)

	claims, err := pkgAuth.ParseAccessToken(f.jwtCfg, login.AccessToken)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, claims.ID))

	_, err = f.svc.Refresh(ctx, RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}
