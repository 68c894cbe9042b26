package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/CarlusInnocent/HotPOS/pkg/config"
	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
	"github.com/CarlusInnocent/HotPOS/pkg/enums"
	apperrors "github.com/CarlusInnocent/HotPOS/pkg/errors"
	"github.com/CarlusInnocent/HotPOS/pkg/security"
)

type fixture struct {
	conn   *gorm.DB
	svc    Service
	branch models.Branch
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:users_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Branch{}, &models.User{}))

	svc, err := NewService(NewRepository(conn), config.PasswordConfig{})
	require.NoError(t, err)

	branch := models.Branch{Name: "Kampala Main", Code: "KLA", IsActive: true}
	require.NoError(t, conn.Create(&branch).Error)

	return &fixture{conn: conn, svc: svc, branch: branch}
}

func TestCreateHashesPasswordAndNormalizes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	user, temp, err := f.svc.Create(ctx, CreateInput{
		Username: " Alice ",
		Email:    "Alice@Example.com",
		Password: "s3cret-pass",
		FullName: "Alice Namutebi",
		Role:     enums.UserRoleManager,
	})
	require.NoError(t, err)
	require.Empty(t, temp)
	require.Equal(t, "alice", user.Username)
	require.Equal(t, "alice@example.com", user.Email)
	require.NotEqual(t, "s3cret-pass", user.PasswordHash)

	ok, err := security.VerifyPassword("s3cret-pass", user.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCreateGeneratesTempPasswordWhenOmitted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	user, temp, err := f.svc.Create(context.Background(), CreateInput{
		Username: "bob",
		Email:    "bob@example.com",
		FullName: "Bob Okidi",
		Role:     enums.UserRoleAdmin,
	})
	require.NoError(t, err)
	require.Len(t, temp, 12)

	ok, err := security.VerifyPassword(temp, user.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCreateEnforcesUniqueUsernameAndEmail(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.Create(ctx, CreateInput{
		Username: "carol", Email: "carol@example.com", Password: "password1",
		FullName: "Carol Atim", Role: enums.UserRoleManager,
	})
	require.NoError(t, err)

	_, _, err = f.svc.Create(ctx, CreateInput{
		Username: "carol", Email: "other@example.com", Password: "password1",
		FullName: "Other Carol", Role: enums.UserRoleManager,
	})
	require.Error(t, err)
	require.Equal(t, apperrors.CodeConflict, apperrors.As(err).Code())
}

func TestCashierRequiresBranch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.Create(ctx, CreateInput{
		Username: "dan", Email: "dan@example.com", Password: "password1",
		FullName: "Dan Ojok", Role: enums.UserRoleCashier,
	})
	require.Error(t, err)
	require.Equal(t, apperrors.CodeValidation, apperrors.As(err).Code())

	user, _, err := f.svc.Create(ctx, CreateInput{
		Username: "dan", Email: "dan@example.com", Password: "password1",
		FullName: "Dan Ojok", Role: enums.UserRoleCashier, BranchID: &f.branch.ID,
	})
	require.NoError(t, err)
	require.Equal(t, f.branch.ID, *user.BranchID)
}

func TestCreateRejectsUnknownRole(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, _, err := f.svc.Create(context.Background(), CreateInput{
		Username: "eve", Email: "eve@example.com", Password: "password1",
		FullName: "Eve Apio", Role: enums.UserRole("SUPERUSER"),
	})
	require.Error(t, err)
	require.Equal(t, apperrors.CodeValidation, apperrors.As(err).Code())
}

func TestUpdateAppliesOnlySetFields(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	user, _, err := f.svc.Create(ctx, CreateInput{
		Username: "frank", Email: "frank@example.com", Password: "password1",
		FullName: "Frank Mwesigwa", Role: enums.UserRoleManager,
	})
	require.NoError(t, err)

	inactive := false
	name := "Frank M. Mwesigwa"
	updated, err := f.svc.Update(ctx, user.ID, UpdateInput{FullName: &name, IsActive: &inactive})
	require.NoError(t, err)
	require.Equal(t, "Frank M. Mwesigwa", updated.FullName)
	require.Equal(t, "frank@example.com", updated.Email)
	require.False(t, updated.IsActive)
}

func TestChangePasswordVerifiesCurrent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	user, _, err := f.svc.Create(ctx, CreateInput{
		Username: "grace", Email: "grace@example.com", Password: "old-password",
		FullName: "Grace Nansubuga", Role: enums.UserRoleManager,
	})
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, user.ID, "wrong-password", "new-password")
	require.Error(t, err)
	require.Equal(t, apperrors.CodeUnauthorized, apperrors.As(err).Code())

	require.NoError(t, f.svc.ChangePassword(ctx, user.ID, "old-password", "new-password"))

	reloaded, err := f.svc.Get(ctx, user.ID)
	require.NoError(t, err)
	ok, err := security.VerifyPassword("new-password", reloaded.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestResetPasswordIssuesTempCredential(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	user, _, err := f.svc.Create(ctx, CreateInput{
		Username: "henry", Email: "henry@example.com", Password: "original",
		FullName: "Henry Kato", Role: enums.UserRoleManager,
	})
	require.NoError(t, err)

	temp, err := f.svc.ResetPassword(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, temp, 12)

	reloaded, err := f.svc.Get(ctx, user.ID)
	require.NoError(t, err)
	ok, err := security.VerifyPassword(temp, reloaded.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = security.VerifyPassword("original", reloaded.PasswordHash)
	require.NoError(t, err)
	require.False(t, ok)
}
