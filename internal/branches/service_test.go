package branches

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
	apperrors "github.com/CarlusInnocent/HotPOS/pkg/errors"
)

func newService(t *testing.T) Service {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:branches_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Branch{}))
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	return svc
}

func TestCreateNormalizesAndEnforcesUniqueCode(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	ctx := context.Background()

	branch, err := svc.Create(ctx, CreateInput{Name: "Kampala Main", Code: " kla "})
	require.NoError(t, err)
	require.Equal(t, "KLA", branch.Code)
	require.True(t, branch.IsActive)

	_, err = svc.Create(ctx, CreateInput{Name: "Kampala Annex", Code: "KLA"})
	require.Error(t, err)
	require.Equal(t, apperrors.CodeConflict, apperrors.As(err).Code())
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "", Code: "KLA"})
	require.Error(t, err)
	require.Equal(t, apperrors.CodeValidation, apperrors.As(err).Code())

	_, err = svc.Create(ctx, CreateInput{Name: "No Code", Code: "  "})
	require.Error(t, err)
	require.Equal(t, apperrors.CodeValidation, apperrors.As(err).Code())
}

func TestGetByCode(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Name: "Mbarara", Code: "MBR"})
	require.NoError(t, err)

	found, err := svc.GetByCode(ctx, "mbr")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	_, err = svc.GetByCode(ctx, "XXX")
	require.Error(t, err)
	require.Equal(t, apperrors.CodeNotFound, apperrors.As(err).Code())
}

func TestUpdateKeepsCodeImmutable(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Name: "Gulu", Code: "GUL"})
	require.NoError(t, err)

	name := "Gulu City"
	inactive := false
	updated, err := svc.Update(ctx, created.ID, UpdateInput{Name: &name, IsActive: &inactive})
	require.NoError(t, err)
	require.Equal(t, "Gulu City", updated.Name)
	require.Equal(t, "GUL", updated.Code)
	require.False(t, updated.IsActive)
}

func TestListActiveOnly(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "Jinja", Code: "JJA"})
	require.NoError(t, err)
	closed, err := svc.Create(ctx, CreateInput{Name: "Entebbe", Code: "EBB"})
	require.NoError(t, err)

	inactive := false
	_, err = svc.Update(ctx, closed.ID, UpdateInput{IsActive: &inactive})
	require.NoError(t, err)

	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	active, err := svc.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "JJA", active[0].Code)
}
