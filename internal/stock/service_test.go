package stock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
	"github.com/CarlusInnocent/HotPOS/pkg/enums"
	apperrors "github.com/CarlusInnocent/HotPOS/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:stock_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Branch{},
		&models.Category{},
		&models.Product{},
		&models.StockItem{},
		&models.StockMovement{},
	))
	return conn
}

type testRunner struct {
	db *gorm.DB
}

func (r testRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func newTestLedger(t *testing.T, conn *gorm.DB) Ledger {
	t.Helper()
	led, err := NewLedger(NewRepository(conn), testRunner{db: conn}, nil, nil, nil, 5)
	require.NoError(t, err)
	return led
}

func seedProduct(t *testing.T, conn *gorm.DB, sku string, threshold *int) models.Product {
	t.Helper()
	product := models.Product{
		SKU:               sku,
		Name:              "Product " + sku,
		CostPrice:         decimal.NewFromInt(100),
		SellingPrice:      decimal.NewFromInt(150),
		LowStockThreshold: threshold,
		IsActive:          true,
	}
	require.NoError(t, conn.Create(&product).Error)
	return product
}

func seedBranch(t *testing.T, conn *gorm.DB, code string) models.Branch {
	t.Helper()
	branch := models.Branch{Name: "Branch " + code, Code: code, IsActive: true}
	require.NoError(t, conn.Create(&branch).Error)
	return branch
}

func TestApplyInboundCreatesItemAndMovement(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	led := newTestLedger(t, conn)
	branch := seedBranch(t, conn, "KLA")
	product := seedProduct(t, conn, "SKU-1", nil)

	ctx := context.Background()
	cost := decimal.NewFromInt(80)
	err := testRunner{db: conn}.WithTx(ctx, func(tx *gorm.DB) error {
		item, err := led.Apply(ctx, tx, MovementInput{
			BranchID:      branch.ID,
			ProductID:     product.ID,
			Delta:         10,
			Type:          enums.MovementTypePurchaseReceived,
			ReferenceType: "purchase",
			ReferenceID:   1,
			UnitCost:      &cost,
		})
		if err != nil {
			return err
		}
		require.Equal(t, 10, item.Quantity)
		return nil
	})
	require.NoError(t, err)

	var item models.StockItem
	require.NoError(t, conn.Where("branch_id = ? AND product_id = ?", branch.ID, product.ID).First(&item).Error)
	require.Equal(t, 10, item.Quantity)
	require.True(t, item.CostPrice.Equal(cost))
	require.NotNil(t, item.LastStockDate)

	var movements []models.StockMovement
	require.NoError(t, conn.Where("stock_item_id = ?", item.ID).Find(&movements).Error)
	require.Len(t, movements, 1)
	require.Equal(t, enums.MovementTypePurchaseReceived, movements[0].Type)
	require.Equal(t, 10, movements[0].Quantity)
	require.Equal(t, 10, movements[0].QuantityAfter)
}

func TestApplyRejectsNegativeQuantity(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	led := newTestLedger(t, conn)
	branch := seedBranch(t, conn, "MBR")
	product := seedProduct(t, conn, "SKU-2", nil)

	ctx := context.Background()
	runner := testRunner{db: conn}
	require.NoError(t, runner.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := led.Apply(ctx, tx, MovementInput{
			BranchID:  branch.ID,
			ProductID: product.ID,
			Delta:     3,
			Type:      enums.MovementTypePurchaseReceived,
		})
		return err
	}))

	err := runner.WithTx(ctx, func(tx *gorm.DB) error {
		_, applyErr := led.Apply(ctx, tx, MovementInput{
			BranchID:  branch.ID,
			ProductID: product.ID,
			Delta:     -5,
			Type:      enums.MovementTypeSale,
		})
		return applyErr
	})
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, apperrors.CodeInsufficientStock, typed.Code())

	qty, err := led.AvailableQuantity(ctx, branch.ID, product.ID)
	require.NoError(t, err)
	require.Equal(t, 3, qty)
}

func TestApplyRejectsZeroDelta(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	led := newTestLedger(t, conn)
	branch := seedBranch(t, conn, "GUL")
	product := seedProduct(t, conn, "SKU-3", nil)

	err := testRunner{db: conn}.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, applyErr := led.Apply(context.Background(), tx, MovementInput{
			BranchID:  branch.ID,
			ProductID: product.ID,
			Delta:     0,
			Type:      enums.MovementTypeSale,
		})
		return applyErr
	})
	require.Error(t, err)
	require.Equal(t, apperrors.CodeValidation, apperrors.As(err).Code())
}

func TestCorrectOverridesBookQuantity(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	led := newTestLedger(t, conn)
	branch := seedBranch(t, conn, "JJA")
	product := seedProduct(t, conn, "SKU-4", nil)

	ctx := context.Background()
	require.NoError(t, testRunner{db: conn}.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := led.Apply(ctx, tx, MovementInput{
			BranchID:  branch.ID,
			ProductID: product.ID,
			Delta:     8,
			Type:      enums.MovementTypePurchaseReceived,
		})
		return err
	}))

	item, err := led.Correct(ctx, CorrectInput{
		BranchID:   branch.ID,
		ProductID:  product.ID,
		CountedQty: 5,
		ActorID:    1,
	})
	require.NoError(t, err)
	require.Equal(t, 5, item.Quantity)

	var movements []models.StockMovement
	require.NoError(t, conn.Where("type = ?", enums.MovementTypeCountCorrection).Find(&movements).Error)
	require.Len(t, movements, 1)
	require.Equal(t, -3, movements[0].Quantity)
	require.Equal(t, 5, movements[0].QuantityAfter)
}

func TestCorrectNoopWhenCountMatches(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	led := newTestLedger(t, conn)
	branch := seedBranch(t, conn, "ARU")
	product := seedProduct(t, conn, "SKU-5", nil)

	ctx := context.Background()
	item, err := led.Correct(ctx, CorrectInput{
		BranchID:   branch.ID,
		ProductID:  product.ID,
		CountedQty: 0,
		ActorID:    1,
	})
	require.NoError(t, err)
	require.Equal(t, 0, item.Quantity)

	var count int64
	require.NoError(t, conn.Model(&models.StockMovement{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestAvailableQuantityDefaultsToZero(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	led := newTestLedger(t, conn)
	branch := seedBranch(t, conn, "FTP")
	product := seedProduct(t, conn, "SKU-6", nil)

	qty, err := led.AvailableQuantity(context.Background(), branch.ID, product.ID)
	require.NoError(t, err)
	require.Zero(t, qty)
}

func TestLowStockUsesProductThresholdWithFallback(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	led := newTestLedger(t, conn)
	branch := seedBranch(t, conn, "NSA")
	threshold := 20
	custom := seedProduct(t, conn, "SKU-7", &threshold)
	fallback := seedProduct(t, conn, "SKU-8", nil)

	ctx := context.Background()
	runner := testRunner{db: conn}
	require.NoError(t, runner.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := led.Apply(ctx, tx, MovementInput{
			BranchID: branch.ID, ProductID: custom.ID, Delta: 15, Type: enums.MovementTypePurchaseReceived,
		}); err != nil {
			return err
		}
		_, err := led.Apply(ctx, tx, MovementInput{
			BranchID: branch.ID, ProductID: fallback.ID, Delta: 15, Type: enums.MovementTypePurchaseReceived,
		})
		return err
	}))

	low, err := led.LowStock(ctx, branch.ID)
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, custom.ID, low[0].ProductID)
}
