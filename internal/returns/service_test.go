package returns

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/CarlusInnocent/HotPOS/internal/serials"
	"github.com/CarlusInnocent/HotPOS/internal/stock"
	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
	"github.com/CarlusInnocent/HotPOS/pkg/enums"
	apperrors "github.com/CarlusInnocent/HotPOS/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:returns_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Branch{},
		&models.Category{},
		&models.Product{},
		&models.Supplier{},
		&models.StockItem{},
		&models.StockMovement{},
		&models.SerialUnit{},
		&models.SupplierReturn{},
		&models.SupplierReturnItem{},
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

type fixture struct {
	conn     *gorm.DB
	svc      Service
	ledger   stock.Ledger
	serials  serials.Service
	runner   testRunner
	branch   models.Branch
	supplier models.Supplier
}

func newFixture(t *testing.T, branchCode string) *fixture {
	t.Helper()
	conn := newTestDB(t)
	runner := testRunner{db: conn}

	ledger, err := stock.NewLedger(stock.NewRepository(conn), runner, nil, nil, nil, 5)
	require.NoError(t, err)
	serialSvc, err := serials.NewService(serials.NewRepository(conn), nil, nil)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), runner, ledger, serialSvc, nil, nil)
	require.NoError(t, err)

	branch := models.Branch{Name: "Branch " + branchCode, Code: branchCode, IsActive: true}
	require.NoError(t, conn.Create(&branch).Error)
	supplier := models.Supplier{Name: "Supplier " + branchCode, IsActive: true}
	require.NoError(t, conn.Create(&supplier).Error)

	return &fixture{conn: conn, svc: svc, ledger: ledger, serials: serialSvc, runner: runner, branch: branch, supplier: supplier}
}

func (f *fixture) seedProduct(t *testing.T, sku string, serialTracked bool) models.Product {
	t.Helper()
	product := models.Product{
		SKU:           sku,
		Name:          "Product " + sku,
		CostPrice:     decimal.NewFromInt(100),
		SellingPrice:  decimal.NewFromInt(150),
		SerialTracked: serialTracked,
		IsActive:      true,
	}
	require.NoError(t, f.conn.Create(&product).Error)
	return product
}

func (f *fixture) stockUp(t *testing.T, productID uint, quantity int, unitCost int64, serialCodes []string) {
	t.Helper()
	ctx := context.Background()
	cost := decimal.NewFromInt(unitCost)
	require.NoError(t, f.runner.WithTx(ctx, func(tx *gorm.DB) error {
		item, err := f.ledger.Apply(ctx, tx, stock.MovementInput{
			BranchID:  f.branch.ID,
			ProductID: productID,
			Delta:     quantity,
			Type:      enums.MovementTypePurchaseReceived,
			UnitCost:  &cost,
		})
		if err != nil {
			return err
		}
		if len(serialCodes) > 0 {
			_, err = f.serials.CreateBatch(ctx, tx, item.ID, nil, serialCodes)
		}
		return err
	}))
}

func TestCreateCapturesCostAndStaysPending(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "KLA")
	product := f.seedProduct(t, "SKU-1", false)
	f.stockUp(t, product.ID, 10, 70, nil)

	ctx := context.Background()
	reason := "expired batch"
	ret, err := f.svc.Create(ctx, CreateInput{
		BranchID:    f.branch.ID,
		SupplierID:  f.supplier.ID,
		RequestedBy: 1,
		Reason:      &reason,
		Lines:       []LineInput{{ProductID: product.ID, Quantity: 3}},
	})
	require.NoError(t, err)
	require.Equal(t, enums.ApprovalStatusPending, ret.Status)
	require.Contains(t, ret.ReturnNumber, "RET-KLA-")
	require.Len(t, ret.Items, 1)
	require.True(t, ret.Items[0].UnitCost.Equal(decimal.NewFromInt(70)))

	qty, err := f.ledger.AvailableQuantity(ctx, f.branch.ID, product.ID)
	require.NoError(t, err)
	require.Equal(t, 10, qty)
}

func TestApproveDeductsStock(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "MBR")
	product := f.seedProduct(t, "SKU-2", false)
	f.stockUp(t, product.ID, 10, 70, nil)

	ctx := context.Background()
	ret, err := f.svc.Create(ctx, CreateInput{
		BranchID:    f.branch.ID,
		SupplierID:  f.supplier.ID,
		RequestedBy: 1,
		Lines:       []LineInput{{ProductID: product.ID, Quantity: 4}},
	})
	require.NoError(t, err)

	approved, err := f.svc.Approve(ctx, ret.ID, 2, nil)
	require.NoError(t, err)
	require.Equal(t, enums.ApprovalStatusApproved, approved.Status)
	require.NotNil(t, approved.DecidedAt)

	qty, err := f.ledger.AvailableQuantity(ctx, f.branch.ID, product.ID)
	require.NoError(t, err)
	require.Equal(t, 6, qty)

	var movements []models.StockMovement
	require.NoError(t, f.conn.Where("type = ?", enums.MovementTypeSupplierReturn).Find(&movements).Error)
	require.Len(t, movements, 1)
	require.Equal(t, -4, movements[0].Quantity)
}

func TestApproveRetiresSerialUnits(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "GUL")
	product := f.seedProduct(t, "SKU-3", true)
	f.stockUp(t, product.ID, 2, 600, []string{"SN-001", "SN-002"})

	ctx := context.Background()
	ret, err := f.svc.Create(ctx, CreateInput{
		BranchID:    f.branch.ID,
		SupplierID:  f.supplier.ID,
		RequestedBy: 1,
		Lines:       []LineInput{{ProductID: product.ID, Quantity: 1, SerialCodes: []string{"SN-001"}}},
	})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, ret.ID, 2, map[uint][]string{product.ID: {"SN-001"}})
	require.NoError(t, err)

	var unit models.SerialUnit
	require.NoError(t, f.conn.Where("serial_code = ?", "SN-001").First(&unit).Error)
	require.Equal(t, enums.SerialStatusReturned, unit.Status)

	var untouched models.SerialUnit
	require.NoError(t, f.conn.Where("serial_code = ?", "SN-002").First(&untouched).Error)
	require.Equal(t, enums.SerialStatusInStock, untouched.Status)
}

func TestApproveInsufficientStockRollsBack(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "JJA")
	product := f.seedProduct(t, "SKU-4", false)
	f.stockUp(t, product.ID, 2, 70, nil)

	ctx := context.Background()
	ret, err := f.svc.Create(ctx, CreateInput{
		BranchID:    f.branch.ID,
		SupplierID:  f.supplier.ID,
		RequestedBy: 1,
		Lines:       []LineInput{{ProductID: product.ID, Quantity: 5}},
	})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, ret.ID, 2, nil)
	require.Error(t, err)
	require.Equal(t, apperrors.CodeInsufficientStock, apperrors.As(err).Code())

	reloaded, err := f.svc.Get(ctx, ret.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ApprovalStatusPending, reloaded.Status)
}

func TestRejectLeavesStockAlone(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "NSA")
	product := f.seedProduct(t, "SKU-5", false)
	f.stockUp(t, product.ID, 6, 70, nil)

	ctx := context.Background()
	ret, err := f.svc.Create(ctx, CreateInput{
		BranchID:    f.branch.ID,
		SupplierID:  f.supplier.ID,
		RequestedBy: 1,
		Lines:       []LineInput{{ProductID: product.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	rejected, err := f.svc.Reject(ctx, ret.ID, 2)
	require.NoError(t, err)
	require.Equal(t, enums.ApprovalStatusRejected, rejected.Status)

	qty, err := f.ledger.AvailableQuantity(ctx, f.branch.ID, product.ID)
	require.NoError(t, err)
	require.Equal(t, 6, qty)

	// A decided return cannot be approved afterwards.
	_, err = f.svc.Approve(ctx, ret.ID, 2, nil)
	require.Error(t, err)
	require.Equal(t, apperrors.CodeStateConflict, apperrors.As(err).Code())
}
