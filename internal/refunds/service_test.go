package refunds

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/CarlusInnocent/HotPOS/internal/sales"
	"github.com/CarlusInnocent/HotPOS/internal/serials"
	"github.com/CarlusInnocent/HotPOS/internal/stock"
	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
	"github.com/CarlusInnocent/HotPOS/pkg/enums"
	apperrors "github.com/CarlusInnocent/HotPOS/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:refunds_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Branch{},
		&models.Category{},
		&models.Product{},
		&models.Customer{},
		&models.User{},
		&models.StockItem{},
		&models.StockMovement{},
		&models.SerialUnit{},
		&models.BranchSequence{},
		&models.Sale{},
		&models.SaleItem{},
		&models.Refund{},
		&models.RefundItem{},
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
	salesSvc sales.Service
	ledger   stock.Ledger
	serials  serials.Service
	runner   testRunner
	branch   models.Branch
}

func newFixture(t *testing.T, branchCode string) *fixture {
	t.Helper()
	conn := newTestDB(t)
	runner := testRunner{db: conn}

	ledger, err := stock.NewLedger(stock.NewRepository(conn), runner, nil, nil, nil, 5)
	require.NoError(t, err)
	serialSvc, err := serials.NewService(serials.NewRepository(conn), nil, nil)
	require.NoError(t, err)
	salesRepo := sales.NewRepository(conn)
	salesSvc, err := sales.NewService(salesRepo, runner, ledger, serialSvc, nil, nil, nil, 5)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), salesRepo, runner, ledger, serialSvc, nil, nil)
	require.NoError(t, err)

	branch := models.Branch{Name: "Branch " + branchCode, Code: branchCode, IsActive: true}
	require.NoError(t, conn.Create(&branch).Error)

	return &fixture{conn: conn, svc: svc, salesSvc: salesSvc, ledger: ledger, serials: serialSvc, runner: runner, branch: branch}
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

func (f *fixture) stockUp(t *testing.T, productID uint, quantity int, serialCodes []string) {
	t.Helper()
	ctx := context.Background()
	cost := decimal.NewFromInt(90)
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

func (f *fixture) sell(t *testing.T, productID uint, quantity int, serialCodes []string) *models.Sale {
	t.Helper()
	sale, err := f.salesSvc.Create(context.Background(), sales.CreateInput{
		BranchID:      f.branch.ID,
		CashierID:     1,
		PaymentMethod: enums.PaymentMethodCash,
		PaymentStatus: enums.PaymentStatusPaid,
		Lines:         []sales.LineInput{{ProductID: productID, Quantity: quantity, SerialCodes: serialCodes}},
	})
	require.NoError(t, err)
	return sale
}

func TestCreateValidatesAgainstSale(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "KLA")
	product := f.seedProduct(t, "SKU-1", false)
	f.stockUp(t, product.ID, 10, nil)
	sale := f.sell(t, product.ID, 3, nil)

	ctx := context.Background()
	refund, err := f.svc.Create(ctx, CreateInput{
		SaleID:      sale.ID,
		RequestedBy: 2,
		Lines:       []LineInput{{ProductID: product.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, enums.ApprovalStatusPending, refund.Status)
	require.Contains(t, refund.RefundNumber, "RFD-KLA-")
	require.True(t, refund.TotalAmount.Equal(decimal.NewFromInt(300)))

	// More than sold is rejected outright.
	_, err = f.svc.Create(ctx, CreateInput{
		SaleID:      sale.ID,
		RequestedBy: 2,
		Lines:       []LineInput{{ProductID: product.ID, Quantity: 4}},
	})
	require.Error(t, err)
	require.Equal(t, apperrors.CodeValidation, apperrors.As(err).Code())

	// A product that was never on the sale is rejected.
	other := f.seedProduct(t, "SKU-1B", false)
	_, err = f.svc.Create(ctx, CreateInput{
		SaleID:      sale.ID,
		RequestedBy: 2,
		Lines:       []LineInput{{ProductID: other.ID, Quantity: 1}},
	})
	require.Error(t, err)
	require.Equal(t, apperrors.CodeValidation, apperrors.As(err).Code())
}

func TestApproveRestocksAndMarksSale(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "MBR")
	product := f.seedProduct(t, "SKU-2", false)
	f.stockUp(t, product.ID, 10, nil)
	sale := f.sell(t, product.ID, 4, nil)

	ctx := context.Background()
	refund, err := f.svc.Create(ctx, CreateInput{
		SaleID:      sale.ID,
		RequestedBy: 2,
		Lines:       []LineInput{{ProductID: product.ID, Quantity: 3}},
	})
	require.NoError(t, err)

	approved, err := f.svc.Approve(ctx, refund.ID, 3, nil)
	require.NoError(t, err)
	require.Equal(t, enums.ApprovalStatusApproved, approved.Status)

	qty, err := f.ledger.AvailableQuantity(ctx, f.branch.ID, product.ID)
	require.NoError(t, err)
	require.Equal(t, 9, qty)

	var movements []models.StockMovement
	require.NoError(t, f.conn.Where("type = ?", enums.MovementTypeCustomerRefund).Find(&movements).Error)
	require.Len(t, movements, 1)
	require.Equal(t, 3, movements[0].Quantity)

	annotated, err := f.salesSvc.Get(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, enums.RefundStatusPartial, annotated.RefundStatus)
}

func TestApproveReleasesSerialUnits(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "GUL")
	product := f.seedProduct(t, "SKU-3", true)
	f.stockUp(t, product.ID, 2, []string{"SN-001", "SN-002"})
	sale := f.sell(t, product.ID, 2, []string{"SN-001", "SN-002"})

	ctx := context.Background()
	refund, err := f.svc.Create(ctx, CreateInput{
		SaleID:      sale.ID,
		RequestedBy: 2,
		Lines:       []LineInput{{ProductID: product.ID, Quantity: 1, SerialCodes: []string{"SN-002"}}},
	})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, refund.ID, 3, map[uint][]string{product.ID: {"SN-002"}})
	require.NoError(t, err)

	var unit models.SerialUnit
	require.NoError(t, f.conn.Where("serial_code = ?", "SN-002").First(&unit).Error)
	require.Equal(t, enums.SerialStatusReturned, unit.Status)
	require.Nil(t, unit.SaleID)

	var untouched models.SerialUnit
	require.NoError(t, f.conn.Where("serial_code = ?", "SN-001").First(&untouched).Error)
	require.Equal(t, enums.SerialStatusSold, untouched.Status)
}

func TestApproveGuardsAgainstDoubleRefund(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "JJA")
	product := f.seedProduct(t, "SKU-4", false)
	f.stockUp(t, product.ID, 10, nil)
	sale := f.sell(t, product.ID, 2, nil)

	ctx := context.Background()
	first, err := f.svc.Create(ctx, CreateInput{
		SaleID:      sale.ID,
		RequestedBy: 2,
		Lines:       []LineInput{{ProductID: product.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, CreateInput{
		SaleID:      sale.ID,
		RequestedBy: 2,
		Lines:       []LineInput{{ProductID: product.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, first.ID, 3, nil)
	require.NoError(t, err)

	// The guarded increment stops the second approval even though both
	// requests passed validation when created.
	_, err = f.svc.Approve(ctx, second.ID, 3, nil)
	require.Error(t, err)
	require.Equal(t, apperrors.CodeConflict, apperrors.As(err).Code())

	qty, err := f.ledger.AvailableQuantity(ctx, f.branch.ID, product.ID)
	require.NoError(t, err)
	require.Equal(t, 10, qty)
}

func TestRejectLeavesEverythingAlone(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "NSA")
	product := f.seedProduct(t, "SKU-5", false)
	f.stockUp(t, product.ID, 5, nil)
	sale := f.sell(t, product.ID, 2, nil)

	ctx := context.Background()
	refund, err := f.svc.Create(ctx, CreateInput{
		SaleID:      sale.ID,
		RequestedBy: 2,
		Lines:       []LineInput{{ProductID: product.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	rejected, err := f.svc.Reject(ctx, refund.ID, 3)
	require.NoError(t, err)
	require.Equal(t, enums.ApprovalStatusRejected, rejected.Status)

	qty, err := f.ledger.AvailableQuantity(ctx, f.branch.ID, product.ID)
	require.NoError(t, err)
	require.Equal(t, 3, qty)

	annotated, err := f.salesSvc.Get(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, enums.RefundStatusNone, annotated.RefundStatus)

	_, err = f.svc.Approve(ctx, refund.ID, 3, nil)
	require.Error(t, err)
	require.Equal(t, apperrors.CodeStateConflict, apperrors.As(err).Code())
}
