package sales

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
	conn, err := gorm.Open(sqlite.Open("file:sales_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
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
	conn    *gorm.DB
	svc     Service
	ledger  stock.Ledger
	serials serials.Service
	runner  testRunner
	branch  models.Branch
}

func newFixture(t *testing.T, branchCode string) *fixture {
	t.Helper()
	conn := newTestDB(t)
	runner := testRunner{db: conn}

	ledger, err := stock.NewLedger(stock.NewRepository(conn), runner, nil, nil, nil, 5)
	require.NoError(t, err)
	serialSvc, err := serials.NewService(serials.NewRepository(conn), nil, nil)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), runner, ledger, serialSvc, nil, nil, nil, 5)
	require.NoError(t, err)

	branch := models.Branch{Name: "Branch " + branchCode, Code: branchCode, IsActive: true}
	require.NoError(t, conn.Create(&branch).Error)

	return &fixture{conn: conn, svc: svc, ledger: ledger, serials: serialSvc, runner: runner, branch: branch}
}

func (f *fixture) seedProduct(t *testing.T, sku string, serialTracked bool, sellingPrice int64) models.Product {
	t.Helper()
	product := models.Product{
		SKU:           sku,
		Name:          "Product " + sku,
		CostPrice:     decimal.NewFromInt(100),
		SellingPrice:  decimal.NewFromInt(sellingPrice),
		SerialTracked: serialTracked,
		IsActive:      true,
	}
	require.NoError(t, f.conn.Create(&product).Error)
	return product
}

func (f *fixture) stockUp(t *testing.T, productID uint, quantity int, unitCost int64, serialCodes []string) models.StockItem {
	t.Helper()
	ctx := context.Background()
	cost := decimal.NewFromInt(unitCost)
	var item *models.StockItem
	require.NoError(t, f.runner.WithTx(ctx, func(tx *gorm.DB) error {
		applied, err := f.ledger.Apply(ctx, tx, stock.MovementInput{
			BranchID:  f.branch.ID,
			ProductID: productID,
			Delta:     quantity,
			Type:      enums.MovementTypePurchaseReceived,
			UnitCost:  &cost,
		})
		if err != nil {
			return err
		}
		item = applied
		if len(serialCodes) > 0 {
			_, err = f.serials.CreateBatch(ctx, tx, applied.ID, nil, serialCodes)
		}
		return err
	}))
	return *item
}

func TestCreateSaleDecrementsStockAndNumbersSale(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "KLA")
	product := f.seedProduct(t, "SKU-1", false, 150)
	f.stockUp(t, product.ID, 10, 90, nil)

	ctx := context.Background()
	sale, err := f.svc.Create(ctx, CreateInput{
		BranchID:      f.branch.ID,
		CashierID:     1,
		PaymentMethod: enums.PaymentMethodCash,
		PaymentStatus: enums.PaymentStatusPaid,
		Lines:         []LineInput{{ProductID: product.ID, Quantity: 3}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), sale.SequenceNumber)
	require.Contains(t, sale.SaleNumber, "SL-KLA-")
	require.Equal(t, "REF-00001", sale.ReferenceNumber)
	require.True(t, sale.TotalAmount.Equal(decimal.NewFromInt(450)))
	require.True(t, sale.TotalCost.Equal(decimal.NewFromInt(270)))

	qty, err := f.ledger.AvailableQuantity(ctx, f.branch.ID, product.ID)
	require.NoError(t, err)
	require.Equal(t, 7, qty)

	var movements []models.StockMovement
	require.NoError(t, f.conn.Where("type = ?", enums.MovementTypeSale).Find(&movements).Error)
	require.Len(t, movements, 1)
	require.Equal(t, -3, movements[0].Quantity)
	require.Equal(t, 7, movements[0].QuantityAfter)

	second, err := f.svc.Create(ctx, CreateInput{
		BranchID:      f.branch.ID,
		CashierID:     1,
		PaymentMethod: enums.PaymentMethodCard,
		PaymentStatus: enums.PaymentStatusPaid,
		Lines:         []LineInput{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), second.SequenceNumber)
	require.Equal(t, "REF-00002", second.ReferenceNumber)
}

func TestCreateSaleMarksSerialsSold(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "MBR")
	product := f.seedProduct(t, "SKU-2", true, 900)
	f.stockUp(t, product.ID, 2, 700, []string{"SN-001", "SN-002"})

	ctx := context.Background()
	sale, err := f.svc.Create(ctx, CreateInput{
		BranchID:      f.branch.ID,
		CashierID:     2,
		PaymentMethod: enums.PaymentMethodMobileMoney,
		PaymentStatus: enums.PaymentStatusPaid,
		Lines:         []LineInput{{ProductID: product.ID, Quantity: 2, SerialCodes: []string{"SN-001", "SN-002"}}},
	})
	require.NoError(t, err)

	var units []models.SerialUnit
	require.NoError(t, f.conn.Order("serial_code").Find(&units).Error)
	require.Len(t, units, 2)
	for _, unit := range units {
		require.Equal(t, enums.SerialStatusSold, unit.Status)
		require.NotNil(t, unit.SaleID)
		require.Equal(t, sale.ID, *unit.SaleID)
	}
}

func TestCreateSaleRejectsSerialCountMismatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "GUL")
	product := f.seedProduct(t, "SKU-3", true, 900)
	f.stockUp(t, product.ID, 2, 700, []string{"SN-100", "SN-101"})

	_, err := f.svc.Create(context.Background(), CreateInput{
		BranchID:      f.branch.ID,
		CashierID:     2,
		PaymentMethod: enums.PaymentMethodCash,
		PaymentStatus: enums.PaymentStatusPaid,
		Lines:         []LineInput{{ProductID: product.ID, Quantity: 2, SerialCodes: []string{"SN-100"}}},
	})
	require.Error(t, err)
	require.Equal(t, apperrors.CodeSerialCountMismatch, apperrors.As(err).Code())

	var count int64
	require.NoError(t, f.conn.Model(&models.Sale{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCreateSaleInsufficientStockRollsBack(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "JJA")
	product := f.seedProduct(t, "SKU-4", false, 200)
	f.stockUp(t, product.ID, 1, 100, nil)

	ctx := context.Background()
	_, err := f.svc.Create(ctx, CreateInput{
		BranchID:      f.branch.ID,
		CashierID:     3,
		PaymentMethod: enums.PaymentMethodCash,
		PaymentStatus: enums.PaymentStatusPaid,
		Lines:         []LineInput{{ProductID: product.ID, Quantity: 2}},
	})
	require.Error(t, err)
	require.Equal(t, apperrors.CodeInsufficientStock, apperrors.As(err).Code())

	var saleCount int64
	require.NoError(t, f.conn.Model(&models.Sale{}).Count(&saleCount).Error)
	require.Zero(t, saleCount)

	qty, err := f.ledger.AvailableQuantity(ctx, f.branch.ID, product.ID)
	require.NoError(t, err)
	require.Equal(t, 1, qty)
}

func TestCreateSalePricePriority(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "NSA")
	product := f.seedProduct(t, "SKU-5", false, 150)
	item := f.stockUp(t, product.ID, 10, 100, nil)

	ctx := context.Background()

	// Catalog price applies when the branch has no price of its own.
	sale, err := f.svc.Create(ctx, CreateInput{
		BranchID:      f.branch.ID,
		CashierID:     4,
		PaymentMethod: enums.PaymentMethodCash,
		PaymentStatus: enums.PaymentStatusPaid,
		Lines:         []LineInput{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.True(t, sale.TotalAmount.Equal(decimal.NewFromInt(150)))

	branchPrice := decimal.NewFromInt(180)
	require.NoError(t, f.conn.Model(&models.StockItem{}).Where("id = ?", item.ID).
		Update("selling_price", branchPrice).Error)

	sale, err = f.svc.Create(ctx, CreateInput{
		BranchID:      f.branch.ID,
		CashierID:     4,
		PaymentMethod: enums.PaymentMethodCash,
		PaymentStatus: enums.PaymentStatusPaid,
		Lines:         []LineInput{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.True(t, sale.TotalAmount.Equal(branchPrice))

	override := decimal.NewFromInt(120)
	sale, err = f.svc.Create(ctx, CreateInput{
		BranchID:      f.branch.ID,
		CashierID:     4,
		PaymentMethod: enums.PaymentMethodCash,
		PaymentStatus: enums.PaymentStatusPaid,
		Lines:         []LineInput{{ProductID: product.ID, Quantity: 1, UnitPrice: &override}},
	})
	require.NoError(t, err)
	require.True(t, sale.TotalAmount.Equal(override))
}

func TestCreateSaleAppliesLineDiscounts(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "LIR")
	phone := f.seedProduct(t, "SKU-8", false, 150)
	charger := f.seedProduct(t, "SKU-9", false, 40)
	f.stockUp(t, phone.ID, 10, 90, nil)
	f.stockUp(t, charger.ID, 10, 20, nil)

	ctx := context.Background()
	sale, err := f.svc.Create(ctx, CreateInput{
		BranchID:      f.branch.ID,
		CashierID:     7,
		PaymentMethod: enums.PaymentMethodCash,
		PaymentStatus: enums.PaymentStatusPaid,
		Discount:      decimal.NewFromInt(10),
		Lines: []LineInput{
			{ProductID: phone.ID, Quantity: 2, Discount: decimal.NewFromInt(30)},
			{ProductID: charger.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)

	// (150*2 - 30) + 40 - 10 sale-level = 300.
	require.True(t, sale.TotalAmount.Equal(decimal.NewFromInt(300)))

	var items []models.SaleItem
	require.NoError(t, f.conn.Where("sale_id = ?", sale.ID).Order("product_id").Find(&items).Error)
	require.Len(t, items, 2)
	require.True(t, items[0].Discount.Equal(decimal.NewFromInt(30)))
	require.True(t, items[1].Discount.IsZero())
}

func TestCreateSaleRejectsLineDiscountAboveLineTotal(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "STA")
	product := f.seedProduct(t, "SKU-10", false, 100)
	f.stockUp(t, product.ID, 5, 60, nil)

	_, err := f.svc.Create(context.Background(), CreateInput{
		BranchID:      f.branch.ID,
		CashierID:     8,
		PaymentMethod: enums.PaymentMethodCash,
		PaymentStatus: enums.PaymentStatusPaid,
		Lines: []LineInput{
			{ProductID: product.ID, Quantity: 2, Discount: decimal.NewFromInt(250)},
		},
	})
	require.Error(t, err)
	require.Equal(t, apperrors.CodeValidation, apperrors.As(err).Code())

	var count int64
	require.NoError(t, f.conn.Model(&models.Sale{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCreateSaleRejectsExcessiveDiscount(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "ARU")
	product := f.seedProduct(t, "SKU-6", false, 100)
	f.stockUp(t, product.ID, 5, 60, nil)

	_, err := f.svc.Create(context.Background(), CreateInput{
		BranchID:      f.branch.ID,
		CashierID:     5,
		PaymentMethod: enums.PaymentMethodCash,
		PaymentStatus: enums.PaymentStatusPaid,
		Discount:      decimal.NewFromInt(500),
		Lines:         []LineInput{{ProductID: product.ID, Quantity: 1}},
	})
	require.Error(t, err)
	require.Equal(t, apperrors.CodeValidation, apperrors.As(err).Code())
}

func TestGetAnnotatesRefundStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "FTP")
	product := f.seedProduct(t, "SKU-7", false, 100)
	f.stockUp(t, product.ID, 10, 60, nil)

	ctx := context.Background()
	sale, err := f.svc.Create(ctx, CreateInput{
		BranchID:      f.branch.ID,
		CashierID:     6,
		PaymentMethod: enums.PaymentMethodCash,
		PaymentStatus: enums.PaymentStatusPaid,
		Lines:         []LineInput{{ProductID: product.ID, Quantity: 4}},
	})
	require.NoError(t, err)

	loaded, err := f.svc.Get(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, enums.RefundStatusNone, loaded.RefundStatus)

	require.NoError(t, f.conn.Model(&models.SaleItem{}).
		Where("sale_id = ?", sale.ID).
		Update("refunded_quantity", 2).Error)
	loaded, err = f.svc.Get(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, enums.RefundStatusPartial, loaded.RefundStatus)

	require.NoError(t, f.conn.Model(&models.SaleItem{}).
		Where("sale_id = ?", sale.ID).
		Update("refunded_quantity", 4).Error)
	loaded, err = f.svc.Get(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, enums.RefundStatusFull, loaded.RefundStatus)
}

func TestSequencesAreBranchScoped(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	runner := testRunner{db: conn}
	repo := NewRepository(conn)

	ctx := context.Background()
	var first, second, other int64
	require.NoError(t, runner.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		first, err = repo.WithTx(tx).NextSequence(ctx, 1)
		return err
	}))
	require.NoError(t, runner.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		second, err = repo.WithTx(tx).NextSequence(ctx, 1)
		return err
	}))
	require.NoError(t, runner.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		other, err = repo.WithTx(tx).NextSequence(ctx, 2)
		return err
	}))
	require.Equal(t, int64(1), first)
	require.Equal(t, int64(2), second)
	require.Equal(t, int64(1), other)
}

func TestIncrementRefundedGuardsAgainstOverRefund(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	repo := NewRepository(conn)

	item := models.SaleItem{SaleID: 1, ProductID: 1, Quantity: 3,
		UnitPrice: decimal.NewFromInt(10), UnitCost: decimal.NewFromInt(5)}
	require.NoError(t, conn.Create(&item).Error)

	ctx := context.Background()
	require.NoError(t, repo.IncrementRefunded(ctx, item.ID, 2))
	require.ErrorIs(t, repo.IncrementRefunded(ctx, item.ID, 2), ErrRefundExceedsSold)
	require.NoError(t, repo.IncrementRefunded(ctx, item.ID, 1))

	var reloaded models.SaleItem
	require.NoError(t, conn.First(&reloaded, item.ID).Error)
	require.Equal(t, 3, reloaded.RefundedQuantity)
}
