package serials

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
	conn, err := gorm.Open(sqlite.Open("file:serials_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Branch{},
		&models.Category{},
		&models.Product{},
		&models.StockItem{},
		&models.SerialUnit{},
	))
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(conn), nil, nil)
	require.NoError(t, err)
	return svc
}

func seedStockItem(t *testing.T, conn *gorm.DB, branchCode, sku string) models.StockItem {
	t.Helper()
	branch := models.Branch{Name: "Branch " + branchCode, Code: branchCode, IsActive: true}
	require.NoError(t, conn.Create(&branch).Error)
	product := models.Product{
		SKU:           sku,
		Name:          "Product " + sku,
		CostPrice:     decimal.NewFromInt(100),
		SellingPrice:  decimal.NewFromInt(150),
		SerialTracked: true,
		IsActive:      true,
	}
	require.NoError(t, conn.Create(&product).Error)
	item := models.StockItem{BranchID: branch.ID, ProductID: product.ID, Quantity: 0}
	require.NoError(t, conn.Create(&item).Error)
	return item
}

func inTx(t *testing.T, conn *gorm.DB, fn func(tx *gorm.DB) error) error {
	t.Helper()
	tx := conn.Begin()
	require.NoError(t, tx.Error)
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func TestCreateBatchRegistersInStockUnits(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	item := seedStockItem(t, conn, "KLA", "PHN-1")

	ctx := context.Background()
	purchaseID := uint(7)
	err := inTx(t, conn, func(tx *gorm.DB) error {
		units, createErr := svc.CreateBatch(ctx, tx, item.ID, &purchaseID, []string{"SN-001", "SN-002"})
		if createErr != nil {
			return createErr
		}
		require.Len(t, units, 2)
		return nil
	})
	require.NoError(t, err)

	var units []models.SerialUnit
	require.NoError(t, conn.Order("serial_code").Find(&units).Error)
	require.Len(t, units, 2)
	for _, unit := range units {
		require.Equal(t, enums.SerialStatusInStock, unit.Status)
		require.Equal(t, item.ID, unit.StockItemID)
		require.NotNil(t, unit.PurchaseID)
		require.Equal(t, purchaseID, *unit.PurchaseID)
	}
}

func TestCreateBatchRejectsInBatchDuplicate(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	item := seedStockItem(t, conn, "MBR", "PHN-2")

	err := inTx(t, conn, func(tx *gorm.DB) error {
		_, createErr := svc.CreateBatch(context.Background(), tx, item.ID, nil, []string{"SN-010", "SN-010"})
		return createErr
	})
	require.Error(t, err)
	require.Equal(t, apperrors.CodeDuplicateSerial, apperrors.As(err).Code())
}

func TestCreateBatchRejectsGloballyKnownCode(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	first := seedStockItem(t, conn, "GUL", "PHN-3")
	second := seedStockItem(t, conn, "ARU", "PHN-4")

	ctx := context.Background()
	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		_, err := svc.CreateBatch(ctx, tx, first.ID, nil, []string{"SN-100"})
		return err
	}))

	err := inTx(t, conn, func(tx *gorm.DB) error {
		_, createErr := svc.CreateBatch(ctx, tx, second.ID, nil, []string{"SN-100", "SN-101"})
		return createErr
	})
	require.Error(t, err)
	typed := apperrors.As(err)
	require.Equal(t, apperrors.CodeDuplicateSerial, typed.Code())
	require.Contains(t, typed.Details(), "serial_codes")
}

func TestMarkSoldAttachesUnitsToSale(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	item := seedStockItem(t, conn, "JJA", "PHN-5")

	ctx := context.Background()
	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		_, err := svc.CreateBatch(ctx, tx, item.ID, nil, []string{"SN-200", "SN-201"})
		return err
	}))

	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		units, err := svc.MarkSold(ctx, tx, item.ID, 42, 2, []string{"SN-200", "SN-201"})
		if err != nil {
			return err
		}
		require.Len(t, units, 2)
		return nil
	}))

	var unit models.SerialUnit
	require.NoError(t, conn.Where("serial_code = ?", "SN-200").First(&unit).Error)
	require.Equal(t, enums.SerialStatusSold, unit.Status)
	require.NotNil(t, unit.SaleID)
	require.Equal(t, uint(42), *unit.SaleID)
}

func TestMarkSoldRejectsCountMismatch(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	item := seedStockItem(t, conn, "NSA", "PHN-6")

	err := inTx(t, conn, func(tx *gorm.DB) error {
		_, markErr := svc.MarkSold(context.Background(), tx, item.ID, 1, 2, []string{"SN-300"})
		return markErr
	})
	require.Error(t, err)
	require.Equal(t, apperrors.CodeSerialCountMismatch, apperrors.As(err).Code())
}

func TestMarkSoldRejectsUnavailableUnit(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	item := seedStockItem(t, conn, "FTP", "PHN-7")

	ctx := context.Background()
	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		_, err := svc.CreateBatch(ctx, tx, item.ID, nil, []string{"SN-400"})
		return err
	}))
	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		_, err := svc.MarkSold(ctx, tx, item.ID, 1, 1, []string{"SN-400"})
		return err
	}))

	err := inTx(t, conn, func(tx *gorm.DB) error {
		_, markErr := svc.MarkSold(ctx, tx, item.ID, 2, 1, []string{"SN-400"})
		return markErr
	})
	require.Error(t, err)
	require.Equal(t, apperrors.CodeSerialUnavailable, apperrors.As(err).Code())
}

func TestTransferMovesUnitBetweenStockItems(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	source := seedStockItem(t, conn, "SRC", "PHN-8")
	dest := seedStockItem(t, conn, "DST", "PHN-9")

	ctx := context.Background()
	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		_, err := svc.CreateBatch(ctx, tx, source.ID, nil, []string{"SN-500"})
		return err
	}))

	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		return svc.MarkTransferred(ctx, tx, source.ID, []string{"SN-500"})
	}))

	var unit models.SerialUnit
	require.NoError(t, conn.Where("serial_code = ?", "SN-500").First(&unit).Error)
	require.Equal(t, enums.SerialStatusTransferred, unit.Status)

	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		return svc.ReceiveTransferred(ctx, tx, dest.ID, []string{"SN-500"})
	}))

	require.NoError(t, conn.Where("serial_code = ?", "SN-500").First(&unit).Error)
	require.Equal(t, enums.SerialStatusInStock, unit.Status)
	require.Equal(t, dest.ID, unit.StockItemID)
}

func TestRestoreTransferredReturnsUnitToSource(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	source := seedStockItem(t, conn, "SRA", "PHN-10")

	ctx := context.Background()
	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		_, err := svc.CreateBatch(ctx, tx, source.ID, nil, []string{"SN-600"})
		return err
	}))
	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		return svc.MarkTransferred(ctx, tx, source.ID, []string{"SN-600"})
	}))
	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		return svc.RestoreTransferred(ctx, tx, source.ID, []string{"SN-600"})
	}))

	var unit models.SerialUnit
	require.NoError(t, conn.Where("serial_code = ?", "SN-600").First(&unit).Error)
	require.Equal(t, enums.SerialStatusInStock, unit.Status)
	require.Equal(t, source.ID, unit.StockItemID)
}

func TestReleaseForRefundWithExplicitCodes(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	item := seedStockItem(t, conn, "RFA", "PHN-11")

	ctx := context.Background()
	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		if _, err := svc.CreateBatch(ctx, tx, item.ID, nil, []string{"SN-700", "SN-701"}); err != nil {
			return err
		}
		_, err := svc.MarkSold(ctx, tx, item.ID, 9, 2, []string{"SN-700", "SN-701"})
		return err
	}))

	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		released, err := svc.ReleaseForRefund(ctx, tx, 9, item.ID, 1, []string{"SN-700"})
		if err != nil {
			return err
		}
		require.Len(t, released, 1)
		return nil
	}))

	var unit models.SerialUnit
	require.NoError(t, conn.Where("serial_code = ?", "SN-700").First(&unit).Error)
	require.Equal(t, enums.SerialStatusReturned, unit.Status)
	require.Nil(t, unit.SaleID)

	var untouched models.SerialUnit
	require.NoError(t, conn.Where("serial_code = ?", "SN-701").First(&untouched).Error)
	require.Equal(t, enums.SerialStatusSold, untouched.Status)
}

func TestReleaseForRefundFallsBackToFirstSold(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	item := seedStockItem(t, conn, "RFB", "PHN-12")

	ctx := context.Background()
	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		if _, err := svc.CreateBatch(ctx, tx, item.ID, nil, []string{"SN-800", "SN-801"}); err != nil {
			return err
		}
		_, err := svc.MarkSold(ctx, tx, item.ID, 11, 2, []string{"SN-800", "SN-801"})
		return err
	}))

	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		released, err := svc.ReleaseForRefund(ctx, tx, 11, item.ID, 1, nil)
		if err != nil {
			return err
		}
		require.Len(t, released, 1)
		require.Equal(t, "SN-800", released[0].SerialCode)
		return nil
	}))
}

func TestReleaseForRefundRejectsForeignSale(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	item := seedStockItem(t, conn, "RFC", "PHN-13")

	ctx := context.Background()
	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		if _, err := svc.CreateBatch(ctx, tx, item.ID, nil, []string{"SN-900"}); err != nil {
			return err
		}
		_, err := svc.MarkSold(ctx, tx, item.ID, 13, 1, []string{"SN-900"})
		return err
	}))

	err := inTx(t, conn, func(tx *gorm.DB) error {
		_, releaseErr := svc.ReleaseForRefund(ctx, tx, 14, item.ID, 1, []string{"SN-900"})
		return releaseErr
	})
	require.Error(t, err)
	require.Equal(t, apperrors.CodeSerialUnavailable, apperrors.As(err).Code())
}

func TestMarkDefectiveFromStockAndTerminalRejection(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	item := seedStockItem(t, conn, "DEF", "PHN-14")

	ctx := context.Background()
	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		_, err := svc.CreateBatch(ctx, tx, item.ID, nil, []string{"SN-950"})
		return err
	}))

	note := "cracked screen"
	unit, err := svc.MarkDefective(ctx, "SN-950", &note)
	require.NoError(t, err)
	require.Equal(t, enums.SerialStatusDefective, unit.Status)
	require.NotNil(t, unit.Notes)

	_, err = svc.MarkDefective(ctx, "SN-950", nil)
	require.Error(t, err)
	require.Equal(t, apperrors.CodeSerialUnavailable, apperrors.As(err).Code())
}

func TestMarkDefectiveRejectsSoldUnit(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	item := seedStockItem(t, conn, "DFS", "PHN-16")

	ctx := context.Background()
	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		if _, err := svc.CreateBatch(ctx, tx, item.ID, nil, []string{"SN-970"}); err != nil {
			return err
		}
		_, err := svc.MarkSold(ctx, tx, item.ID, 31, 1, []string{"SN-970"})
		return err
	}))

	// A sold unit has to come back through a refund before it can be
	// flagged defective.
	_, err := svc.MarkDefective(ctx, "SN-970", nil)
	require.Error(t, err)
	require.Equal(t, apperrors.CodeSerialUnavailable, apperrors.As(err).Code())

	var unit models.SerialUnit
	require.NoError(t, conn.Where("serial_code = ?", "SN-970").First(&unit).Error)
	require.Equal(t, enums.SerialStatusSold, unit.Status)
}

func TestLookupAndStats(t *testing.T) {
	t.Parallel()
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	item := seedStockItem(t, conn, "STA", "PHN-15")

	ctx := context.Background()
	require.NoError(t, inTx(t, conn, func(tx *gorm.DB) error {
		if _, err := svc.CreateBatch(ctx, tx, item.ID, nil, []string{"SN-960", "SN-961"}); err != nil {
			return err
		}
		_, err := svc.MarkSold(ctx, tx, item.ID, 21, 1, []string{"SN-960"})
		return err
	}))

	unit, err := svc.Lookup(ctx, "SN-960")
	require.NoError(t, err)
	require.Equal(t, enums.SerialStatusSold, unit.Status)

	_, err = svc.Lookup(ctx, "SN-MISSING")
	require.Error(t, err)
	require.Equal(t, apperrors.CodeNotFound, apperrors.As(err).Code())

	stats, err := svc.Stats(ctx, item.BranchID)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats[enums.SerialStatusSold])
	require.Equal(t, int64(1), stats[enums.SerialStatusInStock])
}
