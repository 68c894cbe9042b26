package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
	"github.com/CarlusInnocent/HotPOS/pkg/enums"
)

// SalesAggregate summarizes sales over a window.
type SalesAggregate struct {
	Count       int64
	GrossAmount decimal.Decimal
	TotalCost   decimal.Decimal
	Discount    decimal.Decimal
}

// PaymentMethodTotal breaks revenue down by tender type.
type PaymentMethodTotal struct {
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method"`
	Count         int64               `gorm:"column:count"`
	Amount        decimal.Decimal     `gorm:"column:amount"`
}

// DailyTotal is one day's revenue within a range.
type DailyTotal struct {
	Day    string          `gorm:"column:day"`
	Count  int64           `gorm:"column:count"`
	Amount decimal.Decimal `gorm:"column:amount"`
}

// Repository runs the read-side aggregate queries behind reports.
type Repository interface {
	SalesBetween(ctx context.Context, branchID uint, from, to time.Time) (*SalesAggregate, error)
	SalesByPaymentMethod(ctx context.Context, branchID uint, from, to time.Time) ([]PaymentMethodTotal, error)
	SalesByDay(ctx context.Context, branchID uint, from, to time.Time) ([]DailyTotal, error)
	RefundsBetween(ctx context.Context, branchID uint, from, to time.Time) (int64, decimal.Decimal, error)
	PendingApprovals(ctx context.Context, branchID uint) (purchases, transfers, returns, refunds int64, err error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reports repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) SalesBetween(ctx context.Context, branchID uint, from, to time.Time) (*SalesAggregate, error) {
	var row struct {
		Count       int64           `gorm:"column:count"`
		GrossAmount decimal.Decimal `gorm:"column:gross_amount"`
		TotalCost   decimal.Decimal `gorm:"column:total_cost"`
		Discount    decimal.Decimal `gorm:"column:discount"`
	}
	err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Select("COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS gross_amount, COALESCE(SUM(total_cost), 0) AS total_cost, COALESCE(SUM(discount), 0) AS discount").
		Where("branch_id = ? AND sale_date >= ? AND sale_date < ?", branchID, from, to).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &SalesAggregate{
		Count:       row.Count,
		GrossAmount: row.GrossAmount,
		TotalCost:   row.TotalCost,
		Discount:    row.Discount,
	}, nil
}

func (r *repository) SalesByPaymentMethod(ctx context.Context, branchID uint, from, to time.Time) ([]PaymentMethodTotal, error) {
	var rows []PaymentMethodTotal
	err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Select("payment_method, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS amount").
		Where("branch_id = ? AND sale_date >= ? AND sale_date < ?", branchID, from, to).
		Group("payment_method").
		Order("payment_method ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) SalesByDay(ctx context.Context, branchID uint, from, to time.Time) ([]DailyTotal, error) {
	var rows []DailyTotal
	// date() is understood by both sqlite and postgres.
	dateExpr := "date(sale_date)"
	err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Select(dateExpr+" AS day, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS amount").
		Where("branch_id = ? AND sale_date >= ? AND sale_date < ?", branchID, from, to).
		Group(dateExpr).
		Order("day ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) RefundsBetween(ctx context.Context, branchID uint, from, to time.Time) (int64, decimal.Decimal, error) {
	var row struct {
		Count  int64           `gorm:"column:count"`
		Amount decimal.Decimal `gorm:"column:amount"`
	}
	err := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Select("COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS amount").
		Where("branch_id = ? AND status = ? AND decided_at >= ? AND decided_at < ?",
			branchID, enums.ApprovalStatusApproved, from, to).
		Scan(&row).Error
	if err != nil {
		return 0, decimal.Zero, err
	}
	return row.Count, row.Amount, nil
}

func (r *repository) PendingApprovals(ctx context.Context, branchID uint) (int64, int64, int64, int64, error) {
	var purchases, transfers, returns, refunds int64
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.Purchase{}).
		Where("branch_id = ? AND status = ?", branchID, enums.PurchaseStatusPending).
		Count(&purchases).Error; err != nil {
		return 0, 0, 0, 0, err
	}
	if err := db.Model(&models.Transfer{}).
		Where("(source_branch_id = ? OR dest_branch_id = ?) AND status IN ?",
			branchID, branchID, []enums.TransferStatus{enums.TransferStatusPending, enums.TransferStatusInTransit}).
		Count(&transfers).Error; err != nil {
		return 0, 0, 0, 0, err
	}
	if err := db.Model(&models.SupplierReturn{}).
		Where("branch_id = ? AND status = ?", branchID, enums.ApprovalStatusPending).
		Count(&returns).Error; err != nil {
		return 0, 0, 0, 0, err
	}
	if err := db.Model(&models.Refund{}).
		Where("branch_id = ? AND status = ?", branchID, enums.ApprovalStatusPending).
		Count(&refunds).Error; err != nil {
		return 0, 0, 0, 0, err
	}
	return purchases, transfers, returns, refunds, nil
}
