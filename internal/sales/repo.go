package sales

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
)

// ErrRefundExceedsSold is returned when a refund would push a line's
// refunded quantity past what was sold.
var ErrRefundExceedsSold = errors.New("refund exceeds sold quantity")

// Repository manages persistence for sales and the branch sale sequence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	NextSequence(ctx context.Context, branchID uint) (int64, error)
	Create(ctx context.Context, sale *models.Sale) error
	CreateItems(ctx context.Context, items []models.SaleItem) error
	UpdateTotals(ctx context.Context, sale *models.Sale) error
	GetByID(ctx context.Context, id uint) (*models.Sale, error)
	GetByNumber(ctx context.Context, saleNumber string) (*models.Sale, error)
	ListByBranch(ctx context.Context, branchID uint, limit, offset int) ([]models.Sale, error)
	GetItem(ctx context.Context, saleItemID uint) (*models.SaleItem, error)
	IncrementRefunded(ctx context.Context, saleItemID uint, quantity int) error
	GetBranch(ctx context.Context, branchID uint) (*models.Branch, error)
	GetProduct(ctx context.Context, productID uint) (*models.Product, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a sales repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// NextSequence bumps the branch counter and reads the new value back. The
// guarded update takes the row lock, so the read inside the same transaction
// observes this caller's increment and no one else's.
func (r *repository) NextSequence(ctx context.Context, branchID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.BranchSequence{}).
		Where("branch_id = ?", branchID).
		Update("last_value", gorm.Expr("last_value + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		seed := models.BranchSequence{BranchID: branchID, LastValue: 1}
		if err := r.db.WithContext(ctx).Create(&seed).Error; err != nil {
			// A concurrent sale may have seeded the row first.
			retry := r.db.WithContext(ctx).
				Model(&models.BranchSequence{}).
				Where("branch_id = ?", branchID).
				Update("last_value", gorm.Expr("last_value + 1"))
			if retry.Error != nil {
				return 0, retry.Error
			}
			if retry.RowsAffected == 0 {
				return 0, err
			}
		} else {
			return 1, nil
		}
	}
	var value int64
	err := r.db.WithContext(ctx).
		Model(&models.BranchSequence{}).
		Select("last_value").
		Where("branch_id = ?", branchID).
		Scan(&value).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (r *repository) Create(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Omit("Items").Create(sale).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.SaleItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) UpdateTotals(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ?", sale.ID).
		Updates(map[string]any{
			"total_amount": sale.TotalAmount,
			"total_cost":   sale.TotalCost,
		}).Error
}

func (r *repository) GetByID(ctx context.Context, id uint) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Preload("Branch").
		Preload("Customer").
		First(&sale, id).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) GetByNumber(ctx context.Context, saleNumber string) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Where("sale_number = ?", saleNumber).
		First(&sale).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) ListByBranch(ctx context.Context, branchID uint, limit, offset int) ([]models.Sale, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("branch_id = ?", branchID).
		Order("sequence_number DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var sales []models.Sale
	if err := query.Find(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}

func (r *repository) GetItem(ctx context.Context, saleItemID uint) (*models.SaleItem, error) {
	var item models.SaleItem
	if err := r.db.WithContext(ctx).Preload("Product").First(&item, saleItemID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// IncrementRefunded bumps a line's refunded quantity atomically. The WHERE
// guard rejects any increment that would exceed the sold quantity.
func (r *repository) IncrementRefunded(ctx context.Context, saleItemID uint, quantity int) error {
	res := r.db.WithContext(ctx).
		Model(&models.SaleItem{}).
		Where("id = ? AND refunded_quantity + ? <= quantity", saleItemID, quantity).
		Update("refunded_quantity", gorm.Expr("refunded_quantity + ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).
			Model(&models.SaleItem{}).
			Where("id = ?", saleItemID).
			Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return gorm.ErrRecordNotFound
		}
		return ErrRefundExceedsSold
	}
	return nil
}

func (r *repository) GetBranch(ctx context.Context, branchID uint) (*models.Branch, error) {
	var branch models.Branch
	if err := r.db.WithContext(ctx).First(&branch, branchID).Error; err != nil {
		return nil, err
	}
	return &branch, nil
}

func (r *repository) GetProduct(ctx context.Context, productID uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}
