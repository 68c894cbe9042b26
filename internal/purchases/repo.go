package purchases

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
	"github.com/CarlusInnocent/HotPOS/pkg/enums"
)

// Repository manages persistence for purchase orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, purchase *models.Purchase) error
	GetByID(ctx context.Context, id uint) (*models.Purchase, error)
	GetForUpdate(ctx context.Context, id uint) (*models.Purchase, error)
	ListByBranch(ctx context.Context, branchID uint, status *enums.PurchaseStatus) ([]models.Purchase, error)
	MarkReceived(ctx context.Context, id uint, receivedBy uint, at time.Time) error
	GetBranch(ctx context.Context, branchID uint) (*models.Branch, error)
	GetSupplier(ctx context.Context, supplierID uint) (*models.Supplier, error)
	GetProducts(ctx context.Context, ids []uint) (map[uint]models.Product, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a purchases repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *repository) GetByID(ctx context.Context, id uint) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Preload("Supplier").
		Preload("Branch").
		First(&purchase, id).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// GetForUpdate locks the purchase row on Postgres so two clerks cannot
// receive the same order twice.
func (r *repository) GetForUpdate(ctx context.Context, id uint) (*models.Purchase, error) {
	query := r.db.WithContext(ctx).Preload("Items").Preload("Items.Product")
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var purchase models.Purchase
	if err := query.First(&purchase, id).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) ListByBranch(ctx context.Context, branchID uint, status *enums.PurchaseStatus) ([]models.Purchase, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Supplier").
		Where("branch_id = ?", branchID).
		Order("order_date DESC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var purchases []models.Purchase
	if err := query.Find(&purchases).Error; err != nil {
		return nil, err
	}
	return purchases, nil
}

func (r *repository) MarkReceived(ctx context.Context, id uint, receivedBy uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         enums.PurchaseStatusReceived,
			"received_by_id": receivedBy,
			"received_date":  at,
		}).Error
}

func (r *repository) GetBranch(ctx context.Context, branchID uint) (*models.Branch, error) {
	var branch models.Branch
	if err := r.db.WithContext(ctx).First(&branch, branchID).Error; err != nil {
		return nil, err
	}
	return &branch, nil
}

func (r *repository) GetSupplier(ctx context.Context, supplierID uint) (*models.Supplier, error) {
	var supplier models.Supplier
	if err := r.db.WithContext(ctx).First(&supplier, supplierID).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (r *repository) GetProducts(ctx context.Context, ids []uint) (map[uint]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	indexed := make(map[uint]models.Product, len(products))
	for _, product := range products {
		indexed[product.ID] = product
	}
	return indexed, nil
}
