package returns

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
	"github.com/CarlusInnocent/HotPOS/pkg/enums"
)

// Repository manages persistence for supplier returns.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, ret *models.SupplierReturn) error
	GetByID(ctx context.Context, id uint) (*models.SupplierReturn, error)
	GetForUpdate(ctx context.Context, id uint) (*models.SupplierReturn, error)
	ListByBranch(ctx context.Context, branchID uint, status *enums.ApprovalStatus) ([]models.SupplierReturn, error)
	Decide(ctx context.Context, id uint, status enums.ApprovalStatus, decidedBy uint, at time.Time) error
	GetBranch(ctx context.Context, branchID uint) (*models.Branch, error)
	GetSupplier(ctx context.Context, supplierID uint) (*models.Supplier, error)
	GetProducts(ctx context.Context, ids []uint) (map[uint]models.Product, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a supplier returns repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, ret *models.SupplierReturn) error {
	return r.db.WithContext(ctx).Create(ret).Error
}

func (r *repository) GetByID(ctx context.Context, id uint) (*models.SupplierReturn, error) {
	var ret models.SupplierReturn
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Preload("Supplier").
		Preload("Branch").
		First(&ret, id).Error
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

func (r *repository) GetForUpdate(ctx context.Context, id uint) (*models.SupplierReturn, error) {
	query := r.db.WithContext(ctx).Preload("Items").Preload("Items.Product")
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var ret models.SupplierReturn
	if err := query.First(&ret, id).Error; err != nil {
		return nil, err
	}
	return &ret, nil
}

func (r *repository) ListByBranch(ctx context.Context, branchID uint, status *enums.ApprovalStatus) ([]models.SupplierReturn, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Supplier").
		Where("branch_id = ?", branchID).
		Order("created_at DESC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var list []models.SupplierReturn
	if err := query.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) Decide(ctx context.Context, id uint, status enums.ApprovalStatus, decidedBy uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.SupplierReturn{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        status,
			"decided_by_id": decidedBy,
			"decided_at":    at,
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
