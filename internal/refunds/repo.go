package refunds

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
	"github.com/CarlusInnocent/HotPOS/pkg/enums"
)

// Repository manages persistence for customer refunds.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, refund *models.Refund) error
	GetByID(ctx context.Context, id uint) (*models.Refund, error)
	GetForUpdate(ctx context.Context, id uint) (*models.Refund, error)
	ListByBranch(ctx context.Context, branchID uint, status *enums.ApprovalStatus) ([]models.Refund, error)
	Decide(ctx context.Context, id uint, status enums.ApprovalStatus, decidedBy uint, at time.Time) error
	GetBranch(ctx context.Context, branchID uint) (*models.Branch, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a refunds repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, refund *models.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

func (r *repository) GetByID(ctx context.Context, id uint) (*models.Refund, error) {
	var refund models.Refund
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Preload("Sale").
		Preload("Branch").
		First(&refund, id).Error
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *repository) GetForUpdate(ctx context.Context, id uint) (*models.Refund, error) {
	query := r.db.WithContext(ctx).Preload("Items").Preload("Items.Product")
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var refund models.Refund
	if err := query.First(&refund, id).Error; err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *repository) ListByBranch(ctx context.Context, branchID uint, status *enums.ApprovalStatus) ([]models.Refund, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("branch_id = ?", branchID).
		Order("created_at DESC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var refunds []models.Refund
	if err := query.Find(&refunds).Error; err != nil {
		return nil, err
	}
	return refunds, nil
}

func (r *repository) Decide(ctx context.Context, id uint, status enums.ApprovalStatus, decidedBy uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Refund{}).
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
