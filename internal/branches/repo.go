package branches

import (
	"context"

	"gorm.io/gorm"

	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
)

// Repository manages persistence for store branches.
type Repository interface {
	Create(ctx context.Context, branch *models.Branch) error
	GetByID(ctx context.Context, id uint) (*models.Branch, error)
	GetByCode(ctx context.Context, code string) (*models.Branch, error)
	Update(ctx context.Context, branch *models.Branch) error
	List(ctx context.Context, activeOnly bool) ([]models.Branch, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a branches repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, branch *models.Branch) error {
	return r.db.WithContext(ctx).Create(branch).Error
}

func (r *repository) GetByID(ctx context.Context, id uint) (*models.Branch, error) {
	var branch models.Branch
	if err := r.db.WithContext(ctx).First(&branch, id).Error; err != nil {
		return nil, err
	}
	return &branch, nil
}

func (r *repository) GetByCode(ctx context.Context, code string) (*models.Branch, error) {
	var branch models.Branch
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&branch).Error; err != nil {
		return nil, err
	}
	return &branch, nil
}

func (r *repository) Update(ctx context.Context, branch *models.Branch) error {
	return r.db.WithContext(ctx).Save(branch).Error
}

func (r *repository) List(ctx context.Context, activeOnly bool) ([]models.Branch, error) {
	query := r.db.WithContext(ctx).Order("code ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var all []models.Branch
	if err := query.Find(&all).Error; err != nil {
		return nil, err
	}
	return all, nil
}
