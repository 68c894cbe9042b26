package users

import (
	"context"

	"gorm.io/gorm"

	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
)

// Repository manages persistence for user accounts.
type Repository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context, branchID *uint, activeOnly bool) ([]models.User, error)
	GetBranch(ctx context.Context, branchID uint) (*models.Branch, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a users repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *repository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Branch").First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByLogin matches either the username or the email address.
func (r *repository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, login).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *repository) List(ctx context.Context, branchID *uint, activeOnly bool) ([]models.User, error) {
	query := r.db.WithContext(ctx).Preload("Branch").Order("username ASC")
	if branchID != nil {
		query = query.Where("branch_id = ?", *branchID)
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var all []models.User
	if err := query.Find(&all).Error; err != nil {
		return nil, err
	}
	return all, nil
}

func (r *repository) GetBranch(ctx context.Context, branchID uint) (*models.Branch, error) {
	var branch models.Branch
	if err := r.db.WithContext(ctx).First(&branch, branchID).Error; err != nil {
		return nil, err
	}
	return &branch, nil
}
