package branches

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/CarlusInnocent/HotPOS/pkg/db"
	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
	apperrors "github.com/CarlusInnocent/HotPOS/pkg/errors"
)

// CreateInput captures a new branch registration.
type CreateInput struct {
	Name    string
	Code    string
	Address *string
	Phone   *string
}

// UpdateInput mutates only the fields that are set. The branch code is
// immutable, sale and document numbers already minted carry it.
type UpdateInput struct {
	Name     *string
	Address  *string
	Phone    *string
	IsActive *bool
}

// Service manages branch master data.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Branch, error)
	Get(ctx context.Context, id uint) (*models.Branch, error)
	GetByCode(ctx context.Context, code string) (*models.Branch, error)
	Update(ctx context.Context, id uint, input UpdateInput) (*models.Branch, error)
	List(ctx context.Context, activeOnly bool) ([]models.Branch, error)
}

type service struct {
	repo Repository
}

// NewService wires the branches service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("branches repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Branch, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "branch name is required")
	}
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "branch code is required")
	}
	branch := &models.Branch{
		Name:     name,
		Code:     code,
		Address:  input.Address,
		Phone:    input.Phone,
		IsActive: true,
	}
	if err := s.repo.Create(ctx, branch); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperrors.New(apperrors.CodeConflict,
				fmt.Sprintf("branch code %q already exists", code))
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "creating branch")
	}
	return branch, nil
}

func (s *service) Get(ctx context.Context, id uint) (*models.Branch, error) {
	branch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "branch not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading branch")
	}
	return branch, nil
}

func (s *service) GetByCode(ctx context.Context, code string) (*models.Branch, error) {
	branch, err := s.repo.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "branch not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading branch")
	}
	return branch, nil
}

func (s *service) Update(ctx context.Context, id uint, input UpdateInput) (*models.Branch, error) {
	branch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "branch not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading branch")
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.New(apperrors.CodeValidation, "branch name cannot be empty")
		}
		branch.Name = name
	}
	if input.Address != nil {
		branch.Address = input.Address
	}
	if input.Phone != nil {
		branch.Phone = input.Phone
	}
	if input.IsActive != nil {
		branch.IsActive = *input.IsActive
	}
	if err := s.repo.Update(ctx, branch); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "updating branch")
	}
	return branch, nil
}

func (s *service) List(ctx context.Context, activeOnly bool) ([]models.Branch, error) {
	all, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing branches")
	}
	return all, nil
}
