package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/CarlusInnocent/HotPOS/pkg/config"
	"github.com/CarlusInnocent/HotPOS/pkg/db"
	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
	"github.com/CarlusInnocent/HotPOS/pkg/enums"
	apperrors "github.com/CarlusInnocent/HotPOS/pkg/errors"
	"github.com/CarlusInnocent/HotPOS/pkg/security"
)

const tempPasswordLength = 12

// CreateInput captures a new user account. When Password is empty a
// temporary one is generated and returned alongside the user.
type CreateInput struct {
	Username string
	Email    string
	Password string
	FullName string
	Role     enums.UserRole
	BranchID *uint
}

// UpdateInput mutates only the fields that are set.
type UpdateInput struct {
	Email    *string
	FullName *string
	Role     *enums.UserRole
	BranchID *uint
	IsActive *bool
}

// Service manages user accounts and credentials.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.User, string, error)
	Get(ctx context.Context, id uint) (*models.User, error)
	Update(ctx context.Context, id uint, input UpdateInput) (*models.User, error)
	List(ctx context.Context, branchID *uint, activeOnly bool) ([]models.User, error)
	ChangePassword(ctx context.Context, id uint, current, next string) error
	ResetPassword(ctx context.Context, id uint) (string, error)
}

type service struct {
	repo        Repository
	passwordCfg config.PasswordConfig
}

// NewService wires the users service.
func NewService(repo Repository, passwordCfg config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{repo: repo, passwordCfg: passwordCfg}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.User, string, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	if username == "" {
		return nil, "", apperrors.New(apperrors.CodeValidation, "username is required")
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", apperrors.New(apperrors.CodeValidation, "a valid email is required")
	}
	if strings.TrimSpace(input.FullName) == "" {
		return nil, "", apperrors.New(apperrors.CodeValidation, "full name is required")
	}
	if !input.Role.IsValid() {
		return nil, "", apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("unknown role %q", string(input.Role)))
	}
	// Cashiers operate a till, they must belong to a branch.
	if input.Role == enums.UserRoleCashier && input.BranchID == nil {
		return nil, "", apperrors.New(apperrors.CodeValidation, "cashiers must be assigned to a branch")
	}
	if input.BranchID != nil {
		if _, err := s.repo.GetBranch(ctx, *input.BranchID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, "", apperrors.New(apperrors.CodeNotFound, "branch not found")
			}
			return nil, "", apperrors.Wrap(apperrors.CodeInternal, err, "loading branch")
		}
	}

	password := input.Password
	tempPassword := ""
	if password == "" {
		generated, err := security.GenerateTempPassword(tempPasswordLength)
		if err != nil {
			return nil, "", apperrors.Wrap(apperrors.CodeInternal, err, "generating temporary password")
		}
		password = generated
		tempPassword = generated
	}
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.CodeInternal, err, "hashing password")
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(input.FullName),
		Role:         input.Role,
		BranchID:     input.BranchID,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, "", apperrors.New(apperrors.CodeConflict, "username or email already in use")
		}
		return nil, "", apperrors.Wrap(apperrors.CodeInternal, err, "creating user")
	}
	return user, tempPassword, nil
}

func (s *service) Get(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "user not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading user")
	}
	return user, nil
}

func (s *service) Update(ctx context.Context, id uint, input UpdateInput) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "user not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading user")
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email == "" || !strings.Contains(email, "@") {
			return nil, apperrors.New(apperrors.CodeValidation, "a valid email is required")
		}
		user.Email = email
	}
	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if name == "" {
			return nil, apperrors.New(apperrors.CodeValidation, "full name cannot be empty")
		}
		user.FullName = name
	}
	if input.Role != nil {
		if !input.Role.IsValid() {
			return nil, apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("unknown role %q", string(*input.Role)))
		}
		user.Role = *input.Role
	}
	if input.BranchID != nil {
		if _, err := s.repo.GetBranch(ctx, *input.BranchID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.New(apperrors.CodeNotFound, "branch not found")
			}
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading branch")
		}
		user.BranchID = input.BranchID
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	if user.Role == enums.UserRoleCashier && user.BranchID == nil {
		return nil, apperrors.New(apperrors.CodeValidation, "cashiers must be assigned to a branch")
	}
	if err := s.repo.Update(ctx, user); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperrors.New(apperrors.CodeConflict, "email already in use")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "updating user")
	}
	return user, nil
}

func (s *service) List(ctx context.Context, branchID *uint, activeOnly bool) ([]models.User, error) {
	all, err := s.repo.List(ctx, branchID, activeOnly)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing users")
	}
	return all, nil
}

func (s *service) ChangePassword(ctx context.Context, id uint, current, next string) error {
	if len(next) < 8 {
		return apperrors.New(apperrors.CodeValidation, "password must be at least 8 characters")
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "user not found")
		}
		return apperrors.Wrap(apperrors.CodeInternal, err, "loading user")
	}
	ok, err := security.VerifyPassword(current, user.PasswordHash)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "verifying password")
	}
	if !ok {
		return apperrors.New(apperrors.CodeUnauthorized, "current password is incorrect")
	}
	hash, err := security.HashPassword(next, s.passwordCfg)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "hashing password")
	}
	user.PasswordHash = hash
	if err := s.repo.Update(ctx, user); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "updating user")
	}
	return nil
}

// ResetPassword issues a new temporary password for the account.
func (s *service) ResetPassword(ctx context.Context, id uint) (string, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.New(apperrors.CodeNotFound, "user not found")
		}
		return "", apperrors.Wrap(apperrors.CodeInternal, err, "loading user")
	}
	tempPassword, err := security.GenerateTempPassword(tempPasswordLength)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, err, "generating temporary password")
	}
	hash, err := security.HashPassword(tempPassword, s.passwordCfg)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, err, "hashing password")
	}
	user.PasswordHash = hash
	if err := s.repo.Update(ctx, user); err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, err, "updating user")
	}
	return tempPassword, nil
}
