package partners

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

// SupplierInput carries supplier fields for create and update. On update,
// nil pointers leave the stored value untouched.
type SupplierInput struct {
	Name          *string
	ContactPerson *string
	Phone         *string
	Email         *string
	Address       *string
	IsActive      *bool
}

// CustomerInput carries customer fields for create and update.
type CustomerInput struct {
	Name    *string
	Phone   *string
	Email   *string
	Address *string
}

// Service manages supplier and customer master data.
type Service interface {
	CreateSupplier(ctx context.Context, input SupplierInput) (*models.Supplier, error)
	GetSupplier(ctx context.Context, id uint) (*models.Supplier, error)
	UpdateSupplier(ctx context.Context, id uint, input SupplierInput) (*models.Supplier, error)
	ListSuppliers(ctx context.Context, activeOnly bool) ([]models.Supplier, error)
	CreateCustomer(ctx context.Context, input CustomerInput) (*models.Customer, error)
	GetCustomer(ctx context.Context, id uint) (*models.Customer, error)
	FindCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, id uint, input CustomerInput) (*models.Customer, error)
	SearchCustomers(ctx context.Context, query string, limit int) ([]models.Customer, error)
}

type service struct {
	repo Repository
}

// NewService wires the partners service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("partners repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateSupplier(ctx context.Context, input SupplierInput) (*models.Supplier, error) {
	if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "supplier name is required")
	}
	supplier := &models.Supplier{
		Name:          strings.TrimSpace(*input.Name),
		ContactPerson: input.ContactPerson,
		Phone:         input.Phone,
		Email:         input.Email,
		Address:       input.Address,
		IsActive:      true,
	}
	if err := s.repo.CreateSupplier(ctx, supplier); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "creating supplier")
	}
	return supplier, nil
}

func (s *service) GetSupplier(ctx context.Context, id uint) (*models.Supplier, error) {
	supplier, err := s.repo.GetSupplier(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "supplier not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading supplier")
	}
	return supplier, nil
}

func (s *service) UpdateSupplier(ctx context.Context, id uint, input SupplierInput) (*models.Supplier, error) {
	supplier, err := s.repo.GetSupplier(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "supplier not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading supplier")
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.New(apperrors.CodeValidation, "supplier name cannot be empty")
		}
		supplier.Name = name
	}
	if input.ContactPerson != nil {
		supplier.ContactPerson = input.ContactPerson
	}
	if input.Phone != nil {
		supplier.Phone = input.Phone
	}
	if input.Email != nil {
		supplier.Email = input.Email
	}
	if input.Address != nil {
		supplier.Address = input.Address
	}
	if input.IsActive != nil {
		supplier.IsActive = *input.IsActive
	}
	if err := s.repo.UpdateSupplier(ctx, supplier); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "updating supplier")
	}
	return supplier, nil
}

func (s *service) ListSuppliers(ctx context.Context, activeOnly bool) ([]models.Supplier, error) {
	suppliers, err := s.repo.ListSuppliers(ctx, activeOnly)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing suppliers")
	}
	return suppliers, nil
}

func (s *service) CreateCustomer(ctx context.Context, input CustomerInput) (*models.Customer, error) {
	if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "customer name is required")
	}
	customer := &models.Customer{
		Name:    strings.TrimSpace(*input.Name),
		Phone:   input.Phone,
		Email:   input.Email,
		Address: input.Address,
	}
	if err := s.repo.CreateCustomer(ctx, customer); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperrors.New(apperrors.CodeConflict, "a customer with that phone number already exists")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "creating customer")
	}
	return customer, nil
}

func (s *service) GetCustomer(ctx context.Context, id uint) (*models.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "customer not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading customer")
	}
	return customer, nil
}

func (s *service) FindCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "phone number is required")
	}
	customer, err := s.repo.GetCustomerByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "customer not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading customer")
	}
	return customer, nil
}

func (s *service) UpdateCustomer(ctx context.Context, id uint, input CustomerInput) (*models.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "customer not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading customer")
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.New(apperrors.CodeValidation, "customer name cannot be empty")
		}
		customer.Name = name
	}
	if input.Phone != nil {
		customer.Phone = input.Phone
	}
	if input.Email != nil {
		customer.Email = input.Email
	}
	if input.Address != nil {
		customer.Address = input.Address
	}
	if err := s.repo.UpdateCustomer(ctx, customer); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperrors.New(apperrors.CodeConflict, "another customer already uses that phone number")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "updating customer")
	}
	return customer, nil
}

func (s *service) SearchCustomers(ctx context.Context, query string, limit int) ([]models.Customer, error) {
	customers, err := s.repo.SearchCustomers(ctx, strings.TrimSpace(query), limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "searching customers")
	}
	return customers, nil
}
