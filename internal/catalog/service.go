package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/CarlusInnocent/HotPOS/pkg/db"
	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
	apperrors "github.com/CarlusInnocent/HotPOS/pkg/errors"
)

// CreateProductInput captures a new catalog entry.
type CreateProductInput struct {
	SKU               string
	Barcode           *string
	Name              string
	Description       *string
	CategoryID        *uint
	CostPrice         decimal.Decimal
	SellingPrice      decimal.Decimal
	SerialTracked     bool
	LowStockThreshold *int
}

// UpdateProductInput mutates only the fields that are set. SerialTracked is
// deliberately absent, flipping it after units exist would corrupt the
// registry.
type UpdateProductInput struct {
	Barcode           *string
	Name              *string
	Description       *string
	CategoryID        *uint
	CostPrice         *decimal.Decimal
	SellingPrice      *decimal.Decimal
	LowStockThreshold *int
	IsActive          *bool
}

// Service manages the shared product catalog.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
	FindProduct(ctx context.Context, code string) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uint, input UpdateProductInput) (*models.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	CreateCategory(ctx context.Context, name string, description *string) (*models.Category, error)
	UpdateCategory(ctx context.Context, id uint, name *string, description *string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

type service struct {
	repo Repository
}

// NewService wires the catalog service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	sku := strings.TrimSpace(input.SKU)
	if sku == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "sku is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "product name is required")
	}
	if input.CostPrice.IsNegative() || input.SellingPrice.IsNegative() {
		return nil, apperrors.New(apperrors.CodeValidation, "prices cannot be negative")
	}
	if input.LowStockThreshold != nil && *input.LowStockThreshold < 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "low stock threshold cannot be negative")
	}
	if input.CategoryID != nil {
		if _, err := s.repo.GetCategory(ctx, *input.CategoryID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.New(apperrors.CodeNotFound, "category not found")
			}
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading category")
		}
	}

	product := &models.Product{
		SKU:               sku,
		Barcode:           input.Barcode,
		Name:              name,
		Description:       input.Description,
		CategoryID:        input.CategoryID,
		CostPrice:         input.CostPrice,
		SellingPrice:      input.SellingPrice,
		SerialTracked:     input.SerialTracked,
		LowStockThreshold: input.LowStockThreshold,
		IsActive:          true,
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperrors.New(apperrors.CodeConflict,
				fmt.Sprintf("a product with sku %q or the same barcode already exists", sku))
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "creating product")
	}
	return product, nil
}

func (s *service) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "product not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading product")
	}
	return product, nil
}

// FindProduct resolves a scanned code, trying SKU first, then barcode.
func (s *service) FindProduct(ctx context.Context, code string) (*models.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "product code is required")
	}
	product, err := s.repo.GetProductBySKU(ctx, code)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading product")
	}
	product, err = s.repo.GetProductByBarcode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("no product matches %q", code))
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading product")
	}
	return product, nil
}

func (s *service) UpdateProduct(ctx context.Context, id uint, input UpdateProductInput) (*models.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "product not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading product")
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.New(apperrors.CodeValidation, "product name cannot be empty")
		}
		product.Name = name
	}
	if input.Barcode != nil {
		product.Barcode = input.Barcode
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.CategoryID != nil {
		if _, err := s.repo.GetCategory(ctx, *input.CategoryID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.New(apperrors.CodeNotFound, "category not found")
			}
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading category")
		}
		product.CategoryID = input.CategoryID
	}
	if input.CostPrice != nil {
		if input.CostPrice.IsNegative() {
			return nil, apperrors.New(apperrors.CodeValidation, "cost price cannot be negative")
		}
		product.CostPrice = *input.CostPrice
	}
	if input.SellingPrice != nil {
		if input.SellingPrice.IsNegative() {
			return nil, apperrors.New(apperrors.CodeValidation, "selling price cannot be negative")
		}
		product.SellingPrice = *input.SellingPrice
	}
	if input.LowStockThreshold != nil {
		if *input.LowStockThreshold < 0 {
			return nil, apperrors.New(apperrors.CodeValidation, "low stock threshold cannot be negative")
		}
		product.LowStockThreshold = input.LowStockThreshold
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperrors.New(apperrors.CodeConflict, "another product already uses that barcode")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "updating product")
	}
	return product, nil
}

func (s *service) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	products, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing products")
	}
	return products, nil
}

func (s *service) CreateCategory(ctx context.Context, name string, description *string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "category name is required")
	}
	category := &models.Category{Name: name, Description: description}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperrors.New(apperrors.CodeConflict,
				fmt.Sprintf("category %q already exists", name))
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "creating category")
	}
	return category, nil
}

func (s *service) UpdateCategory(ctx context.Context, id uint, name *string, description *string) (*models.Category, error) {
	category, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "category not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading category")
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, apperrors.New(apperrors.CodeValidation, "category name cannot be empty")
		}
		category.Name = trimmed
	}
	if description != nil {
		category.Description = description
	}
	if err := s.repo.UpdateCategory(ctx, category); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperrors.New(apperrors.CodeConflict, "another category already uses that name")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "updating category")
	}
	return category, nil
}

func (s *service) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing categories")
	}
	return categories, nil
}
