package stock

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
)

// ErrInsufficientStock is returned when a decrement would drive quantity negative.
var ErrInsufficientStock = errors.New("insufficient stock")

// Repository manages persistence for stock items and their movement audit.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, branchID, productID uint) (*models.StockItem, error)
	GetByID(ctx context.Context, id uint) (*models.StockItem, error)
	GetOrCreate(ctx context.Context, branchID, productID uint) (*models.StockItem, error)
	LockForUpdate(ctx context.Context, branchID, productID uint) (*models.StockItem, error)
	ApplyDelta(ctx context.Context, stockItemID uint, delta int) (int, error)
	UpdateInboundCost(ctx context.Context, stockItemID uint, update InboundCostUpdate) error
	SetSellingPrice(ctx context.Context, stockItemID uint, price *decimal.Decimal) error
	RecordMovement(ctx context.Context, movement *models.StockMovement) error
	ListByBranch(ctx context.Context, branchID uint) ([]models.StockItem, error)
	ListMovements(ctx context.Context, stockItemID uint, limit int) ([]models.StockMovement, error)
	LowStock(ctx context.Context, branchID uint, defaultThreshold int) ([]models.StockItem, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, branchID, productID uint) (*models.StockItem, error) {
	var item models.StockItem
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND product_id = ?", branchID, productID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) GetByID(ctx context.Context, id uint) (*models.StockItem, error) {
	var item models.StockItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) GetOrCreate(ctx context.Context, branchID, productID uint) (*models.StockItem, error) {
	item, err := r.Get(ctx, branchID, productID)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	created := &models.StockItem{BranchID: branchID, ProductID: productID}
	if createErr := r.db.WithContext(ctx).Create(created).Error; createErr != nil {
		// A concurrent creator may have won the unique constraint race.
		if existing, getErr := r.Get(ctx, branchID, productID); getErr == nil {
			return existing, nil
		}
		return nil, createErr
	}
	return created, nil
}

// LockForUpdate takes a row lock on Postgres; on other dialects the guarded
// delta update is the only protection, which is enough for the tests.
func (r *repository) LockForUpdate(ctx context.Context, branchID, productID uint) (*models.StockItem, error) {
	query := r.db.WithContext(ctx).
		Where("branch_id = ? AND product_id = ?", branchID, productID)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var item models.StockItem
	if err := query.First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ApplyDelta adjusts quantity atomically and returns the resulting quantity.
// The WHERE guard rejects any change that would make the quantity negative.
func (r *repository) ApplyDelta(ctx context.Context, stockItemID uint, delta int) (int, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockItem{}).
		Where("id = ? AND quantity + ? >= 0", stockItemID, delta).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).
			Model(&models.StockItem{}).
			Where("id = ?", stockItemID).
			Count(&exists).Error; err != nil {
			return 0, err
		}
		if exists == 0 {
			return 0, gorm.ErrRecordNotFound
		}
		return 0, ErrInsufficientStock
	}
	var quantity int
	if err := r.db.WithContext(ctx).
		Model(&models.StockItem{}).
		Select("quantity").
		Where("id = ?", stockItemID).
		Scan(&quantity).Error; err != nil {
		return 0, err
	}
	return quantity, nil
}

// InboundCostUpdate captures the pricing fields refreshed when stock arrives.
type InboundCostUpdate struct {
	CostPrice     *decimal.Decimal
	LastStockDate *time.Time
}

func (r *repository) UpdateInboundCost(ctx context.Context, stockItemID uint, update InboundCostUpdate) error {
	fields := map[string]any{}
	if update.CostPrice != nil {
		fields["cost_price"] = *update.CostPrice
	}
	if update.LastStockDate != nil {
		fields["last_stock_date"] = *update.LastStockDate
	}
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.StockItem{}).
		Where("id = ?", stockItemID).
		Updates(fields).Error
}

func (r *repository) SetSellingPrice(ctx context.Context, stockItemID uint, price *decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.StockItem{}).
		Where("id = ?", stockItemID).
		Update("selling_price", price).Error
}

func (r *repository) RecordMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListByBranch(ctx context.Context, branchID uint) ([]models.StockItem, error) {
	var items []models.StockItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("branch_id = ?", branchID).
		Order("product_id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListMovements(ctx context.Context, stockItemID uint, limit int) ([]models.StockMovement, error) {
	query := r.db.WithContext(ctx).
		Where("stock_item_id = ?", stockItemID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var movements []models.StockMovement
	if err := query.Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// LowStock returns stock items at or below their product threshold, falling
// back to defaultThreshold for products without one.
func (r *repository) LowStock(ctx context.Context, branchID uint, defaultThreshold int) ([]models.StockItem, error) {
	var items []models.StockItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Joins("JOIN products ON products.id = stock_items.product_id").
		Where("stock_items.branch_id = ?", branchID).
		Where("stock_items.quantity <= COALESCE(products.low_stock_threshold, ?)", defaultThreshold).
		Order("stock_items.quantity ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
