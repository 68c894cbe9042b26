package transfers

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
	"github.com/CarlusInnocent/HotPOS/pkg/enums"
)

// Repository manages persistence for inter-branch transfers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, transfer *models.Transfer) error
	GetByID(ctx context.Context, id uint) (*models.Transfer, error)
	GetForUpdate(ctx context.Context, id uint) (*models.Transfer, error)
	ListByBranch(ctx context.Context, branchID uint, status *enums.TransferStatus) ([]models.Transfer, error)
	ListStale(ctx context.Context, before time.Time) ([]models.Transfer, error)
	Update(ctx context.Context, id uint, fields map[string]any) error
	UpdateItemCost(ctx context.Context, itemID uint, unitCost decimal.Decimal) error
	GetBranch(ctx context.Context, branchID uint) (*models.Branch, error)
	GetProducts(ctx context.Context, ids []uint) (map[uint]models.Product, error)
	GetStockItem(ctx context.Context, branchID, productID uint) (*models.StockItem, error)
	InTransitSerialCodes(ctx context.Context, stockItemID uint, limit int) ([]string, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transfers repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, transfer *models.Transfer) error {
	return r.db.WithContext(ctx).Create(transfer).Error
}

func (r *repository) GetByID(ctx context.Context, id uint) (*models.Transfer, error) {
	var transfer models.Transfer
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Preload("SourceBranch").
		Preload("DestBranch").
		First(&transfer, id).Error
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

// GetForUpdate locks the transfer row on Postgres so the send, receive and
// reject steps serialize.
func (r *repository) GetForUpdate(ctx context.Context, id uint) (*models.Transfer, error) {
	query := r.db.WithContext(ctx).Preload("Items").Preload("Items.Product")
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var transfer models.Transfer
	if err := query.First(&transfer, id).Error; err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *repository) ListByBranch(ctx context.Context, branchID uint, status *enums.TransferStatus) ([]models.Transfer, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("source_branch_id = ? OR dest_branch_id = ?", branchID, branchID).
		Order("created_at DESC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var transfers []models.Transfer
	if err := query.Find(&transfers).Error; err != nil {
		return nil, err
	}
	return transfers, nil
}

// ListStale returns open transfers whose last state change predates the
// cutoff. Pending transfers age from creation, in-transit ones from send.
func (r *repository) ListStale(ctx context.Context, before time.Time) ([]models.Transfer, error) {
	var transfers []models.Transfer
	err := r.db.WithContext(ctx).
		Where("(status = ? AND created_at < ?) OR (status = ? AND sent_at < ?)",
			enums.TransferStatusPending, before,
			enums.TransferStatusInTransit, before).
		Order("created_at ASC").
		Find(&transfers).Error
	return transfers, err
}

func (r *repository) Update(ctx context.Context, id uint, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Transfer{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repository) UpdateItemCost(ctx context.Context, itemID uint, unitCost decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.TransferItem{}).
		Where("id = ?", itemID).
		Update("unit_cost", unitCost).Error
}

func (r *repository) GetBranch(ctx context.Context, branchID uint) (*models.Branch, error) {
	var branch models.Branch
	if err := r.db.WithContext(ctx).First(&branch, branchID).Error; err != nil {
		return nil, err
	}
	return &branch, nil
}

func (r *repository) GetStockItem(ctx context.Context, branchID, productID uint) (*models.StockItem, error) {
	var item models.StockItem
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND product_id = ?", branchID, productID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// InTransitSerialCodes lists units flagged TRANSFERRED on a stock item,
// oldest first so repeated calls pick the same units.
func (r *repository) InTransitSerialCodes(ctx context.Context, stockItemID uint, limit int) ([]string, error) {
	var codes []string
	query := r.db.WithContext(ctx).
		Model(&models.SerialUnit{}).
		Where("stock_item_id = ? AND status = ?", stockItemID, enums.SerialStatusTransferred).
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("serial_code", &codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
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
