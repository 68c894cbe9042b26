package serials

import (
	"context"

	"gorm.io/gorm"

	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
	"github.com/CarlusInnocent/HotPOS/pkg/enums"
)

// Repository manages persistence for serialized units.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBatch(ctx context.Context, units []models.SerialUnit) error
	GetByCode(ctx context.Context, code string) (*models.SerialUnit, error)
	FindByCodes(ctx context.Context, codes []string) ([]models.SerialUnit, error)
	FindExistingCodes(ctx context.Context, codes []string) ([]string, error)
	ListByStockItem(ctx context.Context, stockItemID uint, status *enums.SerialStatus) ([]models.SerialUnit, error)
	ListBySale(ctx context.Context, saleID uint) ([]models.SerialUnit, error)
	FirstNSoldBySale(ctx context.Context, saleID, stockItemID uint, n int) ([]models.SerialUnit, error)
	Save(ctx context.Context, unit *models.SerialUnit) error
	CountByStatus(ctx context.Context, branchID uint) (map[enums.SerialStatus]int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a serial unit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateBatch(ctx context.Context, units []models.SerialUnit) error {
	if len(units) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&units).Error
}

func (r *repository) GetByCode(ctx context.Context, code string) (*models.SerialUnit, error) {
	var unit models.SerialUnit
	err := r.db.WithContext(ctx).
		Preload("StockItem").
		Preload("StockItem.Product").
		Where("serial_code = ?", code).
		First(&unit).Error
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *repository) FindByCodes(ctx context.Context, codes []string) ([]models.SerialUnit, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var units []models.SerialUnit
	err := r.db.WithContext(ctx).
		Where("serial_code IN ?", codes).
		Find(&units).Error
	if err != nil {
		return nil, err
	}
	return units, nil
}

func (r *repository) FindExistingCodes(ctx context.Context, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var existing []string
	err := r.db.WithContext(ctx).
		Model(&models.SerialUnit{}).
		Where("serial_code IN ?", codes).
		Pluck("serial_code", &existing).Error
	if err != nil {
		return nil, err
	}
	return existing, nil
}

func (r *repository) ListByStockItem(ctx context.Context, stockItemID uint, status *enums.SerialStatus) ([]models.SerialUnit, error) {
	query := r.db.WithContext(ctx).Where("stock_item_id = ?", stockItemID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var units []models.SerialUnit
	if err := query.Order("serial_code ASC").Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

func (r *repository) ListBySale(ctx context.Context, saleID uint) ([]models.SerialUnit, error) {
	var units []models.SerialUnit
	err := r.db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Order("serial_code ASC").
		Find(&units).Error
	if err != nil {
		return nil, err
	}
	return units, nil
}

// FirstNSoldBySale picks refund candidates when the caller did not name codes.
// Ordered by id so the choice is deterministic.
func (r *repository) FirstNSoldBySale(ctx context.Context, saleID, stockItemID uint, n int) ([]models.SerialUnit, error) {
	var units []models.SerialUnit
	err := r.db.WithContext(ctx).
		Where("sale_id = ? AND stock_item_id = ? AND status = ?", saleID, stockItemID, enums.SerialStatusSold).
		Order("id ASC").
		Limit(n).
		Find(&units).Error
	if err != nil {
		return nil, err
	}
	return units, nil
}

func (r *repository) Save(ctx context.Context, unit *models.SerialUnit) error {
	return r.db.WithContext(ctx).Save(unit).Error
}

func (r *repository) CountByStatus(ctx context.Context, branchID uint) (map[enums.SerialStatus]int64, error) {
	type row struct {
		Status enums.SerialStatus
		Total  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.SerialUnit{}).
		Select("serial_units.status AS status, COUNT(*) AS total").
		Joins("JOIN stock_items ON stock_items.id = serial_units.stock_item_id").
		Where("stock_items.branch_id = ?", branchID).
		Group("serial_units.status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[enums.SerialStatus]int64, len(rows))
	for _, entry := range rows {
		counts[entry.Status] = entry.Total
	}
	return counts, nil
}
