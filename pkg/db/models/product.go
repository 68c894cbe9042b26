package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry shared by every branch.
type Product struct {
	ID                uint            `gorm:"column:id;primaryKey;autoIncrement"`
	SKU               string          `gorm:"column:sku;not null;uniqueIndex"`
	Barcode           *string         `gorm:"column:barcode;uniqueIndex"`
	Name              string          `gorm:"column:name;not null"`
	Description       *string         `gorm:"column:description"`
	CategoryID        *uint           `gorm:"column:category_id"`
	Category          *Category       `gorm:"foreignKey:CategoryID"`
	CostPrice         decimal.Decimal `gorm:"column:cost_price;type:numeric(15,2);not null;default:0"`
	SellingPrice      decimal.Decimal `gorm:"column:selling_price;type:numeric(15,2);not null;default:0"`
	SerialTracked     bool            `gorm:"column:serial_tracked;not null;default:false"`
	LowStockThreshold *int            `gorm:"column:low_stock_threshold"`
	IsActive          bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
