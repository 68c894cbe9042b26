package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockItem tracks on-hand quantity and pricing for one product at one branch.
// The quantity column is never written directly; every change flows through a
// guarded delta update so it can never go negative.
type StockItem struct {
	ID            uint             `gorm:"column:id;primaryKey;autoIncrement"`
	BranchID      uint             `gorm:"column:branch_id;not null;uniqueIndex:uq_stock_items_branch_product"`
	ProductID     uint             `gorm:"column:product_id;not null;uniqueIndex:uq_stock_items_branch_product"`
	Branch        *Branch          `gorm:"foreignKey:BranchID"`
	Product       *Product         `gorm:"foreignKey:ProductID"`
	Quantity      int              `gorm:"column:quantity;not null;default:0"`
	CostPrice     decimal.Decimal  `gorm:"column:cost_price;type:numeric(15,2);not null;default:0"`
	SellingPrice  *decimal.Decimal `gorm:"column:selling_price;type:numeric(15,2)"`
	LastStockDate *time.Time       `gorm:"column:last_stock_date"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
