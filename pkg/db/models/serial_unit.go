package models

import (
	"time"

	"github.com/CarlusInnocent/HotPOS/pkg/enums"
)

// SerialUnit is one physically identifiable unit of a serial-tracked product.
// Serial codes are unique across the whole chain, not per branch.
type SerialUnit struct {
	ID          uint               `gorm:"column:id;primaryKey;autoIncrement"`
	SerialCode  string             `gorm:"column:serial_code;not null;uniqueIndex"`
	StockItemID uint               `gorm:"column:stock_item_id;not null;index"`
	StockItem   *StockItem         `gorm:"foreignKey:StockItemID"`
	Status      enums.SerialStatus `gorm:"column:status;not null"`
	PurchaseID  *uint              `gorm:"column:purchase_id;index"`
	SaleID      *uint              `gorm:"column:sale_id;index"`
	Notes       *string            `gorm:"column:notes"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
