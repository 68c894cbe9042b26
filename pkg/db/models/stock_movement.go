package models

import (
	"time"

	"github.com/CarlusInnocent/HotPOS/pkg/enums"
)

// StockMovement is an append-only audit row recorded in the same transaction
// as the quantity change it describes.
type StockMovement struct {
	ID            uint               `gorm:"column:id;primaryKey;autoIncrement"`
	BranchID      uint               `gorm:"column:branch_id;not null;index"`
	ProductID     uint               `gorm:"column:product_id;not null;index"`
	StockItemID   uint               `gorm:"column:stock_item_id;not null;index"`
	Type          enums.MovementType `gorm:"column:type;not null"`
	Quantity      int                `gorm:"column:quantity;not null"`
	QuantityAfter int                `gorm:"column:quantity_after;not null"`
	ReferenceType *string            `gorm:"column:reference_type"`
	ReferenceID   *uint              `gorm:"column:reference_id"`
	ActorID       *uint              `gorm:"column:actor_id"`
	Note          *string            `gorm:"column:note"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
}
