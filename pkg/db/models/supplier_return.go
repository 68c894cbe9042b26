package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/CarlusInnocent/HotPOS/pkg/enums"
)

// SupplierReturn sends defective or unsellable stock back to a supplier.
// Stock only leaves the branch when the return is approved.
type SupplierReturn struct {
	ID            uint                 `gorm:"column:id;primaryKey;autoIncrement"`
	ReturnNumber  string               `gorm:"column:return_number;not null;uniqueIndex"`
	BranchID      uint                 `gorm:"column:branch_id;not null;index"`
	SupplierID    uint                 `gorm:"column:supplier_id;not null;index"`
	Branch        *Branch              `gorm:"foreignKey:BranchID"`
	Supplier      *Supplier            `gorm:"foreignKey:SupplierID"`
	Status        enums.ApprovalStatus `gorm:"column:status;not null"`
	Reason        *string              `gorm:"column:reason"`
	RequestedByID uint                 `gorm:"column:requested_by_id;not null"`
	DecidedByID   *uint                `gorm:"column:decided_by_id"`
	DecidedAt     *time.Time           `gorm:"column:decided_at"`
	Items         []SupplierReturnItem `gorm:"foreignKey:ReturnID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// SupplierReturnItem is one product line on a supplier return.
type SupplierReturnItem struct {
	ID        uint            `gorm:"column:id;primaryKey;autoIncrement"`
	ReturnID  uint            `gorm:"column:return_id;not null;index"`
	ProductID uint            `gorm:"column:product_id;not null"`
	Product   *Product        `gorm:"foreignKey:ProductID"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitCost  decimal.Decimal `gorm:"column:unit_cost;type:numeric(15,2);not null;default:0"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
