package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/CarlusInnocent/HotPOS/pkg/enums"
)

// Purchase is an order placed with a supplier. Receiving it is what moves
// the ordered quantities into branch stock.
type Purchase struct {
	ID             uint                 `gorm:"column:id;primaryKey;autoIncrement"`
	PurchaseNumber string               `gorm:"column:purchase_number;not null;uniqueIndex"`
	BranchID       uint                 `gorm:"column:branch_id;not null;index"`
	SupplierID     uint                 `gorm:"column:supplier_id;not null;index"`
	Branch         *Branch              `gorm:"foreignKey:BranchID"`
	Supplier       *Supplier            `gorm:"foreignKey:SupplierID"`
	Status         enums.PurchaseStatus `gorm:"column:status;not null"`
	OrderDate      time.Time            `gorm:"column:order_date;not null"`
	ReceivedDate   *time.Time           `gorm:"column:received_date"`
	TotalCost      decimal.Decimal      `gorm:"column:total_cost;type:numeric(15,2);not null;default:0"`
	Notes          *string              `gorm:"column:notes"`
	CreatedByID    uint                 `gorm:"column:created_by_id;not null"`
	ReceivedByID   *uint                `gorm:"column:received_by_id"`
	Items          []PurchaseItem       `gorm:"foreignKey:PurchaseID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// PurchaseItem is one product line on a purchase order.
type PurchaseItem struct {
	ID         uint            `gorm:"column:id;primaryKey;autoIncrement"`
	PurchaseID uint            `gorm:"column:purchase_id;not null;index"`
	ProductID  uint            `gorm:"column:product_id;not null"`
	Product    *Product        `gorm:"foreignKey:ProductID"`
	Quantity   int             `gorm:"column:quantity;not null"`
	UnitCost   decimal.Decimal `gorm:"column:unit_cost;type:numeric(15,2);not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}
