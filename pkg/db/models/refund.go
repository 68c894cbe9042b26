package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/CarlusInnocent/HotPOS/pkg/enums"
)

// Refund returns sold goods from a customer against a specific sale.
// Approving it restocks the branch and releases the matching serial units.
type Refund struct {
	ID            uint                 `gorm:"column:id;primaryKey;autoIncrement"`
	RefundNumber  string               `gorm:"column:refund_number;not null;uniqueIndex"`
	SaleID        uint                 `gorm:"column:sale_id;not null;index"`
	BranchID      uint                 `gorm:"column:branch_id;not null;index"`
	Sale          *Sale                `gorm:"foreignKey:SaleID"`
	Branch        *Branch              `gorm:"foreignKey:BranchID"`
	Status        enums.ApprovalStatus `gorm:"column:status;not null"`
	Reason        *string              `gorm:"column:reason"`
	RequestedByID uint                 `gorm:"column:requested_by_id;not null"`
	DecidedByID   *uint                `gorm:"column:decided_by_id"`
	DecidedAt     *time.Time           `gorm:"column:decided_at"`
	TotalAmount   decimal.Decimal      `gorm:"column:total_amount;type:numeric(15,2);not null;default:0"`
	Items         []RefundItem         `gorm:"foreignKey:RefundID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// RefundItem is one product line on a refund request.
type RefundItem struct {
	ID        uint            `gorm:"column:id;primaryKey;autoIncrement"`
	RefundID  uint            `gorm:"column:refund_id;not null;index"`
	ProductID uint            `gorm:"column:product_id;not null"`
	Product   *Product        `gorm:"foreignKey:ProductID"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(15,2);not null;default:0"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
