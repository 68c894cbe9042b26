package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/CarlusInnocent/HotPOS/pkg/enums"
)

// Sale is a completed point-of-sale transaction. Stock is decremented in the
// same transaction that creates the row.
type Sale struct {
	ID              uint                `gorm:"column:id;primaryKey;autoIncrement"`
	SaleNumber      string              `gorm:"column:sale_number;not null;uniqueIndex"`
	ReferenceNumber string              `gorm:"column:reference_number;not null"`
	SequenceNumber  int64               `gorm:"column:sequence_number;not null;uniqueIndex:uq_sales_branch_sequence"`
	BranchID        uint                `gorm:"column:branch_id;not null;uniqueIndex:uq_sales_branch_sequence,priority:1;index"`
	CustomerID      *uint               `gorm:"column:customer_id;index"`
	CashierID       uint                `gorm:"column:cashier_id;not null"`
	Branch          *Branch             `gorm:"foreignKey:BranchID"`
	Customer        *Customer           `gorm:"foreignKey:CustomerID"`
	Cashier         *User               `gorm:"foreignKey:CashierID"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;not null"`
	TotalAmount     decimal.Decimal     `gorm:"column:total_amount;type:numeric(15,2);not null"`
	TotalCost       decimal.Decimal     `gorm:"column:total_cost;type:numeric(15,2);not null"`
	Discount        decimal.Decimal     `gorm:"column:discount;type:numeric(15,2);not null;default:0"`
	Notes           *string             `gorm:"column:notes"`
	SaleDate        time.Time           `gorm:"column:sale_date;not null"`
	Items           []SaleItem          `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// SaleItem is one product line on a sale. RefundedQuantity is bumped with a
// guarded update when a refund is approved so a line can never be refunded
// past what was sold.
type SaleItem struct {
	ID               uint            `gorm:"column:id;primaryKey;autoIncrement"`
	SaleID           uint            `gorm:"column:sale_id;not null;index"`
	ProductID        uint            `gorm:"column:product_id;not null"`
	Product          *Product        `gorm:"foreignKey:ProductID"`
	Quantity         int             `gorm:"column:quantity;not null"`
	UnitPrice        decimal.Decimal `gorm:"column:unit_price;type:numeric(15,2);not null"`
	UnitCost         decimal.Decimal `gorm:"column:unit_cost;type:numeric(15,2);not null"`
	Discount         decimal.Decimal `gorm:"column:discount;type:numeric(15,2);not null;default:0"`
	RefundedQuantity int             `gorm:"column:refunded_quantity;not null;default:0"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}
