package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/CarlusInnocent/HotPOS/pkg/enums"
)

// Transfer moves stock between branches with an explicit in-transit phase.
// Source stock is deducted at send time, destination stock is credited at
// receive time, and a rejection after send restores the source.
type Transfer struct {
	ID             uint                 `gorm:"column:id;primaryKey;autoIncrement"`
	TransferNumber string               `gorm:"column:transfer_number;not null;uniqueIndex"`
	SourceBranchID uint                 `gorm:"column:source_branch_id;not null;index"`
	DestBranchID   uint                 `gorm:"column:dest_branch_id;not null;index"`
	SourceBranch   *Branch              `gorm:"foreignKey:SourceBranchID"`
	DestBranch     *Branch              `gorm:"foreignKey:DestBranchID"`
	Status         enums.TransferStatus `gorm:"column:status;not null"`
	RequestedByID  uint                 `gorm:"column:requested_by_id;not null"`
	SentByID       *uint                `gorm:"column:sent_by_id"`
	ReceivedByID   *uint                `gorm:"column:received_by_id"`
	SentAt         *time.Time           `gorm:"column:sent_at"`
	ReceivedAt     *time.Time           `gorm:"column:received_at"`
	RejectedAt     *time.Time           `gorm:"column:rejected_at"`
	RejectReason   *string              `gorm:"column:reject_reason"`
	Notes          *string              `gorm:"column:notes"`
	Items          []TransferItem       `gorm:"foreignKey:TransferID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// TransferItem is one product line on a transfer. UnitCost is captured from
// the source branch at send time and carried to the destination on receive.
type TransferItem struct {
	ID         uint            `gorm:"column:id;primaryKey;autoIncrement"`
	TransferID uint            `gorm:"column:transfer_id;not null;index"`
	ProductID  uint            `gorm:"column:product_id;not null"`
	Product    *Product        `gorm:"foreignKey:ProductID"`
	Quantity   int             `gorm:"column:quantity;not null"`
	UnitCost   decimal.Decimal `gorm:"column:unit_cost;type:numeric(15,2);not null;default:0"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}
