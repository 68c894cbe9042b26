package payloads

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/CarlusInnocent/HotPOS/pkg/enums"
)

// PurchaseReceivedEvent is emitted when a purchase order lands in branch stock.
type PurchaseReceivedEvent struct {
	PurchaseID     uint      `json:"purchase_id"`
	PurchaseNumber string    `json:"purchase_number"`
	BranchID       uint      `json:"branch_id"`
	SupplierID     uint      `json:"supplier_id"`
	ReceivedAt     time.Time `json:"received_at"`
	LineCount      int       `json:"line_count"`
}

// SaleCreatedEvent is emitted when a sale commits.
type SaleCreatedEvent struct {
	SaleID        uint                `json:"sale_id"`
	SaleNumber    string              `json:"sale_number"`
	BranchID      uint                `json:"branch_id"`
	CashierID     uint                `json:"cashier_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	TotalCost     decimal.Decimal     `json:"total_cost"`
	LineCount     int                 `json:"line_count"`
}

// TransferStateEvent covers the send/receive/reject lifecycle of a transfer.
type TransferStateEvent struct {
	TransferID     uint                 `json:"transfer_id"`
	TransferNumber string               `json:"transfer_number"`
	SourceBranchID uint                 `json:"source_branch_id"`
	DestBranchID   uint                 `json:"dest_branch_id"`
	Status         enums.TransferStatus `json:"status"`
}

// ReturnApprovedEvent is emitted when a supplier return leaves branch stock.
type ReturnApprovedEvent struct {
	ReturnID     uint `json:"return_id"`
	BranchID     uint `json:"branch_id"`
	SupplierID   uint `json:"supplier_id"`
	UnitsRemoved int  `json:"units_removed"`
}

// RefundApprovedEvent is emitted when a customer refund restocks a branch.
type RefundApprovedEvent struct {
	RefundID      uint            `json:"refund_id"`
	SaleID        uint            `json:"sale_id"`
	BranchID      uint            `json:"branch_id"`
	UnitsRestored int             `json:"units_restored"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// StockCorrectedEvent is emitted when a physical count overrides book quantity.
type StockCorrectedEvent struct {
	BranchID    uint `json:"branch_id"`
	ProductID   uint `json:"product_id"`
	StockItemID uint `json:"stock_item_id"`
	Delta       int  `json:"delta"`
	CountedQty  int  `json:"counted_qty"`
}

// LowStockDetectedEvent flags a stock item at or below its threshold.
type LowStockDetectedEvent struct {
	BranchID  uint `json:"branch_id"`
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
	Threshold int  `json:"threshold"`
}
