package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregatePurchase       OutboxAggregateType = "purchase"
	AggregateSale           OutboxAggregateType = "sale"
	AggregateTransfer       OutboxAggregateType = "transfer"
	AggregateSupplierReturn OutboxAggregateType = "supplier_return"
	AggregateRefund         OutboxAggregateType = "refund"
	AggregateStockItem      OutboxAggregateType = "stock_item"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePurchase,
	AggregateSale,
	AggregateTransfer,
	AggregateSupplierReturn,
	AggregateRefund,
	AggregateStockItem,
}

// IsValid reports whether the value is a known OutboxAggregateType.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names the domain event carried by an outbox row.
type OutboxEventType string

const (
	EventPurchaseReceived OutboxEventType = "purchase_received"
	EventSaleCreated      OutboxEventType = "sale_created"
	EventTransferSent     OutboxEventType = "transfer_sent"
	EventTransferReceived OutboxEventType = "transfer_received"
	EventTransferRejected OutboxEventType = "transfer_rejected"
	EventReturnApproved   OutboxEventType = "return_approved"
	EventRefundApproved   OutboxEventType = "refund_approved"
	EventStockCorrected   OutboxEventType = "stock_corrected"
	EventLowStockDetected OutboxEventType = "low_stock_detected"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPurchaseReceived,
	EventSaleCreated,
	EventTransferSent,
	EventTransferReceived,
	EventTransferRejected,
	EventReturnApproved,
	EventRefundApproved,
	EventStockCorrected,
	EventLowStockDetected,
}

// IsValid reports whether the value is a known OutboxEventType.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
