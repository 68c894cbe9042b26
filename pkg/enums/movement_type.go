package enums

import "fmt"

// MovementType labels a stock movement with the workflow that produced it.
type MovementType string

const (
	MovementTypePurchaseReceived MovementType = "PURCHASE_RECEIVED"
	MovementTypeSale             MovementType = "SALE"
	MovementTypeTransferOut      MovementType = "TRANSFER_OUT"
	MovementTypeTransferIn       MovementType = "TRANSFER_IN"
	MovementTypeTransferReversal MovementType = "TRANSFER_REVERSAL"
	MovementTypeSupplierReturn   MovementType = "SUPPLIER_RETURN"
	MovementTypeCustomerRefund   MovementType = "CUSTOMER_REFUND"
	MovementTypeCountCorrection  MovementType = "COUNT_CORRECTION"
)

var validMovementTypes = []MovementType{
	MovementTypePurchaseReceived,
	MovementTypeSale,
	MovementTypeTransferOut,
	MovementTypeTransferIn,
	MovementTypeTransferReversal,
	MovementTypeSupplierReturn,
	MovementTypeCustomerRefund,
	MovementTypeCountCorrection,
}

// String implements fmt.Stringer.
func (m MovementType) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MovementType.
func (m MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMovementType converts raw input into a MovementType.
func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}
