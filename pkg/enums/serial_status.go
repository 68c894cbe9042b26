package enums

import "fmt"

// SerialStatus is the lifecycle state of an individually tracked unit.
type SerialStatus string

const (
	SerialStatusInStock     SerialStatus = "IN_STOCK"
	SerialStatusSold        SerialStatus = "SOLD"
	SerialStatusReturned    SerialStatus = "RETURNED"
	SerialStatusDefective   SerialStatus = "DEFECTIVE"
	SerialStatusTransferred SerialStatus = "TRANSFERRED"
)

var validSerialStatuses = []SerialStatus{
	SerialStatusInStock,
	SerialStatusSold,
	SerialStatusReturned,
	SerialStatusDefective,
	SerialStatusTransferred,
}

// String implements fmt.Stringer.
func (s SerialStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SerialStatus.
func (s SerialStatus) IsValid() bool {
	for _, candidate := range validSerialStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSerialStatus converts raw input into a SerialStatus.
func ParseSerialStatus(value string) (SerialStatus, error) {
	for _, candidate := range validSerialStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid serial status %q", value)
}
