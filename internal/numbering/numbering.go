// Package numbering builds the human-facing document numbers printed on
// receipts and referenced by branch staff.
package numbering

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const timestampLayout = "20060102150405"

// DefaultSequenceWidth pads branch sale sequences, SL-KLA-...-00042.
const DefaultSequenceWidth = 5

// Timestamps only resolve to the second, so two documents raised in the
// same second at the same branch would collide on the unique number
// column. The suffix disambiguates them.
func suffix() string {
	return strings.ToUpper(uuid.NewString()[:6])
}

// PurchaseOrder builds a purchase order number for a branch.
func PurchaseOrder(branchCode string, at time.Time) string {
	return fmt.Sprintf("PO-%s-%s-%s", branchCode, at.Format(timestampLayout), suffix())
}

// Transfer builds a transfer number from the source and destination codes.
func Transfer(sourceCode, destCode string, at time.Time) string {
	return fmt.Sprintf("TR-%s-%s-%s-%s", sourceCode, destCode, at.Format(timestampLayout), suffix())
}

// SupplierReturn builds a supplier return number for a branch.
func SupplierReturn(branchCode string, at time.Time) string {
	return fmt.Sprintf("RET-%s-%s-%s", branchCode, at.Format(timestampLayout), suffix())
}

// Refund builds a refund number for a branch.
func Refund(branchCode string, at time.Time) string {
	return fmt.Sprintf("RFD-%s-%s-%s", branchCode, at.Format(timestampLayout), suffix())
}

// Sale builds the globally unique sale number. The sequence is the
// branch-scoped counter, zero padded to width digits.
func Sale(branchCode string, at time.Time, sequence int64, width int) string {
	if width <= 0 {
		width = DefaultSequenceWidth
	}
	return fmt.Sprintf("SL-%s-%s-%0*d", branchCode, at.Format(timestampLayout), width, sequence)
}

// SaleReference is the short per-branch receipt reference shown to customers.
func SaleReference(sequence int64, width int) string {
	if width <= 0 {
		width = DefaultSequenceWidth
	}
	return fmt.Sprintf("REF-%0*d", width, sequence)
}
