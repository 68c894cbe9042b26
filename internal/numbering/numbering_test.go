package numbering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, time.March, 14, 9, 26, 53, 0, time.UTC)

func TestDocumentNumbers(t *testing.T) {
	t.Parallel()

	require.Regexp(t, `^PO-KLA-20260314092653-[0-9A-F]{6}$`, PurchaseOrder("KLA", fixedTime))
	require.Regexp(t, `^TR-KLA-MBR-20260314092653-[0-9A-F]{6}$`, Transfer("KLA", "MBR", fixedTime))
	require.Regexp(t, `^RET-KLA-20260314092653-[0-9A-F]{6}$`, SupplierReturn("KLA", fixedTime))
	require.Regexp(t, `^RFD-KLA-20260314092653-[0-9A-F]{6}$`, Refund("KLA", fixedTime))
}

func TestDocumentNumbersDifferWithinOneSecond(t *testing.T) {
	t.Parallel()

	require.NotEqual(t, PurchaseOrder("KLA", fixedTime), PurchaseOrder("KLA", fixedTime))
	require.NotEqual(t, Transfer("KLA", "MBR", fixedTime), Transfer("KLA", "MBR", fixedTime))
	require.NotEqual(t, SupplierReturn("KLA", fixedTime), SupplierReturn("KLA", fixedTime))
	require.NotEqual(t, Refund("KLA", fixedTime), Refund("KLA", fixedTime))
}

func TestSaleNumberPadsSequence(t *testing.T) {
	t.Parallel()

	require.Equal(t, "SL-KLA-20260314092653-00042", Sale("KLA", fixedTime, 42, 5))
	require.Equal(t, "SL-KLA-20260314092653-00042", Sale("KLA", fixedTime, 42, 0))
	require.Equal(t, "SL-KLA-20260314092653-1000000", Sale("KLA", fixedTime, 1000000, 5))
}

func TestSaleReference(t *testing.T) {
	t.Parallel()

	require.Equal(t, "REF-00007", SaleReference(7, 5))
	require.Equal(t, "REF-00007", SaleReference(7, 0))
}
