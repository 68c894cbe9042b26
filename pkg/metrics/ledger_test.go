package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestLedgerMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewLedgerMetrics(reg)

	metrics.ObserveMovement("SALE")
	metrics.ObserveMovement("SALE")
	metrics.ObserveInsufficientStock("sale")
	metrics.ObserveLockTimeout()
	metrics.ObserveSerialTransition("SOLD")
	metrics.ObserveSaleCreated("CASH")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "stock_movements_total", "type", "SALE"); err != nil {
		t.Fatalf("fetch movements: %v", err)
	} else if got != 2 {
		t.Fatalf("expected movements=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "insufficient_stock_total", "operation", "sale"); err != nil {
		t.Fatalf("fetch insufficient stock: %v", err)
	} else if got != 1 {
		t.Fatalf("expected insufficient=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "serial_transitions_total", "to", "SOLD"); err != nil {
		t.Fatalf("fetch serial transitions: %v", err)
	} else if got != 1 {
		t.Fatalf("expected transitions=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "sales_created_total", "payment_method", "CASH"); err != nil {
		t.Fatalf("fetch sales created: %v", err)
	} else if got != 1 {
		t.Fatalf("expected sales=1, got %f", got)
	}
}

func TestLedgerMetricsNilSafe(t *testing.T) {
	var metrics *LedgerMetrics
	metrics.ObserveMovement("SALE")
	metrics.ObserveLockTimeout()

	empty := NewLedgerMetrics(nil)
	empty.ObserveSaleCreated("CASH")
}
