package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records counters for the stock ledger hot paths.
type LedgerMetrics struct {
	movements         *prometheus.CounterVec
	insufficientStock *prometheus.CounterVec
	lockTimeouts      prometheus.Counter
	serialTransitions *prometheus.CounterVec
	salesCreated      *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_movements_total",
		Help: "Stock movements applied, by movement type.",
	}, []string{"type"})
	insufficientStock := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "insufficient_stock_total",
		Help: "Operations rejected because stock would go negative.",
	}, []string{"operation"})
	lockTimeouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_lock_timeouts_total",
		Help: "Transactions aborted waiting on a stock row lock.",
	})
	serialTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "serial_transitions_total",
		Help: "Serial unit status transitions, by target status.",
	}, []string{"to"})
	salesCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_created_total",
		Help: "Sales committed, by payment method.",
	}, []string{"payment_method"})
	reg.MustRegister(movements, insufficientStock, lockTimeouts, serialTransitions, salesCreated)
	return &LedgerMetrics{
		movements:         movements,
		insufficientStock: insufficientStock,
		lockTimeouts:      lockTimeouts,
		serialTransitions: serialTransitions,
		salesCreated:      salesCreated,
	}
}

// ObserveMovement counts one applied stock movement.
func (m *LedgerMetrics) ObserveMovement(movementType string) {
	if m == nil || m.movements == nil {
		return
	}
	m.movements.WithLabelValues(movementType).Inc()
}

// ObserveInsufficientStock counts a rejected decrement.
func (m *LedgerMetrics) ObserveInsufficientStock(operation string) {
	if m == nil || m.insufficientStock == nil {
		return
	}
	m.insufficientStock.WithLabelValues(operation).Inc()
}

// ObserveLockTimeout counts a transaction aborted by lock_timeout.
func (m *LedgerMetrics) ObserveLockTimeout() {
	if m == nil || m.lockTimeouts == nil {
		return
	}
	m.lockTimeouts.Inc()
}

// ObserveSerialTransition counts one serial status change.
func (m *LedgerMetrics) ObserveSerialTransition(to string) {
	if m == nil || m.serialTransitions == nil {
		return
	}
	m.serialTransitions.WithLabelValues(to).Inc()
}

// ObserveSaleCreated counts one committed sale.
func (m *LedgerMetrics) ObserveSaleCreated(paymentMethod string) {
	if m == nil || m.salesCreated == nil {
		return
	}
	m.salesCreated.WithLabelValues(paymentMethod).Inc()
}
