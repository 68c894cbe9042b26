package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/CarlusInnocent/HotPOS/internal/stock"
	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
	"github.com/CarlusInnocent/HotPOS/pkg/enums"
	apperrors "github.com/CarlusInnocent/HotPOS/pkg/errors"
	"github.com/CarlusInnocent/HotPOS/pkg/logger"
)

// DashboardReport is the branch overview shown on the home screen.
type DashboardReport struct {
	BranchID         uint                          `json:"branch_id"`
	Date             string                        `json:"date"`
	SalesCount       int64                         `json:"sales_count"`
	GrossAmount      decimal.Decimal               `json:"gross_amount"`
	TotalCost        decimal.Decimal               `json:"total_cost"`
	Discount         decimal.Decimal               `json:"discount"`
	RefundCount      int64                         `json:"refund_count"`
	RefundAmount     decimal.Decimal               `json:"refund_amount"`
	PendingPurchases int64                         `json:"pending_purchases"`
	OpenTransfers    int64                         `json:"open_transfers"`
	PendingReturns   int64                         `json:"pending_returns"`
	PendingRefunds   int64                         `json:"pending_refunds"`
	LowStockCount    int                           `json:"low_stock_count"`
	SerialCounts     map[enums.SerialStatus]int64  `json:"serial_counts"`
}

// SalesSummaryReport breaks sales down over a date range.
type SalesSummaryReport struct {
	BranchID        uint                 `json:"branch_id"`
	From            time.Time            `json:"from"`
	To              time.Time            `json:"to"`
	SalesCount      int64                `json:"sales_count"`
	GrossAmount     decimal.Decimal      `json:"gross_amount"`
	TotalCost       decimal.Decimal      `json:"total_cost"`
	Discount        decimal.Decimal      `json:"discount"`
	RefundCount     int64                `json:"refund_count"`
	RefundAmount    decimal.Decimal      `json:"refund_amount"`
	ByPaymentMethod []PaymentMethodTotal `json:"by_payment_method"`
	ByDay           []DailyTotal         `json:"by_day"`
}

// Service assembles read-side reports, optionally caching them in Redis.
type Service interface {
	Dashboard(ctx context.Context, branchID uint) (*DashboardReport, error)
	SalesSummary(ctx context.Context, branchID uint, from, to time.Time) (*SalesSummaryReport, error)
	LowStock(ctx context.Context, branchID uint) ([]models.StockItem, error)
}

type reportCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type serialCounter interface {
	Stats(ctx context.Context, branchID uint) (map[enums.SerialStatus]int64, error)
}

type service struct {
	repo     Repository
	ledger   stock.Ledger
	serials  serialCounter
	cache    reportCache
	cacheTTL time.Duration
	logg     *logger.Logger
}

// NewService wires the reports service. cache may be nil, reports are then
// computed on every call.
func NewService(repo Repository, ledger stock.Ledger, serials serialCounter, cache reportCache, cacheTTL time.Duration, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reports repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if serials == nil {
		return nil, fmt.Errorf("serials service required")
	}
	return &service{
		repo:     repo,
		ledger:   ledger,
		serials:  serials,
		cache:    cache,
		cacheTTL: cacheTTL,
		logg:     logg,
	}, nil
}

func (s *service) Dashboard(ctx context.Context, branchID uint) (*DashboardReport, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	key := fmt.Sprintf("reports:dashboard:%d:%s", branchID, today.Format("2006-01-02"))

	var cached DashboardReport
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	sales, err := s.repo.SalesBetween(ctx, branchID, today, today.Add(24*time.Hour))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "aggregating sales")
	}
	refundCount, refundAmount, err := s.repo.RefundsBetween(ctx, branchID, today, today.Add(24*time.Hour))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "aggregating refunds")
	}
	pendingPurchases, openTransfers, pendingReturns, pendingRefunds, err := s.repo.PendingApprovals(ctx, branchID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "counting pending approvals")
	}
	lowStock, err := s.ledger.LowStock(ctx, branchID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing low stock")
	}
	serialCounts, err := s.serials.Stats(ctx, branchID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "counting serial units")
	}

	report := &DashboardReport{
		BranchID:         branchID,
		Date:             today.Format("2006-01-02"),
		SalesCount:       sales.Count,
		GrossAmount:      sales.GrossAmount,
		TotalCost:        sales.TotalCost,
		Discount:         sales.Discount,
		RefundCount:      refundCount,
		RefundAmount:     refundAmount,
		PendingPurchases: pendingPurchases,
		OpenTransfers:    openTransfers,
		PendingReturns:   pendingReturns,
		PendingRefunds:   pendingRefunds,
		LowStockCount:    len(lowStock),
		SerialCounts:     serialCounts,
	}
	s.toCache(ctx, key, report)
	return report, nil
}

func (s *service) SalesSummary(ctx context.Context, branchID uint, from, to time.Time) (*SalesSummaryReport, error) {
	if !to.After(from) {
		return nil, apperrors.New(apperrors.CodeValidation, "the report range must end after it starts")
	}
	key := fmt.Sprintf("reports:sales:%d:%d:%d", branchID, from.Unix(), to.Unix())

	var cached SalesSummaryReport
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	sales, err := s.repo.SalesBetween(ctx, branchID, from, to)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "aggregating sales")
	}
	refundCount, refundAmount, err := s.repo.RefundsBetween(ctx, branchID, from, to)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "aggregating refunds")
	}
	byMethod, err := s.repo.SalesByPaymentMethod(ctx, branchID, from, to)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "grouping by payment method")
	}
	byDay, err := s.repo.SalesByDay(ctx, branchID, from, to)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "grouping by day")
	}

	report := &SalesSummaryReport{
		BranchID:        branchID,
		From:            from,
		To:              to,
		SalesCount:      sales.Count,
		GrossAmount:     sales.GrossAmount,
		TotalCost:       sales.TotalCost,
		Discount:        sales.Discount,
		RefundCount:     refundCount,
		RefundAmount:    refundAmount,
		ByPaymentMethod: byMethod,
		ByDay:           byDay,
	}
	s.toCache(ctx, key, report)
	return report, nil
}

func (s *service) LowStock(ctx context.Context, branchID uint) ([]models.StockItem, error) {
	items, err := s.ledger.LowStock(ctx, branchID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing low stock")
	}
	return items, nil
}

// fromCache reports whether the key was present and decoded. Cache failures
// are treated as misses.
func (s *service) fromCache(ctx context.Context, key string, out any) bool {
	if s.cache == nil || s.cacheTTL <= 0 {
		return false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil || raw == "" {
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}

func (s *service) toCache(ctx context.Context, key string, report any) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(payload), s.cacheTTL); err != nil && s.logg != nil {
		s.logg.Error(ctx, "caching report failed", err)
	}
}
