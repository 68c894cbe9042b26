package sales

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/CarlusInnocent/HotPOS/internal/numbering"
	"github.com/CarlusInnocent/HotPOS/internal/serials"
	"github.com/CarlusInnocent/HotPOS/internal/stock"
	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
	"github.com/CarlusInnocent/HotPOS/pkg/enums"
	apperrors "github.com/CarlusInnocent/HotPOS/pkg/errors"
	"github.com/CarlusInnocent/HotPOS/pkg/logger"
	"github.com/CarlusInnocent/HotPOS/pkg/metrics"
	"github.com/CarlusInnocent/HotPOS/pkg/outbox"
	"github.com/CarlusInnocent/HotPOS/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// LineInput is one product line on a new sale. UnitPrice overrides the
// branch and catalog prices when set. Discount comes off this line before
// the sale-level discount applies. SerialCodes are required for
// serial-tracked products and must match the quantity.
type LineInput struct {
	ProductID   uint
	Quantity    int
	UnitPrice   *decimal.Decimal
	Discount    decimal.Decimal
	SerialCodes []string
}

// CreateInput describes a new point-of-sale transaction.
type CreateInput struct {
	BranchID      uint
	CashierID     uint
	CustomerID    *uint
	PaymentMethod enums.PaymentMethod
	PaymentStatus enums.PaymentStatus
	Discount      decimal.Decimal
	Notes         *string
	Lines         []LineInput
}

// SaleWithRefund pairs a sale with its refund position derived from the
// line-level refunded quantities.
type SaleWithRefund struct {
	models.Sale
	RefundStatus enums.RefundStatus `json:"refund_status"`
}

// Service creates and reads point-of-sale transactions.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Sale, error)
	Get(ctx context.Context, id uint) (*SaleWithRefund, error)
	GetByNumber(ctx context.Context, saleNumber string) (*SaleWithRefund, error)
	ListByBranch(ctx context.Context, branchID uint, limit, offset int) ([]SaleWithRefund, error)
}

type service struct {
	repo          Repository
	runner        txRunner
	ledger        stock.Ledger
	serials       serials.Service
	events        *outbox.Service
	metrics       *metrics.LedgerMetrics
	logg          *logger.Logger
	sequenceWidth int
}

// NewService wires the sales service with the stock ledger and serial registry.
func NewService(
	repo Repository,
	runner txRunner,
	ledger stock.Ledger,
	serialSvc serials.Service,
	events *outbox.Service,
	ledgerMetrics *metrics.LedgerMetrics,
	logg *logger.Logger,
	sequenceWidth int,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if runner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if serialSvc == nil {
		return nil, fmt.Errorf("serials service required")
	}
	if sequenceWidth <= 0 {
		sequenceWidth = numbering.DefaultSequenceWidth
	}
	return &service{
		repo:          repo,
		runner:        runner,
		ledger:        ledger,
		serials:       serialSvc,
		events:        events,
		metrics:       ledgerMetrics,
		logg:          logg,
		sequenceWidth: sequenceWidth,
	}, nil
}

// Create commits the sale, its stock decrements, serial attachments and the
// outbox event in one transaction. If any line lacks stock the whole sale
// rolls back.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Sale, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	branch, err := s.repo.GetBranch(ctx, input.BranchID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "branch not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading branch")
	}

	// Lines are processed in product order so two concurrent sales that
	// overlap on products take their row locks in the same order.
	lines := make([]LineInput, len(input.Lines))
	copy(lines, input.Lines)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	var sale *models.Sale
	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		sequence, err := repo.NextSequence(ctx, input.BranchID)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "allocating sale sequence")
		}

		now := time.Now()
		sale = &models.Sale{
			SaleNumber:      numbering.Sale(branch.Code, now, sequence, s.sequenceWidth),
			ReferenceNumber: numbering.SaleReference(sequence, s.sequenceWidth),
			SequenceNumber:  sequence,
			BranchID:        input.BranchID,
			CustomerID:      input.CustomerID,
			CashierID:       input.CashierID,
			PaymentMethod:   input.PaymentMethod,
			PaymentStatus:   input.PaymentStatus,
			Discount:        input.Discount,
			Notes:           input.Notes,
			SaleDate:        now,
		}
		if err := repo.Create(ctx, sale); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "creating sale")
		}

		cashierID := input.CashierID
		items := make([]models.SaleItem, 0, len(lines))
		gross := decimal.Zero
		totalCost := decimal.Zero
		for _, line := range lines {
			stockItem, err := s.ledger.Apply(ctx, tx, stock.MovementInput{
				BranchID:      input.BranchID,
				ProductID:     line.ProductID,
				Delta:         -line.Quantity,
				Type:          enums.MovementTypeSale,
				ReferenceType: "sale",
				ReferenceID:   sale.ID,
				ActorID:       &cashierID,
			})
			if err != nil {
				return err
			}

			product, err := repo.GetProduct(ctx, line.ProductID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return apperrors.New(apperrors.CodeNotFound,
						fmt.Sprintf("product %d not found", line.ProductID))
				}
				return apperrors.Wrap(apperrors.CodeInternal, err, "loading product")
			}

			unitPrice := resolveUnitPrice(line, stockItem, product)
			unitCost := resolveUnitCost(stockItem, product)

			if product.SerialTracked {
				if _, err := s.serials.MarkSold(ctx, tx, stockItem.ID, sale.ID, line.Quantity, line.SerialCodes); err != nil {
					return err
				}
			} else if len(line.SerialCodes) > 0 {
				return apperrors.New(apperrors.CodeValidation,
					fmt.Sprintf("product %d is not serial tracked", line.ProductID))
			}

			quantity := decimal.NewFromInt(int64(line.Quantity))
			lineGross := unitPrice.Mul(quantity)
			if line.Discount.GreaterThan(lineGross) {
				return apperrors.New(apperrors.CodeValidation,
					fmt.Sprintf("discount on product %d exceeds the line total", line.ProductID)).
					WithDetails(map[string]any{
						"product_id": line.ProductID,
						"line_total": lineGross.String(),
						"discount":   line.Discount.String(),
					})
			}
			gross = gross.Add(lineGross.Sub(line.Discount))
			totalCost = totalCost.Add(unitCost.Mul(quantity))
			items = append(items, models.SaleItem{
				SaleID:    sale.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: unitPrice,
				UnitCost:  unitCost,
				Discount:  line.Discount,
			})
		}

		if input.Discount.GreaterThan(gross) {
			return apperrors.New(apperrors.CodeValidation, "discount exceeds sale total").
				WithDetails(map[string]any{"gross": gross.String(), "discount": input.Discount.String()})
		}

		if err := repo.CreateItems(ctx, items); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "creating sale items")
		}
		sale.TotalAmount = gross.Sub(input.Discount)
		sale.TotalCost = totalCost
		sale.Items = items
		if err := repo.UpdateTotals(ctx, sale); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "updating sale totals")
		}

		if s.events != nil {
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventSaleCreated,
				AggregateType: enums.AggregateSale,
				AggregateID:   sale.ID,
				Actor:         &outbox.ActorRef{UserID: input.CashierID},
				Data: payloads.SaleCreatedEvent{
					SaleID:        sale.ID,
					SaleNumber:    sale.SaleNumber,
					BranchID:      sale.BranchID,
					CashierID:     sale.CashierID,
					PaymentMethod: sale.PaymentMethod,
					TotalAmount:   sale.TotalAmount,
					TotalCost:     sale.TotalCost,
					LineCount:     len(items),
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveSaleCreated(string(sale.PaymentMethod))
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"sale_number": sale.SaleNumber,
			"branch_id":   sale.BranchID,
			"total":       sale.TotalAmount.String(),
		})
		s.logg.Info(logCtx, "sale created")
	}
	return sale, nil
}

func (s *service) Get(ctx context.Context, id uint) (*SaleWithRefund, error) {
	sale, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "sale not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading sale")
	}
	return annotate(sale), nil
}

func (s *service) GetByNumber(ctx context.Context, saleNumber string) (*SaleWithRefund, error) {
	sale, err := s.repo.GetByNumber(ctx, saleNumber)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "sale not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading sale")
	}
	return annotate(sale), nil
}

func (s *service) ListByBranch(ctx context.Context, branchID uint, limit, offset int) ([]SaleWithRefund, error) {
	list, err := s.repo.ListByBranch(ctx, branchID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing sales")
	}
	annotated := make([]SaleWithRefund, 0, len(list))
	for i := range list {
		annotated = append(annotated, *annotate(&list[i]))
	}
	return annotated, nil
}

func (s *service) validate(input CreateInput) error {
	if len(input.Lines) == 0 {
		return apperrors.New(apperrors.CodeValidation, "a sale needs at least one line")
	}
	if !input.PaymentMethod.IsValid() {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.PaymentMethod))
	}
	if !input.PaymentStatus.IsValid() {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid payment status %q", input.PaymentStatus))
	}
	if input.Discount.IsNegative() {
		return apperrors.New(apperrors.CodeValidation, "discount cannot be negative")
	}
	seen := make(map[uint]struct{}, len(input.Lines))
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return apperrors.New(apperrors.CodeValidation, "line quantity must be positive")
		}
		if line.UnitPrice != nil && line.UnitPrice.IsNegative() {
			return apperrors.New(apperrors.CodeValidation, "unit price cannot be negative")
		}
		if line.Discount.IsNegative() {
			return apperrors.New(apperrors.CodeValidation, "line discount cannot be negative")
		}
		if _, dup := seen[line.ProductID]; dup {
			return apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("product %d appears on more than one line", line.ProductID))
		}
		seen[line.ProductID] = struct{}{}
	}
	return nil
}

// resolveUnitPrice picks the first set price: explicit line override, then
// the branch stock price, then the catalog price.
func resolveUnitPrice(line LineInput, stockItem *models.StockItem, product *models.Product) decimal.Decimal {
	if line.UnitPrice != nil {
		return *line.UnitPrice
	}
	if stockItem.SellingPrice != nil {
		return *stockItem.SellingPrice
	}
	return product.SellingPrice
}

// resolveUnitCost reads the branch cost, falling back to catalog cost for
// items that never recorded an inbound cost.
func resolveUnitCost(stockItem *models.StockItem, product *models.Product) decimal.Decimal {
	if !stockItem.CostPrice.IsZero() {
		return stockItem.CostPrice
	}
	return product.CostPrice
}

func annotate(sale *models.Sale) *SaleWithRefund {
	return &SaleWithRefund{Sale: *sale, RefundStatus: refundStatusOf(sale.Items)}
}

func refundStatusOf(items []models.SaleItem) enums.RefundStatus {
	if len(items) == 0 {
		return enums.RefundStatusNone
	}
	refunded := 0
	sold := 0
	for _, item := range items {
		refunded += item.RefundedQuantity
		sold += item.Quantity
	}
	switch {
	case refunded == 0:
		return enums.RefundStatusNone
	case refunded >= sold:
		return enums.RefundStatusFull
	default:
		return enums.RefundStatusPartial
	}
}
