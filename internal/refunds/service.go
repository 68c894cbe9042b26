package refunds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/CarlusInnocent/HotPOS/internal/numbering"
	"github.com/CarlusInnocent/HotPOS/internal/sales"
	"github.com/CarlusInnocent/HotPOS/internal/serials"
	"github.com/CarlusInnocent/HotPOS/internal/stock"
	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
	"github.com/CarlusInnocent/HotPOS/pkg/enums"
	apperrors "github.com/CarlusInnocent/HotPOS/pkg/errors"
	"github.com/CarlusInnocent/HotPOS/pkg/logger"
	"github.com/CarlusInnocent/HotPOS/pkg/outbox"
	"github.com/CarlusInnocent/HotPOS/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// LineInput is one product line on a refund request. SerialCodes optionally
// name the exact units coming back.
type LineInput struct {
	ProductID   uint
	Quantity    int
	SerialCodes []string
}

// CreateInput opens a refund request against a sale.
type CreateInput struct {
	SaleID      uint
	RequestedBy uint
	Reason      *string
	Lines       []LineInput
}

// Service manages the customer refund approval flow. Approval restocks the
// branch and releases the matching serial units.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Refund, error)
	Approve(ctx context.Context, refundID, approvedBy uint, serialCodes map[uint][]string) (*models.Refund, error)
	Reject(ctx context.Context, refundID, rejectedBy uint) (*models.Refund, error)
	Get(ctx context.Context, id uint) (*models.Refund, error)
	ListByBranch(ctx context.Context, branchID uint, status *enums.ApprovalStatus) ([]models.Refund, error)
}

type service struct {
	repo      Repository
	salesRepo sales.Repository
	runner    txRunner
	ledger    stock.Ledger
	serials   serials.Service
	events    *outbox.Service
	logg      *logger.Logger
}

// NewService wires the refunds service against the sales records it draws on.
func NewService(repo Repository, salesRepo sales.Repository, runner txRunner, ledger stock.Ledger, serialSvc serials.Service, events *outbox.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("refunds repository required")
	}
	if salesRepo == nil {
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
	return &service{
		repo:      repo,
		salesRepo: salesRepo,
		runner:    runner,
		ledger:    ledger,
		serials:   serialSvc,
		events:    events,
		logg:      logg,
	}, nil
}

// Create validates every line against the sale and what is still refundable
// on it. Stock moves only on approval.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Refund, error) {
	if len(input.Lines) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "a refund needs at least one line")
	}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, apperrors.New(apperrors.CodeValidation, "line quantity must be positive")
		}
		if len(line.SerialCodes) > 0 && len(line.SerialCodes) != line.Quantity {
			return nil, apperrors.New(apperrors.CodeSerialCountMismatch,
				fmt.Sprintf("line quantity is %d but %d serial code(s) were provided",
					line.Quantity, len(line.SerialCodes)))
		}
	}

	sale, err := s.salesRepo.GetByID(ctx, input.SaleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "sale not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading sale")
	}

	saleLines := make(map[uint]models.SaleItem, len(sale.Items))
	for _, item := range sale.Items {
		saleLines[item.ProductID] = item
	}

	total := decimal.Zero
	items := make([]models.RefundItem, 0, len(input.Lines))
	for _, line := range input.Lines {
		saleLine, ok := saleLines[line.ProductID]
		if !ok {
			return nil, apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("product %d is not on sale %s", line.ProductID, sale.SaleNumber))
		}
		refundable := saleLine.Quantity - saleLine.RefundedQuantity
		if line.Quantity > refundable {
			return nil, apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("product %d has %d refundable unit(s), refund asks for %d",
					line.ProductID, refundable, line.Quantity)).
				WithDetails(map[string]any{
					"product_id": line.ProductID,
					"refundable": refundable,
					"requested":  line.Quantity,
				})
		}
		total = total.Add(saleLine.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		items = append(items, models.RefundItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: saleLine.UnitPrice,
		})
	}

	branch, err := s.repo.GetBranch(ctx, sale.BranchID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading branch")
	}

	refund := &models.Refund{
		RefundNumber:  numbering.Refund(branch.Code, time.Now()),
		SaleID:        sale.ID,
		BranchID:      sale.BranchID,
		Status:        enums.ApprovalStatusPending,
		Reason:        input.Reason,
		RequestedByID: input.RequestedBy,
		TotalAmount:   total,
		Items:         items,
	}
	if err := s.repo.Create(ctx, refund); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "creating refund")
	}
	return refund, nil
}

// Approve restocks each line, bumps the sale's refunded quantities behind
// their guard, and releases the returned serial units, all in one
// transaction.
func (s *service) Approve(ctx context.Context, refundID, approvedBy uint, serialCodes map[uint][]string) (*models.Refund, error) {
	var approved *models.Refund
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		salesRepo := s.salesRepo.WithTx(tx)

		refund, err := repo.GetForUpdate(ctx, refundID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "refund not found")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "loading refund")
		}
		if refund.Status != enums.ApprovalStatusPending {
			return apperrors.New(apperrors.CodeStateConflict,
				fmt.Sprintf("refund %s is %s", refund.RefundNumber, refund.Status)).
				WithDetails(map[string]any{"status": refund.Status.String()})
		}

		sale, err := salesRepo.GetByID(ctx, refund.SaleID)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "loading sale")
		}
		saleLines := make(map[uint]models.SaleItem, len(sale.Items))
		for _, item := range sale.Items {
			saleLines[item.ProductID] = item
		}

		actor := approvedBy
		unitsRestored := 0
		for _, item := range refund.Items {
			saleLine, ok := saleLines[item.ProductID]
			if !ok {
				return apperrors.New(apperrors.CodeInternal,
					fmt.Sprintf("refund line references product %d missing from sale", item.ProductID))
			}

			if err := salesRepo.IncrementRefunded(ctx, saleLine.ID, item.Quantity); err != nil {
				if errors.Is(err, sales.ErrRefundExceedsSold) {
					return apperrors.New(apperrors.CodeConflict,
						fmt.Sprintf("product %d was already refunded past this request", item.ProductID)).
						WithDetails(map[string]any{"product_id": item.ProductID})
				}
				return apperrors.Wrap(apperrors.CodeInternal, err, "updating refunded quantity")
			}

			stockItem, err := s.ledger.Apply(ctx, tx, stock.MovementInput{
				BranchID:      refund.BranchID,
				ProductID:     item.ProductID,
				Delta:         item.Quantity,
				Type:          enums.MovementTypeCustomerRefund,
				ReferenceType: "refund",
				ReferenceID:   refund.ID,
				ActorID:       &actor,
				Note:          refund.Reason,
			})
			if err != nil {
				return err
			}
			unitsRestored += item.Quantity

			if item.Product != nil && item.Product.SerialTracked {
				if _, err := s.serials.ReleaseForRefund(ctx, tx, refund.SaleID, stockItem.ID, item.Quantity, serialCodes[item.ProductID]); err != nil {
					return err
				}
			}
		}

		now := time.Now()
		if err := repo.Decide(ctx, refund.ID, enums.ApprovalStatusApproved, approvedBy, now); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "approving refund")
		}
		refund.Status = enums.ApprovalStatusApproved
		refund.DecidedByID = &actor
		refund.DecidedAt = &now
		approved = refund

		if s.events != nil {
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventRefundApproved,
				AggregateType: enums.AggregateRefund,
				AggregateID:   refund.ID,
				Actor:         &outbox.ActorRef{UserID: approvedBy},
				Data: payloads.RefundApprovedEvent{
					RefundID:      refund.ID,
					SaleID:        refund.SaleID,
					BranchID:      refund.BranchID,
					UnitsRestored: unitsRestored,
					TotalAmount:   refund.TotalAmount,
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"refund_number": approved.RefundNumber,
			"sale_id":       approved.SaleID,
		})
		s.logg.Info(logCtx, "refund approved")
	}
	return approved, nil
}

// Reject closes the request without touching stock or the sale.
func (s *service) Reject(ctx context.Context, refundID, rejectedBy uint) (*models.Refund, error) {
	var rejected *models.Refund
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		refund, err := repo.GetForUpdate(ctx, refundID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "refund not found")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "loading refund")
		}
		if refund.Status != enums.ApprovalStatusPending {
			return apperrors.New(apperrors.CodeStateConflict,
				fmt.Sprintf("refund %s is %s", refund.RefundNumber, refund.Status)).
				WithDetails(map[string]any{"status": refund.Status.String()})
		}

		now := time.Now()
		if err := repo.Decide(ctx, refund.ID, enums.ApprovalStatusRejected, rejectedBy, now); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "rejecting refund")
		}
		actor := rejectedBy
		refund.Status = enums.ApprovalStatusRejected
		refund.DecidedByID = &actor
		refund.DecidedAt = &now
		rejected = refund
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

func (s *service) Get(ctx context.Context, id uint) (*models.Refund, error) {
	refund, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "refund not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading refund")
	}
	return refund, nil
}

func (s *service) ListByBranch(ctx context.Context, branchID uint, status *enums.ApprovalStatus) ([]models.Refund, error) {
	list, err := s.repo.ListByBranch(ctx, branchID, status)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing refunds")
	}
	return list, nil
}
