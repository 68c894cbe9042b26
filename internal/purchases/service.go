package purchases

import (
	"context"
	"fmt"
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
	"github.com/CarlusInnocent/HotPOS/pkg/outbox"
	"github.com/CarlusInnocent/HotPOS/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// LineInput is one ordered product line.
type LineInput struct {
	ProductID uint
	Quantity  int
	UnitCost  decimal.Decimal
}

// CreateInput opens a purchase order in PENDING state.
type CreateInput struct {
	BranchID   uint
	SupplierID uint
	CreatedBy  uint
	Notes      *string
	Lines      []LineInput
}

// ReceiveInput lands a pending order in branch stock. SerialCodes maps
// product id to the scanned codes for serial-tracked lines.
type ReceiveInput struct {
	PurchaseID  uint
	ReceivedBy  uint
	SerialCodes map[uint][]string
}

// Service manages the purchase order lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Purchase, error)
	Receive(ctx context.Context, input ReceiveInput) (*models.Purchase, error)
	Get(ctx context.Context, id uint) (*models.Purchase, error)
	ListByBranch(ctx context.Context, branchID uint, status *enums.PurchaseStatus) ([]models.Purchase, error)
}

type service struct {
	repo    Repository
	runner  txRunner
	ledger  stock.Ledger
	serials serials.Service
	events  *outbox.Service
	logg    *logger.Logger
}

// NewService wires the purchases service.
func NewService(repo Repository, runner txRunner, ledger stock.Ledger, serialSvc serials.Service, events *outbox.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchases repository required")
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
	return &service{repo: repo, runner: runner, ledger: ledger, serials: serialSvc, events: events, logg: logg}, nil
}

// Create opens the order without touching stock. Quantities land in the
// ledger only when the order is received.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Purchase, error) {
	if len(input.Lines) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "a purchase order needs at least one line")
	}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, apperrors.New(apperrors.CodeValidation, "line quantity must be positive")
		}
		if line.UnitCost.IsNegative() {
			return nil, apperrors.New(apperrors.CodeValidation, "unit cost cannot be negative")
		}
	}

	branch, err := s.repo.GetBranch(ctx, input.BranchID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "branch not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading branch")
	}
	if _, err := s.repo.GetSupplier(ctx, input.SupplierID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "supplier not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading supplier")
	}

	now := time.Now()
	totalCost := decimal.Zero
	items := make([]models.PurchaseItem, 0, len(input.Lines))
	for _, line := range input.Lines {
		totalCost = totalCost.Add(line.UnitCost.Mul(decimal.NewFromInt(int64(line.Quantity))))
		items = append(items, models.PurchaseItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitCost:  line.UnitCost,
		})
	}

	purchase := &models.Purchase{
		PurchaseNumber: numbering.PurchaseOrder(branch.Code, now),
		BranchID:       input.BranchID,
		SupplierID:     input.SupplierID,
		Status:         enums.PurchaseStatusPending,
		OrderDate:      now,
		TotalCost:      totalCost,
		Notes:          input.Notes,
		CreatedByID:    input.CreatedBy,
		Items:          items,
	}
	if err := s.repo.Create(ctx, purchase); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "creating purchase order")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"purchase_number": purchase.PurchaseNumber,
			"branch_id":       purchase.BranchID,
		})
		s.logg.Info(logCtx, "purchase order created")
	}
	return purchase, nil
}

// Receive moves every ordered line into branch stock in one transaction.
// Serial-tracked lines must come with exactly one code per unit.
func (s *service) Receive(ctx context.Context, input ReceiveInput) (*models.Purchase, error) {
	var received *models.Purchase
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		purchase, err := repo.GetForUpdate(ctx, input.PurchaseID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.New(apperrors.CodeNotFound, "purchase order not found")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "loading purchase order")
		}
		if purchase.Status != enums.PurchaseStatusPending {
			return apperrors.New(apperrors.CodeStateConflict,
				fmt.Sprintf("purchase %s is already %s", purchase.PurchaseNumber, purchase.Status)).
				WithDetails(map[string]any{"status": purchase.Status.String()})
		}

		productIDs := make([]uint, 0, len(purchase.Items))
		for _, item := range purchase.Items {
			productIDs = append(productIDs, item.ProductID)
		}
		products, err := repo.GetProducts(ctx, productIDs)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "loading products")
		}

		receivedBy := input.ReceivedBy
		purchaseID := purchase.ID
		for _, item := range purchase.Items {
			product, ok := products[item.ProductID]
			if !ok {
				return apperrors.New(apperrors.CodeNotFound,
					fmt.Sprintf("product %d not found", item.ProductID))
			}

			codes := input.SerialCodes[item.ProductID]
			if product.SerialTracked {
				if len(codes) != item.Quantity {
					return apperrors.New(apperrors.CodeSerialCountMismatch,
						fmt.Sprintf("product %s needs %d serial code(s), got %d",
							product.SKU, item.Quantity, len(codes))).
						WithDetails(map[string]any{
							"product_id": item.ProductID,
							"expected":   item.Quantity,
							"provided":   len(codes),
						})
				}
			} else if len(codes) > 0 {
				return apperrors.New(apperrors.CodeValidation,
					fmt.Sprintf("product %s is not serial tracked", product.SKU))
			}

			unitCost := item.UnitCost
			stockItem, err := s.ledger.Apply(ctx, tx, stock.MovementInput{
				BranchID:      purchase.BranchID,
				ProductID:     item.ProductID,
				Delta:         item.Quantity,
				Type:          enums.MovementTypePurchaseReceived,
				ReferenceType: "purchase",
				ReferenceID:   purchase.ID,
				ActorID:       &receivedBy,
				UnitCost:      &unitCost,
			})
			if err != nil {
				return err
			}
			if product.SerialTracked {
				if _, err := s.serials.CreateBatch(ctx, tx, stockItem.ID, &purchaseID, codes); err != nil {
					return err
				}
			}
		}

		now := time.Now()
		if err := repo.MarkReceived(ctx, purchase.ID, input.ReceivedBy, now); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "marking purchase received")
		}
		purchase.Status = enums.PurchaseStatusReceived
		purchase.ReceivedByID = &receivedBy
		purchase.ReceivedDate = &now
		received = purchase

		if s.events != nil {
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPurchaseReceived,
				AggregateType: enums.AggregatePurchase,
				AggregateID:   purchase.ID,
				Actor:         &outbox.ActorRef{UserID: input.ReceivedBy},
				Data: payloads.PurchaseReceivedEvent{
					PurchaseID:     purchase.ID,
					PurchaseNumber: purchase.PurchaseNumber,
					BranchID:       purchase.BranchID,
					SupplierID:     purchase.SupplierID,
					ReceivedAt:     now,
					LineCount:      len(purchase.Items),
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
			"purchase_number": received.PurchaseNumber,
			"branch_id":       received.BranchID,
		})
		s.logg.Info(logCtx, "purchase order received")
	}
	return received, nil
}

func (s *service) Get(ctx context.Context, id uint) (*models.Purchase, error) {
	purchase, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "purchase order not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading purchase order")
	}
	return purchase, nil
}

func (s *service) ListByBranch(ctx context.Context, branchID uint, status *enums.PurchaseStatus) ([]models.Purchase, error) {
	list, err := s.repo.ListByBranch(ctx, branchID, status)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing purchase orders")
	}
	return list, nil
}
