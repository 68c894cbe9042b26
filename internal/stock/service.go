package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

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

// MovementInput describes one quantity change applied to the ledger.
type MovementInput struct {
	BranchID      uint
	ProductID     uint
	Delta         int
	Type          enums.MovementType
	ReferenceType string
	ReferenceID   uint
	ActorID       *uint
	Note          *string

	// UnitCost refreshes the branch cost price on inbound movements.
	UnitCost *decimal.Decimal
}

// CorrectInput overrides book quantity with a physical count.
type CorrectInput struct {
	BranchID   uint
	ProductID  uint
	CountedQty int
	ActorID    uint
	Note       *string
}

// Ledger is the single write path for branch stock quantities.
type Ledger interface {
	Apply(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.StockItem, error)
	Correct(ctx context.Context, input CorrectInput) (*models.StockItem, error)
	SetSellingPrice(ctx context.Context, branchID, productID uint, price *decimal.Decimal) error
	Get(ctx context.Context, branchID, productID uint) (*models.StockItem, error)
	AvailableQuantity(ctx context.Context, branchID, productID uint) (int, error)
	ListByBranch(ctx context.Context, branchID uint) ([]models.StockItem, error)
	ListMovements(ctx context.Context, branchID, productID uint, limit int) ([]models.StockMovement, error)
	LowStock(ctx context.Context, branchID uint) ([]models.StockItem, error)
}

type ledger struct {
	repo            Repository
	runner          txRunner
	events          *outbox.Service
	metrics         *metrics.LedgerMetrics
	logg            *logger.Logger
	defaultLowStock int
}

// NewLedger wires the stock ledger with its repository and transaction runner.
func NewLedger(repo Repository, runner txRunner, events *outbox.Service, ledgerMetrics *metrics.LedgerMetrics, logg *logger.Logger, defaultLowStock int) (Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if runner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &ledger{
		repo:            repo,
		runner:          runner,
		events:          events,
		metrics:         ledgerMetrics,
		logg:            logg,
		defaultLowStock: defaultLowStock,
	}, nil
}

// Apply must run inside the caller's transaction so the quantity change and
// the movement row commit together with the document that caused them.
func (l *ledger) Apply(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.StockItem, error) {
	if tx == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "stock apply requires a transaction")
	}
	if input.Delta == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "movement delta cannot be zero")
	}
	if !input.Type.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid movement type %q", input.Type))
	}

	repo := l.repo.WithTx(tx)

	item, err := repo.GetOrCreate(ctx, input.BranchID, input.ProductID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading stock item")
	}
	if _, err := repo.LockForUpdate(ctx, input.BranchID, input.ProductID); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "locking stock item")
	}

	newQty, err := repo.ApplyDelta(ctx, item.ID, input.Delta)
	if err != nil {
		if err == ErrInsufficientStock {
			l.metrics.ObserveInsufficientStock(string(input.Type))
			return nil, apperrors.New(apperrors.CodeInsufficientStock,
				fmt.Sprintf("product %d at branch %d has %d on hand, cannot apply %d",
					input.ProductID, input.BranchID, item.Quantity, input.Delta)).
				WithDetails(map[string]any{
					"branch_id":  input.BranchID,
					"product_id": input.ProductID,
					"on_hand":    item.Quantity,
					"requested":  input.Delta,
				})
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "applying stock delta")
	}

	if input.Delta > 0 && input.UnitCost != nil {
		now := time.Now()
		update := InboundCostUpdate{CostPrice: input.UnitCost, LastStockDate: &now}
		if err := repo.UpdateInboundCost(ctx, item.ID, update); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "updating stock cost")
		}
	}

	movement := &models.StockMovement{
		BranchID:      input.BranchID,
		ProductID:     input.ProductID,
		StockItemID:   item.ID,
		Type:          input.Type,
		Quantity:      input.Delta,
		QuantityAfter: newQty,
		ActorID:       input.ActorID,
		Note:          input.Note,
	}
	if input.ReferenceType != "" {
		refType := input.ReferenceType
		refID := input.ReferenceID
		movement.ReferenceType = &refType
		movement.ReferenceID = &refID
	}
	if err := repo.RecordMovement(ctx, movement); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "recording stock movement")
	}

	l.metrics.ObserveMovement(string(input.Type))

	item.Quantity = newQty
	return item, nil
}

func (l *ledger) Correct(ctx context.Context, input CorrectInput) (*models.StockItem, error) {
	if input.CountedQty < 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "counted quantity cannot be negative")
	}

	var corrected *models.StockItem
	err := l.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)
		item, err := repo.GetOrCreate(ctx, input.BranchID, input.ProductID)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "loading stock item")
		}
		locked, err := repo.LockForUpdate(ctx, input.BranchID, input.ProductID)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "locking stock item")
		}
		delta := input.CountedQty - locked.Quantity
		if delta == 0 {
			corrected = locked
			return nil
		}
		actorID := input.ActorID
		corrected, err = l.Apply(ctx, tx, MovementInput{
			BranchID:      input.BranchID,
			ProductID:     input.ProductID,
			Delta:         delta,
			Type:          enums.MovementTypeCountCorrection,
			ReferenceType: "stock_item",
			ReferenceID:   item.ID,
			ActorID:       &actorID,
			Note:          input.Note,
		})
		if err != nil {
			return err
		}
		if l.events != nil {
			return l.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventStockCorrected,
				AggregateType: enums.AggregateStockItem,
				AggregateID:   item.ID,
				Actor:         &outbox.ActorRef{UserID: input.ActorID},
				Data: payloads.StockCorrectedEvent{
					BranchID:    input.BranchID,
					ProductID:   input.ProductID,
					StockItemID: item.ID,
					Delta:       delta,
					CountedQty:  input.CountedQty,
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if l.logg != nil {
		logCtx := l.logg.WithFields(ctx, map[string]any{
			"branch_id":  input.BranchID,
			"product_id": input.ProductID,
			"counted":    input.CountedQty,
		})
		l.logg.Info(logCtx, "stock count correction applied")
	}
	return corrected, nil
}

func (l *ledger) SetSellingPrice(ctx context.Context, branchID, productID uint, price *decimal.Decimal) error {
	if price != nil && price.IsNegative() {
		return apperrors.New(apperrors.CodeValidation, "selling price cannot be negative")
	}
	item, err := l.repo.Get(ctx, branchID, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperrors.New(apperrors.CodeNotFound, "stock item not found")
		}
		return apperrors.Wrap(apperrors.CodeInternal, err, "loading stock item")
	}
	return l.repo.SetSellingPrice(ctx, item.ID, price)
}

func (l *ledger) Get(ctx context.Context, branchID, productID uint) (*models.StockItem, error) {
	item, err := l.repo.Get(ctx, branchID, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "stock item not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading stock item")
	}
	return item, nil
}

// AvailableQuantity reports zero for products that have never been stocked.
func (l *ledger) AvailableQuantity(ctx context.Context, branchID, productID uint) (int, error) {
	item, err := l.repo.Get(ctx, branchID, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, apperrors.Wrap(apperrors.CodeInternal, err, "loading stock item")
	}
	return item.Quantity, nil
}

func (l *ledger) ListByBranch(ctx context.Context, branchID uint) ([]models.StockItem, error) {
	return l.repo.ListByBranch(ctx, branchID)
}

func (l *ledger) ListMovements(ctx context.Context, branchID, productID uint, limit int) ([]models.StockMovement, error) {
	item, err := l.repo.Get(ctx, branchID, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "stock item not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading stock item")
	}
	return l.repo.ListMovements(ctx, item.ID, limit)
}

func (l *ledger) LowStock(ctx context.Context, branchID uint) ([]models.StockItem, error) {
	return l.repo.LowStock(ctx, branchID, l.defaultLowStock)
}
