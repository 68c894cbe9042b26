package returns

import (
	"context"
	"fmt"
	"time"

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

// LineInput is one product line going back to the supplier.
type LineInput struct {
	ProductID   uint
	Quantity    int
	SerialCodes []string
}

// CreateInput opens a supplier return request in PENDING state.
type CreateInput struct {
	BranchID    uint
	SupplierID  uint
	RequestedBy uint
	Reason      *string
	Lines       []LineInput
}

// Service manages the supplier return approval flow. Stock only leaves the
// branch on approval.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.SupplierReturn, error)
	Approve(ctx context.Context, returnID, approvedBy uint, serialCodes map[uint][]string) (*models.SupplierReturn, error)
	Reject(ctx context.Context, returnID, rejectedBy uint) (*models.SupplierReturn, error)
	Get(ctx context.Context, id uint) (*models.SupplierReturn, error)
	ListByBranch(ctx context.Context, branchID uint, status *enums.ApprovalStatus) ([]models.SupplierReturn, error)
}

type service struct {
	repo    Repository
	runner  txRunner
	ledger  stock.Ledger
	serials serials.Service
	events  *outbox.Service
	logg    *logger.Logger
}

// NewService wires the supplier returns service.
func NewService(repo Repository, runner txRunner, ledger stock.Ledger, serialSvc serials.Service, events *outbox.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("returns repository required")
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

// Create records the request and captures the current branch cost per line,
// without touching stock.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.SupplierReturn, error) {
	if len(input.Lines) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "a supplier return needs at least one line")
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

	items := make([]models.SupplierReturnItem, 0, len(input.Lines))
	for _, line := range input.Lines {
		item := models.SupplierReturnItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		}
		if stockItem, err := s.ledger.Get(ctx, input.BranchID, line.ProductID); err == nil {
			item.UnitCost = stockItem.CostPrice
		}
		items = append(items, item)
	}

	ret := &models.SupplierReturn{
		ReturnNumber:  numbering.SupplierReturn(branch.Code, time.Now()),
		BranchID:      input.BranchID,
		SupplierID:    input.SupplierID,
		Status:        enums.ApprovalStatusPending,
		Reason:        input.Reason,
		RequestedByID: input.RequestedBy,
		Items:         items,
	}
	if err := s.repo.Create(ctx, ret); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "creating supplier return")
	}
	return ret, nil
}

// Approve deducts the returned quantities and retires the named serial units
// in one transaction.
func (s *service) Approve(ctx context.Context, returnID, approvedBy uint, serialCodes map[uint][]string) (*models.SupplierReturn, error) {
	var approved *models.SupplierReturn
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ret, err := repo.GetForUpdate(ctx, returnID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.New(apperrors.CodeNotFound, "supplier return not found")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "loading supplier return")
		}
		if ret.Status != enums.ApprovalStatusPending {
			return stateConflict(ret)
		}

		productIDs := make([]uint, 0, len(ret.Items))
		for _, item := range ret.Items {
			productIDs = append(productIDs, item.ProductID)
		}
		products, err := repo.GetProducts(ctx, productIDs)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "loading products")
		}

		actor := approvedBy
		unitsRemoved := 0
		for _, item := range ret.Items {
			product, ok := products[item.ProductID]
			if !ok {
				return apperrors.New(apperrors.CodeNotFound,
					fmt.Sprintf("product %d not found", item.ProductID))
			}

			stockItem, err := s.ledger.Apply(ctx, tx, stock.MovementInput{
				BranchID:      ret.BranchID,
				ProductID:     item.ProductID,
				Delta:         -item.Quantity,
				Type:          enums.MovementTypeSupplierReturn,
				ReferenceType: "supplier_return",
				ReferenceID:   ret.ID,
				ActorID:       &actor,
				Note:          ret.Reason,
			})
			if err != nil {
				return err
			}
			unitsRemoved += item.Quantity

			if product.SerialTracked {
				codes := serialCodes[item.ProductID]
				if len(codes) != item.Quantity {
					return apperrors.New(apperrors.CodeSerialCountMismatch,
						fmt.Sprintf("product %s needs %d serial code(s), got %d",
							product.SKU, item.Quantity, len(codes))).
						WithDetails(map[string]any{"product_id": item.ProductID})
				}
				if err := s.serials.MarkReturnedToSupplier(ctx, tx, stockItem.ID, codes); err != nil {
					return err
				}
			}
		}

		now := time.Now()
		if err := repo.Decide(ctx, ret.ID, enums.ApprovalStatusApproved, approvedBy, now); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "approving supplier return")
		}
		ret.Status = enums.ApprovalStatusApproved
		ret.DecidedByID = &actor
		ret.DecidedAt = &now
		approved = ret

		if s.events != nil {
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventReturnApproved,
				AggregateType: enums.AggregateSupplierReturn,
				AggregateID:   ret.ID,
				Actor:         &outbox.ActorRef{UserID: approvedBy},
				Data: payloads.ReturnApprovedEvent{
					ReturnID:     ret.ID,
					BranchID:     ret.BranchID,
					SupplierID:   ret.SupplierID,
					UnitsRemoved: unitsRemoved,
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
			"return_number": approved.ReturnNumber,
			"branch_id":     approved.BranchID,
		})
		s.logg.Info(logCtx, "supplier return approved")
	}
	return approved, nil
}

// Reject closes the request without touching stock.
func (s *service) Reject(ctx context.Context, returnID, rejectedBy uint) (*models.SupplierReturn, error) {
	var rejected *models.SupplierReturn
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ret, err := repo.GetForUpdate(ctx, returnID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.New(apperrors.CodeNotFound, "supplier return not found")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "loading supplier return")
		}
		if ret.Status != enums.ApprovalStatusPending {
			return stateConflict(ret)
		}

		now := time.Now()
		if err := repo.Decide(ctx, ret.ID, enums.ApprovalStatusRejected, rejectedBy, now); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "rejecting supplier return")
		}
		actor := rejectedBy
		ret.Status = enums.ApprovalStatusRejected
		ret.DecidedByID = &actor
		ret.DecidedAt = &now
		rejected = ret
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

func (s *service) Get(ctx context.Context, id uint) (*models.SupplierReturn, error) {
	ret, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "supplier return not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading supplier return")
	}
	return ret, nil
}

func (s *service) ListByBranch(ctx context.Context, branchID uint, status *enums.ApprovalStatus) ([]models.SupplierReturn, error) {
	list, err := s.repo.ListByBranch(ctx, branchID, status)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing supplier returns")
	}
	return list, nil
}

func stateConflict(ret *models.SupplierReturn) error {
	return apperrors.New(apperrors.CodeStateConflict,
		fmt.Sprintf("supplier return %s is %s", ret.ReturnNumber, ret.Status)).
		WithDetails(map[string]any{"status": ret.Status.String()})
}
