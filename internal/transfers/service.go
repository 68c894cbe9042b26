package transfers

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

// LineInput is one product line on a transfer request.
type LineInput struct {
	ProductID   uint
	Quantity    int
	SerialCodes []string
}

// CreateInput opens a transfer request in PENDING state.
type CreateInput struct {
	SourceBranchID uint
	DestBranchID   uint
	RequestedBy    uint
	Notes          *string
	Lines          []LineInput
}

// Service drives the transfer lifecycle. Source stock leaves at send time,
// destination stock arrives at receive time, and a rejection after send
// restores the source.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Transfer, error)
	Send(ctx context.Context, transferID, sentBy uint, serialCodes map[uint][]string) (*models.Transfer, error)
	Receive(ctx context.Context, transferID, receivedBy uint) (*models.Transfer, error)
	Reject(ctx context.Context, transferID, rejectedBy uint, reason *string) (*models.Transfer, error)
	Get(ctx context.Context, id uint) (*models.Transfer, error)
	ListByBranch(ctx context.Context, branchID uint, status *enums.TransferStatus) ([]models.Transfer, error)
}

type service struct {
	repo    Repository
	runner  txRunner
	ledger  stock.Ledger
	serials serials.Service
	events  *outbox.Service
	logg    *logger.Logger
}

// NewService wires the transfers service.
func NewService(repo Repository, runner txRunner, ledger stock.Ledger, serialSvc serials.Service, events *outbox.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transfers repository required")
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

// Create validates the request without touching stock.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Transfer, error) {
	if input.SourceBranchID == input.DestBranchID {
		return nil, apperrors.New(apperrors.CodeValidation, "source and destination branch must differ")
	}
	if len(input.Lines) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "a transfer needs at least one line")
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

	source, err := s.repo.GetBranch(ctx, input.SourceBranchID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "source branch not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading source branch")
	}
	dest, err := s.repo.GetBranch(ctx, input.DestBranchID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "destination branch not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading destination branch")
	}

	items := make([]models.TransferItem, 0, len(input.Lines))
	for _, line := range input.Lines {
		items = append(items, models.TransferItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}
	if _, err := s.loadProducts(ctx, s.repo, items); err != nil {
		return nil, err
	}

	// Availability is checked up front so a request the source cannot fill
	// is rejected immediately. Stock itself only moves at send time.
	for _, line := range input.Lines {
		available, err := s.ledger.AvailableQuantity(ctx, input.SourceBranchID, line.ProductID)
		if err != nil {
			return nil, err
		}
		if available < line.Quantity {
			return nil, apperrors.New(apperrors.CodeInsufficientStock,
				fmt.Sprintf("product %d at branch %d has %d on hand, transfer needs %d",
					line.ProductID, input.SourceBranchID, available, line.Quantity)).
				WithDetails(map[string]any{
					"branch_id":  input.SourceBranchID,
					"product_id": line.ProductID,
					"on_hand":    available,
					"requested":  line.Quantity,
				})
		}
	}

	transfer := &models.Transfer{
		TransferNumber: numbering.Transfer(source.Code, dest.Code, time.Now()),
		SourceBranchID: input.SourceBranchID,
		DestBranchID:   input.DestBranchID,
		Status:         enums.TransferStatusPending,
		RequestedByID:  input.RequestedBy,
		Notes:          input.Notes,
		Items:          items,
	}
	if err := s.repo.Create(ctx, transfer); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "creating transfer")
	}
	return transfer, nil
}

// Send deducts source stock and flags serial units as in transit. Serial
// codes are supplied here, at the moment the goods physically leave.
func (s *service) Send(ctx context.Context, transferID, sentBy uint, serialCodes map[uint][]string) (*models.Transfer, error) {
	var sent *models.Transfer
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		transfer, err := repo.GetForUpdate(ctx, transferID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.New(apperrors.CodeNotFound, "transfer not found")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "loading transfer")
		}
		if transfer.Status != enums.TransferStatusPending {
			return stateConflict(transfer)
		}

		products, err := s.loadProducts(ctx, repo, transfer.Items)
		if err != nil {
			return err
		}

		actor := sentBy
		for _, item := range transfer.Items {
			product := products[item.ProductID]

			stockItem, err := s.ledger.Apply(ctx, tx, stock.MovementInput{
				BranchID:      transfer.SourceBranchID,
				ProductID:     item.ProductID,
				Delta:         -item.Quantity,
				Type:          enums.MovementTypeTransferOut,
				ReferenceType: "transfer",
				ReferenceID:   transfer.ID,
				ActorID:       &actor,
			})
			if err != nil {
				return err
			}

			// Cost is captured from the source branch so the destination
			// books the goods at what they actually cost.
			if err := repo.UpdateItemCost(ctx, item.ID, stockItem.CostPrice); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "capturing transfer cost")
			}

			if product.SerialTracked {
				codes := serialCodes[item.ProductID]
				if len(codes) != item.Quantity {
					return apperrors.New(apperrors.CodeSerialCountMismatch,
						fmt.Sprintf("product %s needs %d serial code(s), got %d",
							product.SKU, item.Quantity, len(codes))).
						WithDetails(map[string]any{"product_id": item.ProductID})
				}
				if err := s.serials.MarkTransferred(ctx, tx, stockItem.ID, codes); err != nil {
					return err
				}
			}
		}

		now := time.Now()
		if err := repo.Update(ctx, transfer.ID, map[string]any{
			"status":     enums.TransferStatusInTransit,
			"sent_by_id": sentBy,
			"sent_at":    now,
		}); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "marking transfer sent")
		}
		transfer.Status = enums.TransferStatusInTransit
		transfer.SentByID = &actor
		transfer.SentAt = &now
		sent = transfer

		return s.emitState(ctx, tx, transfer, enums.EventTransferSent, sentBy)
	})
	if err != nil {
		return nil, err
	}
	return sent, nil
}

// Receive credits the destination at the cost captured on send.
func (s *service) Receive(ctx context.Context, transferID, receivedBy uint) (*models.Transfer, error) {
	var received *models.Transfer
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		transfer, err := repo.GetForUpdate(ctx, transferID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.New(apperrors.CodeNotFound, "transfer not found")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "loading transfer")
		}
		if transfer.Status != enums.TransferStatusInTransit {
			return stateConflict(transfer)
		}

		products, err := s.loadProducts(ctx, repo, transfer.Items)
		if err != nil {
			return err
		}

		actor := receivedBy
		for _, item := range transfer.Items {
			product := products[item.ProductID]
			unitCost := item.UnitCost
			stockItem, err := s.ledger.Apply(ctx, tx, stock.MovementInput{
				BranchID:      transfer.DestBranchID,
				ProductID:     item.ProductID,
				Delta:         item.Quantity,
				Type:          enums.MovementTypeTransferIn,
				ReferenceType: "transfer",
				ReferenceID:   transfer.ID,
				ActorID:       &actor,
				UnitCost:      &unitCost,
			})
			if err != nil {
				return err
			}
			if product.SerialTracked {
				codes, err := s.inTransitCodes(ctx, repo, transfer, item)
				if err != nil {
					return err
				}
				if err := s.serials.ReceiveTransferred(ctx, tx, stockItem.ID, codes); err != nil {
					return err
				}
			}
		}

		now := time.Now()
		if err := repo.Update(ctx, transfer.ID, map[string]any{
			"status":         enums.TransferStatusReceived,
			"received_by_id": receivedBy,
			"received_at":    now,
		}); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "marking transfer received")
		}
		transfer.Status = enums.TransferStatusReceived
		transfer.ReceivedByID = &actor
		transfer.ReceivedAt = &now
		received = transfer

		return s.emitState(ctx, tx, transfer, enums.EventTransferReceived, receivedBy)
	})
	if err != nil {
		return nil, err
	}
	return received, nil
}

// Reject closes the transfer. A rejection after send restores the source
// branch with a reversal movement; before send it is a pure status change.
func (s *service) Reject(ctx context.Context, transferID, rejectedBy uint, reason *string) (*models.Transfer, error) {
	var rejected *models.Transfer
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		transfer, err := repo.GetForUpdate(ctx, transferID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.New(apperrors.CodeNotFound, "transfer not found")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "loading transfer")
		}
		if transfer.Status.IsTerminal() {
			return stateConflict(transfer)
		}

		if transfer.Status == enums.TransferStatusInTransit {
			products, err := s.loadProducts(ctx, repo, transfer.Items)
			if err != nil {
				return err
			}
			actor := rejectedBy
			for _, item := range transfer.Items {
				product := products[item.ProductID]
				stockItem, err := s.ledger.Apply(ctx, tx, stock.MovementInput{
					BranchID:      transfer.SourceBranchID,
					ProductID:     item.ProductID,
					Delta:         item.Quantity,
					Type:          enums.MovementTypeTransferReversal,
					ReferenceType: "transfer",
					ReferenceID:   transfer.ID,
					ActorID:       &actor,
				})
				if err != nil {
					return err
				}
				if product.SerialTracked {
					codes, err := s.inTransitCodes(ctx, repo, transfer, item)
					if err != nil {
						return err
					}
					if err := s.serials.RestoreTransferred(ctx, tx, stockItem.ID, codes); err != nil {
						return err
					}
				}
			}
		}

		now := time.Now()
		if err := repo.Update(ctx, transfer.ID, map[string]any{
			"status":        enums.TransferStatusRejected,
			"rejected_at":   now,
			"reject_reason": reason,
		}); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "marking transfer rejected")
		}
		transfer.Status = enums.TransferStatusRejected
		transfer.RejectedAt = &now
		transfer.RejectReason = reason
		rejected = transfer

		return s.emitState(ctx, tx, transfer, enums.EventTransferRejected, rejectedBy)
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

func (s *service) Get(ctx context.Context, id uint) (*models.Transfer, error) {
	transfer, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "transfer not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading transfer")
	}
	return transfer, nil
}

func (s *service) ListByBranch(ctx context.Context, branchID uint, status *enums.TransferStatus) ([]models.Transfer, error) {
	list, err := s.repo.ListByBranch(ctx, branchID, status)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing transfers")
	}
	return list, nil
}

func (s *service) loadProducts(ctx context.Context, repo Repository, items []models.TransferItem) (map[uint]models.Product, error) {
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := repo.GetProducts(ctx, ids)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading products")
	}
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("product %d not found", id))
		}
	}
	return products, nil
}

// inTransitCodes finds which of this item's units are currently TRANSFERRED.
// They still sit on the source stock item, flagged in transit at send time.
func (s *service) inTransitCodes(ctx context.Context, repo Repository, transfer *models.Transfer, item models.TransferItem) ([]string, error) {
	sourceItem, err := repo.GetStockItem(ctx, transfer.SourceBranchID, item.ProductID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading source stock item")
	}
	codes, err := repo.InTransitSerialCodes(ctx, sourceItem.ID, item.Quantity)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing in-transit serials")
	}
	if len(codes) < item.Quantity {
		return nil, apperrors.New(apperrors.CodeSerialCountMismatch,
			fmt.Sprintf("expected %d in-transit unit(s) for product %d, found %d",
				item.Quantity, item.ProductID, len(codes)))
	}
	return codes, nil
}

func (s *service) emitState(ctx context.Context, tx *gorm.DB, transfer *models.Transfer, event enums.OutboxEventType, actor uint) error {
	if s.events == nil {
		return nil
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     event,
		AggregateType: enums.AggregateTransfer,
		AggregateID:   transfer.ID,
		Actor:         &outbox.ActorRef{UserID: actor},
		Data: payloads.TransferStateEvent{
			TransferID:     transfer.ID,
			TransferNumber: transfer.TransferNumber,
			SourceBranchID: transfer.SourceBranchID,
			DestBranchID:   transfer.DestBranchID,
			Status:         transfer.Status,
		},
	})
}

func stateConflict(transfer *models.Transfer) error {
	return apperrors.New(apperrors.CodeStateConflict,
		fmt.Sprintf("transfer %s is %s", transfer.TransferNumber, transfer.Status)).
		WithDetails(map[string]any{"status": transfer.Status.String()})
}
