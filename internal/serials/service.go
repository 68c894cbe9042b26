package serials

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/CarlusInnocent/HotPOS/pkg/db"
	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
	"github.com/CarlusInnocent/HotPOS/pkg/enums"
	apperrors "github.com/CarlusInnocent/HotPOS/pkg/errors"
	"github.com/CarlusInnocent/HotPOS/pkg/logger"
	"github.com/CarlusInnocent/HotPOS/pkg/metrics"
)

// allowedTransitions is the full status lifecycle. RETURNED and DEFECTIVE
// are terminal. A SOLD unit can only come back through a refund; defects
// discovered after sale go through the refund flow first.
var allowedTransitions = map[enums.SerialStatus][]enums.SerialStatus{
	enums.SerialStatusInStock:     {enums.SerialStatusSold, enums.SerialStatusTransferred, enums.SerialStatusReturned, enums.SerialStatusDefective},
	enums.SerialStatusSold:        {enums.SerialStatusReturned},
	enums.SerialStatusTransferred: {enums.SerialStatusInStock},
}

func transitionAllowed(from, to enums.SerialStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Service manages the serialized unit registry. All mutating calls that take
// a *gorm.DB run inside the caller's transaction so serial state commits
// together with the stock movement that caused it.
type Service interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, stockItemID uint, purchaseID *uint, codes []string) ([]models.SerialUnit, error)
	MarkSold(ctx context.Context, tx *gorm.DB, stockItemID, saleID uint, quantity int, codes []string) ([]models.SerialUnit, error)
	MarkTransferred(ctx context.Context, tx *gorm.DB, stockItemID uint, codes []string) error
	ReceiveTransferred(ctx context.Context, tx *gorm.DB, destStockItemID uint, codes []string) error
	RestoreTransferred(ctx context.Context, tx *gorm.DB, sourceStockItemID uint, codes []string) error
	MarkReturnedToSupplier(ctx context.Context, tx *gorm.DB, stockItemID uint, codes []string) error
	ReleaseForRefund(ctx context.Context, tx *gorm.DB, saleID, stockItemID uint, quantity int, codes []string) ([]models.SerialUnit, error)
	MarkDefective(ctx context.Context, code string, note *string) (*models.SerialUnit, error)
	Lookup(ctx context.Context, code string) (*models.SerialUnit, error)
	ListByStockItem(ctx context.Context, stockItemID uint, status *enums.SerialStatus) ([]models.SerialUnit, error)
	Stats(ctx context.Context, branchID uint) (map[enums.SerialStatus]int64, error)
}

type service struct {
	repo    Repository
	metrics *metrics.LedgerMetrics
	logg    *logger.Logger
}

// NewService wires the serial registry service.
func NewService(repo Repository, ledgerMetrics *metrics.LedgerMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("serials repository required")
	}
	return &service{repo: repo, metrics: ledgerMetrics, logg: logg}, nil
}

// CreateBatch registers new units as IN_STOCK. Codes must be unique across
// the whole chain, and within the batch itself.
func (s *service) CreateBatch(ctx context.Context, tx *gorm.DB, stockItemID uint, purchaseID *uint, codes []string) ([]models.SerialUnit, error) {
	if tx == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "serial batch creation requires a transaction")
	}
	if len(codes) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "at least one serial code is required")
	}
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if code == "" {
			return nil, apperrors.New(apperrors.CodeValidation, "serial codes cannot be empty")
		}
		if _, dup := seen[code]; dup {
			return nil, apperrors.New(apperrors.CodeDuplicateSerial,
				fmt.Sprintf("serial code %q appears more than once in the batch", code)).
				WithDetails(map[string]any{"serial_code": code})
		}
		seen[code] = struct{}{}
	}

	repo := s.repo.WithTx(tx)
	units := make([]models.SerialUnit, 0, len(codes))
	for _, code := range codes {
		units = append(units, models.SerialUnit{
			SerialCode:  code,
			StockItemID: stockItemID,
			Status:      enums.SerialStatusInStock,
			PurchaseID:  purchaseID,
		})
	}
	if err := repo.CreateBatch(ctx, units); err != nil {
		if db.IsUniqueViolation(err) {
			existing, lookupErr := repo.FindExistingCodes(ctx, codes)
			if lookupErr != nil || len(existing) == 0 {
				return nil, apperrors.Wrap(apperrors.CodeDuplicateSerial, err, "serial codes already registered")
			}
			sort.Strings(existing)
			return nil, apperrors.New(apperrors.CodeDuplicateSerial,
				fmt.Sprintf("%d serial code(s) already registered", len(existing))).
				WithDetails(map[string]any{"serial_codes": existing})
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "creating serial units")
	}

	s.metrics.ObserveSerialTransition(string(enums.SerialStatusInStock))
	return units, nil
}

// MarkSold attaches exactly quantity IN_STOCK units of the stock item to a
// sale. The code count must match the line quantity.
func (s *service) MarkSold(ctx context.Context, tx *gorm.DB, stockItemID, saleID uint, quantity int, codes []string) ([]models.SerialUnit, error) {
	if tx == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "marking serials sold requires a transaction")
	}
	if len(codes) != quantity {
		return nil, apperrors.New(apperrors.CodeSerialCountMismatch,
			fmt.Sprintf("line quantity is %d but %d serial code(s) were provided", quantity, len(codes))).
			WithDetails(map[string]any{"expected": quantity, "provided": len(codes)})
	}

	units, err := s.transition(ctx, tx, codes, stockItemID, enums.SerialStatusInStock, enums.SerialStatusSold)
	if err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	for i := range units {
		units[i].SaleID = &saleID
		if err := repo.Save(ctx, &units[i]); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "attaching serial to sale")
		}
	}
	return units, nil
}

func (s *service) MarkTransferred(ctx context.Context, tx *gorm.DB, stockItemID uint, codes []string) error {
	_, err := s.transition(ctx, tx, codes, stockItemID, enums.SerialStatusInStock, enums.SerialStatusTransferred)
	return err
}

// ReceiveTransferred reassigns in-flight units to the destination stock item
// and puts them back in stock.
func (s *service) ReceiveTransferred(ctx context.Context, tx *gorm.DB, destStockItemID uint, codes []string) error {
	if tx == nil {
		return apperrors.New(apperrors.CodeInternal, "receiving serials requires a transaction")
	}
	units, err := s.loadForTransition(ctx, tx, codes, enums.SerialStatusTransferred, enums.SerialStatusInStock)
	if err != nil {
		return err
	}
	repo := s.repo.WithTx(tx)
	for i := range units {
		units[i].Status = enums.SerialStatusInStock
		units[i].StockItemID = destStockItemID
		if err := repo.Save(ctx, &units[i]); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "receiving serial unit")
		}
	}
	s.metrics.ObserveSerialTransition(string(enums.SerialStatusInStock))
	return nil
}

// RestoreTransferred puts rejected in-flight units back on the source stock item.
func (s *service) RestoreTransferred(ctx context.Context, tx *gorm.DB, sourceStockItemID uint, codes []string) error {
	return s.ReceiveTransferred(ctx, tx, sourceStockItemID, codes)
}

func (s *service) MarkReturnedToSupplier(ctx context.Context, tx *gorm.DB, stockItemID uint, codes []string) error {
	_, err := s.transition(ctx, tx, codes, stockItemID, enums.SerialStatusInStock, enums.SerialStatusReturned)
	return err
}

// ReleaseForRefund detaches refunded units from the sale. When the caller
// names no codes, the first quantity SOLD units of the sale line are picked.
func (s *service) ReleaseForRefund(ctx context.Context, tx *gorm.DB, saleID, stockItemID uint, quantity int, codes []string) ([]models.SerialUnit, error) {
	if tx == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "releasing serials requires a transaction")
	}
	repo := s.repo.WithTx(tx)

	var units []models.SerialUnit
	if len(codes) > 0 {
		if len(codes) != quantity {
			return nil, apperrors.New(apperrors.CodeSerialCountMismatch,
				fmt.Sprintf("refund quantity is %d but %d serial code(s) were provided", quantity, len(codes))).
				WithDetails(map[string]any{"expected": quantity, "provided": len(codes)})
		}
		found, err := repo.FindByCodes(ctx, codes)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading serial units")
		}
		if len(found) != len(codes) {
			return nil, s.missingCodes(codes, found)
		}
		for _, unit := range found {
			if unit.Status != enums.SerialStatusSold || unit.SaleID == nil || *unit.SaleID != saleID {
				return nil, apperrors.New(apperrors.CodeSerialUnavailable,
					fmt.Sprintf("serial %q was not sold on this sale", unit.SerialCode)).
					WithDetails(map[string]any{"serial_code": unit.SerialCode, "status": unit.Status.String()})
			}
		}
		units = found
	} else {
		found, err := repo.FirstNSoldBySale(ctx, saleID, stockItemID, quantity)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "selecting refund candidates")
		}
		if len(found) != quantity {
			return nil, apperrors.New(apperrors.CodeSerialCountMismatch,
				fmt.Sprintf("sale has %d refundable serial unit(s), refund needs %d", len(found), quantity)).
				WithDetails(map[string]any{"available": len(found), "requested": quantity})
		}
		units = found
	}

	for i := range units {
		units[i].Status = enums.SerialStatusReturned
		units[i].SaleID = nil
		if err := repo.Save(ctx, &units[i]); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "releasing serial unit")
		}
	}
	s.metrics.ObserveSerialTransition(string(enums.SerialStatusReturned))
	return units, nil
}

// MarkDefective flags a single unit. Allowed from IN_STOCK and SOLD; stock
// quantity is not touched here, a count correction handles that separately.
func (s *service) MarkDefective(ctx context.Context, code string, note *string) (*models.SerialUnit, error) {
	unit, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("serial %q not found", code))
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading serial unit")
	}
	if !transitionAllowed(unit.Status, enums.SerialStatusDefective) {
		return nil, apperrors.New(apperrors.CodeSerialUnavailable,
			fmt.Sprintf("serial %q cannot move from %s to %s", code, unit.Status, enums.SerialStatusDefective)).
			WithDetails(map[string]any{"serial_code": code, "status": unit.Status.String()})
	}
	unit.Status = enums.SerialStatusDefective
	if note != nil {
		unit.Notes = note
	}
	if err := s.repo.Save(ctx, unit); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "marking serial defective")
	}
	s.metrics.ObserveSerialTransition(string(enums.SerialStatusDefective))
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"serial_code": code}), "serial unit marked defective")
	}
	return unit, nil
}

func (s *service) Lookup(ctx context.Context, code string) (*models.SerialUnit, error) {
	unit, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("serial %q not found", code))
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading serial unit")
	}
	return unit, nil
}

func (s *service) ListByStockItem(ctx context.Context, stockItemID uint, status *enums.SerialStatus) ([]models.SerialUnit, error) {
	return s.repo.ListByStockItem(ctx, stockItemID, status)
}

func (s *service) Stats(ctx context.Context, branchID uint) (map[enums.SerialStatus]int64, error) {
	return s.repo.CountByStatus(ctx, branchID)
}

// transition moves codes from one status to another, enforcing that every
// unit belongs to the given stock item and sits in the expected state.
func (s *service) transition(ctx context.Context, tx *gorm.DB, codes []string, stockItemID uint, from, to enums.SerialStatus) ([]models.SerialUnit, error) {
	if tx == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "serial transition requires a transaction")
	}
	if len(codes) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "at least one serial code is required")
	}
	units, err := s.loadForTransition(ctx, tx, codes, from, to)
	if err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	for i := range units {
		if units[i].StockItemID != stockItemID {
			return nil, apperrors.New(apperrors.CodeSerialUnavailable,
				fmt.Sprintf("serial %q belongs to another stock item", units[i].SerialCode)).
				WithDetails(map[string]any{"serial_code": units[i].SerialCode})
		}
		units[i].Status = to
		if err := repo.Save(ctx, &units[i]); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "updating serial unit")
		}
	}
	s.metrics.ObserveSerialTransition(string(to))
	return units, nil
}

func (s *service) loadForTransition(ctx context.Context, tx *gorm.DB, codes []string, from, to enums.SerialStatus) ([]models.SerialUnit, error) {
	if len(codes) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "at least one serial code is required")
	}
	if !transitionAllowed(from, to) {
		return nil, apperrors.New(apperrors.CodeInternal,
			fmt.Sprintf("transition %s to %s is not defined", from, to))
	}
	repo := s.repo.WithTx(tx)
	units, err := repo.FindByCodes(ctx, codes)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading serial units")
	}
	if len(units) != len(codes) {
		return nil, s.missingCodes(codes, units)
	}
	for _, unit := range units {
		if unit.Status != from {
			return nil, apperrors.New(apperrors.CodeSerialUnavailable,
				fmt.Sprintf("serial %q is %s, expected %s", unit.SerialCode, unit.Status, from)).
				WithDetails(map[string]any{"serial_code": unit.SerialCode, "status": unit.Status.String()})
		}
	}
	return units, nil
}

func (s *service) missingCodes(requested []string, found []models.SerialUnit) error {
	known := make(map[string]struct{}, len(found))
	for _, unit := range found {
		known[unit.SerialCode] = struct{}{}
	}
	missing := make([]string, 0, len(requested))
	for _, code := range requested {
		if _, ok := known[code]; !ok {
			missing = append(missing, code)
		}
	}
	sort.Strings(missing)
	return apperrors.New(apperrors.CodeNotFound,
		fmt.Sprintf("%d serial code(s) not found", len(missing))).
		WithDetails(map[string]any{"serial_codes": missing})
}
