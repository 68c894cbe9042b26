package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/CarlusInnocent/HotPOS/pkg/db/models"
	"github.com/CarlusInnocent/HotPOS/pkg/logger"
)

type staleTransferLister interface {
	ListStale(ctx context.Context, before time.Time) ([]models.Transfer, error)
}

type transferRejector interface {
	Reject(ctx context.Context, transferID, rejectedBy uint, reason *string) (*models.Transfer, error)
}

type TransferExpireJobParams struct {
	Logger    *logger.Logger
	Transfers staleTransferLister
	Rejector  transferRejector
	MaxAge    time.Duration
}

// NewTransferExpireJob rejects transfers stuck in PENDING or IN_TRANSIT for
// longer than MaxAge, restoring source stock for the in-transit ones. A zero
// MaxAge disables the job.
func NewTransferExpireJob(params TransferExpireJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Transfers == nil {
		return nil, fmt.Errorf("transfer lister required")
	}
	if params.Rejector == nil {
		return nil, fmt.Errorf("transfer rejector required")
	}
	if params.MaxAge <= 0 {
		return nil, fmt.Errorf("max age must be positive")
	}
	return &transferExpireJob{
		logg:      params.Logger,
		transfers: params.Transfers,
		rejector:  params.Rejector,
		maxAge:    params.MaxAge,
		now:       time.Now,
	}, nil
}

type transferExpireJob struct {
	logg      *logger.Logger
	transfers staleTransferLister
	rejector  transferRejector
	maxAge    time.Duration
	now       func() time.Time
}

func (j *transferExpireJob) Name() string { return "transfer-expire" }

func (j *transferExpireJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	stale, err := j.transfers.ListStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list stale transfers: %w", err)
	}

	expired := 0
	var lastErr error
	for _, transfer := range stale {
		reason := fmt.Sprintf("auto-expired after %s", j.maxAge)
		// Actor 0 marks system-initiated rejections in the audit trail.
		if _, err := j.rejector.Reject(ctx, transfer.ID, 0, &reason); err != nil {
			lastErr = err
			logCtx := j.logg.WithFields(ctx, map[string]any{
				"transfer_id":     transfer.ID,
				"transfer_number": transfer.TransferNumber,
			})
			j.logg.Error(logCtx, "failed to expire transfer", err)
			continue
		}
		expired++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"found":   len(stale),
		"expired": expired,
	})
	j.logg.Info(logCtx, "transfer expiry sweep complete")
	if lastErr != nil {
		return fmt.Errorf("transfer expiry: %w", lastErr)
	}
	return nil
}
