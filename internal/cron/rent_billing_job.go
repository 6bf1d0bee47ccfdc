package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/rentpay-backend/internal/billing"
	"github.com/angelmondragon/rentpay-backend/pkg/logger"
)

const rentBillingJobName = "rent-billing"

// Sweeper is the billing sweep the job drives.
type Sweeper interface {
	Run(ctx context.Context) (*billing.Summary, error)
}

type RentBillingJobParams struct {
	Logger *logger.Logger
	Sweep  Sweeper
}

// NewRentBillingJob wraps the billing sweep. The job fails only when the sweep
// cannot run at all; row failures land in the logged summary.
func NewRentBillingJob(params RentBillingJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Sweep == nil {
		return nil, errors.New("billing sweep required")
	}
	return &rentBillingJob{logg: params.Logger, sweep: params.Sweep}, nil
}

type rentBillingJob struct {
	logg  *logger.Logger
	sweep Sweeper
}

func (j *rentBillingJob) Name() string { return rentBillingJobName }

func (j *rentBillingJob) Run(ctx context.Context) error {
	summary, err := j.sweep.Run(ctx)
	if err != nil {
		return fmt.Errorf("billing sweep: %w", err)
	}

	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"period":    summary.Period,
		"processed": summary.ProcessedCount,
		"failed":    summary.FailedCount,
		"skipped":   summary.SkippedCount,
	})
	for _, rowErr := range summary.Errors {
		rowCtx := j.logg.WithAgreementID(reportCtx, rowErr.AgreementID.String())
		rowCtx = j.logg.WithFields(rowCtx, map[string]any{
			"outcome": rowErr.Outcome,
			"reason":  rowErr.Reason,
		})
		j.logg.Warn(rowCtx, "agreement not charged")
	}
	j.logg.Info(reportCtx, "rent billing summary")
	return nil
}
