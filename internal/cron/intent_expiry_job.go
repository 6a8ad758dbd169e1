package cron

import (
	"context"
	"fmt"

	"github.com/netpoint-soft/cybercafe-backend/pkg/logger"
)

const intentExpiryBatchSize = 500

type intentExpirer interface {
	ExpireStale(ctx context.Context, limit int) (int, error)
}

// IntentExpiryJobParams configure the pending intent sweep.
type IntentExpiryJobParams struct {
	Logger  *logger.Logger
	Intents intentExpirer
}

// NewIntentExpiryJob builds the job that retires pending intents past their
// TTL. The sweep is an optimization over lazy read-side expiry; both paths use
// the same guarded transition, so they never double-expire.
func NewIntentExpiryJob(params IntentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Intents == nil {
		return nil, fmt.Errorf("intent service required")
	}
	return &intentExpiryJob{
		logg:    params.Logger,
		intents: params.Intents,
	}, nil
}

type intentExpiryJob struct {
	logg    *logger.Logger
	intents intentExpirer
}

func (j *intentExpiryJob) Name() string {
	return "intent-expiry"
}

func (j *intentExpiryJob) Run(ctx context.Context) error {
	expired, err := j.intents.ExpireStale(ctx, intentExpiryBatchSize)
	if err != nil {
		return fmt.Errorf("expiring stale intents: %w", err)
	}
	if expired > 0 {
		j.logg.Info(j.logg.WithField(ctx, "expired", expired), "retired stale payment intents")
	}
	return nil
}
