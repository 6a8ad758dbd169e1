package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/netpoint-soft/cybercafe-backend/pkg/logger"
)

func TestIntentExpiryJobSweepsWithBatchLimit(t *testing.T) {
	expirer := &fakeIntentExpirer{expired: 7}
	job := newIntentExpiryJob(t, expirer)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if expirer.called != 1 {
		t.Fatalf("expected expirer called once, got %d", expirer.called)
	}
	if expirer.lastLimit != intentExpiryBatchSize {
		t.Fatalf("expected batch limit %d, got %d", intentExpiryBatchSize, expirer.lastLimit)
	}
}

func TestIntentExpiryJobQuietWhenNothingStale(t *testing.T) {
	expirer := &fakeIntentExpirer{expired: 0}
	job := newIntentExpiryJob(t, expirer)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestIntentExpiryJobPropagatesErrors(t *testing.T) {
	expirer := &fakeIntentExpirer{err: errors.New("boom")}
	job := newIntentExpiryJob(t, expirer)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestIntentExpiryJobName(t *testing.T) {
	job := newIntentExpiryJob(t, &fakeIntentExpirer{})
	if got := job.Name(); got != "intent-expiry" {
		t.Fatalf("expected job name intent-expiry, got %q", got)
	}
}

func newIntentExpiryJob(t *testing.T, expirer *fakeIntentExpirer) Job {
	t.Helper()
	job, err := NewIntentExpiryJob(IntentExpiryJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Intents: expirer,
	})
	if err != nil {
		t.Fatalf("NewIntentExpiryJob: %v", err)
	}
	return job
}

type fakeIntentExpirer struct {
	expired   int
	err       error
	called    int
	lastLimit int
}

func (f *fakeIntentExpirer) ExpireStale(ctx context.Context, limit int) (int, error) {
	f.called++
	f.lastLimit = limit
	if f.err != nil {
		return 0, f.err
	}
	return f.expired, nil
}
