package cleanup

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/smallbiznis/meridian/internal/clock"
	"github.com/smallbiznis/meridian/internal/observability/metrics"
)

func newTestSweeper(store *deletingStore, batchSize int) *Sweeper {
	return &Sweeper{
		log:       zap.NewNop(),
		clock:     clock.NewFakeClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)),
		store:     store,
		batchSize: batchSize,
		sweeper:   metrics.Sweeper(),
	}
}

func TestSweepDrainsFullBatches(t *testing.T) {
	// Two full batches followed by a short one; the sweep must keep
	// going until a batch comes back smaller than the limit.
	store := &deletingStore{expired: []int64{100, 100, 40}}
	sweeper := newTestSweeper(store, 100)

	sweeper.sweep(context.Background())

	if len(store.expired) != 0 {
		t.Fatalf("sweep stopped early, %d batches left", len(store.expired))
	}
}

func TestSweepStopsOnShortBatch(t *testing.T) {
	store := &deletingStore{expired: []int64{40, 100}}
	sweeper := newTestSweeper(store, 100)

	sweeper.sweep(context.Background())

	// The first batch was short of the limit, so the second one must
	// not run until the next tick.
	if len(store.expired) != 1 {
		t.Fatalf("sweep ran %d extra batches", 1-len(store.expired))
	}
}

func TestSweepWithoutLockerProceeds(t *testing.T) {
	store := &deletingStore{expired: []int64{1}}
	sweeper := newTestSweeper(store, 100)

	sweeper.sweep(context.Background())

	if len(store.expired) != 0 {
		t.Fatalf("sweep skipped without a locker")
	}
}
