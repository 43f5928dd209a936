package cleanup

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	authzdomain "github.com/smallbiznis/meridian/internal/authorization/domain"
	"github.com/smallbiznis/meridian/internal/clock"
	"github.com/smallbiznis/meridian/internal/config"
	"github.com/smallbiznis/meridian/internal/observability/metrics"
	"github.com/smallbiznis/meridian/internal/ratelimit"
)

const (
	sweeperLockKey = "cleanup:sweeper:lock"
	sweeperLockTTL = 60 * time.Second
)

type SweeperParams struct {
	fx.In

	Cfg    config.Config
	Log    *zap.Logger
	Clock  clock.Clock
	Store  authzdomain.Store
	Locker *ratelimit.Locker `optional:"true"`
}

// Sweeper deletes expired authorization rows in batches on a fixed
// interval. When several instances share a database the redis lock keeps
// a single sweeper active per tick; the others skip the round.
type Sweeper struct {
	log       *zap.Logger
	clock     clock.Clock
	store     authzdomain.Store
	locker    *ratelimit.Locker
	interval  time.Duration
	batchSize int
	sweeper   *metrics.SweeperMetrics

	cancel context.CancelFunc
	done   sync.WaitGroup
}

func NewSweeper(p SweeperParams) *Sweeper {
	return &Sweeper{
		log:       p.Log,
		clock:     p.Clock,
		store:     p.Store,
		locker:    p.Locker,
		interval:  time.Duration(p.Cfg.SweeperInterval) * time.Second,
		batchSize: p.Cfg.SweeperBatchSize,
		sweeper:   metrics.Sweeper(),
	}
}

func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done.Add(1)
	go func() {
		defer s.done.Done()
		s.run(ctx)
	}()
}

func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.done.Wait()
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweeper.ObserveRunLoopLag(time.Since(last) - s.interval)
			last = time.Now()
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	token, ok := s.acquireLock(ctx)
	if !ok {
		s.sweeper.IncBatchDeferred(metrics.SweeperJobExpiredAuthorizations, metrics.SweeperBatchDeferredReasonLockHeld)
		return
	}
	defer s.releaseLock(ctx, token)

	s.sweeper.IncJobRun(metrics.SweeperJobExpiredAuthorizations)
	start := time.Now()
	total := int64(0)

	for {
		if ctx.Err() != nil {
			break
		}
		deleted, err := s.store.DeleteExpired(ctx, s.clock.Now(), s.batchSize)
		if err != nil {
			s.sweeper.IncJobError(metrics.SweeperJobExpiredAuthorizations, err)
			s.log.Warn("expired authorization sweep failed", zap.Error(err))
			break
		}
		total += deleted
		s.sweeper.AddBatchProcessed(metrics.SweeperJobExpiredAuthorizations, "authorizations", int(deleted))
		if deleted < int64(s.batchSize) {
			break
		}
		// A full batch means more rows are waiting. Refresh the lock
		// before the next round so a long sweep does not lose it.
		if !s.extendLock(ctx, token) {
			s.sweeper.IncBatchDeferred(metrics.SweeperJobExpiredAuthorizations, metrics.SweeperBatchDeferredReasonLockLost)
			break
		}
	}

	s.sweeper.ObserveJobDuration(metrics.SweeperJobExpiredAuthorizations, time.Since(start))
	if total > 0 {
		s.log.Info("expired authorizations swept", zap.Int64("deleted", total))
	}
}

// acquireLock takes the cross-instance sweep lock. With no locker
// configured the sweep always proceeds.
func (s *Sweeper) acquireLock(ctx context.Context) (string, bool) {
	if s.locker == nil {
		return "", true
	}
	token, ok, err := s.locker.TryLock(ctx, sweeperLockKey, sweeperLockTTL)
	if err != nil {
		s.log.Warn("sweeper lock unavailable, proceeding unlocked", zap.Error(err))
		return "", true
	}
	return token, ok
}

func (s *Sweeper) extendLock(ctx context.Context, token string) bool {
	if s.locker == nil || token == "" {
		return true
	}
	ok, err := s.locker.Extend(ctx, sweeperLockKey, token, sweeperLockTTL)
	if err != nil {
		s.log.Warn("sweeper lock extend failed", zap.Error(err))
		return false
	}
	return ok
}

func (s *Sweeper) releaseLock(ctx context.Context, token string) {
	if s.locker == nil || token == "" {
		return
	}
	if err := s.locker.Release(ctx, sweeperLockKey, token); err != nil {
		s.log.Warn("sweeper lock release failed", zap.Error(err))
	}
}
