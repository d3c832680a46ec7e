package refresh

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fundwatch/internal/models"
	"fundwatch/internal/valuation"
)

// PortfolioLoader supplies a fresh holdings snapshot for each batch.
type PortfolioLoader interface {
	ListHoldings(ctx context.Context) ([]models.Holding, error)
}

// Batcher runs one valuation batch.
type Batcher interface {
	Compute(ctx context.Context, holdings []models.Holding, snap valuation.Snapshot) valuation.Result
}

// ValuationSink persists finalized cache entries so a same-day restart can
// rewarm without refetching. Optional; nil disables persistence.
type ValuationSink interface {
	SaveValuation(ctx context.Context, item *models.CachedValuation) error
}

// Snapshot is the last displayed dashboard state. It is rendered on every
// tick regardless of whether a new batch is in flight.
type Snapshot struct {
	Rows         []valuation.Row `json:"rows"`
	TotalDayGain decimal.Decimal `json:"total_day_gain"`
	TotalCumGain decimal.Decimal `json:"total_cumulative_gain"`
	TotalValue   decimal.Decimal `json:"total_value"`
	RefreshedAt  time.Time       `json:"refreshed_at"`
	Ready        bool            `json:"ready"`
}

// Scheduler decouples the fast render tick from the slow network cadence:
// at most one valuation batch is ever in flight, launched at most once per
// MinInterval, and its result is harvested on a later tick. A stale batch is
// never cancelled; its result still merges when it completes.
type Scheduler struct {
	Portfolio   PortfolioLoader
	Cache       *valuation.Cache
	Calc        Batcher
	Valuations  ValuationSink
	Logger      *zap.Logger
	MinInterval time.Duration
	Now         func() time.Time

	mu        sync.Mutex
	pending   chan valuation.Result
	inFlight  bool
	last      Snapshot
	lastFetch time.Time
	force     bool
}

// Tick drives one render cycle: harvest a finished batch if there is one,
// then launch a new batch when idle and due.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	if s.pending == nil {
		s.pending = make(chan valuation.Result, 1)
	}
	var done *valuation.Result
	if s.inFlight {
		select {
		case res := <-s.pending:
			s.last = Snapshot{
				Rows:         res.Rows,
				TotalDayGain: res.TotalDayGain,
				TotalCumGain: res.TotalCumGain,
				TotalValue:   res.TotalValue,
				RefreshedAt:  now,
				Ready:        true,
			}
			s.lastFetch = now
			s.inFlight = false
			done = &res
		default:
		}
	}
	due := !s.inFlight && (s.force || !s.last.Ready || now.Sub(s.lastFetch) >= s.minInterval())
	if due {
		// Reserve the single flight slot before doing store I/O.
		s.inFlight = true
		s.force = false
	}
	pending := s.pending
	s.mu.Unlock()

	// Merge and persistence happen outside the critical section; Snapshot
	// and ForceRefresh never wait on store I/O.
	if done != nil {
		s.Cache.Merge(done.CacheUpdates)
		s.persistUpdates(ctx, done.CacheUpdates)
	}
	if !due {
		return
	}

	holdings, err := s.Portfolio.ListHoldings(ctx)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("holdings load failed", zap.Error(err))
		}
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
		return
	}
	snap := s.Cache.Snapshot()
	go func() {
		pending <- s.Calc.Compute(ctx, holdings, snap)
	}()
}

func (s *Scheduler) persistUpdates(ctx context.Context, updates valuation.Snapshot) {
	if s.Valuations == nil {
		return
	}
	for key, q := range updates {
		payload, err := json.Marshal(q)
		if err != nil {
			continue
		}
		code, date := splitCacheKey(key)
		item := &models.CachedValuation{
			Code:    code,
			NavDate: date,
			Payload: payload,
		}
		if err := s.Valuations.SaveValuation(ctx, item); err != nil && s.Logger != nil {
			s.Logger.Warn("valuation persist failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// Snapshot returns the last displayed state (stale-while-revalidate).
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.last
	out.Rows = append([]valuation.Row(nil), s.last.Rows...)
	return out
}

// ForceRefresh makes the next tick launch a batch regardless of the minimum
// fetch interval.
func (s *Scheduler) ForceRefresh() {
	s.mu.Lock()
	s.force = true
	s.mu.Unlock()
}

func (s *Scheduler) minInterval() time.Duration {
	if s.MinInterval > 0 {
		return s.MinInterval
	}
	return 4 * time.Second
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func splitCacheKey(key string) (code, date string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '_' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
