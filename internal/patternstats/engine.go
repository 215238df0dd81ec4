// Package patternstats maintains the per-pattern performance aggregates.
// Updates are incremental: each closed trade folds into the running averages
// without rescanning history, and all writers of the same pattern key are
// serialized so concurrent closings cannot lose updates.
package patternstats

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-patterns/internal/logger"
	"github.com/rxtech-lab/argo-patterns/internal/store"
	"github.com/rxtech-lab/argo-patterns/internal/types"
	"github.com/rxtech-lab/argo-patterns/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// Momentum drift beyond these marks a pattern HOT or COLD.
	momentumHotThreshold  = 0.10
	momentumColdThreshold = -0.10

	// maxWriteRetries bounds the backoff retry budget per trade.
	maxWriteRetries = 3

	initialRetryInterval = 10 * time.Millisecond
)

// Config tunes the statistics engine.
type Config struct {
	// RecentWindow is the trailing closings window for momentum.
	RecentWindow int `yaml:"recent_window" validate:"required,gt=0"`

	// MediumConfidenceTrades and HighConfidenceTrades are the lifetime
	// sample sizes opening the MEDIUM and HIGH confidence tiers.
	MediumConfidenceTrades int `yaml:"medium_confidence_trades" validate:"required,gt=0"`
	HighConfidenceTrades   int `yaml:"high_confidence_trades" validate:"required,gtfield=MediumConfidenceTrades"`
}

// DefaultConfig returns the default engine tuning.
func DefaultConfig() Config {
	return Config{
		RecentWindow:           20,
		MediumConfidenceTrades: 10,
		HighConfidenceTrades:   30,
	}
}

// Engine applies closed trades to pattern records.
type Engine struct {
	config Config
	store  *store.Store
	logger *logger.Logger

	mu       sync.Mutex
	keyLocks map[types.PatternKey]*sync.Mutex

	retryMu    sync.Mutex
	retryQueue []types.PatternTrade
}

// NewEngine creates a pattern statistics engine backed by the given store.
func NewEngine(config Config, s *store.Store, log *logger.Logger) *Engine {
	return &Engine{
		config:   config,
		store:    s,
		logger:   log,
		keyLocks: make(map[types.PatternKey]*sync.Mutex),
	}
}

// RecordTrade folds a closed trade into its pattern record and returns the
// updated record. A first trade for an unseen key creates the record.
//
// Transient store failures are retried with backoff up to the retry budget;
// on exhaustion the trade is parked on the retry queue exactly once and a
// concurrency error is returned. An integrity violation retires the pattern
// and surfaces a data-integrity error.
func (e *Engine) RecordTrade(trade types.PatternTrade) (types.PatternRecord, error) {
	if err := trade.Validate(); err != nil {
		return types.PatternRecord{}, err
	}

	lock := e.lockFor(trade.Key)
	lock.Lock()
	defer lock.Unlock()

	record, err := e.applyWithRetry(trade)
	if err != nil {
		if errors.IsConcurrencyConflict(err) {
			e.park(trade)
		}

		return types.PatternRecord{}, err
	}

	return record, nil
}

// FlushRetries re-attempts every parked trade once. Trades that fail again
// are dropped with a log line; the returned errors describe the drops.
func (e *Engine) FlushRetries() []error {
	e.retryMu.Lock()
	parked := e.retryQueue
	e.retryQueue = nil
	e.retryMu.Unlock()

	var failures []error

	for _, trade := range parked {
		lock := e.lockFor(trade.Key)
		lock.Lock()

		_, err := e.applyWithRetry(trade)

		lock.Unlock()

		if err != nil {
			e.logger.Error("Dropping pattern trade after requeue failed",
				zap.String("pattern", trade.Key.String()),
				zap.Float64("pnl_pct", trade.PnLPct),
				zap.Error(err),
			)

			failures = append(failures, err)
		}
	}

	return failures
}

// PendingRetries reports the number of parked trades.
func (e *Engine) PendingRetries() int {
	e.retryMu.Lock()
	defer e.retryMu.Unlock()

	return len(e.retryQueue)
}

// GetRecord fetches the current record for a key.
func (e *Engine) GetRecord(key types.PatternKey) (optional.Option[types.PatternRecord], error) {
	return e.store.GetPatternRecord(key)
}

// AuditAll verifies the invariants of every pattern record and retires the
// violators. Returns the retired keys.
func (e *Engine) AuditAll() ([]types.PatternKey, error) {
	records, err := e.store.ListPatternRecords()
	if err != nil {
		return nil, err
	}

	var retired []types.PatternKey

	for _, record := range records {
		if err := record.CheckIntegrity(); err == nil {
			continue
		} else if retireErr := e.retire(record.Key, err); retireErr != nil {
			return retired, retireErr
		}

		retired = append(retired, record.Key)
	}

	return retired, nil
}

// applyWithRetry runs one read-modify-write cycle under the key lock,
// retrying transient store failures with backoff.
func (e *Engine) applyWithRetry(trade types.PatternTrade) (types.PatternRecord, error) {
	var updated types.PatternRecord

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initialRetryInterval),
	), maxWriteRetries)

	operation := func() error {
		record, err := e.apply(trade)
		if err != nil {
			if errors.IsDataInconsistencyError(err) || errors.IsValidationError(err) {
				return backoff.Permanent(err)
			}

			return err
		}

		updated = record

		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		if errors.IsDataInconsistencyError(err) || errors.IsValidationError(err) {
			return types.PatternRecord{}, err
		}

		return types.PatternRecord{}, errors.Wrapf(errors.ErrCodeConcurrencyConflict, err,
			"pattern update for %s failed after %d retries", trade.Key, maxWriteRetries)
	}

	return updated, nil
}

// apply performs one read-modify-write of the record.
func (e *Engine) apply(trade types.PatternTrade) (types.PatternRecord, error) {
	fetched, err := e.store.GetPatternRecord(trade.Key)
	if err != nil {
		return types.PatternRecord{}, err
	}

	record := fetched.TakeOr(types.NewPatternRecord(trade.Key))

	recent, err := e.store.RecentTradeOutcomes(trade.Key, e.config.RecentWindow-1)
	if err != nil {
		return types.PatternRecord{}, err
	}

	updated := fold(e.config, record, trade, recent)

	if err := updated.CheckIntegrity(); err != nil {
		if retireErr := e.retire(trade.Key, err); retireErr != nil {
			return types.PatternRecord{}, retireErr
		}

		return types.PatternRecord{}, err
	}

	if err := e.store.SavePatternUpdate(updated, trade); err != nil {
		return types.PatternRecord{}, err
	}

	e.logger.Debug("Updated pattern record",
		zap.String("pattern", trade.Key.String()),
		zap.Int("total_trades", updated.TotalTrades),
		zap.Float64("win_rate", updated.WinRate),
		zap.Float64("expectancy", updated.Expectancy),
		zap.String("momentum_state", string(updated.MomentumState)),
	)

	return updated, nil
}

// retire marks a pattern RETIRED after an integrity violation. The record is
// kept for audit; it just stops influencing decisions.
func (e *Engine) retire(key types.PatternKey, cause error) error {
	e.logger.Error("Retiring pattern after integrity violation",
		zap.String("pattern", key.String()),
		zap.Error(cause),
	)

	if err := e.store.SetPatternStatus(key, types.PatternStatusRetired); err != nil {
		return err
	}

	return nil
}

// fold computes the updated record from the previous record, the new trade
// and the trailing outcomes preceding it (newest first). Pure function.
func fold(config Config, record types.PatternRecord, trade types.PatternTrade, recent []float64) types.PatternRecord {
	record.TotalTrades++
	n := float64(record.TotalTrades)

	win := trade.PnLPct > 0
	if win {
		record.WinningTrades++
		record.AvgWinPct += (trade.PnLPct - record.AvgWinPct) / float64(record.WinningTrades)
	} else {
		record.LosingTrades++
		lossMagnitude := -trade.PnLPct
		record.AvgLossPct += (lossMagnitude - record.AvgLossPct) / float64(record.LosingTrades)
	}

	record.WinRate = float64(record.WinningTrades) / n
	record.AvgReturnPct += (trade.PnLPct - record.AvgReturnPct) / n
	record.AvgHoldDays += (float64(trade.HoldDays) - record.AvgHoldDays) / n

	record.TotalPnL = decimal.NewFromFloat(record.TotalPnL).
		Add(decimal.NewFromFloat(trade.PnLDollars)).
		InexactFloat64()

	record.Expectancy = record.WinRate*record.AvgWinPct - (1-record.WinRate)*record.AvgLossPct

	// The trailing window is the new trade plus the closings before it.
	window := append([]float64{trade.PnLPct}, recent...)
	if len(window) > config.RecentWindow {
		window = window[:config.RecentWindow]
	}

	recentWins := 0
	for _, pnl := range window {
		if pnl > 0 {
			recentWins++
		}
	}

	record.RecentWinRate = float64(recentWins) / float64(len(window))
	record.Momentum = record.RecentWinRate - record.WinRate
	record.MomentumState = momentumState(record.Momentum)
	record.ConfidenceLevel = confidenceFor(config, record.TotalTrades)
	record.LastTradeDate = trade.ExitDate

	return record
}

func momentumState(momentum float64) types.MomentumState {
	switch {
	case momentum > momentumHotThreshold:
		return types.MomentumStateHot
	case momentum < momentumColdThreshold:
		return types.MomentumStateCold
	default:
		return types.MomentumStateStable
	}
}

// confidenceFor maps a lifetime sample size to its confidence tier. Monotonic
// in the trade count.
func confidenceFor(config Config, totalTrades int) types.ConfidenceLevel {
	switch {
	case totalTrades >= config.HighConfidenceTrades:
		return types.ConfidenceLevelHigh
	case totalTrades >= config.MediumConfidenceTrades:
		return types.ConfidenceLevelMedium
	default:
		return types.ConfidenceLevelLow
	}
}

// park appends a trade to the retry queue. Each trade is parked at most once
// because FlushRetries drops trades that fail the second attempt.
func (e *Engine) park(trade types.PatternTrade) {
	e.retryMu.Lock()
	defer e.retryMu.Unlock()

	e.retryQueue = append(e.retryQueue, trade)

	e.logger.Warn("Parked pattern trade for retry",
		zap.String("pattern", trade.Key.String()),
		zap.Int("queue_depth", len(e.retryQueue)),
	)
}

// lockFor returns the mutex serializing writers of one pattern key.
func (e *Engine) lockFor(key types.PatternKey) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.keyLocks[key] = lock
	}

	return lock
}
