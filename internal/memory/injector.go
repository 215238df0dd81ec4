// Package memory distills proven pattern records into short context notes
// and selects the most relevant ones for decision prompts. Memories age out
// lazily: expiry happens on the next selection, not on a background timer.
package memory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-patterns/internal/logger"
	"github.com/rxtech-lab/argo-patterns/internal/store"
	"github.com/rxtech-lab/argo-patterns/internal/types"
	"go.uber.org/zap"
)

// Config tunes memory selection.
type Config struct {
	// MaxInjected caps the memories handed to a single decision.
	MaxInjected int `yaml:"max_injected" validate:"required,gt=0"`

	// TTLDays is the age in days after which a memory stops being
	// selected.
	TTLDays int `yaml:"ttl_days" validate:"required,gt=0"`
}

// DefaultConfig returns the default memory tuning.
func DefaultConfig() Config {
	return Config{
		MaxInjected: 5,
		TTLDays:     30,
	}
}

const (
	// Relevance weights. Win rate dominates, expectancy and sample size
	// temper it.
	winRateWeight    = 0.5
	expectancyWeight = 0.3
	sampleWeight     = 0.2

	// Normalization caps: an expectancy of +5% per trade or 50 lifetime
	// trades saturates its component.
	expectancyCap = 5.0
	sampleCap     = 50.0
)

// Injector writes and selects pattern memories.
type Injector struct {
	config Config
	store  *store.Store
	logger *logger.Logger
	now    func() time.Time
}

// NewInjector creates a memory injector backed by the given store.
func NewInjector(config Config, s *store.Store, log *logger.Logger) *Injector {
	return &Injector{
		config: config,
		store:  s,
		logger: log,
		now:    time.Now,
	}
}

// Inject distills a pattern record into a memory when the record has earned
// enough confidence. Records below MEDIUM confidence or already retired are
// skipped and return None.
func (i *Injector) Inject(record types.PatternRecord) (optional.Option[types.PatternMemory], error) {
	none := optional.None[types.PatternMemory]()

	if record.Status != types.PatternStatusActive {
		return none, nil
	}

	if record.ConfidenceLevel.Rank() < types.ConfidenceLevelMedium.Rank() {
		return none, nil
	}

	memory := types.PatternMemory{
		ID:             uuid.New().String(),
		Key:            record.Key,
		Content:        describe(record),
		RelevanceScore: relevance(record),
		TradesCount:    record.TotalTrades,
		WinRate:        record.WinRate,
		Expectancy:     record.Expectancy,
		InjectionDate:  i.now().UTC(),
		Status:         types.MemoryStatusActive,
	}

	if err := i.store.InsertPatternMemory(memory); err != nil {
		return none, err
	}

	i.logger.Info("Injected pattern memory",
		zap.String("pattern", record.Key.String()),
		zap.Float64("relevance", memory.RelevanceScore),
		zap.Int("trades", memory.TradesCount),
	)

	return optional.Some(memory), nil
}

// Select returns the most relevant active memories for a key, capped by the
// configured maximum. Memories older than the TTL are expired before
// selection.
func (i *Injector) Select(key types.PatternKey) ([]types.PatternMemory, error) {
	cutoff := i.now().UTC().AddDate(0, 0, -i.config.TTLDays)

	expired, err := i.store.ExpireMemoriesBefore(key, cutoff)
	if err != nil {
		return nil, err
	}

	if expired > 0 {
		i.logger.Debug("Expired stale memories",
			zap.String("pattern", key.String()),
			zap.Int64("expired", expired),
		)
	}

	return i.store.SelectActiveMemories(key, i.config.MaxInjected)
}

// describe renders the record as a one-line context note.
func describe(record types.PatternRecord) string {
	return fmt.Sprintf(
		"%s in %s regime (%s volume, %s RSI): %.0f%% win rate over %d trades, expectancy %+.2f%%/trade, momentum %s",
		record.Key.PatternName,
		record.Key.Regime,
		record.Key.VolumeProfile,
		record.Key.RSICondition,
		record.WinRate*100,
		record.TotalTrades,
		record.Expectancy,
		record.MomentumState,
	)
}

// relevance scores a record in [0,1] from its win rate, expectancy and
// sample size.
func relevance(record types.PatternRecord) float64 {
	score := winRateWeight*record.WinRate +
		expectancyWeight*clamp01(record.Expectancy/expectancyCap) +
		sampleWeight*clamp01(float64(record.TotalTrades)/sampleCap)

	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}
