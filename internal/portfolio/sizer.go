// Package portfolio allocates capital across buy candidates. Selection is
// greedy on conviction times historical expectancy, bounded by the
// open-slot budget; sizing scales the base allocation by conviction, the
// regime multiplier and the pattern's historical edge.
package portfolio

import (
	"sort"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-patterns/internal/logger"
	"github.com/rxtech-lab/argo-patterns/internal/types"
	"github.com/rxtech-lab/argo-patterns/pkg/errors"
	"go.uber.org/zap"
)

// Pattern-modifier bounds: historical edge can halve a position or grow it
// by half, never more.
const (
	modifierFloor = 0.5
	modifierCeil  = 1.5

	modifierBase          = 0.5
	modifierExpectancyPct = 0.05

	// neutralModifier applies when a candidate has no usable history.
	neutralModifier = 1.0

	// neutralExpectancy stands in for the expectancy of a candidate with
	// no usable history, so new patterns compete on conviction alone.
	neutralExpectancy = 1.0
)

// Config bounds the portfolio.
type Config struct {
	// MaxPositions is the total open-slot budget.
	MaxPositions int `yaml:"max_positions" validate:"required,gt=0"`

	// BaseAllocationPct is the portfolio fraction a full-conviction
	// candidate receives before multipliers.
	BaseAllocationPct float64 `yaml:"base_allocation_pct" validate:"required,gt=0,lte=1"`

	// MaxPositionPct caps any single position's portfolio fraction.
	MaxPositionPct float64 `yaml:"max_position_pct" validate:"required,gt=0,lte=1"`
}

// DefaultConfig returns the default portfolio bounds.
func DefaultConfig() Config {
	return Config{
		MaxPositions:      10,
		BaseAllocationPct: 0.10,
		MaxPositionPct:    0.15,
	}
}

// Candidate is one buy decision with its classification and history.
type Candidate struct {
	Decision types.AIDecision
	Metrics  types.MarketMetrics

	Key    optional.Option[types.PatternKey]
	Record optional.Option[types.PatternRecord]
}

// Sized is a selected candidate with its allocation.
type Sized struct {
	Candidate

	SizePct     float64
	SizeDollars float64
}

// Skipped is a candidate rejected this cycle together with the reason.
// Capacity skips are expected whenever candidates outnumber free slots.
type Skipped struct {
	Candidate
	Reason error
}

// TieBreak orders candidates with equal selection scores.
type TieBreak func(a, b Candidate) bool

// BySymbol is the default deterministic tie-break.
func BySymbol(a, b Candidate) bool {
	return a.Decision.Symbol < b.Decision.Symbol
}

// Sizer selects and sizes buy candidates.
type Sizer struct {
	config   Config
	logger   *logger.Logger
	tieBreak TieBreak
}

// NewSizer creates a sizer. A nil tieBreak falls back to BySymbol.
func NewSizer(config Config, log *logger.Logger, tieBreak TieBreak) *Sizer {
	if tieBreak == nil {
		tieBreak = BySymbol
	}

	return &Sizer{
		config:   config,
		logger:   log,
		tieBreak: tieBreak,
	}
}

// SelectAndSize picks the best candidates for the free slots and sizes each
// one. Candidates that do not fit are returned as skipped with a capacity
// error; capacity exhaustion never fails the cycle.
func (s *Sizer) SelectAndSize(
	candidates []Candidate,
	assessment types.RegimeAssessment,
	portfolioValue float64,
	openPositions int,
) ([]Sized, []Skipped, error) {
	if portfolioValue <= 0 {
		return nil, nil, errors.Newf(errors.ErrCodeInvalidParameter,
			"portfolio value must be positive, got %f", portfolioValue)
	}

	if openPositions < 0 {
		return nil, nil, errors.Newf(errors.ErrCodeInvalidParameter,
			"open position count must be non-negative, got %d", openPositions)
	}

	var skipped []Skipped

	buys := make([]Candidate, 0, len(candidates))

	for _, candidate := range candidates {
		if err := candidate.Decision.Validate(); err != nil {
			skipped = append(skipped, Skipped{Candidate: candidate, Reason: err})

			continue
		}

		if !candidate.Decision.Decision.IsBuy() {
			continue
		}

		buys = append(buys, candidate)
	}

	sort.SliceStable(buys, func(i, j int) bool {
		si, sj := selectionScore(buys[i]), selectionScore(buys[j])
		if si != sj {
			return si > sj
		}

		return s.tieBreak(buys[i], buys[j])
	})

	freeSlots := s.config.MaxPositions - openPositions
	if freeSlots < 0 {
		freeSlots = 0
	}

	var sized []Sized

	for rank, candidate := range buys {
		if rank >= freeSlots {
			skipped = append(skipped, Skipped{
				Candidate: candidate,
				Reason: errors.Newf(errors.ErrCodeNoSlotsAvailable,
					"no free slot for %s: %d open of %d max",
					candidate.Decision.Symbol, openPositions, s.config.MaxPositions),
			})

			continue
		}

		sizePct := s.sizePct(candidate, assessment)
		sized = append(sized, Sized{
			Candidate:   candidate,
			SizePct:     sizePct,
			SizeDollars: sizePct * portfolioValue,
		})
	}

	s.logger.Info("Sized portfolio candidates",
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(sized)),
		zap.Int("skipped", len(skipped)),
		zap.String("regime", string(assessment.Regime)),
	)

	return sized, skipped, nil
}

// sizePct computes the portfolio fraction of one candidate:
// min(max_pct, conviction * base) scaled by the regime multiplier and the
// pattern modifier, then re-capped.
func (s *Sizer) sizePct(candidate Candidate, assessment types.RegimeAssessment) float64 {
	base := candidate.Decision.Conviction * s.config.BaseAllocationPct
	if base > s.config.MaxPositionPct {
		base = s.config.MaxPositionPct
	}

	size := base * assessment.PositionMultiplier * patternModifier(candidate.Record)
	if size > s.config.MaxPositionPct {
		size = s.config.MaxPositionPct
	}

	return size
}

// selectionScore ranks candidates by conviction * historical expectancy.
// Unproven patterns get a neutral expectancy so a new pattern is not starved
// out of its first trades.
func selectionScore(candidate Candidate) float64 {
	return candidate.Decision.Conviction * selectionExpectancy(candidate.Record)
}

func selectionExpectancy(record optional.Option[types.PatternRecord]) float64 {
	if record.IsNone() {
		return neutralExpectancy
	}

	r := record.Unwrap()
	if r.Status != types.PatternStatusActive || r.TotalTrades == 0 {
		return neutralExpectancy
	}

	return r.Expectancy
}

// patternModifier converts a pattern's history into a sizing multiplier in
// [0.5, 1.5]. Unproven or retired patterns stay neutral.
func patternModifier(record optional.Option[types.PatternRecord]) float64 {
	if record.IsNone() {
		return neutralModifier
	}

	r := record.Unwrap()
	if r.Status != types.PatternStatusActive || r.TotalTrades == 0 {
		return neutralModifier
	}

	modifier := modifierBase + r.WinRate + modifierExpectancyPct*r.Expectancy

	if modifier < modifierFloor {
		return modifierFloor
	}

	if modifier > modifierCeil {
		return modifierCeil
	}

	return modifier
}
