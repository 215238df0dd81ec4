// Package pipeline orchestrates one decision cycle: classify the regime,
// mark and close positions, fold closed trades into pattern statistics,
// classify new candidates and open the sized selections. Item-level failures
// are isolated; one malformed input never aborts the cycle.
package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-patterns/internal/ledger"
	"github.com/rxtech-lab/argo-patterns/internal/logger"
	"github.com/rxtech-lab/argo-patterns/internal/memory"
	"github.com/rxtech-lab/argo-patterns/internal/pattern"
	"github.com/rxtech-lab/argo-patterns/internal/patternstats"
	"github.com/rxtech-lab/argo-patterns/internal/portfolio"
	"github.com/rxtech-lab/argo-patterns/internal/regime"
	"github.com/rxtech-lab/argo-patterns/internal/store"
	"github.com/rxtech-lab/argo-patterns/internal/types"
	"github.com/rxtech-lab/argo-patterns/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// classifyConcurrency bounds the classification fan-out.
const classifyConcurrency = 8

// Pipeline wires the regime classifier, pattern classifier, ledger,
// statistics engine, memory injector and portfolio sizer over one store.
type Pipeline struct {
	config Config
	logger *logger.Logger

	store     *store.Store
	regime    *regime.Classifier
	pattern   *pattern.Classifier
	ledger    *ledger.Ledger
	stats     *patternstats.Engine
	memories  *memory.Injector
	portfolio *portfolio.Sizer
}

// NewPipeline creates a pipeline and initializes its store.
func NewPipeline(config Config, log *logger.Logger) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	st, err := store.NewStore(log, config.DatabasePath)
	if err != nil {
		return nil, err
	}

	if err := st.Initialize(); err != nil {
		st.Close()

		return nil, err
	}

	return &Pipeline{
		config:    config,
		logger:    log,
		store:     st,
		regime:    regime.NewClassifier(config.Regime),
		pattern:   pattern.NewClassifier(),
		ledger:    ledger.NewLedger(st, log),
		stats:     patternstats.NewEngine(config.PatternStats, st, log),
		memories:  memory.NewInjector(config.Memory, st, log),
		portfolio: portfolio.NewSizer(config.Portfolio, log, nil),
	}, nil
}

// Close releases the store.
func (p *Pipeline) Close() error {
	return p.store.Close()
}

// Store exposes the underlying store for read-only consumers.
func (p *Pipeline) Store() *store.Store {
	return p.store
}

// Memories exposes the injector for decision-prompt consumers.
func (p *Pipeline) Memories() *memory.Injector {
	return p.memories
}

// CycleInput is everything one cycle consumes from the external
// collaborators: the sentiment reading, per-symbol metrics, the AI decisions
// for them, explicit close events and the current marks.
type CycleInput struct {
	AsOf time.Time

	SentimentIndex float64
	PortfolioValue float64

	Metrics   []types.MarketMetrics
	Decisions []types.AIDecision
	Closes    []types.CloseEvent

	// Fills are broker sell confirmations; each one closes the open
	// position of its symbol.
	Fills []types.BrokerFill

	// Prices are the current marks by symbol for open-position upkeep.
	Prices map[string]float64
}

// CycleResult summarizes what one cycle did.
type CycleResult struct {
	Assessment types.RegimeAssessment

	Opened  []types.Position
	Closed  []types.Position
	Skipped []portfolio.Skipped

	// ItemErrors are the isolated per-item failures of the cycle.
	ItemErrors []error

	MemoriesInjected int
	RealizedPnL      float64
}

// RunCycle executes one full decision cycle. Only regime classification and
// store-level failures abort the cycle; item failures are collected in the
// result.
func (p *Pipeline) RunCycle(ctx context.Context, input CycleInput) (CycleResult, error) {
	var result CycleResult

	assessment, err := p.regime.Classify(input.SentimentIndex)
	if err != nil {
		return result, err
	}

	result.Assessment = assessment

	p.logger.Info("Starting cycle",
		zap.String("date", input.AsOf.Format("2006-01-02")),
		zap.String("regime", string(assessment.Regime)),
		zap.Float64("sentiment", input.SentimentIndex),
		zap.Int("metrics", len(input.Metrics)),
		zap.Int("decisions", len(input.Decisions)),
	)

	closes := p.markOpenPositions(input, &result)
	closes = append(closes, p.fillsToCloses(input, &result)...)
	closes = append(closes, input.Closes...)

	p.processCloses(closes, &result)

	candidates := p.buildCandidates(ctx, input, assessment, &result)

	sized, skipped, err := p.portfolio.SelectAndSize(
		candidates, assessment, input.PortfolioValue, p.openCount(&result))
	if err != nil {
		return result, err
	}

	result.Skipped = skipped

	p.openPositions(sized, input, assessment, &result)

	if dropped := p.stats.FlushRetries(); len(dropped) > 0 {
		result.ItemErrors = append(result.ItemErrors, dropped...)
	}

	if err := p.finishCycle(input, &result); err != nil {
		return result, err
	}

	p.logger.Info("Cycle complete",
		zap.Int("opened", len(result.Opened)),
		zap.Int("closed", len(result.Closed)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("item_errors", len(result.ItemErrors)),
		zap.Float64("realized_pnl", result.RealizedPnL),
	)

	return result, nil
}

// markOpenPositions updates excursions for every open position with a mark
// and returns the close events triggered by exit rules.
func (p *Pipeline) markOpenPositions(input CycleInput, result *CycleResult) []types.CloseEvent {
	open, err := p.ledger.OpenPositions()
	if err != nil {
		result.ItemErrors = append(result.ItemErrors, err)

		return nil
	}

	rule := types.ExitRule{MaxHoldDays: p.config.MaxHoldDays}

	var closes []types.CloseEvent

	for i := range open {
		position := &open[i]

		price, ok := input.Prices[position.Symbol]
		if !ok {
			continue
		}

		exit, err := p.ledger.Mark(position, price, rule, input.AsOf)
		if err != nil {
			result.ItemErrors = append(result.ItemErrors, err)

			continue
		}

		if exit.IsSome() {
			closes = append(closes, types.CloseEvent{
				PositionID: position.ID,
				ExitPrice:  price,
				ExitDate:   input.AsOf,
				ExitReason: exit.Unwrap(),
			})
		}
	}

	return closes
}

// fillsToCloses converts broker sell confirmations into close events by
// matching each fill to the open position of its symbol. With several open
// positions on one symbol, fills consume them oldest entry first; each fill
// closes at most one position.
func (p *Pipeline) fillsToCloses(input CycleInput, result *CycleResult) []types.CloseEvent {
	if len(input.Fills) == 0 {
		return nil
	}

	open, err := p.ledger.OpenPositions()
	if err != nil {
		result.ItemErrors = append(result.ItemErrors, err)

		return nil
	}

	sort.SliceStable(open, func(i, j int) bool {
		if !open[i].EntryDate.Equal(open[j].EntryDate) {
			return open[i].EntryDate.Before(open[j].EntryDate)
		}

		return open[i].ID < open[j].ID
	})

	bySymbol := make(map[string][]types.Position, len(open))
	for _, position := range open {
		bySymbol[position.Symbol] = append(bySymbol[position.Symbol], position)
	}

	var closes []types.CloseEvent

	for _, fill := range input.Fills {
		if err := fill.Validate(); err != nil {
			result.ItemErrors = append(result.ItemErrors, err)

			continue
		}

		if fill.Side != types.FillSideSell {
			continue
		}

		queue := bySymbol[fill.Symbol]
		if len(queue) == 0 {
			result.ItemErrors = append(result.ItemErrors, errors.Newf(errors.ErrCodePositionNotFound,
				"no open position for fill on %s", fill.Symbol))

			continue
		}

		bySymbol[fill.Symbol] = queue[1:]

		closes = append(closes, types.CloseEvent{
			PositionID: queue[0].ID,
			ExitPrice:  fill.FillPrice,
			ExitDate:   fill.Timestamp,
			ExitReason: types.ExitReasonSignal,
		})
	}

	return closes
}

// processCloses closes positions and folds the resulting trades into the
// pattern statistics. A record crossing into a higher confidence tier gets a
// memory injected.
func (p *Pipeline) processCloses(closes []types.CloseEvent, result *CycleResult) {
	realized := decimal.Zero

	for _, event := range closes {
		position, trade, err := p.ledger.Close(event)
		if err != nil {
			result.ItemErrors = append(result.ItemErrors, err)

			continue
		}

		result.Closed = append(result.Closed, position)
		realized = realized.Add(decimal.NewFromFloat(position.PnLDollars))

		if trade.IsNone() {
			continue
		}

		priorRank := p.confidenceRank(trade.Unwrap().Key)

		record, err := p.stats.RecordTrade(trade.Unwrap())
		if err != nil {
			result.ItemErrors = append(result.ItemErrors, err)

			continue
		}

		if record.ConfidenceLevel.Rank() > priorRank {
			injected, err := p.memories.Inject(record)
			if err != nil {
				result.ItemErrors = append(result.ItemErrors, err)
			} else if injected.IsSome() {
				result.MemoriesInjected++
			}
		}
	}

	result.RealizedPnL = realized.InexactFloat64()
}

func (p *Pipeline) confidenceRank(key types.PatternKey) int {
	prior, err := p.stats.GetRecord(key)
	if err != nil || prior.IsNone() {
		return types.ConfidenceLevelLow.Rank()
	}

	return prior.Unwrap().ConfidenceLevel.Rank()
}

// buildCandidates classifies the metrics concurrently, joins them with their
// AI decisions by symbol and attaches pattern history. Classification
// failures reject single items.
func (p *Pipeline) buildCandidates(
	ctx context.Context,
	input CycleInput,
	assessment types.RegimeAssessment,
	result *CycleResult,
) []portfolio.Candidate {
	decisions := make(map[string]types.AIDecision, len(input.Decisions))
	for _, decision := range input.Decisions {
		decisions[decision.Symbol] = decision
	}

	type classified struct {
		metrics types.MarketMetrics
		key     optional.Option[types.PatternKey]
		err     error
	}

	results := make([]classified, len(input.Metrics))

	group, _ := errgroup.WithContext(ctx)
	group.SetLimit(classifyConcurrency)

	for i, metrics := range input.Metrics {
		i, metrics := i, metrics

		group.Go(func() error {
			key, err := p.pattern.Classify(metrics, assessment.Regime)
			if err != nil {
				results[i] = classified{metrics: metrics, key: optional.None[types.PatternKey](), err: err}

				return nil
			}

			results[i] = classified{metrics: metrics, key: optional.Some(key)}

			return nil
		})
	}

	// Goroutines never return errors; item failures live in the slots.
	group.Wait()

	var candidates []portfolio.Candidate

	for _, item := range results {
		if item.err != nil {
			result.ItemErrors = append(result.ItemErrors, item.err)

			continue
		}

		decision, ok := decisions[item.metrics.Symbol]
		if !ok {
			continue
		}

		record := optional.None[types.PatternRecord]()

		if item.key.IsSome() {
			fetched, err := p.stats.GetRecord(item.key.Unwrap())
			if err != nil {
				result.ItemErrors = append(result.ItemErrors, err)
			} else {
				record = fetched
			}
		}

		candidates = append(candidates, portfolio.Candidate{
			Decision: decision,
			Metrics:  item.metrics,
			Key:      item.key,
			Record:   record,
		})
	}

	return candidates
}

// openPositions records the sized selections in the ledger.
func (p *Pipeline) openPositions(
	sized []portfolio.Sized,
	input CycleInput,
	assessment types.RegimeAssessment,
	result *CycleResult,
) {
	for _, pick := range sized {
		if pick.Metrics.Price <= 0 {
			result.ItemErrors = append(result.ItemErrors, errors.Newf(errors.ErrCodeInvalidPrice,
				"no usable price for %s", pick.Decision.Symbol))

			continue
		}

		position, err := p.ledger.Open(ledger.OpenRequest{
			Symbol:              pick.Decision.Symbol,
			EntryDate:           input.AsOf,
			EntryPrice:          pick.Metrics.Price,
			Quantity:            pick.SizeDollars / pick.Metrics.Price,
			PositionSizeDollars: pick.SizeDollars,
			StopLoss:            pick.Decision.StopLoss,
			TargetPrice:         pick.Decision.TargetPrice,
			PatternKey:          pick.Key,
			Regime:              assessment.Regime,
		})
		if err != nil {
			result.ItemErrors = append(result.ItemErrors, err)

			continue
		}

		result.Opened = append(result.Opened, position)
	}
}

func (p *Pipeline) openCount(result *CycleResult) int {
	count, err := p.store.CountOpenPositions()
	if err != nil {
		result.ItemErrors = append(result.ItemErrors, err)

		return p.config.Portfolio.MaxPositions
	}

	return count
}

// finishCycle writes the daily summary and the audit export when configured.
func (p *Pipeline) finishCycle(input CycleInput, result *CycleResult) error {
	if p.config.SummaryPath != "" {
		summary, err := p.buildSummary(input, result)
		if err != nil {
			return err
		}

		if err := types.WriteDailySummary(p.config.SummaryPath, summary); err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to write daily summary", err)
		}
	}

	if p.config.ExportDir != "" {
		if err := p.store.ExportParquet(p.config.ExportDir); err != nil {
			return err
		}
	}

	return nil
}

func (p *Pipeline) buildSummary(input CycleInput, result *CycleResult) (types.DailySummary, error) {
	touched := make(map[types.PatternKey]bool)

	for _, position := range result.Closed {
		if position.PatternKey.IsSome() {
			touched[position.PatternKey.Unwrap()] = true
		}
	}

	var patterns []types.PatternSummary

	for key := range touched {
		fetched, err := p.stats.GetRecord(key)
		if err != nil {
			return types.DailySummary{}, err
		}

		if fetched.IsNone() {
			continue
		}

		record := fetched.Unwrap()
		patterns = append(patterns, types.PatternSummary{
			PatternKey:      record.Key.String(),
			TotalTrades:     record.TotalTrades,
			WinRate:         record.WinRate,
			Expectancy:      record.Expectancy,
			MomentumState:   record.MomentumState,
			ConfidenceLevel: record.ConfidenceLevel,
			Status:          record.Status,
			LastTradeDate:   record.LastTradeDate,
		})
	}

	rejected := 0

	for _, err := range result.ItemErrors {
		if errors.IsValidationError(err) {
			rejected++
		}
	}

	return types.DailySummary{
		Date:                input.AsOf.Format("2006-01-02"),
		LastUpdated:         input.AsOf,
		Regime:              result.Assessment,
		CandidatesEvaluated: len(input.Metrics),
		PositionsOpened:     len(result.Opened),
		PositionsClosed:     len(result.Closed),
		CandidatesSkipped:   len(result.Skipped),
		CandidatesRejected:  rejected,
		RealizedPnL:         result.RealizedPnL,
		PatternsUpdated:     patterns,
	}, nil
}

// ActiveSnapshots renders the open book against the given marks.
func (p *Pipeline) ActiveSnapshots(prices map[string]float64, asOf time.Time) ([]types.ActivePositionSnapshot, error) {
	open, err := p.ledger.OpenPositions()
	if err != nil {
		return nil, err
	}

	snapshots := make([]types.ActivePositionSnapshot, 0, len(open))

	for _, position := range open {
		snapshot := types.ActivePositionSnapshot{
			Symbol:     position.Symbol,
			EntryDate:  position.EntryDate,
			EntryPrice: position.EntryPrice,
			Quantity:   position.Quantity,
			Regime:     position.Regime,
			HoldDays:   int(asOf.Sub(position.EntryDate).Hours() / 24),
		}

		if position.PatternKey.IsSome() {
			snapshot.PatternKey = position.PatternKey.Unwrap().String()
		}

		if price, ok := prices[position.Symbol]; ok && price > 0 {
			snapshot.CurrentPrice = price
			snapshot.UnrealizedPnL = (price - position.EntryPrice) * position.Quantity
			snapshot.UnrealizedPnLPct = (price - position.EntryPrice) / position.EntryPrice * 100
		}

		snapshots = append(snapshots, snapshot)
	}

	return snapshots, nil
}
