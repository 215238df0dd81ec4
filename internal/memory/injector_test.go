package memory

import (
	"testing"
	"time"

	"github.com/rxtech-lab/argo-patterns/internal/logger"
	"github.com/rxtech-lab/argo-patterns/internal/store"
	"github.com/rxtech-lab/argo-patterns/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type InjectorTestSuite struct {
	suite.Suite
	store    *store.Store
	injector *Injector
	now      time.Time
}

func TestInjectorTestSuite(t *testing.T) {
	suite.Run(t, new(InjectorTestSuite))
}

func (s *InjectorTestSuite) SetupTest() {
	st, err := store.NewStore(logger.NewNopLogger(), "")
	s.Require().NoError(err)
	s.Require().NoError(st.Initialize())

	s.store = st
	s.now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	s.injector = NewInjector(DefaultConfig(), st, logger.NewNopLogger())
	s.injector.now = func() time.Time { return s.now }
}

func (s *InjectorTestSuite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
}

func testKey() types.PatternKey {
	return types.PatternKey{
		PatternName:   "reversal",
		Regime:        types.RegimeExtremeFear,
		VolumeProfile: types.VolumeProfileNormal,
		RSICondition:  types.RSIConditionOversold,
	}
}

// seedRecord persists a record so memory selection can join against it.
func (s *InjectorTestSuite) seedRecord(record types.PatternRecord) {
	trade := types.PatternTrade{
		Key:      record.Key,
		PnLPct:   1.0,
		HoldDays: 1,
		ExitDate: s.now,
	}
	s.Require().NoError(s.store.SavePatternUpdate(record, trade))
}

func mediumRecord(key types.PatternKey) types.PatternRecord {
	record := types.NewPatternRecord(key)
	record.TotalTrades = 15
	record.WinningTrades = 10
	record.LosingTrades = 5
	record.WinRate = 10.0 / 15.0
	record.AvgWinPct = 4.0
	record.AvgLossPct = 2.0
	record.Expectancy = record.WinRate*4.0 - (1-record.WinRate)*2.0
	record.ConfidenceLevel = types.ConfidenceLevelMedium
	record.LastTradeDate = time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)

	return record
}

func (s *InjectorTestSuite) TestInjectMediumConfidenceRecord() {
	record := mediumRecord(testKey())
	s.seedRecord(record)

	injected, err := s.injector.Inject(record)
	s.Require().NoError(err)
	s.Require().True(injected.IsSome())

	memory := injected.Unwrap()
	s.Equal(record.Key, memory.Key)
	s.Equal(15, memory.TradesCount)
	s.Contains(memory.Content, "reversal")
	s.Contains(memory.Content, "extreme_fear")
	s.Contains(memory.Content, "67% win rate")
	s.Greater(memory.RelevanceScore, 0.0)
	s.LessOrEqual(memory.RelevanceScore, 1.0)
}

func (s *InjectorTestSuite) TestInjectSkipsLowConfidence() {
	record := mediumRecord(testKey())
	record.TotalTrades = 5
	record.ConfidenceLevel = types.ConfidenceLevelLow

	injected, err := s.injector.Inject(record)
	s.Require().NoError(err)
	s.True(injected.IsNone())
}

func (s *InjectorTestSuite) TestInjectSkipsRetiredPattern() {
	record := mediumRecord(testKey())
	record.Status = types.PatternStatusRetired

	injected, err := s.injector.Inject(record)
	s.Require().NoError(err)
	s.True(injected.IsNone())
}

func (s *InjectorTestSuite) TestSelectReturnsInjectedMemories() {
	record := mediumRecord(testKey())
	s.seedRecord(record)

	_, err := s.injector.Inject(record)
	s.Require().NoError(err)

	memories, err := s.injector.Select(testKey())
	s.Require().NoError(err)
	s.Require().Len(memories, 1)
	s.Equal(types.MemoryStatusActive, memories[0].Status)
}

func (s *InjectorTestSuite) TestSelectExpiresStaleMemoriesLazily() {
	record := mediumRecord(testKey())
	s.seedRecord(record)

	// Injected 40 days ago, selected today: expired on the way out.
	s.now = s.now.AddDate(0, 0, -40)
	_, err := s.injector.Inject(record)
	s.Require().NoError(err)

	s.now = s.now.AddDate(0, 0, 40)

	memories, err := s.injector.Select(testKey())
	s.Require().NoError(err)
	s.Empty(memories)
}

func (s *InjectorTestSuite) TestSelectCapsAtFive() {
	record := mediumRecord(testKey())
	s.seedRecord(record)

	for i := 0; i < 8; i++ {
		_, err := s.injector.Inject(record)
		s.Require().NoError(err)
	}

	memories, err := s.injector.Select(testKey())
	s.Require().NoError(err)
	s.Len(memories, DefaultConfig().MaxInjected)
}

func (s *InjectorTestSuite) TestConfigurableCapAndTTL() {
	config := Config{MaxInjected: 2, TTLDays: 10}

	injector := NewInjector(config, s.store, logger.NewNopLogger())
	injector.now = func() time.Time { return s.now }

	record := mediumRecord(testKey())
	s.seedRecord(record)

	for i := 0; i < 4; i++ {
		_, err := injector.Inject(record)
		s.Require().NoError(err)
	}

	memories, err := injector.Select(testKey())
	s.Require().NoError(err)
	s.Len(memories, 2)

	// Fifteen days later everything is past the shortened TTL.
	s.now = s.now.AddDate(0, 0, 15)

	memories, err = injector.Select(testKey())
	s.Require().NoError(err)
	s.Empty(memories)
}

func (s *InjectorTestSuite) TestSelectRanksByRelevance() {
	key := testKey()

	weak := mediumRecord(key)
	weak.WinRate = 0.4
	weak.Expectancy = 0.2
	s.seedRecord(weak)

	_, err := s.injector.Inject(weak)
	s.Require().NoError(err)

	strong := mediumRecord(key)
	strong.TotalTrades = 40
	strong.WinningTrades = 30
	strong.LosingTrades = 10
	strong.WinRate = 0.75
	strong.Expectancy = 2.5
	strong.ConfidenceLevel = types.ConfidenceLevelHigh
	s.seedRecord(strong)

	_, err = s.injector.Inject(strong)
	s.Require().NoError(err)

	memories, err := s.injector.Select(key)
	s.Require().NoError(err)
	s.Require().Len(memories, 2)
	s.Equal(40, memories[0].TradesCount)
	s.GreaterOrEqual(memories[0].RelevanceScore, memories[1].RelevanceScore)
}

func TestRelevanceBounds(t *testing.T) {
	record := types.NewPatternRecord(types.PatternKey{
		PatternName:   "momentum",
		Regime:        types.RegimeNeutral,
		VolumeProfile: types.VolumeProfileHigh,
		RSICondition:  types.RSIConditionNeutral,
	})

	// Zeroed record scores zero.
	assert.Equal(t, 0.0, relevance(record))

	// Saturated record stays within [0,1].
	record.WinRate = 1.0
	record.Expectancy = 20.0
	record.TotalTrades = 500
	assert.Equal(t, 1.0, relevance(record))

	// Negative expectancy never drags the score below zero.
	record.WinRate = 0
	record.Expectancy = -10
	record.TotalTrades = 0
	assert.Equal(t, 0.0, relevance(record))
}
