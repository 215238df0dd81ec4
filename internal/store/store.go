// Package store persists positions, pattern records, pattern trades and
// pattern memories in DuckDB. It provides the atomic per-entity
// read-modify-write and append semantics the core requires; serialization
// across writers of the same pattern key is the statistics engine's contract.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-patterns/internal/logger"
	"github.com/rxtech-lab/argo-patterns/internal/types"
	"github.com/rxtech-lab/argo-patterns/pkg/errors"
	"go.uber.org/zap"
)

// Store wraps the DuckDB connection and query builder.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewStore opens a DuckDB database at path. An empty path opens an in-memory
// database.
func NewStore(log *logger.Logger, path string) (*Store, error) {
	// go-duckdb v1.8.x opens an in-memory database for an empty DSN; the
	// ":memory:" alias is only understood by newer driver versions.
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to open database", err)
	}

	return &Store{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Initialize creates the tables and sequences used by the engine.
func (s *Store) Initialize() error {
	// Sequence orders pattern trades within identical exit dates.
	_, err := s.db.Exec(`CREATE SEQUENCE IF NOT EXISTS pattern_trade_seq`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to create sequence", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS positions (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			entry_date TIMESTAMP NOT NULL,
			entry_price DOUBLE NOT NULL,
			exit_date TIMESTAMP,
			exit_price DOUBLE,
			quantity DOUBLE NOT NULL,
			position_size_dollars DOUBLE,
			stop_loss DOUBLE,
			target_price DOUBLE,
			pattern_key TEXT,
			regime TEXT NOT NULL,
			status TEXT NOT NULL,
			pnl_dollars DOUBLE,
			pnl_pct DOUBLE,
			hold_days INTEGER,
			max_gain_pct DOUBLE,
			max_drawdown_pct DOUBLE,
			exit_reason TEXT
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to create positions table", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS pattern_records (
			pattern_name TEXT NOT NULL,
			regime TEXT NOT NULL,
			volume_profile TEXT NOT NULL,
			rsi_condition TEXT NOT NULL,
			total_trades INTEGER NOT NULL,
			winning_trades INTEGER NOT NULL,
			losing_trades INTEGER NOT NULL,
			win_rate DOUBLE NOT NULL,
			avg_return_pct DOUBLE NOT NULL,
			avg_hold_days DOUBLE NOT NULL,
			total_pnl DOUBLE NOT NULL,
			avg_win_pct DOUBLE NOT NULL,
			avg_loss_pct DOUBLE NOT NULL,
			expectancy DOUBLE NOT NULL,
			recent_win_rate DOUBLE NOT NULL,
			momentum DOUBLE NOT NULL,
			momentum_state TEXT NOT NULL,
			confidence_level TEXT NOT NULL,
			status TEXT NOT NULL,
			last_trade_date TIMESTAMP,
			PRIMARY KEY (pattern_name, regime, volume_profile, rsi_condition)
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to create pattern_records table", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS pattern_trades (
			seq BIGINT DEFAULT nextval('pattern_trade_seq'),
			pattern_name TEXT NOT NULL,
			regime TEXT NOT NULL,
			volume_profile TEXT NOT NULL,
			rsi_condition TEXT NOT NULL,
			pnl_pct DOUBLE NOT NULL,
			pnl_dollars DOUBLE NOT NULL,
			hold_days INTEGER NOT NULL,
			exit_date TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to create pattern_trades table", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS pattern_memories (
			id TEXT PRIMARY KEY,
			pattern_name TEXT NOT NULL,
			regime TEXT NOT NULL,
			volume_profile TEXT NOT NULL,
			rsi_condition TEXT NOT NULL,
			content TEXT NOT NULL,
			relevance_score DOUBLE NOT NULL,
			trades_count INTEGER NOT NULL,
			win_rate DOUBLE NOT NULL,
			expectancy DOUBLE NOT NULL,
			injection_date TIMESTAMP NOT NULL,
			status TEXT NOT NULL
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to create pattern_memories table", err)
	}

	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Cleanup drops all tables and reinitializes the schema.
func (s *Store) Cleanup() error {
	drops := []string{
		`DROP TABLE IF EXISTS pattern_memories`,
		`DROP TABLE IF EXISTS pattern_trades`,
		`DROP TABLE IF EXISTS pattern_records`,
		`DROP TABLE IF EXISTS positions`,
		`DROP SEQUENCE IF EXISTS pattern_trade_seq`,
	}

	for _, drop := range drops {
		if _, err := s.db.Exec(drop); err != nil {
			return errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to drop tables", err)
		}
	}

	return s.Initialize()
}

// InsertPosition persists a newly opened position.
func (s *Store) InsertPosition(p types.Position) error {
	var patternKey any
	if p.PatternKey.IsSome() {
		patternKey = p.PatternKey.Unwrap().String()
	}

	insert := s.sq.
		Insert("positions").
		Columns(
			"id", "symbol", "entry_date", "entry_price", "exit_date", "exit_price",
			"quantity", "position_size_dollars", "stop_loss", "target_price",
			"pattern_key", "regime", "status", "pnl_dollars", "pnl_pct",
			"hold_days", "max_gain_pct", "max_drawdown_pct", "exit_reason",
		).
		Values(
			p.ID, p.Symbol, p.EntryDate, p.EntryPrice, nil, nil,
			p.Quantity, p.PositionSizeDollars, p.StopLoss, p.TargetPrice,
			patternKey, p.Regime, p.Status, p.PnLDollars, p.PnLPct,
			p.HoldDays, p.MaxGainPct, p.MaxDrawdownPct, p.ExitReason,
		).
		RunWith(s.db)

	if _, err := insert.Exec(); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to insert position", err)
	}

	return nil
}

// GetPosition fetches a position by ID.
func (s *Store) GetPosition(id string) (optional.Option[types.Position], error) {
	query := s.sq.
		Select(positionColumns()...).
		From("positions").
		Where(squirrel.Eq{"id": id}).
		RunWith(s.db)

	position, err := scanPosition(query.QueryRow())
	if err == sql.ErrNoRows {
		return optional.None[types.Position](), nil
	}

	if err != nil {
		return optional.None[types.Position](), errors.Wrap(errors.ErrCodeQueryFailed, "failed to query position", err)
	}

	return optional.Some(position), nil
}

// UpdatePositionClose writes the terminal exit fields of a closed position.
func (s *Store) UpdatePositionClose(p types.Position) error {
	if p.ExitDate.IsNone() || p.ExitPrice.IsNone() {
		return errors.New(errors.ErrCodeMissingParameter, "closed position requires exit date and price")
	}

	update := s.sq.
		Update("positions").
		Set("exit_date", p.ExitDate.Unwrap()).
		Set("exit_price", p.ExitPrice.Unwrap()).
		Set("status", p.Status).
		Set("pnl_dollars", p.PnLDollars).
		Set("pnl_pct", p.PnLPct).
		Set("hold_days", p.HoldDays).
		Set("exit_reason", p.ExitReason).
		Where(squirrel.Eq{"id": p.ID}).
		RunWith(s.db)

	if _, err := update.Exec(); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to update closed position", err)
	}

	return nil
}

// UpdatePositionMarks updates the unrealized excursion tracking of an open
// position.
func (s *Store) UpdatePositionMarks(id string, maxGainPct, maxDrawdownPct float64) error {
	update := s.sq.
		Update("positions").
		Set("max_gain_pct", maxGainPct).
		Set("max_drawdown_pct", maxDrawdownPct).
		Where(squirrel.Eq{"id": id, "status": types.PositionStatusOpen}).
		RunWith(s.db)

	if _, err := update.Exec(); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to update position marks", err)
	}

	return nil
}

// ListOpenPositions returns all open positions ordered by symbol.
func (s *Store) ListOpenPositions() ([]types.Position, error) {
	query := s.sq.
		Select(positionColumns()...).
		From("positions").
		Where(squirrel.Eq{"status": types.PositionStatusOpen}).
		OrderBy("symbol").
		RunWith(s.db)

	rows, err := query.Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query open positions", err)
	}
	defer rows.Close()

	var positions []types.Position

	for rows.Next() {
		position, err := scanPosition(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan position", err)
		}

		positions = append(positions, position)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating positions", err)
	}

	return positions, nil
}

// CountOpenPositions returns the number of open positions.
func (s *Store) CountOpenPositions() (int, error) {
	query := s.sq.
		Select("COUNT(*)").
		From("positions").
		Where(squirrel.Eq{"status": types.PositionStatusOpen}).
		RunWith(s.db)

	var count int
	if err := query.QueryRow().Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count open positions", err)
	}

	return count, nil
}

// GetPatternRecord fetches the aggregate record for a pattern key.
func (s *Store) GetPatternRecord(key types.PatternKey) (optional.Option[types.PatternRecord], error) {
	query := s.sq.
		Select(
			"total_trades", "winning_trades", "losing_trades", "win_rate",
			"avg_return_pct", "avg_hold_days", "total_pnl", "avg_win_pct",
			"avg_loss_pct", "expectancy", "recent_win_rate", "momentum",
			"momentum_state", "confidence_level", "status", "last_trade_date",
		).
		From("pattern_records").
		Where(keyClause(key)).
		RunWith(s.db)

	record := types.PatternRecord{Key: key}

	var lastTradeDate sql.NullTime

	err := query.QueryRow().Scan(
		&record.TotalTrades,
		&record.WinningTrades,
		&record.LosingTrades,
		&record.WinRate,
		&record.AvgReturnPct,
		&record.AvgHoldDays,
		&record.TotalPnL,
		&record.AvgWinPct,
		&record.AvgLossPct,
		&record.Expectancy,
		&record.RecentWinRate,
		&record.Momentum,
		&record.MomentumState,
		&record.ConfidenceLevel,
		&record.Status,
		&lastTradeDate,
	)
	if err == sql.ErrNoRows {
		return optional.None[types.PatternRecord](), nil
	}

	if err != nil {
		return optional.None[types.PatternRecord](), errors.Wrap(errors.ErrCodeQueryFailed, "failed to query pattern record", err)
	}

	if lastTradeDate.Valid {
		record.LastTradeDate = lastTradeDate.Time
	}

	return optional.Some(record), nil
}

// SavePatternUpdate atomically writes the updated aggregate record and
// appends the trade that produced it. Both land in one transaction so a
// record can never disagree with its trade log.
func (s *Store) SavePatternUpdate(record types.PatternRecord, trade types.PatternTrade) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to begin transaction", err)
	}

	deleteOld := s.sq.
		Delete("pattern_records").
		Where(keyClause(record.Key)).
		RunWith(tx)

	if _, err = deleteOld.Exec(); err != nil {
		tx.Rollback()

		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to replace pattern record", err)
	}

	insertRecord := s.sq.
		Insert("pattern_records").
		Columns(
			"pattern_name", "regime", "volume_profile", "rsi_condition",
			"total_trades", "winning_trades", "losing_trades", "win_rate",
			"avg_return_pct", "avg_hold_days", "total_pnl", "avg_win_pct",
			"avg_loss_pct", "expectancy", "recent_win_rate", "momentum",
			"momentum_state", "confidence_level", "status", "last_trade_date",
		).
		Values(
			record.Key.PatternName, record.Key.Regime, record.Key.VolumeProfile, record.Key.RSICondition,
			record.TotalTrades, record.WinningTrades, record.LosingTrades, record.WinRate,
			record.AvgReturnPct, record.AvgHoldDays, record.TotalPnL, record.AvgWinPct,
			record.AvgLossPct, record.Expectancy, record.RecentWinRate, record.Momentum,
			record.MomentumState, record.ConfidenceLevel, record.Status, record.LastTradeDate,
		).
		RunWith(tx)

	if _, err = insertRecord.Exec(); err != nil {
		tx.Rollback()

		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to insert pattern record", err)
	}

	insertTrade := s.sq.
		Insert("pattern_trades").
		Columns(
			"pattern_name", "regime", "volume_profile", "rsi_condition",
			"pnl_pct", "pnl_dollars", "hold_days", "exit_date",
		).
		Values(
			trade.Key.PatternName, trade.Key.Regime, trade.Key.VolumeProfile, trade.Key.RSICondition,
			trade.PnLPct, trade.PnLDollars, trade.HoldDays, trade.ExitDate,
		).
		RunWith(tx)

	if _, err = insertTrade.Exec(); err != nil {
		tx.Rollback()

		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to insert pattern trade", err)
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to commit pattern update", err)
	}

	return nil
}

// SetPatternStatus updates only the status of a pattern record.
func (s *Store) SetPatternStatus(key types.PatternKey, status types.PatternStatus) error {
	update := s.sq.
		Update("pattern_records").
		Set("status", status).
		Where(keyClause(key)).
		RunWith(s.db)

	if _, err := update.Exec(); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to update pattern status", err)
	}

	return nil
}

// RecentTradeOutcomes returns the pnl_pct of the most recent closings of a
// pattern, newest first, capped at limit.
func (s *Store) RecentTradeOutcomes(key types.PatternKey, limit int) ([]float64, error) {
	query := s.sq.
		Select("pnl_pct").
		From("pattern_trades").
		Where(keyClause(key)).
		OrderBy("exit_date DESC", "seq DESC").
		Limit(uint64(limit)).
		RunWith(s.db)

	rows, err := query.Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query recent trades", err)
	}
	defer rows.Close()

	var outcomes []float64

	for rows.Next() {
		var pnlPct float64
		if err := rows.Scan(&pnlPct); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan trade outcome", err)
		}

		outcomes = append(outcomes, pnlPct)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating trade outcomes", err)
	}

	return outcomes, nil
}

// ListPatternRecords returns all pattern records ordered by key.
func (s *Store) ListPatternRecords() ([]types.PatternRecord, error) {
	query := s.sq.
		Select(
			"pattern_name", "regime", "volume_profile", "rsi_condition",
			"total_trades", "winning_trades", "losing_trades", "win_rate",
			"avg_return_pct", "avg_hold_days", "total_pnl", "avg_win_pct",
			"avg_loss_pct", "expectancy", "recent_win_rate", "momentum",
			"momentum_state", "confidence_level", "status", "last_trade_date",
		).
		From("pattern_records").
		OrderBy("pattern_name", "regime", "volume_profile", "rsi_condition").
		RunWith(s.db)

	rows, err := query.Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query pattern records", err)
	}
	defer rows.Close()

	var records []types.PatternRecord

	for rows.Next() {
		var record types.PatternRecord

		var lastTradeDate sql.NullTime

		err := rows.Scan(
			&record.Key.PatternName,
			&record.Key.Regime,
			&record.Key.VolumeProfile,
			&record.Key.RSICondition,
			&record.TotalTrades,
			&record.WinningTrades,
			&record.LosingTrades,
			&record.WinRate,
			&record.AvgReturnPct,
			&record.AvgHoldDays,
			&record.TotalPnL,
			&record.AvgWinPct,
			&record.AvgLossPct,
			&record.Expectancy,
			&record.RecentWinRate,
			&record.Momentum,
			&record.MomentumState,
			&record.ConfidenceLevel,
			&record.Status,
			&lastTradeDate,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan pattern record", err)
		}

		if lastTradeDate.Valid {
			record.LastTradeDate = lastTradeDate.Time
		}

		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating pattern records", err)
	}

	return records, nil
}

// InsertPatternMemory persists a newly injected memory.
func (s *Store) InsertPatternMemory(m types.PatternMemory) error {
	insert := s.sq.
		Insert("pattern_memories").
		Columns(
			"id", "pattern_name", "regime", "volume_profile", "rsi_condition",
			"content", "relevance_score", "trades_count", "win_rate",
			"expectancy", "injection_date", "status",
		).
		Values(
			m.ID, m.Key.PatternName, m.Key.Regime, m.Key.VolumeProfile, m.Key.RSICondition,
			m.Content, m.RelevanceScore, m.TradesCount, m.WinRate,
			m.Expectancy, m.InjectionDate, m.Status,
		).
		RunWith(s.db)

	if _, err := insert.Exec(); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to insert pattern memory", err)
	}

	return nil
}

// ExpireMemoriesBefore marks ACTIVE memories injected before cutoff as
// EXPIRED. Returns the number of memories expired.
func (s *Store) ExpireMemoriesBefore(key types.PatternKey, cutoff time.Time) (int64, error) {
	update := s.sq.
		Update("pattern_memories").
		Set("status", types.MemoryStatusExpired).
		Where(keyClause(key)).
		Where(squirrel.Eq{"status": types.MemoryStatusActive}).
		Where(squirrel.Lt{"injection_date": cutoff}).
		RunWith(s.db)

	result, err := update.Exec()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeWriteFailed, "failed to expire memories", err)
	}

	expired, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count expired memories", err)
	}

	return expired, nil
}

// SelectActiveMemories returns up to limit ACTIVE memories for a key whose
// source record is ACTIVE with at least MEDIUM confidence, ranked by
// relevance descending with recency of the record's last trade as the
// tie-break.
func (s *Store) SelectActiveMemories(key types.PatternKey, limit int) ([]types.PatternMemory, error) {
	// Squirrel has no join-with-composite-using support worth fighting;
	// raw SQL keeps the ranking explicit.
	query := `
		SELECT
			m.id, m.content, m.relevance_score, m.trades_count,
			m.win_rate, m.expectancy, m.injection_date, m.status
		FROM pattern_memories m
		JOIN pattern_records r
			ON r.pattern_name = m.pattern_name
			AND r.regime = m.regime
			AND r.volume_profile = m.volume_profile
			AND r.rsi_condition = m.rsi_condition
		WHERE m.pattern_name = ? AND m.regime = ? AND m.volume_profile = ? AND m.rsi_condition = ?
			AND m.status = ?
			AND r.status = ?
			AND r.confidence_level IN (?, ?)
		ORDER BY m.relevance_score DESC, r.last_trade_date DESC, m.injection_date DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query,
		key.PatternName, key.Regime, key.VolumeProfile, key.RSICondition,
		types.MemoryStatusActive,
		types.PatternStatusActive,
		types.ConfidenceLevelMedium, types.ConfidenceLevelHigh,
		limit,
	)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query memories", err)
	}
	defer rows.Close()

	var memories []types.PatternMemory

	for rows.Next() {
		memory := types.PatternMemory{Key: key}

		err := rows.Scan(
			&memory.ID,
			&memory.Content,
			&memory.RelevanceScore,
			&memory.TradesCount,
			&memory.WinRate,
			&memory.Expectancy,
			&memory.InjectionDate,
			&memory.Status,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan memory", err)
		}

		memories = append(memories, memory)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating memories", err)
	}

	return memories, nil
}

// PatternSummaries returns the monitoring view of every pattern record.
func (s *Store) PatternSummaries() ([]types.PatternSummary, error) {
	records, err := s.ListPatternRecords()
	if err != nil {
		return nil, err
	}

	summaries := make([]types.PatternSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, types.PatternSummary{
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

	return summaries, nil
}

// ExportParquet writes all tables to Parquet files under dir for audit.
func (s *Store) ExportParquet(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to create export directory", err)
	}

	tables := []string{"positions", "pattern_records", "pattern_trades", "pattern_memories"}
	for _, table := range tables {
		path := filepath.Join(dir, table+".parquet")

		_, err := s.db.Exec(fmt.Sprintf(`COPY %s TO '%s' (FORMAT PARQUET)`, table, path))
		if err != nil {
			return errors.Wrapf(errors.ErrCodeExportFailed, err, "failed to export %s to Parquet", table)
		}
	}

	s.logger.Info("Exported audit tables to Parquet",
		zap.String("dir", dir),
		zap.Int("tables", len(tables)),
	)

	return nil
}

// positionColumns is the select list matching scanPosition.
func positionColumns() []string {
	return []string{
		"id", "symbol", "entry_date", "entry_price", "exit_date", "exit_price",
		"quantity", "position_size_dollars", "stop_loss", "target_price",
		"pattern_key", "regime", "status", "pnl_dollars", "pnl_pct",
		"hold_days", "max_gain_pct", "max_drawdown_pct", "exit_reason",
	}
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (types.Position, error) {
	var position types.Position

	var (
		exitDate   sql.NullTime
		exitPrice  sql.NullFloat64
		patternKey sql.NullString
	)

	err := row.Scan(
		&position.ID,
		&position.Symbol,
		&position.EntryDate,
		&position.EntryPrice,
		&exitDate,
		&exitPrice,
		&position.Quantity,
		&position.PositionSizeDollars,
		&position.StopLoss,
		&position.TargetPrice,
		&patternKey,
		&position.Regime,
		&position.Status,
		&position.PnLDollars,
		&position.PnLPct,
		&position.HoldDays,
		&position.MaxGainPct,
		&position.MaxDrawdownPct,
		&position.ExitReason,
	)
	if err != nil {
		return types.Position{}, err
	}

	if exitDate.Valid {
		position.ExitDate = optional.Some(exitDate.Time)
	} else {
		position.ExitDate = optional.None[time.Time]()
	}

	if exitPrice.Valid {
		position.ExitPrice = optional.Some(exitPrice.Float64)
	} else {
		position.ExitPrice = optional.None[float64]()
	}

	if patternKey.Valid && patternKey.String != "" {
		key, parseErr := types.ParsePatternKey(patternKey.String)
		if parseErr != nil {
			return types.Position{}, parseErr
		}

		position.PatternKey = optional.Some(key)
	} else {
		position.PatternKey = optional.None[types.PatternKey]()
	}

	return position, nil
}

// keyClause builds the WHERE clause matching one composite pattern key.
func keyClause(key types.PatternKey) squirrel.Eq {
	return squirrel.Eq{
		"pattern_name":   key.PatternName,
		"regime":         key.Regime,
		"volume_profile": key.VolumeProfile,
		"rsi_condition":  key.RSICondition,
	}
}
