package types

import (
	"time"
)

// MemoryStatus is the lifecycle status of an injected pattern memory.
type MemoryStatus string

const (
	MemoryStatusActive  MemoryStatus = "ACTIVE"
	MemoryStatusExpired MemoryStatus = "EXPIRED"
)

// PatternMemory is one ranked piece of historical pattern performance handed
// to the external analysis collaborator as prior context. It holds a weak
// reference to its source record via the pattern key and snapshots the
// statistics at injection time.
type PatternMemory struct {
	ID  string     `yaml:"id" json:"id"`
	Key PatternKey `yaml:"key" json:"key"`

	// Content is the textual summary injected into the decision context.
	Content string `yaml:"content" json:"content"`

	// RelevanceScore ranks memories for selection, in [0, 1].
	RelevanceScore float64 `yaml:"relevance_score" json:"relevance_score"`

	// Snapshot of the source record's statistics at injection time.
	TradesCount int     `yaml:"trades_count" json:"trades_count"`
	WinRate     float64 `yaml:"win_rate" json:"win_rate"`
	Expectancy  float64 `yaml:"expectancy" json:"expectancy"`

	InjectionDate time.Time    `yaml:"injection_date" json:"injection_date"`
	Status        MemoryStatus `yaml:"status" json:"status"`
}
