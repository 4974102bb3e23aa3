package search

import (
	"fmt"
	"time"

	"github.com/procsift/procsift/internal/engine"
)

// Scaling thresholds. Advisory only; nothing acts on them automatically.
const (
	recordThreshold  = 100_000
	latencyThreshold = 500 * time.Millisecond
)

// Recommendation grades whether the active backend still fits the data.
type Recommendation struct {
	Level   string   `json:"level"`   // excellent, adequate, suboptimal
	Urgency string   `json:"urgency"` // none, medium, high
	Message string   `json:"message"`
	Actions []string `json:"actions,omitempty"`
}

// Recommend evaluates backend fit from observed statistics.
func Recommend(t engine.Type, stats engine.Statistics) Recommendation {
	if stats.AvgQueryLatency > latencyThreshold {
		return Recommendation{
			Level:   "suboptimal",
			Urgency: "high",
			Message: fmt.Sprintf("average query latency %s exceeds %s", stats.AvgQueryLatency.Round(time.Millisecond), latencyThreshold),
			Actions: []string{
				"review filter selectivity and result page sizes",
				"move the index to faster storage",
				"switch to a distributed backend",
			},
		}
	}

	if stats.RecordCount > recordThreshold && t == engine.TypeSQLite {
		return Recommendation{
			Level:   "adequate",
			Urgency: "medium",
			Message: fmt.Sprintf("%d records exceeds the comfortable embedded range", stats.RecordCount),
			Actions: []string{
				"enable the redisearch backend for this corpus size",
			},
		}
	}

	return Recommendation{
		Level:   "excellent",
		Urgency: "none",
		Message: fmt.Sprintf("%s is well suited to %d records", t, stats.RecordCount),
	}
}
