package search

import (
	"testing"
	"time"

	"github.com/procsift/procsift/internal/engine"
)

func TestRecommend(t *testing.T) {
	tests := []struct {
		name    string
		typ     engine.Type
		stats   engine.Statistics
		level   string
		urgency string
	}{
		{
			"small embedded corpus",
			engine.TypeSQLite,
			engine.Statistics{RecordCount: 5_000, AvgQueryLatency: 8 * time.Millisecond},
			"excellent", "none",
		},
		{
			"large embedded corpus",
			engine.TypeSQLite,
			engine.Statistics{RecordCount: 250_000, AvgQueryLatency: 40 * time.Millisecond},
			"adequate", "medium",
		},
		{
			"large corpus on distributed backend",
			engine.TypeRediSearch,
			engine.Statistics{RecordCount: 250_000, AvgQueryLatency: 40 * time.Millisecond},
			"excellent", "none",
		},
		{
			"slow queries dominate",
			engine.TypeSQLite,
			engine.Statistics{RecordCount: 5_000, AvgQueryLatency: 900 * time.Millisecond},
			"suboptimal", "high",
		},
		{
			"exactly at record threshold",
			engine.TypeSQLite,
			engine.Statistics{RecordCount: 100_000},
			"excellent", "none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Recommend(tt.typ, tt.stats)
			if rec.Level != tt.level {
				t.Errorf("expected level %q, got %q", tt.level, rec.Level)
			}
			if rec.Urgency != tt.urgency {
				t.Errorf("expected urgency %q, got %q", tt.urgency, rec.Urgency)
			}
		})
	}
}
