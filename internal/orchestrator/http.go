package orchestrator

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/randomizedcoder/go-obd-telemetry/internal/snapshot"
	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
)

// snapshotView is the JSON shape served at /snapshot. Metrics are keyed by
// their log column names.
type snapshotView struct {
	Seq       uint64             `json:"seq"`
	Time      time.Time          `json:"time"`
	Mode      string             `json:"mode"`
	Connected bool               `json:"connected"`
	Logging   bool               `json:"logging"`
	Metrics   map[string]float64 `json:"metrics"`

	Diagnosis struct {
		Rule     string `json:"rule"`
		Severity string `json:"severity"`
		Advice   string `json:"advice"`
	} `json:"diagnosis"`

	Extras struct {
		LPer100Km  float64 `json:"l_per_100km"`
		HPPerTonne float64 `json:"hp_per_tonne"`
	} `json:"extras"`

	Fuel struct {
		TotalLiters float64 `json:"total_liters"`
		Avg1s       float64 `json:"avg_1s_lph"`
		Avg30s      float64 `json:"avg_30s_lph"`
		Avg60s      float64 `json:"avg_60s_lph"`
		Avg300s     float64 `json:"avg_300s_lph"`
	} `json:"fuel"`

	LeaderboardSeconds []float64 `json:"leaderboard_seconds"`

	Ghost *ghostView `json:"ghost,omitempty"`
}

type ghostView struct {
	Metrics map[string]float64 `json:"metrics"`
	Emitted int64              `json:"emitted"`
	Total   int64              `json:"total"`
}

func metricsMap(m telemetry.DerivedMetrics) map[string]float64 {
	values := m.Values()
	out := make(map[string]float64, telemetry.FieldCount)
	for i, name := range telemetry.FieldNames {
		out[name] = values[i]
	}
	return out
}

func newSnapshotView(s *snapshot.Snapshot, g *snapshot.Ghost) snapshotView {
	v := snapshotView{
		Seq:       s.Seq,
		Time:      s.Time,
		Mode:      s.Mode.String(),
		Connected: s.Connected,
		Logging:   s.Logging,
		Metrics:   metricsMap(s.Metrics),
	}
	v.Diagnosis.Rule = s.Diagnosis.Rule
	v.Diagnosis.Severity = s.Diagnosis.Severity.String()
	v.Diagnosis.Advice = s.Diagnosis.Advice
	v.Extras.LPer100Km = s.Extras.LPer100Km
	v.Extras.HPPerTonne = s.Extras.HPPerTonne
	v.Fuel.TotalLiters = s.Fuel.TotalLiters
	v.Fuel.Avg1s = s.Fuel.Avg1s
	v.Fuel.Avg30s = s.Fuel.Avg30s
	v.Fuel.Avg60s = s.Fuel.Avg60s
	v.Fuel.Avg300s = s.Fuel.Avg300s

	v.LeaderboardSeconds = make([]float64, 0, len(s.Leaderboard))
	for _, d := range s.Leaderboard {
		v.LeaderboardSeconds = append(v.LeaderboardSeconds, d.Seconds())
	}

	if g != nil {
		v.Ghost = &ghostView{Metrics: metricsMap(g.Metrics), Emitted: g.Emitted, Total: g.Total}
	}
	return v
}

// snapshotHandler serves the latest frame as JSON, or 503 before the
// first frame.
func (o *Orchestrator) snapshotHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := o.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		if s == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"error": "no frames yet"})
			return
		}
		if err := json.NewEncoder(w).Encode(newSnapshotView(s, o.Ghost())); err != nil {
			o.logger.Warn("snapshot_encode_failed", "error", err)
		}
	})
}
