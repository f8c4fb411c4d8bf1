// internal/metrics/summary.go
// Package metrics derives cross-model comparisons from the per-model
// performance figures reported at the end of a run.
package metrics

import (
	"math"
	"sort"

	"github.com/mwiater/medgen/internal/stream"
)

// Summary ranks the models of one run.
type Summary struct {
	Models int `json:"models" yaml:"models"`

	FastestTTFT Leader `json:"fastest_ttft" yaml:"fastest_ttft"`
	HighestTPS  Leader `json:"highest_tps" yaml:"highest_tps"`
	LowestITL   Leader `json:"lowest_itl" yaml:"lowest_itl"`
	MostTokens  Leader `json:"most_tokens" yaml:"most_tokens"`

	TTFT      RunningStat `json:"ttft_ms" yaml:"ttft_ms"`
	TPS       RunningStat `json:"tps" yaml:"tps"`
	TotalTime RunningStat `json:"total_time_ms" yaml:"total_time_ms"`
}

// Leader names the model holding the best value of one metric.
type Leader struct {
	Model string  `json:"model,omitempty" yaml:"model,omitempty"`
	Value float64 `json:"value" yaml:"value"`
}

// RunningStat holds the values for online calculation of mean, variance and stddev.
type RunningStat struct {
	Count int64   `json:"count" yaml:"count"`
	Mean  float64 `json:"mean" yaml:"mean"`
	M2    float64 `json:"-" yaml:"-"` // Sum of squares of differences from the current mean
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
}

// StdDev returns the sample standard deviation.
func (rs RunningStat) StdDev() float64 {
	if rs.Count < 2 {
		return 0
	}
	return math.Sqrt(rs.M2 / float64(rs.Count-1))
}

// Summarize ranks every model that reported metrics. Zero values are treated
// as unreported and never win a lower-is-better ranking.
func Summarize(byModel map[string]stream.Metrics) Summary {
	names := make([]string, 0, len(byModel))
	for name := range byModel {
		names = append(names, name)
	}
	sort.Strings(names)

	s := Summary{Models: len(names)}
	for _, name := range names {
		m := byModel[name]
		lower(&s.FastestTTFT, name, m.TTFTMillis)
		higher(&s.HighestTPS, name, m.TokensPerSecond)
		lower(&s.LowestITL, name, m.ITLAvgMillis)
		higher(&s.MostTokens, name, float64(m.TotalTokens))

		updateRunningStat(&s.TTFT, m.TTFTMillis)
		updateRunningStat(&s.TPS, m.TokensPerSecond)
		updateRunningStat(&s.TotalTime, m.TotalTimeMillis)
	}
	return s
}

func lower(l *Leader, model string, v float64) {
	if v <= 0 {
		return
	}
	if l.Model == "" || v < l.Value {
		*l = Leader{Model: model, Value: v}
	}
}

func higher(l *Leader, model string, v float64) {
	if v <= 0 {
		return
	}
	if l.Model == "" || v > l.Value {
		*l = Leader{Model: model, Value: v}
	}
}

// updateRunningStat updates a single running statistic using Welford's online algorithm.
func updateRunningStat(rs *RunningStat, value float64) {
	rs.Count++
	if rs.Count == 1 {
		rs.Min = value
		rs.Max = value
	} else {
		if value < rs.Min {
			rs.Min = value
		}
		if value > rs.Max {
			rs.Max = value
		}
	}

	delta := value - rs.Mean
	rs.Mean += delta / float64(rs.Count)
	delta2 := value - rs.Mean
	rs.M2 += delta * delta2
}
