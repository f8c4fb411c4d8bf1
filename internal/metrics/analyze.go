// internal/metrics/analyze.go
package metrics

import (
	"math"
	"sort"

	"github.com/mwiater/medgen/internal/stream"
)

// Analysis aggregates the metrics of many runs, one entry per model.
type Analysis struct {
	Runs   int             `json:"runs" yaml:"runs"`
	Models []ModelAnalysis `json:"models" yaml:"models"`
}

// ModelAnalysis is the cross-run view of one model.
type ModelAnalysis struct {
	Model string `json:"model" yaml:"model"`
	Runs  int    `json:"runs" yaml:"runs"`

	TTFT   RunningStat `json:"ttft_ms" yaml:"ttft_ms"`
	TPS    RunningStat `json:"tps" yaml:"tps"`
	TPOT   RunningStat `json:"tpot_ms" yaml:"tpot_ms"`
	ITL    RunningStat `json:"itl_avg_ms" yaml:"itl_avg_ms"`
	Tokens RunningStat `json:"total_tokens" yaml:"total_tokens"`

	Scores Scores `json:"scores" yaml:"scores"`
	Labels Labels `json:"labels" yaml:"labels"`
}

// Scores are normalized to 0-100 against the best model of the analysis.
type Scores struct {
	Throughput float64 `json:"throughput" yaml:"throughput"`
	Latency    float64 `json:"latency" yaml:"latency"`
	Efficiency float64 `json:"efficiency" yaml:"efficiency"`
}

// Labels classify a model for quick reading.
type Labels struct {
	SpeedTier      string `json:"speed_tier" yaml:"speed_tier"`
	LatencyProfile string `json:"latency_profile" yaml:"latency_profile"`
	Stability      string `json:"stability" yaml:"stability"`
}

// Analyze aggregates the per-model metrics of each run. Models are ordered
// by efficiency score, best first.
func Analyze(runs []map[string]stream.Metrics) Analysis {
	byModel := map[string]*ModelAnalysis{}
	for _, run := range runs {
		for name, m := range run {
			ma, ok := byModel[name]
			if !ok {
				ma = &ModelAnalysis{Model: name}
				byModel[name] = ma
			}
			ma.Runs++
			updatePositive(&ma.TTFT, m.TTFTMillis)
			updatePositive(&ma.TPS, m.TokensPerSecond)
			updatePositive(&ma.TPOT, m.TPOTMillis)
			updatePositive(&ma.ITL, m.ITLAvgMillis)
			updatePositive(&ma.Tokens, float64(m.TotalTokens))
		}
	}

	maxTPS, minTTFT := 0.0, math.MaxFloat64
	for _, ma := range byModel {
		maxTPS = math.Max(maxTPS, ma.TPS.Mean)
		if ma.TTFT.Count > 0 && ma.TTFT.Mean < minTTFT {
			minTTFT = ma.TTFT.Mean
		}
	}

	a := Analysis{Runs: len(runs)}
	multiModel := len(byModel) > 1
	for _, ma := range byModel {
		switch {
		case !multiModel:
			ma.Scores.Throughput = 100
		case maxTPS > 0:
			ma.Scores.Throughput = clampFloat(ma.TPS.Mean/maxTPS*100, 0, 100)
		}
		switch {
		case !multiModel || ma.TTFT.Count == 0:
			ma.Scores.Latency = 100
		default:
			ma.Scores.Latency = clampFloat(minTTFT/ma.TTFT.Mean*100, 0, 100)
		}
		ma.Scores.Efficiency = 0.6*ma.Scores.Throughput + 0.4*ma.Scores.Latency

		relative := 1.0
		if maxTPS > 0 {
			relative = ma.TPS.Mean / maxTPS
		}
		ma.Labels = Labels{
			SpeedTier:      classifySpeedTier(relative),
			LatencyProfile: classifyLatencyProfile(ma.TTFT.Mean),
			Stability:      classifyStability(ma.TPS.StdDev(), ma.TPS.Mean),
		}
		a.Models = append(a.Models, *ma)
	}

	sort.Slice(a.Models, func(i, j int) bool {
		if a.Models[i].Scores.Efficiency != a.Models[j].Scores.Efficiency {
			return a.Models[i].Scores.Efficiency > a.Models[j].Scores.Efficiency
		}
		return a.Models[i].Model < a.Models[j].Model
	})
	return a
}

// updatePositive skips zero values, which mark a figure the backend did not report.
func updatePositive(rs *RunningStat, value float64) {
	if value > 0 {
		updateRunningStat(rs, value)
	}
}

// classifySpeedTier categorizes a model's throughput relative to the fastest model.
func classifySpeedTier(relative float64) string {
	switch {
	case relative >= 0.75:
		return "top"
	case relative >= 0.4:
		return "mid"
	default:
		return "slow"
	}
}

// classifyLatencyProfile categorizes a mean time to first token in milliseconds.
func classifyLatencyProfile(ttftMillis float64) string {
	switch {
	case ttftMillis < 1000:
		return "low"
	case ttftMillis <= 5000:
		return "medium"
	default:
		return "high"
	}
}

// classifyStability categorizes run-to-run variation by its coefficient of variation.
func classifyStability(stddev, avg float64) string {
	if avg <= 0 {
		if stddev == 0 {
			return "stable"
		}
		return "unstable"
	}
	cv := stddev / avg
	switch {
	case cv < 0.1:
		return "stable"
	case cv < 0.25:
		return "moderate"
	default:
		return "unstable"
	}
}

func clampFloat(val, lo, hi float64) float64 {
	return math.Min(math.Max(val, lo), hi)
}
