// internal/metrics/analyze_test.go
package metrics

import (
	"math"
	"testing"

	"github.com/mwiater/medgen/internal/stream"
)

func TestAnalyze(t *testing.T) {
	runs := []map[string]stream.Metrics{
		{
			"fast": {TTFTMillis: 200, TokensPerSecond: 100, TotalTokens: 50},
			"slow": {TTFTMillis: 800, TokensPerSecond: 20, TotalTokens: 40},
		},
		{
			"fast": {TTFTMillis: 400, TokensPerSecond: 100, TotalTokens: 70},
			"slow": {TTFTMillis: 0, TokensPerSecond: 30},
		},
	}

	a := Analyze(runs)
	if a.Runs != 2 || len(a.Models) != 2 {
		t.Fatalf("unexpected analysis shape: %+v", a)
	}

	fast, slow := a.Models[0], a.Models[1]
	if fast.Model != "fast" || slow.Model != "slow" {
		t.Fatalf("expected models ordered by efficiency, got %s then %s", fast.Model, slow.Model)
	}
	if fast.Runs != 2 || fast.TTFT.Mean != 300 || fast.Tokens.Mean != 60 {
		t.Fatalf("unexpected fast aggregates: %+v", fast)
	}
	if slow.TTFT.Count != 1 || slow.TTFT.Mean != 800 {
		t.Fatalf("expected the unreported TTFT to be skipped, got %+v", slow.TTFT)
	}
	if fast.Scores.Throughput != 100 || fast.Scores.Latency != 100 {
		t.Fatalf("expected the fastest model to score 100, got %+v", fast.Scores)
	}
	if math.Abs(slow.Scores.Throughput-25) > 1e-9 || math.Abs(slow.Scores.Latency-37.5) > 1e-9 {
		t.Fatalf("unexpected slow scores: %+v", slow.Scores)
	}
	if fast.Labels.SpeedTier != "top" || slow.Labels.SpeedTier != "slow" {
		t.Fatalf("unexpected speed tiers: %s %s", fast.Labels.SpeedTier, slow.Labels.SpeedTier)
	}
	if fast.Labels.Stability != "stable" {
		t.Fatalf("expected constant TPS to be stable, got %s", fast.Labels.Stability)
	}
}

func TestAnalyzeSingleModel(t *testing.T) {
	a := Analyze([]map[string]stream.Metrics{{"only": {TokensPerSecond: 5}}})
	if len(a.Models) != 1 {
		t.Fatalf("expected one model, got %d", len(a.Models))
	}
	if s := a.Models[0].Scores; s.Throughput != 100 || s.Latency != 100 || s.Efficiency != 100 {
		t.Fatalf("expected a lone model to score 100, got %+v", s)
	}
}

func TestClassifiers(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"tier mid", classifySpeedTier(0.5), "mid"},
		{"latency low", classifyLatencyProfile(300), "low"},
		{"latency medium", classifyLatencyProfile(2500), "medium"},
		{"latency high", classifyLatencyProfile(9000), "high"},
		{"stability moderate", classifyStability(1.5, 10), "moderate"},
		{"stability unstable", classifyStability(5, 10), "unstable"},
		{"stability without mean", classifyStability(0, 0), "stable"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.want, tt.got)
		}
	}
}
