// Package stream reconstructs generation events from the backend's
// generate-stream response. The response is a byte stream of lines; lines
// prefixed with "data: " carry one JSON record each.
package stream

import "fmt"

// Event is one parsed stream record. The concrete type is always one of
// Partial, Complete, Error or Done.
type Event interface {
	isEvent()
}

// Partial is an incremental text fragment for one model.
type Partial struct {
	Model   string
	Content string
}

// Complete carries the authoritative final text for one model.
type Complete struct {
	Model   string
	Content string
	Metrics *Metrics
}

// Error is a model-scoped failure reported by the backend.
type Error struct {
	Model   string
	Content string
}

// Done terminates the run.
type Done struct{}

func (Partial) isEvent()  {}
func (Complete) isEvent() {}
func (Error) isEvent()    {}
func (Done) isEvent()     {}

// Message formats the error the way it is surfaced to the user.
func (e Error) Message() string {
	return fmt.Sprintf("%s: %s", e.Model, e.Content)
}

// Metrics are the per-model performance figures attached to a Complete event.
type Metrics struct {
	TTFTMillis      float64 `json:"ttft_ms" yaml:"ttft_ms"`
	TokensPerSecond float64 `json:"tps" yaml:"tps"`
	TPOTMillis      float64 `json:"tpot_ms" yaml:"tpot_ms"`
	ITLAvgMillis    float64 `json:"itl_avg_ms" yaml:"itl_avg_ms"`
	TotalTokens     int     `json:"total_tokens" yaml:"total_tokens"`
	TotalTimeMillis float64 `json:"total_time_ms" yaml:"total_time_ms"`
}

// Kind names the record type of an event as it appears on the wire.
func Kind(ev Event) string {
	switch ev.(type) {
	case Partial:
		return "partial"
	case Complete:
		return "complete"
	case Error:
		return "error"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}
