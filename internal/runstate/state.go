// Package runstate holds the per-run view state of a multi-model generation
// and the transitions that apply stream events to it.
//
// A State is a value. Every transition returns a new State and leaves the
// receiver untouched; maps are cloned only when a transition writes to them.
// Transitions carry the generation they were issued under, and a State
// ignores any transition from a generation other than its own.
package runstate

import (
	"maps"
	"slices"
	"strings"

	"github.com/mwiater/medgen/internal/stream"
)

// Placeholder is shown for a model with neither finalized nor buffered text.
const Placeholder = "Waiting for output..."

// Effect is a follow-up action requested by a transition.
type Effect int

const (
	// EffectNone requires nothing further.
	EffectNone Effect = iota
	// EffectEvaluate asks the caller to send the finalized outputs for evaluation.
	EffectEvaluate
)

// Evaluation is the evaluator's narrative for one run.
type Evaluation struct {
	Text           string `json:"evaluation" yaml:"evaluation"`
	EvaluatorModel string `json:"evaluator_model" yaml:"evaluator_model"`
}

// State is the snapshot of one run as shown to the user.
type State struct {
	Generation uint64
	Models     []string
	Loading    bool
	Err        string
	Evaluation *Evaluation

	buffers             map[string]string
	outputs             map[string]string
	streaming           map[string]bool
	metrics             map[string]stream.Metrics
	evaluationRequested bool
}

// New starts the state for a run. Every requested model is marked streaming.
// Duplicate and empty identifiers are dropped; order is kept.
func New(gen uint64, models []string) State {
	s := State{
		Generation: gen,
		Loading:    true,
		buffers:    map[string]string{},
		outputs:    map[string]string{},
		streaming:  map[string]bool{},
		metrics:    map[string]stream.Metrics{},
	}
	for _, m := range models {
		if strings.TrimSpace(m) == "" || s.streaming[m] {
			continue
		}
		s.Models = append(s.Models, m)
		s.streaming[m] = true
	}
	return s
}

// Apply folds one stream event into the state.
func (s State) Apply(gen uint64, ev stream.Event) (State, Effect) {
	if gen != s.Generation {
		return s, EffectNone
	}
	switch ev := ev.(type) {
	case stream.Partial:
		return s.applyPartial(ev), EffectNone
	case stream.Complete:
		return s.applyComplete(ev), EffectNone
	case stream.Error:
		return s.applyError(ev), EffectNone
	case stream.Done:
		return s.applyDone()
	default:
		return s, EffectNone
	}
}

func (s State) applyPartial(ev stream.Partial) State {
	if _, final := s.outputs[ev.Model]; final {
		return s
	}
	s = s.track(ev.Model)
	s.buffers = cloneMap(s.buffers)
	s.buffers[ev.Model] += ev.Content
	return s
}

func (s State) applyComplete(ev stream.Complete) State {
	s = s.track(ev.Model)
	s.outputs = cloneMap(s.outputs)
	s.outputs[ev.Model] = ev.Content
	s.streaming = cloneMap(s.streaming)
	s.streaming[ev.Model] = false
	if ev.Metrics != nil {
		s.metrics = cloneMap(s.metrics)
		s.metrics[ev.Model] = *ev.Metrics
	}
	return s
}

func (s State) applyError(ev stream.Error) State {
	s.Err = ev.Message()
	return s
}

func (s State) applyDone() (State, Effect) {
	s = s.clearStreaming()
	if s.evaluationRequested || len(s.outputs) == 0 {
		return s, EffectNone
	}
	s.evaluationRequested = true
	return s, EffectEvaluate
}

// Closed records that the transport closed, with or without a done record.
func (s State) Closed(gen uint64) State {
	if gen != s.Generation {
		return s
	}
	return s.clearStreaming()
}

// Failed records a transport failure for the run.
func (s State) Failed(gen uint64, err error) State {
	if gen != s.Generation || err == nil {
		return s
	}
	s = s.clearStreaming()
	s.Err = err.Error()
	return s
}

// WithEvaluation stores the evaluation returned for the run.
func (s State) WithEvaluation(gen uint64, ev Evaluation) State {
	if gen != s.Generation {
		return s
	}
	s.Evaluation = &ev
	return s
}

// WithError sets the error slot regardless of generation. It is used for
// failures that do not belong to a run, such as uploads.
func (s State) WithError(msg string) State {
	s.Err = msg
	return s
}

// ClearError empties the error slot.
func (s State) ClearError() State {
	s.Err = ""
	return s
}

// track appends a model the run did not request, such as the fixed cloud model.
func (s State) track(model string) State {
	if slices.Contains(s.Models, model) {
		return s
	}
	s.Models = append(slices.Clip(s.Models), model)
	return s
}

func (s State) clearStreaming() State {
	s.Loading = false
	if len(s.streaming) > 0 {
		s.streaming = map[string]bool{}
	}
	return s
}

// Display returns the text to show for model: the finalized output, else the
// buffered partial text, else Placeholder. ok is false for the placeholder.
func (s State) Display(model string) (text string, ok bool) {
	if out, final := s.outputs[model]; final && out != "" {
		return out, true
	}
	if buf := s.buffers[model]; buf != "" {
		return buf, true
	}
	return Placeholder, false
}

// ShowCursor reports whether the streaming cursor belongs after model's text.
func (s State) ShowCursor(model string) bool {
	if !s.streaming[model] {
		return false
	}
	_, final := s.outputs[model]
	return !final
}

// IsStreaming reports whether model is still streaming.
func (s State) IsStreaming(model string) bool {
	return s.streaming[model]
}

// AnyStreaming reports whether any model is still streaming.
func (s State) AnyStreaming() bool {
	for _, v := range s.streaming {
		if v {
			return true
		}
	}
	return false
}

// Finalized returns a copy of the finalized outputs.
func (s State) Finalized() map[string]string {
	return maps.Clone(s.outputs)
}

// Output returns the finalized output for model.
func (s State) Output(model string) (string, bool) {
	out, ok := s.outputs[model]
	return out, ok
}

// Metrics returns the metrics attached to model's complete event.
func (s State) Metrics(model string) (stream.Metrics, bool) {
	m, ok := s.metrics[model]
	return m, ok
}

// AllMetrics returns a copy of every model's metrics.
func (s State) AllMetrics() map[string]stream.Metrics {
	return maps.Clone(s.metrics)
}

// EvaluationRequested reports whether the run already asked for evaluation.
func (s State) EvaluationRequested() bool {
	return s.evaluationRequested
}

// cloneMap copies m into a fresh, writable map.
func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m)+1)
	maps.Copy(out, m)
	return out
}
