// internal/session/session.go
// Package session owns the single active generation run: its streaming
// request, its cancellation and the generation number that tags every
// message it produces.
package session

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/mwiater/medgen/internal/api"
	"github.com/mwiater/medgen/internal/logging"
	"github.com/mwiater/medgen/internal/runstate"
	"github.com/mwiater/medgen/internal/stream"
)

// Backend is the part of the API client a session drives.
type Backend interface {
	NewGenerateRequest(input string, models []string) api.GenerateRequest
	Stream(ctx context.Context, req api.GenerateRequest) (*stream.Decoder, io.Closer, error)
	Evaluate(ctx context.Context, input string, outputs map[string]string) (runstate.Evaluation, error)
}

// Msg is delivered to the sink. Every Msg carries the generation of the run
// that produced it.
type Msg interface {
	Generation() uint64
}

// EventMsg carries one parsed stream event.
type EventMsg struct {
	Gen   uint64
	Event stream.Event
}

// ClosedMsg reports the end of the stream. Err is nil for a clean close.
type ClosedMsg struct {
	Gen uint64
	Err error
}

// EvaluationMsg carries the evaluation of a finished run.
type EvaluationMsg struct {
	Gen    uint64
	Result runstate.Evaluation
}

func (m EventMsg) Generation() uint64      { return m.Gen }
func (m ClosedMsg) Generation() uint64     { return m.Gen }
func (m EvaluationMsg) Generation() uint64 { return m.Gen }

// Session runs at most one generation at a time. Starting a run cancels the
// previous one; a cancelled or superseded run sends nothing further.
type Session struct {
	backend Backend

	mu     sync.Mutex
	sink   func(Msg)
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a Session sending its messages to sink.
func New(backend Backend, sink func(Msg)) *Session {
	return &Session{backend: backend, sink: sink}
}

// SetSink replaces the message sink. The TUI sets it once its program exists.
func (s *Session) SetSink(sink func(Msg)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// Start cancels any active run and streams input through models. It returns
// the generation of the new run.
func (s *Session) Start(input string, models []string) uint64 {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	s.ctx, s.cancel = ctx, cancel
	s.mu.Unlock()

	req := s.backend.NewGenerateRequest(input, models)
	logging.LogEvent("run %d: start models=%v input=%d bytes", gen, models, len(input))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, gen, req)
	}()
	return gen
}

func (s *Session) run(ctx context.Context, gen uint64, req api.GenerateRequest) {
	dec, body, err := s.backend.Stream(ctx, req)
	if err != nil {
		s.finish(ctx, gen, err)
		return
	}
	defer body.Close()

	for {
		ev, err := dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			s.finish(ctx, gen, err)
			return
		}
		if !s.send(ctx, gen, EventMsg{Gen: gen, Event: ev}) {
			return
		}
	}
}

func (s *Session) finish(ctx context.Context, gen uint64, err error) {
	if ctx.Err() != nil {
		logging.LogEvent("run %d: cancelled", gen)
		return
	}
	if err != nil {
		logging.LogEvent("run %d: stream failed: %v", gen, err)
	} else {
		logging.LogEvent("run %d: stream closed", gen)
	}
	s.send(ctx, gen, ClosedMsg{Gen: gen, Err: err})
}

// send delivers msg unless the run was cancelled or superseded.
func (s *Session) send(ctx context.Context, gen uint64, msg Msg) bool {
	s.mu.Lock()
	sink := s.sink
	live := ctx.Err() == nil && gen == s.gen
	s.mu.Unlock()
	if !live {
		return false
	}
	if sink != nil {
		sink(msg)
	}
	return true
}

// Evaluate requests the evaluation of gen's finalized outputs. Failures are
// logged and never reported to the sink.
func (s *Session) Evaluate(gen uint64, input string, outputs map[string]string) {
	s.mu.Lock()
	ctx := s.ctx
	current := gen == s.gen
	s.mu.Unlock()
	if !current || ctx == nil || len(outputs) == 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result, err := s.backend.Evaluate(ctx, input, outputs)
		if err != nil {
			if ctx.Err() == nil {
				logging.LogEvent("run %d: evaluation failed: %v", gen, err)
			}
			return
		}
		logging.LogEvent("run %d: evaluation by %s", gen, result.EvaluatorModel)
		s.send(ctx, gen, EvaluationMsg{Gen: gen, Result: result})
	}()
}

// Cancel aborts the active run, if any.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Generation returns the generation of the most recent run.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Wait blocks until every goroutine started by the session has returned.
func (s *Session) Wait() {
	s.wg.Wait()
}
