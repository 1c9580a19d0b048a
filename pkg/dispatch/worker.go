package dispatch

import (
	"context"
	"sync"

	"github.com/go-go-golems/converse/pkg/conversation"
	"github.com/go-go-golems/converse/pkg/helpers"
	"github.com/go-go-golems/converse/pkg/providers/types"
	"github.com/go-go-golems/converse/pkg/settings"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrSessionBusy is returned by Submit while the session has an exchange in flight.
var ErrSessionBusy = errors.New("session has an exchange in flight")

var ErrWorkerClosed = errors.New("worker is closed")

// Request is one question for Worker.Submit.
type Request struct {
	Provider    types.ProviderName
	Query       string
	SessionPath string
	Settings    *settings.ProviderSettings
}

// Completion is delivered on Worker.Results once an exchange finishes.
type Completion struct {
	Handle *ExecutionHandle
	Result *conversation.ExchangeResult
	Err    error
}

// Text is what a front-end displays for the completion.
func (c Completion) Text() string {
	return Describe(c.Result, c.Err)
}

// Worker runs exchanges off the caller's goroutine. Completions are handed
// back through a single-slot channel, so a finished exchange waits until the
// front-end has taken the previous one.
type Worker struct {
	dispatcher *Dispatcher
	results    chan Completion
	inFlight   *helpers.KeyedMutex

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewWorker(d *Dispatcher) *Worker {
	return &Worker{
		dispatcher: d,
		results:    make(chan Completion, 1),
		inFlight:   helpers.NewKeyedMutex(),
		done:       make(chan struct{}),
	}
}

func (w *Worker) Results() <-chan Completion {
	return w.results
}

// Submit starts the exchange in the background. A session accepts one
// exchange at a time; a second submission fails with ErrSessionBusy until the
// first one has finished.
func (w *Worker) Submit(ctx context.Context, req Request) (*ExecutionHandle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrWorkerClosed
	}

	release, ok := w.inFlight.TryLock(req.SessionPath)
	if !ok {
		return nil, errors.Wrapf(ErrSessionBusy, "%s", req.SessionPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	handle := newExecutionHandle(uuid.NewString(), req, cancel)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer cancel()

		result, err := w.dispatcher.Send(runCtx, req.Provider, req.Query, req.SessionPath, req.Settings)
		handle.setResult(result, err)
		release()

		select {
		case w.results <- Completion{Handle: handle, Result: result, Err: err}:
		case <-w.done:
			log.Debug().Str("execution_id", handle.ExecutionID).Msg("Worker closed, dropping completion")
		}
	}()

	return handle, nil
}

// Busy reports whether sessionPath has an exchange in flight.
func (w *Worker) Busy(sessionPath string) bool {
	return w.inFlight.Held(sessionPath)
}

// Close refuses new submissions and waits for running exchanges. Completions
// nobody collected are dropped.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.done)
	w.mu.Unlock()

	w.wg.Wait()
}
