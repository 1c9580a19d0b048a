package dispatch

import (
	"context"
	"sync"

	"github.com/go-go-golems/converse/pkg/conversation"
	"github.com/go-go-golems/converse/pkg/providers/types"
	"github.com/pkg/errors"
)

var ErrExecutionHandleNil = errors.New("execution handle is nil")

// ExecutionHandle represents a single in-flight exchange submitted to a Worker.
//
// It is cancelable and waitable. Cancellation goes through the exchange context.
type ExecutionHandle struct {
	ExecutionID string
	SessionPath string
	Provider    types.ProviderName
	Query       string

	done chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	result *conversation.ExchangeResult
	err    error
}

func newExecutionHandle(executionID string, req Request, cancel context.CancelFunc) *ExecutionHandle {
	return &ExecutionHandle{
		ExecutionID: executionID,
		SessionPath: req.SessionPath,
		Provider:    req.Provider,
		Query:       req.Query,
		done:        make(chan struct{}),
		cancel:      cancel,
	}
}

func (h *ExecutionHandle) setResult(result *conversation.ExchangeResult, err error) {
	h.mu.Lock()
	h.result = result
	h.err = err
	close(h.done)
	h.cancel = nil
	h.mu.Unlock()
}

// Cancel aborts the in-flight exchange. It is safe to call multiple times.
func (h *ExecutionHandle) Cancel() {
	if h == nil {
		return
	}
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the exchange completes.
func (h *ExecutionHandle) Wait() (*conversation.ExchangeResult, error) {
	if h == nil {
		return nil, ErrExecutionHandleNil
	}
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.err
}

func (h *ExecutionHandle) Done() <-chan struct{} {
	return h.done
}

func (h *ExecutionHandle) IsRunning() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}
