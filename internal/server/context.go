package server

import (
	"context"
	"sync"
)

// ServerContext carries the process lifetime shared by the HTTP handlers.
// Shutdown cancels it so in-flight downstream calls are abandoned.
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
	}
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
