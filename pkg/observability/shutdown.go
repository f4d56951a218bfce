package observability

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownManager coordinates graceful shutdown: the HTTP server drains
// first so no request is mid-flight when the closers run, then registered
// closers run in reverse registration order (dependents before their
// dependencies, mirroring startup).
type ShutdownManager struct {
	logger  *Logger
	server  *http.Server
	closers []namedCloser
	timeout time.Duration
	mu      sync.Mutex
}

// ShutdownFunc closes one resource during shutdown.
type ShutdownFunc func(context.Context) error

type namedCloser struct {
	name string
	fn   ShutdownFunc
}

// NewShutdownManager creates a shutdown manager for the given server.
func NewShutdownManager(logger *Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		logger:  logger,
		server:  server,
		timeout: timeout,
	}
}

// RegisterShutdownFunc registers a closer to run during shutdown.
func (sm *ShutdownManager) RegisterShutdownFunc(fn ShutdownFunc) {
	sm.RegisterNamed(fmt.Sprintf("closer-%d", len(sm.closers)), fn)
}

// RegisterNamed registers a closer under a name used in shutdown logs.
func (sm *ShutdownManager) RegisterNamed(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.closers = append(sm.closers, namedCloser{name: name, fn: fn})
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then drains the server
// and runs the closers. Returns an error when any step fails or the
// timeout elapses.
func (sm *ShutdownManager) WaitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	sm.logger.WithField("signal", sig.String()).Info("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	return sm.drain(ctx)
}

// drain stops the server then runs the closers within ctx's deadline.
func (sm *ShutdownManager) drain(ctx context.Context) error {
	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("http server drain failed")
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		sm.logger.Info("http server drained")
	}

	sm.mu.Lock()
	closers := make([]namedCloser, len(sm.closers))
	copy(closers, sm.closers)
	sm.mu.Unlock()

	var failed int
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if ctx.Err() != nil {
			sm.logger.Warn("shutdown timeout reached, remaining closers skipped")
			return fmt.Errorf("shutdown timeout reached")
		}
		if err := c.fn(ctx); err != nil {
			failed++
			sm.logger.WithError(err).WithField("closer", c.name).Error("closer failed")
			continue
		}
		sm.logger.WithField("closer", c.name).Debug("closer complete")
	}

	if failed > 0 {
		return fmt.Errorf("shutdown completed with %d errors", failed)
	}
	sm.logger.Info("graceful shutdown complete")
	return nil
}
