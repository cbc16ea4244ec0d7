// Package shutdown coordinates graceful exit of long-running commands.
// Cleanups run in reverse registration order once a signal arrives or
// Shutdown is called.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"kairon/internal/utils"
)

// DefaultTimeout bounds how long cleanups may take.
const DefaultTimeout = 5 * time.Second

// CleanupFunc releases one resource. The context expires with the
// shutdown timeout.
type CleanupFunc func(ctx context.Context) error

type cleanupEntry struct {
	name string
	fn   CleanupFunc
}

// Manager handles graceful shutdown coordination.
type Manager struct {
	mu       sync.Mutex
	cleanups []cleanupEntry
	shutdown bool
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
	stopSig  func()
}

// NewManager creates a manager whose context derives from parent.
func NewManager(parent context.Context) *Manager {
	ctx, cancel := context.WithCancel(parent)
	return &Manager{ctx: ctx, cancel: cancel, stopSig: func() {}}
}

// HandleSignals starts shutdown on SIGINT or SIGTERM.
func (m *Manager) HandleSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-ch:
			utils.Infof("received %s, shutting down", sig)
			m.Shutdown()
		case <-done:
		}
	}()

	m.mu.Lock()
	m.stopSig = func() {
		signal.Stop(ch)
		close(done)
	}
	m.mu.Unlock()
}

// RegisterCleanup adds fn to run on shutdown. Last registered runs first.
func (m *Manager) RegisterCleanup(name string, fn CleanupFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanupEntry{name: name, fn: fn})
}

// Shutdown cancels the manager's context. Safe to call more than once.
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		m.mu.Lock()
		m.shutdown = true
		m.mu.Unlock()
		m.cancel()
	})
}

// IsShutdown reports whether shutdown has been initiated.
func (m *Manager) IsShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

// Context is cancelled when shutdown starts.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Wait blocks until shutdown starts, then runs every cleanup within
// timeout. Cleanup failures are joined; a later cleanup still runs after
// an earlier one fails.
func (m *Manager) Wait(timeout time.Duration) error {
	<-m.ctx.Done()
	return m.Cleanup(timeout)
}

// Cleanup runs the registered cleanups now without waiting for a signal.
func (m *Manager) Cleanup(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	m.mu.Lock()
	cleanups := append([]cleanupEntry(nil), m.cleanups...)
	m.cleanups = nil
	stopSig := m.stopSig
	m.mu.Unlock()
	stopSig()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			c := cleanups[i]
			if err := c.fn(ctx); err != nil {
				utils.Warnf("cleanup %s: %v", c.name, err)
				errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			}
		}
		done <- errors.Join(errs...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out after %s: %w", timeout, ctx.Err())
	}
}
