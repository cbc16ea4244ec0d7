package notification

import (
	"context"
	"os/exec"
	"runtime"
	"sync"

	"kairon/backend"
)

// Requester asks the platform for permission to show notifications.
type Requester func(ctx context.Context) (backend.Permission, error)

// Gate tracks the notification permission and asks for it at most once,
// the first time a caller needs it.
type Gate struct {
	mu      sync.Mutex
	state   backend.Permission
	request Requester
	persist func(ctx context.Context, p backend.Permission) error
}

// NewGate starts from the last recorded state. persist, when non-nil, is
// called with every newly observed state.
func NewGate(initial backend.Permission, request Requester, persist func(context.Context, backend.Permission) error) *Gate {
	if initial == "" {
		initial = backend.PermissionDefault
	}
	return &Gate{state: initial, request: request, persist: persist}
}

// State returns the current permission without prompting.
func (g *Gate) State() backend.Permission {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Granted reports whether platform notifications may be shown.
func (g *Gate) Granted() bool {
	return g.State() == backend.PermissionGranted
}

// Request resolves a default state through the Requester. Granted and
// denied are final and returned without asking again. A failed request
// leaves the state at default so a later call can retry.
func (g *Gate) Request(ctx context.Context) (backend.Permission, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != backend.PermissionDefault || g.request == nil {
		return g.state, nil
	}

	p, err := g.request(ctx)
	if err != nil {
		return g.state, err
	}
	if p == backend.PermissionDefault {
		return g.state, nil
	}
	g.state = p

	if g.persist != nil {
		if err := g.persist(ctx, p); err != nil {
			return p, err
		}
	}
	return p, nil
}

// Reset returns the gate to default so the next Request asks again.
func (g *Gate) Reset(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = backend.PermissionDefault
	if g.persist != nil {
		return g.persist(ctx, g.state)
	}
	return nil
}

// PlatformRequester grants permission when the platform's notifier binary
// is installed and OS notifications are enabled, and denies it otherwise.
// lookPath defaults to exec.LookPath.
func PlatformRequester(cfg *Config, lookPath func(string) (string, error)) Requester {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	return func(ctx context.Context) (backend.Permission, error) {
		if cfg == nil || !cfg.Enabled || !cfg.OSNotification.Enabled {
			return backend.PermissionDenied, nil
		}
		bin := PlatformCommand(runtime.GOOS)
		if bin == "" {
			return backend.PermissionDenied, nil
		}
		if _, err := lookPath(bin); err != nil {
			return backend.PermissionDenied, nil
		}
		return backend.PermissionGranted, nil
	}
}
