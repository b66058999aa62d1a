// Package endpoint manages the persisted API base address.
//
// The base is normalized on every write and read, and is only persisted after
// a successful liveness probe through Validate.
package endpoint

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/thriftmarket/internal/api"
)

// StorageKey is the fixed key the base address is persisted under.
const StorageKey = "API_BASE"

var (
	// ErrEmptyBase is returned when a candidate base is blank.
	ErrEmptyBase = errors.New("API base is empty")
	// ErrInvalidBase is returned when a candidate is not an absolute http(s) URL.
	ErrInvalidBase = errors.New("API base must be an absolute http(s) URL")
	// ErrNotFound is returned by a Store when the key has no value.
	ErrNotFound = errors.New("setting not found")
)

// Store persists settings by key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Prober performs the liveness probe against a candidate base.
type Prober interface {
	Health(ctx context.Context, base string) (bool, error)
}

var _ Prober = (*api.Client)(nil)

// ProbeError is returned by Validate when the candidate did not pass the
// liveness probe. The persisted base is left unchanged.
type ProbeError struct {
	Base   string
	Reason string
	Err    error
}

func (e *ProbeError) Error() string {
	msg := "API base " + e.Base + " failed validation: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Normalize trims whitespace and trailing slashes. It is idempotent.
func Normalize(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "/")
}

// Check normalizes s and verifies it looks like an API base without touching
// the network.
func Check(s string) (string, error) {
	base := Normalize(s)
	if base == "" {
		return "", ErrEmptyBase
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrap(ErrInvalidBase, err.Error())
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errors.Wrapf(ErrInvalidBase, "%q", base)
	}
	return base, nil
}

// Manager reads, validates and persists the API base address.
type Manager struct {
	store  Store
	prober Prober

	mu     sync.Mutex
	cached *string
}

// NewManager creates a Manager.
func NewManager(store Store, prober Prober) *Manager {
	return &Manager{store: store, prober: prober}
}

// Base returns the persisted base, or "" when none is configured. The value
// is read from the store once and cached; SetBase updates the cache.
func (m *Manager) Base(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil {
		return *m.cached, nil
	}

	v, err := m.store.Get(ctx, StorageKey)
	switch {
	case errors.Is(err, ErrNotFound):
		v = ""
	case err != nil:
		return "", errors.Wrap(err, "load API base")
	}
	v = Normalize(v)
	m.cached = &v
	return v, nil
}

// SetBase normalizes and persists candidate without probing it.
func (m *Manager) SetBase(ctx context.Context, candidate string) error {
	base := Normalize(candidate)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Set(ctx, StorageKey, base); err != nil {
		return errors.Wrap(err, "save API base")
	}
	m.cached = &base
	return nil
}

// Validate probes GET <candidate>/api/health and requires a JSON body with
// ok=true. It returns the normalized candidate on success. It never persists
// anything; on failure the error is a *ProbeError or an input error
// (ErrEmptyBase, ErrInvalidBase).
func (m *Manager) Validate(ctx context.Context, candidate string) (string, error) {
	base, err := Check(candidate)
	if err != nil {
		return "", err
	}

	lg := zctx.From(ctx).With(zap.String("base", base))
	ok, err := m.prober.Health(ctx, base)
	if err != nil {
		lg.Info("API base probe failed", zap.Error(err))
		return "", &ProbeError{Base: base, Reason: "health check request failed", Err: err}
	}
	if !ok {
		lg.Info("API base probe not acknowledged")
		return "", &ProbeError{Base: base, Reason: "health check did not report ok"}
	}
	return base, nil
}

// Configure validates candidate and persists it on success.
func (m *Manager) Configure(ctx context.Context, candidate string) (string, error) {
	base, err := m.Validate(ctx, candidate)
	if err != nil {
		return "", err
	}
	if err := m.SetBase(ctx, base); err != nil {
		return "", err
	}
	return base, nil
}
