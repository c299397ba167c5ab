package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/FreePeak/nl2sql-mcp-server/internal/observability"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dberr"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dialect"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/logger"
)

// Manager caches one Engine per logical target. It is created by the
// entry point, shared by reference and disposed once at shutdown.
type Manager struct {
	mu       sync.RWMutex
	engines  map[string]*Engine
	config   Config
	open     Opener
	disposed bool
}

// Option customises a Manager.
type Option func(*Manager)

// WithOpener replaces sql.Open, mainly for tests.
func WithOpener(open Opener) Option {
	return func(m *Manager) { m.open = open }
}

// NewManager creates an empty engine cache
func NewManager(config Config, opts ...Option) *Manager {
	config.SetDefaults()
	m := &Manager{
		engines: make(map[string]*Engine),
		config:  config,
		open:    sql.Open,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Key returns the cache key of a resolved spec:
// dialect://user@host:port/database/schema, followed by the connection
// params in key order. The password is never part of it; with
// KeyWithCredentials a fingerprint of it is appended.
func (m *Manager) Key(spec dialect.ConnectionSpec) string {
	key := fmt.Sprintf("%s://%s@%s/%s/%s", spec.Dialect, spec.Username, spec.Address(), spec.Database, spec.Schema)
	if len(spec.Params) > 0 {
		params := make(url.Values, len(spec.Params))
		for k, v := range spec.Params {
			params.Set(k, v)
		}
		key += "?" + params.Encode()
	}
	if m.config.KeyWithCredentials {
		sum := sha256.Sum256([]byte(spec.Password))
		key += "#" + hex.EncodeToString(sum[:8])
	}
	return key
}

// Acquire checks a health-checked connection out of the engine for spec,
// creating the engine on first use. Failures are reported as
// *dberr.ConnectionError and never retried.
func (m *Manager) Acquire(ctx context.Context, spec dialect.ConnectionSpec) (*PooledConn, error) {
	spec, err := spec.Resolved()
	if err != nil {
		return nil, err
	}
	desc, err := dialect.Lookup(spec.Dialect)
	if err != nil {
		return nil, err
	}

	engine, err := m.engine(spec, desc)
	if err != nil {
		observability.IncrementConnectionErrors(string(spec.Dialect))
		return nil, m.connectionError(spec, "open", err)
	}

	conn, err := engine.db.Conn(ctx)
	if err != nil {
		observability.IncrementConnectionErrors(string(spec.Dialect))
		return nil, m.connectionError(spec, "acquire", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		observability.IncrementConnectionErrors(string(spec.Dialect))
		return nil, m.connectionError(spec, "ping", err)
	}

	engine.touch()
	observability.IncrementEngineAcquisitions(string(spec.Dialect))
	stats := engine.db.Stats()
	logger.WithFields(map[string]interface{}{
		"engine":       engine.key,
		"acquisitions": engine.totalAcquisitions.Load(),
		"open":         stats.OpenConnections,
		"in_use":       stats.InUse,
		"idle":         stats.Idle,
	}).Debug("connection acquired")

	return &PooledConn{Conn: conn, engine: engine}, nil
}

// engine returns the cached engine for spec or inserts a new one. Two
// concurrent callers for a new key end up with the same engine.
func (m *Manager) engine(spec dialect.ConnectionSpec, desc dialect.Descriptor) (*Engine, error) {
	key := m.Key(spec)

	m.mu.RLock()
	engine, ok := m.engines[key]
	disposed := m.disposed
	m.mu.RUnlock()
	if disposed {
		return nil, ErrDisposed
	}
	if ok {
		logger.Debug("Reusing engine %s (age %s)", key, time.Since(engine.createdAt).Round(time.Second))
		return engine, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return nil, ErrDisposed
	}
	if engine, ok := m.engines[key]; ok {
		return engine, nil
	}

	// Opening a pool does not dial, so holding the lock here never blocks on I/O.
	db, err := m.open(desc.DriverName, desc.DSN(spec))
	if err != nil {
		return nil, err
	}
	m.config.apply(db)

	engine = newEngine(key, desc, spec.Address(), db)
	m.engines[key] = engine
	observability.SetEngineCacheEntries(len(m.engines))
	logger.Info("Created engine %s (%s)", key, desc.RedactedConnectionString(spec))
	return engine, nil
}

func (m *Manager) connectionError(spec dialect.ConnectionSpec, op string, err error) error {
	return &dberr.ConnectionError{
		Dialect: string(spec.Dialect),
		Host:    spec.Address(),
		Op:      op,
		Err:     dberr.Scrub(err, spec.Password),
	}
}

// Lookup returns the cached engine for spec without creating one.
func (m *Manager) Lookup(spec dialect.ConnectionSpec) (*Engine, bool) {
	spec, err := spec.Resolved()
	if err != nil {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	engine, ok := m.engines[m.Key(spec)]
	return engine, ok
}

// Invalidate closes and forgets the engine for spec, if any. Connections
// already checked out stay usable until released.
func (m *Manager) Invalidate(spec dialect.ConnectionSpec) error {
	spec, err := spec.Resolved()
	if err != nil {
		return err
	}
	key := m.Key(spec)

	m.mu.Lock()
	engine, ok := m.engines[key]
	delete(m.engines, key)
	observability.SetEngineCacheEntries(len(m.engines))
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return m.close(engine)
}

// DisposeAll closes every engine and clears the cache. It is safe to call
// more than once; later calls find nothing to close.
func (m *Manager) DisposeAll() error {
	m.mu.Lock()
	engines := m.engines
	m.engines = make(map[string]*Engine)
	observability.SetEngineCacheEntries(0)
	m.mu.Unlock()

	var errs []error
	for _, engine := range engines {
		if err := m.close(engine); err != nil {
			errs = append(errs, err)
		}
	}
	if len(engines) > 0 {
		logger.Info("Disposed %d engines", len(engines))
	}
	return errors.Join(errs...)
}

// Shutdown disposes every engine and refuses further acquisitions.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	m.disposed = true
	m.mu.Unlock()
	return m.DisposeAll()
}

func (m *Manager) close(engine *Engine) error {
	stats := engine.Stats()
	logger.WithFields(map[string]interface{}{
		"engine":       stats.Key,
		"uptime":       time.Since(stats.CreatedAt).Round(time.Second).String(),
		"acquisitions": stats.TotalAcquisitions,
		"in_use":       stats.Pool.InUse,
	}).Info("engine disposed")

	if err := engine.db.Close(); err != nil {
		return fmt.Errorf("failed to close engine %s: %w", engine.key, err)
	}
	return nil
}

// Len returns the number of cached engines.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.engines)
}

// Stats returns a snapshot of every cached engine, ordered by key.
func (m *Manager) Stats() []Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Stats, 0, len(m.engines))
	for _, engine := range m.engines {
		out = append(out, engine.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Ping checks every cached engine.
func (m *Manager) Ping(ctx context.Context) map[string]error {
	m.mu.RLock()
	engines := make(map[string]*Engine, len(m.engines))
	for k, e := range m.engines {
		engines[k] = e
	}
	m.mu.RUnlock()

	results := make(map[string]error, len(engines))
	for key, engine := range engines {
		results[key] = engine.db.PingContext(ctx)
	}
	return results
}
