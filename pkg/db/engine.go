package db

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	"github.com/FreePeak/nl2sql-mcp-server/pkg/dialect"
)

// Engine is one pooled connection factory for a logical database target.
// It is owned by the Manager and shared by every request with the same key.
type Engine struct {
	key       string
	desc      dialect.Descriptor
	host      string
	db        *sql.DB
	createdAt time.Time

	lastUsedAt        atomic.Int64
	totalAcquisitions atomic.Int64
}

func newEngine(key string, desc dialect.Descriptor, host string, db *sql.DB) *Engine {
	e := &Engine{key: key, desc: desc, host: host, db: db, createdAt: time.Now()}
	e.lastUsedAt.Store(e.createdAt.UnixNano())
	return e
}

func (e *Engine) touch() {
	e.lastUsedAt.Store(time.Now().UnixNano())
	e.totalAcquisitions.Add(1)
}

// Host returns the target host:port.
func (e *Engine) Host() string { return e.host }

// Key returns the cache key.
func (e *Engine) Key() string { return e.key }

// Stats is a snapshot of an engine's lifecycle counters and pool state.
type Stats struct {
	Key               string
	Dialect           dialect.Tag
	CreatedAt         time.Time
	LastUsedAt        time.Time
	TotalAcquisitions int64
	Pool              sql.DBStats
}

func (e *Engine) Stats() Stats {
	return Stats{
		Key:               e.key,
		Dialect:           e.desc.Tag,
		CreatedAt:         e.createdAt,
		LastUsedAt:        time.Unix(0, e.lastUsedAt.Load()),
		TotalAcquisitions: e.totalAcquisitions.Load(),
		Pool:              e.db.Stats(),
	}
}

// PooledConn is a single connection checked out of an engine. Callers must
// Release it on every exit path; Release is idempotent.
type PooledConn struct {
	*sql.Conn
	engine  *Engine
	release sync.Once
}

// Engine returns the engine this connection was drawn from.
func (c *PooledConn) Engine() *Engine { return c.engine }

// Descriptor returns the dialect descriptor of the target.
func (c *PooledConn) Descriptor() dialect.Descriptor { return c.engine.desc }

// Release returns the connection to its pool.
func (c *PooledConn) Release() error {
	var err error
	c.release.Do(func() {
		err = c.Conn.Close()
	})
	return err
}

// BeginReadOnly starts a read-only transaction on this connection.
func (c *PooledConn) BeginReadOnly(ctx context.Context) (*sql.Tx, error) {
	return c.Conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
}
