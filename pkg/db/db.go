package db

import (
	"database/sql"
	"errors"
	"time"

	// Import database drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	_ "github.com/sijms/go-ora/v2"
)

// ErrDisposed is returned by Acquire after the manager has been shut down.
var ErrDisposed = errors.New("engine cache disposed")

// Config holds the pool settings applied to every cached engine
type Config struct {
	MaxOpenConns int
	MaxIdleConns int
	// ConnMaxLifetime recycles physical connections by age so backends that
	// drop idle sessions never hand out a dead one.
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// KeyWithCredentials adds a password fingerprint to the cache key, so a
	// rotated password opens a new engine instead of reusing the old pool.
	KeyWithCredentials bool
}

// SetDefaults sets default values for the configuration if they are not set
func (c *Config) SetDefaults() {
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 10 * time.Minute
	}
}

// Opener opens a pool for a registered driver. sql.Open is the default; it
// performs no I/O.
type Opener func(driverName, dsn string) (*sql.DB, error)

func (c Config) apply(db *sql.DB) {
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	db.SetConnMaxLifetime(c.ConnMaxLifetime)
	db.SetConnMaxIdleTime(c.ConnMaxIdleTime)
}
