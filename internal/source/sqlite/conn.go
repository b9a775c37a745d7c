// Package sqlite extracts records from SQLite and libSQL databases. It
// resolves one of three connection topologies (local file, embedded replica,
// remote mirror) and streams table rows as portable records.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mehmetymw/tap-libsql/internal/config"
	"github.com/mehmetymw/tap-libsql/internal/retry"
	"github.com/mehmetymw/tap-libsql/internal/types"
)

// Manager owns the single database connection shared by every table in a
// run. The first table to need the connection establishes it; everyone else
// gets the cached handle.
type Manager struct {
	cfg    config.Config
	logger *zap.Logger

	mu       sync.Mutex
	db       *sql.DB
	replica  replicaConn
	mirror   string
	degraded bool
}

func NewManager(cfg config.Config, logger *zap.Logger) *Manager {
	return &Manager{cfg: cfg, logger: logger}
}

// DB returns the shared connection, establishing it on first use.
func (m *Manager) DB(ctx context.Context) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		return m.db, nil
	}

	db, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	m.db = db
	return m.db, nil
}

// Degraded reports whether the embedded-replica path fell back to the local
// file without a remote sync.
func (m *Manager) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

func (m *Manager) connect(ctx context.Context) (*sql.DB, error) {
	mode := m.cfg.Mode()
	m.logger.Info("Establishing database connection", zap.String("mode", mode.String()))

	switch mode {
	case config.ModeLocal:
		return m.connectLocal(ctx, m.cfg.LocalPath)

	case config.ModeReplica:
		db, err := m.connectReplica(ctx, m.cfg.LocalPath, m.cfg.SyncURL)
		if err == nil {
			return db, nil
		}
		// The local file may already hold data from an earlier sync, so a
		// dead remote downgrades to an offline run instead of failing it.
		m.logger.Warn("Replica sync failed, falling back to local file without remote sync",
			zap.String("local_path", m.cfg.LocalPath),
			zap.Error(err))
		db, lerr := m.connectLocal(ctx, m.cfg.LocalPath)
		if lerr != nil {
			return nil, lerr
		}
		m.degraded = true
		return db, nil

	case config.ModeRemote:
		m.mirror = filepath.Join(os.TempDir(), fmt.Sprintf("tap-libsql-mirror-%d.db", os.Getpid()))
		m.logger.Info("Mirroring remote database to temporary file",
			zap.String("mirror", m.mirror))
		db, err := m.connectReplica(ctx, m.mirror, m.cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return db, nil
	}

	return nil, fmt.Errorf("%w: unknown connection mode", types.ErrConfig)
}

func (m *Manager) connectLocal(ctx context.Context, path string) (*sql.DB, error) {
	m.logger.Info("Opening local database", zap.String("path", path))

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", types.ErrConnection, path, err)
	}

	backoff := time.Duration(m.cfg.Retry.BackoffMs) * time.Millisecond
	err = retry.Do(ctx, m.cfg.Retry.MaxAttempts, backoff, m.logger, "ping local database", func() error {
		return db.PingContext(ctx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", types.ErrConnection, path, err)
	}

	return db, nil
}

func (m *Manager) connectReplica(ctx context.Context, path, url string) (*sql.DB, error) {
	backoff := time.Duration(m.cfg.Retry.BackoffMs) * time.Millisecond

	var conn replicaConn
	err := retry.Do(ctx, m.cfg.Retry.MaxAttempts, backoff, m.logger, "connect replica", func() error {
		c, err := openReplica(path, url, m.cfg.AuthToken)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", types.ErrConnection, url, err)
	}

	err = retry.Do(ctx, m.cfg.Retry.MaxAttempts, backoff, m.logger, "sync replica", func() error {
		return conn.Sync()
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: sync %s: %v", types.ErrConnection, url, err)
	}

	m.logger.Info("Replica synchronized with remote", zap.String("url", url))
	m.replica = conn
	return sql.OpenDB(conn), nil
}

// Close releases the connection and, for the remote-mirror mode, removes the
// temporary file and its WAL/SHM side files. Cleanup is best effort and
// never surfaces an error.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		if err := m.db.Close(); err != nil {
			m.logger.Warn("Failed to close database", zap.Error(err))
		}
		m.db = nil
	}
	if m.replica != nil {
		if err := m.replica.Close(); err != nil {
			m.logger.Warn("Failed to close replica connector", zap.Error(err))
		}
		m.replica = nil
	}
	if m.mirror != "" {
		for _, p := range []string{m.mirror, m.mirror + "-wal", m.mirror + "-shm"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				m.logger.Warn("Failed to remove mirror file", zap.String("path", p), zap.Error(err))
			}
		}
		m.mirror = ""
	}
}
