package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/mailguard/internal/core"
	"go.uber.org/zap"
)

var _ core.CacheRepository = (*SQLiteCache)(nil)

// SQLiteCache is a SQLite implementation of the CacheRepository interface
type SQLiteCache struct {
	*sqlCache
}

// NewSQLiteCache creates a new SQLite cache
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS verdict_cache (
			digest TEXT PRIMARY KEY,
			label INTEGER NOT NULL,
			confidence REAL NOT NULL,
			model_used TEXT NOT NULL,
			stored_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	// Create index on expires_at for faster cleanup
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_verdict_expires_at ON verdict_cache(expires_at)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	upsert := `
		INSERT OR REPLACE INTO verdict_cache (digest, label, confidence, model_used, stored_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	return &SQLiteCache{newSQLCache(db, logger, upsert, cleanupFreq)}, nil
}
