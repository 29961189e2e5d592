package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/mailguard/internal/core"
	"go.uber.org/zap"
)

var _ core.CacheRepository = (*MySQLCache)(nil)

// MySQLCache is a MySQL implementation of the CacheRepository interface
type MySQLCache struct {
	*sqlCache
}

// NewMySQLCache creates a new MySQL cache
func NewMySQLCache(ctx context.Context, dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS verdict_cache (
			digest CHAR(64) PRIMARY KEY,
			label TINYINT NOT NULL,
			confidence DOUBLE NOT NULL,
			model_used VARCHAR(255) NOT NULL,
			stored_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			INDEX idx_verdict_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	upsert := `
		INSERT INTO verdict_cache (digest, label, confidence, model_used, stored_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			label = VALUES(label),
			confidence = VALUES(confidence),
			model_used = VALUES(model_used),
			stored_at = VALUES(stored_at),
			expires_at = VALUES(expires_at)
	`
	return &MySQLCache{newSQLCache(db, logger, upsert, cleanupFreq)}, nil
}
