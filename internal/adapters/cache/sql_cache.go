package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mikey/mailguard/internal/core"
	"go.uber.org/zap"
)

// sqlCache holds the queries shared by the SQL backed caches. Timestamps
// are stored as unix seconds so expiry checks do not depend on the
// database's date handling.
type sqlCache struct {
	db        *sql.DB
	logger    *zap.Logger
	upsertSQL string
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func newSQLCache(db *sql.DB, logger *zap.Logger, upsertSQL string, cleanupFreq time.Duration) *sqlCache {
	c := &sqlCache{
		db:        db,
		logger:    logger,
		upsertSQL: upsertSQL,
		stopCh:    make(chan struct{}),
	}
	if cleanupFreq > 0 {
		go runCleanup(c, cleanupFreq, c.stopCh, logger)
	}
	return c
}

// Get retrieves a live entry by digest
func (c *sqlCache) Get(ctx context.Context, digest string) (*core.CacheEntry, error) {
	var (
		entry     core.CacheEntry
		label     int
		storedAt  int64
		expiresAt int64
	)

	err := c.db.QueryRowContext(ctx, `
		SELECT digest, label, confidence, model_used, stored_at, expires_at
		FROM verdict_cache
		WHERE digest = ? AND expires_at > ?
	`, digest, time.Now().Unix()).Scan(&entry.Digest, &label, &entry.Confidence, &entry.ModelUsed, &storedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	entry.Label = core.Label(label)
	entry.StoredAt = time.Unix(storedAt, 0)
	entry.ExpiresAt = time.Unix(expiresAt, 0)
	return &entry, nil
}

// Set stores a cache entry
func (c *sqlCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	_, err := c.db.ExecContext(ctx, c.upsertSQL,
		entry.Digest,
		int(entry.Label),
		entry.Confidence,
		entry.ModelUsed,
		entry.StoredAt.Unix(),
		entry.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *sqlCache) Delete(ctx context.Context, digest string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM verdict_cache WHERE digest = ?`, digest); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (c *sqlCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM verdict_cache WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (c *sqlCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close cache database", zap.Error(err))
		}
	})
}
