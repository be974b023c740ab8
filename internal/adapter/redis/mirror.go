// Package redis mirrors each snapshot into Redis so other services can read
// the current alert picture without calling the HTTP API.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/domain"
)

type setter interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
}

// Mirror writes the snapshot and the match table under a key prefix. Keys
// expire after ttl so a stalled poller stops serving stale data.
// It implements pipeline.Publisher.
type Mirror struct {
	client setter
	closer func() error
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewMirror connects to the Redis server at url (redis://host:port/db) and
// verifies the connection.
func NewMirror(ctx context.Context, url, prefix string, ttl time.Duration, logger *slog.Logger) (*Mirror, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	m := newMirror(client, prefix, ttl, logger)
	m.closer = client.Close
	return m, nil
}

func newMirror(client setter, prefix string, ttl time.Duration, logger *slog.Logger) *Mirror {
	return &Mirror{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (m *Mirror) Name() string { return "redis" }

// SnapshotKey is the key holding the full snapshot JSON.
func (m *Mirror) SnapshotKey() string { return m.prefix + "snapshot" }

// MatchesKey is the key holding the boundary id to level table.
func (m *Mirror) MatchesKey() string { return m.prefix + "matches" }

// Publish stores the snapshot, then the match table.
func (m *Mirror) Publish(ctx context.Context, snap domain.Snapshot) error {
	full, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("serialize snapshot: %w", err)
	}
	matches, err := json.Marshal(snap.Matches)
	if err != nil {
		return fmt.Errorf("serialize matches: %w", err)
	}

	if err := m.client.Set(ctx, m.SnapshotKey(), full, m.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", m.SnapshotKey(), err)
	}
	if err := m.client.Set(ctx, m.MatchesKey(), matches, m.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", m.MatchesKey(), err)
	}
	m.logger.Debug("snapshot mirrored to redis", "key", m.SnapshotKey(), "bytes", len(full))
	return nil
}

func (m *Mirror) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer()
}
