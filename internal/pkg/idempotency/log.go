// internal/pkg/idempotency/log.go
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Log is a short-lived seen-set for webhook event identifiers, backed
// by Redis. Providers deliver at least once; the log turns reprocessing
// into a no-op ack.
type Log struct {
	client    *redis.Client
	retention time.Duration
}

// DefaultRetention matches the provider's redelivery window.
const DefaultRetention = 24 * time.Hour

func NewLog(client *redis.Client, retention time.Duration) *Log {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Log{client: client, retention: retention}
}

// MarkIfFirst records an event identifier and reports whether this is
// the first time it was seen. SETNX makes the check-and-record atomic
// under concurrent deliveries of the same event.
func (l *Log) MarkIfFirst(ctx context.Context, eventID string) (bool, error) {
	key := l.key(eventID)
	first, err := l.client.SetNX(ctx, key, time.Now().Unix(), l.retention).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record event id: %w", err)
	}
	return first, nil
}

// Forget removes an event identifier so a failed ingestion can be
// retried by the provider.
func (l *Log) Forget(ctx context.Context, eventID string) error {
	return l.client.Del(ctx, l.key(eventID)).Err()
}

func (l *Log) key(eventID string) string {
	return fmt.Sprintf("webhook:event:%s", eventID)
}
