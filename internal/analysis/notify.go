// internal/analysis/notify.go
package analysis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"printhub/pkg/middleware"
)

// Streams feeding the analysis service's background workers.
const (
	StreamFormat = "analysis:format"
	StreamLint   = "analysis:lint"
	StreamTest   = "analysis:test"
)

const notifyTimeout = 5 * time.Second

// NotifyFormat queues a snippet for background formatting.
func (c *Client) NotifyFormat(ctx context.Context, resourceID, userID, content string) {
	c.notify(ctx, StreamFormat, resourceID, userID, content)
}

// NotifyLint queues a snippet for background linting.
func (c *Client) NotifyLint(ctx context.Context, resourceID, userID, content string) {
	c.notify(ctx, StreamLint, resourceID, userID, content)
}

// NotifyTest queues a snippet's test cases for background execution.
func (c *Client) NotifyTest(ctx context.Context, resourceID, userID, content string) {
	c.notify(ctx, StreamTest, resourceID, userID, content)
}

// notify publishes fire-and-forget. It never blocks the caller and never
// surfaces its failure: a snippet create must succeed even when the
// notification cannot be delivered.
func (c *Client) notify(ctx context.Context, stream, resourceID, userID, content string) {
	if c.rdb == nil {
		return
	}
	// Detach from the caller's context so its cancellation or deadline
	// cannot abort the publish; only the correlation id crosses over.
	corrID := middleware.CorrelationFrom(ctx)
	go func() {
		bg, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		err := c.rdb.XAdd(bg, &redis.XAddArgs{
			Stream: stream,
			Values: map[string]any{
				"snippetId":     resourceID,
				"userId":        userID,
				"content":       content,
				"correlationId": corrID,
			},
		}).Err()
		if err != nil {
			c.log.Warnw("async notification dropped", "stream", stream, "snippet", resourceID, "err", err)
		}
	}()
}
