// Package notifications publishes fire-and-forget e-mail notifications over Redis pub/sub
// for an external mail worker to deliver.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"longform/internal/featureflags"
	"longform/internal/middleware"
	"longform/internal/models"
	"longform/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	emailChannelPrefix  = "notifications:email:"
	emailChannelPattern = emailChannelPrefix + "*"

	// DefaultTimeout bounds one background publish.
	DefaultTimeout = 5 * time.Second
)

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb     *redis.Client
	flags   *featureflags.Manager
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewNotifier creates a new Notifier instance using the provided Redis client. A nil
// client turns every publish into a no-op.
func NewNotifier(rdb *redis.Client, flags *featureflags.Manager) *Notifier {
	return &Notifier{rdb: rdb, flags: flags, timeout: DefaultTimeout}
}

// EmailChannel is the channel messages for addr are published to.
func EmailChannel(addr string) string {
	return emailChannelPrefix + models.NormalizeEmail(addr)
}

// Publish sends msg synchronously.
func (n *Notifier) Publish(ctx context.Context, msg models.Notification) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	if msg.To == "" {
		return fmt.Errorf("notification %q has no recipient", msg.Kind)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, EmailChannel(msg.To), payload).Err()
}

// Notify publishes msg in the background when comment notifications are enabled for the
// recipient. Failures are logged and never reach the caller.
func (n *Notifier) Notify(ctx context.Context, msg models.Notification) {
	if n == nil || n.rdb == nil {
		return
	}
	if !n.flags.Enabled(featureflags.CommentNotifications, msg.To) {
		observability.NotificationsTotal.WithLabelValues("skipped").Inc()
		return
	}

	// Detach from the request so the publish outlives the response.
	bg := context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				middleware.Logger.ErrorContext(bg, "panic while publishing notification",
					"panic", r, "stack", string(debug.Stack()))
			}
		}()

		pubCtx, cancel := context.WithTimeout(bg, n.timeout)
		defer cancel()

		if err := n.Publish(pubCtx, msg); err != nil {
			observability.NotificationsTotal.WithLabelValues("failed").Inc()
			middleware.Logger.WarnContext(bg, "notification publish failed",
				"kind", msg.Kind, "post_id", msg.PostID, "error", err)
			return
		}
		observability.NotificationsTotal.WithLabelValues("published").Inc()
	}()
}

// Wait blocks until in-flight background publishes finish.
func (n *Notifier) Wait() {
	if n != nil {
		n.wg.Wait()
	}
}

// Subscribe delivers every e-mail notification to onMessage until ctx is cancelled.
// It blocks; run it in its own goroutine when needed.
func (n *Notifier) Subscribe(ctx context.Context, onMessage func(models.Notification)) error {
	if n == nil || n.rdb == nil {
		return fmt.Errorf("notifier has no redis client")
	}

	sub := n.rdb.PSubscribe(ctx, emailChannelPattern)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", emailChannelPattern, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-ch:
			if !ok {
				return nil
			}
			var msg models.Notification
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				middleware.Logger.WarnContext(ctx, "dropping malformed notification",
					"channel", raw.Channel, "error", err)
				continue
			}
			onMessage(msg)
		}
	}
}
