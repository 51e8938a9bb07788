package ingest

import (
	"context"
	"time"

	"github.com/hupe1980/docmesh/logging"
	"github.com/hupe1980/docmesh/natsbus"
	"github.com/nats-io/nats.go"
)

// Subscribe consumes MinIO bucket notifications published on subject (the
// MinIO NATS notification target) and applies them to p. Each message is
// handled with timeout.
func Subscribe(client *natsbus.Client, subject string, p *Pipeline, timeout time.Duration, logger logging.Logger) (*nats.Subscription, error) {
	if subject == "" {
		subject = natsbus.TopicBucketEvents
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	logger = logging.With(logger, "component", "ingest.subscriber")

	return client.QueueSubscribe(subject, natsbus.QueueIngest, func(msg *nats.Msg) {
		notifications, err := ParseNotifications(msg.Data)
		if err != nil {
			logger.Warn("ingest.notification.invalid", "subject", msg.Subject, "error", err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		for _, n := range notifications {
			action, err := p.HandleNotification(ctx, n)
			if err != nil {
				logger.Warn("ingest.notification.error", "event", n.EventName, "bucket", n.Bucket, "key", n.Key, "error", err.Error())
				continue
			}
			logger.Info("ingest.notification.handled", "event", n.EventName, "bucket", n.Bucket, "key", n.Key, "action", action)
		}
	})
}
