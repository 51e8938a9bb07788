package natsbus

import (
	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/logging"
)

var _ core.EventSink = (*Publisher)(nil)

// Publisher forwards run events to TopicRunEvents. Publish failures are
// logged and never block the run.
type Publisher struct {
	client *Client
	logger logging.Logger
}

// NewPublisher creates a Publisher on client.
func NewPublisher(client *Client, logger logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Publisher{client: client, logger: logger}
}

// Publish implements core.EventSink.
func (p *Publisher) Publish(e core.Event) {
	if err := p.client.PublishJSON(TopicRunEvents(e.RunID), e); err != nil {
		p.logger.Warn("natsbus.publish.error", "run_id", e.RunID, "type", string(e.Type), "error", err.Error())
	}
}
