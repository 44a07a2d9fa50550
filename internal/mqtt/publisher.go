package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/events"
	"github.com/trolltrack/trolltrack/internal/logger"
)

// Publisher consumes catch events and publishes them to the broker. It
// implements events.EventConsumer.
type Publisher struct {
	client  Client
	topic   string
	angler  string
	timeout time.Duration
	log     logger.Logger
}

// NewPublisher returns a publisher sending to topic (DefaultTopic when
// empty). angler is copied into every message.
func NewPublisher(c Client, topic, angler string, log logger.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &Publisher{
		client:  c,
		topic:   topic,
		angler:  angler,
		timeout: DefaultConfig().PublishTimeout,
		log:     log.Module("mqtt"),
	}
}

func (p *Publisher) Name() string { return "mqtt-publisher" }

func (p *Publisher) Types() []events.Type {
	return []events.Type{events.TypeCatchSaved}
}

// ProcessEvent publishes a saved catch. Other payloads are rejected.
func (p *Publisher) ProcessEvent(event events.Event) error {
	var record *datastore.CatchRecord
	switch v := event.Payload.(type) {
	case datastore.CatchRecord:
		record = &v
	case *datastore.CatchRecord:
		record = v
	}
	if record == nil {
		return errors.Newf("unexpected payload %T for %s", event.Payload, event.Type).
			Component("mqtt").
			Category(errors.CategoryValidation).
			Build()
	}

	payload, err := json.Marshal(NewCatchMessage(record, p.angler))
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryDataFormat).
			Context("catch_id", record.ID).
			Build()
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if !p.client.IsConnected() {
		if err := p.client.Connect(ctx); err != nil {
			p.log.Warn("catch not published, broker unavailable",
				logger.String("catch_id", record.ID),
				logger.Error(err))
			return err
		}
	}

	if err := p.client.Publish(ctx, p.topic, payload); err != nil {
		return err
	}
	p.log.Info("catch published",
		logger.String("catch_id", record.ID),
		logger.String("species", record.SpeciesName()),
		logger.String("topic", p.topic))
	return nil
}
