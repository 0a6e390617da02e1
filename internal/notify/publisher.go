// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/auditkeep/internal/logging"
	"github.com/tomtom215/auditkeep/internal/metrics"
)

// Backends.
const (
	BackendNone      = "none"
	BackendGoChannel = "gochannel"
	BackendNATS      = "nats"
)

// Drop reasons.
const (
	dropQueueFull = "queue_full"
	dropClosed    = "closed"
	dropPublish   = "publish_error"
	dropMarshal   = "marshal_error"
)

// Errors
var (
	// ErrSubscribeUnsupported is returned by Subscribe on a bus that cannot
	// be consumed in-process.
	ErrSubscribeUnsupported = errors.New("subscribe is only supported on the gochannel bus")
)

// Config holds notification bus configuration.
type Config struct {
	Backend   string `koanf:"backend" validate:"oneof=none gochannel nats"`
	NATSURL   string `koanf:"nats_url"`
	Topic     string `koanf:"topic" validate:"required"`
	QueueSize int    `koanf:"queue_size" validate:"min=1"`

	// MaxReconnects and ReconnectWait tune the NATS connection.
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendGoChannel,
		NATSURL:       natsgo.DefaultURL,
		Topic:         "auditkeep.occurrences",
		QueueSize:     1000,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Publisher is a Sink that queues signals and publishes them to a Watermill
// topic from a single background goroutine. A full queue drops the signal.
type Publisher struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string

	queue    chan Signal
	stopChan chan struct{}
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

var _ SinkCloser = (*Publisher)(nil)

// NewPublisher starts a Publisher over pub. The Publisher owns pub and
// closes it in Close.
func NewPublisher(pub message.Publisher, cfg Config) *Publisher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultConfig().Topic
	}

	p := &Publisher{
		publisher: pub,
		topic:     cfg.Topic,
		queue:     make(chan Signal, cfg.QueueSize),
		stopChan:  make(chan struct{}),
	}

	p.wg.Add(1)
	go p.asyncWriter()

	return p
}

// NewGoChannel starts a Publisher over an in-process Watermill GoChannel.
// Subscribe works on the result.
func NewGoChannel(cfg Config) *Publisher {
	bus := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(cfg.QueueSize),
	}, logging.NewWatermillAdapter())

	p := NewPublisher(bus, cfg)
	p.subscriber = bus
	return p
}

// NewNATS starts a Publisher over core NATS with JetStream disabled.
func NewNATS(cfg Config) (*Publisher, error) {
	logger := logging.NewWatermillAdapter()

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return NewPublisher(pub, cfg), nil
}

// Open builds the sink selected by cfg.Backend.
func Open(cfg Config) (SinkCloser, error) {
	switch cfg.Backend {
	case BackendNone, "":
		return Nop{}, nil
	case BackendGoChannel:
		return NewGoChannel(cfg), nil
	case BackendNATS:
		return NewNATS(cfg)
	default:
		return nil, fmt.Errorf("unknown notify backend %q", cfg.Backend)
	}
}

// Notify implements Sink. It never blocks.
func (p *Publisher) Notify(_ context.Context, sig Signal) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		metrics.RecordNotifyDropped(dropClosed)
		return
	}

	select {
	case p.queue <- sig:
	default:
		metrics.RecordNotifyDropped(dropQueueFull)
		logging.Warn().Int("alert_id", sig.AlertID).Msg("Notify queue full, dropping signal")
	}
}

// Subscribe returns the messages published on the topic. Only the
// gochannel bus supports it.
func (p *Publisher) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	if p.subscriber == nil {
		return nil, ErrSubscribeUnsupported
	}
	return p.subscriber.Subscribe(ctx, p.topic)
}

// Topic returns the topic signals are published on.
func (p *Publisher) Topic() string {
	return p.topic
}

// asyncWriter publishes queued signals.
func (p *Publisher) asyncWriter() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			for {
				select {
				case sig := <-p.queue:
					p.publish(sig)
				default:
					return
				}
			}
		case sig := <-p.queue:
			p.publish(sig)
		}
	}
}

func (p *Publisher) publish(sig Signal) {
	payload, err := json.Marshal(sig)
	if err != nil {
		metrics.RecordNotifyDropped(dropMarshal)
		logging.Error().Err(err).Int("alert_id", sig.AlertID).Msg("Failed to marshal signal")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("alert_id", strconv.Itoa(sig.AlertID))
	msg.Metadata.Set("buffered", strconv.FormatBool(sig.Buffered))

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		metrics.RecordNotifyDropped(dropPublish)
		logging.Warn().Err(err).Str("topic", p.topic).Msg("Failed to publish signal")
		return
	}
	metrics.RecordNotifyPublished()
}

// Close publishes what is still queued and closes the bus.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stopChan)
	p.wg.Wait()

	if err := p.publisher.Close(); err != nil {
		return fmt.Errorf("close publisher: %w", err)
	}
	return nil
}
