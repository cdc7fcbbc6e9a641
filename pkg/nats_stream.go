package pkg

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/apt/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const defaultFetchBatch = 1000

// NATSStream is a persistent event stream backed by NATS JetStream.
// One durable consumer serves both startup replay (Fetch) and the
// live follow (SubscribeStream), so a restarted reader resumes where
// it left off instead of replaying acknowledged entries.
type NATSStream struct {
	conn     *nats.Conn
	js       jetstream.JetStream
	stream   jetstream.Stream
	consumer jetstream.Consumer
	topic    string
}

// NATSStreamConfig configures a NATSStream instance.
type NATSStreamConfig struct {
	URL          string        // NATS server URL
	StreamName   string        // JetStream stream name (e.g., "KITCHEN_ENTRIES")
	Topic        string        // Subject the stream captures (e.g., "kitchen.entries")
	ConsumerName string        // Durable consumer name for this reader
	MaxAge       time.Duration // Retention window for stored events
	MaxMsgs      int64         // Maximum stored messages (0 = unlimited)
}

// NewNATSStream connects to NATS and ensures the stream and its
// durable consumer exist.
func NewNATSStream(cfg NATSStreamConfig) (*NATSStream, error) {
	conn, err := nats.Connect(cfg.URL, nats.Name("comanda-stream"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	s := &NATSStream{conn: conn, js: js, topic: cfg.Topic}
	if err := s.ensureStream(cfg); err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.ensureConsumer(cfg); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *NATSStream) ensureStream(cfg NATSStreamConfig) error {
	streamConfig := jetstream.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: []string{cfg.Topic},
		MaxAge:   cfg.MaxAge,
	}
	if cfg.MaxMsgs > 0 {
		streamConfig.MaxMsgs = cfg.MaxMsgs
	}

	stream, err := s.js.CreateOrUpdateStream(context.Background(), streamConfig)
	if err != nil {
		return fmt.Errorf("create/update stream %s: %w", cfg.StreamName, err)
	}
	s.stream = stream
	return nil
}

func (s *NATSStream) ensureConsumer(cfg NATSStreamConfig) error {
	consumer, err := s.stream.CreateOrUpdateConsumer(context.Background(), jetstream.ConsumerConfig{
		Name:          cfg.ConsumerName,
		Durable:       cfg.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		FilterSubject: cfg.Topic,
	})
	if err != nil {
		return fmt.Errorf("create/update consumer %s: %w", cfg.ConsumerName, err)
	}
	s.consumer = consumer
	return nil
}

// Publish writes a message to the stream.
func (s *NATSStream) Publish(ctx context.Context, topic string, msg []byte) error {
	if _, err := s.js.Publish(ctx, topic, msg); err != nil {
		return fmt.Errorf("publish to stream: %w", err)
	}
	return nil
}

// Fetch drains up to limit pending messages, acknowledging as it goes.
// Used for the warm-up replay on startup.
func (s *NATSStream) Fetch(ctx context.Context, limit int) ([]events.StreamMessage, error) {
	if limit <= 0 {
		limit = defaultFetchBatch
	}

	batch, err := s.consumer.Fetch(limit, jetstream.FetchMaxWait(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	var messages []events.StreamMessage
	for msg := range batch.Messages() {
		metadata, err := msg.Metadata()
		if err != nil {
			// Unreadable metadata means the message is not ours to order.
			msg.Ack()
			continue
		}

		messages = append(messages, events.StreamMessage{
			Data:      msg.Data(),
			Sequence:  metadata.Sequence.Stream,
			Timestamp: metadata.Timestamp.UnixNano(),
		})
		msg.Ack()
	}

	return messages, nil
}

// SubscribeStream follows new messages as they arrive. Handler errors
// trigger a Nak so JetStream redelivers.
func (s *NATSStream) SubscribeStream(ctx context.Context, handler events.HandlerFunc) error {
	_, err := s.consumer.Consume(func(msg jetstream.Msg) {
		if err := handler(ctx, msg.Data()); err != nil {
			msg.Nak()
			return
		}
		msg.Ack()
	})
	return err
}

// Subscribe implements events.Subscriber. The topic argument is
// ignored since the consumer is already bound to one subject.
func (s *NATSStream) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	return s.SubscribeStream(ctx, handler)
}

// Close closes the NATS connection.
func (s *NATSStream) Close() error {
	s.conn.Close()
	return nil
}
