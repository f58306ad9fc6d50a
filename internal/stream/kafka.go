package stream

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	kafkago "github.com/segmentio/kafka-go"
)

// KafkaDialer consumes kitchen frames from a Kafka topic. Every connection
// starts at the tail of the topic; history is recovered through the
// snapshot taken on connect.
type KafkaDialer struct {
	Brokers []string
	Topic   string
	GroupID string
	MaxWait time.Duration
}

// Dial implements Dialer. The first broker is probed within ctx before the
// reader is created.
func (d *KafkaDialer) Dial(ctx context.Context) (Conn, error) {
	if len(d.Brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	if d.Topic == "" {
		return nil, errors.New("no kafka topic configured")
	}

	probe, err := kafkago.DialContext(ctx, "tcp", d.Brokers[0])
	if err != nil {
		return nil, errors.Wrapf(err, "dial broker %s", d.Brokers[0])
	}
	_ = probe.Close()

	maxWait := d.MaxWait
	if maxWait <= 0 {
		maxWait = 500 * time.Millisecond
	}
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     d.Brokers,
		Topic:       d.Topic,
		GroupID:     d.GroupID,
		StartOffset: kafkago.LastOffset,
		MaxWait:     maxWait,
	})
	if d.GroupID == "" {
		if err := r.SetOffset(kafkago.LastOffset); err != nil {
			_ = r.Close()
			return nil, errors.Wrap(err, "seek to tail")
		}
	}
	return &kafkaConn{r: r}, nil
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

type kafkaConn struct {
	r messageReader
}

func (c *kafkaConn) Read(ctx context.Context) ([]byte, error) {
	m, err := c.r.ReadMessage(ctx)
	if err != nil {
		return nil, err
	}
	return m.Value, nil
}

func (c *kafkaConn) Close() error {
	return c.r.Close()
}
