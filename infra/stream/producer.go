// Package stream publishes market data. Depth snapshots are advisory and
// may be dropped; durable trade events go through the outbox instead.
package stream

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/segmentio/kafka-go"
)

type DepthPublisher struct {
	writer *kafka.Writer
}

func NewDepthPublisher(brokers []string, topic string) *DepthPublisher {
	return &DepthPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish sends one depth snapshot keyed by asset so consumers can compact
// per asset.
func (p *DepthPublisher) Publish(ctx context.Context, asset uint64, snapshot []byte) error {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, asset)
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: snapshot,
	})
}

func (p *DepthPublisher) Close() error {
	return p.writer.Close()
}
