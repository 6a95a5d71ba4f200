package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSink writes messages to kafka, one topic per event type.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a sink that acknowledges only after all in-sync replicas have the message.
func NewKafkaSink(brokers []string) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka sink requires at least one broker")
	}
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}, nil
}

func (s *KafkaSink) Write(ctx context.Context, msg Message) error {
	return s.writer.WriteMessages(ctx, kafkaMessage(msg))
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

func kafkaMessage(msg Message) kafka.Message {
	return kafka.Message{
		Topic: msg.Topic,
		Key:   msg.Key,
		Value: msg.Value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(msg.EventType)},
		},
		Time: time.Now().UTC(),
	}
}
