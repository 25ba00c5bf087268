package events

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher buffers events and writes them to a topic from Run.
type KafkaPublisher struct {
	w        *kafka.Writer
	inbox    chan kafka.Message
	producer string
	logger   *log.Logger
}

func NewKafkaPublisher(brokers []string, topic, producer string, buf int, logger *log.Logger) *KafkaPublisher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		inbox:    make(chan kafka.Message, buf),
		producer: producer,
		logger:   logger,
	}
}

// Publish enqueues the event keyed by key, usually the order id. A full buffer drops the event.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType Type, key string, payload any) {
	env, err := NewEnvelope(p.producer, eventType, key, payload)
	if err != nil {
		p.logger.Printf("events: encode type=%s key=%s error=%v", eventType, key, err)
		return
	}
	value, err := json.Marshal(env)
	if err != nil {
		p.logger.Printf("events: marshal type=%s key=%s error=%v", eventType, key, err)
		return
	}
	msg := kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Time:    env.OccurredAt,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(eventType)}},
	}
	select {
	case p.inbox <- msg:
	default:
		p.logger.Printf("events: buffer full, dropped type=%s key=%s event_id=%s", eventType, key, env.EventID)
	}
}

// Run writes queued messages until ctx is done, then flushes what is left and closes the writer.
func (p *KafkaPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case m := <-p.inbox:
					p.write(m)
				default:
					return p.w.Close()
				}
			}
		case m := <-p.inbox:
			p.write(m)
		}
	}
}

func (p *KafkaPublisher) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.logger.Printf("events: write key=%s error=%v", m.Key, err)
	}
}
