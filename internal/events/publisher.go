package events

//go:generate mockgen -source=publisher.go -destination=../mocks/mock_publisher.go -package=mocks

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	OrderPlaced            = "order.placed"
	PrescriptionSubmitted  = "prescription.submitted"
	PrescriptionReviewed   = "prescription.reviewed"
	PasswordResetRequested = "auth.password-reset-requested"
	ReviewChanged          = "review.changed"
)

// Publisher emits domain events. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
	Close()
}

// KafkaPublisher writes JSON events to Kafka, one topic per event under a shared prefix.
type KafkaPublisher struct {
	client *kgo.Client
	prefix string
}

func NewKafkaPublisher(brokers []string, prefix string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.ProducerLinger(5*time.Millisecond),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{client: client, prefix: prefix}, nil
}

func (p *KafkaPublisher) topicName(topic string) string {
	if p.prefix == "" {
		return topic
	}
	return p.prefix + "." + topic
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	record := &kgo.Record{
		Topic: p.topicName(topic),
		Key:   []byte(key),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		log.Printf("[EVENTS] [ERROR] publish %s failed: %v", record.Topic, err)
		return err
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}

// LogPublisher is used when no brokers are configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	log.Printf("[EVENTS] [INFO] %s key=%s %s", topic, key, value)
	return nil
}

func (LogPublisher) Close() {}

// New picks Kafka when brokers are configured and falls back to logging otherwise.
func New(brokers []string, prefix string) Publisher {
	if len(brokers) == 0 {
		log.Println("[EVENTS] [INFO] no KAFKA_BROKERS set, events go to the log")
		return LogPublisher{}
	}
	publisher, err := NewKafkaPublisher(brokers, prefix)
	if err != nil {
		log.Println("[EVENTS] [ERROR] kafka client init failed, falling back to log:", err)
		return LogPublisher{}
	}
	return publisher
}
