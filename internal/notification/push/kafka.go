package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"donorlink/internal/notification/models"
)

// DefaultTopic receives one record per delivery.
const DefaultTopic = "donorlink-push"

// Envelope is the record value consumed by the web-push sender.
type Envelope struct {
	SubscriptionID string  `json:"subscriptionId"`
	UserID         string  `json:"userId"`
	Endpoint       string  `json:"endpoint"`
	P256dh         string  `json:"p256dh"`
	Auth           string  `json:"auth"`
	Payload        Payload `json:"payload"`
}

// KafkaChannel publishes deliveries to a topic keyed by user, so one user's
// messages stay ordered on a single partition.
type KafkaChannel struct {
	client *kgo.Client
	topic  string
}

// NewKafkaChannel connects to brokers and makes sure topic exists.
func NewKafkaChannel(ctx context.Context, brokers []string, topic string, opts ...kgo.Opt) (*KafkaChannel, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping kafka: %w", err)
	}
	if err := ensureTopic(ctx, kadm.NewClient(client), topic); err != nil {
		client.Close()
		return nil, err
	}
	return &KafkaChannel{client: client, topic: topic}, nil
}

func ensureTopic(ctx context.Context, adm *kadm.Client, topic string) error {
	resp, err := adm.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

func (c *KafkaChannel) Name() string { return "kafka" }

func (c *KafkaChannel) Topic() string { return c.topic }

func (c *KafkaChannel) Deliver(ctx context.Context, sub *models.PushSubscription, payload Payload) error {
	value, err := json.Marshal(Envelope{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Endpoint:       sub.Endpoint,
		P256dh:         sub.P256dh,
		Auth:           sub.Auth,
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("encode push envelope: %w", err)
	}
	record := &kgo.Record{
		Topic: c.topic,
		Key:   []byte(sub.UserID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "kind", Value: []byte(payload.Kind)},
		},
	}
	return c.client.ProduceSync(ctx, record).FirstErr()
}

func (c *KafkaChannel) Close() {
	c.client.Close()
}
