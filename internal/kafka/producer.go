package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-express-checkout/internal/config"
	"ms-express-checkout/internal/logger"
	"ms-express-checkout/internal/models"
)

type Producer struct {
	writer *kafka.Writer
	topics config.TopicConfig
	log    *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{writer: writer, topics: topics, log: log}
}

func (p *Producer) publish(topic, key string, event models.PaymentEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal payment event: %w", err)
	}

	p.log.LogKafka("PUBLISH", topic, fmt.Sprintf("token=%s type=%s", key, event.Type))

	return p.writer.WriteMessages(context.Background(), kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
}

// PublishPaymentCompleted streams a successful capture to the completed topic.
func (p *Producer) PublishPaymentCompleted(payment models.ExpressPayment) error {
	return p.publish(p.topics.PaymentCompleted, payment.Token, models.PaymentEvent{
		Type:          "payment.completed",
		Token:         payment.Token,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		TransactionID: payment.TransactionID,
		ReferenceType: payment.ReferenceType,
		ReferenceName: payment.ReferenceName,
		Timestamp:     time.Now(),
	})
}

// PublishPaymentFailed streams a failed capture attempt to the failed topic.
func (p *Producer) PublishPaymentFailed(token, reason string) error {
	return p.publish(p.topics.PaymentFailed, token, models.PaymentEvent{
		Type:      "payment.failed",
		Token:     token,
		Reason:    reason,
		Timestamp: time.Now(),
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// NopPublisher swallows events when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishPaymentCompleted(models.ExpressPayment) error { return nil }
func (NopPublisher) PublishPaymentFailed(string, string) error           { return nil }
