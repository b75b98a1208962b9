package kafka

import (
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-express-checkout/internal/config"
)

// EnsureTopicsExist creates the payment event topics if they don't
// already exist. Missing topics are not fatal at startup; publishing
// will surface the error again.
func EnsureTopicsExist(brokers []string, topics config.TopicConfig) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", controller.Host)
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	for _, topic := range []string{topics.PaymentCompleted, topics.PaymentFailed} {
		err = controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		if err != nil {
			if err.Error() == "kafka server: topic already exists" {
				log.Printf("Topic %s already exists", topic)
				continue
			}
			log.Printf("Error creating topic %s: %v", topic, err)
		} else {
			log.Printf("Created topic: %s", topic)
		}
	}

	// Give the broker a moment to settle the new topics
	time.Sleep(1 * time.Second)
	return nil
}
