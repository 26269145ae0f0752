// Package events publishes completed analysis results to Kafka so
// downstream consumers (history, alerting) can react without polling.
// Publication is best-effort and never fails the originating request.
package events

import (
	"log"
	"os"
	"strings"

	"github.com/IBM/sarama"
)

const defaultTopic = "marketscholar.analyses"

// Publisher wraps a sarama sync producer bound to a single topic.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewFromEnv returns a Publisher if KAFKA_BROKERS is set (comma-separated),
// nil otherwise. Topic defaults to marketscholar.analyses; override with
// KAFKA_TOPIC.
func NewFromEnv() *Publisher {
	brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	if brokers == "" {
		return nil
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = defaultTopic
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal

	producer, err := sarama.NewSyncProducer(strings.Split(brokers, ","), cfg)
	if err != nil {
		log.Printf("Warning: failed to init Kafka producer: %v (events disabled)", err)
		return nil
	}
	return &Publisher{producer: producer, topic: topic}
}

// PublishAnalysis sends one analysis record keyed by its ID.
func (p *Publisher) PublishAnalysis(id string, record []byte) error {
	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(id),
		Value: sarama.ByteEncoder(record),
	})
	return err
}

// Close shuts down the underlying producer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.producer.Close()
}
