// Package kafka publishes schema-tagged extraction messages to a Kafka
// topic, keyed by stream name so a table's records stay in one partition.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/mehmetymw/tap-libsql/internal/types"
)

type Sink struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

type Message struct {
	Type           string         `json:"type"`
	Stream         string         `json:"stream,omitempty"`
	Schema         *types.Schema  `json:"schema,omitempty"`
	KeyProperties  []string       `json:"key_properties,omitempty"`
	ReplicationKey string         `json:"replication_key,omitempty"`
	Record         types.Record   `json:"record,omitempty"`
	Value          map[string]any `json:"value,omitempty"`
}

func New(brokers []string, topic string, logger *zap.Logger) (*Sink, error) {
	logger.Info("Creating Kafka sink",
		zap.Strings("brokers", brokers),
		zap.String("topic", topic))

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
		Async:        false, // Synchronous for reliability
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Debug("Kafka writer log", zap.String("msg", fmt.Sprintf(msg, args...)))
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error("Kafka writer error", zap.String("msg", fmt.Sprintf(msg, args...)))
		}),
	}

	sink := &Sink{
		writer: writer,
		topic:  topic,
		logger: logger,
	}

	logger.Info("Kafka sink created successfully")
	return sink, nil
}

func (s *Sink) WriteSchema(stream string, schema *types.Schema, keyProperties []string, replicationKey string) error {
	s.logger.Debug("Publishing schema to Kafka", zap.String("stream", stream))
	return s.publishMessage(stream, Message{
		Type:           "SCHEMA",
		Stream:         stream,
		Schema:         schema,
		KeyProperties:  keyProperties,
		ReplicationKey: replicationKey,
	})
}

func (s *Sink) WriteRecord(stream string, rec types.Record) error {
	return s.publishMessage(stream, Message{Type: "RECORD", Stream: stream, Record: rec})
}

func (s *Sink) WriteState(state map[string]any) error {
	s.logger.Debug("Publishing state to Kafka", zap.Any("state", state))
	return s.publishMessage("state", Message{Type: "STATE", Value: state})
}

func (s *Sink) publishMessage(key string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Failed to marshal Kafka message", zap.Error(err))
		return err
	}

	kafkaMsg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	err = s.writer.WriteMessages(ctx, kafkaMsg)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("Failed to write message to Kafka",
			zap.Error(err),
			zap.String("key", key),
			zap.Duration("duration", duration))
		return err
	}

	s.logger.Debug("Message sent to Kafka successfully",
		zap.String("key", key),
		zap.Duration("duration", duration))

	return nil
}

func (s *Sink) Close() error {
	s.logger.Info("Closing Kafka sink")
	if s.writer != nil {
		return s.writer.Close()
	}
	return nil
}
