// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sink publishes run summaries to external systems.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/pdiddy/paper-triage/internal/pipeline"
)

// MessageWriter is the subset of *kafka.Writer the sink uses. It allows
// mocking in unit tests.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each run summary as one JSON message keyed by run id.
type KafkaSink struct {
	writer MessageWriter
}

// NewKafkaSink returns a sink writing to topic on brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return NewKafkaSinkWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 10 * time.Second,
	})
}

// NewKafkaSinkWithWriter returns a sink using w.
func NewKafkaSinkWithWriter(w MessageWriter) *KafkaSink {
	return &KafkaSink{writer: w}
}

// summaryEvent is the message payload.
type summaryEvent struct {
	Type    string              `json:"type"`
	Summary pipeline.RunSummary `json:"summary"`
}

// Publish writes s to the topic.
func (k *KafkaSink) Publish(ctx context.Context, s pipeline.RunSummary) error {
	payload, err := json.Marshal(summaryEvent{Type: "paper_triage.run_finished", Summary: s})
	if err != nil {
		return fmt.Errorf("marshaling run summary: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(s.RunID),
		Value: payload,
		Time:  s.FinishedAt,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing run summary to kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
