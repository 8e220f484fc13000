package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/ports"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the Kafka-backed queue
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaQueue publishes webhook jobs to a topic keyed by shop and consumes them with a group reader
type KafkaQueue struct {
	topic      string
	writer     messageWriter
	reader     messageReader
	retryDelay time.Duration
	wg         sync.WaitGroup
	logger     zerolog.Logger
}

// NewKafkaQueue creates the writer and the group reader
func NewKafkaQueue(cfg KafkaConfig, logger zerolog.Logger) *KafkaQueue {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})

	return newKafkaQueue(cfg.Topic, writer, reader, logger)
}

func newKafkaQueue(topic string, writer messageWriter, reader messageReader, logger zerolog.Logger) *KafkaQueue {
	return &KafkaQueue{
		topic:      topic,
		writer:     writer,
		reader:     reader,
		retryDelay: time.Second,
		logger:     logger,
	}
}

var _ ports.WebhookQueue = (*KafkaQueue)(nil)

// Enqueue writes the job; deliveries for one shop land on one partition
func (q *KafkaQueue) Enqueue(ctx context.Context, job *domain.WebhookJob) error {
	msg, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := q.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish webhook job: %w", err)
	}
	return nil
}

// Start consumes until ctx is done or the reader is closed. Offsets are committed after handling.
func (q *KafkaQueue) Start(ctx context.Context, handle ports.JobHandler) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.logger.Info().Str("topic", q.topic).Msg("Kafka webhook consumer started")

		for {
			message, err := q.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, io.EOF) {
					return
				}
				q.logger.Error().Err(err).Msg("Failed to read webhook job")
				select {
				case <-ctx.Done():
					return
				case <-time.After(q.retryDelay):
				}
				continue
			}

			job, err := decodeJob(message)
			if err != nil {
				q.logger.Error().Err(err).Int64("offset", message.Offset).Msg("Dropping malformed webhook job")
			} else {
				handle(ctx, job)
			}

			if err := q.reader.CommitMessages(ctx, message); err != nil {
				q.logger.Warn().Err(err).Int64("offset", message.Offset).Msg("Failed to commit webhook job")
			}
		}
	}()
}

// Close flushes the writer, stops the reader and waits for the consumer
func (q *KafkaQueue) Close() error {
	werr := q.writer.Close()
	rerr := q.reader.Close()
	q.wg.Wait()
	return errors.Join(werr, rerr)
}

func encodeJob(job *domain.WebhookJob) (kafka.Message, error) {
	value, err := json.Marshal(job)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode webhook job: %w", err)
	}
	return kafka.Message{
		Key:   []byte(job.ShopDomain),
		Value: value,
		Headers: []kafka.Header{
			{Key: "topic", Value: []byte(job.Topic)},
		},
	}, nil
}

func decodeJob(message kafka.Message) (*domain.WebhookJob, error) {
	var job domain.WebhookJob
	if err := json.Unmarshal(message.Value, &job); err != nil {
		return nil, fmt.Errorf("failed to decode webhook job: %w", err)
	}
	if job.EventID == "" {
		return nil, errors.New("webhook job has no event id")
	}
	return &job, nil
}
