// Package kafka is the message transport: questions arrive on one topic and
// answers leave on another. Messages that cannot be answered go to a DLQ.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubhsaxena/directory-assistant/internal/config"
	"github.com/shubhsaxena/directory-assistant/internal/models"
	"github.com/shubhsaxena/directory-assistant/internal/observability"
	"github.com/shubhsaxena/directory-assistant/internal/resilience"
)

// QuestionHandler answers one question.
type QuestionHandler func(ctx context.Context, req *models.AskRequest) (*models.AskResponse, error)

const fetchBackoff = time.Second

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader     messageReader
	replies    *Producer
	dlqWriter  messageWriter
	handler    QuestionHandler
	cfg        config.KafkaConfig
	retry      resilience.RetryConfig
	logger     *zap.Logger
	wg         sync.WaitGroup
	cancelFunc context.CancelFunc
}

func NewConsumer(cfg config.KafkaConfig, handler QuestionHandler, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.TopicQuestions,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	dlqWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.TopicDLQ,
		Balancer: &kafka.Hash{},
	}

	logger.Info("kafka consumer created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.TopicQuestions),
		zap.String("group", cfg.ConsumerGroup),
	)

	return newConsumer(reader, NewReplyProducer(cfg, logger), dlqWriter, handler, cfg, logger)
}

func newConsumer(reader messageReader, replies *Producer, dlq messageWriter, handler QuestionHandler, cfg config.KafkaConfig, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader:    reader,
		replies:   replies,
		dlqWriter: dlq,
		handler:   handler,
		cfg:       cfg,
		retry: resilience.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			InitialWait: 100 * time.Millisecond,
			MaxWait:     2 * time.Second,
			Multiplier:  2,
		},
		logger: logger,
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeLoop(ctx)
	}()

	c.logger.Info("kafka consumer started")
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka consumer shutting down")
			return
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetching kafka message", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(fetchBackoff):
			}
			continue
		}

		c.processMessage(ctx, msg)
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	start := time.Now()

	var req models.AskRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		c.logger.Error("unmarshaling kafka message",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
			zap.Int("partition", msg.Partition),
		)
		observability.KafkaMessagesTotal.WithLabelValues(c.cfg.TopicQuestions, "invalid").Inc()
		c.sendToDLQ(ctx, msg, fmt.Sprintf("unmarshal error: %v", err))
		c.commitMessage(ctx, msg)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		observability.KafkaMessagesTotal.WithLabelValues(c.cfg.TopicQuestions, "invalid").Inc()
		c.sendToDLQ(ctx, msg, "empty question text")
		c.commitMessage(ctx, msg)
		return
	}
	if c.expired(msg, start) {
		// Nobody is waiting for this answer any more.
		c.logger.Info("dropping stale question",
			zap.Duration("age", start.Sub(msg.Time)),
			zap.Int64("offset", msg.Offset),
			zap.Int("partition", msg.Partition),
		)
		observability.KafkaMessagesTotal.WithLabelValues(c.cfg.TopicQuestions, "expired").Inc()
		c.commitMessage(ctx, msg)
		return
	}
	if req.RequestID == "" {
		req.RequestID = headerValue(msg, headerRequestID)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	err := resilience.Retry(ctx, c.retry, func() error {
		resp, err := c.handler(ctx, &req)
		if err != nil {
			return fmt.Errorf("answering: %w", err)
		}
		return c.replies.PublishReply(ctx, resp)
	})
	if err != nil {
		if ctx.Err() != nil {
			// Left uncommitted so the question is redelivered after restart.
			return
		}
		c.logger.Error("question failed after retries, sending to DLQ",
			zap.Error(err),
			zap.String("request_id", req.RequestID),
		)
		observability.KafkaMessagesTotal.WithLabelValues(c.cfg.TopicQuestions, "dlq").Inc()
		c.sendToDLQ(ctx, msg, fmt.Sprintf("handler error after retries: %v", err))
	} else {
		observability.KafkaMessagesTotal.WithLabelValues(c.cfg.TopicQuestions, "success").Inc()
	}

	c.commitMessage(ctx, msg)

	c.logger.Debug("message processed",
		zap.String("request_id", req.RequestID),
		zap.Duration("duration", time.Since(start)),
	)
}

// expired reports whether msg sat in the topic longer than MaxQuestionAge.
// Messages without a timestamp never expire.
func (c *Consumer) expired(msg kafka.Message, now time.Time) bool {
	if c.cfg.MaxQuestionAge <= 0 || msg.Time.IsZero() {
		return false
	}
	return now.Sub(msg.Time) > c.cfg.MaxQuestionAge
}

func (c *Consumer) sendToDLQ(ctx context.Context, msg kafka.Message, reason string) {
	headers := append([]kafka.Header(nil), msg.Headers...)
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(headers,
			kafka.Header{Key: "dlq_reason", Value: []byte(reason)},
			kafka.Header{Key: "original_topic", Value: []byte(c.cfg.TopicQuestions)},
			kafka.Header{Key: "original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		),
	}

	if err := c.dlqWriter.WriteMessages(ctx, dlqMsg); err != nil {
		c.logger.Error("failed to send to DLQ",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
		)
	}
}

func (c *Consumer) commitMessage(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("committing kafka message",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
		)
	}
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *Consumer) HealthCheck(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", c.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("kafka health check dial: %w", err)
	}
	defer conn.Close()

	_, err = conn.Brokers()
	if err != nil {
		return fmt.Errorf("kafka health check brokers: %w", err)
	}
	return nil
}

func (c *Consumer) Stop() error {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()

	var errs []error
	if err := c.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing reader: %w", err))
	}
	if err := c.replies.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing reply writer: %w", err))
	}
	if err := c.dlqWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing dlq writer: %w", err))
	}

	return errors.Join(errs...)
}
