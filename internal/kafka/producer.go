package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubhsaxena/directory-assistant/internal/config"
	"github.com/shubhsaxena/directory-assistant/internal/models"
)

// Message headers shared by questions and replies.
const (
	headerRequestID = "request_id"
	headerIntent    = "intent"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes messages to one topic.
type Producer struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

func newWriter(cfg config.KafkaConfig, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxRetries,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
}

// NewReplyProducer writes answers to the replies topic.
func NewReplyProducer(cfg config.KafkaConfig, logger *zap.Logger) *Producer {
	logger.Info("kafka producer created", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.TopicReplies))
	return &Producer{writer: newWriter(cfg, cfg.TopicReplies), topic: cfg.TopicReplies, logger: logger}
}

// NewQuestionProducer writes questions, for clients and the ask command.
func NewQuestionProducer(cfg config.KafkaConfig, logger *zap.Logger) *Producer {
	logger.Info("kafka producer created", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.TopicQuestions))
	return &Producer{writer: newWriter(cfg, cfg.TopicQuestions), topic: cfg.TopicQuestions, logger: logger}
}

// PublishReply keys the reply by chat so one chat's replies stay ordered.
func (p *Producer) PublishReply(ctx context.Context, resp *models.AskResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshaling reply: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(chatKey(resp.Metadata.ChatID, resp.Metadata.RequestID)),
		Value: data,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: headerRequestID, Value: []byte(resp.Metadata.RequestID)},
			{Key: headerIntent, Value: []byte(resp.Intent)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing reply: %w", err)
	}
	return nil
}

func (p *Producer) PublishQuestion(ctx context.Context, req *models.AskRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling question: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(chatKey(req.ChatID, req.RequestID)),
		Value: data,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: headerRequestID, Value: []byte(req.RequestID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing question: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func chatKey(chatID, requestID string) string {
	if chatID != "" {
		return chatID
	}
	return requestID
}
