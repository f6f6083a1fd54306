package messaging

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/PratikKhaire/100x-n8n/internal/config"
	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/jsonx"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
	"github.com/PratikKhaire/100x-n8n/pkg/metrics"
)

// messageWriter is the subset of *kafka.Writer the producer uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// messageReader is the subset of *kafka.Reader the consumer uses
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer represents a Kafka message producer bound to one topic
type Producer struct {
	writer  messageWriter
	topic   string
	brokers []string
	logger  logger.Logger
	metrics *metrics.Metrics
}

// Consumer represents a Kafka consumer group member bound to one topic
type Consumer struct {
	reader  messageReader
	topic   string
	logger  logger.Logger
	metrics *metrics.Metrics
}

// Message represents a Kafka message
type Message struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
	Topic     string
	Partition int
	Offset    int64
}

// NewProducer creates a producer writing to topic
func NewProducer(cfg *config.KafkaConfig, topic string, log logger.Logger, m *metrics.Metrics) (*Producer, error) {
	if cfg == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "Kafka config is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.ValidationError(errors.CodeMissingField, "at least one Kafka broker is required")
	}
	if topic == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "Kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            cfg.ProducerRetryMax,
		BatchTimeout:           cfg.ProducerFlushFrequency,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
	}

	p := newProducer(writer, topic, log, m)
	p.brokers = cfg.Brokers
	return p, nil
}

func newProducer(writer messageWriter, topic string, log logger.Logger, m *metrics.Metrics) *Producer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Producer{writer: writer, topic: topic, logger: log, metrics: m}
}

// NewConsumer creates a consumer group reader for topic
func NewConsumer(cfg *config.KafkaConfig, topic string, log logger.Logger, m *metrics.Metrics) (*Consumer, error) {
	if cfg == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "Kafka config is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.ValidationError(errors.CodeMissingField, "at least one Kafka broker is required")
	}
	if cfg.GroupID == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "Kafka consumer group is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.GroupID,
		MinBytes:    cfg.ConsumerFetchMin,
		MaxBytes:    cfg.ConsumerFetchMax,
		MaxWait:     cfg.ConsumerMaxWaitTime,
		StartOffset: kafka.FirstOffset,
	})

	return newConsumer(reader, topic, log, m), nil
}

func newConsumer(reader messageReader, topic string, log logger.Logger, m *metrics.Metrics) *Consumer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Consumer{reader: reader, topic: topic, logger: log, metrics: m}
}

// Topic returns the topic the producer writes to
func (p *Producer) Topic() string {
	return p.topic
}

// Publish serializes value as JSON and writes it under key
func (p *Producer) Publish(ctx context.Context, key string, value interface{}) error {
	valueBytes, err := jsonx.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.CodeInternal,
			"failed to serialize message value")
	}

	now := time.Now()
	message := kafka.Message{
		Key:   []byte(key),
		Value: valueBytes,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "producer", Value: []byte("flowrun")},
			{Key: "timestamp", Value: []byte(now.UTC().Format(time.RFC3339))},
		},
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, message)
	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Failed to send message to Kafka",
			"error", err,
			"topic", p.topic,
			"key", key,
			"duration", duration,
		)
		p.metrics.RecordQueueMessage(p.topic, "error")
		return errors.Wrap(err, errors.ErrorTypeExternal, errors.CodeQueue,
			"failed to send message to Kafka")
	}

	p.logger.Debug("Message sent to Kafka",
		"topic", p.topic,
		"key", key,
		"size", len(valueBytes),
		"duration", duration,
	)
	p.metrics.RecordQueueMessage(p.topic, "success")
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// Health checks that the first broker answers a metadata request
func (p *Producer) Health(ctx context.Context) error {
	if len(p.brokers) == 0 {
		return nil
	}
	var dialer kafka.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeExternal, errors.CodeQueue,
			"failed to connect to Kafka broker")
	}
	defer conn.Close()

	if _, err := conn.ReadPartitions(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeExternal, errors.CodeQueue,
			"failed to read Kafka partitions")
	}
	return nil
}

// Consume fetches messages until ctx is done, hands each to handler and
// commits it afterwards. A handler error is logged and the message is still
// committed: failed runs are recorded, not redelivered.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, *Message) error) error {
	for {
		kafkaMsg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			c.logger.Error("Failed to read message from Kafka", "error", err)
			c.metrics.RecordQueueMessage(c.topic, "read_error")
			return errors.Wrap(err, errors.ErrorTypeExternal, errors.CodeQueue,
				"failed to read message from Kafka")
		}

		message := convertMessage(kafkaMsg)
		c.logger.Debug("Message read from Kafka",
			"topic", message.Topic,
			"partition", message.Partition,
			"offset", message.Offset,
			"key", message.Key,
		)

		if err := handler(ctx, message); err != nil {
			c.logger.Error("Failed to handle message",
				"error", err,
				"topic", message.Topic,
				"offset", message.Offset,
			)
			c.metrics.RecordQueueMessage(c.topic, "handler_error")
		} else {
			c.metrics.RecordQueueMessage(c.topic, "consumed")
		}

		if err := c.reader.CommitMessages(ctx, kafkaMsg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("Failed to commit message", "error", err, "offset", message.Offset)
			return errors.Wrap(err, errors.ErrorTypeExternal, errors.CodeQueue,
				"failed to commit message")
		}
	}
}

// Close closes the consumer
func (c *Consumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}

func convertMessage(kafkaMsg kafka.Message) *Message {
	headers := make(map[string]string, len(kafkaMsg.Headers))
	for _, header := range kafkaMsg.Headers {
		headers[header.Key] = string(header.Value)
	}
	return &Message{
		Key:       string(kafkaMsg.Key),
		Value:     kafkaMsg.Value,
		Headers:   headers,
		Timestamp: kafkaMsg.Time,
		Topic:     kafkaMsg.Topic,
		Partition: kafkaMsg.Partition,
		Offset:    kafkaMsg.Offset,
	}
}
