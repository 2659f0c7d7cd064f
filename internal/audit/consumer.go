package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Handler processes one decoded audit event. Returning an error leaves the
// message unacknowledged in the group's pending list. The consumer only reads
// new entries, so such a message is not redelivered by this process.
type Handler func(ctx context.Context, event Event) error

type Consumer struct {
	client       *redis.Client
	stream       string
	groupID      string
	consumerName string
	block        time.Duration
	handler      Handler
	logger       *zerolog.Logger
}

func NewConsumer(client *redis.Client, stream, groupID, consumerName string, handler Handler, logger *zerolog.Logger) *Consumer {
	if stream == "" {
		stream = DefaultStream
	}
	if groupID == "" {
		groupID = DefaultGroup
	}
	return &Consumer{
		client:       client,
		stream:       stream,
		groupID:      groupID,
		consumerName: consumerName,
		block:        2 * time.Second,
		handler:      handler,
		logger:       logger,
	}
}

func (c *Consumer) Setup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.groupID, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info().
		Str("stream", c.stream).
		Str("group", c.groupID).
		Str("consumer", c.consumerName).
		Msg("Audit consumer started")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if _, err := c.poll(ctx, c.block); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error().Err(err).Msg("Failed to read from stream")
		}
	}
}

// poll reads one batch. A negative block returns immediately when the stream is empty.
func (c *Consumer) poll(ctx context.Context, block time.Duration) (int, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.groupID,
		Consumer: c.consumerName,
		Streams:  []string{c.stream, ">"},
		Count:    10,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}

	processed := 0
	for _, s := range streams {
		for _, msg := range s.Messages {
			c.process(ctx, msg)
			processed++
		}
	}
	return processed, nil
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage) {
	payload, ok := msg.Values[payloadField].(string)
	if !ok {
		c.logger.Error().Str("id", msg.ID).Msg("Missing payload field")
		c.ack(ctx, msg.ID)
		return
	}

	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		c.logger.Error().Err(err).Str("id", msg.ID).Msg("Failed to decode audit event")
		c.ack(ctx, msg.ID)
		return
	}

	if err := c.handler(ctx, event); err != nil {
		c.logger.Error().Err(err).Str("id", msg.ID).Msg("Audit handler failed, message left pending")
		return
	}

	c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, msgID string) {
	if err := c.client.XAck(ctx, c.stream, c.groupID, msgID).Err(); err != nil {
		c.logger.Error().Err(err).Str("id", msgID).Msg("Failed to ACK message")
	}
}

// LogHandler writes every event to the logger.
func LogHandler(logger *zerolog.Logger) Handler {
	return func(_ context.Context, event Event) error {
		logger.Warn().
			Str("requestID", event.RequestID).
			Str("provider", event.Provider).
			Str("source", event.Source).
			Str("promptSHA256", event.PromptSHA256).
			Int("promptLength", event.PromptLength).
			Strs("categories", event.Categories).
			Strs("patternIDs", event.PatternIDs).
			Time("occurredAt", event.OccurredAt).
			Msg("prompt rejected")
		return nil
	}
}
