package ingest

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/ordishs/go-utils"
	"github.com/ordishs/go-utils/batcher"

	"github.com/okx/brc20index/ulogger"
)

// offsetMark is one processed message's commit point, batched up rather
// than marked one at a time so a consumer-group session isn't round-
// tripping to the broker on every single block (mirrors the teacher's
// Validator.go batching its store writes via
// github.com/ordishs/go-utils/batcher).
type offsetMark struct {
	session sarama.ConsumerGroupSession
	message *sarama.ConsumerMessage
}

func flushMarks(batch []*offsetMark) {
	var last *offsetMark
	for _, m := range batch {
		m.session.MarkMessage(m.message, "")
		last = m
	}
	if last != nil {
		last.session.Commit()
	}
}

// Consumer drives a Processor from a sarama.ConsumerGroup subscribed to
// the inscription-operations topic (§6).
type Consumer struct {
	group     sarama.ConsumerGroup
	topic     string
	processor *Processor
	logger    ulogger.Logger
	sessionID string

	// fatal carries the first unrecoverable processing error out of
	// ConsumeClaim to Run, which is reading it from a second goroutine.
	// It has room for one error and is never closed, so ConsumeClaim's
	// first send (through github.com/ordishs/go-utils SafeSend) does not
	// block even after that goroutine has returned.
	fatal chan error

	marks *batcher.Batcher[offsetMark]
}

// NewConsumer dials brokers under group, consuming topic. Transient
// Kafka errors surface on the group's own Errors() channel without
// stopping consumption, the standard sarama.ConsumerGroup contract;
// processing errors are fatal and stop the loop.
func NewConsumer(brokers []string, group, topic string, processor *Processor, logger ulogger.Logger) (*Consumer, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true

	cg, err := sarama.NewConsumerGroup(brokers, group, cfg)
	if err != nil {
		return nil, err
	}

	c := &Consumer{
		group:     cg,
		topic:     topic,
		processor: processor,
		logger:    logger,
		sessionID: uuid.New().String(),
		fatal:     make(chan error, 1),
	}
	c.marks = batcher.New[offsetMark](100, time.Second, flushMarks, true)
	return c, nil
}

// Run consumes until ctx is cancelled, a processing error is reported on
// c.fatal, or the group itself fails. sarama.ConsumerGroup.Consume
// returns on every rebalance, so this loops per sarama's own documented
// usage pattern.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Infof("ingest: consumer session %s starting on topic %s", c.sessionID, c.topic)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for err := range c.group.Errors() {
			c.logger.Warnf("ingest: consumer session %s: %v", c.sessionID, err)
		}
	}()

	go func() {
		select {
		case err := <-c.fatal:
			c.logger.Errorf("ingest: consumer session %s: fatal processing error: %v", c.sessionID, err)
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, c); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close releases the underlying consumer group.
func (c *Consumer) Close() error {
	return c.group.Close()
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim processes one partition's messages strictly in order
// (§4.9/§5: blocks are applied one at a time, in the order the tracker
// published them) and batches the resulting offset marks so the broker
// commit round trip is amortized rather than paid per block.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := c.processor.ProcessMessage(session.Context(), msg.Value); err != nil {
			utils.SafeSend(c.fatal, err)
			return err
		}

		c.marks.Put(&offsetMark{session: session, message: msg})
	}

	return nil
}
