// Package kafkaconsumer applies purge events from Kafka to the filter cache.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	obs "github.com/mohammed-shakir/wfs-filter-encoding/internal/core/observability"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/invalidation"
	mylog "github.com/mohammed-shakir/wfs-filter-encoding/internal/logger"
)

// Deleter removes keys from every cache tier. cache.Tiered satisfies it.
type Deleter interface {
	Del(ctx context.Context, keys ...string) error
}

type HotnessResetter interface {
	Reset(keys ...string)
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	cache  Deleter
	hot    HotnessResetter
}

// New builds a consumer. hot may be nil.
func New(cfg Config, logger *slog.Logger, c Deleter, hot HotnessResetter) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:    cfg.withDefaults(),
		logger: logger,
		cache:  c,
		hot:    hot,
	}
}

// Start joins the consumer group and processes purge events until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if c.cache == nil {
		return errors.New("kafkaconsumer: missing cache")
	}
	if len(c.cfg.Brokers) == 0 {
		return errors.New("kafkaconsumer: no brokers")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	return c.run(ctx, group)
}

func (c *Consumer) run(ctx context.Context, group sarama.ConsumerGroup) error {
	ctx = mylog.WithComponent(ctx, "purge_consumer")
	handler := &groupHandler{process: c.ProcessOne, log: c.logger}

	c.logger.InfoContext(ctx, "kafka purge consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			obs.IncKafkaConsumerError("consume")
			c.logger.ErrorContext(ctx, "kafka consumer error", "err", err, "topic", c.cfg.Topic)
			select {
			case <-ctx.Done():
			case <-time.After(c.cfg.RetryBackoff):
			}
		}
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "kafka purge consumer shutting down")
			return nil
		}
	}
}

// ProcessOne applies a single purge message. Malformed or invalid events are
// logged and skipped; a cache failure is returned so the message is retried.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.IncKafkaConsumerError("decode")
		c.logger.WarnContext(ctx, "skipping undecodable purge event",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		obs.IncKafkaConsumerError("invalid")
		c.logger.WarnContext(ctx, "skipping invalid purge event",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}

	keys := ev.UniqueKeys()
	if err := c.cache.Del(ctx, keys...); err != nil {
		obs.IncKafkaConsumerError("cache_del")
		obs.ObservePurge(0, err, time.Since(start).Seconds())
		return fmt.Errorf("cache del: %w", err)
	}
	if c.hot != nil {
		c.hot.Reset(keys...)
	}

	obs.ObservePurge(len(keys), nil, time.Since(start).Seconds())
	c.logger.InfoContext(ctx, "purged cache keys",
		"keys", len(keys), "source", ev.Source, "reason", ev.Reason, "offset", msg.Offset)
	return nil
}
