package kafkaconsumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	obs "github.com/mohammed-shakir/wfs-filter-encoding/internal/core/observability"
)

type messageProcessor func(context.Context, *sarama.ConsumerMessage) error

// groupHandler marks an offset only after its message was processed.
type groupHandler struct {
	process messageProcessor
	log     *slog.Logger
}

func (h *groupHandler) logger() *slog.Logger {
	if h.log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return h.log
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	h.logger().InfoContext(sess.Context(), "purge partitions assigned",
		"member", sess.MemberID(), "generation", sess.GenerationID(), "claims", sess.Claims())
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	h.logger().DebugContext(sess.Context(), "purge session ended", "generation", sess.GenerationID())
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	var applied int
	for {
		select {
		case <-ctx.Done():
			h.logger().DebugContext(ctx, "purge claim released",
				"partition", claim.Partition(), "applied", applied)
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.process(ctx, msg); err != nil {
				return fmt.Errorf("purge topic=%s partition=%d offset=%d: %w",
					msg.Topic, msg.Partition, msg.Offset, err)
			}
			sess.MarkMessage(msg, "")
			applied++
			if hw := claim.HighWaterMarkOffset(); hw > 0 {
				obs.SetPurgeLag(claim.Partition(), hw-msg.Offset-1)
			}
		}
	}
}
