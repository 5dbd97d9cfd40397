package engage

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"chatspark/internal/domain"
	"chatspark/internal/metrics"
	"chatspark/internal/queue"
	"chatspark/internal/service"
)

// Deliverer pushes a freshly created message to its recipient if connected.
type Deliverer interface {
	DeliverMessage(msg *domain.Message)
}

// deadLetterer quarantines references that exhausted their redeliveries.
type deadLetterer interface {
	PublishDeadLetter(ctx context.Context, ref queue.DraftRef, reason string) error
}

// draftDelivery is one dequeued reference with its acknowledgment handle.
type draftDelivery interface {
	Ref() queue.DraftRef
	Deliveries() int
	Ack() error
	Nak() error
	Term() error
}

// Consumer drains the queue sequentially, materializing drafts into real
// messages. One reference is in flight at a time.
type Consumer struct {
	drafts     domain.DraftRepository
	messages   *service.MessageService
	deliverer  Deliverer
	deadLetter deadLetterer
	maxDeliver int
	log        zerolog.Logger
}

func NewConsumer(
	drafts domain.DraftRepository,
	messages *service.MessageService,
	deliverer Deliverer,
	deadLetter deadLetterer,
	maxDeliver int,
	log zerolog.Logger,
) *Consumer {
	return &Consumer{
		drafts:     drafts,
		messages:   messages,
		deliverer:  deliverer,
		deadLetter: deadLetter,
		maxDeliver: maxDeliver,
		log:        log.With().Str("component", "draft-consumer").Logger(),
	}
}

// Run consumes references until ctx is canceled or the channel closes.
func (c *Consumer) Run(ctx context.Context, msgs <-chan *queue.DraftMessage) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			c.process(ctx, m)
		}
	}
}

func (c *Consumer) process(ctx context.Context, m draftDelivery) {
	draftID := m.Ref().DraftID
	log := c.log.With().Int64("draft_id", draftID).Logger()

	err := c.handle(ctx, draftID)
	if err == nil {
		if err := m.Ack(); err != nil {
			log.Error().Err(err).Msg("ack failed")
		}
		return
	}

	log.Error().Err(err).Int("deliveries", m.Deliveries()).Msg("process draft failed")

	if m.Deliveries() >= c.maxDeliver {
		// Poison reference; quarantine it so it cannot stall the pipeline.
		if dlErr := c.deadLetter.PublishDeadLetter(ctx, m.Ref(), err.Error()); dlErr != nil {
			log.Error().Err(dlErr).Msg("dead-letter publish failed")
			if nakErr := m.Nak(); nakErr != nil {
				log.Error().Err(nakErr).Msg("nak failed")
			}
			return
		}
		metrics.DraftsDeadLettered.Inc()
		if termErr := m.Term(); termErr != nil {
			log.Error().Err(termErr).Msg("term failed")
		}
		return
	}

	if nakErr := m.Nak(); nakErr != nil {
		log.Error().Err(nakErr).Msg("nak failed")
	}
}

func (c *Consumer) handle(ctx context.Context, draftID int64) error {
	draft, err := c.drafts.GetByID(ctx, draftID)
	if errors.Is(err, domain.ErrNotFound) {
		// Already processed and removed; acknowledge as success.
		c.log.Info().Int64("draft_id", draftID).Msg("draft not found, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get draft: %w", err)
	}
	if draft.Sent {
		c.log.Info().Int64("draft_id", draftID).Msg("draft already sent, skipping")
		return nil
	}

	msg, err := c.messages.SendMessage(ctx, draft.SenderID, draft.ReceiverID, draft.Content, service.OriginDraft)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	if err := c.drafts.MarkSent(ctx, draftID); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}

	c.deliverer.DeliverMessage(msg)
	metrics.DraftsSent.Inc()
	return nil
}
