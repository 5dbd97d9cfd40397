package engage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chatspark/internal/domain"
	"chatspark/internal/metrics"
)

// draftPublisher is the queue surface the queuer needs.
type draftPublisher interface {
	PublishDraft(ctx context.Context, draftID int64) error
}

// Queuer promotes due drafts onto the queue. Each tick atomically claims at
// most batchSize drafts (marking them queued) and then publishes their
// references one by one. A failed publish releases the claim so the draft
// is retried on a later tick.
type Queuer struct {
	drafts    domain.DraftRepository
	publisher draftPublisher
	batchSize int
	now       func() time.Time
	log       zerolog.Logger
}

func NewQueuer(drafts domain.DraftRepository, publisher draftPublisher, batchSize int, log zerolog.Logger) *Queuer {
	return &Queuer{
		drafts:    drafts,
		publisher: publisher,
		batchSize: batchSize,
		now:       time.Now,
		log:       log.With().Str("component", "draft-queuer").Logger(),
	}
}

// Run executes one queuer tick.
func (q *Queuer) Run(ctx context.Context) error {
	claimed, err := q.drafts.ClaimDue(ctx, q.now(), q.batchSize)
	if err != nil {
		return fmt.Errorf("claim due drafts: %w", err)
	}
	if len(claimed) == 0 {
		return nil
	}

	published := 0
	for _, d := range claimed {
		if err := q.publisher.PublishDraft(ctx, d.ID); err != nil {
			q.log.Error().Err(err).Int64("draft_id", d.ID).Msg("publish failed, releasing claim")
			if err := q.drafts.ReleaseClaim(ctx, d.ID); err != nil {
				q.log.Error().Err(err).Int64("draft_id", d.ID).Msg("release claim failed")
			}
			continue
		}
		published++
	}

	metrics.DraftsQueued.Add(float64(published))
	q.log.Info().Int("claimed", len(claimed)).Int("published", published).Msg("queued due drafts")
	return nil
}
