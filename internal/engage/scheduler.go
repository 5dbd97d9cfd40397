// Package engage implements the automated-message pipeline: a daily
// scheduler that drafts messages between paired active users, a per-minute
// queuer that publishes due drafts, and a sequential consumer that turns
// queued drafts into real messages.
package engage

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"chatspark/internal/domain"
	"chatspark/internal/metrics"
)

// Scheduler manufactures drafts between paired active users once a day.
type Scheduler struct {
	users   domain.UserRepository
	drafts  domain.DraftRepository
	pairing Pairing
	content ContentGenerator
	rng     *rand.Rand
	window  time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

func NewScheduler(
	users domain.UserRepository,
	drafts domain.DraftRepository,
	pairing Pairing,
	content ContentGenerator,
	rng *rand.Rand,
	activityWindow time.Duration,
	log zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		users:   users,
		drafts:  drafts,
		pairing: pairing,
		content: content,
		rng:     rng,
		window:  activityWindow,
		now:     time.Now,
		log:     log.With().Str("component", "draft-scheduler").Logger(),
	}
}

// Run executes one scheduling pass. Any error aborts the whole run; the
// next scheduled run starts fresh.
func (s *Scheduler) Run(ctx context.Context) error {
	now := s.now()

	users, err := s.users.ListActiveSince(ctx, now.Add(-s.window))
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}
	if len(users) < 2 {
		s.log.Info().Int("active_users", len(users)).Msg("not enough active users to pair")
		return nil
	}

	pairs := s.pairing.Pair(users)
	drafts := make([]*domain.Draft, 0, len(pairs))
	for _, p := range pairs {
		// Uniformly random send time within the next 24 hours.
		offset := time.Duration(s.rng.Int63n(int64(24 * time.Hour)))
		drafts = append(drafts, &domain.Draft{
			SenderID:   p.Sender.ID,
			ReceiverID: p.Receiver.ID,
			Content:    s.content.Generate(p.Sender, p.Receiver),
			SendAt:     now.Add(offset),
		})
	}

	if err := s.drafts.CreateBatch(ctx, drafts); err != nil {
		return fmt.Errorf("create drafts: %w", err)
	}

	metrics.DraftsScheduled.Add(float64(len(drafts)))
	s.log.Info().
		Int("active_users", len(users)).
		Int("drafts", len(drafts)).
		Msg("scheduled drafts")
	return nil
}
