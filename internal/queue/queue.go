// Package queue provides the durable pending-send channel between the draft
// queuer and the draft consumer, backed by NATS JetStream.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	// StreamName is the JetStream stream holding pending sends.
	StreamName = "ENGAGE"
	// SubjectPending carries references to drafts awaiting delivery.
	SubjectPending = "engage.pending"
	// SubjectDeadLetter holds references that exhausted their redeliveries.
	SubjectDeadLetter = "engage.dead_letter"
	// ConsumerName is the durable consumer drained by the draft consumer.
	ConsumerName = "draft-consumer"
)

// DraftRef is the wire payload: a small reference to a pending draft.
type DraftRef struct {
	DraftID int64 `json:"draftId"`
}

// Config holds queue connection settings.
type Config struct {
	URL        string
	MaxDeliver int
	AckWait    time.Duration
}

// Queue wraps the NATS connection, stream and durable consumer.
type Queue struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	stream   jetstream.Stream
	consumer jetstream.Consumer
	log      zerolog.Logger
}

func New(log zerolog.Logger) *Queue {
	return &Queue{log: log.With().Str("component", "queue").Logger()}
}

// Connect establishes the NATS connection and ensures the stream exists.
func (q *Queue) Connect(ctx context.Context, cfg Config) error {
	nc, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	q.nc = nc

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create jetstream context: %w", err)
	}
	q.js = js

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Pending automated sends",
		Subjects:    []string{SubjectPending, SubjectDeadLetter},
		Retention:   jetstream.WorkQueuePolicy,
		Storage:     jetstream.FileStorage,
		Duplicates:  2 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("create stream: %w", err)
	}
	q.stream = stream

	q.log.Info().Str("url", cfg.URL).Str("stream", StreamName).Msg("connected to queue")
	return nil
}

// CreateConsumer ensures the durable consumer used by the draft consumer.
func (q *Queue) CreateConsumer(ctx context.Context, cfg Config) error {
	consumer, err := q.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          ConsumerName,
		Durable:       ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: 1, // strictly sequential: one reference in flight
		FilterSubject: SubjectPending,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	q.consumer = consumer
	return nil
}

// PublishDraft publishes a draft reference with persistence. The message id
// dedups a double-publish of the same draft within the duplicate window.
func (q *Queue) PublishDraft(ctx context.Context, draftID int64) error {
	if q.js == nil {
		return fmt.Errorf("queue not connected")
	}

	data, err := json.Marshal(DraftRef{DraftID: draftID})
	if err != nil {
		return fmt.Errorf("marshal draft ref: %w", err)
	}

	_, err = q.js.Publish(ctx, SubjectPending, data,
		jetstream.WithMsgID(fmt.Sprintf("draft-%d", draftID)))
	if err != nil {
		return fmt.Errorf("publish draft %d: %w", draftID, err)
	}
	return nil
}

// PublishDeadLetter quarantines a reference that cannot be processed.
func (q *Queue) PublishDeadLetter(ctx context.Context, ref DraftRef, reason string) error {
	if q.js == nil {
		return fmt.Errorf("queue not connected")
	}

	data, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("marshal dead-letter ref: %w", err)
	}

	if _, err := q.js.Publish(ctx, SubjectDeadLetter, data); err != nil {
		return fmt.Errorf("publish dead-letter: %w", err)
	}

	q.log.Warn().Int64("draft_id", ref.DraftID).Str("reason", reason).Msg("draft dead-lettered")
	return nil
}

// Messages returns a channel of pending draft references. The channel is
// unbuffered and fed by a single fetch loop, so consumption stays sequential.
func (q *Queue) Messages(ctx context.Context) (<-chan *DraftMessage, error) {
	if q.consumer == nil {
		return nil, fmt.Errorf("consumer not initialized")
	}

	out := make(chan *DraftMessage)

	go func() {
		defer close(out)

		iter, err := q.consumer.Messages(jetstream.PullMaxMessages(1))
		if err != nil {
			q.log.Error().Err(err).Msg("create message iterator")
			return
		}
		defer iter.Stop()

		go func() {
			<-ctx.Done()
			iter.Stop()
		}()

		for {
			msg, err := iter.Next()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				q.log.Error().Err(err).Msg("fetch message")
				return
			}

			var ref DraftRef
			if err := json.Unmarshal(msg.Data(), &ref); err != nil {
				// Malformed payloads can never succeed; drop them.
				q.log.Error().Err(err).Msg("unmarshal draft ref")
				if err := msg.Term(); err != nil {
					q.log.Error().Err(err).Msg("terminate malformed message")
				}
				continue
			}

			deliveries := 1
			if meta, err := msg.Metadata(); err == nil && meta != nil {
				deliveries = int(meta.NumDelivered)
			}

			select {
			case out <- &DraftMessage{ref: ref, deliveries: deliveries, msg: msg}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// DraftMessage is one dequeued reference with its acknowledgment handle.
type DraftMessage struct {
	ref        DraftRef
	deliveries int
	msg        jetstream.Msg
}

func (m *DraftMessage) Ref() DraftRef   { return m.ref }
func (m *DraftMessage) Deliveries() int { return m.deliveries }

// Ack acknowledges successful processing.
func (m *DraftMessage) Ack() error { return m.msg.Ack() }

// Nak requests redelivery.
func (m *DraftMessage) Nak() error { return m.msg.Nak() }

// Term stops redelivery permanently.
func (m *DraftMessage) Term() error { return m.msg.Term() }

// Close closes the NATS connection.
func (q *Queue) Close() {
	if q.nc != nil {
		q.nc.Close()
	}
}

// IsConnected reports whether the NATS connection is up.
func (q *Queue) IsConnected() bool {
	return q.nc != nil && q.nc.IsConnected()
}
