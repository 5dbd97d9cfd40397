// Package search maintains a best-effort word index of messages in Redis.
// Indexing failures are never allowed to block message creation.
package search

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"chatspark/internal/domain"
)

const indexTTL = 7 * 24 * time.Hour

var wordPattern = regexp.MustCompile(`[a-zA-Z0-9]{3,}`)

// Indexer writes message ids into per-word Redis sets. A nil *Indexer is a
// valid no-op, so callers do not need to guard for a disabled index.
type Indexer struct {
	client *redis.Client
}

func NewIndexer(client *redis.Client) *Indexer {
	return &Indexer{client: client}
}

func wordKey(word string) string {
	return fmt.Sprintf("search:words:%s", strings.ToLower(word))
}

// IndexMessage indexes the message content under each of its words.
func (ix *Indexer) IndexMessage(ctx context.Context, m *domain.Message) error {
	if ix == nil {
		return nil
	}

	words := wordPattern.FindAllString(m.Content, -1)
	if len(words) == 0 {
		return nil
	}

	id := strconv.FormatInt(m.ID, 10)
	pipe := ix.client.Pipeline()
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		key := wordKey(w)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		pipe.SAdd(ctx, key, id)
		pipe.Expire(ctx, key, indexTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Search returns ids of messages containing every word of the query.
func (ix *Indexer) Search(ctx context.Context, query string) ([]int64, error) {
	if ix == nil {
		return nil, nil
	}
	words := wordPattern.FindAllString(query, -1)
	if len(words) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(words))
	for _, w := range words {
		keys = append(keys, wordKey(w))
	}
	members, err := ix.client.SInter(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
