package engage

import (
	"math/rand"

	"chatspark/internal/domain"
)

// Pair is an ordered (sender, receiver) pairing produced by a strategy.
type Pair struct {
	Sender   *domain.User
	Receiver *domain.User
}

// Pairing partitions a set of users into disjoint sender/receiver pairs.
type Pairing interface {
	Pair(users []*domain.User) []Pair
}

// ShufflePairing shuffles the user set and pairs adjacent entries. With an
// odd number of users the last one is left unpaired for that run.
type ShufflePairing struct {
	rng *rand.Rand
}

func NewShufflePairing(rng *rand.Rand) *ShufflePairing {
	return &ShufflePairing{rng: rng}
}

func (p *ShufflePairing) Pair(users []*domain.User) []Pair {
	if len(users) < 2 {
		return nil
	}

	shuffled := make([]*domain.User, len(users))
	copy(shuffled, users)
	p.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	pairs := make([]Pair, 0, len(shuffled)/2)
	for i := 0; i+1 < len(shuffled); i += 2 {
		pairs = append(pairs, Pair{Sender: shuffled[i], Receiver: shuffled[i+1]})
	}
	return pairs
}
