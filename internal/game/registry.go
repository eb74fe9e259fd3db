package game

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Registry is the per-round bet collection. One bet per player per round.
// It lives exactly as long as its round and is discarded once the round is
// archived.
type Registry struct {
	mu     sync.RWMutex
	bets   map[uuid.UUID]*Bet
	byUser map[string]*Bet
	order  []*Bet
}

func NewRegistry() *Registry {
	return &Registry{
		bets:   make(map[uuid.UUID]*Bet),
		byUser: make(map[string]*Bet),
	}
}

func (r *Registry) Add(bet *Bet) error {
	const op = "game.registry.Add"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUser[bet.UserUUID]; ok {
		return fmt.Errorf("%s: %w", op, ErrAlreadyBet)
	}

	r.bets[bet.ID] = bet
	r.byUser[bet.UserUUID] = bet
	r.order = append(r.order, bet)

	return nil
}

func (r *Registry) Get(id uuid.UUID) (*Bet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bet, ok := r.bets[id]

	return bet, ok
}

func (r *Registry) ByUser(userUUID string) (*Bet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bet, ok := r.byUser[userUUID]

	return bet, ok
}

// All returns the bets in placement order.
func (r *Registry) All() []*Bet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Bet, len(r.order))
	copy(out, r.order)

	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}
