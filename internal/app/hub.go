package app

import (
	"sync"

	"quiz-race-service/internal/domain"
)

// Hub fans leaderboard snapshots out to subscribers, per material.
// Each subscriber only ever receives snapshots with increasing versions, so a
// publish that loses the race to a newer one is dropped rather than delivered late.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch      chan domain.Leaderboard
	version int64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers a channel for initial.MaterialID and primes it with initial.
func (h *Hub) Subscribe(initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	sub := &subscriber{ch: make(chan domain.Leaderboard, 8), version: initial.Version}
	materialID := initial.MaterialID

	h.mu.Lock()
	set, ok := h.subs[materialID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[materialID] = set
	}
	set[sub] = struct{}{}
	sub.ch <- initial.Clone()
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		set, ok := h.subs[materialID]
		if !ok {
			return
		}
		if _, ok := set[sub]; ok {
			delete(set, sub)
			close(sub.ch)
		}
		if len(set) == 0 {
			delete(h.subs, materialID)
		}
	}
	return sub.ch, cancel
}

// Publish delivers lb to every subscriber of its material without blocking.
// Subscribers that already hold lb.Version or newer are skipped.
func (h *Hub) Publish(lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[lb.MaterialID] {
		if lb.Version <= sub.version {
			continue
		}
		sub.version = lb.Version
		snapshot := lb.Clone()
		select {
		case sub.ch <- snapshot:
		default:
			// drop the oldest queued snapshot so slow readers never block writers
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- snapshot
		}
	}
}

// Subscribers reports how many channels are registered for materialID.
func (h *Hub) Subscribers(materialID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[materialID])
}
