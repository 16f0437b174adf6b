package memory

import (
	"context"
	"sync"

	"quiz-race-service/internal/domain"
)

// ProgressionStore is an in-memory implementation of app.ProgressionRepository.
// Writes to one material serialize on that material's lock.
type ProgressionStore struct {
	mu      sync.RWMutex
	ledgers map[string]*progressionLedger
}

type progressionLedger struct {
	mu sync.RWMutex
	p  domain.Progression
}

func NewProgressionStore() *ProgressionStore {
	return &ProgressionStore{ledgers: make(map[string]*progressionLedger)}
}

func (s *ProgressionStore) Init(_ context.Context, p domain.Progression) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ledgers[p.MaterialID]; ok {
		return domain.Errorf(domain.KindAlreadyExists, "progression already exists for material %q", p.MaterialID)
	}
	s.ledgers[p.MaterialID] = &progressionLedger{p: copyProgression(p)}
	return nil
}

func (s *ProgressionStore) Increment(_ context.Context, materialID, participant string, delta int) (domain.Progression, error) {
	l, err := s.ledger(materialID)
	if err != nil {
		return domain.Progression{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.p.Players[participant]; !ok {
		return domain.Progression{}, domain.Errorf(domain.KindUnknownParticipant, "player %q not found in progression", participant)
	}
	l.p.Players[participant] += delta
	return copyProgression(l.p), nil
}

func (s *ProgressionStore) Get(_ context.Context, materialID string) (domain.Progression, error) {
	l, err := s.ledger(materialID)
	if err != nil {
		return domain.Progression{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyProgression(l.p), nil
}

func (s *ProgressionStore) ledger(materialID string) (*progressionLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.ledgers[materialID]
	if !ok {
		return nil, domain.Errorf(domain.KindNotFound, "progression not found for material %q", materialID)
	}
	return l, nil
}

func copyProgression(p domain.Progression) domain.Progression {
	players := make(map[string]int, len(p.Players))
	for k, v := range p.Players {
		players[k] = v
	}
	p.Players = players
	return p
}
