package memory

import (
	"context"
	"sync"

	"quiz-race-service/internal/domain"
)

// RaceStore is an in-memory implementation of app.RaceRepository.
// A material stays bound to the first race created for it; later races for
// the same material are listed but not addressable by material id.
type RaceStore struct {
	mu    sync.RWMutex
	races map[string]*domain.Race
	all   []*domain.Race
}

func NewRaceStore() *RaceStore {
	return &RaceStore{
		races: make(map[string]*domain.Race),
	}
}

func (s *RaceStore) Create(_ context.Context, race domain.Race) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	race.Participants = append([]string(nil), race.Participants...)
	s.all = append(s.all, &race)
	if _, ok := s.races[race.MaterialID]; !ok {
		s.races[race.MaterialID] = &race
	}
	return nil
}

func (s *RaceStore) Join(_ context.Context, materialID, participant string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	race, ok := s.races[materialID]
	if !ok {
		return nil, raceNotFound(materialID)
	}
	if race.HasParticipant(participant) {
		return nil, domain.ErrAlreadyJoined
	}
	race.Participants = append(race.Participants, participant)
	return append([]string(nil), race.Participants...), nil
}

func (s *RaceStore) SetActive(_ context.Context, materialID string, active bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	race, ok := s.races[materialID]
	if !ok {
		return false, raceNotFound(materialID)
	}
	race.IsActive = active
	return race.IsActive, nil
}

func (s *RaceStore) Get(_ context.Context, materialID string) (domain.Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	race, ok := s.races[materialID]
	if !ok {
		return domain.Race{}, raceNotFound(materialID)
	}
	return copyRace(race), nil
}

// List returns races in creation order.
func (s *RaceStore) List(_ context.Context) ([]domain.Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Race, 0, len(s.all))
	for _, race := range s.all {
		out = append(out, copyRace(race))
	}
	return out, nil
}

func copyRace(r *domain.Race) domain.Race {
	out := *r
	out.Participants = append([]string(nil), r.Participants...)
	return out
}

func raceNotFound(materialID string) error {
	return domain.Errorf(domain.KindNotFound, "race not found for material %q", materialID)
}
