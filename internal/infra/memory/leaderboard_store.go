package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"quiz-race-service/internal/common/clock"
	"quiz-race-service/internal/domain"
)

// LeaderboardStore is an in-memory implementation of app.LeaderboardRepository.
//
// Each participant row has its own mutex, so increments for different
// participants proceed in parallel while holding the board's read lock.
// Snapshots take the board's write lock and therefore never see a
// half-applied row.
type LeaderboardStore struct {
	clock  clock.Clock
	mu     sync.RWMutex
	boards map[string]*board
}

type board struct {
	materialID   string
	numQuestions int
	mu           sync.RWMutex
	rows         map[string]*row
	version      atomic.Int64
}

type row struct {
	mu    sync.Mutex
	state domain.ParticipantState
}

func NewLeaderboardStore(c clock.Clock) *LeaderboardStore {
	if c == nil {
		c = clock.DefaultClock{}
	}
	return &LeaderboardStore{
		clock:  c,
		boards: make(map[string]*board),
	}
}

func (s *LeaderboardStore) Init(_ context.Context, lb domain.Leaderboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.boards[lb.MaterialID]; ok {
		return domain.Errorf(domain.KindAlreadyExists, "leaderboard already exists for material %q", lb.MaterialID)
	}
	b := &board{
		materialID:   lb.MaterialID,
		numQuestions: lb.NumQuestions,
		rows:         make(map[string]*row, len(lb.Entries)),
	}
	for participant, state := range lb.Entries {
		b.rows[participant] = &row{state: state}
	}
	s.boards[lb.MaterialID] = b
	return nil
}

func (s *LeaderboardStore) Increment(_ context.Context, materialID, participant string, delta int, touchScore bool) (domain.Leaderboard, error) {
	b, err := s.board(materialID)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	b.mu.RLock()
	r, ok := b.rows[participant]
	if !ok {
		b.mu.RUnlock()
		return domain.Leaderboard{}, domain.Errorf(domain.KindUnknownParticipant, "player %q not found in leaderboard", participant)
	}
	r.mu.Lock()
	r.state = r.state.Advance(delta, touchScore, b.numQuestions)
	r.mu.Unlock()
	b.version.Add(1)
	b.mu.RUnlock()

	return b.snapshot(s.clock.Now().UTC()), nil
}

func (s *LeaderboardStore) Get(_ context.Context, materialID string) (domain.Leaderboard, error) {
	b, err := s.board(materialID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return b.snapshot(s.clock.Now().UTC()), nil
}

func (s *LeaderboardStore) board(materialID string) (*board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.boards[materialID]
	if !ok {
		return nil, domain.Errorf(domain.KindNotFound, "leaderboard not found for material %q", materialID)
	}
	return b, nil
}

func (b *board) snapshot(now time.Time) domain.Leaderboard {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := make(map[string]domain.ParticipantState, len(b.rows))
	for participant, r := range b.rows {
		entries[participant] = r.state
	}
	return domain.Leaderboard{
		MaterialID:   b.materialID,
		NumQuestions: b.numQuestions,
		Entries:      entries,
		Version:      b.version.Load(),
		UpdatedAt:    now,
	}
}
