package app

import (
	"context"
	"strings"

	"quiz-race-service/internal/common/clock"
	"quiz-race-service/internal/common/uuid"
	"quiz-race-service/internal/domain"
)

// RaceRepository stores races. Lookups by material id address the first race
// created for that material.
type RaceRepository interface {
	Create(ctx context.Context, race domain.Race) error
	// Join appends participant atomically with the already-joined check and returns the new roster.
	Join(ctx context.Context, materialID, participant string) ([]string, error)
	SetActive(ctx context.Context, materialID string, active bool) (bool, error)
	Get(ctx context.Context, materialID string) (domain.Race, error)
	List(ctx context.Context) ([]domain.Race, error)
}

// LeaderboardRepository stores per-material leaderboards.
type LeaderboardRepository interface {
	// Init fails with domain.ErrAlreadyExists if the material already has a leaderboard.
	Init(ctx context.Context, lb domain.Leaderboard) error
	// Increment advances one participant as a single atomic unit and returns a snapshot taken after it.
	Increment(ctx context.Context, materialID, participant string, delta int, touchScore bool) (domain.Leaderboard, error)
	Get(ctx context.Context, materialID string) (domain.Leaderboard, error)
}

// ProgressionRepository stores the score-only ledgers.
type ProgressionRepository interface {
	Init(ctx context.Context, p domain.Progression) error
	Increment(ctx context.Context, materialID, participant string, delta int) (domain.Progression, error)
	Get(ctx context.Context, materialID string) (domain.Progression, error)
}

// RaceService is the entry point for race, leaderboard and progression use cases.
type RaceService struct {
	races        RaceRepository
	leaderboards LeaderboardRepository
	progressions ProgressionRepository
	hub          *Hub
	clock        clock.Clock
	ids          uuid.Generator
}

// Option customises a RaceService.
type Option func(*RaceService)

// WithClock overrides the time source used for race start times and snapshots.
func WithClock(c clock.Clock) Option {
	return func(s *RaceService) { s.clock = c }
}

// WithIDGenerator overrides race id generation.
func WithIDGenerator(g uuid.Generator) Option {
	return func(s *RaceService) { s.ids = g }
}

func NewRaceService(races RaceRepository, leaderboards LeaderboardRepository, progressions ProgressionRepository, opts ...Option) *RaceService {
	s := &RaceService{
		races:        races,
		leaderboards: leaderboards,
		progressions: progressions,
		hub:          NewHub(),
		clock:        clock.DefaultClock{},
		ids:          uuid.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRace starts a new, inactive race for materialID with participant as its only member.
func (s *RaceService) CreateRace(ctx context.Context, participant, materialID, name string) (string, error) {
	materialID, err := requireField("material_id", materialID)
	if err != nil {
		return "", err
	}
	participant, err = requireField("email", participant)
	if err != nil {
		return "", err
	}

	race := domain.Race{
		ID:           s.ids.NewUUID(),
		MaterialID:   materialID,
		Name:         strings.TrimSpace(name),
		Participants: []string{participant},
		StartTime:    s.clock.Now().UTC(),
		IsActive:     false,
	}
	if err := s.races.Create(ctx, race); err != nil {
		return "", classify("create race", err)
	}
	return race.ID, nil
}

// JoinRace adds participant to the race's roster.
func (s *RaceService) JoinRace(ctx context.Context, materialID, participant string) ([]string, error) {
	materialID, err := requireField("material_id", materialID)
	if err != nil {
		return nil, err
	}
	participant, err = requireField("email", participant)
	if err != nil {
		return nil, err
	}
	roster, err := s.races.Join(ctx, materialID, participant)
	if err != nil {
		return nil, classify("join race", err)
	}
	return roster, nil
}

// ToggleRace sets the race's active flag. Any value may be set at any time.
func (s *RaceService) ToggleRace(ctx context.Context, materialID string, active bool) (bool, error) {
	materialID, err := requireField("material_id", materialID)
	if err != nil {
		return false, err
	}
	got, err := s.races.SetActive(ctx, materialID, active)
	if err != nil {
		return false, classify("toggle race", err)
	}
	return got, nil
}

func (s *RaceService) GetRace(ctx context.Context, materialID string) (domain.Race, error) {
	materialID, err := requireField("material_id", materialID)
	if err != nil {
		return domain.Race{}, err
	}
	race, err := s.races.Get(ctx, materialID)
	if err != nil {
		return domain.Race{}, classify("get race", err)
	}
	return race, nil
}

func (s *RaceService) GetRoster(ctx context.Context, materialID string) ([]string, error) {
	race, err := s.GetRace(ctx, materialID)
	if err != nil {
		return nil, err
	}
	return race.Participants, nil
}

func (s *RaceService) ListRaces(ctx context.Context) ([]domain.Race, error) {
	races, err := s.races.List(ctx)
	if err != nil {
		return nil, classify("list races", err)
	}
	return races, nil
}

// ListRacesForParticipant returns every race whose roster contains participant.
func (s *RaceService) ListRacesForParticipant(ctx context.Context, participant string) ([]domain.Race, error) {
	participant, err := requireField("email", participant)
	if err != nil {
		return nil, err
	}
	races, err := s.ListRaces(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Race
	for _, race := range races {
		if race.HasParticipant(participant) {
			out = append(out, race)
		}
	}
	return out, nil
}

// InitLeaderboard seeds a leaderboard from the race roster. The returned id is the material id.
func (s *RaceService) InitLeaderboard(ctx context.Context, materialID string, numQuestions int) (string, error) {
	materialID, roster, err := s.rosterForLedger(ctx, materialID, numQuestions)
	if err != nil {
		return "", err
	}
	lb := domain.NewLeaderboard(materialID, numQuestions, roster, s.clock.Now().UTC())
	if err := s.leaderboards.Init(ctx, lb); err != nil {
		return "", classify("init leaderboard", err)
	}
	s.hub.Publish(lb)
	return materialID, nil
}

// IncrementScore adds delta to participant's score and advances their progression.
func (s *RaceService) IncrementScore(ctx context.Context, materialID, participant string, delta int) (domain.Leaderboard, error) {
	return s.advance(ctx, materialID, participant, delta, true)
}

// IncrementProgression advances participant's progression without touching the score.
func (s *RaceService) IncrementProgression(ctx context.Context, materialID, participant string) (domain.Leaderboard, error) {
	return s.advance(ctx, materialID, participant, 0, false)
}

func (s *RaceService) advance(ctx context.Context, materialID, participant string, delta int, touchScore bool) (domain.Leaderboard, error) {
	materialID, err := requireField("material_id", materialID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	participant, err = requireField("email", participant)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	lb, err := s.leaderboards.Increment(ctx, materialID, participant, delta, touchScore)
	if err != nil {
		return domain.Leaderboard{}, classify("increment leaderboard", err)
	}
	s.hub.Publish(lb)
	return lb, nil
}

func (s *RaceService) GetLeaderboard(ctx context.Context, materialID string) (domain.Leaderboard, error) {
	materialID, err := requireField("material_id", materialID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	lb, err := s.leaderboards.Get(ctx, materialID)
	if err != nil {
		return domain.Leaderboard{}, classify("get leaderboard", err)
	}
	return lb, nil
}

// SubscribeLeaderboard streams snapshots for materialID, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *RaceService) SubscribeLeaderboard(ctx context.Context, materialID string) (<-chan domain.Leaderboard, func(), error) {
	lb, err := s.GetLeaderboard(ctx, materialID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.Subscribe(lb)
	return ch, cancel, nil
}

// InitProgression seeds a score-only ledger from the race roster.
func (s *RaceService) InitProgression(ctx context.Context, materialID string, numQuestions int) (string, error) {
	materialID, roster, err := s.rosterForLedger(ctx, materialID, numQuestions)
	if err != nil {
		return "", err
	}
	if err := s.progressions.Init(ctx, domain.NewProgression(materialID, numQuestions, roster)); err != nil {
		return "", classify("init progression", err)
	}
	return materialID, nil
}

func (s *RaceService) GetProgression(ctx context.Context, materialID string) (domain.Progression, error) {
	materialID, err := requireField("material_id", materialID)
	if err != nil {
		return domain.Progression{}, err
	}
	p, err := s.progressions.Get(ctx, materialID)
	if err != nil {
		return domain.Progression{}, classify("get progression", err)
	}
	return p, nil
}

// IncrementProgressionScore adds delta to participant's score on the progression ledger.
func (s *RaceService) IncrementProgressionScore(ctx context.Context, materialID, participant string, delta int) (domain.Progression, error) {
	materialID, err := requireField("material_id", materialID)
	if err != nil {
		return domain.Progression{}, err
	}
	participant, err = requireField("email", participant)
	if err != nil {
		return domain.Progression{}, err
	}
	p, err := s.progressions.Increment(ctx, materialID, participant, delta)
	if err != nil {
		return domain.Progression{}, classify("increment progression", err)
	}
	return p, nil
}

// rosterForLedger enforces that a ledger can only be created for an existing race with members.
func (s *RaceService) rosterForLedger(ctx context.Context, materialID string, numQuestions int) (string, []string, error) {
	materialID, err := requireField("material_id", materialID)
	if err != nil {
		return "", nil, err
	}
	if numQuestions < 0 {
		return "", nil, domain.Errorf(domain.KindInvalidArgument, "num_questions must not be negative")
	}
	race, err := s.races.Get(ctx, materialID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return "", nil, domain.Errorf(domain.KindRaceNotFound, "race not found for material %q", materialID)
		}
		return "", nil, classify("load race", err)
	}
	if len(race.Participants) == 0 {
		return "", nil, domain.ErrEmptyRoster
	}
	return materialID, race.Participants, nil
}

func requireField(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", domain.Errorf(domain.KindInvalidArgument, "%s is required", name)
	}
	return value, nil
}

// classify passes classified errors through and files everything else under StorageFailure.
func classify(op string, err error) error {
	if domain.KindOf(err) != domain.KindUnknown {
		return err
	}
	return domain.Wrap(domain.KindStorageFailure, op, err)
}
