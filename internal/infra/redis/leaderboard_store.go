package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"quiz-race-service/internal/common/clock"
	"quiz-race-service/internal/domain"
)

const (
	leaderboardPrefix = "leaderboard:"

	fieldNumQuestions = "num_questions"
	fieldVersion      = "version"
	fieldScore        = "score:"
	fieldProgression  = "progression:"
	fieldDone         = "done:"
)

// initLeaderboardScript creates the hash unless it already exists.
// ARGV: num_questions, then (participant, score, progression, done) repeated.
var initLeaderboardScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 'exists'
end
redis.call('HSET', KEYS[1], 'num_questions', ARGV[1], 'version', 0)
for i = 2, #ARGV, 4 do
  local p = ARGV[i]
  redis.call('HSET', KEYS[1], 'score:' .. p, ARGV[i+1], 'progression:' .. p, ARGV[i+2], 'done:' .. p, ARGV[i+3])
end
return 'ok'
`)

// incrementScript advances one participant and returns the whole hash.
// ARGV: participant, delta, touch score ("1"/"0").
var incrementScript = redis.NewScript(`
local nq = redis.call('HGET', KEYS[1], 'num_questions')
if not nq then
  return {'not_found'}
end
local p = ARGV[1]
if redis.call('HEXISTS', KEYS[1], 'progression:' .. p) == 0 then
  return {'unknown_participant'}
end
if ARGV[3] == '1' then
  redis.call('HINCRBY', KEYS[1], 'score:' .. p, ARGV[2])
end
local prog = redis.call('HINCRBY', KEYS[1], 'progression:' .. p, 1)
if prog >= tonumber(nq) then
  redis.call('HSET', KEYS[1], 'done:' .. p, '1')
end
redis.call('HINCRBY', KEYS[1], 'version', 1)
local snapshot = redis.call('HGETALL', KEYS[1])
table.insert(snapshot, 1, 'ok')
return snapshot
`)

// LeaderboardStore keeps each leaderboard in one Redis hash. Every mutation
// runs as a Lua script, so a participant's score, progression and done flag
// change together at the storage layer.
type LeaderboardStore struct {
	client *redis.Client
	clock  clock.Clock
}

// NewLeaderboardStore stamps snapshots with c; a nil clock uses wall time.
func NewLeaderboardStore(client *redis.Client, c clock.Clock) *LeaderboardStore {
	if c == nil {
		c = clock.DefaultClock{}
	}
	return &LeaderboardStore{client: client, clock: c}
}

func (s *LeaderboardStore) Init(ctx context.Context, lb domain.Leaderboard) error {
	args := make([]interface{}, 0, 1+4*len(lb.Entries))
	args = append(args, lb.NumQuestions)
	for participant, state := range lb.Entries {
		args = append(args, participant, state.Score, state.Progression, boolField(state.Done))
	}
	res, err := initLeaderboardScript.Run(ctx, s.client, []string{leaderboardKey(lb.MaterialID)}, args...).Text()
	if err != nil {
		return fmt.Errorf("failed to init leaderboard: %w", err)
	}
	if res == "exists" {
		return domain.Errorf(domain.KindAlreadyExists, "leaderboard already exists for material %q", lb.MaterialID)
	}
	return nil
}

func (s *LeaderboardStore) Increment(ctx context.Context, materialID, participant string, delta int, touchScore bool) (domain.Leaderboard, error) {
	res, err := incrementScript.Run(ctx, s.client, []string{leaderboardKey(materialID)}, participant, delta, boolField(touchScore)).StringSlice()
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("failed to increment leaderboard: %w", err)
	}
	switch res[0] {
	case "ok":
		return s.parse(materialID, pairs(res[1:]))
	case "not_found":
		return domain.Leaderboard{}, leaderboardNotFound(materialID)
	case "unknown_participant":
		return domain.Leaderboard{}, domain.Errorf(domain.KindUnknownParticipant, "player %q not found in leaderboard", participant)
	default:
		return domain.Leaderboard{}, fmt.Errorf("unexpected increment result %q", res[0])
	}
}

func (s *LeaderboardStore) Get(ctx context.Context, materialID string) (domain.Leaderboard, error) {
	fields, err := s.client.HGetAll(ctx, leaderboardKey(materialID)).Result()
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	if len(fields) == 0 {
		return domain.Leaderboard{}, leaderboardNotFound(materialID)
	}
	return s.parse(materialID, fields)
}

func (s *LeaderboardStore) parse(materialID string, fields map[string]string) (domain.Leaderboard, error) {
	nq, err := strconv.Atoi(fields[fieldNumQuestions])
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("corrupt leaderboard %q: num_questions: %w", materialID, err)
	}
	var version int64
	if raw, ok := fields[fieldVersion]; ok {
		version, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.Leaderboard{}, fmt.Errorf("corrupt leaderboard %q: version: %w", materialID, err)
		}
	}
	entries := make(map[string]domain.ParticipantState)
	for field, value := range fields {
		switch {
		case strings.HasPrefix(field, fieldScore):
			p := strings.TrimPrefix(field, fieldScore)
			n, err := strconv.Atoi(value)
			if err != nil {
				return domain.Leaderboard{}, fmt.Errorf("corrupt leaderboard %q: score for %s: %w", materialID, p, err)
			}
			st := entries[p]
			st.Score = n
			entries[p] = st
		case strings.HasPrefix(field, fieldProgression):
			p := strings.TrimPrefix(field, fieldProgression)
			n, err := strconv.Atoi(value)
			if err != nil {
				return domain.Leaderboard{}, fmt.Errorf("corrupt leaderboard %q: progression for %s: %w", materialID, p, err)
			}
			st := entries[p]
			st.Progression = n
			entries[p] = st
		case strings.HasPrefix(field, fieldDone):
			p := strings.TrimPrefix(field, fieldDone)
			st := entries[p]
			st.Done = value == "1"
			entries[p] = st
		}
	}
	return domain.Leaderboard{
		MaterialID:   materialID,
		NumQuestions: nq,
		Entries:      entries,
		Version:      version,
		UpdatedAt:    s.clock.Now().UTC(),
	}, nil
}

// pairs turns a flat HGETALL reply into a map.
func pairs(flat []string) map[string]string {
	out := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		out[flat[i]] = flat[i+1]
	}
	return out
}

func leaderboardKey(materialID string) string {
	return leaderboardPrefix + materialID
}

func leaderboardNotFound(materialID string) error {
	return domain.Errorf(domain.KindNotFound, "leaderboard not found for material %q", materialID)
}
