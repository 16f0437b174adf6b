package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"quiz-race-service/internal/domain"
)

const progressionPrefix = "progression:"

// ARGV: num_questions, then (participant, score) repeated.
var initProgressionScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 'exists'
end
redis.call('HSET', KEYS[1], 'num_questions', ARGV[1])
for i = 2, #ARGV, 2 do
  redis.call('HSET', KEYS[1], 'score:' .. ARGV[i], ARGV[i+1])
end
return 'ok'
`)

// ARGV: participant, delta.
var incrementProgressionScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {'not_found'}
end
if redis.call('HEXISTS', KEYS[1], 'score:' .. ARGV[1]) == 0 then
  return {'unknown_participant'}
end
redis.call('HINCRBY', KEYS[1], 'score:' .. ARGV[1], ARGV[2])
local snapshot = redis.call('HGETALL', KEYS[1])
table.insert(snapshot, 1, 'ok')
return snapshot
`)

// ProgressionStore keeps each score-only ledger in one Redis hash.
type ProgressionStore struct {
	client *redis.Client
}

func NewProgressionStore(client *redis.Client) *ProgressionStore {
	return &ProgressionStore{client: client}
}

func (s *ProgressionStore) Init(ctx context.Context, p domain.Progression) error {
	args := make([]interface{}, 0, 1+2*len(p.Players))
	args = append(args, p.NumQuestions)
	for participant, score := range p.Players {
		args = append(args, participant, score)
	}
	res, err := initProgressionScript.Run(ctx, s.client, []string{progressionKey(p.MaterialID)}, args...).Text()
	if err != nil {
		return fmt.Errorf("failed to init progression: %w", err)
	}
	if res == "exists" {
		return domain.Errorf(domain.KindAlreadyExists, "progression already exists for material %q", p.MaterialID)
	}
	return nil
}

func (s *ProgressionStore) Increment(ctx context.Context, materialID, participant string, delta int) (domain.Progression, error) {
	res, err := incrementProgressionScript.Run(ctx, s.client, []string{progressionKey(materialID)}, participant, delta).StringSlice()
	if err != nil {
		return domain.Progression{}, fmt.Errorf("failed to increment progression: %w", err)
	}
	switch res[0] {
	case "ok":
		return parseProgression(materialID, pairs(res[1:]))
	case "not_found":
		return domain.Progression{}, progressionNotFound(materialID)
	case "unknown_participant":
		return domain.Progression{}, domain.Errorf(domain.KindUnknownParticipant, "player %q not found in progression", participant)
	default:
		return domain.Progression{}, fmt.Errorf("unexpected increment result %q", res[0])
	}
}

func (s *ProgressionStore) Get(ctx context.Context, materialID string) (domain.Progression, error) {
	fields, err := s.client.HGetAll(ctx, progressionKey(materialID)).Result()
	if err != nil {
		return domain.Progression{}, fmt.Errorf("failed to get progression: %w", err)
	}
	if len(fields) == 0 {
		return domain.Progression{}, progressionNotFound(materialID)
	}
	return parseProgression(materialID, fields)
}

func parseProgression(materialID string, fields map[string]string) (domain.Progression, error) {
	nq, err := strconv.Atoi(fields[fieldNumQuestions])
	if err != nil {
		return domain.Progression{}, fmt.Errorf("corrupt progression %q: num_questions: %w", materialID, err)
	}
	players := make(map[string]int)
	for field, value := range fields {
		p, ok := strings.CutPrefix(field, fieldScore)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return domain.Progression{}, fmt.Errorf("corrupt progression %q: score for %s: %w", materialID, p, err)
		}
		players[p] = n
	}
	return domain.Progression{MaterialID: materialID, NumQuestions: nq, Players: players}, nil
}

func progressionKey(materialID string) string {
	return progressionPrefix + materialID
}

func progressionNotFound(materialID string) error {
	return domain.Errorf(domain.KindNotFound, "progression not found for material %q", materialID)
}
