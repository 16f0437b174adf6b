package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-race-service/internal/domain"
)

const (
	raceMetaPrefix     = "race:meta:"
	raceRosterPrefix   = "race:roster:"
	raceMaterialPrefix = "race:material:"
	raceIndexKey       = "races"
)

// joinScript appends ARGV[1] to the roster unless it is already present.
// KEYS[1] race meta hash, KEYS[2] roster list.
var joinScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {'not_found'}
end
local roster = redis.call('LRANGE', KEYS[2], 0, -1)
for _, p in ipairs(roster) do
  if p == ARGV[1] then
    return {'already_joined'}
  end
end
redis.call('RPUSH', KEYS[2], ARGV[1])
table.insert(roster, ARGV[1])
table.insert(roster, 1, 'ok')
return roster
`)

// setActiveScript sets is_active on an existing race only.
var setActiveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 'not_found'
end
redis.call('HSET', KEYS[1], 'is_active', ARGV[1])
return 'ok'
`)

// RaceStore keeps races in Redis: a meta hash and a roster list per race id,
// a sorted set of race ids ordered by start time, and a pointer from each
// material to the first race created for it. The pointer is written with
// SETNX and never moved, so later races for a material are listed but joins,
// toggles and lookups keep addressing the first one.
type RaceStore struct {
	client *redis.Client
}

func NewRaceStore(client *redis.Client) *RaceStore {
	return &RaceStore{client: client}
}

func (s *RaceStore) Create(ctx context.Context, race domain.Race) error {
	metaKey, rosterKey := raceKeys(race.ID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, metaKey,
			"id", race.ID,
			"material_id", race.MaterialID,
			"race_name", race.Name,
			"start_time", race.StartTime.UTC().Format(time.RFC3339Nano),
			"is_active", boolField(race.IsActive),
		)
		if len(race.Participants) > 0 {
			members := make([]interface{}, len(race.Participants))
			for i, p := range race.Participants {
				members[i] = p
			}
			pipe.RPush(ctx, rosterKey, members...)
		}
		pipe.ZAdd(ctx, raceIndexKey, redis.Z{
			Score:  float64(race.StartTime.UnixNano()),
			Member: race.ID,
		})
		pipe.SetNX(ctx, raceMaterialPrefix+race.MaterialID, race.ID, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save race: %w", err)
	}
	return nil
}

func (s *RaceStore) Join(ctx context.Context, materialID, participant string) ([]string, error) {
	raceID, err := s.resolve(ctx, materialID)
	if err != nil {
		return nil, err
	}
	metaKey, rosterKey := raceKeys(raceID)
	res, err := joinScript.Run(ctx, s.client, []string{metaKey, rosterKey}, participant).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to join race: %w", err)
	}
	switch res[0] {
	case "ok":
		return res[1:], nil
	case "not_found":
		return nil, raceNotFound(materialID)
	case "already_joined":
		return nil, domain.ErrAlreadyJoined
	default:
		return nil, fmt.Errorf("unexpected join result %q", res[0])
	}
}

func (s *RaceStore) SetActive(ctx context.Context, materialID string, active bool) (bool, error) {
	raceID, err := s.resolve(ctx, materialID)
	if err != nil {
		return false, err
	}
	metaKey, _ := raceKeys(raceID)
	res, err := setActiveScript.Run(ctx, s.client, []string{metaKey}, boolField(active)).Text()
	if err != nil {
		return false, fmt.Errorf("failed to toggle race: %w", err)
	}
	if res == "not_found" {
		return false, raceNotFound(materialID)
	}
	return active, nil
}

func (s *RaceStore) Get(ctx context.Context, materialID string) (domain.Race, error) {
	raceID, err := s.resolve(ctx, materialID)
	if err != nil {
		return domain.Race{}, err
	}
	races, err := s.load(ctx, []string{raceID})
	if err != nil {
		return domain.Race{}, err
	}
	if len(races) == 0 {
		return domain.Race{}, raceNotFound(materialID)
	}
	return races[0], nil
}

// resolve returns the id of the race a material is bound to.
func (s *RaceStore) resolve(ctx context.Context, materialID string) (string, error) {
	raceID, err := s.client.Get(ctx, raceMaterialPrefix+materialID).Result()
	if errors.Is(err, redis.Nil) {
		return "", raceNotFound(materialID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve race: %w", err)
	}
	return raceID, nil
}

// List returns races ordered by start time.
func (s *RaceStore) List(ctx context.Context) ([]domain.Race, error) {
	raceIDs, err := s.client.ZRange(ctx, raceIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list races: %w", err)
	}
	if len(raceIDs) == 0 {
		return []domain.Race{}, nil
	}
	return s.load(ctx, raceIDs)
}

// load reads meta and roster for each race inside one MULTI so every race is a consistent snapshot.
// Ids with no meta hash are skipped.
func (s *RaceStore) load(ctx context.Context, raceIDs []string) ([]domain.Race, error) {
	metaCmds := make([]*redis.MapStringStringCmd, len(raceIDs))
	rosterCmds := make([]*redis.StringSliceCmd, len(raceIDs))
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, raceID := range raceIDs {
			metaKey, rosterKey := raceKeys(raceID)
			metaCmds[i] = pipe.HGetAll(ctx, metaKey)
			rosterCmds[i] = pipe.LRange(ctx, rosterKey, 0, -1)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get races: %w", err)
	}

	races := make([]domain.Race, 0, len(raceIDs))
	for i := range raceIDs {
		meta := metaCmds[i].Val()
		if len(meta) == 0 {
			continue
		}
		race, err := parseRace(meta, rosterCmds[i].Val())
		if err != nil {
			return nil, err
		}
		races = append(races, race)
	}
	return races, nil
}

func parseRace(meta map[string]string, roster []string) (domain.Race, error) {
	start, err := time.Parse(time.RFC3339Nano, meta["start_time"])
	if err != nil {
		return domain.Race{}, fmt.Errorf("failed to parse race start time: %w", err)
	}
	if roster == nil {
		roster = []string{}
	}
	return domain.Race{
		ID:           meta["id"],
		MaterialID:   meta["material_id"],
		Name:         meta["race_name"],
		Participants: roster,
		StartTime:    start,
		IsActive:     meta["is_active"] == "1",
	}, nil
}

func raceKeys(raceID string) (string, string) {
	return raceMetaPrefix + raceID, raceRosterPrefix + raceID
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func raceNotFound(materialID string) error {
	return domain.Errorf(domain.KindNotFound, "race not found for material %q", materialID)
}
