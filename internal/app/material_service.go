package app

import (
	"context"
	"strings"

	"quiz-race-service/internal/common/uuid"
	"quiz-race-service/internal/domain"
)

// Generator turns source text into learning material.
type Generator interface {
	Generate(ctx context.Context, text string) (domain.GeneratedMaterial, error)
}

// MaterialStore persists generated materials.
type MaterialStore interface {
	SaveMaterial(ctx context.Context, material domain.Material) error
}

// MaterialRepository reads materials (from cache/backing store).
type MaterialRepository interface {
	GetMaterial(ctx context.Context, materialID string) (domain.Material, error)
}

// RaceMaterial pairs a race the participant is in with its material.
type RaceMaterial struct {
	RaceName   string          `json:"race_name"`
	MaterialID string          `json:"material_id"`
	Material   domain.Material `json:"material"`
}

// MaterialService generates and serves the documents races are run against.
type MaterialService struct {
	generator Generator
	store     MaterialStore
	materials MaterialRepository
	races     *RaceService
	ids       uuid.Generator
}

func NewMaterialService(generator Generator, store MaterialStore, materials MaterialRepository, races *RaceService) *MaterialService {
	return &MaterialService{
		generator: generator,
		store:     store,
		materials: materials,
		races:     races,
		ids:       uuid.New(),
	}
}

// Generate asks the generator for material, numbers its items from 1 and stores it.
func (s *MaterialService) Generate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", domain.Errorf(domain.KindInvalidArgument, "text is required")
	}
	if s.generator == nil {
		return "", domain.Errorf(domain.KindGenerationFailed, "content generator not configured")
	}
	generated, err := s.generator.Generate(ctx, text)
	if err != nil {
		return "", domain.Wrap(domain.KindGenerationFailed, "failed to generate learning materials", err)
	}

	material := domain.Material{
		ID:               s.ids.NewUUID(),
		Title:            generated.Title,
		ShortDescription: generated.ShortDescription,
	}
	for _, item := range generated.Materials {
		if item.Type != domain.ItemTypeReading && item.Type != domain.ItemTypeMCQQuiz {
			continue
		}
		item.ID = len(material.Items) + 1
		material.Items = append(material.Items, item)
	}

	if err := s.store.SaveMaterial(ctx, material); err != nil {
		return "", classify("save material", err)
	}
	return material.ID, nil
}

func (s *MaterialService) Get(ctx context.Context, materialID string) (domain.Material, error) {
	materialID, err := requireField("material_id", materialID)
	if err != nil {
		return domain.Material{}, err
	}
	material, err := s.materials.GetMaterial(ctx, materialID)
	if err != nil {
		return domain.Material{}, classify("get material", err)
	}
	return material, nil
}

// ForParticipant lists the materials of every race participant belongs to.
// Races whose material has gone missing are skipped.
func (s *MaterialService) ForParticipant(ctx context.Context, participant string) ([]RaceMaterial, error) {
	races, err := s.races.ListRacesForParticipant(ctx, participant)
	if err != nil {
		return nil, err
	}
	if len(races) == 0 {
		return nil, domain.Errorf(domain.KindNotFound, "no materials found for this user")
	}

	out := make([]RaceMaterial, 0, len(races))
	for _, race := range races {
		material, err := s.materials.GetMaterial(ctx, race.MaterialID)
		if err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				continue
			}
			return nil, classify("get material", err)
		}
		out = append(out, RaceMaterial{
			RaceName:   race.Name,
			MaterialID: race.MaterialID,
			Material:   material,
		})
	}
	return out, nil
}
