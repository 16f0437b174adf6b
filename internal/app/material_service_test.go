package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-race-service/internal/app"
	"quiz-race-service/internal/domain"
	"quiz-race-service/internal/infra/memory"
)

func TestGenerateNumbersItemsAndStores(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMaterialStore(nil)
	gen := stubGenerator{out: domain.GeneratedMaterial{
		Title:            "Photosynthesis",
		ShortDescription: "How plants eat",
		Materials: []domain.MaterialItem{
			{Type: domain.ItemTypeReading, Material: "Plants turn light into sugar."},
			{Type: "video", Material: "ignored"},
			{Type: domain.ItemTypeMCQQuiz, Question: "What do plants make?", Options: []string{"Sugar", "Salt"}, CorrectAnswer: "Sugar"},
		},
	}}
	materials := app.NewMaterialService(gen, store, memory.NewMaterialRepository(store, time.Minute), newTestService())

	id, err := materials.Generate(ctx, "plants")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	m, err := materials.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(m.Items) != 2 || m.Items[0].ID != 1 || m.Items[1].ID != 2 {
		t.Fatalf("unexpected items %+v", m.Items)
	}
	if m.NumQuestions() != 1 {
		t.Fatalf("expected one question, got %d", m.NumQuestions())
	}
}

func TestGenerateFailures(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMaterialStore(nil)
	repo := memory.NewMaterialRepository(store, time.Minute)

	materials := app.NewMaterialService(stubGenerator{err: errors.New("model overloaded")}, store, repo, newTestService())
	if _, err := materials.Generate(ctx, "plants"); domain.KindOf(err) != domain.KindGenerationFailed {
		t.Fatalf("expected generation failure, got %v", err)
	}
	if _, err := materials.Generate(ctx, " "); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}

	unconfigured := app.NewMaterialService(nil, store, repo, newTestService())
	if _, err := unconfigured.Generate(ctx, "plants"); domain.KindOf(err) != domain.KindGenerationFailed {
		t.Fatalf("expected generation failure without generator, got %v", err)
	}
}

func TestMaterialsForParticipant(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMaterialStore(map[string]domain.Material{
		"m1": {ID: "m1", Title: "Photosynthesis"},
	})
	races := newTestService()
	materials := app.NewMaterialService(nil, store, memory.NewMaterialRepository(store, time.Minute), races)

	if _, err := materials.ForParticipant(ctx, "a@x.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	_, _ = races.CreateRace(ctx, "a@x.com", "m1", "Biology")
	_, _ = races.CreateRace(ctx, "a@x.com", "gone", "Deleted")

	got, err := materials.ForParticipant(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("for participant: %v", err)
	}
	if len(got) != 1 || got[0].MaterialID != "m1" || got[0].RaceName != "Biology" || got[0].Material.Title != "Photosynthesis" {
		t.Fatalf("unexpected materials %+v", got)
	}
}

type stubGenerator struct {
	out domain.GeneratedMaterial
	err error
}

func (g stubGenerator) Generate(context.Context, string) (domain.GeneratedMaterial, error) {
	return g.out, g.err
}
