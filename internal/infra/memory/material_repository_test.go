package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"quiz-race-service/internal/domain"
)

func TestMaterialRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		MaterialLoader: NewMaterialStore(map[string]domain.Material{
			"m1": sampleMaterial(),
		}),
	}
	repo := NewMaterialRepository(loader, time.Minute)

	if _, err := repo.GetMaterial(context.Background(), "m1"); err != nil {
		t.Fatalf("get material: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader once, got %d", loader.count())
	}

	if _, err := repo.GetMaterial(context.Background(), "m1"); err != nil {
		t.Fatalf("get material 2: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.count())
	}
}

func TestMaterialRepositoryPassesThroughNotFound(t *testing.T) {
	repo := NewMaterialRepository(NewMaterialStore(nil), time.Minute)
	if _, err := repo.GetMaterial(context.Background(), "missing"); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

type countingLoader struct {
	MaterialLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadMaterial(ctx context.Context, materialID string) (domain.Material, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.MaterialLoader.LoadMaterial(ctx, materialID)
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func sampleMaterial() domain.Material {
	return domain.Material{
		ID:    "m1",
		Title: "Photosynthesis",
		Items: []domain.MaterialItem{
			{ID: 1, Type: domain.ItemTypeReading, Material: "Plants turn light into sugar."},
			{ID: 2, Type: domain.ItemTypeMCQQuiz, Question: "What do plants make?", Options: []string{"Sugar", "Salt"}, CorrectAnswer: "Sugar"},
		},
	}
}
