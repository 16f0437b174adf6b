package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-race-service/internal/domain"
)

// MaterialStore persists material documents as JSONB in Postgres.
type MaterialStore struct {
	pool *pgxpool.Pool
}

func NewMaterialStore(pool *pgxpool.Pool) *MaterialStore {
	return &MaterialStore{pool: pool}
}

func (s *MaterialStore) LoadMaterial(ctx context.Context, materialID string) (domain.Material, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM materials WHERE id=$1`, materialID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Material{}, domain.Errorf(domain.KindNotFound, "material %q not found", materialID)
	}
	if err != nil {
		return domain.Material{}, fmt.Errorf("load material: %w", err)
	}
	var material domain.Material
	if err := json.Unmarshal(raw, &material); err != nil {
		return domain.Material{}, fmt.Errorf("unmarshal material: %w", err)
	}
	material.ID = materialID
	return material, nil
}

func (s *MaterialStore) SaveMaterial(ctx context.Context, material domain.Material) error {
	data, err := json.Marshal(material)
	if err != nil {
		return fmt.Errorf("marshal material: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO materials (id, title, data) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, data=EXCLUDED.data`,
		material.ID, material.Title, string(data))
	if err != nil {
		return fmt.Errorf("save material: %w", err)
	}
	return nil
}
