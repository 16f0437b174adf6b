package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quiz-race-service/internal/app"
	"quiz-race-service/internal/domain"
	"quiz-race-service/internal/infra/memory"
)

func TestRaceAndLeaderboardEndpoints(t *testing.T) {
	server := httptest.NewServer(newTestMux())
	defer server.Close()

	status, _ := do(t, server, http.MethodPost, "/api/races", map[string]any{"email": "a@x.com", "material_id": "m1"})
	if status != http.StatusCreated {
		t.Fatalf("create race: status %d", status)
	}
	status, body := do(t, server, http.MethodPatch, "/api/races/m1", map[string]any{"email": "b@x.com"})
	if status != http.StatusOK {
		t.Fatalf("join race: status %d", status)
	}
	if roster := body["data"].([]any); len(roster) != 2 {
		t.Fatalf("unexpected roster %v", roster)
	}
	status, body = do(t, server, http.MethodPatch, "/api/races/m1", map[string]any{"email": "b@x.com"})
	if status != http.StatusBadRequest || body["data"].(map[string]any)["kind"] != string(domain.KindAlreadyJoined) {
		t.Fatalf("duplicate join: status %d body %v", status, body)
	}

	status, _ = do(t, server, http.MethodPost, "/api/leaderboards", map[string]any{"material_id": "m1", "num_questions": 3})
	if status != http.StatusCreated {
		t.Fatalf("init leaderboard: status %d", status)
	}
	status, _ = do(t, server, http.MethodPost, "/api/leaderboards", map[string]any{"material_id": "m1", "num_questions": 3})
	if status != http.StatusConflict {
		t.Fatalf("re-init leaderboard: expected 409, got %d", status)
	}

	for i := 0; i < 3; i++ {
		status, body = do(t, server, http.MethodPatch, "/api/leaderboards/m1/increment", map[string]any{"email": "a@x.com"})
		if status != http.StatusOK {
			t.Fatalf("increment: status %d", status)
		}
	}
	data := body["data"].(map[string]any)
	if data["players"].(map[string]any)["a@x.com"].(float64) != 3 {
		t.Fatalf("unexpected players %v", data["players"])
	}
	if data["progression"].(map[string]any)["a@x.com"].(float64) != 4 {
		t.Fatalf("unexpected progression %v", data["progression"])
	}
	if data["is_done"].(map[string]any)["a@x.com"] != true || data["is_done"].(map[string]any)["b@x.com"] != false {
		t.Fatalf("unexpected is_done %v", data["is_done"])
	}

	status, _ = do(t, server, http.MethodPatch, "/api/leaderboards/m1/increment", map[string]any{"email": "z@x.com"})
	if status != http.StatusBadRequest {
		t.Fatalf("unknown participant: expected 400, got %d", status)
	}
	status, _ = do(t, server, http.MethodPatch, "/api/leaderboards/nope/progressions/increment", map[string]any{"email": "a@x.com"})
	if status != http.StatusNotFound {
		t.Fatalf("progression on missing leaderboard: expected 404, got %d", status)
	}
}

func TestInitWithoutRaceIsNotFound(t *testing.T) {
	server := httptest.NewServer(newTestMux())
	defer server.Close()

	status, body := do(t, server, http.MethodPost, "/api/leaderboards", map[string]any{"material_id": "m1", "num_questions": 3})
	if status != http.StatusNotFound || body["data"].(map[string]any)["kind"] != string(domain.KindRaceNotFound) {
		t.Fatalf("expected race not found, got %d %v", status, body)
	}
	status, _ = do(t, server, http.MethodPost, "/api/progressions", map[string]any{"material_id": "m1", "num_questions": 3})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for progression, got %d", status)
	}
}

func TestToggleRequiresFlag(t *testing.T) {
	server := httptest.NewServer(newTestMux())
	defer server.Close()

	_, _ = do(t, server, http.MethodPost, "/api/races", map[string]any{"email": "a@x.com", "material_id": "m1"})
	status, _ := do(t, server, http.MethodPatch, "/api/races/m1/toggle", map[string]any{})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 without is_active, got %d", status)
	}
	status, body := do(t, server, http.MethodPatch, "/api/races/m1/toggle", map[string]any{"is_active": true})
	if status != http.StatusOK || body["data"].(map[string]any)["is_active"] != true {
		t.Fatalf("toggle: %d %v", status, body)
	}
	status, body = do(t, server, http.MethodGet, "/api/races/m1/participants", nil)
	if status != http.StatusOK || len(body["data"].([]any)) != 1 {
		t.Fatalf("participants: %d %v", status, body)
	}
}

func TestMaterialsForUser(t *testing.T) {
	server := httptest.NewServer(newTestMux())
	defer server.Close()

	status, _ := do(t, server, http.MethodGet, "/api/materials/user/a@x.com", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 before joining, got %d", status)
	}
	_, _ = do(t, server, http.MethodPost, "/api/races", map[string]any{"email": "a@x.com", "material_id": "m1", "race_name": "Biology"})
	status, body := do(t, server, http.MethodGet, "/api/materials/user/a@x.com", nil)
	if status != http.StatusOK || len(body["data"].([]any)) != 1 {
		t.Fatalf("materials for user: %d %v", status, body)
	}
	status, _ = do(t, server, http.MethodGet, "/api/materials/m1", nil)
	if status != http.StatusOK {
		t.Fatalf("get material: %d", status)
	}
}

func TestEmptyRaceListKeepsDataField(t *testing.T) {
	server := httptest.NewServer(newTestMux())
	defer server.Close()

	status, body := do(t, server, http.MethodGet, "/api/races", nil)
	if status != http.StatusOK {
		t.Fatalf("list races: status %d", status)
	}
	data, ok := body["data"]
	if !ok {
		t.Fatalf("expected data field in %v", body)
	}
	if races, ok := data.([]any); !ok || len(races) != 0 {
		t.Fatalf("expected empty array, got %#v", data)
	}
}

func do(t *testing.T, server *httptest.Server, method, path string, payload any) (int, map[string]any) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequestWithContext(context.Background(), method, server.URL+path, &body)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func newTestService() *app.RaceService {
	return app.NewRaceService(memory.NewRaceStore(), memory.NewLeaderboardStore(nil), memory.NewProgressionStore())
}

func newTestMux() *http.ServeMux {
	return muxFor(newTestService())
}

func muxFor(races *app.RaceService) *http.ServeMux {
	store := memory.NewMaterialStore(map[string]domain.Material{
		"m1": {ID: "m1", Title: "Photosynthesis"},
	})
	materials := app.NewMaterialService(nil, store, memory.NewMaterialRepository(store, time.Minute), races)

	mux := http.NewServeMux()
	NewHandler(races, materials).Register(mux)
	mux.HandleFunc("/ws/leaderboard", NewWSHandler(races).ServeWS)
	return mux
}
