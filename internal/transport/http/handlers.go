package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"quiz-race-service/internal/app"
	"quiz-race-service/internal/domain"
)

// Handler exposes the race, leaderboard, progression and material use cases over JSON.
type Handler struct {
	races     *app.RaceService
	materials *app.MaterialService
}

func NewHandler(races *app.RaceService, materials *app.MaterialService) *Handler {
	return &Handler{races: races, materials: materials}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/races", h.createRace)
	mux.HandleFunc("GET /api/races", h.listRaces)
	mux.HandleFunc("GET /api/races/{materialID}", h.getRace)
	mux.HandleFunc("PATCH /api/races/{materialID}", h.joinRace)
	mux.HandleFunc("PATCH /api/races/{materialID}/toggle", h.toggleRace)
	mux.HandleFunc("GET /api/races/{materialID}/participants", h.getParticipants)

	mux.HandleFunc("POST /api/leaderboards", h.initLeaderboard)
	mux.HandleFunc("GET /api/leaderboards/{materialID}", h.getLeaderboard)
	mux.HandleFunc("PATCH /api/leaderboards/{materialID}/increment", h.incrementScore)
	mux.HandleFunc("PATCH /api/leaderboards/{materialID}/progressions/increment", h.incrementProgression)

	mux.HandleFunc("POST /api/progressions", h.initProgression)
	mux.HandleFunc("GET /api/progressions/{materialID}", h.getProgression)
	mux.HandleFunc("PATCH /api/progressions/{materialID}/increment", h.incrementProgressionScore)

	mux.HandleFunc("POST /api/materials", h.createMaterial)
	mux.HandleFunc("GET /api/materials/{materialID}", h.getMaterial)
	mux.HandleFunc("GET /api/materials/user/{email}", h.getMaterialsForUser)
}

type envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

type createRaceRequest struct {
	Email      string `json:"email"`
	MaterialID string `json:"material_id"`
	RaceName   string `json:"race_name"`
}

type participantRequest struct {
	Email          string `json:"email"`
	IncrementValue *int   `json:"increment_value"`
}

type toggleRequest struct {
	IsActive *bool `json:"is_active"`
}

type initLedgerRequest struct {
	MaterialID   string `json:"material_id"`
	NumQuestions int    `json:"num_questions"`
}

type createMaterialRequest struct {
	Text string `json:"text"`
}

type leaderboardView struct {
	MaterialID   string          `json:"material_id"`
	NumQuestions int             `json:"num_questions"`
	Players      map[string]int  `json:"players"`
	Progression  map[string]int  `json:"progression"`
	IsDone       map[string]bool `json:"is_done"`
	Version      int64           `json:"version"`
}

func viewLeaderboard(lb domain.Leaderboard) leaderboardView {
	return leaderboardView{
		MaterialID:   lb.MaterialID,
		NumQuestions: lb.NumQuestions,
		Players:      lb.Players(),
		Progression:  lb.Progression(),
		IsDone:       lb.IsDone(),
		Version:      lb.Version,
	}
}

func (h *Handler) createRace(w http.ResponseWriter, r *http.Request) {
	var req createRaceRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := h.races.CreateRace(r.Context(), req.Email, req.MaterialID, req.RaceName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Status: http.StatusCreated, Message: "Race created", Data: map[string]string{"race_id": id}})
}

func (h *Handler) listRaces(w http.ResponseWriter, r *http.Request) {
	races, err := h.races.ListRaces(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Message: "Successfully retrieved all races!", Data: races})
}

func (h *Handler) getRace(w http.ResponseWriter, r *http.Request) {
	race, err := h.races.GetRace(r.Context(), r.PathValue("materialID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Message: "Race found", Data: race})
}

func (h *Handler) joinRace(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if !decode(w, r, &req) {
		return
	}
	roster, err := h.races.JoinRace(r.Context(), r.PathValue("materialID"), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Message: "Participant added successfully", Data: roster})
}

func (h *Handler) toggleRace(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !decode(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		writeError(w, domain.Errorf(domain.KindInvalidArgument, "is_active field is required"))
		return
	}
	active, err := h.races.ToggleRace(r.Context(), r.PathValue("materialID"), *req.IsActive)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Message: "Race status updated successfully", Data: map[string]bool{"is_active": active}})
}

func (h *Handler) getParticipants(w http.ResponseWriter, r *http.Request) {
	roster, err := h.races.GetRoster(r.Context(), r.PathValue("materialID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Message: "Participants retrieved successfully", Data: roster})
}

func (h *Handler) initLeaderboard(w http.ResponseWriter, r *http.Request) {
	var req initLedgerRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := h.races.InitLeaderboard(r.Context(), req.MaterialID, req.NumQuestions)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Status: http.StatusCreated, Message: "Leaderboard initialized successfully", Data: map[string]string{"id": id}})
}

func (h *Handler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.races.GetLeaderboard(r.Context(), r.PathValue("materialID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Message: "Leaderboard retrieved successfully", Data: viewLeaderboard(lb)})
}

func (h *Handler) incrementScore(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if !decode(w, r, &req) {
		return
	}
	delta := 1
	if req.IncrementValue != nil {
		delta = *req.IncrementValue
	}
	lb, err := h.races.IncrementScore(r.Context(), r.PathValue("materialID"), req.Email, delta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Message: "Score incremented successfully", Data: viewLeaderboard(lb)})
}

func (h *Handler) incrementProgression(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if !decode(w, r, &req) {
		return
	}
	lb, err := h.races.IncrementProgression(r.Context(), r.PathValue("materialID"), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Message: "Progression incremented successfully", Data: viewLeaderboard(lb)})
}

func (h *Handler) initProgression(w http.ResponseWriter, r *http.Request) {
	var req initLedgerRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := h.races.InitProgression(r.Context(), req.MaterialID, req.NumQuestions)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Status: http.StatusCreated, Message: "Progression created successfully", Data: map[string]string{"id": id}})
}

func (h *Handler) getProgression(w http.ResponseWriter, r *http.Request) {
	p, err := h.races.GetProgression(r.Context(), r.PathValue("materialID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Data: p})
}

func (h *Handler) incrementProgressionScore(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if !decode(w, r, &req) {
		return
	}
	delta := 1
	if req.IncrementValue != nil {
		delta = *req.IncrementValue
	}
	p, err := h.races.IncrementProgressionScore(r.Context(), r.PathValue("materialID"), req.Email, delta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Message: "Score incremented successfully", Data: p})
}

func (h *Handler) createMaterial(w http.ResponseWriter, r *http.Request) {
	var req createMaterialRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := h.materials.Generate(r.Context(), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Status: http.StatusCreated, Message: "Successfully generated new learning materials!", Data: map[string]string{"id": id}})
}

func (h *Handler) getMaterial(w http.ResponseWriter, r *http.Request) {
	m, err := h.materials.Get(r.Context(), r.PathValue("materialID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Message: "Retrieved learning materials!", Data: m})
}

func (h *Handler) getMaterialsForUser(w http.ResponseWriter, r *http.Request) {
	out, err := h.materials.ForParticipant(r.Context(), r.PathValue("email"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: http.StatusOK, Data: out})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, domain.Wrap(domain.KindInvalidArgument, "invalid JSON body", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := envelope{Status: status, Message: err.Error()}
	var de *domain.Error
	if errors.As(err, &de) {
		body.Data = map[string]string{"kind": string(de.Kind)}
	}
	writeJSON(w, status, body)
}

func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindInvalidArgument, domain.KindEmptyRoster, domain.KindAlreadyJoined, domain.KindUnknownParticipant:
		return http.StatusBadRequest
	case domain.KindNotFound, domain.KindRaceNotFound:
		return http.StatusNotFound
	case domain.KindAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
