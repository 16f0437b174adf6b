package domain

import "time"

// Race is a group of participants working through the same material.
type Race struct {
	ID           string    `json:"id"`
	MaterialID   string    `json:"material_id"`
	Name         string    `json:"race_name,omitempty"`
	Participants []string  `json:"participants"`
	StartTime    time.Time `json:"start_time"`
	IsActive     bool      `json:"is_active"`
}

// HasParticipant reports whether participant is already on the roster.
func (r Race) HasParticipant(participant string) bool {
	for _, p := range r.Participants {
		if p == participant {
			return true
		}
	}
	return false
}

// ParticipantState is one participant's row on a leaderboard.
// Progression is the 1-based index of the next question.
type ParticipantState struct {
	Score       int  `json:"score"`
	Progression int  `json:"progression"`
	Done        bool `json:"is_done"`
}

// Advance applies one completion event. Done latches once Progression reaches numQuestions.
func (s ParticipantState) Advance(delta int, touchScore bool, numQuestions int) ParticipantState {
	if touchScore {
		s.Score += delta
	}
	s.Progression++
	if s.Progression >= numQuestions {
		s.Done = true
	}
	return s
}

// Leaderboard is a point-in-time snapshot of a race's standings.
// Version counts the mutations applied to the board; a snapshot with a
// higher version reflects every mutation of a lower one.
type Leaderboard struct {
	MaterialID   string                      `json:"material_id"`
	NumQuestions int                         `json:"num_questions"`
	Entries      map[string]ParticipantState `json:"entries"`
	Version      int64                       `json:"version"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// NewLeaderboard seeds every roster member with score 0, progression 1, not done.
func NewLeaderboard(materialID string, numQuestions int, roster []string, now time.Time) Leaderboard {
	entries := make(map[string]ParticipantState, len(roster))
	for _, p := range roster {
		entries[p] = ParticipantState{Score: 0, Progression: 1}
	}
	return Leaderboard{
		MaterialID:   materialID,
		NumQuestions: numQuestions,
		Entries:      entries,
		UpdatedAt:    now,
	}
}

// Players returns participant -> score.
func (l Leaderboard) Players() map[string]int {
	out := make(map[string]int, len(l.Entries))
	for p, s := range l.Entries {
		out[p] = s.Score
	}
	return out
}

// Progression returns participant -> next question index.
func (l Leaderboard) Progression() map[string]int {
	out := make(map[string]int, len(l.Entries))
	for p, s := range l.Entries {
		out[p] = s.Progression
	}
	return out
}

// IsDone returns participant -> completion flag.
func (l Leaderboard) IsDone() map[string]bool {
	out := make(map[string]bool, len(l.Entries))
	for p, s := range l.Entries {
		out[p] = s.Done
	}
	return out
}

// Clone returns a deep copy safe to hand to other goroutines.
func (l Leaderboard) Clone() Leaderboard {
	entries := make(map[string]ParticipantState, len(l.Entries))
	for p, s := range l.Entries {
		entries[p] = s
	}
	l.Entries = entries
	return l
}

// Progression is the lightweight score-only ledger for a material.
type Progression struct {
	MaterialID   string         `json:"material_id"`
	NumQuestions int            `json:"num_questions"`
	Players      map[string]int `json:"players"`
}

// NewProgression seeds every roster member with score 0.
func NewProgression(materialID string, numQuestions int, roster []string) Progression {
	players := make(map[string]int, len(roster))
	for _, p := range roster {
		players[p] = 0
	}
	return Progression{MaterialID: materialID, NumQuestions: numQuestions, Players: players}
}

// Material item types produced by the content generator.
const (
	ItemTypeReading = "reading"
	ItemTypeMCQQuiz = "mcq_quiz"
)

// MaterialItem is a single reading passage or multiple-choice question.
type MaterialItem struct {
	ID            int      `json:"id"`
	Type          string   `json:"type"`
	Material      string   `json:"material,omitempty"`
	Question      string   `json:"question,omitempty"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
}

// Material is a generated learning document a race is run against.
type Material struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	ShortDescription string         `json:"short_description"`
	Items            []MaterialItem `json:"materials"`
}

// NumQuestions counts the quiz items in the material.
func (m Material) NumQuestions() int {
	n := 0
	for _, item := range m.Items {
		if item.Type == ItemTypeMCQQuiz {
			n++
		}
	}
	return n
}

// GeneratedMaterial is the raw output of the content generator.
type GeneratedMaterial struct {
	Title            string         `json:"title"`
	ShortDescription string         `json:"short_description"`
	Materials        []MaterialItem `json:"materials"`
}
