package domain

import "time"

// MasteryLevel is the outcome of a student's baseline assessment.
type MasteryLevel string

const (
	MasteryNeedsSupport MasteryLevel = "NeedsSupport"
	MasteryDeveloping   MasteryLevel = "Developing"
	MasteryMastery      MasteryLevel = "Mastery"
)

// Valid reports whether m is one of the known levels. Empty means not yet assessed.
func (m MasteryLevel) Valid() bool {
	switch m {
	case "", MasteryNeedsSupport, MasteryDeveloping, MasteryMastery:
		return true
	}
	return false
}

// StudentProfile identifies a student within a grade roster.
type StudentProfile struct {
	Name           string       `json:"name" validate:"required,max=64"`
	IsSpecialNeeds bool         `json:"isSpecialNeeds"`
	MasteryLevel   MasteryLevel `json:"masteryLevel,omitempty"`
	BaselineTaken  bool         `json:"baselineTaken"`
}

// Unit is one block of the curriculum a grade works through.
type Unit struct {
	Title  string   `json:"title"`
	Skills []string `json:"skills,omitempty"`
	Active bool     `json:"active"`
}

// Roster is the ordered list of students for a grade plus its curriculum units.
type Roster struct {
	Grade    string           `json:"grade"`
	Students []StudentProfile `json:"students"`
	Units    []Unit           `json:"units,omitempty"`
}

// Names returns the student names in roster order.
func (r Roster) Names() []string {
	names := make([]string, 0, len(r.Students))
	for _, s := range r.Students {
		names = append(names, s.Name)
	}
	return names
}

// Profile looks up a student by name.
func (r Roster) Profile(name string) (StudentProfile, bool) {
	for _, s := range r.Students {
		if s.Name == name {
			return s, true
		}
	}
	return StudentProfile{}, false
}

// IsSpecialNeeds reports the pool weighting flag; unknown names are unflagged.
func (r Roster) IsSpecialNeeds(name string) bool {
	p, ok := r.Profile(name)
	return ok && p.IsSpecialNeeds
}

// Curriculum is the single document holding every grade's roster.
type Curriculum struct {
	Grades    []Roster  `json:"grades"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Roster returns the roster for grade.
func (c Curriculum) Roster(grade string) (Roster, bool) {
	for _, r := range c.Grades {
		if r.Grade == grade {
			return r, true
		}
	}
	return Roster{}, false
}

// ParticipationRecord is one scoring event. Records are never mutated.
// Score is nil only for records written before scores existed.
type ParticipationRecord struct {
	ID              string  `json:"id"`
	StudentName     string  `json:"studentName"`
	Grade           string  `json:"grade"`
	Date            string  `json:"date"`
	Day             string  `json:"day"`
	Period          Period  `json:"period"`
	Timestamp       int64   `json:"timestamp"`
	DurationSeconds float64 `json:"durationSeconds"`
	Score           *int    `json:"score,omitempty"`
	IsCorrect       bool    `json:"isCorrect"`
}

// Scope returns the session the record belongs to.
func (r ParticipationRecord) Scope() SessionScope {
	return SessionScope{Date: r.Date, Grade: r.Grade, Period: int(r.Period)}
}

// Points is the leaderboard contribution of a correct record.
func (r ParticipationRecord) Points() int {
	if r.Score == nil {
		return 1
	}
	return *r.Score
}

// ActivityRecord is the result of one student-facing activity (quiz, spelling, scramble...).
type ActivityRecord struct {
	ID          string   `json:"id"`
	StudentName string   `json:"studentName" validate:"required"`
	Grade       string   `json:"grade" validate:"required"`
	Activity    string   `json:"activity" validate:"required"`
	Skill       string   `json:"skill,omitempty"`
	Score       int      `json:"score" validate:"gte=0"`
	Total       int      `json:"total" validate:"gte=0"`
	Timestamp   int64    `json:"timestamp"`
	Answers     []string `json:"answers,omitempty"`
	// Targets are the words of a tile activity; when set the score is computed from Answers.
	Targets []string `json:"targets,omitempty"`
}

// LeaderboardEntry is one student's session total.
type LeaderboardEntry struct {
	StudentName string `json:"studentName"`
	Score       int    `json:"score"`
}

// Leaderboard captures the ordered scoreboard for a class session.
type Leaderboard struct {
	Session SessionScope       `json:"session"`
	Entries []LeaderboardEntry `json:"entries"`
}
