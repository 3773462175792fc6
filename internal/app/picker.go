package app

import (
	"math/rand"
	"time"

	"classroom-service/internal/domain"
	"github.com/google/uuid"
)

// PickerState is the phase of the name picker.
type PickerState string

const (
	StateIdle     PickerState = "idle"
	StateDrawn    PickerState = "drawn"
	StateResolved PickerState = "resolved"
)

// PickerConfig holds the scoring curve and how long a result stays on screen.
type PickerConfig struct {
	Scorer         DecayScorer
	CorrectDelay   time.Duration
	IncorrectDelay time.Duration
}

// DefaultPickerConfig shows a correct result for 2s and an incorrect one for 1.5s.
func DefaultPickerConfig() PickerConfig {
	return PickerConfig{
		Scorer:         DefaultScorer(),
		CorrectDelay:   2 * time.Second,
		IncorrectDelay: 1500 * time.Millisecond,
	}
}

// Resolution is the judged outcome of one draw.
type Resolution struct {
	StudentName string `json:"studentName"`
	IsCorrect   bool   `json:"isCorrect"`
	ElapsedMs   int64  `json:"elapsedMs"`
	LiveScore   int    `json:"liveScore"`
	Bonus       int    `json:"bonus"`
	Awarded     int    `json:"awarded"`
}

// PickerSnapshot is a read-only view of the picker for rendering.
type PickerSnapshot struct {
	State      PickerState `json:"state"`
	Active     string      `json:"active,omitempty"`
	Remaining  int         `json:"remaining"`
	Timing     bool        `json:"timing"`
	ElapsedMs  int64       `json:"elapsedMs"`
	LiveScore  int         `json:"liveScore"`
	LastResult *Resolution `json:"lastResult,omitempty"`
}

// Picker draws students from a weighted pool and times their responses.
// It is not safe for concurrent use; ClassSession serializes access.
type Picker struct {
	session domain.SessionInfo
	roster  domain.Roster
	cfg     PickerConfig
	now     func() time.Time
	rnd     *rand.Rand
	newID   func() string

	pool       []string
	state      PickerState
	active     string
	timing     bool
	timerStart time.Time
	result     *Resolution
	idleAt     time.Time
}

// PickerOption customizes a Picker, mostly for deterministic tests.
type PickerOption func(*Picker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) PickerOption {
	return func(p *Picker) { p.now = now }
}

// WithRand replaces the shuffle source.
func WithRand(rnd *rand.Rand) PickerOption {
	return func(p *Picker) { p.rnd = rnd }
}

// WithIDGenerator replaces the record id source.
func WithIDGenerator(gen func() string) PickerOption {
	return func(p *Picker) { p.newID = gen }
}

// NewPicker builds the first pool for the session and starts Idle.
func NewPicker(session domain.SessionInfo, roster domain.Roster, cfg PickerConfig, opts ...PickerOption) *Picker {
	p := &Picker{
		session: session,
		roster:  roster,
		cfg:     cfg,
		now:     time.Now,
		newID:   newRecordID,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rnd == nil {
		p.rnd = rand.New(rand.NewSource(p.now().UnixNano()))
	}
	p.pool = BuildPool(roster.Names(), roster.IsSpecialNeeds, p.rnd)
	return p
}

// Draw pops the next name. An exhausted pool is regenerated first.
func (p *Picker) Draw() (string, error) {
	p.settle()
	if p.state != StateIdle {
		return "", domain.ErrPickerBusy
	}
	if len(p.pool) == 0 {
		p.pool = BuildPool(p.roster.Names(), p.roster.IsSpecialNeeds, p.rnd)
	}
	if len(p.pool) == 0 {
		return "", domain.ErrNoStudents
	}

	p.active = p.pool[0]
	p.pool = p.pool[1:]
	p.state = StateDrawn
	p.timing = false
	p.result = nil
	return p.active, nil
}

// MarkAbsent discards the current draw without a record. The name is not put back.
func (p *Picker) MarkAbsent() (string, error) {
	p.settle()
	if p.state != StateDrawn {
		return "", domain.ErrNoActiveStudent
	}
	if p.timing {
		return "", domain.ErrTimerRunning
	}
	name := p.active
	p.active = ""
	p.state = StateIdle
	return name, nil
}

// StartTimer begins timing the active student's response.
func (p *Picker) StartTimer() error {
	p.settle()
	if p.state != StateDrawn {
		return domain.ErrNoActiveStudent
	}
	if p.timing {
		return domain.ErrTimerRunning
	}
	p.timing = true
	p.timerStart = p.now()
	return nil
}

// Resolve judges the response, freezing the score at this instant, and returns
// the participation record to append.
func (p *Picker) Resolve(correct bool) (domain.ParticipationRecord, Resolution, error) {
	p.settle()
	if p.state != StateDrawn {
		return domain.ParticipationRecord{}, Resolution{}, domain.ErrNoActiveStudent
	}
	if !p.timing {
		return domain.ParticipationRecord{}, Resolution{}, domain.ErrTimerNotStarted
	}

	now := p.now()
	elapsed := now.Sub(p.timerStart)
	live := p.cfg.Scorer.Score(elapsed)
	bonus, awarded := p.cfg.Scorer.Award(live, correct)

	res := Resolution{
		StudentName: p.active,
		IsCorrect:   correct,
		ElapsedMs:   elapsed.Milliseconds(),
		LiveScore:   live,
		Bonus:       bonus,
		Awarded:     awarded,
	}
	score := awarded
	rec := domain.ParticipationRecord{
		ID:              p.newID(),
		StudentName:     p.active,
		Grade:           p.session.Grade,
		Date:            p.session.Date,
		Day:             p.session.Day,
		Period:          domain.Period(p.session.Period),
		Timestamp:       now.UnixMilli(),
		DurationSeconds: elapsed.Seconds(),
		Score:           &score,
		IsCorrect:       correct,
	}

	delay := p.cfg.IncorrectDelay
	if correct {
		delay = p.cfg.CorrectDelay
	}
	p.timing = false
	p.state = StateResolved
	p.result = &res
	p.idleAt = now.Add(delay)
	return rec, res, nil
}

// IdleIn is how long until a resolved picker returns to Idle.
func (p *Picker) IdleIn() time.Duration {
	if p.state != StateResolved {
		return 0
	}
	if d := p.idleAt.Sub(p.now()); d > 0 {
		return d
	}
	return 0
}

// Reset refills and reshuffles the pool from roster and clears the active student.
func (p *Picker) Reset(roster domain.Roster) {
	p.roster = roster
	p.pool = BuildPool(roster.Names(), roster.IsSpecialNeeds, p.rnd)
	p.state = StateIdle
	p.active = ""
	p.timing = false
	p.result = nil
}

// Session returns the session the picker was built for.
func (p *Picker) Session() domain.SessionInfo {
	return p.session
}

// Snapshot reports the current state, including the live score while timing.
func (p *Picker) Snapshot() PickerSnapshot {
	p.settle()
	snap := PickerSnapshot{
		State:      p.state,
		Active:     p.active,
		Remaining:  len(p.pool),
		Timing:     p.timing,
		LastResult: p.result,
	}
	if p.state == StateDrawn {
		snap.LiveScore = p.cfg.Scorer.MaxScore
		if p.timing {
			elapsed := p.now().Sub(p.timerStart)
			snap.ElapsedMs = elapsed.Milliseconds()
			snap.LiveScore = p.cfg.Scorer.Score(elapsed)
		}
	}
	return snap
}

// settle applies the delayed Resolved -> Idle transition.
func (p *Picker) settle() {
	if p.state == StateResolved && !p.now().Before(p.idleAt) {
		p.state = StateIdle
		p.active = ""
		p.result = nil
	}
}

func newRecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
