package app

import (
	"context"
	"errors"

	"classroom-service/internal/domain"
	log "github.com/sirupsen/logrus"
)

// SessionRepository abstracts where live class sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	GetOrCreate(scope domain.SessionScope, create func() *ClassSession) *ClassSession
	Get(scope domain.SessionScope) (*ClassSession, bool)
	Delete(scope domain.SessionScope)
}

// RosterRepository loads grade rosters (from cache/backing store).
type RosterRepository interface {
	GetRoster(ctx context.Context, grade string) (domain.Roster, error)
	Invalidate(ctx context.Context, grade string)
}

// Ledger is the append-only store of participation records.
type Ledger interface {
	Append(ctx context.Context, rec domain.ParticipationRecord) error
	Records(ctx context.Context) ([]domain.ParticipationRecord, error)
	DeleteSession(ctx context.Context, scope domain.SessionScope) (int, error)
	Delete(ctx context.Context, id string) error
}

// ClassroomService contains the participation picker use cases.
type ClassroomService struct {
	sessions SessionRepository
	rosters  RosterRepository
	ledger   Ledger
	rules    domain.SessionRules
	cfg      PickerConfig
	opts     []PickerOption
}

func NewClassroomService(sessions SessionRepository, rosters RosterRepository, ledger Ledger, rules domain.SessionRules, cfg PickerConfig, opts ...PickerOption) *ClassroomService {
	return &ClassroomService{
		sessions: sessions,
		rosters:  rosters,
		ledger:   ledger,
		rules:    rules,
		cfg:      cfg,
		opts:     opts,
	}
}

// Rules returns the calendar rules sessions are validated against.
func (s *ClassroomService) Rules() domain.SessionRules {
	return s.rules
}

// StartSession validates the period and opens (or resumes) its picker.
func (s *ClassroomService) StartSession(ctx context.Context, date string, period int, grade string) (Board, error) {
	info, err := domain.NewSessionInfo(date, period, grade, s.rules)
	if err != nil {
		return Board{}, err
	}
	roster, err := s.rosters.GetRoster(ctx, grade)
	if err != nil && !errors.Is(err, domain.ErrGradeNotFound) {
		return Board{}, err
	}
	if len(roster.Students) == 0 {
		log.WithField("grade", grade).Warn("starting session with empty roster")
	}

	session := s.sessions.GetOrCreate(info.Scope(), func() *ClassSession {
		return NewClassSession(NewPicker(info, roster, s.cfg, s.opts...))
	})

	lb, err := s.Leaderboard(ctx, info.Scope())
	if err != nil {
		return Board{}, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	log.Printf("session started: %s", info.Scope().Key())
	return session.publishLocked(lb), nil
}

// Board returns the live snapshot of a started session.
func (s *ClassroomService) Board(_ context.Context, scope domain.SessionScope) (Board, error) {
	session, ok := s.sessions.Get(scope)
	if !ok {
		return Board{}, domain.ErrSessionNotFound
	}
	return session.Board(), nil
}

// Draw picks the next student.
func (s *ClassroomService) Draw(_ context.Context, scope domain.SessionScope) (Board, error) {
	return s.transition(scope, func(p *Picker) error {
		_, err := p.Draw()
		return err
	})
}

// MarkAbsent discards the current draw without recording anything.
func (s *ClassroomService) MarkAbsent(_ context.Context, scope domain.SessionScope) (Board, error) {
	return s.transition(scope, func(p *Picker) error {
		_, err := p.MarkAbsent()
		return err
	})
}

// StartTimer starts timing the active student's response.
func (s *ClassroomService) StartTimer(_ context.Context, scope domain.SessionScope) (Board, error) {
	return s.transition(scope, func(p *Picker) error {
		return p.StartTimer()
	})
}

// Resolve judges the active student's response and appends the record to the ledger.
// A local storage failure is returned alongside the updated board; the record is kept in memory.
func (s *ClassroomService) Resolve(ctx context.Context, scope domain.SessionScope, correct bool) (Resolution, Board, error) {
	session, ok := s.sessions.Get(scope)
	if !ok {
		return Resolution{}, Board{}, domain.ErrSessionNotFound
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	rec, res, err := session.picker.Resolve(correct)
	if err != nil {
		return Resolution{}, Board{}, err
	}
	appendErr := s.ledger.Append(ctx, rec)
	if appendErr != nil {
		log.WithError(appendErr).WithField("record", rec.ID).Error("persist participation record")
	}

	lb, err := s.Leaderboard(ctx, scope)
	if err != nil {
		return res, Board{}, err
	}
	board := session.publishLocked(lb)
	session.scheduleIdleLocked()
	return res, board, appendErr
}

// ResetSession deletes every record of the session and, if it is live, refills its pool.
func (s *ClassroomService) ResetSession(ctx context.Context, scope domain.SessionScope) (Board, int, error) {
	removed, persistErr := s.ledger.DeleteSession(ctx, scope)
	if persistErr != nil && !errors.Is(persistErr, domain.ErrStorageFull) {
		return Board{}, removed, persistErr
	}

	empty := domain.Leaderboard{Session: scope, Entries: []domain.LeaderboardEntry{}}
	session, ok := s.sessions.Get(scope)
	if !ok {
		return Board{Leaderboard: empty}, removed, persistErr
	}
	s.rosters.Invalidate(ctx, scope.Grade)
	roster, err := s.rosters.GetRoster(ctx, scope.Grade)
	if err != nil && !errors.Is(err, domain.ErrGradeNotFound) {
		return Board{}, removed, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	session.stopIdleTimerLocked()
	session.picker.Reset(roster)
	log.Printf("session reset: %s (%d records removed)", scope.Key(), removed)
	return session.publishLocked(empty), removed, persistErr
}

// EndSession drops a live session and disconnects its subscribers. Records are kept.
func (s *ClassroomService) EndSession(_ context.Context, scope domain.SessionScope) error {
	session, ok := s.sessions.Get(scope)
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.close()
	s.sessions.Delete(scope)
	return nil
}

// Subscribe returns a channel that receives board updates for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ClassroomService) Subscribe(_ context.Context, scope domain.SessionScope) (<-chan Board, func(), error) {
	session, ok := s.sessions.Get(scope)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Leaderboard derives the session leaderboard from the ledger.
func (s *ClassroomService) Leaderboard(ctx context.Context, scope domain.SessionScope) (domain.Leaderboard, error) {
	records, err := s.ledger.Records(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return BuildLeaderboard(records, scope), nil
}

// Records lists ledger records, optionally limited to one session.
func (s *ClassroomService) Records(ctx context.Context, scope *domain.SessionScope) ([]domain.ParticipationRecord, error) {
	records, err := s.ledger.Records(ctx)
	if err != nil || scope == nil {
		return records, err
	}
	filtered := make([]domain.ParticipationRecord, 0)
	for _, rec := range records {
		if scope.Contains(rec) {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

// DeleteRecord removes a single record and refreshes its session if live.
func (s *ClassroomService) DeleteRecord(ctx context.Context, id string) error {
	records, err := s.ledger.Records(ctx)
	if err != nil {
		return err
	}
	var scope *domain.SessionScope
	for _, rec := range records {
		if rec.ID == id {
			sc := rec.Scope()
			scope = &sc
			break
		}
	}
	if err := s.ledger.Delete(ctx, id); err != nil {
		return err
	}
	if scope == nil {
		return nil
	}
	if session, ok := s.sessions.Get(*scope); ok {
		lb, err := s.Leaderboard(ctx, *scope)
		if err != nil {
			return err
		}
		session.mu.Lock()
		session.publishLocked(lb)
		session.mu.Unlock()
	}
	return nil
}

func (s *ClassroomService) transition(scope domain.SessionScope, fn func(p *Picker) error) (Board, error) {
	session, ok := s.sessions.Get(scope)
	if !ok {
		return Board{}, domain.ErrSessionNotFound
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if err := fn(session.picker); err != nil {
		return Board{}, err
	}
	session.stopIdleTimerLocked()
	return session.broadcastLocked(), nil
}
