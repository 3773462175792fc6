package app

import (
	"sync"
	"time"

	"classroom-service/internal/domain"
)

// Board is everything the teacher console renders for a live session.
type Board struct {
	Session     domain.SessionInfo `json:"session"`
	Picker      PickerSnapshot     `json:"picker"`
	Leaderboard domain.Leaderboard `json:"leaderboard"`
}

// ClassSession is a live class period: its picker plus console subscribers.
type ClassSession struct {
	mu          sync.Mutex
	picker      *Picker
	leaderboard domain.Leaderboard
	subscribers map[chan Board]struct{}
	idleTimer   *time.Timer
}

// NewClassSession wraps a picker. Infrastructure stores use this to seed sessions.
func NewClassSession(picker *Picker) *ClassSession {
	return &ClassSession{
		picker:      picker,
		leaderboard: domain.Leaderboard{Session: picker.Session().Scope(), Entries: []domain.LeaderboardEntry{}},
		subscribers: make(map[chan Board]struct{}),
	}
}

// Info returns the immutable session description.
func (s *ClassSession) Info() domain.SessionInfo {
	return s.picker.Session()
}

// Board returns the current snapshot.
func (s *ClassSession) Board() Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boardLocked()
}

func (s *ClassSession) subscribe() (<-chan Board, func()) {
	ch := make(chan Board, 8)

	s.mu.Lock()
	// the buffer is empty, so this never blocks while holding the lock
	ch <- s.boardLocked()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// close stops the idle timer and disconnects every subscriber.
func (s *ClassSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopIdleTimerLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *ClassSession) publishLocked(lb domain.Leaderboard) Board {
	s.leaderboard = lb
	return s.broadcastLocked()
}

func (s *ClassSession) broadcastLocked() Board {
	board := s.boardLocked()
	for ch := range s.subscribers {
		select {
		case ch <- board:
		default:
			// drop the oldest pending update so a slow console never blocks the picker
			select {
			case <-ch:
			default:
			}
			ch <- board
		}
	}
	return board
}

// scheduleIdleLocked publishes the Resolved -> Idle transition once the display delay passes.
func (s *ClassSession) scheduleIdleLocked() {
	s.stopIdleTimerLocked()
	delay := s.picker.IdleIn()
	if delay <= 0 {
		return
	}
	s.idleTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.idleTimer = nil
		s.broadcastLocked()
	})
}

func (s *ClassSession) stopIdleTimerLocked() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}

func (s *ClassSession) boardLocked() Board {
	return Board{
		Session:     s.picker.Session(),
		Picker:      s.picker.Snapshot(),
		Leaderboard: s.leaderboard,
	}
}
