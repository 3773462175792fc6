package app_test

import (
	"strconv"
	"sync"
	"time"

	"classroom-service/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "rec-" + strconv.Itoa(n)
	}
}

func amyAndBo() domain.Roster {
	return domain.Roster{
		Grade: "Grade 3 O",
		Students: []domain.StudentProfile{
			{Name: "Amy"},
			{Name: "Bo", IsSpecialNeeds: true},
		},
	}
}

func mondayPeriod(period int) domain.SessionInfo {
	return domain.SessionInfo{Date: "2026-10-19", Day: "Monday", Period: period, Grade: "Grade 3 O"}
}

func score(v int) *int {
	return &v
}
