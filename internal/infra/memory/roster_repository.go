package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"classroom-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// RosterLoader fetches a grade roster from the curriculum store.
type RosterLoader interface {
	LoadRoster(ctx context.Context, grade string) (domain.Roster, error)
}

// RosterRepository caches rosters with TTL to avoid re-reading the curriculum on every session.
type RosterRepository struct {
	loader RosterLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedRoster
}

type cachedRoster struct {
	roster    domain.Roster
	expiresAt time.Time
}

func NewRosterRepository(loader RosterLoader, ttl time.Duration) *RosterRepository {
	return &RosterRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedRoster),
	}
}

func (r *RosterRepository) GetRoster(ctx context.Context, grade string) (domain.Roster, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[grade]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.roster, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(grade, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[grade]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.roster, nil
		}
		r.mu.RUnlock()

		roster, err := r.loader.LoadRoster(ctx, grade)
		if err != nil {
			return roster, err
		}

		expiresAt := now.Add(r.ttlWithJitter())
		r.mu.Lock()
		r.cache[grade] = cachedRoster{roster: roster, expiresAt: expiresAt}
		r.mu.Unlock()
		return roster, nil
	})
	roster, _ := result.(domain.Roster)
	return roster, err
}

// Invalidate drops the cached roster for grade.
func (r *RosterRepository) Invalidate(_ context.Context, grade string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, grade)
}

// StaticRosterLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticRosterLoader struct {
	rosters map[string]domain.Roster
}

func NewStaticRosterLoader(rosters map[string]domain.Roster) *StaticRosterLoader {
	return &StaticRosterLoader{rosters: rosters}
}

func (l *StaticRosterLoader) LoadRoster(_ context.Context, grade string) (domain.Roster, error) {
	if roster, ok := l.rosters[grade]; ok {
		return roster, nil
	}
	return domain.Roster{Grade: grade}, domain.ErrGradeNotFound
}

func (r *RosterRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
