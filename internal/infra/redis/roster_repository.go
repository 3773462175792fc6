package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"classroom-service/internal/domain"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// RosterLoader fetches a grade roster from the curriculum store.
type RosterLoader interface {
	LoadRoster(ctx context.Context, grade string) (domain.Roster, error)
}

// RosterRepository caches rosters in Redis and falls back to a loader on cache miss.
// Roster order is stored as:  RPUSH roster:{grade}:order {name}...
// Profiles are stored as:     HSET  roster:{grade}:profiles {name} {profile JSON}
type RosterRepository struct {
	client *redis.Client
	loader RosterLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewRosterRepository(client *redis.Client, loader RosterLoader, ttl time.Duration) *RosterRepository {
	return &RosterRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *RosterRepository) GetRoster(ctx context.Context, grade string) (domain.Roster, error) {
	if roster, ok := r.fromCache(ctx, grade); ok {
		return roster, nil
	}

	result, err, _ := r.sf.Do(grade, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if roster, ok := r.fromCache(ctx, grade); ok {
			return roster, nil
		}

		roster, err := r.loader.LoadRoster(ctx, grade)
		if err != nil {
			return roster, err
		}
		r.store(ctx, roster)
		return roster, nil
	})
	roster, _ := result.(domain.Roster)
	return roster, err
}

// Invalidate drops the cached roster for grade.
func (r *RosterRepository) Invalidate(ctx context.Context, grade string) {
	if err := r.client.Del(ctx, r.orderKey(grade), r.profilesKey(grade)).Err(); err != nil {
		log.WithError(err).WithField("grade", grade).Warn("invalidate roster cache")
	}
}

func (r *RosterRepository) fromCache(ctx context.Context, grade string) (domain.Roster, bool) {
	names, err := r.client.LRange(ctx, r.orderKey(grade), 0, -1).Result()
	if err != nil || len(names) == 0 {
		return domain.Roster{}, false
	}
	profiles, err := r.client.HGetAll(ctx, r.profilesKey(grade)).Result()
	if err != nil {
		return domain.Roster{}, false
	}
	return buildRosterFromCache(grade, names, profiles), true
}

func (r *RosterRepository) store(ctx context.Context, roster domain.Roster) {
	if len(roster.Students) == 0 {
		return
	}
	orderKey := r.orderKey(roster.Grade)
	profilesKey := r.profilesKey(roster.Grade)

	ttl := r.ttlWithJitter()
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, orderKey, profilesKey)
	for _, s := range roster.Students {
		data, err := json.Marshal(s)
		if err != nil {
			continue
		}
		pipe.RPush(ctx, orderKey, s.Name)
		pipe.HSet(ctx, profilesKey, s.Name, data)
	}
	if ttl > 0 {
		pipe.Expire(ctx, orderKey, ttl)
		pipe.Expire(ctx, profilesKey, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.WithError(err).WithField("grade", roster.Grade).Warn("cache roster")
	}
}

func (r *RosterRepository) orderKey(grade string) string {
	return "roster:" + grade + ":order"
}

func (r *RosterRepository) profilesKey(grade string) string {
	return "roster:" + grade + ":profiles"
}

func buildRosterFromCache(grade string, names []string, profiles map[string]string) domain.Roster {
	students := make([]domain.StudentProfile, 0, len(names))
	for _, name := range names {
		profile := domain.StudentProfile{Name: name}
		if raw, ok := profiles[name]; ok {
			if err := json.Unmarshal([]byte(raw), &profile); err != nil {
				profile = domain.StudentProfile{Name: name}
			}
		}
		students = append(students, profile)
	}
	// units are not cached in this lightweight form
	return domain.Roster{Grade: grade, Students: students}
}

func (r *RosterRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
