package persist

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"classroom-service/internal/domain"
	log "github.com/sirupsen/logrus"
)

// CurriculumStore keeps the curriculum document locally and mirrors it to the
// remote store under the same key.
type CurriculumStore struct {
	kv     KV
	mirror Mirror

	mu     sync.Mutex
	cached *domain.Curriculum
}

func NewCurriculumStore(kv KV, mirror Mirror) *CurriculumStore {
	return &CurriculumStore{kv: kv, mirror: mirror}
}

// Load returns the local document. When nothing is stored locally and the remote
// store is reachable, the remote copy seeds the local one.
func (s *CurriculumStore) Load(ctx context.Context) (domain.Curriculum, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return cloneCurriculum(*s.cached), nil
	}

	c, err := ReadJSON(ctx, s.kv, KeyCurriculum, domain.Curriculum{})
	if err != nil {
		return domain.Curriculum{}, err
	}
	if len(c.Grades) == 0 && s.mirror != nil && s.mirror.IsConnected() {
		if remoteCopy, ok := s.fetchRemote(ctx); ok {
			c = remoteCopy
			if err := WriteJSON(ctx, s.kv, KeyCurriculum, c); err != nil {
				log.WithError(err).Warn("cache remote curriculum locally")
			}
		}
	}
	s.cached = &c
	return cloneCurriculum(c), nil
}

// Save overwrites the document. The in-memory copy is updated even if the local write fails.
func (s *CurriculumStore) Save(ctx context.Context, c domain.Curriculum) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := cloneCurriculum(c)
	s.cached = &stored

	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	writeErr := s.kv.Set(ctx, KeyCurriculum, string(data))
	if s.mirror != nil {
		s.mirror.MirrorDocument(KeyCurriculum, data)
	}
	return writeErr
}

// Sync replaces the local document with the remote one when the remote is newer.
func (s *CurriculumStore) Sync(ctx context.Context) (bool, error) {
	if s.mirror == nil || !s.mirror.IsConnected() {
		return false, domain.ErrRemoteNotConnected
	}
	raw, ok, err := s.mirror.FetchDocument(ctx, KeyCurriculum)
	if err != nil || !ok {
		return false, err
	}
	var remoteCopy domain.Curriculum
	if err := json.Unmarshal(raw, &remoteCopy); err != nil {
		log.WithError(err).Warn("discarding malformed remote curriculum")
		return false, nil
	}

	local, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	if !remoteCopy.UpdatedAt.After(local.UpdatedAt) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = &remoteCopy
	return true, WriteJSON(ctx, s.kv, KeyCurriculum, remoteCopy)
}

// LoadRoster serves roster caches.
func (s *CurriculumStore) LoadRoster(ctx context.Context, grade string) (domain.Roster, error) {
	c, err := s.Load(ctx)
	if err != nil {
		return domain.Roster{}, err
	}
	r, ok := c.Roster(grade)
	if !ok {
		return domain.Roster{Grade: grade}, domain.ErrGradeNotFound
	}
	return r, nil
}

func (s *CurriculumStore) fetchRemote(ctx context.Context) (domain.Curriculum, bool) {
	raw, ok, err := s.mirror.FetchDocument(ctx, KeyCurriculum)
	if err != nil {
		if !errors.Is(err, domain.ErrRemoteNotConnected) {
			log.WithError(err).Warn("fetch remote curriculum")
		}
		return domain.Curriculum{}, false
	}
	if !ok {
		return domain.Curriculum{}, false
	}
	var c domain.Curriculum
	if err := json.Unmarshal(raw, &c); err != nil {
		log.WithError(err).Warn("discarding malformed remote curriculum")
		return domain.Curriculum{}, false
	}
	return c, true
}

func cloneCurriculum(c domain.Curriculum) domain.Curriculum {
	out := domain.Curriculum{UpdatedAt: c.UpdatedAt, Grades: make([]domain.Roster, len(c.Grades))}
	for i, r := range c.Grades {
		out.Grades[i] = domain.Roster{
			Grade:    r.Grade,
			Students: append([]domain.StudentProfile(nil), r.Students...),
			Units:    append([]domain.Unit(nil), r.Units...),
		}
	}
	return out
}
