package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"classroom-service/internal/domain"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

// CurriculumStore persists the single curriculum document.
type CurriculumStore interface {
	Load(ctx context.Context) (domain.Curriculum, error)
	Save(ctx context.Context, c domain.Curriculum) error
	// Sync replaces the local copy with the remote one when the remote is newer.
	Sync(ctx context.Context) (bool, error)
}

// CurriculumService manages rosters and student profiles.
type CurriculumService struct {
	store    CurriculumStore
	rosters  RosterRepository
	rules    domain.SessionRules
	validate *validator.Validate
	now      func() time.Time
}

func NewCurriculumService(store CurriculumStore, rosters RosterRepository, rules domain.SessionRules) *CurriculumService {
	return &CurriculumService{
		store:    store,
		rosters:  rosters,
		rules:    rules,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Curriculum returns the current document.
func (s *CurriculumService) Curriculum(ctx context.Context) (domain.Curriculum, error) {
	return s.store.Load(ctx)
}

// SaveCurriculum overwrites the whole document.
func (s *CurriculumService) SaveCurriculum(ctx context.Context, c domain.Curriculum) (domain.Curriculum, error) {
	if err := s.check(c); err != nil {
		return domain.Curriculum{}, err
	}
	return s.save(ctx, c)
}

// UpsertStudent creates or replaces a student's profile within a grade.
func (s *CurriculumService) UpsertStudent(ctx context.Context, grade string, profile domain.StudentProfile) (domain.Roster, error) {
	profile.Name = strings.TrimSpace(profile.Name)
	if err := s.checkProfile(grade, profile); err != nil {
		return domain.Roster{}, err
	}
	return s.mutateRoster(ctx, grade, func(r *domain.Roster) {
		putProfile(r, profile)
	})
}

// RecordBaseline stores a baseline outcome, creating the profile if needed.
func (s *CurriculumService) RecordBaseline(ctx context.Context, grade, name string, level domain.MasteryLevel) (domain.Roster, error) {
	name = strings.TrimSpace(name)
	if err := s.checkProfile(grade, domain.StudentProfile{Name: name, MasteryLevel: level}); err != nil {
		return domain.Roster{}, err
	}
	if level == "" {
		return domain.Roster{}, domain.NewValidationError(domain.FieldError{Field: "masteryLevel", Error: "required"})
	}
	return s.mutateRoster(ctx, grade, func(r *domain.Roster) {
		profile, _ := r.Profile(name)
		profile.Name = name
		profile.MasteryLevel = level
		profile.BaselineTaken = true
		putProfile(r, profile)
	})
}

// Sync pulls a newer remote curriculum and drops cached rosters when it changed.
func (s *CurriculumService) Sync(ctx context.Context) (bool, error) {
	changed, err := s.store.Sync(ctx)
	if err != nil {
		return false, err
	}
	if changed {
		for _, g := range s.rules.Grades {
			s.rosters.Invalidate(ctx, g)
		}
		log.Println("curriculum synced from remote")
	}
	return changed, nil
}

func (s *CurriculumService) mutateRoster(ctx context.Context, grade string, fn func(r *domain.Roster)) (domain.Roster, error) {
	c, err := s.store.Load(ctx)
	if err != nil {
		return domain.Roster{}, err
	}
	idx := -1
	for i := range c.Grades {
		if c.Grades[i].Grade == grade {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.Grades = append(c.Grades, domain.Roster{Grade: grade})
		idx = len(c.Grades) - 1
	}

	roster := c.Grades[idx]
	roster.Students = append([]domain.StudentProfile(nil), roster.Students...)
	fn(&roster)
	c.Grades[idx] = roster

	if _, err := s.save(ctx, c); err != nil {
		return domain.Roster{}, err
	}
	return roster, nil
}

func (s *CurriculumService) save(ctx context.Context, c domain.Curriculum) (domain.Curriculum, error) {
	c.UpdatedAt = s.now().UTC()
	err := s.store.Save(ctx, c)
	// the store keeps the document in memory even when the local write fails.
	// Every configured grade is dropped so a grade removed by an overwrite is not served stale.
	for _, g := range s.rules.Grades {
		s.rosters.Invalidate(ctx, g)
	}
	return c, err
}

func (s *CurriculumService) check(c domain.Curriculum) error {
	var fields []domain.FieldError
	seenGrades := make(map[string]bool)
	for _, r := range c.Grades {
		if !s.rules.HasGrade(r.Grade) {
			fields = append(fields, domain.FieldError{Field: "grade", Error: "unknown grade " + r.Grade})
			continue
		}
		if seenGrades[r.Grade] {
			fields = append(fields, domain.FieldError{Field: "grade", Error: "duplicate grade " + r.Grade})
		}
		seenGrades[r.Grade] = true

		seenNames := make(map[string]bool)
		for _, p := range r.Students {
			if err := s.checkProfile(r.Grade, p); err != nil {
				var ve *domain.ValidationError
				if errors.As(err, &ve) {
					fields = append(fields, ve.Fields...)
				}
				continue
			}
			if seenNames[p.Name] {
				fields = append(fields, domain.FieldError{Field: "students", Error: "duplicate name " + p.Name + " in " + r.Grade})
			}
			seenNames[p.Name] = true
		}
	}
	if len(fields) > 0 {
		return domain.NewValidationError(fields...)
	}
	return nil
}

func (s *CurriculumService) checkProfile(grade string, p domain.StudentProfile) error {
	var fields []domain.FieldError
	if !s.rules.HasGrade(grade) {
		fields = append(fields, domain.FieldError{Field: "grade", Error: "unknown grade " + grade})
	}
	if err := s.validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields = append(fields, domain.FieldError{Field: "name", Error: fe.Tag()})
			}
		} else {
			return err
		}
	}
	if !p.MasteryLevel.Valid() {
		fields = append(fields, domain.FieldError{Field: "masteryLevel", Error: "unknown level " + string(p.MasteryLevel)})
	}
	if len(fields) > 0 {
		return domain.NewValidationError(fields...)
	}
	return nil
}

func putProfile(r *domain.Roster, p domain.StudentProfile) {
	for i := range r.Students {
		if r.Students[i].Name == p.Name {
			r.Students[i] = p
			return
		}
	}
	r.Students = append(r.Students, p)
}
