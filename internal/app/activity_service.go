package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"classroom-service/internal/domain"
	"github.com/go-playground/validator/v10"
)

// ActivityStore keeps student activity results.
type ActivityStore interface {
	Append(ctx context.Context, rec domain.ActivityRecord) error
	Records(ctx context.Context) ([]domain.ActivityRecord, error)
}

// ActivityFilter narrows an activity listing. Empty fields match everything.
type ActivityFilter struct {
	StudentName string
	Grade       string
	Activity    string
}

func (f ActivityFilter) match(rec domain.ActivityRecord) bool {
	return (f.StudentName == "" || f.StudentName == rec.StudentName) &&
		(f.Grade == "" || f.Grade == rec.Grade) &&
		(f.Activity == "" || f.Activity == rec.Activity)
}

// ActivityService records results from the student activity suite.
type ActivityService struct {
	store    ActivityStore
	rules    domain.SessionRules
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

func NewActivityService(store ActivityStore, rules domain.SessionRules) *ActivityService {
	return &ActivityService{
		store:    store,
		rules:    rules,
		validate: validator.New(),
		now:      time.Now,
		newID:    newRecordID,
	}
}

// Record stamps and stores an activity result. Tile activities that carry their
// target words are graded here. A storage failure still returns the stamped record.
func (s *ActivityService) Record(ctx context.Context, rec domain.ActivityRecord) (domain.ActivityRecord, error) {
	rec.StudentName = strings.TrimSpace(rec.StudentName)
	if err := s.validate.Struct(rec); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return domain.ActivityRecord{}, err
		}
		fields := make([]domain.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, domain.FieldError{Field: lowerFirst(fe.Field()), Error: fe.Tag()})
		}
		return domain.ActivityRecord{}, domain.NewValidationError(fields...)
	}
	if !s.rules.HasGrade(rec.Grade) {
		return domain.ActivityRecord{}, domain.NewValidationError(domain.FieldError{Field: "grade", Error: "unknown grade " + rec.Grade})
	}
	if len(rec.Targets) > 0 {
		rec.Score = GradeTiles(rec.Targets, rec.Answers)
		rec.Total = len(rec.Targets)
	}
	if rec.Total > 0 && rec.Score > rec.Total {
		return domain.ActivityRecord{}, domain.NewValidationError(domain.FieldError{Field: "score", Error: "exceeds total"})
	}

	rec.ID = s.newID()
	rec.Timestamp = s.now().UnixMilli()
	return rec, s.store.Append(ctx, rec)
}

// Records lists stored results matching filter, oldest first.
func (s *ActivityService) Records(ctx context.Context, filter ActivityFilter) ([]domain.ActivityRecord, error) {
	all, err := s.store.Records(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ActivityRecord, 0, len(all))
	for _, rec := range all {
		if filter.match(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
