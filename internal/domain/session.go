package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used for session dates.
const DateLayout = "2006-01-02"

// MaxPeriod is the last teaching period of a school day.
const MaxPeriod = 7

// Period is a teaching period number. Older records stored it as a string,
// so decoding accepts both "2" and 2. A string that is not a number decodes
// as 0, which no session matches.
type Period int

func (p *Period) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			n = 0
		}
		*p = Period(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = Period(n)
	return nil
}

// SessionScope is the (date, grade, period) triple that participation records are filed under.
type SessionScope struct {
	Date   string `json:"date"`
	Grade  string `json:"grade"`
	Period int    `json:"period"`
}

// Key is a stable identifier for the scope, used by session stores.
func (s SessionScope) Key() string {
	return s.Date + "|" + s.Grade + "|" + strconv.Itoa(s.Period)
}

// Contains reports whether rec was filed under this scope. Periods compare numerically.
func (s SessionScope) Contains(rec ParticipationRecord) bool {
	return rec.Date == s.Date && rec.Grade == s.Grade && int(rec.Period) == s.Period
}

// SessionInfo describes a classroom period. It is immutable once created.
type SessionInfo struct {
	Date   string `json:"date"`
	Day    string `json:"day"`
	Period int    `json:"period"`
	Grade  string `json:"grade"`
}

// Scope returns the record scope of the session.
func (s SessionInfo) Scope() SessionScope {
	return SessionScope{Date: s.Date, Grade: s.Grade, Period: s.Period}
}

// SessionRules are the school-calendar constraints a session must satisfy.
type SessionRules struct {
	Grades           []string
	ExcludedWeekdays []time.Weekday
}

// DefaultSessionRules has two fixed grades and a Sunday–Thursday school week.
func DefaultSessionRules() SessionRules {
	return SessionRules{
		Grades:           []string{"Grade 3 O", "Grade 3 G"},
		ExcludedWeekdays: []time.Weekday{time.Friday, time.Saturday},
	}
}

// HasGrade reports whether grade is one of the configured roster identifiers.
func (r SessionRules) HasGrade(grade string) bool {
	for _, g := range r.Grades {
		if g == grade {
			return true
		}
	}
	return false
}

func (r SessionRules) excluded(day time.Weekday) bool {
	for _, d := range r.ExcludedWeekdays {
		if d == day {
			return true
		}
	}
	return false
}

// NewSessionInfo validates a session request and derives the weekday name.
func NewSessionInfo(date string, period int, grade string, rules SessionRules) (SessionInfo, error) {
	var fields []FieldError

	day, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		fields = append(fields, FieldError{Field: "date", Error: "must be a calendar day (YYYY-MM-DD)"})
	} else if rules.excluded(day.Weekday()) {
		fields = append(fields, FieldError{Field: "date", Error: day.Weekday().String() + " is not a school day"})
	}
	if period < 1 || period > MaxPeriod {
		fields = append(fields, FieldError{Field: "period", Error: fmt.Sprintf("must be between 1 and %d", MaxPeriod)})
	}
	if !rules.HasGrade(grade) {
		fields = append(fields, FieldError{Field: "grade", Error: "unknown grade " + strconv.Quote(grade)})
	}
	if len(fields) > 0 {
		return SessionInfo{}, NewValidationError(fields...)
	}

	return SessionInfo{
		Date:   day.Format(DateLayout),
		Day:    day.Weekday().String(),
		Period: period,
		Grade:  grade,
	}, nil
}

// ParseWeekday maps an English weekday name to time.Weekday.
func ParseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(name)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}
