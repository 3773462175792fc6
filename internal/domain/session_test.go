package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNewSessionInfo(t *testing.T) {
	info, err := NewSessionInfo("2026-10-18", 7, "Grade 3 G", DefaultSessionRules())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	want := SessionInfo{Date: "2026-10-18", Day: "Sunday", Period: 7, Grade: "Grade 3 G"}
	if info != want {
		t.Fatalf("got %+v, want %+v", info, want)
	}
	if key := info.Scope().Key(); key != "2026-10-18|Grade 3 G|7" {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestNewSessionInfoRejects(t *testing.T) {
	cases := map[string]struct {
		date   string
		period int
		grade  string
		field  string
	}{
		"friday":       {"2026-10-23", 1, "Grade 3 O", "date"},
		"saturday":     {"2026-10-24", 1, "Grade 3 O", "date"},
		"not a date":   {"19/10/2026", 1, "Grade 3 O", "date"},
		"period zero":  {"2026-10-19", 0, "Grade 3 O", "period"},
		"period eight": {"2026-10-19", 8, "Grade 3 O", "period"},
		"grade":        {"2026-10-19", 1, "Grade 4", "grade"},
	}
	for name, tc := range cases {
		_, err := NewSessionInfo(tc.date, tc.period, tc.grade, DefaultSessionRules())
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: expected ValidationError, got %v", name, err)
		}
		if len(ve.Fields) != 1 || ve.Fields[0].Field != tc.field {
			t.Fatalf("%s: unexpected fields %+v", name, ve.Fields)
		}
	}
}

func TestCustomExcludedWeekdays(t *testing.T) {
	rules := SessionRules{Grades: []string{"Grade 3 O"}, ExcludedWeekdays: []time.Weekday{time.Saturday, time.Sunday}}
	if _, err := NewSessionInfo("2026-10-23", 1, "Grade 3 O", rules); err != nil {
		t.Fatalf("friday should be allowed: %v", err)
	}
	if _, err := NewSessionInfo("2026-10-25", 1, "Grade 3 O", rules); !IsValidation(err) {
		t.Fatalf("sunday should be rejected, got %v", err)
	}
}

func TestPeriodDecoding(t *testing.T) {
	var rec ParticipationRecord
	for raw, want := range map[string]Period{`2`: 2, `"3"`: 3, `" 4 "`: 4, `null`: 0, `""`: 0, `"second"`: 0} {
		if err := json.Unmarshal([]byte(`{"period":`+raw+`}`), &rec); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		if rec.Period != want {
			t.Fatalf("decode %s = %d, want %d", raw, rec.Period, want)
		}
	}

	// an unreadable period never matches a session
	rec.Period = 0
	if (SessionScope{Date: rec.Date, Grade: rec.Grade, Period: 1}).Contains(rec) {
		t.Fatalf("period 0 must not match period 1")
	}
}

func TestScopeContains(t *testing.T) {
	scope := SessionScope{Date: "2024-01-01", Grade: "Grade 3 O", Period: 3}
	if scope.Contains(ParticipationRecord{Date: "2024-01-01", Grade: "Grade 3 O", Period: 2}) {
		t.Fatalf("period 2 record must not match period 3")
	}
	if !scope.Contains(ParticipationRecord{Date: "2024-01-01", Grade: "Grade 3 O", Period: 3}) {
		t.Fatalf("expected match")
	}
}

func TestParseWeekday(t *testing.T) {
	if d, err := ParseWeekday(" friday "); err != nil || d != time.Friday {
		t.Fatalf("parse friday = %v, %v", d, err)
	}
	if _, err := ParseWeekday("funday"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPointsDefaultsToOne(t *testing.T) {
	if p := (ParticipationRecord{}).Points(); p != 1 {
		t.Fatalf("scoreless record points = %d, want 1", p)
	}
	v := 0
	if p := (ParticipationRecord{Score: &v}).Points(); p != 0 {
		t.Fatalf("zero score points = %d", p)
	}
}
