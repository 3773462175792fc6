package remote

import (
	"errors"
	"testing"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{"url":"postgresql://app:secret@db:5432/classroom","batchSize":250}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.URL != "postgresql://app:secret@db:5432/classroom" || cfg.EffectiveBatchSize() != 250 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	cfg, _ = ParseConfig([]byte(`{"url":"postgres://db/classroom"}`))
	if cfg.EffectiveBatchSize() != MaxBatchSize {
		t.Fatalf("default batch size = %d", cfg.EffectiveBatchSize())
	}
}

func TestParseConfigRejects(t *testing.T) {
	cases := map[string]struct {
		blob  string
		field string
	}{
		"empty":         {``, ""},
		"not json":      {`url=postgres://db`, ""},
		"unknown field": {`{"url":"postgres://db/x","apiKey":"k"}`, ""},
		"trailing data": {`{"url":"postgres://db/x"} {}`, ""},
		"missing url":   {`{"batchSize":10}`, "url"},
		"wrong type":    {`{"url":"postgres://db/x","batchSize":"10"}`, "batchSize"},
		"batch too big": {`{"url":"postgres://db/x","batchSize":401}`, "batchSize"},
		"wrong scheme":  {`{"url":"https://db.example.com"}`, "url"},
	}
	for name, tc := range cases {
		_, err := ParseConfig([]byte(tc.blob))
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("%s: expected ParseError, got %v", name, err)
		}
		if pe.Field != tc.field {
			t.Fatalf("%s: field = %q, want %q (%v)", name, pe.Field, tc.field, pe)
		}
	}
}

func TestChunk(t *testing.T) {
	items := make([]int, 950)
	chunks := Chunk(items, MaxBatchSize)
	if len(chunks) != 3 || len(chunks[0]) != 400 || len(chunks[1]) != 400 || len(chunks[2]) != 150 {
		t.Fatalf("unexpected chunk sizes %d", len(chunks))
	}
	if got := Chunk([]int{}, 400); len(got) != 0 {
		t.Fatalf("expected no chunks for empty input")
	}
	if got := Chunk(make([]int, 800), 400); len(got) != 2 {
		t.Fatalf("expected exact split, got %d chunks", len(got))
	}
}
