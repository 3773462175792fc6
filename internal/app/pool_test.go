package app_test

import (
	"math/rand"
	"strings"
	"testing"

	"classroom-service/internal/app"
	"classroom-service/internal/domain"
)

func TestBuildPoolWeighting(t *testing.T) {
	roster := domain.Roster{Students: []domain.StudentProfile{
		{Name: "Amy"},
		{Name: "Bo", IsSpecialNeeds: true},
		{Name: "Cy"},
		{Name: "Di", IsSpecialNeeds: true},
		{Name: "Ed"},
	}}
	rnd := rand.New(rand.NewSource(1))

	for i := 0; i < 50; i++ {
		pool := app.BuildPool(roster.Names(), roster.IsSpecialNeeds, rnd)
		if len(pool) != 5+3*2 {
			t.Fatalf("expected %d entries, got %d", 5+3*2, len(pool))
		}
		counts := map[string]int{}
		for _, name := range pool {
			counts[name]++
		}
		for _, s := range roster.Students {
			want := 1
			if s.IsSpecialNeeds {
				want = 4
			}
			if counts[s.Name] != want {
				t.Fatalf("%s appears %d times, want %d", s.Name, counts[s.Name], want)
			}
		}
	}
}

func TestBuildPoolEmptyRoster(t *testing.T) {
	if pool := app.BuildPool(nil, domain.Roster{}.IsSpecialNeeds, rand.New(rand.NewSource(1))); len(pool) != 0 {
		t.Fatalf("expected empty pool, got %v", pool)
	}
}

// chi-square critical values at p = 0.001
const (
	chi2df4 = 18.467
	chi2df5 = 20.515
)

func TestBuildPoolPositionIsUniform(t *testing.T) {
	// Amy has one of five slots; she should land in each position equally often.
	const runs = 10000
	rnd := rand.New(rand.NewSource(42))
	var positions [5]int
	for i := 0; i < runs; i++ {
		roster := amyAndBo()
		pool := app.BuildPool(roster.Names(), roster.IsSpecialNeeds, rnd)
		for pos, name := range pool {
			if name == "Amy" {
				positions[pos]++
			}
		}
	}
	if chi := chiSquare(positions[:], runs); chi > chi2df4 {
		t.Fatalf("position distribution not uniform: chi2=%.2f counts=%v", chi, positions)
	}
}

func TestBuildPoolPermutationsAreUniform(t *testing.T) {
	const runs = 12000
	roster := domain.Roster{Students: []domain.StudentProfile{{Name: "A"}, {Name: "B"}, {Name: "C"}}}
	rnd := rand.New(rand.NewSource(7))
	seen := map[string]int{}
	for i := 0; i < runs; i++ {
		seen[strings.Join(app.BuildPool(roster.Names(), roster.IsSpecialNeeds, rnd), "")]++
	}
	if len(seen) != 6 {
		t.Fatalf("expected all 6 orderings, got %v", seen)
	}
	counts := make([]int, 0, len(seen))
	for _, c := range seen {
		counts = append(counts, c)
	}
	if chi := chiSquare(counts, runs); chi > chi2df5 {
		t.Fatalf("orderings not uniform: chi2=%.2f counts=%v", chi, seen)
	}
}

func chiSquare(counts []int, total int) float64 {
	expected := float64(total) / float64(len(counts))
	var chi float64
	for _, c := range counts {
		d := float64(c) - expected
		chi += d * d / expected
	}
	return chi
}
