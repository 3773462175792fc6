package app_test

import (
	"errors"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"classroom-service/internal/app"
)

func TestTileBoardMovesAreImmutable(t *testing.T) {
	board := app.NewTileBoard("cat", rand.New(rand.NewSource(5)))
	letters := append([]string(nil), board.Remaining...)
	sort.Strings(letters)
	if strings.Join(letters, "") != "act" {
		t.Fatalf("scramble lost letters: %v", board.Remaining)
	}

	next, err := board.Choose(0)
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if len(board.Remaining) != 3 || len(board.Chosen) != 0 {
		t.Fatalf("original board modified: %+v", board)
	}
	if len(next.Remaining) != 2 || next.Chosen[0] != board.Remaining[0] {
		t.Fatalf("unexpected next board %+v", next)
	}

	back, err := next.Return(0)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if len(next.Chosen) != 1 || len(back.Chosen) != 0 || back.Remaining[2] != next.Chosen[0] {
		t.Fatalf("unexpected return %+v from %+v", back, next)
	}

	if _, err := back.Choose(3); !errors.Is(err, app.ErrTileIndex) {
		t.Fatalf("expected ErrTileIndex, got %v", err)
	}
	if _, err := back.Return(0); !errors.Is(err, app.ErrTileIndex) {
		t.Fatalf("expected ErrTileIndex, got %v", err)
	}
}

func TestTileBoardSpellsTarget(t *testing.T) {
	board := app.TileBoard{Target: "Dog", Remaining: []string{"g", "o", "D"}, Chosen: []string{}}
	for _, letter := range []string{"D", "o", "g"} {
		idx := -1
		for i, r := range board.Remaining {
			if r == letter {
				idx = i
			}
		}
		var err error
		if board, err = board.Choose(idx); err != nil {
			t.Fatalf("choose %s: %v", letter, err)
		}
	}
	if !board.Complete() || !board.Correct() || board.Answer() != "Dog" {
		t.Fatalf("expected Dog spelled, got %+v", board)
	}

	wrong := app.TileBoard{Target: "dog", Remaining: []string{}, Chosen: []string{"g", "o", "d"}}
	if wrong.Correct() {
		t.Fatalf("god is not dog")
	}
}

func TestGradeTiles(t *testing.T) {
	targets := []string{"cat", "Dog", "bee", "owl"}
	answers := []string{"cat", "dog", "bea", "olw"}
	if got := app.GradeTiles(targets, answers); got != 2 {
		t.Fatalf("expected 2 correct, got %d", got)
	}
	if got := app.GradeTiles(targets, answers[:1]); got != 1 {
		t.Fatalf("missing answers must count as wrong, got %d", got)
	}

	board := app.TileBoard{Target: "bee", Remaining: []string{"b", "e", "e"}, Chosen: []string{}}
	if _, err := board.Place("z"); !errors.Is(err, app.ErrNoSuchTile) {
		t.Fatalf("expected ErrNoSuchTile, got %v", err)
	}
}
