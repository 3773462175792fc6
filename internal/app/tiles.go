package app

import (
	"errors"
	"math/rand"
	"strings"
)

var (
	// ErrTileIndex is returned when a tile position is out of range.
	ErrTileIndex = errors.New("tile index out of range")
	// ErrNoSuchTile is returned when no remaining tile carries the letter.
	ErrNoSuchTile = errors.New("no remaining tile with that letter")
)

// TileBoard is the state of a scramble/spelling activity: letters still on the
// table and letters the student has picked, in order. Every move returns a new
// board; the receiver is never modified.
type TileBoard struct {
	Target    string   `json:"-"`
	Remaining []string `json:"remaining"`
	Chosen    []string `json:"chosen"`
}

// NewTileBoard scrambles the letters of word.
func NewTileBoard(word string, rnd *rand.Rand) TileBoard {
	tiles := strings.Split(word, "")
	shuffle(tiles, rnd)
	return TileBoard{Target: word, Remaining: tiles, Chosen: []string{}}
}

// Choose moves Remaining[i] to the end of Chosen.
func (b TileBoard) Choose(i int) (TileBoard, error) {
	if i < 0 || i >= len(b.Remaining) {
		return b, ErrTileIndex
	}
	return TileBoard{
		Target:    b.Target,
		Remaining: without(b.Remaining, i),
		Chosen:    appendCopy(b.Chosen, b.Remaining[i]),
	}, nil
}

// Return moves Chosen[i] back to the end of Remaining.
func (b TileBoard) Return(i int) (TileBoard, error) {
	if i < 0 || i >= len(b.Chosen) {
		return b, ErrTileIndex
	}
	return TileBoard{
		Target:    b.Target,
		Remaining: appendCopy(b.Remaining, b.Chosen[i]),
		Chosen:    without(b.Chosen, i),
	}, nil
}

// Place chooses the first remaining tile showing letter, ignoring case.
func (b TileBoard) Place(letter string) (TileBoard, error) {
	for i, t := range b.Remaining {
		if strings.EqualFold(t, letter) {
			return b.Choose(i)
		}
	}
	return b, ErrNoSuchTile
}

// GradeTiles replays answers[i] tile by tile onto a board for targets[i] and
// counts the words spelled correctly. Missing answers count as wrong.
func GradeTiles(targets, answers []string) int {
	correct := 0
	for i, target := range targets {
		if i >= len(answers) {
			break
		}
		board := TileBoard{Target: target, Remaining: strings.Split(target, ""), Chosen: []string{}}
		placed := true
		for _, letter := range strings.Split(answers[i], "") {
			next, err := board.Place(letter)
			if err != nil {
				placed = false
				break
			}
			board = next
		}
		if placed && board.Correct() {
			correct++
		}
	}
	return correct
}

// Answer is the word spelled so far.
func (b TileBoard) Answer() string {
	return strings.Join(b.Chosen, "")
}

// Complete reports whether every tile has been placed.
func (b TileBoard) Complete() bool {
	return len(b.Remaining) == 0
}

// Correct reports whether the placed tiles spell the target, ignoring case.
func (b TileBoard) Correct() bool {
	return b.Complete() && strings.EqualFold(b.Answer(), b.Target)
}

func without(s []string, i int) []string {
	out := make([]string, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}

func appendCopy(s []string, v string) []string {
	out := make([]string, 0, len(s)+1)
	out = append(out, s...)
	return append(out, v)
}
