package app

import (
	"math/rand"
)

// extraSpecialNeedsEntries is how many additional pool slots a flagged student gets.
const extraSpecialNeedsEntries = 3

// BuildPool returns a shuffled multiset of names where each student appears
// 1 + 3×isSpecialNeeds(name) times. An empty roster yields an empty pool.
func BuildPool(names []string, isSpecialNeeds func(name string) bool, rnd *rand.Rand) []string {
	pool := make([]string, 0, len(names))
	for _, name := range names {
		pool = append(pool, name)
		if isSpecialNeeds(name) {
			for i := 0; i < extraSpecialNeedsEntries; i++ {
				pool = append(pool, name)
			}
		}
	}
	shuffle(pool, rnd)
	return pool
}

// shuffle is a backward Fisher–Yates: each permutation of the multiset is equally likely.
func shuffle(names []string, rnd *rand.Rand) {
	for i := len(names) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		names[i], names[j] = names[j], names[i]
	}
}
