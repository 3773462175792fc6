package app

import "time"

// DecayScorer turns response time into points: flat during the grace period,
// then linear down to zero at the end of the window.
type DecayScorer struct {
	MaxScore     int
	Grace        time.Duration
	Window       time.Duration
	BonusPercent int
}

// DefaultScorer is 1000 points, 3s grace, zero at 180s, 10% bonus for a correct answer.
func DefaultScorer() DecayScorer {
	return DecayScorer{
		MaxScore:     1000,
		Grace:        3 * time.Second,
		Window:       180 * time.Second,
		BonusPercent: 10,
	}
}

// Score is the live value at elapsed. It never goes negative.
func (s DecayScorer) Score(elapsed time.Duration) int {
	t := elapsed.Milliseconds()
	grace := s.Grace.Milliseconds()
	window := s.Window.Milliseconds()

	if t <= grace {
		return s.MaxScore
	}
	if t >= window || window <= grace {
		return 0
	}
	// floor(max × (1 − (t − grace)/(window − grace))) in integer arithmetic.
	score := int64(s.MaxScore) * (window - t) / (window - grace)
	if score < 0 {
		return 0
	}
	return int(score)
}

// Award freezes the live score at judgment. Incorrect answers always get zero.
func (s DecayScorer) Award(live int, correct bool) (bonus, total int) {
	if !correct || live <= 0 {
		return 0, 0
	}
	bonus = live * s.BonusPercent / 100
	return bonus, live + bonus
}
