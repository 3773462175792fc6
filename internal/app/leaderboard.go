package app

import (
	"sort"

	"classroom-service/internal/domain"
)

// BuildLeaderboard sums correct scores per student for one session, highest first.
// Equal totals keep ledger order: the student whose first counted record came
// earlier ranks first.
func BuildLeaderboard(records []domain.ParticipationRecord, scope domain.SessionScope) domain.Leaderboard {
	totals := make(map[string]int)
	order := make([]string, 0)
	for _, rec := range records {
		if !rec.IsCorrect || !scope.Contains(rec) {
			continue
		}
		if _, seen := totals[rec.StudentName]; !seen {
			order = append(order, rec.StudentName)
		}
		totals[rec.StudentName] += rec.Points()
	}

	entries := make([]domain.LeaderboardEntry, 0, len(order))
	for _, name := range order {
		entries = append(entries, domain.LeaderboardEntry{StudentName: name, Score: totals[name]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})

	return domain.Leaderboard{Session: scope, Entries: entries}
}
