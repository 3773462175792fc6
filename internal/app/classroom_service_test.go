package app_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"classroom-service/internal/app"
	"classroom-service/internal/domain"
	"classroom-service/internal/infra/memory"
	"classroom-service/internal/persist"
)

type testEnv struct {
	service *app.ClassroomService
	ledger  *persist.Ledger
	clock   *fakeClock
}

func newTestEnv(kv persist.KV) *testEnv {
	clock := newFakeClock()
	ledger := persist.NewLedger(kv, nil)
	rosters := memory.NewRosterRepository(memory.NewStaticRosterLoader(map[string]domain.Roster{
		"Grade 3 O": amyAndBo(),
	}), time.Minute)
	service := app.NewClassroomService(memory.NewSessionStore(), rosters, ledger,
		domain.DefaultSessionRules(), app.DefaultPickerConfig(),
		app.WithClock(clock.Now),
		app.WithRand(rand.New(rand.NewSource(11))),
		app.WithIDGenerator(sequentialIDs()),
	)
	return &testEnv{service: service, ledger: ledger, clock: clock}
}

// answer draws, times and judges one student.
func (e *testEnv) answer(t *testing.T, scope domain.SessionScope, elapsed time.Duration, correct bool) (app.Resolution, app.Board) {
	t.Helper()
	ctx := context.Background()
	if _, err := e.service.Draw(ctx, scope); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if _, err := e.service.StartTimer(ctx, scope); err != nil {
		t.Fatalf("start timer: %v", err)
	}
	e.clock.Advance(elapsed)
	res, board, err := e.service.Resolve(ctx, scope, correct)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// let the result display run out
	e.clock.Advance(2 * time.Second)
	return res, board
}

func TestClassroomEndToEnd(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(memory.NewKV())

	board, err := env.service.StartSession(ctx, "2026-10-19", 1, "Grade 3 O")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if board.Picker.Remaining != 5 {
		t.Fatalf("expected pool of 5, got %d", board.Picker.Remaining)
	}
	scope := board.Session.Scope()

	drawn := map[string]int{}
	for i := 0; i < 5; i++ {
		res, _ := env.answer(t, scope, 2000*time.Millisecond, true)
		if res.Awarded != 1100 {
			t.Fatalf("draw %d awarded %d, want 1100", i, res.Awarded)
		}
		drawn[res.StudentName]++
	}
	if drawn["Amy"] != 1 || drawn["Bo"] != 4 {
		t.Fatalf("unexpected draws %v", drawn)
	}

	lb, err := env.service.Leaderboard(ctx, scope)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	want := []domain.LeaderboardEntry{{StudentName: "Bo", Score: 4400}, {StudentName: "Amy", Score: 1100}}
	if len(lb.Entries) != 2 || lb.Entries[0] != want[0] || lb.Entries[1] != want[1] {
		t.Fatalf("leaderboard = %+v, want %+v", lb.Entries, want)
	}

	records, _ := env.service.Records(ctx, &scope)
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
}

func TestClassroomResetOnlyTouchesItsSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(memory.NewKV())

	other := mondayPeriod(2).Scope()
	if err := env.ledger.Append(ctx, domain.ParticipationRecord{
		ID: "other", StudentName: "Amy", Date: other.Date, Grade: other.Grade, Period: 2, Score: score(500), IsCorrect: true,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	board, _ := env.service.StartSession(ctx, "2026-10-19", 1, "Grade 3 O")
	scope := board.Session.Scope()
	env.answer(t, scope, time.Second, true)
	env.answer(t, scope, time.Second, false)

	board, removed, err := env.service.ResetSession(ctx, scope)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 records removed, got %d", removed)
	}
	if len(board.Leaderboard.Entries) != 0 || board.Picker.Remaining != 5 || board.Picker.State != app.StateIdle {
		t.Fatalf("unexpected board after reset %+v", board)
	}

	lb, _ := env.service.Leaderboard(ctx, scope)
	if len(lb.Entries) != 0 {
		t.Fatalf("expected empty leaderboard, got %+v", lb.Entries)
	}
	otherLB, _ := env.service.Leaderboard(ctx, other)
	if len(otherLB.Entries) != 1 || otherLB.Entries[0].Score != 500 {
		t.Fatalf("other session changed: %+v", otherLB.Entries)
	}
}

func TestClassroomResetWithoutLiveSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(memory.NewKV())
	scope := mondayPeriod(4).Scope()
	_ = env.ledger.Append(ctx, domain.ParticipationRecord{ID: "x", StudentName: "Amy", Date: scope.Date, Grade: scope.Grade, Period: 4, IsCorrect: true})

	board, removed, err := env.service.ResetSession(ctx, scope)
	if err != nil || removed != 1 {
		t.Fatalf("reset = %d, %v", removed, err)
	}
	if board.Leaderboard.Session != scope || len(board.Leaderboard.Entries) != 0 {
		t.Fatalf("unexpected board %+v", board)
	}
}

func TestClassroomStartSessionValidation(t *testing.T) {
	env := newTestEnv(memory.NewKV())
	_, err := env.service.StartSession(context.Background(), "2026-10-23", 1, "Grade 3 O")
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error for a Friday, got %v", err)
	}
	if _, err := env.service.Draw(context.Background(), mondayPeriod(1).Scope()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestClassroomStorageFullKeepsResult(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(memory.NewKVWithQuota(1))
	board, _ := env.service.StartSession(ctx, "2026-10-19", 1, "Grade 3 O")
	scope := board.Session.Scope()

	_, _ = env.service.Draw(ctx, scope)
	_, _ = env.service.StartTimer(ctx, scope)
	res, board, err := env.service.Resolve(ctx, scope, true)
	if !errors.Is(err, domain.ErrStorageFull) {
		t.Fatalf("expected ErrStorageFull, got %v", err)
	}
	if res.Awarded != 1100 || len(board.Leaderboard.Entries) != 1 {
		t.Fatalf("result must stand in memory: %+v %+v", res, board.Leaderboard)
	}
}

func TestClassroomSubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(memory.NewKV())
	board, _ := env.service.StartSession(ctx, "2026-10-19", 1, "Grade 3 O")
	scope := board.Session.Scope()

	ch, cancel, err := env.service.Subscribe(ctx, scope)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	<-ch // initial snapshot

	if _, err := env.service.Draw(ctx, scope); err != nil {
		t.Fatalf("draw: %v", err)
	}
	update := <-ch
	if update.Picker.State != app.StateDrawn {
		t.Fatalf("expected drawn update, got %+v", update.Picker)
	}

	if err := env.service.EndSession(ctx, scope); err != nil {
		t.Fatalf("end session: %v", err)
	}
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected channel closed after end")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscriber not released")
	}
}

func TestClassroomSubscribeDuringBusySession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(memory.NewKV())
	board, _ := env.service.StartSession(ctx, "2026-10-19", 1, "Grade 3 O")
	scope := board.Session.Scope()

	// a console that never reads
	if _, _, err := env.service.Subscribe(ctx, scope); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			ch, cancel, err := env.service.Subscribe(ctx, scope)
			if err != nil {
				return
			}
			<-ch
			cancel()
		}
	}()
	for i := 0; i < 200; i++ {
		if _, err := env.service.Draw(ctx, scope); err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
		if _, err := env.service.MarkAbsent(ctx, scope); err != nil {
			t.Fatalf("absent %d: %v", i, err)
		}
	}
	if err := env.service.EndSession(ctx, scope); err != nil {
		t.Fatalf("end session: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("subscribers blocked by a busy session")
	}
}

func TestClassroomDeleteRecord(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(memory.NewKV())
	board, _ := env.service.StartSession(ctx, "2026-10-19", 1, "Grade 3 O")
	scope := board.Session.Scope()
	_, board = env.answer(t, scope, time.Second, true)
	if len(board.Leaderboard.Entries) != 1 {
		t.Fatalf("expected one entry, got %+v", board.Leaderboard.Entries)
	}

	if err := env.service.DeleteRecord(ctx, "rec-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	live, _ := env.service.Board(ctx, scope)
	if len(live.Leaderboard.Entries) != 0 {
		t.Fatalf("live board not refreshed: %+v", live.Leaderboard.Entries)
	}
	if err := env.service.DeleteRecord(ctx, "rec-1"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}
