package persist

import (
	"context"

	"classroom-service/internal/domain"
	"classroom-service/internal/remote"
)

// Ledger is the participation record store: local and synchronous, mirrored
// best-effort to the remote participation collection.
type Ledger struct {
	j *journal[domain.ParticipationRecord]
}

func NewLedger(kv KV, mirror Mirror) *Ledger {
	return &Ledger{j: newJournal(kv, KeyParticipation, remote.CollectionParticipation, mirror,
		func(r domain.ParticipationRecord) string { return r.ID })}
}

// Append adds rec. A local write failure is returned but rec stays in memory.
func (l *Ledger) Append(ctx context.Context, rec domain.ParticipationRecord) error {
	return l.j.append(ctx, rec)
}

// Records returns every record in append order.
func (l *Ledger) Records(ctx context.Context) ([]domain.ParticipationRecord, error) {
	return l.j.all(ctx)
}

// DeleteSession removes all records filed under scope and reports how many went.
func (l *Ledger) DeleteSession(ctx context.Context, scope domain.SessionScope) (int, error) {
	removed, err := l.j.removeWhere(ctx, scope.Contains)
	return len(removed), err
}

// Delete removes one record by id.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	removed, err := l.j.removeWhere(ctx, func(r domain.ParticipationRecord) bool { return r.ID == id })
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// ActivityLog stores activity results, mirrored to the remote activities collection.
type ActivityLog struct {
	j *journal[domain.ActivityRecord]
}

func NewActivityLog(kv KV, mirror Mirror) *ActivityLog {
	return &ActivityLog{j: newJournal(kv, KeyActivities, remote.CollectionActivities, mirror,
		func(r domain.ActivityRecord) string { return r.ID })}
}

func (a *ActivityLog) Append(ctx context.Context, rec domain.ActivityRecord) error {
	return a.j.append(ctx, rec)
}

func (a *ActivityLog) Records(ctx context.Context) ([]domain.ActivityRecord, error) {
	return a.j.all(ctx)
}
