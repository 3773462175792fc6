package persist

import (
	"context"
	"encoding/json"
	"sync"

	"classroom-service/internal/remote"
	log "github.com/sirupsen/logrus"
)

// Mirror copies local writes to the remote store without blocking the caller.
type Mirror interface {
	MirrorDocument(key string, data []byte)
	MirrorUpsert(collection string, docs []remote.Document)
	MirrorDelete(collection string, ids []string)
	FetchDocument(ctx context.Context, key string) ([]byte, bool, error)
	IsConnected() bool
}

// journal is an append-only list persisted as one JSON array under a local key
// and mirrored item by item to a remote collection. The in-memory copy is
// authoritative: a failed local write keeps the change in memory.
type journal[T any] struct {
	mu         sync.Mutex
	kv         KV
	key        string
	collection string
	mirror     Mirror
	idOf       func(T) string

	items  []T
	loaded bool
	// entries that failed to decode; written back untouched
	unreadable []json.RawMessage
}

func newJournal[T any](kv KV, key, collection string, mirror Mirror, idOf func(T) string) *journal[T] {
	return &journal[T]{kv: kv, key: key, collection: collection, mirror: mirror, idOf: idOf}
}

func (j *journal[T]) loadLocked(ctx context.Context) error {
	if j.loaded {
		return nil
	}
	raws, err := ReadJSON[[]json.RawMessage](ctx, j.kv, j.key, nil)
	if err != nil {
		return err
	}
	items := make([]T, 0, len(raws))
	for i, raw := range raws {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			log.WithError(err).WithField("key", j.key).WithField("index", i).Warn("skipping malformed local entry")
			j.unreadable = append(j.unreadable, raw)
			continue
		}
		items = append(items, item)
	}
	j.items = items
	j.loaded = true
	return nil
}

func (j *journal[T]) writeLocked(ctx context.Context) error {
	if len(j.unreadable) == 0 {
		return WriteJSON(ctx, j.kv, j.key, j.items)
	}
	out := make([]any, 0, len(j.items)+len(j.unreadable))
	for _, item := range j.items {
		out = append(out, item)
	}
	for _, raw := range j.unreadable {
		out = append(out, raw)
	}
	return WriteJSON(ctx, j.kv, j.key, out)
}

func (j *journal[T]) append(ctx context.Context, item T) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.loadLocked(ctx); err != nil {
		return err
	}
	j.items = append(j.items, item)
	err := j.writeLocked(ctx)
	j.mirrorUpsert(item)
	return err
}

func (j *journal[T]) all(ctx context.Context) ([]T, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.loadLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]T, len(j.items))
	copy(out, j.items)
	return out, nil
}

// removeWhere drops every matching item and returns their ids.
func (j *journal[T]) removeWhere(ctx context.Context, match func(T) bool) ([]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.loadLocked(ctx); err != nil {
		return nil, err
	}
	kept := make([]T, 0, len(j.items))
	var removed []string
	for _, item := range j.items {
		if match(item) {
			removed = append(removed, j.idOf(item))
			continue
		}
		kept = append(kept, item)
	}
	if len(removed) == 0 {
		return nil, nil
	}
	j.items = kept
	err := j.writeLocked(ctx)
	if j.mirror != nil {
		j.mirror.MirrorDelete(j.collection, removed)
	}
	return removed, err
}

func (j *journal[T]) mirrorUpsert(item T) {
	if j.mirror == nil {
		return
	}
	data, err := json.Marshal(item)
	if err != nil {
		log.WithError(err).Warn("encode mirror document")
		return
	}
	j.mirror.MirrorUpsert(j.collection, []remote.Document{{ID: j.idOf(item), Data: data}})
}
