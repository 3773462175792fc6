package persist

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Local storage keys.
const (
	KeyCurriculum    = "curriculum"
	KeyParticipation = "participation_records"
	KeyActivities    = "activity_records"
	KeyRemoteConfig  = "remote_config"
)

// KV is the local key/value string store. Implementations return an error
// wrapping domain.ErrStorageFull when the store is out of space.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// ReadJSON decodes the value at key into a T. Missing or malformed content
// yields fallback; malformed content is logged, never returned.
func ReadJSON[T any](ctx context.Context, kv KV, key string, fallback T) (T, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return fallback, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || raw == "" {
		return fallback, nil
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		log.WithError(err).WithField("key", key).Warn("discarding malformed local data")
		return fallback, nil
	}
	return v, nil
}

// WriteJSON encodes v and stores it at key.
func WriteJSON(ctx context.Context, kv KV, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
