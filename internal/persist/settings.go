package persist

import (
	"context"

	"classroom-service/internal/remote"
)

// SaveRemoteConfig validates blob strictly and stores it for the next start.
func SaveRemoteConfig(ctx context.Context, kv KV, blob []byte) (remote.Config, error) {
	cfg, err := remote.ParseConfig(blob)
	if err != nil {
		return remote.Config{}, err
	}
	return cfg, kv.Set(ctx, KeyRemoteConfig, string(blob))
}

// LoadRemoteConfig returns the saved configuration, if any. A saved blob that no
// longer parses is reported as an error rather than patched up.
func LoadRemoteConfig(ctx context.Context, kv KV) (remote.Config, bool, error) {
	raw, ok, err := kv.Get(ctx, KeyRemoteConfig)
	if err != nil || !ok || raw == "" {
		return remote.Config{}, false, err
	}
	cfg, err := remote.ParseConfig([]byte(raw))
	if err != nil {
		return remote.Config{}, false, err
	}
	return cfg, true, nil
}
