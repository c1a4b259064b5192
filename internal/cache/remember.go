package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// SetLogger routes store failures to l.
func SetLogger(l logrus.FieldLogger) {
	if l != nil {
		logger = l
	}
}

// Remember returns the cached value under key or calls load and caches its
// result. Store failures are logged and never fail the read.
func Remember[T any](ctx context.Context, store Store, key string, ttl time.Duration, tags []string, load func(context.Context) (T, error)) (T, error) {
	if store == nil || ttl <= TTLNone {
		return load(ctx)
	}

	raw, ok, err := store.Get(ctx, key)
	switch {
	case err != nil:
		logger.WithError(err).WithField("key", key).Warn("cache get failed")
	case ok:
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		logger.WithField("key", key).Warn("cache entry could not be decoded")
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	raw, err = json.Marshal(v)
	if err != nil {
		logger.WithError(err).WithField("key", key).Warn("cache encode failed")
		return v, nil
	}
	if err := store.Set(ctx, key, raw, ttl, tags...); err != nil {
		logger.WithError(err).WithField("key", key).Warn("cache set failed")
	}
	return v, nil
}

// Revalidate drops tags from store, logging failures.
func Revalidate(ctx context.Context, store Store, tags ...string) {
	if store == nil || len(tags) == 0 {
		return
	}
	if err := store.Revalidate(ctx, tags...); err != nil {
		logger.WithError(err).WithField("tags", tags).Warn("cache revalidate failed")
	}
}
