package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/fleethours/internal/metrics"
	"github.com/goodtune/fleethours/internal/storage"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

// Resolver looks up display names of one kind through an expiring cache.
// It implements activity.NameResolver.
type Resolver struct {
	store  storage.NameStore
	kind   storage.NameKind
	cache  *expirable.LRU[string, cachedName]
	logger zerolog.Logger
}

// cachedName also remembers ids without a name so they are not looked up
// on every report.
type cachedName struct {
	name  string
	found bool
}

// Config holds resolver cache configuration
type Config struct {
	CacheSize int
	CacheTTL  time.Duration
}

// NewResolver creates a new name resolver
func NewResolver(store storage.NameStore, kind storage.NameKind, config Config, logger zerolog.Logger) *Resolver {
	size := config.CacheSize
	if size <= 0 {
		size = 1000
	}

	return &Resolver{
		store:  store,
		kind:   kind,
		cache:  expirable.NewLRU[string, cachedName](size, nil, config.CacheTTL),
		logger: logger.With().Str("component", "identity").Str("kind", string(kind)).Logger(),
	}
}

// ResolveNames returns names for the ids that have one
func (r *Resolver) ResolveNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	var missing []string

	for _, id := range ids {
		if entry, ok := r.cache.Get(id); ok {
			metrics.NameCacheHits.Inc()
			if entry.found {
				names[id] = entry.name
			}
			continue
		}
		metrics.NameCacheMisses.Inc()
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return names, nil
	}

	fetched, err := r.store.GetNames(ctx, r.kind, missing)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s names: %w", r.kind, err)
	}

	for _, id := range missing {
		name, ok := fetched[id]
		r.cache.Add(id, cachedName{name: name, found: ok})
		if ok {
			names[id] = name
		}
	}

	r.logger.Debug().
		Int("requested", len(ids)).
		Int("loaded", len(missing)).
		Msg("Resolved names")

	return names, nil
}

// Invalidate drops a cached id, typically after its name was changed
func (r *Resolver) Invalidate(id string) {
	r.cache.Remove(id)
}

// Purge empties the cache
func (r *Resolver) Purge() {
	r.cache.Purge()
}
