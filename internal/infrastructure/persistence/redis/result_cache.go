package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESULT CACHE
// ══════════════════════════════════════════════════════════════════════════════

// AllGroups is the scope of results that depend on every group of a kind,
// such as entity histories.
const AllGroups = "*"

// DefaultResultTTL bounds how long a result survives without invalidation.
const DefaultResultTTL = 10 * time.Minute

// ResultCache stores serialized engine results under generation-stamped keys.
//
// Every (kind, group) scope has a generation counter. Results are written
// under the current generation; invalidation increments it so stale entries
// are never read again and simply expire.
type ResultCache struct {
	cache  *Cache
	prefix string
	ttl    time.Duration
}

// NewResultCache creates a result cache. Keys are namespaced with prefix.
func NewResultCache(cache *Cache, prefix string, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	return &ResultCache{cache: cache, prefix: prefix, ttl: ttl}
}

// GenerationKey returns the counter key of a scope.
func (rc *ResultCache) GenerationKey(kind, group string) string {
	return rc.prefix + "gen:" + kind + ":" + group
}

// EntryKey returns the storage key of a result at a given generation.
func (rc *ResultCache) EntryKey(kind, group string, generation int64, key string) string {
	sum := sha256.Sum256([]byte(key))
	return rc.prefix + "res:" + kind + ":" + group + ":" +
		strconv.FormatInt(generation, 10) + ":" + hex.EncodeToString(sum[:16])
}

// Get loads a cached result into dest. It reports false on a miss, along
// with the generation that was read. Pass that generation to SetAt.
func (rc *ResultCache) Get(ctx context.Context, kind, group, key string, dest any) (bool, int64, error) {
	gen, err := rc.Generation(ctx, kind, group)
	if err != nil {
		return false, 0, err
	}

	err = rc.cache.Get(ctx, rc.EntryKey(kind, group, gen, key), dest)
	if errors.Is(err, ErrCacheMiss) {
		return false, gen, nil
	}
	if err != nil {
		return false, gen, err
	}
	return true, gen, nil
}

// SetAt stores a result under the given generation of its scope. A result
// loaded before an invalidation lands under the old generation and is
// never read.
func (rc *ResultCache) SetAt(ctx context.Context, kind, group string, generation int64, key string, value any) error {
	return rc.cache.Set(ctx, rc.EntryKey(kind, group, generation, key), value, rc.ttl)
}

// Generation returns the current generation of a scope.
func (rc *ResultCache) Generation(ctx context.Context, kind, group string) (int64, error) {
	return rc.cache.Counter(ctx, rc.GenerationKey(kind, group))
}

// Invalidate bumps the generation of every touched group and of the
// kind-wide scope. groups maps kind to group ids. It returns the number
// of scopes invalidated.
func (rc *ResultCache) Invalidate(ctx context.Context, groups map[string][]string) (int, error) {
	keys := rc.InvalidationKeys(groups)
	if err := rc.cache.IncrAll(ctx, keys...); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// InvalidationKeys lists the generation keys touched by an append, in a
// stable order.
func (rc *ResultCache) InvalidationKeys(groups map[string][]string) []string {
	kinds := make([]string, 0, len(groups))
	for kind := range groups {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	keys := make([]string, 0)
	seen := make(map[string]struct{})
	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	for _, kind := range kinds {
		add(rc.GenerationKey(kind, AllGroups))
		gs := append([]string(nil), groups[kind]...)
		sort.Strings(gs)
		for _, g := range gs {
			add(rc.GenerationKey(kind, g))
		}
	}
	return keys
}
