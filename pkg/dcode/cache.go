package dcode

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/boyski/audited-objects/pkg/moment"
	"github.com/boyski/audited-objects/pkg/pathstate"
)

// cacheKey is (path, size, mtime, dev+ino): size+mtime alone can alias
// two distinct files sharing a sub-second timestamp (spec.md §9 Open
// Question (c)), so DevIno closes that gap for as long as either file's
// inode is alive.
type cacheKey struct {
	path   string
	size   int64
	moment moment.Moment
	devIno pathstate.DevIno
}

type cacheEntry struct {
	dcode    string
	cachedAt time.Time
}

// Cache memoizes Compute results, gated by a TTL (the Dcode.Cache.Secs
// property) so repeated builds of a mostly-unchanged tree skip re-hashing
// files whose (size, mtime, dev, ino) haven't moved. Concurrent lookups
// for the same key collapse onto a single in-flight Compute call via
// singleflight, since a build commonly has many commands reading the same
// unchanged header at once.
type Cache struct {
	ttl   time.Duration
	store *lru.Cache[cacheKey, cacheEntry]
	group singleflight.Group
}

// NewCache builds a Cache holding up to size entries, each valid for ttl
// (zero disables caching entirely: every lookup recomputes, matching
// Dcode.Cache.Secs == 0).
func NewCache(size int, ttl time.Duration) (*Cache, error) {
	store, err := lru.New[cacheKey, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{ttl: ttl, store: store}, nil
}

func keyFor(path string, ps *pathstate.State) cacheKey {
	return cacheKey{path: path, size: ps.Size, moment: ps.Moment, devIno: ps.DevIno()}
}

// Compute returns the dcode for path, whose current PathState is ps,
// serving from cache when ttl hasn't expired and the key is unchanged.
func (c *Cache) Compute(path string, ps *pathstate.State, algo Algorithm, mmapThreshold int64) (string, error) {
	key := keyFor(path, ps)
	if c.ttl > 0 {
		if entry, ok := c.store.Get(key); ok && time.Since(entry.cachedAt) < c.ttl {
			return entry.dcode, nil
		}
	}

	groupKey := path + "\x00" + ps.Moment.String()
	result, err, _ := c.group.Do(groupKey, func() (interface{}, error) {
		return Compute(path, algo, mmapThreshold)
	})
	if err != nil {
		return "", err
	}
	dc := result.(string)
	if c.ttl > 0 {
		c.store.Add(key, cacheEntry{dcode: dc, cachedAt: time.Now()})
	}
	return dc, nil
}
