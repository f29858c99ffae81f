// Package localcache mirrors roadmap lookups into an on-disk bbolt
// database: Record stores one key's value set under a build id, MirrorAll
// stores a whole roadmap, and Find/FindAll replay what was stored. It is
// the store for the Leave.Roadmap / Reuse.Roadmap debug properties, but
// nothing in the module reads those properties or opens a Store outside
// this package's tests.
// Grounded in original_source/src/shop.c's IS_TRUE(prop_get_str(P_LEAVE_ROADMAP))
// / P_REUSE_ROADMAP checks.
package localcache

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/boyski/audited-objects/pkg/cdb"
)

// Store is an opened local mirror database. One bbolt bucket per build id
// keeps recordings from different builds from colliding.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if absent) the bbolt file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o644, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("localcache: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying bbolt file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record mirrors one key's value set (as FindAll would return it) into
// buildID's bucket. Safe to call repeatedly for the same key -- later
// calls overwrite, matching the "most recent read wins" semantics a
// shopping pass replaying its own lookups wants.
func (s *Store) Record(buildID, key string, values []string) error {
	enc, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("localcache: encoding %s/%s: %w", buildID, key, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(buildID))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), enc)
	})
}

// MirrorAll walks a fully-opened roadmap CDB and records every key/value
// pair under buildID in one transaction, for a wholesale Leave.Roadmap
// snapshot rather than an incremental per-lookup one.
func (s *Store) MirrorAll(buildID string, db *cdb.DB) error {
	grouped := make(map[string][]string)
	var order []string
	if err := db.Each(func(k, v string) bool {
		if _, seen := grouped[k]; !seen {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], v)
		return true
	}); err != nil {
		return fmt.Errorf("localcache: walking roadmap: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(buildID))
		if err != nil {
			return err
		}
		for _, k := range order {
			enc, err := json.Marshal(grouped[k])
			if err != nil {
				return fmt.Errorf("localcache: encoding %s: %w", k, err)
			}
			if err := b.Put([]byte(k), enc); err != nil {
				return err
			}
		}
		return nil
	})
}

// FindAll replays the value set recorded for key under buildID. The bool
// return distinguishes "recorded as empty" from "never recorded" the same
// way cdb.DB.FindAll distinguishes a present-but-empty bucket from a miss.
func (s *Store) FindAll(buildID, key string) ([]string, bool, error) {
	var values []string
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(buildID))
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(key))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &values)
	})
	if err != nil {
		return nil, false, fmt.Errorf("localcache: reading %s/%s: %w", buildID, key, err)
	}
	return values, found, nil
}

// Find replays the first recorded value for key, mirroring cdb.DB.Find.
func (s *Store) Find(buildID, key string) (string, bool, error) {
	values, ok, err := s.FindAll(buildID, key)
	if err != nil || !ok || len(values) == 0 {
		return "", false, err
	}
	return values[0], true, nil
}
