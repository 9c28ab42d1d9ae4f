package store

import (
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/holdfast-rpki/holdfast/pkg/log"
)

// Bucket names for the three keyspaces this store maintains inside a
// single bbolt database file, matching the tree names the original
// source gives its sled trees (spec.md §6, "On-disk layout").
var (
	bucketTrustAnchors = []byte("trust-anchor-certificates")
	bucketManifests    = []byte("store-manifests")
	bucketObjects      = []byte("store-objects")
)

// trees is the "trees abstraction" of spec.md §4: three named keyspaces
// sharing one embedded KV engine, each offering point get/put/remove,
// prefix scan, and participation in multi-keyspace transactions. It is
// the thin layer between the rest of this package and bbolt, so that
// everything above it works in terms of buckets and byte keys rather
// than *bolt.DB directly.
type trees struct {
	db *bolt.DB
}

// openTrees opens (creating if necessary) the three buckets this store
// needs on db.
func openTrees(db *bolt.DB) (*trees, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketTrustAnchors, bucketManifests, bucketObjects} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Error("failed to initialize store buckets")
		return nil, fmt.Errorf("%w: %v", Failed, err)
	}
	return &trees{db: db}, nil
}

// get performs a point read in the named bucket. It returns a copy of
// the value, since bbolt's returned slices are only valid for the
// lifetime of the read transaction.
func (t *trees) get(bucket, key []byte) ([]byte, error) {
	var value []byte
	err := t.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get(key)
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		log.WithComponent("store").Error().Err(err).Msg("database read failed")
		return nil, fmt.Errorf("%w: %v", Failed, err)
	}
	return value, nil
}

// put upserts a single key in the named bucket. It reports whether a
// prior value existed at that key.
func (t *trees) put(bucket, key, value []byte) (existed bool, err error) {
	err = t.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		existed = b.Get(key) != nil
		return b.Put(key, value)
	})
	if err != nil {
		log.WithComponent("store").Error().Err(err).Msg("database write failed")
		return false, fmt.Errorf("%w: %v", Failed, err)
	}
	return existed, nil
}

// remove deletes a single key from the named bucket. It reports whether
// a value existed there; removing an absent key is not an error.
func (t *trees) remove(bucket, key []byte) (existed bool, err error) {
	err = t.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		existed = b.Get(key) != nil
		return b.Delete(key)
	})
	if err != nil {
		log.WithComponent("store").Error().Err(err).Msg("database delete failed")
		return false, fmt.Errorf("%w: %v", Failed, err)
	}
	return existed, nil
}

// scanPrefix returns every key and value in the named bucket whose key
// starts with prefix, in byte order. Values are copied out so they
// remain valid after the surrounding read transaction ends.
func (t *trees) scanPrefix(bucket, prefix []byte) ([][2][]byte, error) {
	var out [][2][]byte
	err := t.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			out = append(out, [2][]byte{
				append([]byte(nil), k...),
				append([]byte(nil), v...),
			})
		}
		return nil
	})
	if err != nil {
		log.WithComponent("store").Error().Err(err).Msg("database scan failed")
		return nil, fmt.Errorf("%w: %v", Failed, err)
	}
	return out, nil
}

// forEach walks every key/value pair of the named bucket, in byte order,
// calling fn on each one. fn's own buffers are only valid for the
// duration of the call, matching bbolt's ForEach contract.
func (t *trees) forEach(bucket []byte, fn func(key, value []byte) error) error {
	err := t.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(fn)
	})
	if err != nil {
		log.WithComponent("store").Error().Err(err).Msg("database scan failed")
		return fmt.Errorf("%w: %v", Failed, err)
	}
	return nil
}

// maxUpdateAttempts bounds the number of times update will invoke its
// body, counting the first attempt. The spec's underlying engine is optimistic and may re-run a
// transaction body after a write conflict; bbolt's single-writer
// transactions serialize all callers instead of racing them, so a
// conflict bbolt itself reports never actually happens here. The retry
// loop is kept anyway so the contract -- "body may be invoked more than
// once, so it must only mutate through its facade" -- stays real rather
// than aspirational if this store is ever layered over a genuinely
// optimistic engine. See DESIGN.md for the open-question resolution.
const maxUpdateAttempts = 3

// errConflict is the sentinel a transaction body can return to ask for a
// retry. bbolt never produces it on its own.
var errConflict = fmt.Errorf("store: transaction conflict")

// update runs fn inside a single read-write bbolt transaction spanning
// every bucket this store manages, retrying on errConflict until
// maxUpdateAttempts attempts have been made. A plain error from fn aborts the bbolt
// transaction (rolling back any writes) and is returned to the caller
// unchanged; errConflict specifically is retried rather than surfaced.
func (t *trees) update(fn func(tx *bolt.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err = t.db.Update(fn)
		if err != errConflict {
			return err
		}
	}
	return err
}

func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}
