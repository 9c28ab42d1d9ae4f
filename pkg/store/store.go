package store

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/holdfast-rpki/holdfast/pkg/log"
	"github.com/holdfast-rpki/holdfast/pkg/metrics"
	"github.com/holdfast-rpki/holdfast/pkg/rpkiuri"
)

// Store owns the embedded database backing a relying party's trust
// anchor certificates, manifests, and objects. It is safe for
// concurrent use: every method either opens its own bbolt transaction
// or hands one to a caller-supplied function, and bbolt itself
// serializes writers while allowing readers to run alongside them.
type Store struct {
	trees *trees
}

// New wraps an already-open bbolt database as a Store, creating its
// three buckets if this is the first time this database has been used
// as one.
func New(db *bolt.DB) (*Store, error) {
	t, err := openTrees(db)
	if err != nil {
		return nil, err
	}
	return &Store{trees: t}, nil
}

// Open opens (creating if necessary) a bbolt database file at path and
// wraps it as a Store. The caller owns the returned *bolt.DB's lifetime
// indirectly through Store and should arrange to Close it when done;
// Store itself exposes no Close because bbolt.DB, not Store, is the
// resource that needs one.
func Open(path string) (*Store, *bolt.DB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: opening database: %v", Failed, err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return s, db, nil
}

// Start begins a validation run against this store.
func (s *Store) Start() *Run {
	return newRun(s)
}

// Cleanup walks every publication point currently stored and removes
// the ones whose manifest has expired, deleting their objects along
// with them. For every publication point that is still alive, it tells
// collector to retain the point's repository or rsync module, then
// calls collector.Commit once so the collector can evict anything it
// manages that was never retained.
//
// A manifest key that fails to parse is itself deleted as garbage, and a
// manifest record that fails to decode even partially is removed along
// with the objects stored under it, rather than causing Cleanup to
// fail: a relying party that cannot make sense of a
// key has no better option than to forget it and let the next fetch
// recreate it if it is still wanted.
//
// Cleanup never mutates a bucket while scanning it. It runs a read-only
// pass over the manifest keyspace first, classifying every key as
// garbage, expired, or live, and only issues deletes in separate
// transactions once that pass has finished. bbolt forbids calling
// Bucket.Delete from inside an in-progress Bucket.ForEach/Cursor walk of
// the same bucket, so this two-pass shape is not a style choice: it is
// the one stable way to delete while iterating a bbolt bucket, and the
// open question spec.md §9 raises about iterator stability under
// concurrent deletion is resolved by never letting that situation arise
// in the first place.
func (s *Store) Cleanup(collector CollectorCleanup) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.CleanupDuration)

	type expired struct {
		base        keyBase
		manifestURI string
	}

	var garbage [][]byte
	var live []expired
	var dead []expired
	now := time.Now()

	err := s.trees.forEach(bucketManifests, func(key, value []byte) error {
		base, manifestURI, ok := parseManifestKey(key)
		if !ok {
			metrics.DecodeErrorsTotal.WithLabelValues("key").Inc()
			log.WithComponent("store").Warn().Msg("dropping manifest key that failed to parse")
			garbage = append(garbage, append([]byte(nil), key...))
			return nil
		}

		notAfter, err := DecodeStoredManifestExpiry(value)
		if err != nil {
			metrics.DecodeErrorsTotal.WithLabelValues("manifest").Inc()
			log.WithManifest(manifestURI).Warn().Msg("dropping manifest record that failed to decode")
			dead = append(dead, expired{base: base, manifestURI: manifestURI})
			return nil
		}

		point := expired{base: base, manifestURI: manifestURI}
		if notAfter.After(now) {
			live = append(live, point)
		} else {
			dead = append(dead, point)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, key := range garbage {
		if _, err := s.trees.remove(bucketManifests, key); err != nil {
			return err
		}
	}

	for _, point := range live {
		if point.base.isRsync() {
			module, err := rsyncModule(point.manifestURI)
			if err != nil {
				log.WithManifest(point.manifestURI).Warn().Err(err).Msg("dropping live rsync publication point whose manifest URI failed to parse")
				dead = append(dead, point)
				continue
			}
			collector.RetainRsyncModule(module)
		} else {
			collector.RetainRRDPRepository(point.base.base)
		}
		metrics.CleanupRetainedTotal.Inc()
	}

	for _, point := range dead {
		repo := &Repository{store: s, keyBase: point.base}
		if err := repo.RemovePoint(point.manifestURI); err != nil {
			return err
		}
		metrics.CleanupExpiredTotal.Inc()
	}

	return collector.Commit()
}

// rsyncModule parses manifestURI as an rsync URI and returns the rsync
// module that identifies its repository, mirroring
// uri::Rsync::from_str(mft) in the original source: the module, not the
// manifest's own URI, is what the collector tracks fetch state for.
func rsyncModule(manifestURI string) (string, error) {
	uri, err := rpkiuri.ParseRsync(manifestURI)
	if err != nil {
		return "", err
	}
	return uri.Module()
}
