package store

import (
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/holdfast-rpki/holdfast/pkg/log"
	"github.com/holdfast-rpki/holdfast/pkg/metrics"
)

// Repository is one publication point keyspace: either a single RRDP
// repository identified by its notification URI, or the one shared
// rsync keyspace. It is obtained from a Run via Run.Repository,
// Run.RRDPRepository, or Run.RsyncRepository.
type Repository struct {
	store   *Store
	keyBase keyBase
}

// LoadManifest loads the manifest stored for manifestURI. A nil, nil
// return means no manifest is stored there -- including when a stored
// record exists but fails to decode, which is logged and counted but
// never surfaced as an error: a caller has no useful recovery from a
// corrupt record beyond treating the publication point as unknown.
func (r *Repository) LoadManifest(manifestURI string) (*StoredManifest, error) {
	raw, err := r.store.trees.get(bucketManifests, r.keyBase.manifestKey(manifestURI))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	m, err := DecodeStoredManifest(raw)
	if err != nil {
		metrics.DecodeErrorsTotal.WithLabelValues("manifest").Inc()
		log.WithManifest(manifestURI).Warn().Msg("stored manifest failed to decode")
		return nil, nil
	}
	return m, nil
}

// LoadObject loads the object named file under manifestURI's publication
// point. A nil, nil return means the object is absent, whether because it
// was never stored or because the stored record failed to decode.
func (r *Repository) LoadObject(manifestURI, file string) (*StoredObject, error) {
	raw, err := r.store.trees.get(bucketObjects, r.keyBase.objectKey(manifestURI, file))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	o, err := DecodeStoredObject(raw)
	if err != nil {
		metrics.DecodeErrorsTotal.WithLabelValues("object").Inc()
		log.WithManifest(manifestURI).Warn().Str("file", file).Msg("stored object failed to decode")
		return nil, nil
	}
	return o, nil
}

// errAbort is the sentinel returned from inside the bbolt transaction
// when an UpdatePoint body asks to abort deliberately, so trees.update
// rolls back the write without treating it as a storage failure.
var errAbort = errors.New("store: update aborted")

// UpdatePoint runs fn once, inside a single transaction spanning both
// the manifest and object keyspaces of this repository's publication
// point at manifestURI. fn makes its changes exclusively through the
// *RepositoryUpdate it is given; returning nil commits them atomically,
// Abort() rolls them back and is reported as an UpdateError whose
// WasAborted is true, and Fail(err) rolls them back and reports err.
//
// fn may be invoked more than once if the underlying engine reports a
// write conflict and must retry the transaction body -- see
// trees.update and DESIGN.md for why that never actually happens over
// bbolt today. A body that only mutates through its RepositoryUpdate is
// safe to retry regardless.
func (r *Repository) UpdatePoint(manifestURI string, fn func(u *RepositoryUpdate) *UpdateError) *UpdateError {
	timer := metrics.NewTimer()

	txErr := r.store.trees.update(func(tx *bolt.Tx) error {
		u := &RepositoryUpdate{tx: tx, keyBase: r.keyBase, manifestURI: manifestURI}
		if ue := fn(u); ue != nil {
			if ue.WasAborted() {
				return errAbort
			}
			return ue
		}
		return nil
	})

	outcome := "committed"
	var result *UpdateError
	switch {
	case txErr == nil:
	case errors.Is(txErr, errAbort):
		outcome = "aborted"
		result = Abort()
	default:
		outcome = "failed"
		var ue *UpdateError
		if errors.As(txErr, &ue) {
			result = ue
		} else {
			result = Fail(txErr)
		}
	}

	metrics.UpdatePointTotal.WithLabelValues(outcome).Inc()
	timer.ObserveDuration(metrics.UpdatePointDuration)
	return result
}

// RemovePoint deletes the publication point at manifestURI entirely:
// every object stored under it, then the manifest itself, in one
// transaction. Removing a point that no longer exists is not an error.
func (r *Repository) RemovePoint(manifestURI string) error {
	manifestKey := r.keyBase.manifestKey(manifestURI)
	prefix := r.keyBase.objectPrefix(manifestURI)

	err := r.store.trees.update(func(tx *bolt.Tx) error {
		return deletePrefixThenKey(tx, bucketObjects, prefix, bucketManifests, manifestKey)
	})
	if err != nil {
		log.WithManifest(manifestURI).Error().Err(err).Msg("failed to remove publication point")
		return fmt.Errorf("%w: %v", Failed, err)
	}
	return nil
}

// RetainObjects deletes every object stored under manifestURI's
// publication point for which keep(file) is false. It is how a
// validator tells the store which objects a freshly parsed manifest
// still lists, after fetching has replaced some files and removed
// others, without having to name every object it wants removed
// individually. An object whose key suffix is not valid ASCII is always
// deleted, regardless of what keep reports: the key schema guarantees
// every file name this store itself ever wrote is ASCII, so a non-ASCII
// suffix can only be a corrupt or foreign key.
func (r *Repository) RetainObjects(manifestURI string, keep func(file string) bool) error {
	prefix := r.keyBase.objectPrefix(manifestURI)

	err := r.store.trees.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketObjects)
		toDelete, err := collectPrefixKeys(b, prefix, func(suffix []byte) bool {
			if !isASCII(suffix) {
				return true
			}
			return !keep(string(suffix))
		})
		if err != nil {
			return err
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.WithManifest(manifestURI).Error().Err(err).Msg("failed to retain objects")
		return fmt.Errorf("%w: %v", Failed, err)
	}
	return nil
}

// deletePrefixThenKey deletes every key under prefix in objectsBucket,
// then deletes manifestKey from manifestsBucket, all within tx. Keys to
// delete are collected before any delete is issued: bbolt's cursor
// contract forbids mutating a bucket while a cursor over it is still
// live, so deletion happens only after the scan that found them has
// finished (see the doc comment on Store.Cleanup for the matching
// concern there).
func deletePrefixThenKey(tx *bolt.Tx, objectsBucket, prefix []byte, manifestsBucket, manifestKey []byte) error {
	objects := tx.Bucket(objectsBucket)
	toDelete, err := collectPrefixKeys(objects, prefix, func([]byte) bool { return true })
	if err != nil {
		return err
	}
	for _, k := range toDelete {
		if err := objects.Delete(k); err != nil {
			return err
		}
	}
	return tx.Bucket(manifestsBucket).Delete(manifestKey)
}

// collectPrefixKeys scans b for every key starting with prefix and
// returns those for which match(suffixAfterPrefix) is true. Returned
// keys are copies, safe to use after the cursor that produced them is
// gone.
func collectPrefixKeys(b *bolt.Bucket, prefix []byte, match func(suffix []byte) bool) ([][]byte, error) {
	var out [][]byte
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
		if match(k[len(prefix):]) {
			out = append(out, append([]byte(nil), k...))
		}
	}
	return out, nil
}
