package store

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// RepositoryUpdate is the sole write surface an UpdatePoint body sees. It
// lets the body replace the publication point's manifest, and insert or
// remove individual objects, all inside the one transaction UpdatePoint
// manages -- a body has no way to reach *bolt.Tx directly, so it cannot
// accidentally touch a bucket outside this publication point or hold a
// write past the transaction's lifetime.
type RepositoryUpdate struct {
	tx          *bolt.Tx
	keyBase     keyBase
	manifestURI string
}

// UpdateManifest replaces the publication point's manifest record,
// reporting whether a manifest was already stored there.
func (u *RepositoryUpdate) UpdateManifest(m *StoredManifest) (bool, error) {
	b := u.tx.Bucket(bucketManifests)
	key := u.keyBase.manifestKey(u.manifestURI)
	existed := b.Get(key) != nil
	if err := b.Put(key, m.Encode()); err != nil {
		return false, fmt.Errorf("%w: %v", Failed, err)
	}
	return existed, nil
}

// InsertObject adds or replaces the object named file under this
// publication point, reporting whether an object was already stored
// there under that name.
func (u *RepositoryUpdate) InsertObject(file string, obj *StoredObject) (bool, error) {
	b := u.tx.Bucket(bucketObjects)
	key := u.keyBase.objectKey(u.manifestURI, file)
	existed := b.Get(key) != nil
	if err := b.Put(key, obj.Encode()); err != nil {
		return false, fmt.Errorf("%w: %v", Failed, err)
	}
	return existed, nil
}

// RemoveObject deletes the object named file from this publication
// point, reporting whether it was present beforehand. Removing an
// object that was never stored is not an error.
func (u *RepositoryUpdate) RemoveObject(file string) (bool, error) {
	b := u.tx.Bucket(bucketObjects)
	key := u.keyBase.objectKey(u.manifestURI, file)
	existed := b.Get(key) != nil
	if err := b.Delete(key); err != nil {
		return false, fmt.Errorf("%w: %v", Failed, err)
	}
	return existed, nil
}
