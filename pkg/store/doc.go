/*
Package store provides the publication-point object store for an RPKI
relying-party validator.

The validator fetches certificates, manifests, CRLs, and route origin
attestations from a global hierarchy of repositories and must keep, on
local disk, a curated copy of only those objects that have been found to
be correctly covered by a valid, non-expired manifest. This curated copy
is the store; it exists so that transient repository corruption,
publisher errors, or active attack cannot erase or poison data already
known-good.

# Architecture

The store sits on top of a single embedded bbolt database, divided into
three named keyspaces:

	┌────────────────────── STORE (bbolt) ───────────────────────┐
	│                                                              │
	│  ┌──────────────────────────────────────────────┐          │
	│  │      trust-anchor-certificates                │          │
	│  │        key:   TAL URI                         │          │
	│  │        value: raw certificate bytes           │          │
	│  └──────────────────────────────────────────────┘          │
	│                                                              │
	│  ┌──────────────────────────────────────────────┐          │
	│  │      store-manifests                          │          │
	│  │        key:   keyBase 0x00 manifestURI        │          │
	│  │        value: encoded StoredManifest          │          │
	│  └──────────────────────────────────────────────┘          │
	│                                                              │
	│  ┌──────────────────────────────────────────────┐          │
	│  │      store-objects                            │          │
	│  │        key:   keyBase 0x00 manifestURI 0x00   │          │
	│  │               filename                        │          │
	│  │        value: encoded StoredObject            │          │
	│  └──────────────────────────────────────────────┘          │
	│                                                              │
	└──────────────────────────────────────────────────────────────┘

keyBase is either the rpkiNotify URI of an RRDP repository or the literal
string "rsync" for the single shared rsync keyspace. Because the object
key is the manifest key plus a trailing NUL plus the filename, a single
prefix scan over store-objects enumerates exactly the objects belonging
to one publication point.

# Usage

	s, db, err := store.Open(filepath.Join(dataDir, "holdfast.db"))
	defer db.Close()
	run := s.Start()
	defer run.Done(nil)

	repo := run.Repository(caCert, nil)
	mft, err := repo.LoadManifest(mftURI)

	if ue := repo.UpdatePoint(mftURI, func(u *store.RepositoryUpdate) *store.UpdateError {
		if _, err := u.UpdateManifest(newManifest); err != nil {
			return store.Fail(err)
		}
		if _, err := u.InsertObject("foo.roa", obj); err != nil {
			return store.Fail(err)
		}
		return nil
	}); ue != nil {
		// ue.WasAborted() or ue.HasFailed()
	}

	err = s.Cleanup(collectorCleanup)

# Concurrency

Handles are cheap references safe to share across goroutines validating
different parts of the CA hierarchy concurrently. All mutation goes
through bbolt's single-writer transactions, which serialize concurrent
callers rather than making them race; UpdatePoint's body must still avoid
side effects outside the RepositoryUpdate facade it is given, since the
transaction helper may in principle run it more than once (see
trees.update and Repository.UpdatePoint).
*/
package store
