package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/holdfast-rpki/holdfast/pkg/rpkiuri"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("bolt.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := New(db)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestUpdatePointCommit(t *testing.T) {
	s := openTestStore(t)
	run := s.Start()
	repo := run.RsyncRepository()

	manifestURI := "rsync://ca.example.com/repo/ca.mft"
	notAfter := time.Now().Add(24 * time.Hour)

	var mftExisted, objExisted bool
	ue := repo.UpdatePoint(manifestURI, func(u *RepositoryUpdate) *UpdateError {
		var err error
		mftExisted, err = u.UpdateManifest(NewStoredManifest(notAfter, "rsync://ca.example.com/repo/", []byte("mft"), []byte("crl")))
		if err != nil {
			return Fail(err)
		}
		objExisted, err = u.InsertObject("ca.cer", NewStoredObject([]byte("cert"), nil))
		if err != nil {
			return Fail(err)
		}
		return nil
	})
	if ue != nil {
		t.Fatalf("UpdatePoint failed: %v", ue)
	}
	if mftExisted {
		t.Errorf("UpdateManifest reported true on a fresh publication point, want false")
	}
	if objExisted {
		t.Errorf("InsertObject reported true for a never-before-stored file, want false")
	}

	m, err := repo.LoadManifest(manifestURI)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m == nil {
		t.Fatalf("manifest not found after commit")
	}
	if !m.NotAfter.Equal(notAfter.Truncate(time.Second)) {
		t.Errorf("NotAfter = %v, want %v", m.NotAfter, notAfter.Truncate(time.Second))
	}

	o, err := repo.LoadObject(manifestURI, "ca.cer")
	if err != nil {
		t.Fatalf("LoadObject: %v", err)
	}
	if o == nil || string(o.Content) != "cert" {
		t.Fatalf("object not found or wrong content: %+v", o)
	}
}

func TestUpdatePointReportsPriorExistence(t *testing.T) {
	s := openTestStore(t)
	run := s.Start()
	repo := run.RsyncRepository()
	manifestURI := "rsync://ca.example.com/repo/ca.mft"

	if ue := repo.UpdatePoint(manifestURI, func(u *RepositoryUpdate) *UpdateError {
		if _, err := u.UpdateManifest(NewStoredManifest(time.Now().Add(time.Hour), "rsync://x/", []byte("mft"), []byte("crl"))); err != nil {
			return Fail(err)
		}
		if _, err := u.InsertObject("a.cer", NewStoredObject([]byte("a"), nil)); err != nil {
			return Fail(err)
		}
		return nil
	}); ue != nil {
		t.Fatalf("setting up initial point: %v", ue)
	}

	var mftExisted, objExisted, removed bool
	ue := repo.UpdatePoint(manifestURI, func(u *RepositoryUpdate) *UpdateError {
		var err error
		mftExisted, err = u.UpdateManifest(NewStoredManifest(time.Now().Add(2*time.Hour), "rsync://x/", []byte("mft2"), []byte("crl2")))
		if err != nil {
			return Fail(err)
		}
		objExisted, err = u.InsertObject("a.cer", NewStoredObject([]byte("a2"), nil))
		if err != nil {
			return Fail(err)
		}
		removed, err = u.RemoveObject("a.cer")
		if err != nil {
			return Fail(err)
		}
		return nil
	})
	if ue != nil {
		t.Fatalf("UpdatePoint failed: %v", ue)
	}
	if !mftExisted {
		t.Errorf("UpdateManifest reported false on a publication point that already had a manifest, want true")
	}
	if !objExisted {
		t.Errorf("InsertObject reported false for a file already stored, want true")
	}
	if !removed {
		t.Errorf("RemoveObject reported false for a file that existed, want true")
	}
}

func TestUpdatePointAbortLeavesStoreUnchanged(t *testing.T) {
	s := openTestStore(t)
	run := s.Start()
	repo := run.RsyncRepository()
	manifestURI := "rsync://ca.example.com/repo/ca.mft"

	ue := repo.UpdatePoint(manifestURI, func(u *RepositoryUpdate) *UpdateError {
		if _, err := u.UpdateManifest(NewStoredManifest(time.Now(), "rsync://x/", []byte("mft"), []byte("crl"))); err != nil {
			return Fail(err)
		}
		return Abort()
	})
	if ue == nil || !ue.WasAborted() {
		t.Fatalf("expected an aborted UpdateError, got %v", ue)
	}

	m, err := repo.LoadManifest(manifestURI)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m != nil {
		t.Fatalf("manifest should not have been committed after abort, got %+v", m)
	}
}

func TestUpdatePointFailurePropagates(t *testing.T) {
	s := openTestStore(t)
	run := s.Start()
	repo := run.RsyncRepository()

	sentinel := errors.New("boom")
	ue := repo.UpdatePoint("rsync://ca.example.com/repo/ca.mft", func(u *RepositoryUpdate) *UpdateError {
		return Fail(sentinel)
	})
	if ue == nil || !ue.HasFailed() {
		t.Fatalf("expected a failed UpdateError, got %v", ue)
	}
	if !errors.Is(ue, sentinel) {
		t.Fatalf("expected UpdateError to unwrap to the sentinel, got %v", ue.Unwrap())
	}
}

func TestRemovePointIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	run := s.Start()
	repo := run.RsyncRepository()
	manifestURI := "rsync://ca.example.com/repo/ca.mft"

	ue := repo.UpdatePoint(manifestURI, func(u *RepositoryUpdate) *UpdateError {
		if _, err := u.UpdateManifest(NewStoredManifest(time.Now(), "rsync://x/", []byte("mft"), []byte("crl"))); err != nil {
			return Fail(err)
		}
		if _, err := u.InsertObject("a.cer", NewStoredObject([]byte("a"), nil)); err != nil {
			return Fail(err)
		}
		if _, err := u.InsertObject("b.cer", NewStoredObject([]byte("b"), nil)); err != nil {
			return Fail(err)
		}
		return nil
	})
	if ue != nil {
		t.Fatalf("UpdatePoint failed: %v", ue)
	}

	if err := repo.RemovePoint(manifestURI); err != nil {
		t.Fatalf("RemovePoint: %v", err)
	}
	if err := repo.RemovePoint(manifestURI); err != nil {
		t.Fatalf("second RemovePoint should be a no-op, got: %v", err)
	}

	m, err := repo.LoadManifest(manifestURI)
	if err != nil || m != nil {
		t.Fatalf("manifest should be gone, got %+v, err %v", m, err)
	}
	o, err := repo.LoadObject(manifestURI, "a.cer")
	if err != nil || o != nil {
		t.Fatalf("object a.cer should be gone, got %+v, err %v", o, err)
	}
}

func TestRetainObjectsDeletesUnlisted(t *testing.T) {
	s := openTestStore(t)
	run := s.Start()
	repo := run.RsyncRepository()
	manifestURI := "rsync://ca.example.com/repo/ca.mft"

	ue := repo.UpdatePoint(manifestURI, func(u *RepositoryUpdate) *UpdateError {
		for _, f := range []string{"a.cer", "b.cer", "c.crl"} {
			if _, err := u.InsertObject(f, NewStoredObject([]byte(f), nil)); err != nil {
				return Fail(err)
			}
		}
		return nil
	})
	if ue != nil {
		t.Fatalf("UpdatePoint failed: %v", ue)
	}

	keep := map[string]bool{"a.cer": true, "c.crl": true}
	if err := repo.RetainObjects(manifestURI, func(file string) bool { return keep[file] }); err != nil {
		t.Fatalf("RetainObjects: %v", err)
	}

	if o, _ := repo.LoadObject(manifestURI, "a.cer"); o == nil {
		t.Errorf("a.cer should have been retained")
	}
	if o, _ := repo.LoadObject(manifestURI, "c.crl"); o == nil {
		t.Errorf("c.crl should have been retained")
	}
	if o, _ := repo.LoadObject(manifestURI, "b.cer"); o != nil {
		t.Errorf("b.cer should have been deleted, got %+v", o)
	}
}

func TestRetainObjectsDeletesNonASCIISuffixRegardlessOfKeep(t *testing.T) {
	s := openTestStore(t)
	run := s.Start()
	repo := run.RsyncRepository()
	manifestURI := "rsync://ca.example.com/repo/ca.mft"

	garbageKey := append(repo.keyBase.objectPrefix(manifestURI), 0xff, 0xfe)
	if _, err := s.trees.put(bucketObjects, garbageKey, NewStoredObject([]byte("x"), nil).Encode()); err != nil {
		t.Fatalf("seeding non-ASCII key: %v", err)
	}

	if err := repo.RetainObjects(manifestURI, func(string) bool { return true }); err != nil {
		t.Fatalf("RetainObjects: %v", err)
	}

	raw, err := s.trees.get(bucketObjects, garbageKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if raw != nil {
		t.Fatalf("non-ASCII suffix key should have been deleted regardless of keep, got %x", raw)
	}
}

func TestTrustAnchorRoundTrip(t *testing.T) {
	s := openTestStore(t)
	run := s.Start()
	uri, err := rpkiuri.ParseTal("https://example.com/ta.cer")
	if err != nil {
		t.Fatalf("rpkiuri.ParseTal: %v", err)
	}

	existed, err := run.UpdateTA(uri, []byte("cert-bytes"))
	if err != nil {
		t.Fatalf("UpdateTA: %v", err)
	}
	if existed {
		t.Errorf("expected no prior certificate at a fresh URI")
	}

	got, err := run.LoadTA(uri)
	if err != nil {
		t.Fatalf("LoadTA: %v", err)
	}
	if string(got) != "cert-bytes" {
		t.Errorf("LoadTA = %q, want %q", got, "cert-bytes")
	}

	var metrics RunMetrics
	run.Done(&metrics)
	if metrics.TAUpdates != 1 {
		t.Errorf("TAUpdates = %d, want 1", metrics.TAUpdates)
	}
}
