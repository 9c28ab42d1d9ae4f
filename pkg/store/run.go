package store

import (
	"github.com/holdfast-rpki/holdfast/pkg/metrics"
	"github.com/holdfast-rpki/holdfast/pkg/rpkiuri"
)

// CaCert is the minimal view of a CA certificate Run.Repository needs:
// whether it advertises an RRDP notification URI. Parsing and validating
// the certificate itself is the validator's job, not the store's; this
// interface lets the store depend on exactly the one fact it needs
// without importing a certificate library.
type CaCert interface {
	// RpkiNotify returns the certificate's RRDP notification URI, and
	// whether one was present at all.
	RpkiNotify() (rpkiuri.Https, bool)
}

// TransportHint reports which transport the repository collector is
// currently using for a CA's repository, so Run.Repository can keep data
// fetched via rsync strictly separate from data fetched via RRDP even
// when the CA certificate advertises both. A nil TransportHint means the
// caller has no opinion and the CA certificate's own preference (RRDP if
// present) should be used.
type TransportHint interface {
	// IsRRDP reports whether the collector is currently fetching this
	// repository via RRDP rather than rsync.
	IsRRDP() bool
}

// Run is a single validation session on the store. It provides access to
// stored trust anchor certificates and, for a given CA, the Repository
// that holds its publication points.
//
// A Run references its underlying Store directly; its only state of its
// own is its RunMetrics counters, and it is cheap to create and discard.
// Dropping a Run -- simply letting it go out of scope -- ends the
// session; Done exists only to let a caller copy out per-run metrics on
// the way out.
type Run struct {
	store   *Store
	metrics RunMetrics
}

// newRun creates a Run over store. Unexported: callers get one from
// Store.Start.
func newRun(store *Store) *Run {
	return &Run{store: store}
}

// Done finishes the validation run. If m is non-nil, this run's own
// metrics are copied into it, replacing whatever m held before; this
// mirrors Run::done(metrics) in the
// original source, which the distilled spec drops but which remains
// part of the documented caller lifecycle (a Run is created by Start and
// consumed by calling Done, even though nothing under this type
// currently needs an explicit teardown step of its own).
func (r *Run) Done(m *RunMetrics) {
	if m == nil {
		return
	}
	*m = r.metrics
}

// RunMetrics collects the counters accumulated over the lifetime of a
// single Run, for a caller that wants to report them alongside the rest
// of a validation run's statistics rather than scraping the package's
// global Prometheus series.
type RunMetrics struct {
	// TAUpdates is the number of calls to UpdateTA made during the run.
	TAUpdates int
}

// LoadTA loads a stored trust anchor certificate. A nil, nil return
// means no certificate is stored at this URI.
func (r *Run) LoadTA(uri rpkiuri.Tal) ([]byte, error) {
	return r.store.trees.get(bucketTrustAnchors, []byte(uri.String()))
}

// UpdateTA inserts or overwrites the stored trust anchor certificate at
// uri, returning whether a certificate was already stored there.
func (r *Run) UpdateTA(uri rpkiuri.Tal, content []byte) (bool, error) {
	existed, err := r.store.trees.put(bucketTrustAnchors, []byte(uri.String()), content)
	if err != nil {
		return false, err
	}
	r.metrics.TAUpdates++
	metrics.TrustAnchorUpdatesTotal.Inc()
	return existed, nil
}

// Repository accesses the repository holding the publication points of
// ca. If ca advertises an RRDP notification URI and either hint is nil
// or hint.IsRRDP() is true, the RRDP repository for that URI is
// returned; otherwise the shared rsync repository is returned.
//
// The hint parameter exists so that data fetched via rsync is kept in a
// separate keyspace from data fetched via RRDP for the same CA, even
// when the CA certificate advertises an RRDP notification URI: if the
// collector had to fall back from RRDP to rsync for this CA, passing its
// transport hint here keeps the store from mixing the two, which would
// otherwise open a downgrade-style cross-contamination path.
func (r *Run) Repository(ca CaCert, hint TransportHint) *Repository {
	notify, hasNotify := ca.RpkiNotify()
	if hasNotify && (hint == nil || hint.IsRRDP()) {
		return r.RRDPRepository(notify)
	}
	return r.RsyncRepository()
}

// RRDPRepository accesses the RRDP repository identified by notifyURI
// directly, without going through a CA certificate.
func (r *Run) RRDPRepository(notifyURI rpkiuri.Https) *Repository {
	return &Repository{store: r.store, keyBase: rrdpKeyBase(notifyURI.String())}
}

// RsyncRepository accesses the single shared rsync repository directly.
func (r *Run) RsyncRepository() *Repository {
	return &Repository{store: r.store, keyBase: rsyncRepoKeyBase()}
}
