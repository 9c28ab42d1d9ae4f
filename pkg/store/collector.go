package store

// CollectorCleanup is the hook Store.Cleanup uses to tell the repository
// collector (the component that manages on-disk RRDP and rsync fetch
// caches, entirely outside this module's scope) which repositories and
// modules are still referenced by a live publication point.
//
// Cleanup calls RetainRRDPRepository or RetainRsyncModule once for every
// publication point whose manifest has not yet expired, then calls
// Commit exactly once to let the collector act on what it learned (for
// instance, deleting the fetch cache of any repository that was never
// retained). A concrete implementation lives outside this module;
// pkg/collector provides an in-memory reference implementation used by
// this package's own tests.
type CollectorCleanup interface {
	// RetainRRDPRepository records that the RRDP repository identified
	// by notifyURI still has at least one live publication point.
	RetainRRDPRepository(notifyURI string)

	// RetainRsyncModule records that the rsync module identified by
	// moduleURI still has at least one live publication point.
	RetainRsyncModule(moduleURI string)

	// Commit finalizes the cleanup pass. Any repository or module never
	// passed to the Retain* methods since the last Commit may be
	// discarded by the collector.
	Commit() error
}
