/*
Package collector provides a reference implementation of
store.CollectorCleanup: an in-memory set of retained RRDP repositories
and rsync modules, committed by diffing against whatever set was
retained on the previous pass.

The real repository collector -- the component that actually owns RRDP
snapshot/delta state and rsync working copies on disk -- is external to
this module (spec.md §1). This package exists so store.Store.Cleanup has
something concrete to drive in this repository's own tests, and as a
starting point for a caller that wants the simplest possible cache
eviction policy: anything not retained this pass is gone.
*/
package collector
