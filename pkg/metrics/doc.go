/*
Package metrics exposes Prometheus instrumentation for the publication
point store: counts of updates, decode failures, and cleanup activity.
Reporting these to the validator's own metrics surface is out of scope
for this module (spec.md §1 lists "metric reporting" among the
validator's external collaborators) -- this package only registers and
updates the series; scraping and aggregation happen elsewhere.
*/
package metrics
