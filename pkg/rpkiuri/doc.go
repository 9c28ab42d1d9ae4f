/*
Package rpkiuri provides the small set of validated URI types the
publication-point store needs to key its data: rsync publication-point
URIs, RRDP (https) notification URIs, and trust anchor locator URIs.

Full RPKI URI semantics -- resolving relative references against a
caRepository, validating URI restrictions from RFC 6481/8630 beyond a
scheme check -- belong to the validator's fetch and certificate-parsing
layers, which are out of scope for this module (see spec.md §1). This
package only provides enough structure for the store to build and parse
its keys without working on bare strings, and to tell an rsync URI from
an https URI from a malformed one.
*/
package rpkiuri
