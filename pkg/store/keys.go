package store

import "strings"

// keySeparator is the only byte used to delimit fields inside a key. It
// cannot legally occur inside a URI or a manifest filename, which is
// what makes keys unambiguously decomposable by splitting on it.
const keySeparator = 0x00

// rsyncKeyBase is the literal key base that designates the single shared
// rsync keyspace, as opposed to an RRDP repository's rpkiNotify URI.
const rsyncKeyBase = "rsync"

// keyBase is the first component of every manifest and object key:
// either an RRDP notification URI or the literal string "rsync". It
// exists purely to guarantee that every key is built the same way
// everywhere in the package.
type keyBase struct {
	base string
}

// rrdpKeyBase returns the key base for the RRDP repository identified by
// the given rpkiNotify URI.
func rrdpKeyBase(rpkiNotify string) keyBase {
	return keyBase{base: rpkiNotify}
}

// rsyncRepoKeyBase returns the key base for the single shared rsync
// keyspace.
func rsyncRepoKeyBase() keyBase {
	return keyBase{base: rsyncKeyBase}
}

// isRsync reports whether this key base names the shared rsync keyspace
// rather than an RRDP repository.
func (k keyBase) isRsync() bool {
	return k.base == rsyncKeyBase
}

// manifestKey computes the key of a manifest in the manifest keyspace:
// keyBase 0x00 manifestURI.
func (k keyBase) manifestKey(manifestURI string) []byte {
	buf := make([]byte, 0, len(k.base)+1+len(manifestURI))
	buf = append(buf, k.base...)
	buf = append(buf, keySeparator)
	buf = append(buf, manifestURI...)
	return buf
}

// objectKey computes the key of an object in the object keyspace:
// keyBase 0x00 manifestURI 0x00 file.
func (k keyBase) objectKey(manifestURI, file string) []byte {
	buf := make([]byte, 0, len(k.base)+1+len(manifestURI)+1+len(file))
	buf = append(buf, k.base...)
	buf = append(buf, keySeparator)
	buf = append(buf, manifestURI...)
	buf = append(buf, keySeparator)
	buf = append(buf, file...)
	return buf
}

// objectPrefix computes the prefix shared by every object of the
// publication point named by manifestURI: keyBase 0x00 manifestURI 0x00.
// It is a strict prefix of every key objectKey returns for the same
// (keyBase, manifestURI) pair, so a single range scan over this prefix
// enumerates exactly the objects of one publication point.
func (k keyBase) objectPrefix(manifestURI string) []byte {
	buf := make([]byte, 0, len(k.base)+1+len(manifestURI)+1)
	buf = append(buf, k.base...)
	buf = append(buf, keySeparator)
	buf = append(buf, manifestURI...)
	buf = append(buf, keySeparator)
	return buf
}

// parseManifestKey recovers the key base and manifest URI from a
// manifest key. It requires the key to be valid ASCII with exactly one
// NUL separator; anything else -- including a key with two or more
// NULs, which would be an object key mistakenly read from the manifest
// keyspace -- is reported as garbage so cleanup can delete it.
func parseManifestKey(key []byte) (keyBase, string, bool) {
	if !isASCII(key) {
		return keyBase{}, "", false
	}
	s := string(key)
	parts := strings.Split(s, "\x00")
	if len(parts) != 2 {
		return keyBase{}, "", false
	}
	return keyBase{base: parts[0]}, parts[1], true
}

// isASCII reports whether every byte of b is 7-bit ASCII.
func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
