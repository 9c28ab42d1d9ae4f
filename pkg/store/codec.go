package store

import (
	"encoding/binary"
	"time"
)

// recordVersion is the single leading byte every encoded record starts
// with. Records with any other leading byte fail to decode; future
// format changes either keep this byte unchanged or introduce a new
// version tag alongside migration logic -- this module only ever
// produces and consumes version 0.
const recordVersion byte = 0x00

// Hash type tags used in the StoredObject encoding.
const (
	hashTypeNone   byte = 0x00
	hashTypeSHA256 byte = 0x01
)

const sha256DigestLen = 32

// HashAlgorithm identifies the digest algorithm of a ManifestHash. SHA-256
// is the only algorithm the RPKI manifest profile currently defines;
// any other algorithm is stored as "no hash" on encode, and a stored
// record with an unrecognized hash type fails to decode.
type HashAlgorithm byte

// IsSHA256 reports whether the algorithm is SHA-256.
func (a HashAlgorithm) IsSHA256() bool {
	return a == HashAlgorithm(hashTypeSHA256)
}

// ManifestHash is the hash of an object as listed on the manifest that
// names it.
type ManifestHash struct {
	Algorithm HashAlgorithm
	Digest    []byte
}

// StoredManifest is the content of a manifest placed in the store: the
// raw bytes of the manifest and its CRL plus the bits of metadata needed
// to use them without re-parsing the manifest itself.
type StoredManifest struct {
	// NotAfter is the expiry time of the manifest's EE certificate,
	// truncated to whole seconds. Cleanup uses this to decide whether a
	// publication point is still alive.
	NotAfter time.Time

	// CARepository is the rsync URI of the directory that the manifest's
	// issuing CA certificate names as its publication point. The
	// manifest only lists relative file names, so this is needed to
	// build their full rsync URIs. It isn't available on the manifest
	// itself, which is why it has to be stored alongside it.
	CARepository string

	// Manifest is the raw bytes of the manifest object.
	Manifest []byte

	// CRL is the raw bytes of the one CRL the manifest references.
	CRL []byte
}

// NewStoredManifest creates a stored manifest from its components.
func NewStoredManifest(notAfter time.Time, caRepository string, manifest, crl []byte) *StoredManifest {
	return &StoredManifest{
		NotAfter:     notAfter.Truncate(time.Second),
		CARepository: caRepository,
		Manifest:     manifest,
		CRL:          crl,
	}
}

// Encode serializes the manifest for storage.
//
// Layout: version (1) | not_after seconds-since-epoch, big-endian i64 (8)
// | len(caRepository) big-endian u32 (4) | caRepository | len(manifest)
// big-endian u32 (4) | manifest | crl (remainder). There is no trailer
// and no checksum; bbolt already guarantees the bytes it returns are
// exactly what was written.
//
// caRepository and manifest must each fit in a uint32 number of bytes.
// Exceeding that is a programmer error -- the publication points this
// store deals with are many orders of magnitude smaller -- and panics
// rather than silently truncating.
func (m *StoredManifest) Encode() []byte {
	caRepo := []byte(m.CARepository)
	if len(caRepo) > 1<<32-1 {
		panic("store: caRepository URI exceeds size limit")
	}
	if len(m.Manifest) > 1<<32-1 {
		panic("store: manifest exceeds size limit")
	}

	buf := make([]byte, 0, 1+8+4+len(caRepo)+4+len(m.Manifest)+len(m.CRL))
	buf = append(buf, recordVersion)

	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(m.NotAfter.Unix()))
	buf = append(buf, tsBuf[:]...)

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(caRepo)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, caRepo...)

	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(m.Manifest)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, m.Manifest...)

	buf = append(buf, m.CRL...)
	return buf
}

// DecodeStoredManifest reverses Encode. It returns DecodeError if raw is
// malformed in any way -- truncated, wrongly versioned, or with a length
// field that overruns the remaining bytes.
func DecodeStoredManifest(raw []byte) (*StoredManifest, error) {
	if len(raw) == 0 || raw[0] != recordVersion {
		return nil, DecodeError
	}
	raw = raw[1:]

	if len(raw) < 8 {
		return nil, DecodeError
	}
	notAfter := time.Unix(int64(binary.BigEndian.Uint64(raw[:8])), 0).UTC()
	raw = raw[8:]

	caRepo, raw, err := takeLenPrefixed(raw)
	if err != nil {
		return nil, err
	}

	manifest, raw, err := takeLenPrefixed(raw)
	if err != nil {
		return nil, err
	}

	return &StoredManifest{
		NotAfter:     notAfter,
		CARepository: string(caRepo),
		Manifest:     manifest,
		CRL:          raw,
	}, nil
}

// partialDecodeExpiryLen is the minimum length a record must have for
// DecodeStoredManifestExpiry to succeed: one version byte plus an eight
// byte timestamp.
const partialDecodeExpiryLen = 1 + 8

// DecodeStoredManifestExpiry extracts only the NotAfter field from an
// encoded StoredManifest, without touching the CA repository, manifest,
// or CRL bytes and without allocating. Cleanup uses this on every
// manifest it visits, so the common case -- a manifest that is still
// alive -- never pays for decoding the (often kilobytes-large) manifest
// and CRL bytes it is about to ignore.
func DecodeStoredManifestExpiry(raw []byte) (time.Time, error) {
	if len(raw) < partialDecodeExpiryLen || raw[0] != recordVersion {
		return time.Time{}, DecodeError
	}
	seconds := int64(binary.BigEndian.Uint64(raw[1:9]))
	return time.Unix(seconds, 0).UTC(), nil
}

func takeLenPrefixed(raw []byte) (value, rest []byte, err error) {
	if len(raw) < 4 {
		return nil, nil, DecodeError
	}
	n := binary.BigEndian.Uint32(raw[:4])
	raw = raw[4:]
	if uint64(len(raw)) < uint64(n) {
		return nil, nil, DecodeError
	}
	return raw[:n], raw[n:], nil
}

// StoredObject is the content of an object placed in the store: its raw
// bytes plus, when the caller knew it from the manifest, its hash.
type StoredObject struct {
	// Hash is the manifest hash of the object, if known.
	Hash *ManifestHash

	// Content is the raw bytes of the object.
	Content []byte
}

// NewStoredObject creates a stored object from its content and optional
// manifest hash.
func NewStoredObject(content []byte, hash *ManifestHash) *StoredObject {
	return &StoredObject{Hash: hash, Content: content}
}

// Encode serializes the object for storage.
//
// Layout: version (1) | hash type (1, 0x00 none / 0x01 sha256) | digest
// (32 bytes, only if hash type is sha256) | content (remainder).
//
// Any hash whose algorithm is not SHA-256 is downgraded to "none" on
// encode, for forward compatibility with digest algorithms this store
// doesn't yet recognize.
func (o *StoredObject) Encode() []byte {
	var hashType byte
	var digest []byte
	if o.Hash != nil && o.Hash.Algorithm.IsSHA256() {
		hashType = hashTypeSHA256
		digest = o.Hash.Digest
	} else {
		hashType = hashTypeNone
	}

	buf := make([]byte, 0, 2+len(digest)+len(o.Content))
	buf = append(buf, recordVersion, hashType)
	buf = append(buf, digest...)
	buf = append(buf, o.Content...)
	return buf
}

// DecodeStoredObject reverses Encode. An unrecognized hash type is a
// decode error; a caller that wants forward-compatible decoding of a
// newer format should treat any DecodeError from this function as
// "object absent" the same way it treats a missing key.
func DecodeStoredObject(raw []byte) (*StoredObject, error) {
	if len(raw) == 0 || raw[0] != recordVersion {
		return nil, DecodeError
	}
	raw = raw[1:]

	if len(raw) < 1 {
		return nil, DecodeError
	}
	hashType := raw[0]
	raw = raw[1:]

	var hash *ManifestHash
	switch hashType {
	case hashTypeNone:
	case hashTypeSHA256:
		if len(raw) < sha256DigestLen {
			return nil, DecodeError
		}
		digest := make([]byte, sha256DigestLen)
		copy(digest, raw[:sha256DigestLen])
		raw = raw[sha256DigestLen:]
		hash = &ManifestHash{Algorithm: HashAlgorithm(hashTypeSHA256), Digest: digest}
	default:
		return nil, DecodeError
	}

	content := make([]byte, len(raw))
	copy(content, raw)
	return &StoredObject{Hash: hash, Content: content}, nil
}
