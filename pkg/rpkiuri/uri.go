package rpkiuri

import (
	"errors"
	"net/url"
	"strings"
)

// ErrInvalid is returned when a URI does not have the scheme its parser
// requires.
var ErrInvalid = errors.New("rpkiuri: invalid URI")

// Rsync is an rsync:// URI naming either a publication point's manifest
// (its signedObject URI) or the directory that contains it
// (a caRepository URI).
type Rsync struct {
	raw string
}

// ParseRsync parses s as an rsync URI. It only checks the scheme; the
// rest of the authority and path are kept verbatim, since this package
// doesn't need to resolve or validate them further.
func ParseRsync(s string) (Rsync, error) {
	if !hasScheme(s, "rsync") {
		return Rsync{}, ErrInvalid
	}
	return Rsync{raw: s}, nil
}

// String returns the URI text.
func (u Rsync) String() string { return u.raw }

// IsZero reports whether u is the zero value.
func (u Rsync) IsZero() bool { return u.raw == "" }

// Module returns the rsync module of the URI: the host plus the first
// path segment with its trailing slash, e.g.
// "rsync://repo.example.com/module/" for
// "rsync://repo.example.com/module/sub/file.cer". A URI with only one
// path segment is returned unchanged. It is used by cleanup
// to register modules with the collector, mirroring uri::Rsync::module()
// in the original source.
func (u Rsync) Module() (string, error) {
	rest := strings.TrimPrefix(u.raw, "rsync://")
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return "", ErrInvalid
	}
	rest = rest[slash+1:]
	second := strings.IndexByte(rest, '/')
	if second < 0 {
		return u.raw, nil
	}
	return u.raw[:len("rsync://")+strings.IndexByte(u.raw[len("rsync://"):], '/')+1+second+1], nil
}

// Https is an https:// URI, used as the notification URI of an RRDP
// repository.
type Https struct {
	raw string
}

// ParseHttps parses s as an https URI.
func ParseHttps(s string) (Https, error) {
	if !hasScheme(s, "https") {
		return Https{}, ErrInvalid
	}
	// Reject anything that isn't even structurally a URI so a garbage
	// key base never silently round-trips as "valid".
	if _, err := url.Parse(s); err != nil {
		return Https{}, ErrInvalid
	}
	return Https{raw: s}, nil
}

// String returns the URI text.
func (u Https) String() string { return u.raw }

// Tal is a trust anchor locator URI: the https or rsync URI from which a
// trust anchor's certificate was originally fetched. It keys the trust
// anchor keyspace.
type Tal struct {
	raw string
}

// ParseTal parses s as a TAL URI, accepting either an rsync or an https
// scheme as RFC 8630 allows.
func ParseTal(s string) (Tal, error) {
	if !hasScheme(s, "rsync") && !hasScheme(s, "https") {
		return Tal{}, ErrInvalid
	}
	return Tal{raw: s}, nil
}

// String returns the URI text, which is also the key used to look the
// trust anchor certificate up in the store.
func (u Tal) String() string { return u.raw }

func hasScheme(s, scheme string) bool {
	return strings.HasPrefix(s, scheme+"://")
}
