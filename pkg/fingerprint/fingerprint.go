// Package fingerprint computes the stable cache key for a cacheable
// request: a SHA-256 hash over the canonical CBOR encoding of the
// request's identifying parameters plus a globally refreshable "bump"
// salt.
package fingerprint

import (
	"crypto/sha256"

	"github.com/ensembl-io/genoverse-backend/pkg/wire"
)

// Fingerprint is the opaque 32-byte cache key.
type Fingerprint [sha256.Size]byte

// Request carries the parameters that make two requests distinguishable
// for caching purposes. Scope is encoded via its own canonical map so
// that permuting its keys (a Go map has no iteration order) never
// changes the resulting fingerprint.
type Request struct {
	Prefix     string
	Bump       string
	VersionEgs uint32
	Channel    []any
	Endpoint   string
	PanelBytes []byte
	Scope      map[string][]string
	Accept     string
}

// Compute returns the fingerprint for r. Two requests that differ in any
// of {channel, endpoint, panel, scope, accept, version, bump} must (and,
// by construction here, will) produce different fingerprints.
func Compute(r Request) (Fingerprint, error) {
	canonicalScope := make(map[string]any, len(r.Scope))
	for k, v := range r.Scope {
		canonicalScope[k] = v
	}

	shape := []any{
		r.Prefix,
		r.Bump,
		r.VersionEgs,
		[]any{
			r.Channel,
			r.Endpoint,
			r.PanelBytes,
			canonicalScope,
			r.Accept,
		},
	}

	encoded, err := wire.MarshalCanonical(shape)
	if err != nil {
		return Fingerprint{}, err
	}

	return sha256.Sum256(encoded), nil
}

// String renders the fingerprint as a cache-key-safe hex string.
func (f Fingerprint) String() string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(f)*2)
	for i, b := range f {
		out[i*2] = hextable[b>>4]
		out[i*2+1] = hextable[b&0x0f]
	}
	return string(out)
}
