// Package wire implements the self-describing binary codec used on the
// packet boundary: CBOR bodies, deterministic map ordering for
// fingerprint-stable payloads, and a splice mode that lets a handler
// re-emit an already-encoded reply fragment without a decode/re-encode
// round trip.
package wire

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	canonMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort: cbor.SortLengthFirst,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: building default encode mode: %v", err))
	}

	canonMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: building canonical encode mode: %v", err))
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any{}),
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: building decode mode: %v", err))
	}
}

// KV is a single map entry for EncodeMap. Key must encode to a CBOR text
// string or integer; Value is encoded with the package's default mode
// unless it is a RawFragment, in which case the bytes are spliced in
// verbatim.
type KV struct {
	Key   string
	Value any
}

// RawFragment wraps bytes that are already valid CBOR and should be
// written as-is rather than re-encoded. This is how the DataRouter
// splices a cached reply payload back onto the wire.
type RawFragment []byte

// Marshal encodes v using the package's default (length-first sorted,
// for small deterministic maps) mode.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// MarshalCanonical encodes v using RFC 8949 canonical ordering. Used for
// fingerprint input, where map key order must be stable across processes
// and Go versions, and for other byte-stable encodings (jump cache
// entries, track value dictionary keys).
func MarshalCanonical(v any) ([]byte, error) {
	return canonMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a dynamic value tree: maps decode to
// map[string]any when keys are text, []any for arrays, and the usual
// scalar types otherwise.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// EncodeMap writes a definite-length CBOR map with the given entries, in
// the order given, splicing any RawFragment values in literally. This
// lets a handler write the map header itself and append a pre-encoded
// reply payload without decoding it first.
func EncodeMap(pairs ...KV) ([]byte, error) {
	buf := &bytes.Buffer{}

	header, err := mapHeader(len(pairs))
	if err != nil {
		return nil, err
	}
	buf.Write(header)

	for _, kv := range pairs {
		keyBytes, err := encMode.Marshal(kv.Key)
		if err != nil {
			return nil, fmt.Errorf("wire: encoding map key %q: %w", kv.Key, err)
		}
		buf.Write(keyBytes)

		if raw, ok := kv.Value.(RawFragment); ok {
			buf.Write(raw)
			continue
		}

		valBytes, err := encMode.Marshal(kv.Value)
		if err != nil {
			return nil, fmt.Errorf("wire: encoding map value for key %q: %w", kv.Key, err)
		}
		buf.Write(valBytes)
	}

	return buf.Bytes(), nil
}

// EncodeArray writes a definite-length CBOR array of elems, in order,
// splicing any RawFragment values in literally. This is the array
// counterpart to EncodeMap: it lets the packet engine nest an
// already-encoded reply (e.g. the DataRouter's cached `[kind, payload]`
// pair) inside the outer "responses" array without a decode/re-encode
// round trip.
func EncodeArray(elems ...any) ([]byte, error) {
	buf := &bytes.Buffer{}

	header, err := arrayHeader(len(elems))
	if err != nil {
		return nil, err
	}
	buf.Write(header)

	for i, elem := range elems {
		if raw, ok := elem.(RawFragment); ok {
			buf.Write(raw)
			continue
		}

		elemBytes, err := encMode.Marshal(elem)
		if err != nil {
			return nil, fmt.Errorf("wire: encoding array element %d: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	return buf.Bytes(), nil
}

// arrayHeader returns the CBOR major-type-4 (array) header for n elements.
func arrayHeader(n int) ([]byte, error) {
	switch {
	case n < 24:
		return []byte{0x80 | byte(n)}, nil
	case n < 1<<8:
		return []byte{0x98, byte(n)}, nil
	case n < 1<<16:
		return []byte{0x99, byte(n >> 8), byte(n)}, nil
	default:
		return nil, fmt.Errorf("wire: array too large to frame (%d elements)", n)
	}
}

// mapHeader returns the CBOR major-type-5 (map) header for n pairs. cbor
// does not expose header-only encoding, so the header bytes are written
// directly from CBOR's byte layout: major type 5, argument n.
func mapHeader(n int) ([]byte, error) {
	switch {
	case n < 24:
		return []byte{0xa0 | byte(n)}, nil
	case n < 1<<8:
		return []byte{0xb8, byte(n)}, nil
	case n < 1<<16:
		return []byte{0xb9, byte(n >> 8), byte(n)}, nil
	default:
		return nil, fmt.Errorf("wire: map too large to frame (%d entries)", n)
	}
}
