package dataalg

// EncodeLesqlite2 appends the lesqlite2 variable-length encoding of v to
// dst and returns the extended slice. lesqlite2 favours small values:
// most genomic deltas fit in one byte.
//
// Layout:
//
//	v < 178      -> 1 byte:  v
//	v < 16562    -> 2 bytes: 178+a, b            where (a,b) = divmod(v-178, 256)
//	v < 540850   -> 3 bytes: 242+a, c, b         where (a,b) = divmod(v-16562, 65536), (b,c) = divmod(b, 256)
//	otherwise    -> 247+n, little-endian bytes of v, n = byte length
func EncodeLesqlite2(dst []byte, v uint64) []byte {
	switch {
	case v < 178:
		return append(dst, byte(v))
	case v < 16562:
		a, b := divmod(v-178, 256)
		return append(dst, byte(178+a), byte(b))
	case v < 540850:
		a, b := divmod(v-16562, 65536)
		b, c := divmod(b, 256)
		return append(dst, byte(242+a), byte(c), byte(b))
	default:
		pos := len(dst)
		dst = append(dst, 247)
		n := byte(0)
		for v > 0 {
			n++
			dst = append(dst, byte(v&0xff))
			v >>= 8
		}
		dst[pos] += n
		return dst
	}
}

// DecodeLesqlite2 reads one lesqlite2-encoded value from the front of
// src and returns its value along with the number of bytes consumed.
func DecodeLesqlite2(src []byte) (value uint64, n int) {
	if len(src) == 0 {
		return 0, 0
	}

	first := src[0]
	switch {
	case first < 178:
		return uint64(first), 1
	case first < 242:
		if len(src) < 2 {
			return 0, 0
		}
		a := uint64(first) - 178
		b := uint64(src[1])
		return 178 + a*256 + b, 2
	case first < 250:
		if len(src) < 3 {
			return 0, 0
		}
		a := uint64(first) - 242
		c := uint64(src[1])
		b := uint64(src[2])
		return 16562 + a*65536 + b*256 + c, 3
	default:
		extra := int(first) - 247
		if len(src) < 1+extra {
			return 0, 0
		}
		var v uint64
		for i := 0; i < extra; i++ {
			v |= uint64(src[1+i]) << (8 * i)
		}
		return v, 1 + extra
	}
}

func divmod(a, b uint64) (q, r uint64) {
	return a / b, a % b
}

// Zigzag interleaves the sign of x into its low bit so the magnitude can
// be lesqlite2-encoded as an unsigned value: non-negative numbers map to
// even values, negative numbers to odd values.
func Zigzag(x int64) uint64 {
	if x >= 0 {
		return uint64(x) * 2
	}
	return uint64(-x)*2 - 1
}

// Unzigzag inverts Zigzag.
func Unzigzag(z uint64) int64 {
	if z%2 == 0 {
		return int64(z / 2)
	}
	return -int64((z + 1) / 2)
}

// Delta computes successive differences: out[0] = x[0], out[i] = x[i] - x[i-1].
func Delta(x []int64) []int64 {
	out := make([]int64, len(x))
	var prev int64
	for i, v := range x {
		out[i] = v - prev
		prev = v
	}
	return out
}

// Undelta inverts Delta.
func Undelta(d []int64) []int64 {
	out := make([]int64, len(d))
	var acc int64
	for i, v := range d {
		acc += v
		out[i] = acc
	}
	return out
}
