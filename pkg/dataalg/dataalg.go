// Package dataalg implements the columnar "data algorithm" encoder: a
// small expression language, selected by a short tag string, that turns
// a column vector (numbers, strings, or booleans) into a tagged byte
// stream the genome-browser client decodes by re-running the same tag.
//
// The tag grammar reads left-to-right; the engine never inspects the
// resulting fragments, it only threads the tag string alongside them.
package dataalg

import "fmt"

type cursor struct {
	code []byte
	pos  int
}

func (c *cursor) next() (byte, error) {
	if c.pos >= len(c.code) {
		return 0, fmt.Errorf("dataalg: tag %q ended unexpectedly", string(c.code))
	}
	b := c.code[c.pos]
	c.pos++
	return b, nil
}

// EncodeNumbers runs the numeric branch of the tag grammar:
//
//	N (D|Z)* R (A|L)
//
// D deltas the vector, Z zigzags it, R marks the switch to a concrete
// byte representation, and the terminal A appends the vector untouched
// (for later opaque re-use) or L lesqlite2-encodes it.
func EncodeNumbers(tag string, values []int64) ([]any, error) {
	c := &cursor{code: []byte(tag)}
	first, err := c.next()
	if err != nil {
		return nil, err
	}
	if first != 'N' {
		return nil, fmt.Errorf("dataalg: tag %q is not a numeric tag", tag)
	}

	expr := []any{tag}
	return numberBody(c, expr, values)
}

// numberBody implements the (D|Z)* R (A|L) continuation shared by plain
// numeric tags and the index half of a string dictionary tag (SYRLZ and
// friends), which enters here without a leading 'N'.
func numberBody(c *cursor, expr []any, values []int64) ([]any, error) {
	op, err := c.next()
	if err != nil {
		return nil, err
	}

	switch op {
	case 'D':
		return numberBody(c, expr, Delta(values))
	case 'Z':
		zz := make([]int64, len(values))
		for i, v := range values {
			zz[i] = int64(Zigzag(v))
		}
		return numberBody(c, expr, zz)
	case 'R':
		term, err := c.next()
		if err != nil {
			return nil, err
		}
		switch term {
		case 'A':
			out := make([]int64, len(values))
			copy(out, values)
			return append(expr, out), nil
		case 'L':
			buf := make([]byte, 0, len(values))
			for _, v := range values {
				if v < 0 {
					return nil, fmt.Errorf("dataalg: lesqlite2 terminal requires non-negative values, got %d (forgot a Z?)", v)
				}
				buf = EncodeLesqlite2(buf, uint64(v))
			}
			return append(expr, buf), nil
		default:
			return nil, fmt.Errorf("dataalg: unknown numeric terminal %q", term)
		}
	default:
		return nil, fmt.Errorf("dataalg: unknown numeric operator %q", op)
	}
}

// EncodeStrings runs the string branch of the grammar: S (A|C|Z|Y ...).
func EncodeStrings(tag string, values []string) ([]any, error) {
	c := &cursor{code: []byte(tag)}
	first, err := c.next()
	if err != nil {
		return nil, err
	}
	if first != 'S' {
		return nil, fmt.Errorf("dataalg: tag %q is not a string tag", tag)
	}

	expr := []any{tag}
	return stringBody(c, expr, values)
}

func stringBody(c *cursor, expr []any, values []string) ([]any, error) {
	op, err := c.next()
	if err != nil {
		return nil, err
	}

	switch op {
	case 'A':
		out := make([]string, len(values))
		copy(out, values)
		return append(expr, out), nil
	case 'C':
		if len(values) != 1 {
			return nil, fmt.Errorf("dataalg: SC terminal requires exactly one value, got %d", len(values))
		}
		return append(expr, []byte(values[0])), nil
	case 'Z':
		var buf []byte
		for _, v := range values {
			buf = append(buf, v...)
			buf = append(buf, 0)
		}
		return append(expr, buf), nil
	case 'Y':
		keys, indexes := classify(values)
		indexInts := make([]int64, len(indexes))
		for i, v := range indexes {
			indexInts[i] = int64(v)
		}

		expr, err = numberBody(c, expr, indexInts)
		if err != nil {
			return nil, err
		}
		return stringBody(c, expr, keys)
	default:
		return nil, fmt.Errorf("dataalg: unknown string operator %q", op)
	}
}

// classify assigns each distinct value in values a dictionary index in
// first-occurrence order, returning the deduplicated key list and the
// per-element index vector. Deterministic ordering matters here: the
// dictionary is part of the encoded reply, so an arbitrary (e.g.
// hash-order) dictionary would make the same request encode to
// different bytes from run to run.
func classify(values []string) (keys []string, indexes []int) {
	seen := make(map[string]int, len(values))
	indexes = make([]int, len(values))
	for i, v := range values {
		idx, ok := seen[v]
		if !ok {
			idx = len(keys)
			seen[v] = idx
			keys = append(keys, v)
		}
		indexes[i] = idx
	}
	return keys, indexes
}

// EncodeBooleans runs the boolean branch of the grammar: B (A|B).
func EncodeBooleans(tag string, values []bool) ([]any, error) {
	c := &cursor{code: []byte(tag)}
	first, err := c.next()
	if err != nil {
		return nil, err
	}
	if first != 'B' {
		return nil, fmt.Errorf("dataalg: tag %q is not a boolean tag", tag)
	}

	op, err := c.next()
	if err != nil {
		return nil, err
	}

	expr := []any{tag}
	switch op {
	case 'A':
		out := make([]bool, len(values))
		copy(out, values)
		return append(expr, out), nil
	case 'B':
		buf := make([]byte, len(values))
		for i, v := range values {
			if v {
				buf[i] = 1
			}
		}
		return append(expr, buf), nil
	default:
		return nil, fmt.Errorf("dataalg: unknown boolean terminal %q", op)
	}
}
