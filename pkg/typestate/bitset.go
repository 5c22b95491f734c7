package typestate

import (
	"math/bits"
	"strconv"
	"strings"
)

// bitset is an immutable set of type ids. The backing slice is trimmed so
// that its last word is non-zero, which makes equal sets compare equal word
// by word. Operations never modify their receiver.
type bitset []uint64

func bitsetOf(ids ...int) bitset {
	maxID := -1
	for _, id := range ids {
		maxID = max(maxID, id)
	}
	if maxID < 0 {
		return nil
	}
	b := make(bitset, maxID/64+1)
	for _, id := range ids {
		b[id/64] |= 1 << (uint(id) % 64)
	}
	return b
}

func (b bitset) has(id int) bool {
	w := id / 64
	return id >= 0 && w < len(b) && b[w]&(1<<(uint(id)%64)) != 0
}

func (b bitset) count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}

func (b bitset) with(id int) bitset {
	if b.has(id) {
		return b
	}
	out := make(bitset, max(len(b), id/64+1))
	copy(out, b)
	out[id/64] |= 1 << (uint(id) % 64)
	return out
}

func (b bitset) or(o bitset) bitset {
	if len(b) < len(o) {
		b, o = o, b
	}
	out := make(bitset, len(b))
	copy(out, b)
	for i, w := range o {
		out[i] |= w
	}
	return out
}

func (b bitset) and(o bitset) bitset {
	n := min(len(b), len(o))
	out := make(bitset, n)
	for i := range n {
		out[i] = b[i] & o[i]
	}
	return out.trim()
}

func (b bitset) andNot(o bitset) bitset {
	out := make(bitset, len(b))
	copy(out, b)
	for i := range min(len(b), len(o)) {
		out[i] &^= o[i]
	}
	return out.trim()
}

func (b bitset) trim() bitset {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	if n == 0 {
		return nil
	}
	return b[:n:n]
}

func (b bitset) equal(o bitset) bool {
	if len(b) != len(o) {
		return false
	}
	for i := range b {
		if b[i] != o[i] {
			return false
		}
	}
	return true
}

func (b bitset) intersects(o bitset) bool {
	for i := range min(len(b), len(o)) {
		if b[i]&o[i] != 0 {
			return true
		}
	}
	return false
}

// subsetOf reports whether every id of b is also in o.
func (b bitset) subsetOf(o bitset) bool {
	if len(b) > len(o) {
		return false
	}
	for i, w := range b {
		if w&^o[i] != 0 {
			return false
		}
	}
	return true
}

// first returns the smallest id, or -1 for the empty set.
func (b bitset) first() int {
	for i, w := range b {
		if w != 0 {
			return i*64 + bits.TrailingZeros64(w)
		}
	}
	return -1
}

// last returns the largest id, or -1 for the empty set.
func (b bitset) last() int {
	for i := len(b) - 1; i >= 0; i-- {
		if w := b[i]; w != 0 {
			return i*64 + 63 - bits.LeadingZeros64(w)
		}
	}
	return -1
}

func (b bitset) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	sep := ""
	for i, w := range b {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			sb.WriteString(sep)
			sb.WriteString(strconv.Itoa(i*64 + tz))
			sep = ","
			w &= w - 1
		}
	}
	sb.WriteByte('}')
	return sb.String()
}
