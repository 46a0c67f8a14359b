// Package pow2 provides the power-of-two bit arithmetic shared by the range
// engine and the inclusion/consistency provers: decomposing a size into its
// binary weights and locating the largest perfect subtree strictly below a
// given span.
package pow2

import "math/bits"

// Log2Floor returns floor(log2(n)) for n > 0. It panics if n is 0, since the
// logarithm of zero is undefined for the callers in this package.
func Log2Floor(n uint64) uint {
	if n == 0 {
		panic("pow2: Log2Floor(0)")
	}
	return uint(bits.Len64(n) - 1)
}

// Decompose returns the exponents of the powers of two that sum to n, in
// strictly decreasing order. Decompose(11) == [3, 1, 0] since 8+2+1 == 11.
// Decompose(0) returns an empty slice.
func Decompose(n uint64) []uint {
	var exponents []uint
	for n > 0 {
		p := Log2Floor(n)
		exponents = append(exponents, p)
		n -= uint64(1) << p
	}
	return exponents
}

// SplitPoint returns the width of the largest perfect subtree strictly
// smaller than span, i.e. 1 << floor(log2(span)), halved when span is
// itself already a power of two. Requires span >= 2.
func SplitPoint(span uint64) uint64 {
	k := uint64(1) << Log2Floor(span)
	if k == span {
		k >>= 1
	}
	return k
}
