// Package search implements the bisection-then-scan lookup used by the
// series indices and the sub-period resolver.
package search

// Window is the number of remaining candidates at which bisection stops and
// a linear scan takes over.
const Window = 5

// Find searches the ordered positions [0, n). cmp(i) reports where element i
// lies relative to the target: negative when it is ordered before the target,
// zero on a match, positive when it is ordered after.
//
// Find returns the first position whose element does not lie before the
// target, or n if there is none; found reports whether that element matches.
// The returned position is therefore both the match and the insertion point.
func Find(n int, cmp func(i int) int) (pos int, found bool) {
	lo, hi := 0, n
	for hi-lo > Window {
		mid := lo + (hi-lo)/2
		switch c := cmp(mid); {
		case c < 0:
			lo = mid + 1
		case c > 0:
			hi = mid
		default:
			return mid, true
		}
	}
	for i := lo; i < hi; i++ {
		if c := cmp(i); c >= 0 {
			return i, c == 0
		}
	}
	return hi, false
}

// Slice runs Find over the elements of s.
func Slice[T any](s []T, cmp func(T) int) (pos int, found bool) {
	return Find(len(s), func(i int) int { return cmp(s[i]) })
}
