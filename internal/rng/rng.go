// Package rng implements the deterministic pseudo-random source shared by
// every stage of the generator and reducer. A single splitmix64 stream,
// given the same seed and the same sequence of calls, produces bit-exact
// output across runs and across platforms (spec.md §4.A, §8 S1).
package rng

import "math/bits"

// Random is a splitmix64-seeded stream. It is not safe for concurrent use;
// each fuzzer worker owns one Random for its entire seed (spec.md §5).
type Random struct {
	state uint64
}

// New returns a Random seeded deterministically from seed.
func New(seed uint64) *Random {
	return &Random{state: seed}
}

// NextUint64 advances the stream and returns the next 64-bit value.
func (r *Random) NextUint64() uint64 {
	r.state += 0x9E3779B97F4A7C15
	z := r.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// NextInRange returns a uniform value in [lo, hi). Panics if hi <= lo.
func (r *Random) NextInRange(lo, hi int64) int64 {
	if hi <= lo {
		panic("rng: NextInRange requires hi > lo")
	}
	span := uint64(hi - lo)
	// Lemire's bounded reduction, avoids a modulo bias for non-power-of-two spans.
	hiBits, lo64 := bits.Mul64(r.NextUint64(), span)
	if lo64 < span {
		thresh := -span % span
		for lo64 < thresh {
			hiBits, lo64 = bits.Mul64(r.NextUint64(), span)
		}
	}
	return lo + int64(hiBits)
}

// NextInRangeInclusive returns a uniform value in [lo, hi], unlike
// NextInRange's half-open [lo, hi). It exists because the naive
// "NextInRange(lo, hi+1)" fails when hi is math.MaxInt64: hi+1 overflows
// back to math.MinInt64, which can make lo == hi+1 (tripping NextInRange's
// hi<=lo panic) or put the computed bound below lo entirely. Panics if
// hi < lo.
func (r *Random) NextInRangeInclusive(lo, hi int64) int64 {
	if hi < lo {
		panic("rng: NextInRangeInclusive requires hi >= lo")
	}
	if lo == hi {
		return lo
	}
	// span is hi-lo, one less than the count of values in [lo, hi], computed in
	// uint64 so the lo=MinInt64/hi=MaxInt64 case (where hi-lo overflows
	// int64) wraps correctly instead of panicking.
	span := uint64(hi) - uint64(lo)
	if span == ^uint64(0) {
		// The full 64-bit domain: every bit pattern NextUint64 can produce
		// maps bijectively (two's complement) onto int64's full range, so
		// a raw draw is already uniform over [lo, hi] with no reduction
		// needed.
		return int64(r.NextUint64())
	}
	count := span + 1
	hiBits, lo64 := bits.Mul64(r.NextUint64(), count)
	if lo64 < count {
		thresh := -count % count
		for lo64 < thresh {
			hiBits, lo64 = bits.Mul64(r.NextUint64(), count)
		}
	}
	return lo + int64(hiBits)
}

// FlipCoin returns true with probability p (0 <= p <= 1).
func (r *Random) FlipCoin(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	const scale = 1 << 53
	return float64(r.NextUint64()>>11)/float64(scale) < p
}

// PickIndex returns a uniform index in [0, n). Panics if n <= 0.
func (r *Random) PickIndex(n int) int {
	if n <= 0 {
		panic("rng: PickIndex requires n > 0")
	}
	return int(r.NextInRange(0, int64(n)))
}

// Weighted is one entry of a weighted category distribution.
type Weighted struct {
	Weight int
}

// SampleWeighted picks an index into weights proportionally to each entry's
// Weight. Entries with non-positive weight are never chosen unless all
// weights are non-positive, in which case the first entry is returned.
func (r *Random) SampleWeighted(weights []int) int {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total == 0 {
		return 0
	}
	target := r.NextInRange(0, int64(total))
	running := int64(0)
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		running += int64(w)
		if target < running {
			return i
		}
	}
	return len(weights) - 1
}

// Perm returns a pseudo-random permutation of [0, n) via Fisher-Yates,
// using this stream (spec.md §9 "Fisher-Yates-shuffled traversal order").
func (r *Random) Perm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := r.PickIndex(i + 1)
		p[i], p[j] = p[j], p[i]
	}
	return p
}

// RecursionRejection decides, for a given recursion depth, whether a
// recursive production should still be allowed to fire. Below Cap it always
// allows recursion; above Cap the chance decays geometrically by DecayRate
// per extra level, per spec.md §4.A and the Open Questions default (cap 7,
// p = 0.4 per level above cap).
type RecursionRejection struct {
	Cap       int
	DecayRate float64
}

// DefaultRecursionRejection returns the spec's suggested default policy.
func DefaultRecursionRejection() RecursionRejection {
	return RecursionRejection{Cap: 7, DecayRate: 0.4}
}

// Allow reports whether generation should recurse one more level given the
// current depth.
func (p RecursionRejection) Allow(r *Random, depth int) bool {
	if depth < p.Cap {
		return true
	}
	over := depth - p.Cap + 1
	keepProb := 1.0
	for i := 0; i < over; i++ {
		keepProb *= 1 - p.DecayRate
	}
	if keepProb < 0 {
		keepProb = 0
	}
	return r.FlipCoin(keepProb)
}
