package simulator

// Source is the random source threaded through every draw. *rand.Rand satisfies it.
type Source interface {
	Intn(n int) int
	Float64() float64
}

// intBetween draws uniformly from [lo, hi].
func intBetween(rng Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo+1)
}

func pick[T any](rng Source, values []T) T {
	return values[rng.Intn(len(values))]
}

// weightedIndex draws an index proportionally to weights. The last index absorbs rounding.
func weightedIndex(rng Source, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total
	cum := 0.0
	for i, w := range weights {
		cum += w
		if r < cum {
			return i
		}
	}
	return len(weights) - 1
}
