package sim

// Next advances a mulberry32 stream and returns a float in [0, 1).
// The state is the only input; every participant that starts from the same
// seed and makes the same calls sees the same sequence.
func Next(state *uint32) float64 {
	*state += 0x6D2B79F5
	t := *state
	t = (t ^ t>>15) * (t | 1)
	t ^= t + (t^t>>7)*(t|61)
	return float64(t^t>>14) / 4294967296.0
}

// Range returns a value in [min, max) drawn from the stream
func Range(state *uint32, min, max float64) float64 {
	return Next(state)*(max-min) + min
}

// Chance reports whether a draw falls below p
func Chance(state *uint32, p float64) bool {
	return Next(state) < p
}

// Intn returns an int in [0, n)
func Intn(state *uint32, n int) int {
	if n <= 0 {
		return 0
	}
	i := int(Next(state) * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
