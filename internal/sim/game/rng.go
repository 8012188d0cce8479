package game

// All randomness in the simulation flows through one of two doors. Rand is
// the host-owned sequential generator: every stochastic reducer and the week
// scheduler draw from it in a fixed order, so two games built from the same
// seed and fed the same action stream stay digest-identical. Guests never
// roll anything; they only receive results. wageNoise is the second door: a
// pure hash of (jobID, week), so a job shows the same offer all week no
// matter how many times it is asked or how many draws happen in between.

func mix64(v uint64) uint64 {
	v ^= v >> 30
	v *= 0xbf58476d1ce4e5b9
	v ^= v >> 27
	v *= 0x94d049bb133111eb
	v ^= v >> 31
	return v
}

func hashStringWeek(seed int64, s string, week int) uint64 {
	v := uint64(seed) ^ (uint64(uint32(week)) * 0x9e3779b97f4a7c15)
	for i := 0; i < len(s); i++ {
		v = (v ^ uint64(s[i])) * 0x100000001b3
	}
	return mix64(v)
}

// Rand is a splitmix64 sequence. Its state is part of the snapshot so a
// resumed game continues the exact same draw sequence.
type Rand struct {
	state uint64
}

func NewRand(seed int64) *Rand {
	return &Rand{state: mix64(uint64(seed) ^ 0x632be59bd9b4e019)}
}

func (r *Rand) next() uint64 {
	r.state += 0x9e3779b97f4a7c15
	return mix64(r.state)
}

// State exposes the raw generator state for snapshot export.
func (r *Rand) State() uint64 { return r.state }

// Restore resets the generator to a snapshotted state.
func (r *Rand) Restore(state uint64) { r.state = state }

// Intn returns a value in [0, n). n <= 0 returns 0.
func (r *Rand) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.next() % uint64(n))
}

// Permille returns a value in [0, 1000).
func (r *Rand) Permille() int { return r.Intn(1000) }

// Roll reports whether a permille-chance event fires.
func (r *Rand) Roll(chancePermille int) bool {
	if chancePermille <= 0 {
		return false
	}
	if chancePermille >= 1000 {
		return true
	}
	return r.Permille() < chancePermille
}

// Between returns a value in [lo, hi]. Degenerate ranges return lo.
func (r *Rand) Between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.Intn(hi-lo+1)
}

// wageNoise returns the week's wage noise for a job in permille, in
// [lo, hi]. Pure in (jobID, week): replay stable across peers and
// independent of the sequential generator.
func wageNoise(seed int64, jobID string, week int, loPermille, hiPermille int) int {
	if hiPermille <= loPermille {
		return loPermille
	}
	h := hashStringWeek(seed, jobID, week)
	span := uint64(hiPermille - loPermille + 1)
	return loPermille + int(h%span)
}
