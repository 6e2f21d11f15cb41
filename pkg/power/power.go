package power

import "math"

// Bucket scales a power reading down by 10, rounds it half to even and
// then floors it to a multiple of 10. Both steps are kept as is so the
// result matches what the arduino side has always received, ie 734 W -> 70.
// Values outside ±MaxPower are clamped before bucketing so the int conversion is defined.
func Bucket(p float64) int {
	p = math.Max(-MaxPower, math.Min(MaxPower, p))
	r := math.RoundToEven(p / 10)
	return int(math.Floor(r/10) * 10)
}

// MaxPower is far above any meter reading and keeps Bucket inside int32.
const MaxPower = 1e9
