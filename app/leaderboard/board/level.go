package board

import (
	"math"
	"math/bits"
)

// DefaultLevelUnit is the experience step between consecutive levels.
const DefaultLevelUnit int64 = 100

// Threshold returns the cumulative experience needed to reach level:
// unit * (1 + 2 + ... + level-1). Results saturate at math.MaxInt64.
func Threshold(level, unit int64) int64 {
	if unit <= 0 {
		unit = DefaultLevelUnit
	}
	if level <= 1 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(level-1), uint64(level))
	if hi != 0 {
		return math.MaxInt64
	}
	steps := lo / 2
	hi, lo = bits.Mul64(steps, uint64(unit))
	if hi != 0 || lo > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(lo)
}

// Level maps experience to a level. Level(0) is 1 and the result never
// decreases as xp grows. Negative experience counts as zero.
func Level(xp, unit int64) int64 {
	if unit <= 0 {
		unit = DefaultLevelUnit
	}
	if xp <= 0 {
		return 1
	}

	// Closed-form guess from unit*L*(L-1)/2 <= xp, corrected for float error.
	level := int64((1 + math.Sqrt(1+8*float64(xp)/float64(unit))) / 2)
	if level < 1 {
		level = 1
	}
	for level > 1 && Threshold(level, unit) > xp {
		level--
	}
	for {
		next := Threshold(level+1, unit)
		if next == math.MaxInt64 || next > xp {
			break
		}
		level++
	}
	return level
}

// Progress reports the level for xp, how much experience has been earned into
// that level and how much the whole level spans.
func Progress(xp, unit int64) (level, into, span int64) {
	if xp < 0 {
		xp = 0
	}
	level = Level(xp, unit)
	current := Threshold(level, unit)
	next := Threshold(level+1, unit)
	return level, xp - current, next - current
}
