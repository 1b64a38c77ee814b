// Package progress holds the experience/level math shared by the local
// profile and by crew members.
package progress

import "math"

// MaxLevel is the highest reachable level. Experience at MaxLevel stops one
// short of the threshold.
const MaxLevel = 99

// Threshold returns the experience needed to leave the given level:
// floor(100 × 1.5^(level−1)). Levels below 1 are treated as level 1, and the
// result saturates at math.MaxInt.
func Threshold(level int) int {
	if level < 1 {
		level = 1
	}
	f := math.Floor(100 * math.Pow(1.5, float64(level-1)))
	if f >= math.MaxInt {
		return math.MaxInt
	}
	return int(f)
}

// Apply adds amount to exp and rolls overflow into levels until
// exp < Threshold(level). A single grant can cross several levels, so this
// loops rather than branching once. Non-positive amounts change nothing
// beyond normalising level to [1, MaxLevel] and exp to [0, threshold).
func Apply(level, exp, amount int) (newLevel, newExp int, leveledUp bool) {
	level = min(max(level, 1), MaxLevel)
	exp = max(exp, 0)
	if amount > 0 {
		if amount > math.MaxInt-exp {
			exp = math.MaxInt
		} else {
			exp += amount
		}
	}

	start := level
	for level < MaxLevel && exp >= Threshold(level) {
		exp -= Threshold(level)
		level++
	}
	if level == MaxLevel {
		exp = min(exp, Threshold(MaxLevel)-1)
	}
	return level, exp, level > start
}
