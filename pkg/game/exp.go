package game

import "math"

// Experience gain per step is drawn from N(expMean, expStdDev) and clamped.
const (
	expMean    = 5.0
	expStdDev  = 3.2
	MinExpGain = 2
	MaxExpGain = 10
)

// RollExp draws the experience gained on a step.
func RollExp(r Random) uint32 {
	v := math.Round(expMean + expStdDev*r.NormFloat64())
	return uint32(min(max(v, MinExpGain), MaxExpGain))
}

// RequiredExp returns the experience needed to advance past level.
func RequiredExp(level uint32) uint32 {
	return level * 50 / 2
}

// ApplyExp adds gain to exp and levels up for as long as the accumulated
// experience covers the requirement of the current level, so one large gain
// can advance several levels. It returns the new level, the leftover
// experience and the number of levels gained.
func ApplyExp(level, exp, gain uint32) (newLevel, newExp, levelsGained uint32) {
	if level < 1 {
		level = 1
	}
	exp += gain
	for req := RequiredExp(level); exp >= req; req = RequiredExp(level) {
		exp -= req
		level++
		levelsGained++
	}
	return level, exp, levelsGained
}
