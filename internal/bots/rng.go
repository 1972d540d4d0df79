package bots

import (
	"math"

	"massivegame/server/internal/physics"
)

// RNG is the subset of *math/rand.Rand the decision and action steps need.
// Accepting an interface instead of *rand.Rand lets tests supply a
// deterministic sequence.
type RNG interface {
	Float64() float64
	Intn(n int) int
}

// randomPointNear picks a point uniformly in an annulus around center, used
// both for stuck-unsticking and TDM patrol fallback targets.
func randomPointNear(center Vec2, minDist, maxDist float64, rng RNG) Vec2 {
	if maxDist < minDist {
		maxDist = minDist
	}
	dist := minDist + rng.Float64()*(maxDist-minDist)
	angle := rng.Float64() * 2 * math.Pi
	return center.Add(physics.FromAngle(angle).Scale(dist))
}
