// Package respawn chooses spawn points for newly-joined or killed players and
// schedules destructible wall restoration after a health-tiered delay.
package respawn

import (
	"math"
	"math/rand"

	"massivegame/server/internal/physics"
)

// Tag classifies a spawn point's eligibility.
type Tag uint8

const (
	TagArena Tag = iota
	TagSafe
	TagContested
	TagTeamBase
)

// Point is one registered spawn location.
type Point struct {
	Position Vec2
	Tag      Tag
	Team     uint8 // only meaningful when Tag == TagTeamBase
	LastUsed float64
}

// Vec2 aliases physics.Vec2 so callers outside this package don't need to
// import physics just to build a Point.
type Vec2 = physics.Vec2

// WallProbe answers whether a circle of the given radius centered at p
// overlaps any active wall, used to filter obstructed spawn points.
type WallProbe func(p Vec2, radius float64) bool

// Manager holds the registered spawn points and chooses among them.
type Manager struct {
	points               []*Point
	playerRadius         float64
	safeSpawnRadius      float64
	protectionSeconds    float64
	protectionCapFactor  float64
	rng                  *rand.Rand
}

// Config bundles the tunables Manager needs from internal/config.
type Config struct {
	PlayerRadius                 float64
	SafeSpawnRadius               float64
	SpawnProtectionSeconds         float64
	SpawnProtectionCapMultiplier   float64
}

// NewManager constructs a Manager over the given spawn points.
func NewManager(points []*Point, cfg Config, rng *rand.Rand) *Manager {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Manager{
		points:              points,
		playerRadius:        cfg.PlayerRadius,
		safeSpawnRadius:     cfg.SafeSpawnRadius,
		protectionSeconds:   cfg.SpawnProtectionSeconds,
		protectionCapFactor: cfg.SpawnProtectionCapMultiplier,
		rng:                 rng,
	}
}

type candidate struct {
	point *Point
	score float64
}

func compatible(playerTeam uint8, p *Point) bool {
	if p.Tag != TagTeamBase {
		return true
	}
	if playerTeam == 0 {
		return false // neutral players may spawn at neutral points only
	}
	return p.Team == playerTeam // team players cannot spawn at the opposing base
}

// ChooseSpawn implements the spawn-point scoring and selection in spec.md
// §4.7. now is the current simulation time in seconds (monotonic);
// deathSite is nil if the player has no prior death position (e.g. first
// join); enemyPositions is the full set of living opposing-team positions.
func (m *Manager) ChooseSpawn(playerTeam uint8, now float64, deathSite *Vec2, enemyPositions []Vec2, probe WallProbe) Vec2 {
	cap := m.protectionSeconds * m.protectionCapFactor

	var candidates []candidate
	var unobstructed []*Point
	for _, p := range m.points {
		if probe != nil && probe(p.Position, m.playerRadius) {
			continue // obstructed
		}
		unobstructed = append(unobstructed, p)
		if !compatible(playerTeam, p) {
			continue
		}
		candidates = append(candidates, candidate{point: p, score: m.score(p, now, cap, deathSite, enemyPositions, playerTeam)})
	}

	if len(candidates) == 0 {
		if len(unobstructed) > 0 {
			chosen := unobstructed[0]
			chosen.LastUsed = now
			return chosen.Position
		}
		return Vec2{} // world origin fallback; caller should log a warning
	}

	sortCandidatesDescending(candidates)
	top := candidates
	if len(top) > 3 {
		top = top[:3]
	}
	chosen := top[m.rng.Intn(len(top))].point
	chosen.LastUsed = now
	return chosen.Position
}

func (m *Manager) score(p *Point, now, cap float64, deathSite *Vec2, enemies []Vec2, playerTeam uint8) float64 {
	score := 100.0

	if p.LastUsed > 0 {
		elapsed := now - p.LastUsed
		if elapsed < 0 {
			elapsed = 0
		}
		frac := elapsed / cap
		if frac > 1 {
			frac = 1
		}
		score -= 90 * (1 - frac)
	}

	if deathSite != nil {
		score += 0.1 * p.Position.Distance(*deathSite)
	}

	if nearest, ok := nearestDistance(p.Position, enemies); ok {
		if nearest < m.safeSpawnRadius {
			score -= 0.5 * (m.safeSpawnRadius - nearest)
		} else {
			score += 0.05 * nearest
		}
	}

	if p.Tag == TagTeamBase && p.Team == playerTeam {
		score += 50
	} else if p.Tag == TagSafe {
		score += 20
	}

	return score
}

func nearestDistance(from Vec2, points []Vec2) (float64, bool) {
	if len(points) == 0 {
		return 0, false
	}
	best := math.Inf(1)
	for _, p := range points {
		if d := from.Distance(p); d < best {
			best = d
		}
	}
	return best, true
}

func sortCandidatesDescending(c []candidate) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && c[j].score > c[j-1].score; j-- {
			c[j], c[j-1] = c[j-1], c[j]
		}
	}
}
