// Package aoi implements the per-player area-of-interest tracker: the set of
// entity handles/ids each player is currently told about, recomputed at a
// throttled rate per spec.md §4.11. It is a derived cache, never authority —
// SpatialIndex, WallSpatialIndex, and the live player/pickup/projectile
// lists stay the source of truth; aoi only decides what subset of them a
// given player can currently see.
package aoi

import (
	"sync"

	"massivegame/server/internal/idpool"
	"massivegame/server/internal/partition"
	"massivegame/server/internal/physics"
	"massivegame/server/internal/spatial"
)

// Vec2 aliases the shared 2D vector type.
type Vec2 = physics.Vec2

// Config bundles the tunables Recompute and the throttle gate need from
// internal/config.
type Config struct {
	Radius                       float64
	RecomputeIntervalSeconds     float64
	SignificantMovementThreshold float64
}

// PickupView is the minimal view Recompute needs of one pickup; callers
// build this from their live pickup list.
type PickupView struct {
	ID       uint64
	Position Vec2
	Active   bool
}

// Set is one player's currently visible entities.
type Set struct {
	Players       []idpool.Handle
	Projectiles   []uint64
	Pickups       []uint64
	Walls         []uint64
	LastRecompute float64
}

// Tracker owns the per-player Set cache. A single mutex guards it: recompute
// runs once per player per tick from the single-threaded state-sync stage,
// while the broadcaster stage reads Get concurrently with other clients'
// sends.
type Tracker struct {
	mu   sync.RWMutex
	sets map[idpool.Handle]Set
}

// NewTracker constructs an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{sets: make(map[idpool.Handle]Set)}
}

// Get returns the last computed Set for handle, if any.
func (t *Tracker) Get(handle idpool.Handle) (Set, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sets[handle]
	return s, ok
}

// Store replaces handle's Set atomically, per spec.md §4.11 "Each AoI set is
// replaced atomically."
func (t *Tracker) Store(handle idpool.Handle, s Set) {
	t.mu.Lock()
	t.sets[handle] = s
	t.mu.Unlock()
}

// Remove drops handle's cached Set, called when a player leaves the match.
func (t *Tracker) Remove(handle idpool.Handle) {
	t.mu.Lock()
	delete(t.sets, handle)
	t.mu.Unlock()
}

// ShouldRecompute implements spec.md §4.9.4 step 3's gate: a player's AoI is
// only recomputed if at least RecomputeIntervalSeconds have passed since the
// last recompute AND either its displacement squared since the last sync
// exceeds SignificantMovementThreshold² or any of its fields changed.
func ShouldRecompute(now, lastRecompute float64, cfg Config, displacementSq float64, anyFieldChanged bool) bool {
	if now-lastRecompute < cfg.RecomputeIntervalSeconds {
		return false
	}
	threshold := cfg.SignificantMovementThreshold
	return anyFieldChanged || displacementSq > threshold*threshold
}

// Recompute builds the visible-entity Set for a player at pos per spec.md
// §4.11: players via a SpatialIndex radius query (self excluded), active
// projectiles and pickups within radius, and walls from the partitions
// touched by the AoI AABB's center and four corners.
func Recompute(
	self idpool.Handle,
	pos Vec2,
	cfg Config,
	grid *spatial.Grid,
	posOfPlayer func(idpool.Handle) (float64, float64, bool),
	posOfProjectile func(uint64) (float64, float64, bool),
	pickups []PickupView,
	partitions *partition.Manager,
) Set {
	var players []idpool.Handle
	if grid != nil {
		for _, h := range grid.QueryRadiusPlayers(pos.X, pos.Y, cfg.Radius, posOfPlayer) {
			if h.Equal(self) {
				continue
			}
			players = append(players, h)
		}
	}

	var projectiles []uint64
	if grid != nil {
		projectiles = grid.QueryRadiusProjectiles(pos.X, pos.Y, cfg.Radius, posOfProjectile)
	}

	rSq := cfg.Radius * cfg.Radius
	var visiblePickups []uint64
	for _, pk := range pickups {
		if !pk.Active {
			continue
		}
		if pk.Position.DistanceSquared(pos) <= rSq {
			visiblePickups = append(visiblePickups, pk.ID)
		}
	}

	return Set{
		Players:     players,
		Projectiles: projectiles,
		Pickups:     visiblePickups,
		Walls:       visibleWalls(pos, cfg.Radius, partitions),
	}
}

// visibleWalls enumerates the partitions touched by the AoI AABB's center
// and four corners (spec.md §4.11), then includes any wall in those
// partitions whose AABB intersects the AoI AABB.
func visibleWalls(center Vec2, radius float64, partitions *partition.Manager) []uint64 {
	if partitions == nil {
		return nil
	}
	aabb := physics.BoundingCircle(center, radius)
	samples := [5]Vec2{
		center,
		{X: aabb.MinX, Y: aabb.MinY},
		{X: aabb.MinX, Y: aabb.MaxY},
		{X: aabb.MaxX, Y: aabb.MinY},
		{X: aabb.MaxX, Y: aabb.MaxY},
	}

	seen := make(map[partition.Key]struct{}, len(samples))
	var walls []uint64
	for _, s := range samples {
		p := partitions.GetPartitionForPoint(s.X, s.Y)
		if _, ok := seen[p.Key]; ok {
			continue
		}
		seen[p.Key] = struct{}{}
		for _, w := range p.Walls() {
			if w.Box.Intersects(aabb) {
				walls = append(walls, w.ID)
			}
		}
	}
	return walls
}
