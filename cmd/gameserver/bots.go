package main

import (
	"fmt"
	"sync/atomic"

	"massivegame/server/internal/combat"
	"massivegame/server/internal/idpool"
	"massivegame/server/internal/physics"
	"massivegame/server/internal/playerstore"
	"massivegame/server/internal/respawn"
	"massivegame/server/internal/simcore"
)

// botSpawner implements bots.Spawner against the live World, placing new
// bots via the same spawn-point selection human joins use. world is nil at
// construction time (bots.NewPlayerLauncher needs a Spawner before the World
// it will spawn into exists) and is backfilled by main immediately after
// simcore.New returns.
type botSpawner struct {
	world   *simcore.World
	nextSeq uint64
}

func newBotSpawner() *botSpawner {
	return &botSpawner{}
}

// SpawnBot creates one bot-controlled player on team, placed at a spawn
// point chosen the same way a human joiner's is.
func (s *botSpawner) SpawnBot(team uint8) (idpool.Handle, *playerstore.Player) {
	n := atomic.AddUint64(&s.nextSeq, 1)
	id := fmt.Sprintf("bot-%d", n)
	handle := s.world.Pool.GetOrCreate(id)

	spawn := s.world.Respawns.ChooseSpawn(team, s.world.Now(), nil, nil, s.wallProbe)
	p := newSpawnedPlayer(handle, spawn, team, true)
	s.world.AddBotPlayer(p)
	return handle, p
}

// DespawnBot removes a retired bot from the world entirely.
func (s *botSpawner) DespawnBot(handle idpool.Handle) {
	s.world.RemovePlayer(handle)
}

func (s *botSpawner) wallProbe(p respawn.Vec2, radius float64) bool {
	return wallProbe(s.world, p, radius)
}

// wallProbe answers whether a circle at p overlaps any active wall in the
// partitions touching it, used by respawn point selection to reject
// obstructed spawns.
func wallProbe(world *simcore.World, p physics.Vec2, radius float64) bool {
	part := world.Partitions.GetPartitionForPoint(p.X, p.Y)
	circle := physics.BoundingCircle(p, radius)
	for _, w := range part.Walls() {
		if w.Box.Intersects(circle) {
			return true
		}
	}
	return false
}

// newSpawnedPlayer builds a fresh Player at full health with the starting
// pistol loadout, the shared shape used by both human joins and bot spawns.
func newSpawnedPlayer(handle idpool.Handle, pos physics.Vec2, team uint8, alive bool) *playerstore.Player {
	stats := combat.Stats(combat.WeaponPistol)
	return &playerstore.Player{
		Handle:    handle,
		X:         pos.X,
		Y:         pos.Y,
		Health:    100,
		MaxHealth: 100,
		Alive:     alive,
		Weapon:    playerstore.WeaponPistol,
		Ammo:      stats.MaxAmmo,
		TeamID:    team,
	}
}
