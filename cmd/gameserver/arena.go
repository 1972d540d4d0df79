package main

import (
	"massivegame/server/internal/config"
	"massivegame/server/internal/matchlogic"
	"massivegame/server/internal/partition"
	"massivegame/server/internal/physics"
	"massivegame/server/internal/respawn"
)

// arena bundles the map geometry a fresh World needs at construction time:
// partitioned walls, spawn points, CTF home bases, and the pickup placements
// applied once the World exists. Loading this from authored map data is
// outside simcore's scope (see internal/simcore/world.go's doc comment), so
// the process entrypoint is the map's sole owner.
type arena struct {
	partitions  *partition.Manager
	spawnPoints []*respawn.Point
	homeBases   map[uint8]matchlogic.Vec2
	pickups     []pickupSpec
}

type pickupSpec struct {
	pos  physics.Vec2
	kind matchlogic.PickupKind
}

// buildArena lays out a symmetric two-base arena: an outer indestructible
// boundary, a scatter of destructible cover walls, team-base spawn points
// behind each CTF flag plus neutral contested spawns along the midline, and
// a handful of pickups seeded at the map's choke points.
func buildArena(sim config.SimulationConfig) *arena {
	bounds := physics.AABB{MinX: sim.World.MinX, MinY: sim.World.MinY, MaxX: sim.World.MaxX, MaxY: sim.World.MaxY}
	partitions := partition.NewManager(bounds, sim.PartitionGridSize, sim.PartitionGridSize, sim.BoundaryZoneWidth)

	var nextWallID uint64
	addWall := func(box physics.AABB, destructible bool, health int32) {
		nextWallID++
		partitions.AddWall(&partition.Wall{
			ID:           nextWallID,
			Box:          box,
			Destructible: destructible,
			Health:       health,
			MaxHealth:    health,
		})
	}

	const wallThickness = 20.0
	// Outer boundary, indestructible.
	addWall(physics.AABB{MinX: bounds.MinX, MinY: bounds.MinY, MaxX: bounds.MaxX, MaxY: bounds.MinY + wallThickness}, false, 0)
	addWall(physics.AABB{MinX: bounds.MinX, MinY: bounds.MaxY - wallThickness, MaxX: bounds.MaxX, MaxY: bounds.MaxY}, false, 0)
	addWall(physics.AABB{MinX: bounds.MinX, MinY: bounds.MinY, MaxX: bounds.MinX + wallThickness, MaxY: bounds.MaxY}, false, 0)
	addWall(physics.AABB{MinX: bounds.MaxX - wallThickness, MinY: bounds.MinY, MaxX: bounds.MaxX, MaxY: bounds.MaxY}, false, 0)

	// Midline cover: destructible pillars a player can shoot through over time.
	midlineCoverHealth := int32(120)
	for _, row := range []float64{-0.5, 0, 0.5} {
		y := row * (bounds.MaxY - bounds.MinY) / 2
		half := 40.0
		addWall(physics.AABB{MinX: -half, MinY: y - half, MaxX: half, MaxY: y + half}, true, midlineCoverHealth)
	}

	// Flanking cover near each base, also destructible.
	flankOffsetX := (bounds.MaxX - bounds.MinX) * 0.28
	for _, side := range []float64{-1, 1} {
		x := side * flankOffsetX
		for _, y := range []float64{-150, 150} {
			addWall(physics.AABB{MinX: x - 30, MinY: y - 60, MaxX: x + 30, MaxY: y + 60}, true, 80)
		}
	}

	teamRed := uint8(1)
	teamBlue := uint8(2)
	baseOffsetX := (bounds.MaxX - bounds.MinX) * 0.42
	homeBases := map[uint8]matchlogic.Vec2{
		teamRed:  {X: bounds.MinX + baseOffsetX, Y: 0},
		teamBlue: {X: bounds.MaxX - baseOffsetX, Y: 0},
	}

	spawnPoints := []*respawn.Point{
		{Position: homeBases[teamRed], Tag: respawn.TagTeamBase, Team: teamRed},
		{Position: respawn.Vec2{X: homeBases[teamRed].X, Y: homeBases[teamRed].Y - 120}, Tag: respawn.TagTeamBase, Team: teamRed},
		{Position: respawn.Vec2{X: homeBases[teamRed].X, Y: homeBases[teamRed].Y + 120}, Tag: respawn.TagTeamBase, Team: teamRed},
		{Position: homeBases[teamBlue], Tag: respawn.TagTeamBase, Team: teamBlue},
		{Position: respawn.Vec2{X: homeBases[teamBlue].X, Y: homeBases[teamBlue].Y - 120}, Tag: respawn.TagTeamBase, Team: teamBlue},
		{Position: respawn.Vec2{X: homeBases[teamBlue].X, Y: homeBases[teamBlue].Y + 120}, Tag: respawn.TagTeamBase, Team: teamBlue},
		{Position: respawn.Vec2{X: 0, Y: bounds.MinY + 80}, Tag: respawn.TagContested},
		{Position: respawn.Vec2{X: 0, Y: bounds.MaxY - 80}, Tag: respawn.TagContested},
		{Position: respawn.Vec2{X: bounds.MinX + 80, Y: bounds.MinY + 80}, Tag: respawn.TagSafe},
		{Position: respawn.Vec2{X: bounds.MaxX - 80, Y: bounds.MinY + 80}, Tag: respawn.TagSafe},
		{Position: respawn.Vec2{X: bounds.MinX + 80, Y: bounds.MaxY - 80}, Tag: respawn.TagSafe},
		{Position: respawn.Vec2{X: bounds.MaxX - 80, Y: bounds.MaxY - 80}, Tag: respawn.TagSafe},
	}

	pickups := []pickupSpec{
		{pos: physics.Vec2{X: 0, Y: 0}, kind: matchlogic.PickupWeaponCrate},
		{pos: physics.Vec2{X: 0, Y: -200}, kind: matchlogic.PickupShield},
		{pos: physics.Vec2{X: 0, Y: 200}, kind: matchlogic.PickupHealth},
		{pos: physics.Vec2{X: -flankOffsetX, Y: 0}, kind: matchlogic.PickupAmmo},
		{pos: physics.Vec2{X: flankOffsetX, Y: 0}, kind: matchlogic.PickupAmmo},
		{pos: physics.Vec2{X: -flankOffsetX / 2, Y: -250}, kind: matchlogic.PickupSpeedBoost},
		{pos: physics.Vec2{X: flankOffsetX / 2, Y: 250}, kind: matchlogic.PickupDamageBoost},
	}

	return &arena{
		partitions:  partitions,
		spawnPoints: spawnPoints,
		homeBases:   homeBases,
		pickups:     pickups,
	}
}
