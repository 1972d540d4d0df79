package simcore

import (
	"massivegame/server/internal/aoi"
	"massivegame/server/internal/idpool"
	"massivegame/server/internal/playerstore"
)

// boundarySnapshotStride matches spec.md §4.9.4 step 4: partition boundary
// snapshots, consumed by neighbor coordination, are refreshed every 30
// ticks rather than every tick.
const boundarySnapshotStride = 30

// RunStateSync is stage 4 of the tick pipeline (spec.md §4.9.4): push
// authoritative positions into the spatial index, gate and recompute each
// player's area-of-interest set, and periodically refresh partition
// boundary snapshots for neighbor coordination.
//
// Partition residency itself (spec.md §4.9.4 step 2) is not cached here:
// Partition exposes no player-membership storage of its own (only walls and
// a boundary-zone snapshot), so which partition a player currently occupies
// is always derived on demand via Manager.GetPartitionForPoint rather than
// tracked as World-owned state.
func (w *World) RunStateSync(dt float64) {
	posOfProjectile := func(id uint64) (float64, float64, bool) {
		proj, ok := w.projectiles[id]
		if !ok {
			return 0, 0, false
		}
		return proj.Pos.X, proj.Pos.Y, true
	}
	pickupViews := make([]aoi.PickupView, 0, len(w.pickups))
	for _, pk := range w.pickups {
		pickupViews = append(pickupViews, aoi.PickupView{ID: pk.ID, Position: pk.Position, Active: pk.Active})
	}

	mask := make(map[idpool.Handle]uint8, w.Players.Len())

	w.Players.ForEachMut(func(p *playerstore.Player) {
		w.Grid.UpdatePlayer(p.Handle, p.X, p.Y)

		changed := p.ConsumeChanged()
		mask[p.Handle] = changed

		last := w.aoiLastPos[p.Handle]
		dx, dy := p.X-last[0], p.Y-last[1]
		dispSq := dx*dx + dy*dy

		existing, known := w.AoI.Get(p.Handle)
		lastRecompute := 0.0
		if known {
			lastRecompute = existing.LastRecompute
		}

		if known && !aoi.ShouldRecompute(w.now, lastRecompute, w.cfg.AoI, dispSq, changed != 0) {
			return
		}

		set := aoi.Recompute(p.Handle, Vec2{X: p.X, Y: p.Y}, w.cfg.AoI, w.Grid, w.playerPosOf, posOfProjectile, pickupViews, w.Partitions)
		set.LastRecompute = w.now
		w.AoI.Store(p.Handle, set)
		w.aoiLastPos[p.Handle] = [2]float64{p.X, p.Y}
	})

	w.tickChangedMask = mask

	if w.tickCount%boundarySnapshotStride == 0 {
		w.refreshBoundarySnapshots()
	}
}

func (w *World) refreshBoundarySnapshots() {
	entities := make(map[string][2]float64, w.Players.Len())
	w.Players.ForEach(func(p *playerstore.Player) {
		entities[p.Handle.String()] = [2]float64{p.X, p.Y}
	})
	for _, part := range w.Partitions.Partitions() {
		part.UpdateBoundarySnapshot(entities, w.cfg.Sim.BoundaryZoneWidth)
	}
}

// TickChangedMask returns the per-field change bitmask captured for handle
// during the most recent state-sync stage, for use by the broadcast stage
// when building per-client deltas.
func (w *World) TickChangedMask(h idpool.Handle) uint8 {
	return w.tickChangedMask[h]
}

// DirtyWalls returns the wall IDs destroyed or updated (respawned)
// during the current tick, for the broadcast stage to fold into each
// client's delta before RunCleanup clears them. The slices are owned by the
// World; callers must not retain them past the current tick.
func (w *World) DirtyWalls() (destroyed, updated []uint64) {
	return w.destroyedWallsThisTick, w.updatedWallsThisTick
}
