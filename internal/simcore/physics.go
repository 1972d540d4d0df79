package simcore

import (
	"massivegame/server/internal/combat"
	"massivegame/server/internal/idpool"
	"massivegame/server/internal/matchlogic"
	"massivegame/server/internal/physics"
	"massivegame/server/internal/playerstore"
	"massivegame/server/internal/respawn"
	"massivegame/server/internal/wallindex"
)

const (
	wallQueryBuffer  = 8.0
	projectileBuffer = 8.0
	segmentStep      = 5.0
)

// RunPhysics is stage 2 of the tick pipeline (spec.md §4.9.2): wall
// respawns, wall-index maintenance, player movement with collision and
// anti-cheat checks, dead-player respawns, projectile stepping, and pickup
// respawn countdowns.
func (w *World) RunPhysics(dt float64) {
	w.tickWallRespawns()
	w.maybeRebuildWallIndex()
	w.movePlayers(dt)
	w.respawnDeadPlayers(dt)
	w.stepProjectiles(dt)
	matchlogic.TickPickupRespawns(dt, w.Pickups())
}

func (w *World) tickWallRespawns() {
	for _, tmpl := range w.Walls.Tick(w.now) {
		w.Partitions.Respawn(tmpl.WallID)
		w.updatedWallsThisTick = append(w.updatedWallsThisTick, tmpl.WallID)
	}
}

func (w *World) maybeRebuildWallIndex() {
	dirty := len(w.destroyedWallsThisTick) > 0 || len(w.updatedWallsThisTick) > 0
	stale := w.tickCount%wallindex.StalenessTicks == 0
	if dirty || stale {
		w.rebuildWallIndex()
	}
}

func (w *World) movePlayers(dt float64) {
	maxSpeed := w.cfg.Sim.BaseSpeed * w.cfg.Sim.SpeedBoostMultiplier
	bounds := w.cfg.Sim.World

	w.Players.ForEachMut(func(p *playerstore.Player) {
		if !p.Alive {
			return
		}
		prevX, prevY := p.X, p.Y
		newX := p.X + p.VX*dt
		newY := p.Y + p.VY*dt

		clamped := false
		if newX < bounds.MinX {
			newX = bounds.MinX
			clamped = true
		} else if newX > bounds.MaxX {
			newX = bounds.MaxX
			clamped = true
		}
		if newY < bounds.MinY {
			newY = bounds.MinY
			clamped = true
		} else if newY > bounds.MaxY {
			newY = bounds.MaxY
			clamped = true
		}

		switch {
		case clamped:
			p.X, p.Y = newX, newY
			p.VX, p.VY = 0, 0
		case w.collidesWithWall(newX, newY):
			p.X, p.Y = prevX, prevY
			p.VX, p.VY = 0, 0
		default:
			p.X, p.Y = newX, newY
		}
		p.MarkChanged(playerstore.ChangedPositionRotation)

		w.applyAntiCheat(p, maxSpeed, dt)
	})
}

func (w *World) collidesWithWall(x, y float64) bool {
	radius := w.cfg.Sim.PlayerRadius + wallQueryBuffer
	for _, wall := range w.WallIndex.QueryRadius(x, y, radius) {
		if wall.Box.IntersectsCircle(physics.Vec2{X: x, Y: y}, w.cfg.Sim.PlayerRadius) {
			return true
		}
	}
	return false
}

// applyAntiCheat implements spec.md §4.9.2 step 4: a per-tick displacement
// from last_valid_position beyond max_speed·dt + slack increments the
// violation counter; at threshold the player snaps back and the counter
// resets, otherwise a clean tick decays it.
func (w *World) applyAntiCheat(p *playerstore.Player, maxSpeed, dt float64) {
	last := physics.Vec2{X: p.LastValidPosition[0], Y: p.LastValidPosition[1]}
	cur := physics.Vec2{X: p.X, Y: p.Y}
	allowed := maxSpeed*dt + w.cfg.Sim.AntiCheatSlack

	if cur.Distance(last) > allowed {
		p.ViolationCounter++
		if p.ViolationCounter >= w.cfg.Sim.AntiCheatViolationThreshold {
			p.X, p.Y = last.X, last.Y
			p.VX, p.VY = 0, 0
			p.ViolationCounter = 0
		}
		return
	}
	if p.ViolationCounter > 0 {
		p.ViolationCounter--
	}
	p.LastValidPosition = [2]float64{p.X, p.Y}
}

func (w *World) respawnDeadPlayers(dt float64) {
	alive := w.Players.Snapshot()
	byTeam := make(map[uint8][]physics.Vec2)
	for _, p := range alive {
		if p.Alive {
			byTeam[p.TeamID] = append(byTeam[p.TeamID], physics.Vec2{X: p.X, Y: p.Y})
		}
	}
	probe := respawn.WallProbe(func(pos physics.Vec2, radius float64) bool {
		for _, wall := range w.WallIndex.QueryRadius(pos.X, pos.Y, radius) {
			if wall.Box.IntersectsCircle(pos, radius) {
				return true
			}
		}
		return false
	})

	w.Players.ForEachMut(func(p *playerstore.Player) {
		if p.Alive || !p.HasRespawnCountdown {
			return
		}
		p.RespawnCountdown -= dt
		if p.RespawnCountdown > 0 {
			return
		}

		site := physics.Vec2{X: p.X, Y: p.Y}
		var enemies []physics.Vec2
		for team, positions := range byTeam {
			if team != p.TeamID {
				enemies = append(enemies, positions...)
			}
		}

		dest := w.Respawns.ChooseSpawn(p.TeamID, w.now, &site, enemies, probe)
		w.resetOnRespawn(p, dest)
	})
}

func (w *World) resetOnRespawn(p *playerstore.Player, dest physics.Vec2) {
	p.X, p.Y = dest.X, dest.Y
	p.VX, p.VY = 0, 0
	p.LastValidPosition = [2]float64{dest.X, dest.Y}
	p.ViolationCounter = 0

	p.Alive = true
	p.Health = p.MaxHealth
	p.Shield = 0
	p.HasRespawnCountdown = false
	p.RespawnCountdown = 0

	p.Weapon = playerstore.WeaponPistol
	p.Ammo = combat.Stats(combat.WeaponPistol).MaxAmmo
	p.ReloadProgress = 0
	p.HasReloadProgress = false

	p.SpeedBoostRemaining = 0
	p.DamageBoostRemaining = 0

	p.ChangedFields = 0xFF
}

type projectileHit struct {
	attacker idpool.Handle
	target   idpool.Handle
	damage   int32
}

// stepProjectiles implements spec.md §4.9.2 step 6: advance every
// projectile, cull on bounds/lifetime, resolve wall intersection by
// segment-sampling against WallIndex, otherwise test for a player hit;
// results are collected here and applied serially afterward.
func (w *World) stepProjectiles(dt float64) {
	var hits []projectileHit
	var destroyedWalls []uint64
	survivorPositions := make(map[uint64][2]float64)
	var removed []uint64

	for id, proj := range w.projectiles {
		from := proj.Pos
		to := from.Add(proj.Vel.Scale(dt))

		if proj.MaxLifetime > 0 && w.now-proj.SpawnTime >= proj.MaxLifetime {
			removed = append(removed, id)
			continue
		}
		if !w.worldAABB().Contains(to) {
			removed = append(removed, id)
			continue
		}

		candidates := w.WallIndex.QuerySegment(from, to, projectileBuffer)
		proj.Pos = to
		hitWall := false
		if len(candidates) > 0 {
			physics.SampleSegment(from, to, segmentStep, func(sample physics.Vec2) bool {
				for _, wall := range candidates {
					if !wall.Box.IntersectsCircle(sample, 1) {
						continue
					}
					proj.Pos = sample
					destroyed, _, ok := w.Partitions.Damage(wall.ID, proj.Damage)
					kind := matchlogic.EventWallImpact
					if ok && destroyed {
						destroyedWalls = append(destroyedWalls, wall.ID)
						kind = matchlogic.EventWallDestroyed
					}
					w.tickEvents = append(w.tickEvents, matchlogic.Event{
						Kind:       kind,
						Position:   sample,
						Instigator: proj.Owner,
						Weapon:     uint8(proj.Weapon),
						Value:      int32(wall.ID),
					})
					hitWall = true
					return true
				}
				return false
			})
		}
		if hitWall {
			removed = append(removed, id)
			continue
		}

		if target, found := w.nearestHitPlayer(proj); found {
			hits = append(hits, projectileHit{attacker: proj.Owner, target: target, damage: proj.Damage})
			removed = append(removed, id)
			continue
		}

		survivorPositions[id] = [2]float64{proj.Pos.X, proj.Pos.Y}
	}

	for _, id := range removed {
		w.removeProjectile(id)
	}
	w.Grid.BatchUpdateProjectiles(survivorPositions)

	for _, wallID := range destroyedWalls {
		w.destroyedWallsThisTick = append(w.destroyedWallsThisTick, wallID)
		w.Walls.OnDestroyed(wallID, w.now)
	}

	for _, h := range hits {
		w.applyProjectileDamage(h.attacker, h.target, h.damage)
	}
}

func (w *World) nearestHitPlayer(proj *Projectile) (idpool.Handle, bool) {
	radius := w.cfg.Sim.PlayerRadius + projectileBuffer
	posOf := func(h idpool.Handle) (float64, float64, bool) {
		p, ok := w.Players.Get(h)
		if !ok || !p.Alive {
			return 0, 0, false
		}
		return p.X, p.Y, true
	}
	for _, h := range w.Grid.QueryRadiusPlayers(proj.Pos.X, proj.Pos.Y, radius, posOf) {
		if h.Equal(proj.Owner) {
			continue
		}
		p, ok := w.Players.Get(h)
		if !ok || !p.Alive {
			continue
		}
		circle := physics.Vec2{X: p.X, Y: p.Y}
		if circle.DistanceSquared(proj.Pos) <= radius*radius {
			return h, true
		}
	}
	return idpool.Handle{}, false
}

// applyProjectileDamage resolves one hit: absorb-then-health damage on the
// victim, then, once the victim's shard lock is released, the kill/score
// bookkeeping against the attacker's own shard. The two GetMut calls are
// kept sequential rather than nested since attacker and target may share a
// shard, and playerstore.Store.GetMut forbids calling back into the store
// from within its own callback.
func (w *World) applyProjectileDamage(attacker, target idpool.Handle, damage int32) {
	var attackerTeam uint8
	if ap, ok := w.Players.Get(attacker); ok {
		attackerTeam = ap.TeamID
	}

	var lethal, selfKill bool
	var victimTeam uint8
	w.Players.GetMut(target, func(p *playerstore.Player) {
		if !p.Alive {
			return
		}
		selfKill = attacker.Equal(target)
		newShield, newHealth, isLethal := combat.AbsorbDamage(p.Shield, p.Health, damage)
		p.Shield, p.Health = newShield, newHealth
		p.MarkChanged(playerstore.ChangedHealthAlive | playerstore.ChangedShield)

		if !isLethal {
			return
		}
		lethal = true
		victimTeam = p.TeamID
		p.Alive = false
		p.Deaths++
		p.HasRespawnCountdown = true
		p.RespawnCountdown = w.cfg.Sim.RespawnSeconds
		p.MarkChanged(playerstore.ChangedHealthAlive | playerstore.ChangedScoreStats)
		w.dropCarriedFlag(p)
	})
	if !lethal {
		return
	}

	delta := combat.ScoreDelta(attackerTeam, victimTeam, selfKill)
	if delta != 0 && !attacker.IsZero() {
		w.Players.GetMut(attacker, func(ap *playerstore.Player) {
			ap.Score += delta
			if delta > 0 {
				ap.Kills++
			}
			ap.MarkChanged(playerstore.ChangedScoreStats)
		})
	}
	if combat.TeamScoreAwarded(attackerTeam, victimTeam) {
		w.Match.AddTeamScore(attackerTeam, 1)
	}
	w.Match.PushKillFeed(matchlogic.KillFeedEntry{
		Attacker:     attacker,
		Victim:       target,
		FriendlyFire: attackerTeam != 0 && attackerTeam == victimTeam,
	})
}

func (w *World) dropCarriedFlag(p *playerstore.Player) {
	if p.CarriedFlagTeamID == 0 {
		return
	}
	for _, f := range w.Match.Flags() {
		if f.TeamID == p.CarriedFlagTeamID && f.HasCarrier && f.Carrier.Equal(p.Handle) {
			f.Drop(physics.Vec2{X: p.X, Y: p.Y}, w.cfg.Match.FlagAutoReturnSeconds)
		}
	}
	p.CarriedFlagTeamID = 0
	p.MarkChanged(playerstore.ChangedFlag)
}
