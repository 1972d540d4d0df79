package simcore

import (
	"math"

	"massivegame/server/internal/combat"
	"massivegame/server/internal/matchlogic"
	"massivegame/server/internal/physics"
	"massivegame/server/internal/playerstore"
)

// ApplyInputs is stage 1a of the tick pipeline (spec.md §4.9.1): drains each
// player's queued inputs in sequence order, applying movement, shooting,
// melee, reload, and weapon-switch mutations. Projectile spawns are queued
// on the World directly; melee hits are queued into w.meleeHits for
// resolution during the game-logic stage.
func (w *World) ApplyInputs(dt float64) {
	w.Players.ForEachMut(func(p *playerstore.Player) {
		queue := p.InputQueue
		p.InputQueue = nil
		for _, in := range queue {
			if in.Sequence <= p.LastProcessedInputSequence {
				continue
			}
			w.applyOneInput(p, in)
			p.LastProcessedInputSequence = in.Sequence
		}
		w.tickTimers(p, dt)
	})
}

func (w *World) applyOneInput(p *playerstore.Player, in playerstore.Input) {
	w.applyMovement(p, in)
	w.applyWeaponSlot(p, in)
	w.applyReload(p, in)
	if in.Shooting {
		w.applyShoot(p, in)
	}
	if in.MeleeAttack {
		w.meleeHits = append(w.meleeHits, matchlogic.MeleeHit{
			Attacker: p.Handle,
			Facing:   float64(in.Rotation),
			Position: Vec2{X: p.X, Y: p.Y},
		})
	}
}

func (w *World) applyMovement(p *playerstore.Player, in playerstore.Input) {
	if !p.Alive {
		p.VX, p.VY = 0, 0
		return
	}
	var forward, strafe float64
	if in.MoveForward {
		forward++
	}
	if in.MoveBackward {
		forward--
	}
	if in.MoveRight {
		strafe++
	}
	if in.MoveLeft {
		strafe--
	}
	p.Rotation = float64(in.Rotation)

	intent := Vec2{X: strafe, Y: forward}
	if intent.LengthSquared() > 0 {
		intent = intent.Normalize()
	}
	intent = intent.Rotated(p.Rotation)

	speed := w.cfg.Sim.BaseSpeed
	if p.SpeedBoostRemaining > 0 {
		speed *= w.cfg.Sim.SpeedBoostMultiplier
	}
	p.VX = intent.X * speed
	p.VY = intent.Y * speed
	p.MarkChanged(playerstore.ChangedPositionRotation)
}

func (w *World) applyWeaponSlot(p *playerstore.Player, in playerstore.Input) {
	if in.ChangeWeaponSlot == 0 {
		return
	}
	slot := playerstore.Weapon(in.ChangeWeaponSlot)
	if slot < playerstore.WeaponPistol || slot > playerstore.WeaponMelee || slot == p.Weapon {
		return
	}
	p.Weapon = slot
	p.Ammo = combat.Stats(combat.Weapon(slot)).MaxAmmo
	p.ReloadProgress = 0
	p.HasReloadProgress = false
	p.MarkChanged(playerstore.ChangedWeaponAmmo)
}

func (w *World) applyReload(p *playerstore.Player, in playerstore.Input) {
	if in.Reload && !p.HasReloadProgress && p.Weapon != playerstore.WeaponMelee {
		p.ReloadProgress = 0
		p.HasReloadProgress = true
		p.MarkChanged(playerstore.ChangedWeaponAmmo)
	}
}

func (w *World) applyShoot(p *playerstore.Player, in playerstore.Input) {
	weapon := combat.Weapon(p.Weapon)
	if weapon == combat.WeaponMelee {
		return
	}
	if !combat.CanShoot(p.Alive, p.HasReloadProgress, p.Ammo, weapon, w.now, p.LastShotTime, w.cfg.Sim.MinShotIntervalSeconds) {
		return
	}
	p.LastShotTime = w.now
	p.Ammo--
	p.MarkChanged(playerstore.ChangedWeaponAmmo)

	damage := combat.Damage(weapon, p.DamageBoostRemaining > 0)
	origin := Vec2{X: p.X, Y: p.Y}
	stats := combat.Stats(weapon)

	w.tickEvents = append(w.tickEvents, matchlogic.Event{
		Kind:       matchlogic.EventWeaponFired,
		Position:   origin,
		Instigator: p.Handle,
		Weapon:     uint8(weapon),
	})

	if weapon == combat.WeaponShotgun {
		angles := combat.ShotgunPelletAngles(p.Rotation, func() float64 { return w.rng.Float64()*2 - 1 })
		for _, a := range angles {
			vel := physics.FromAngle(a).Scale(stats.ProjectileSpeed)
			w.spawnProjectile(p.Handle, weapon, origin, vel, damage, stats.LifetimeSeconds)
		}
		return
	}
	vel := physics.FromAngle(p.Rotation).Scale(stats.ProjectileSpeed)
	w.spawnProjectile(p.Handle, weapon, origin, vel, damage, stats.LifetimeSeconds)
}

// tickTimers advances per-tick countdowns that aren't gated on a specific
// input: reload progress, respawn countdown, and powerup durations.
func (w *World) tickTimers(p *playerstore.Player, dt float64) {
	if p.HasReloadProgress {
		duration := combat.Stats(combat.Weapon(p.Weapon)).ReloadSeconds
		if duration <= 0 {
			duration = 1
		}
		p.ReloadProgress += dt / duration
		if p.ReloadProgress >= 1 {
			p.Ammo = combat.Stats(combat.Weapon(p.Weapon)).MaxAmmo
			p.ReloadProgress = 0
			p.HasReloadProgress = false
		}
		p.MarkChanged(playerstore.ChangedWeaponAmmo)
	}
	if p.SpeedBoostRemaining > 0 || p.DamageBoostRemaining > 0 {
		p.SpeedBoostRemaining = math.Max(0, p.SpeedBoostRemaining-dt)
		p.DamageBoostRemaining = math.Max(0, p.DamageBoostRemaining-dt)
		p.MarkChanged(playerstore.ChangedPowerups)
	}
}
