package combat

import "math"

// CanShoot implements the fire gate from spec.md §4.9.1: alive, not
// reloading, has ammo (melee is exempt from the ammo check), and enough
// time has passed since the last shot. Melee damage itself is resolved
// separately through MeleeAttack, never through the Shooting input bit.
func CanShoot(alive, reloading bool, ammo int32, weapon Weapon, now, lastShot, minShotInterval float64) bool {
	if !alive || reloading {
		return false
	}
	if ammo <= 0 && weapon != WeaponMelee {
		return false
	}
	interval := Stats(weapon).FireIntervalSec
	if minShotInterval > interval {
		interval = minShotInterval
	}
	return now-lastShot >= interval
}

// Damage computes the integer damage a hit from weapon deals, applying the
// damage-boost multiplier per spec.md §4.9.1's truncate-to-integer rule.
func Damage(weapon Weapon, damageBoostActive bool) int32 {
	base := Stats(weapon).BaseDamage
	if damageBoostActive {
		base *= 1.5
	}
	return int32(math.Trunc(base))
}

// ShotgunPelletAngles returns the per-pellet facing offsets for a shotgun
// blast: pellet count and spread pulled from the weapon balance catalog,
// jitter supplied by the caller's rng so shots stay reproducible in replays.
func ShotgunPelletAngles(facing float64, jitter func() float64) []float64 {
	stats := Stats(WeaponShotgun)
	angles := make([]float64, stats.Pellets)
	for i := range angles {
		offset := jitter() * stats.SpreadRadians // jitter in [-1,1]
		angles[i] = facing + offset
	}
	return angles
}

// AbsorbDamage applies dmg to shield first, then health, per spec.md §4.9.2
// step 7 "apply_damage absorbs by shield first, then health". It returns the
// updated shield/health and whether the hit was lethal (health reaches 0).
func AbsorbDamage(shield, health, dmg int32) (newShield, newHealth int32, lethal bool) {
	if dmg <= 0 {
		return shield, health, health <= 0
	}
	remaining := dmg
	if shield > 0 {
		if remaining >= shield {
			remaining -= shield
			shield = 0
		} else {
			shield -= remaining
			remaining = 0
		}
	}
	health -= remaining
	if health < 0 {
		health = 0
	}
	return shield, health, health <= 0
}

// ScoreDelta computes the attacker score change for a kill per spec.md §4.10:
// friendly fire penalizes, self-kill/environmental is neutral, otherwise a
// normal kill rewards the attacker.
func ScoreDelta(attackerTeam, victimTeam uint8, selfKill bool) int32 {
	if selfKill {
		return 0
	}
	if attackerTeam != 0 && attackerTeam == victimTeam {
		return -200
	}
	return 100
}

// TeamScoreAwarded reports whether a TDM kill should award the attacker's
// team a point: only when teams differ and both are assigned (non-zero).
func TeamScoreAwarded(attackerTeam, victimTeam uint8) bool {
	return attackerTeam != 0 && victimTeam != 0 && attackerTeam != victimTeam
}
