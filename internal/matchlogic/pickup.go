package matchlogic

import (
	"massivegame/server/internal/combat"
	"massivegame/server/internal/playerstore"
)

// PickupKind is a closed enum of collectible effects.
type PickupKind uint8

const (
	PickupHealth PickupKind = iota + 1
	PickupAmmo
	PickupWeaponCrate
	PickupSpeedBoost
	PickupDamageBoost
	PickupShield
)

// Pickup is one world pickup entity.
type Pickup struct {
	ID       uint64
	Position Vec2
	Kind     PickupKind
	// Weapon names the crate's weapon; meaningful only when Kind is
	// PickupWeaponCrate.
	Weapon           combat.Weapon
	Active           bool
	RespawnCountdown float64
}

// respawnDelay returns the pickup-kind-specific respawn countdown per
// spec.md §4.9.3 step 2.
func respawnDelay(kind PickupKind, cfg Config) float64 {
	switch kind {
	case PickupHealth, PickupAmmo:
		return cfg.PickupRespawnShortSeconds
	case PickupSpeedBoost, PickupDamageBoost, PickupShield:
		return cfg.PickupRespawnMidSeconds
	case PickupWeaponCrate:
		return cfg.PickupRespawnLongSeconds
	default:
		return cfg.PickupRespawnShortSeconds
	}
}

// TickPickupRespawns decrements inactive pickups' respawn countdowns,
// reactivating those that reach zero. Spec.md §4.9.2 step 8.
func TickPickupRespawns(dt float64, pickups []*Pickup) {
	for _, p := range pickups {
		if p.Active {
			continue
		}
		p.RespawnCountdown -= dt
		if p.RespawnCountdown <= 0 {
			p.Active = true
			p.RespawnCountdown = 0
		}
	}
}

// CollectPickups applies spec.md §4.9.3 step 2: each alive player within
// cfg.PickupCollectionRadius of an active pickup triggers its effect, then
// the pickup deactivates and starts its respawn countdown.
func CollectPickups(players []*playerstore.Player, pickups []*Pickup, cfg Config) []Event {
	var events []Event
	for _, pk := range pickups {
		if !pk.Active {
			continue
		}
		for _, p := range players {
			if !p.Alive {
				continue
			}
			pos := Vec2{X: p.X, Y: p.Y}
			if pos.Distance(pk.Position) > cfg.PickupCollectionRadius {
				continue
			}
			applyPickupEffect(p, pk, cfg)
			pk.Active = false
			pk.RespawnCountdown = respawnDelay(pk.Kind, cfg)
			events = append(events, Event{
				Kind:       EventPowerupCollected,
				Position:   pk.Position,
				Instigator: p.Handle,
				Value:      int32(pk.Kind),
			})
			break
		}
	}
	return events
}

func applyPickupEffect(p *playerstore.Player, pk *Pickup, cfg Config) {
	switch pk.Kind {
	case PickupHealth:
		p.Health += cfg.HealthPickupAmount
		if p.Health > p.MaxHealth {
			p.Health = p.MaxHealth
		}
		p.MarkChanged(playerstore.ChangedHealthAlive)
	case PickupAmmo:
		p.Ammo = combat.Stats(combat.Weapon(p.Weapon)).MaxAmmo
		p.MarkChanged(playerstore.ChangedWeaponAmmo)
	case PickupWeaponCrate:
		p.Weapon = playerstore.Weapon(pk.Weapon)
		p.Ammo = combat.Stats(pk.Weapon).MaxAmmo
		p.MarkChanged(playerstore.ChangedWeaponAmmo)
	case PickupSpeedBoost:
		p.SpeedBoostRemaining = cfg.PowerupSeconds
		p.MarkChanged(playerstore.ChangedPowerups)
	case PickupDamageBoost:
		p.DamageBoostRemaining = cfg.PowerupSeconds
		p.MarkChanged(playerstore.ChangedPowerups)
	case PickupShield:
		p.Shield = cfg.ShieldGrantAmount
		p.ShieldMax = cfg.ShieldGrantAmount
		p.MarkChanged(playerstore.ChangedShield)
	}
}
