// Package combat holds the weapon balance catalog and the pure damage/
// shooting-gate calculations the simulation's physics and game-logic stages
// apply against player and projectile state.
package combat

import (
	"encoding/json"
	"sync"

	_ "embed"
)

// Weapon enumerates the five closed weapon kinds spec.md's data model allows.
type Weapon uint8

const (
	WeaponPistol Weapon = iota + 1
	WeaponRifle
	WeaponShotgun
	WeaponSniper
	WeaponMelee
)

// WeaponStats is the baseline balance for one weapon.
type WeaponStats struct {
	BaseDamage      float64 `json:"baseDamage"`
	FireIntervalSec float64 `json:"fireIntervalSeconds"`
	MaxAmmo         int32   `json:"maxAmmo"`
	ReloadSeconds   float64 `json:"reloadSeconds"`
	ProjectileSpeed float64 `json:"projectileSpeed,omitempty"`
	LifetimeSeconds float64 `json:"lifetimeSeconds,omitempty"`
	RangeUnits      float64 `json:"rangeUnits"`
	Pellets         int     `json:"pellets,omitempty"`
	SpreadRadians   float64 `json:"spreadRadians,omitempty"`
}

// Catalog mirrors weapon_balance.json.
type Catalog struct {
	Weapons map[string]WeaponStats `json:"weapons"`
}

// Clone produces a defensive copy so the cached catalog can't be mutated by callers.
func (c Catalog) Clone() Catalog {
	clone := Catalog{Weapons: make(map[string]WeaponStats, len(c.Weapons))}
	for k, v := range c.Weapons {
		clone.Weapons[k] = v
	}
	return clone
}

var (
	balanceOnce sync.Once
	balanceData Catalog
	balanceErr  error
)

//go:embed weapon_balance.json
var balancePayload []byte

// Balance exposes the parsed weapon balance catalog, parsed once and cloned
// per call so callers cannot mutate the shared cache.
func Balance() Catalog {
	balanceOnce.Do(func() {
		balanceErr = json.Unmarshal(balancePayload, &balanceData)
	})
	if balanceErr != nil {
		panic(balanceErr)
	}
	return balanceData.Clone()
}

func weaponKey(w Weapon) string {
	switch w {
	case WeaponPistol:
		return "pistol"
	case WeaponRifle:
		return "rifle"
	case WeaponShotgun:
		return "shotgun"
	case WeaponSniper:
		return "sniper"
	case WeaponMelee:
		return "melee"
	default:
		return ""
	}
}

// Stats looks up the balance entry for w. The zero value is returned if w is
// not a recognized weapon.
func Stats(w Weapon) WeaponStats {
	return Balance().Weapons[weaponKey(w)]
}
