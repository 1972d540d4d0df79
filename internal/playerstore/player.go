// Package playerstore holds the authoritative per-player simulation state in
// a sharded concurrent map, keyed by interned idpool.Handle.
package playerstore

import (
	"massivegame/server/internal/idpool"
	"massivegame/server/internal/protocol"
)

// Weapon enumerates the five closed weapon kinds a player can carry.
type Weapon uint8

const (
	WeaponPistol Weapon = iota + 1
	WeaponRifle
	WeaponShotgun
	WeaponSniper
	WeaponMelee
)

// Input is one queued, not-yet-applied client input, bounded per player.
type Input = protocol.ClientInput

// Player is the full authoritative state of one participant. Field grouping
// mirrors the changed-fields bitmask in internal/protocol: callers set the
// matching ChangedFields bit whenever a group mutates so the broadcaster
// knows what to re-send.
type Player struct {
	Handle idpool.Handle

	X, Y   float64
	VX, VY float64
	Rotation float64

	Health, MaxHealth int32
	Shield, ShieldMax int32
	Alive             bool
	RespawnCountdown  float64 // valid only when !Alive
	HasRespawnCountdown bool

	Weapon         Weapon
	Ammo           int32
	ReloadProgress float64
	HasReloadProgress bool

	Score, Kills, Deaths int32
	TeamID               uint8
	CarriedFlagTeamID     uint8

	SpeedBoostRemaining  float64
	DamageBoostRemaining float64

	LastProcessedInputSequence uint32
	LastShotTime                float64 // monotonic seconds
	InputQueue                   []Input // bounded, see config.DefaultInputQueueCapacity

	LastValidPosition  [2]float64
	ViolationCounter   int

	ChangedFields uint8
}

// ChangedFields bit values re-exported for convenience; see protocol package.
const (
	ChangedPositionRotation = protocol.ChangedPositionRotation
	ChangedHealthAlive      = protocol.ChangedHealthAlive
	ChangedWeaponAmmo       = protocol.ChangedWeaponAmmo
	ChangedScoreStats       = protocol.ChangedScoreStats
	ChangedPowerups         = protocol.ChangedPowerups
	ChangedShield           = protocol.ChangedShield
	ChangedFlag             = protocol.ChangedFlag
)

// MarkChanged ORs bits into the player's changed-fields mask.
func (p *Player) MarkChanged(bits uint8) { p.ChangedFields |= bits }

// ConsumeChanged returns and clears the accumulated changed-fields mask.
func (p *Player) ConsumeChanged() uint8 {
	bits := p.ChangedFields
	p.ChangedFields = 0
	return bits
}
