// Package matchlogic implements the TDM/CTF match lifecycle, pickup
// collection, CTF flag handling, and melee resolution that run during the
// simulation's game-logic stage. It owns no players or partitions itself;
// callers pass in the player slices and lookup maps it needs and apply the
// returned events to their own broadcast and scoring paths.
package matchlogic

import (
	"massivegame/server/internal/idpool"
	"massivegame/server/internal/physics"
)

// Vec2 is the position type matchlogic deals in; an alias of physics.Vec2
// so callers never need to convert.
type Vec2 = physics.Vec2

// EventKind tags the payload carried by an Event.
type EventKind uint8

const (
	EventMatchStateChanged EventKind = iota + 1
	EventPowerupCollected
	EventFlagGrabbed
	EventFlagReturned
	EventFlagCaptured
	EventPlayerDamaged
	EventPlayerKilled
	EventWeaponFired
	EventWallImpact
	EventWallDestroyed
)

// Event is one domain event emitted by a matchlogic call. Callers push it
// onto the owning partition's event queue at a priority of their choosing.
type Event struct {
	Kind       EventKind
	Position   Vec2
	Instigator idpool.Handle
	Target     idpool.Handle
	Weapon     uint8
	Value      int32
}

// KillFeedEntry is one line of the match's recent-kills feed.
type KillFeedEntry struct {
	Attacker     idpool.Handle
	Victim       idpool.Handle
	Weapon       uint8
	FriendlyFire bool
}
