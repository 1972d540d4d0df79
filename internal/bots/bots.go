// Package bots synthesizes client inputs for AI-controlled players so the
// simulation's input stage can treat bots and humans identically: both
// produce a playerstore.Input that gets queued and applied by the input stage.
// It owns no players or match state itself; callers pass in the snapshots
// and lookups it needs and apply the returned Input to the bot's player.
package bots

import (
	"massivegame/server/internal/idpool"
	"massivegame/server/internal/physics"
)

// Vec2 aliases the shared 2D vector type so callers don't need a second
// import for coordinates already expressed in physics.Vec2.
type Vec2 = physics.Vec2

// Objective is the closed set of high-level goals a bot's decision step can
// settle on. CTF and TDM modes each use a disjoint subset.
type Objective uint8

const (
	ObjectiveNone Objective = iota

	// CTF objectives, spec.md §4.14 step 2.
	ObjectiveReturnFlag      // carrying the enemy flag: head for home.
	ObjectiveChaseCarrier    // an enemy is carrying our flag: hunt them down.
	ObjectiveEscort          // a teammate carries the enemy flag: stay near them.
	ObjectiveAttackEnemyFlag // no flag in play: push toward the enemy flag.
	ObjectiveDefendOwnFlag   // no flag in play: hold position near our flag.
	ObjectiveFlex            // no flag in play: roam and react opportunistically.

	// TDM objectives, spec.md §4.14 step 2.
	ObjectiveEngageNearest // a hostile is within weapon range: fight.
	ObjectiveFlank         // no immediate engagement: circle toward an angle.
	ObjectiveSeekPickup    // low health or ammo: detour to the nearest pickup.
	ObjectivePatrol        // nothing else applies: walk a tactical point.
)

// Config bundles the tunables the decision and action steps need from
// internal/config.
type Config struct {
	DecisionIntervalSeconds float64
	StuckWindowSeconds      float64
	StuckDistanceThreshold  float64
	RandomTargetMinDistance float64
	RandomTargetMaxDistance float64
	MovementTolerance       float64
	ReactionDelaySeconds    float64
	AimNoiseRadians         float64
	LowHealthFraction       float64
	LowAmmoFraction         float64
	EscortOffsetUnits       float64
	AttackRoleFraction      float64
	DefendRoleFraction      float64
}

// Bot is the per-bot AI state carried across ticks, independent of the
// playerstore.Player it drives.
type Bot struct {
	Handle            idpool.Handle
	Objective         Objective
	TargetPosition    Vec2
	TargetEnemy       idpool.Handle
	StuckTimer        float64
	LastPosition      Vec2
	DecisionTimestamp float64

	// decided is false until Tick's first call forces an initial
	// RedecideObjective; DecisionTimestamp alone can't signal "never
	// decided" since 0 is a legitimate simulation timestamp.
	decided bool
}

// NearestEnemy is a precomputed spatial-query result handed in by the
// caller; bots doesn't run its own spatial queries.
type NearestEnemy struct {
	Handle   idpool.Handle
	Position Vec2
	Distance float64
}

// NearestPickup is the precomputed nearest active pickup, used by the TDM
// low-health/low-ammo objective.
type NearestPickup struct {
	Position Vec2
	Distance float64
}
