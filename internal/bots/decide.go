package bots

import (
	"hash/fnv"

	"massivegame/server/internal/idpool"
	"massivegame/server/internal/matchlogic"
	"massivegame/server/internal/playerstore"
)

// DecisionContext bundles everything a redecision needs from the rest of
// the simulation that bots doesn't track itself.
type DecisionContext struct {
	Match         matchlogic.Snapshot
	ByHandle      map[idpool.Handle]*playerstore.Player
	NearestEnemy  *NearestEnemy
	NearestPickup *NearestPickup
	PatrolPoints  []Vec2
}

// RedecideObjective re-evaluates bot's objective per spec.md §4.14 step 2.
// Tick invokes this on a bot's first update and whenever the decision
// interval has elapsed; stuck detection does not call it, it only swaps in a
// random target and restarts the decision timer.
func RedecideObjective(bot *Bot, self *playerstore.Player, ctx DecisionContext, cfg Config, rng RNG) {
	if ctx.Match.Mode == matchlogic.ModeCTF && ctx.Match.Phase == matchlogic.PhaseActive {
		decideCTF(bot, self, ctx, cfg)
		return
	}
	decideTDM(bot, self, ctx, cfg, rng)
}

func decideCTF(bot *Bot, self *playerstore.Player, ctx DecisionContext, cfg Config) {
	var ownFlag, enemyFlag *matchlogic.Flag
	for i := range ctx.Match.Flags {
		f := &ctx.Match.Flags[i]
		if f.TeamID == self.TeamID {
			ownFlag = f
		} else {
			enemyFlag = f
		}
	}

	switch {
	case self.CarriedFlagTeamID != 0:
		bot.Objective = ObjectiveReturnFlag
		if ownFlag != nil {
			bot.TargetPosition = ownFlag.Home
		}
	case ownFlag != nil && ownFlag.Status == matchlogic.FlagCarried:
		// Only an enemy can hold our flag in Carried state: own-team pickups
		// of a dropped flag resolve to an instant return in TickFlags.
		bot.Objective = ObjectiveChaseCarrier
		bot.TargetEnemy = ownFlag.Carrier
		bot.TargetPosition = ownFlag.Position
	case enemyFlag != nil && enemyFlag.Status == matchlogic.FlagCarried && isTeammate(ctx.ByHandle, enemyFlag.Carrier, self.TeamID):
		bot.Objective = ObjectiveEscort
		bot.TargetPosition = escortPosition(enemyFlag.Position, cfg.EscortOffsetUnits)
	default:
		switch roleRoll(bot.Handle, cfg) {
		case roleAttack:
			bot.Objective = ObjectiveAttackEnemyFlag
			if enemyFlag != nil {
				bot.TargetPosition = enemyFlag.Position
			}
		case roleDefend:
			bot.Objective = ObjectiveDefendOwnFlag
			if ownFlag != nil {
				bot.TargetPosition = ownFlag.Home
			}
		default:
			bot.Objective = ObjectiveFlex
			if enemyFlag != nil {
				bot.TargetPosition = enemyFlag.Position
			}
		}
	}
}

func decideTDM(bot *Bot, self *playerstore.Player, ctx DecisionContext, cfg Config, rng RNG) {
	lowHealth := self.MaxHealth > 0 && float64(self.Health) <= cfg.LowHealthFraction*float64(self.MaxHealth)
	lowAmmo := float64(self.Ammo) <= cfg.LowAmmoFraction*float64(weaponMaxAmmo(self.Weapon))

	switch {
	case (lowHealth || lowAmmo) && ctx.NearestPickup != nil:
		bot.Objective = ObjectiveSeekPickup
		bot.TargetPosition = ctx.NearestPickup.Position
	case ctx.NearestEnemy != nil && ctx.NearestEnemy.Distance <= weaponRangeOf(self.Weapon):
		bot.Objective = ObjectiveEngageNearest
		bot.TargetEnemy = ctx.NearestEnemy.Handle
		bot.TargetPosition = ctx.NearestEnemy.Position
	case ctx.NearestEnemy != nil && rng.Float64() < 0.5:
		bot.Objective = ObjectiveFlank
		bot.TargetEnemy = ctx.NearestEnemy.Handle
		bot.TargetPosition = flankPosition(Vec2{X: self.X, Y: self.Y}, ctx.NearestEnemy.Position, rng)
	default:
		bot.Objective = ObjectivePatrol
		bot.TargetPosition = patrolTarget(Vec2{X: self.X, Y: self.Y}, ctx.PatrolPoints, cfg, rng)
	}
}

type role uint8

const (
	roleAttack role = iota
	roleDefend
	roleFlex
)

// roleRoll deterministically assigns each bot a stable CTF role so the same
// bot doesn't flip between attack/defend/flex on every redecision, while
// still splitting the team's idle bots by cfg's fractions.
func roleRoll(h idpool.Handle, cfg Config) role {
	sum := fnv.New32a()
	sum.Write([]byte(h.String()))
	frac := float64(sum.Sum32()%10000) / 10000
	switch {
	case frac < cfg.AttackRoleFraction:
		return roleAttack
	case frac < cfg.AttackRoleFraction+cfg.DefendRoleFraction:
		return roleDefend
	default:
		return roleFlex
	}
}

func isTeammate(byHandle map[idpool.Handle]*playerstore.Player, h idpool.Handle, team uint8) bool {
	p, ok := byHandle[h]
	return ok && p.TeamID == team
}

func escortPosition(carrierPos Vec2, offset float64) Vec2 {
	return carrierPos.Add(Vec2{X: -offset, Y: 0})
}

// flankPosition picks a point to one side of the enemy rather than straight
// at them, alternating sides randomly per redecision.
func flankPosition(self, enemy Vec2, rng RNG) Vec2 {
	toEnemy := enemy.Sub(self)
	perp := Vec2{X: -toEnemy.Y, Y: toEnemy.X}
	if perp.Length() == 0 {
		perp = Vec2{X: 1}
	}
	perp = perp.Normalize()
	if rng.Float64() < 0.5 {
		perp = perp.Scale(-1)
	}
	return enemy.Add(perp.Scale(150))
}

func patrolTarget(self Vec2, points []Vec2, cfg Config, rng RNG) Vec2 {
	if len(points) > 0 {
		return points[rng.Intn(len(points))]
	}
	return randomPointNear(self, cfg.RandomTargetMinDistance, cfg.RandomTargetMaxDistance, rng)
}
