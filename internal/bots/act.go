package bots

import (
	"massivegame/server/internal/physics"
	"massivegame/server/internal/playerstore"
	"massivegame/server/internal/wallindex"
)

// losStepUnits is the raycast sample spacing spec.md §4.14 step 4 specifies
// for bot line-of-sight checks.
const losStepUnits = 20

// LineOfSight reports whether a straight line from a to b is unobstructed by
// active walls. It first narrows candidates with the spatial index, then
// walks the segment in losStepUnits increments testing containment only
// against that small candidate set.
func LineOfSight(idx *wallindex.Index, a, b Vec2) bool {
	if idx == nil {
		return true
	}
	candidates := idx.QuerySegment(a, b, 0)
	if len(candidates) == 0 {
		return true
	}
	blocked := physics.SampleSegment(a, b, losStepUnits, func(p Vec2) bool {
		for _, w := range candidates {
			if !w.Active {
				continue // a destroyed destructible wall is transparent.
			}
			if w.Box.Contains(p) {
				return true
			}
		}
		return false
	})
	return !blocked
}

// GenerateInput synthesizes one tick's client input from bot's current
// objective per spec.md §4.14 step 4: rotate toward the target with aim
// noise, move forward while outside cfg.MovementTolerance, and shoot only
// when a target enemy is set, alive, in weapon range, past the reaction
// delay since the last redecision, and has a clear line of sight.
func GenerateInput(bot *Bot, self *playerstore.Player, now float64, ctx DecisionContext, cfg Config, rng RNG, losClear func(a, b Vec2) bool) playerstore.Input {
	pos := Vec2{X: self.X, Y: self.Y}
	var in playerstore.Input

	heading := pos.HeadingTo(bot.TargetPosition)
	noise := (rng.Float64()*2 - 1) * cfg.AimNoiseRadians
	in.Rotation = float32(physics.WrapAngle(heading + noise))

	if pos.Distance(bot.TargetPosition) > cfg.MovementTolerance {
		in.MoveForward = true
	}

	if bot.TargetEnemy.IsZero() {
		return in
	}
	enemy, ok := ctx.ByHandle[bot.TargetEnemy]
	if !ok || !enemy.Alive {
		return in
	}
	enemyPos := Vec2{X: enemy.X, Y: enemy.Y}
	if pos.Distance(enemyPos) > weaponRangeOf(self.Weapon) {
		return in
	}
	if now-bot.DecisionTimestamp < cfg.ReactionDelaySeconds {
		return in
	}
	if losClear != nil && !losClear(pos, enemyPos) {
		return in
	}
	in.Shooting = true
	return in
}
