package bots

import (
	"massivegame/server/internal/idpool"
	"massivegame/server/internal/playerstore"
)

// Tick runs one AI update for bot: redeciding its objective on schedule,
// replacing its target with a random nearby point when stuck, then
// synthesizing the input for this tick. Callers invoke
// this only every AIUpdateStride ticks per spec.md §4.13 stage 1b.
func Tick(bot *Bot, self *playerstore.Player, dt, now float64, ctx DecisionContext, cfg Config, rng RNG, losClear func(a, b Vec2) bool) playerstore.Input {
	if !self.Alive {
		return playerstore.Input{}
	}
	pos := Vec2{X: self.X, Y: self.Y}
	if !bot.decided {
		bot.decided = true
		bot.LastPosition = pos
		bot.DecisionTimestamp = now
		RedecideObjective(bot, self, ctx, cfg, rng)
	} else if now-bot.DecisionTimestamp >= cfg.DecisionIntervalSeconds {
		RedecideObjective(bot, self, ctx, cfg, rng)
		bot.DecisionTimestamp = now
	}

	// Stuck detection, spec.md §4.14 step 3: if the bot moved less than the
	// threshold distance over the window, force a new random target.
	bot.StuckTimer += dt
	if bot.StuckTimer >= cfg.StuckWindowSeconds {
		if pos.Distance(bot.LastPosition) < cfg.StuckDistanceThreshold {
			bot.TargetPosition = randomPointNear(pos, cfg.RandomTargetMinDistance, cfg.RandomTargetMaxDistance, rng)
			bot.TargetEnemy = idpool.Handle{}
			bot.DecisionTimestamp = now
		}
		bot.LastPosition = pos
		bot.StuckTimer = 0
	}

	return GenerateInput(bot, self, now, ctx, cfg, rng, losClear)
}
