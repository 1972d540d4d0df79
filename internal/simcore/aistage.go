package simcore

import (
	"massivegame/server/internal/bots"
	"massivegame/server/internal/idpool"
	"massivegame/server/internal/playerstore"
)

// botSightRadius bounds the nearest-enemy/nearest-pickup search a bot's
// decision step runs every redecision; it is deliberately generous since
// RedecideObjective itself gates engagement by weapon range.
const botSightRadius = 4000.0

// RunBotAI is stage 1b of the tick pipeline (spec.md §4.9.1 / §4.13): every
// AIUpdateStride ticks, each bot redecides its objective on schedule (stuck
// detection swaps in a random target instead) and synthesizes a fresh input,
// which is queued onto its player exactly as a human client's input would
// be. The TickScheduler runs this concurrently with ApplyInputs on a sibling
// goroutine. Both stages touch a bot player's InputQueue (ApplyInputs drains
// it, this stage appends to it); playerstore.Store's per-shard locking makes
// those concurrent GetMut/ForEachMut calls safe, and a queued bot input is
// applied by whichever ApplyInputs pass next reaches that player, in this
// tick or the next. It reads w.botRng rather than w.rng,
// since math/rand.Rand is not safe for concurrent use and ApplyInputs uses
// w.rng on its own goroutine at the same time.
func (w *World) RunBotAI(dt float64) {
	if w.tickCount%uint64(w.cfg.Sim.AIUpdateStride) != 0 {
		return
	}
	snapshot := w.Players.Snapshot()
	byHandle := make(map[idpool.Handle]*playerstore.Player, len(snapshot))
	for _, p := range snapshot {
		byHandle[p.Handle] = p
	}
	matchSnap := w.Match.Snapshot()

	for handle, bot := range w.botStates {
		self, ok := byHandle[handle]
		if !ok || !self.Alive {
			continue
		}

		ctx := bots.DecisionContext{
			Match:         matchSnap,
			ByHandle:      byHandle,
			NearestEnemy:  w.nearestEnemyOf(self, byHandle),
			NearestPickup: w.nearestPickupOf(self),
			PatrolPoints:  w.patrolPoints,
		}
		losClear := func(a, b Vec2) bool { return bots.LineOfSight(w.WallIndex, a, b) }

		in := bots.Tick(bot, self, dt, w.now, ctx, w.cfg.Bots, w.botRng, losClear)
		w.Players.GetMut(handle, func(p *playerstore.Player) {
			in.Sequence = p.LastProcessedInputSequence + 1
			p.InputQueue = append(p.InputQueue, in)
		})
	}
}

func (w *World) nearestEnemyOf(self *playerstore.Player, byHandle map[idpool.Handle]*playerstore.Player) *bots.NearestEnemy {
	posOf := func(h idpool.Handle) (float64, float64, bool) {
		p, ok := byHandle[h]
		if !ok || !p.Alive {
			return 0, 0, false
		}
		return p.X, p.Y, true
	}
	var best *bots.NearestEnemy
	for _, h := range w.Grid.QueryRadiusPlayers(self.X, self.Y, botSightRadius, posOf) {
		if h.Equal(self.Handle) {
			continue
		}
		p, ok := byHandle[h]
		if !ok || !p.Alive || p.TeamID == self.TeamID {
			continue
		}
		pos := Vec2{X: p.X, Y: p.Y}
		dist := Vec2{X: self.X, Y: self.Y}.Distance(pos)
		if best == nil || dist < best.Distance {
			best = &bots.NearestEnemy{Handle: h, Position: pos, Distance: dist}
		}
	}
	return best
}

func (w *World) nearestPickupOf(self *playerstore.Player) *bots.NearestPickup {
	var best *bots.NearestPickup
	selfPos := Vec2{X: self.X, Y: self.Y}
	for _, pk := range w.pickups {
		if !pk.Active {
			continue
		}
		dist := selfPos.Distance(pk.Position)
		if best == nil || dist < best.Distance {
			best = &bots.NearestPickup{Position: pk.Position, Distance: dist}
		}
	}
	return best
}
