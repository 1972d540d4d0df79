package simcore

import (
	"massivegame/server/internal/eventqueue"
	"massivegame/server/internal/idpool"
	"massivegame/server/internal/matchlogic"
	"massivegame/server/internal/partition"
	"massivegame/server/internal/playerstore"
)

// RunGameLogic is stage 3 of the tick pipeline (spec.md §4.9.3): the match
// state machine, pickup collection, CTF flag rules, and melee resolution;
// bot population is reconciled on player join and leave instead (see the
// note in the body). It returns every event raised this tick for the
// broadcast stage to fan out.
func (w *World) RunGameLogic(dt float64) []matchlogic.Event {
	players := w.Players.Snapshot()
	byHandle := make(map[idpool.Handle]*playerstore.Player, len(players))
	for _, p := range players {
		byHandle[p.Handle] = p
	}

	events, resetPlayers := w.Match.AdvanceLifecycle(dt, len(players))
	if resetPlayers {
		for _, p := range players {
			p.Score, p.Kills, p.Deaths = 0, 0, 0
			p.MarkChanged(playerstore.ChangedScoreStats)
		}
	}

	if w.Match.Phase() == matchlogic.PhaseActive {
		events = append(events, matchlogic.CollectPickups(players, w.Pickups(), w.cfg.Match)...)
		if w.Match.Mode() == matchlogic.ModeCTF {
			events = append(events, matchlogic.TickFlags(dt, w.cfg.Match, w.Match, players, byHandle)...)
		}
	}

	if len(w.meleeHits) > 0 {
		query := func(x, y, r float64) []idpool.Handle {
			return w.Grid.QueryRadiusPlayers(x, y, r, w.playerPosOf)
		}
		events = append(events, matchlogic.ResolveMelee(w.meleeHits, w.cfg.Match, w.Match, byHandle, query)...)
		w.meleeHits = w.meleeHits[:0]
	}

	// Bot population management (spec.md §4.9.3 step 5) is event-driven: see
	// World.AddHumanPlayer/AddBotPlayer/RemovePlayer, which call through to
	// BotCtl.HumanConnected/HumanDisconnected so the pool reconciles the
	// instant a human joins or leaves rather than being polled every tick.

	// WeaponFired/WallImpact/WallDestroyed were raised earlier in the tick
	// (input application, physics) and buffered since neither stage can
	// return events of its own; fold them in here.
	events = append(w.tickEvents, events...)
	w.tickEvents = w.tickEvents[:0]

	return w.routeThroughPartitions(events)
}

// routeThroughPartitions pushes every event onto the event queue owned by
// the partition covering its position (spec.md §4.6) and drains each
// partition's queue back out, high priority before normal before low. This
// is the "callers push it onto the owning partition's event queue" wiring
// internal/matchlogic.Event's doc comment describes.
func (w *World) routeThroughPartitions(events []matchlogic.Event) []matchlogic.Event {
	touched := make(map[*partition.Partition]struct{}, len(events))
	for _, e := range events {
		part := w.Partitions.GetPartitionForPoint(e.Position.X, e.Position.Y)
		part.Events.Push(e, eventPriority(e.Kind))
		touched[part] = struct{}{}
	}

	out := make([]matchlogic.Event, 0, len(events))
	for part := range touched {
		for _, raw := range part.Events.PopBatch(part.Events.Len()) {
			out = append(out, raw.(matchlogic.Event))
		}
	}
	return out
}

// eventPriority assigns each event kind a queue priority: damage/kill/wall-
// destruction events (combat-critical, kill-feed and health bars depend on
// them) go High, cosmetic/progress events go Normal, and the infrequent
// match-phase transition goes Low.
func eventPriority(kind matchlogic.EventKind) eventqueue.Priority {
	switch kind {
	case matchlogic.EventPlayerDamaged, matchlogic.EventPlayerKilled, matchlogic.EventWallDestroyed:
		return eventqueue.High
	case matchlogic.EventMatchStateChanged:
		return eventqueue.Low
	default:
		return eventqueue.Normal
	}
}

func (w *World) playerPosOf(h idpool.Handle) (float64, float64, bool) {
	p, ok := w.Players.Get(h)
	if !ok || !p.Alive {
		return 0, 0, false
	}
	return p.X, p.Y, true
}
