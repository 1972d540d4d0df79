package simcore

import "massivegame/server/internal/matchlogic"

// RunCleanup is stage 5 of the tick pipeline (spec.md §4.9.5): clear the
// per-tick wall-change tracking that RunPhysics populated,
// so the wall index isn't rebuilt again next tick unless something actually
// changes.
func (w *World) RunCleanup() {
	w.destroyedWallsThisTick = w.destroyedWallsThisTick[:0]
	w.updatedWallsThisTick = w.updatedWallsThisTick[:0]
}

// AdvanceClock moves the simulation's monotonic clock forward by dt and
// increments the tick counter. Callers that drive stages individually (the
// TickScheduler) call this once per tick after every stage has run; Tick
// calls it internally for callers that just want one fixed step applied.
func (w *World) AdvanceClock(dt float64) {
	w.now += dt
	w.tickCount++
}

// Tick advances the simulation by one fixed step, running every substage of
// spec.md §4.9 in order: input application, bot AI, physics, game logic,
// state sync, and cleanup. It returns the events raised this tick for the
// broadcast stage. This runs every stage sequentially; the TickScheduler
// instead drives ApplyInputs and RunBotAI concurrently per spec.md §4.13 and
// calls the stage methods directly.
func (w *World) Tick(dt float64) []matchlogic.Event {
	w.ApplyInputs(dt)
	w.RunBotAI(dt)
	w.RunPhysics(dt)
	events := w.RunGameLogic(dt)
	w.RunStateSync(dt)
	w.RunCleanup()
	w.AdvanceClock(dt)

	return events
}
