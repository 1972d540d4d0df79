package main

import (
	"massivegame/server/internal/logging"
	"massivegame/server/internal/simcore"
)

// simClock adapts simcore.World's authoritative tick clock to
// grpcsync.ClockProvider. It lives outside simcore because the time-sync
// wire format and drift logging are a transport concern, not part of the
// simulation's own state.
type simClock struct {
	world    *simcore.World
	tickRate int
	log      *logging.Logger
}

func newSimClock(world *simcore.World, tickRateHz int, log *logging.Logger) *simClock {
	return &simClock{world: world, tickRate: tickRateHz, log: log}
}

// TimeSyncSnapshot reports the server's current tick clock, in milliseconds,
// as both "server time" and "simulated time" since this server has no
// separate replay/fast-forward clock: the two coincide.
func (c *simClock) TimeSyncSnapshot() (serverMs, simulatedMs, offsetMs int64) {
	simulatedMs = int64(c.world.Now() * 1000)
	return simulatedMs, simulatedMs, 0
}

// LogTimeDrift records a client-reported clock offset for diagnostics.
func (c *simClock) LogTimeDrift(channel, target string, offsetMs int64) {
	if c.log == nil {
		return
	}
	c.log.Debug("time sync drift reported",
		logging.String("channel", channel),
		logging.String("target", target),
		logging.Int64("offset_ms", offsetMs),
	)
}
