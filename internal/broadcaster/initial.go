package broadcaster

import (
	"massivegame/server/internal/logging"
	"massivegame/server/internal/matchlogic"
	"massivegame/server/internal/protocol"
)

// BuildInitialState assembles the once-per-session snapshot sent immediately
// after Welcome: self state, currently visible players/projectiles/pickups,
// every alive-or-indestructible wall across all partitions, and match info.
// It never touches ClientState directly; the caller marks SentInitial once
// the send succeeds.
//
// Per spec.md §4.12 the payload is size-capped; walls are truncated first,
// then projectiles, logging each truncation.
func BuildInitialState(
	self protocol.PlayerSnapshot,
	visiblePlayers []protocol.PlayerSnapshot,
	walls []protocol.WallState,
	projectiles []protocol.ProjectileSnapshot,
	pickups []protocol.PickupSnapshot,
	match matchlogic.Snapshot,
	mapName string,
	now uint64,
	cfg Config,
	log *logging.Logger,
	metrics *Metrics,
) protocol.InitialState {
	state := protocol.InitialState{
		Timestamp:      now,
		Self:           self,
		VisiblePlayers: visiblePlayers,
		Walls:          walls,
		Projectiles:    projectiles,
		Pickups:        pickups,
		Match:          ToMatchInfo(match),
		MapName:        mapName,
	}

	sizeCap := cfg.SnapshotSizeCapBytes
	if sizeCap <= 0 {
		return state
	}

	// Truncate walls first, then projectiles, re-measuring the encoded size
	// after each cut until the payload fits or there is nothing left to cut.
	for len(protocol.EncodeInitialState(state)) > sizeCap && len(state.Walls) > 0 {
		cut := len(state.Walls)/4 + 1
		state.Walls = state.Walls[:len(state.Walls)-cut]
		metrics.RecordDrop("walls", cut)
		if log != nil {
			log.Warn("initial snapshot exceeded size cap, truncating walls",
				logging.Int("remaining_walls", len(state.Walls)))
		}
	}
	for len(protocol.EncodeInitialState(state)) > sizeCap && len(state.Projectiles) > 0 {
		cut := len(state.Projectiles)/4 + 1
		state.Projectiles = state.Projectiles[:len(state.Projectiles)-cut]
		metrics.RecordDrop("projectiles", cut)
		if log != nil {
			log.Warn("initial snapshot exceeded size cap, truncating projectiles",
				logging.Int("remaining_projectiles", len(state.Projectiles)))
		}
	}
	return state
}
