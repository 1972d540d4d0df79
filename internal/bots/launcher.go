package bots

import (
	"context"
	"sync"

	"massivegame/server/internal/idpool"
	"massivegame/server/internal/playerstore"
)

// Spawner creates or removes one in-process bot-controlled player. Callers
// wire this to the live playerstore and spawn-point selection; PlayerLauncher
// only decides how many bots to maintain and which team each joins.
type Spawner interface {
	SpawnBot(team uint8) (idpool.Handle, *playerstore.Player)
	DespawnBot(handle idpool.Handle)
}

// PlayerLauncher implements Launcher by creating and retiring in-process bot
// players through a Spawner, round-robining new bots across the configured
// teams and tracking each bot's AI state for the caller to drive every tick.
type PlayerLauncher struct {
	mu       sync.Mutex
	spawner  Spawner
	teamIDs  []uint8
	nextTeam int

	// Bots holds the AI state for every currently active bot, keyed by its
	// player handle. The caller looks this up alongside the player itself
	// when running Tick each AI stride.
	Bots map[idpool.Handle]*Bot

	order []idpool.Handle // spawn order; Scale-down retires the most recently spawned bots first
}

// NewPlayerLauncher constructs a launcher that spawns bots onto the given
// teams in round-robin order.
func NewPlayerLauncher(spawner Spawner, teamIDs []uint8) *PlayerLauncher {
	return &PlayerLauncher{
		spawner: spawner,
		teamIDs: teamIDs,
		Bots:    make(map[idpool.Handle]*Bot),
	}
}

// Scale grows or shrinks the bot pool to target, returning the confirmed count.
func (l *PlayerLauncher) Scale(ctx context.Context, target int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for len(l.order) < target {
		team := l.nextTeamLocked()
		handle, _ := l.spawner.SpawnBot(team)
		l.Bots[handle] = &Bot{Handle: handle}
		l.order = append(l.order, handle)
	}
	for len(l.order) > target {
		last := l.order[len(l.order)-1]
		l.order = l.order[:len(l.order)-1]
		delete(l.Bots, last)
		l.spawner.DespawnBot(last)
	}
	return len(l.order), nil
}

func (l *PlayerLauncher) nextTeamLocked() uint8 {
	if len(l.teamIDs) == 0 {
		return 0
	}
	team := l.teamIDs[l.nextTeam%len(l.teamIDs)]
	l.nextTeam++
	return team
}
