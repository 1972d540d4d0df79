// Package broadcaster builds the per-client InitialState and DeltaState
// wire messages from the simulation's authoritative and AoI-filtered views,
// diffing against each client's remembered last-known state per spec.md
// §4.12. It owns the per-client cache itself but no simulation state: callers
// supply the current tick's player/projectile/pickup/wall/match views and
// apply the returned message through their transport adapter.
package broadcaster

import (
	"sync"

	"massivegame/server/internal/idpool"
	"massivegame/server/internal/physics"
	"massivegame/server/internal/protocol"
)

// Vec2 aliases the shared 2D vector type.
type Vec2 = physics.Vec2

// Config bundles the tunables BuildInitialState and BuildDelta need from
// internal/config.
type Config struct {
	SnapshotSizeCapBytes        int
	MaxEventsPerDelta           int
	MaxChatPerTick              int
	MatchInfoTimeEpsilonSeconds float64
}

// WallHP is the last-known (health, max_health) pair for one wall, enough to
// detect whether a newly visible wall's state differs from what a client
// was last told.
type WallHP struct {
	Health    int32
	MaxHealth int32
}

// ClientState is the per-client cache spec.md §4.12 lists: everything a
// broadcaster needs to remember about one session in order to turn the next
// tick's authoritative view into a minimal delta.
type ClientState struct {
	SentInitial bool

	LastKnownPlayers       map[idpool.Handle]protocol.PlayerSnapshot
	LastKnownProjectileIDs map[uint64]struct{}
	LastKnownPickupActive  map[uint64]bool
	KnownDestroyedWallIDs  map[uint64]struct{}
	LastKnownWalls         map[uint64]WallHP

	HasLastKnownMatch  bool
	LastKnownMatch     protocol.MatchInfo
	LastKillFeedCount  int
	LastChatSeqSent    uint64
	LastBroadcastFrame uint64
}

// NewClientState constructs an empty cache for a session immediately after
// its transport channel opens.
func NewClientState() *ClientState {
	return &ClientState{
		LastKnownPlayers:       make(map[idpool.Handle]protocol.PlayerSnapshot),
		LastKnownProjectileIDs: make(map[uint64]struct{}),
		LastKnownPickupActive:  make(map[uint64]bool),
		KnownDestroyedWallIDs:  make(map[uint64]struct{}),
		LastKnownWalls:         make(map[uint64]WallHP),
	}
}

// Registry owns one ClientState per connected session. A single mutex
// guards the map; each ClientState itself is only ever touched by the
// single-threaded broadcast stage for that client, so no finer locking is
// needed.
type Registry struct {
	mu      sync.Mutex
	clients map[idpool.Handle]*ClientState
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[idpool.Handle]*ClientState)}
}

// Open registers a new session and returns its fresh ClientState, called
// when the transport adapter notifies the core of a channel open.
func (r *Registry) Open(handle idpool.Handle) *ClientState {
	cs := NewClientState()
	r.mu.Lock()
	r.clients[handle] = cs
	r.mu.Unlock()
	return cs
}

// Get returns the ClientState for handle, if the session is still open.
func (r *Registry) Get(handle idpool.Handle) (*ClientState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.clients[handle]
	return cs, ok
}

// Close drops handle's cache, called on transport close or player removal.
func (r *Registry) Close(handle idpool.Handle) {
	r.mu.Lock()
	delete(r.clients, handle)
	r.mu.Unlock()
}

// Handles returns every session currently registered, for the broadcast
// stage to fan out over.
func (r *Registry) Handles() []idpool.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]idpool.Handle, 0, len(r.clients))
	for h := range r.clients {
		out = append(out, h)
	}
	return out
}
