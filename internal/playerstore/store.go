package playerstore

import (
	"hash/fnv"
	"sync"

	"massivegame/server/internal/idpool"
)

type shard struct {
	mu      sync.RWMutex
	players map[idpool.Handle]*Player
}

// Store is a sharded concurrent map of Player state keyed by handle. Shard
// selection is by stable hash of the handle's interned id string, so the
// same player always lands in the same shard for the lifetime of its handle.
type Store struct {
	shards []*shard
}

// New constructs a Store with the given shard count.
func New(shardCount int) *Store {
	if shardCount < 1 {
		shardCount = 1
	}
	s := &Store{shards: make([]*shard, shardCount)}
	for i := range s.shards {
		s.shards[i] = &shard{players: make(map[idpool.Handle]*Player)}
	}
	return s
}

func (s *Store) shardFor(h idpool.Handle) *shard {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(h.String()))
	return s.shards[hasher.Sum32()%uint32(len(s.shards))]
}

// Add inserts a new player. It overwrites any existing entry for the handle.
func (s *Store) Add(p *Player) {
	sh := s.shardFor(p.Handle)
	sh.mu.Lock()
	sh.players[p.Handle] = p
	sh.mu.Unlock()
}

// Remove deletes the player for handle, if present.
func (s *Store) Remove(h idpool.Handle) {
	sh := s.shardFor(h)
	sh.mu.Lock()
	delete(sh.players, h)
	sh.mu.Unlock()
}

// Get returns the player for handle under a read guard scoped to the call;
// the returned pointer must not be retained past concurrent mutation of the
// same handle without external synchronization — callers that need to
// mutate should use GetMut.
func (s *Store) Get(h idpool.Handle) (*Player, bool) {
	sh := s.shardFor(h)
	sh.mu.RLock()
	p, ok := sh.players[h]
	sh.mu.RUnlock()
	return p, ok
}

// GetMut runs fn with the player for handle under a write guard scoped to
// that player's shard. fn must not call back into the Store: doing so
// deadlocks since the shard lock is already held.
func (s *Store) GetMut(h idpool.Handle, fn func(p *Player)) bool {
	sh := s.shardFor(h)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	p, ok := sh.players[h]
	if !ok {
		return false
	}
	fn(p)
	return true
}

// ForEach calls fn for every player under a read guard held per shard. fn
// must not call back into the Store.
func (s *Store) ForEach(fn func(p *Player)) {
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, p := range sh.players {
			fn(p)
		}
		sh.mu.RUnlock()
	}
}

// ForEachMut calls fn for every player with that player's shard write-locked.
// Shards are locked one at a time, in a fixed order, never more than one at
// once, so this never deadlocks against concurrent GetMut calls on other
// shards. fn must not call back into the Store under pain of deadlock;
// consumers that need cross-player effects should collect handles here and
// process them after ForEachMut returns.
func (s *Store) ForEachMut(fn func(p *Player)) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, p := range sh.players {
			fn(p)
		}
		sh.mu.Unlock()
	}
}

// Len returns the total number of tracked players across all shards.
func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.players)
		sh.mu.RUnlock()
	}
	return total
}

// Snapshot returns a shallow copy of every tracked player pointer. Useful
// for call sites that need a stable list to range over outside any shard
// lock (e.g. building a broadcast batch).
func (s *Store) Snapshot() []*Player {
	out := make([]*Player, 0, s.Len())
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, p := range sh.players {
			out = append(out, p)
		}
		sh.mu.RUnlock()
	}
	return out
}
