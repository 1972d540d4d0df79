package playerstore

import (
	"testing"

	"massivegame/server/internal/idpool"
)

func newTestPlayer(h idpool.Handle) *Player {
	return &Player{Handle: h, Health: 100, MaxHealth: 100, Alive: true, TeamID: 1}
}

func TestAddGetRemove(t *testing.T) {
	pool := idpool.New()
	store := New(4)
	h := pool.GetOrCreate("alice")
	store.Add(newTestPlayer(h))

	got, ok := store.Get(h)
	if !ok || got.Handle != h {
		t.Fatalf("expected to find player alice")
	}

	store.Remove(h)
	if _, ok := store.Get(h); ok {
		t.Fatalf("expected player removed")
	}
}

func TestGetMutMutatesInPlace(t *testing.T) {
	pool := idpool.New()
	store := New(4)
	h := pool.GetOrCreate("alice")
	store.Add(newTestPlayer(h))

	ok := store.GetMut(h, func(p *Player) {
		p.Health = 50
		p.MarkChanged(ChangedHealthAlive)
	})
	if !ok {
		t.Fatalf("expected GetMut to find player")
	}

	got, _ := store.Get(h)
	if got.Health != 50 {
		t.Fatalf("expected mutation to persist, got health %d", got.Health)
	}
	if got.ChangedFields&ChangedHealthAlive == 0 {
		t.Fatalf("expected changed-fields bit set")
	}
}

func TestForEachMutVisitsAllShards(t *testing.T) {
	pool := idpool.New()
	store := New(8)
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	for _, id := range ids {
		store.Add(newTestPlayer(pool.GetOrCreate(id)))
	}

	visited := 0
	store.ForEachMut(func(p *Player) {
		p.Score++
		visited++
	})
	if visited != len(ids) {
		t.Fatalf("expected to visit %d players, visited %d", len(ids), visited)
	}

	for _, id := range ids {
		h, _ := pool.Lookup(id)
		p, _ := store.Get(h)
		if p.Score != 1 {
			t.Fatalf("expected score incremented for %s, got %d", id, p.Score)
		}
	}
}

func TestLenAndSnapshot(t *testing.T) {
	pool := idpool.New()
	store := New(4)
	store.Add(newTestPlayer(pool.GetOrCreate("a")))
	store.Add(newTestPlayer(pool.GetOrCreate("b")))

	if store.Len() != 2 {
		t.Fatalf("expected len 2, got %d", store.Len())
	}
	snap := store.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected snapshot of 2, got %d", len(snap))
	}
}

func TestConsumeChangedResetsMask(t *testing.T) {
	p := &Player{}
	p.MarkChanged(ChangedScoreStats | ChangedShield)
	bits := p.ConsumeChanged()
	if bits != ChangedScoreStats|ChangedShield {
		t.Fatalf("unexpected consumed bits: %b", bits)
	}
	if p.ChangedFields != 0 {
		t.Fatalf("expected mask cleared after consume")
	}
}
