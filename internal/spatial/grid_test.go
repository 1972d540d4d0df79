package spatial

import (
	"testing"

	"massivegame/server/internal/idpool"
)

func TestUpdatePlayerAndQueryRadius(t *testing.T) {
	pool := idpool.New()
	alice := pool.GetOrCreate("alice")
	bob := pool.GetOrCreate("bob")

	g := NewGrid(50)
	positions := map[idpool.Handle][2]float64{
		alice: {10, 10},
		bob:   {500, 500},
	}
	g.UpdatePlayer(alice, positions[alice][0], positions[alice][1])
	g.UpdatePlayer(bob, positions[bob][0], positions[bob][1])

	posOf := func(h idpool.Handle) (float64, float64, bool) {
		p, ok := positions[h]
		return p[0], p[1], ok
	}

	near := g.QueryRadiusPlayers(0, 0, 20, posOf)
	if len(near) != 1 || near[0] != alice {
		t.Fatalf("expected only alice in radius, got %+v", near)
	}

	far := g.QueryRadiusPlayers(0, 0, 5, posOf)
	if len(far) != 0 {
		t.Fatalf("expected no players within 5 units, got %+v", far)
	}
}

func TestUpdatePlayerMovesCellAndIsNoopWhenUnchanged(t *testing.T) {
	pool := idpool.New()
	alice := pool.GetOrCreate("alice")
	g := NewGrid(10)

	g.UpdatePlayer(alice, 5, 5)
	g.UpdatePlayer(alice, 6, 6) // same cell, no move
	g.UpdatePlayer(alice, 500, 500)

	posOf := func(h idpool.Handle) (float64, float64, bool) {
		if h == alice {
			return 500, 500, true
		}
		return 0, 0, false
	}

	atOld := g.QueryRadiusPlayers(5, 5, 5, posOf)
	if len(atOld) != 0 {
		t.Fatalf("expected alice to have left the old cell, got %+v", atOld)
	}
	atNew := g.QueryRadiusPlayers(500, 500, 5, posOf)
	if len(atNew) != 1 {
		t.Fatalf("expected alice tracked at new position, got %+v", atNew)
	}
}

func TestRemovePlayer(t *testing.T) {
	pool := idpool.New()
	alice := pool.GetOrCreate("alice")
	g := NewGrid(10)
	g.UpdatePlayer(alice, 1, 1)
	g.RemovePlayer(alice)

	posOf := func(idpool.Handle) (float64, float64, bool) { return 1, 1, true }
	got := g.QueryRadiusPlayers(0, 0, 100, posOf)
	if len(got) != 0 {
		t.Fatalf("expected removed player absent from query, got %+v", got)
	}
}

func TestStalePositionFilteredOut(t *testing.T) {
	pool := idpool.New()
	alice := pool.GetOrCreate("alice")
	g := NewGrid(1000)
	g.UpdatePlayer(alice, 10, 10)

	// posOf reports the entity has moved out of range/died; the cell still
	// contains the stale membership but the query must not emit it.
	posOf := func(idpool.Handle) (float64, float64, bool) { return 0, 0, false }
	got := g.QueryRadiusPlayers(10, 10, 5, posOf)
	if len(got) != 0 {
		t.Fatalf("expected stale/dead entity filtered by authoritative re-check, got %+v", got)
	}
}

func TestBatchUpdateProjectilesAndQuery(t *testing.T) {
	g := NewGrid(50)
	positions := map[uint64][2]float64{1: {0, 0}, 2: {1000, 1000}}
	g.BatchUpdateProjectiles(positions)

	posOf := func(id uint64) (float64, float64, bool) {
		p, ok := positions[id]
		return p[0], p[1], ok
	}
	near := g.QueryRadiusProjectiles(0, 0, 10, posOf)
	if len(near) != 1 || near[0] != 1 {
		t.Fatalf("expected only projectile 1 nearby, got %+v", near)
	}
}

func TestRemoveProjectile(t *testing.T) {
	g := NewGrid(50)
	g.UpdateProjectile(9, 1, 1)
	g.RemoveProjectile(9)
	posOf := func(uint64) (float64, float64, bool) { return 1, 1, true }
	got := g.QueryRadiusProjectiles(0, 0, 100, posOf)
	if len(got) != 0 {
		t.Fatalf("expected removed projectile absent, got %+v", got)
	}
}

func TestNegativeCoordinatesStayConsistent(t *testing.T) {
	pool := idpool.New()
	alice := pool.GetOrCreate("alice")
	g := NewGrid(25)
	g.UpdatePlayer(alice, -40, -40)
	posOf := func(idpool.Handle) (float64, float64, bool) { return -40, -40, true }
	got := g.QueryRadiusPlayers(-40, -40, 5, posOf)
	if len(got) != 1 {
		t.Fatalf("expected player tracked correctly across negative cell boundary, got %+v", got)
	}
}
