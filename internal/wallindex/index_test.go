package wallindex

import (
	"testing"

	"massivegame/server/internal/physics"
)

func sampleWalls() []Wall {
	return []Wall{
		{ID: 1, Box: physics.AABB{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}, Active: true},
		{ID: 2, Box: physics.AABB{MinX: 500, MinY: 500, MaxX: 520, MaxY: 520}, Active: true},
		{ID: 3, Box: physics.AABB{MinX: 1000, MinY: 1000, MaxX: 1010, MaxY: 1010}, Active: false},
	}
}

func TestRebuildExcludesInactiveWalls(t *testing.T) {
	idx := NewIndex(50)
	idx.Rebuild(sampleWalls())
	if idx.Len() != 2 {
		t.Fatalf("expected 2 active walls indexed, got %d", idx.Len())
	}
	if _, ok := idx.Get(3); ok {
		t.Fatalf("expected inactive wall 3 to be excluded")
	}
}

func TestQueryAABB(t *testing.T) {
	idx := NewIndex(50)
	idx.Rebuild(sampleWalls())
	hits := idx.QueryAABB(physics.AABB{MinX: -5, MinY: -5, MaxX: 15, MaxY: 15})
	if len(hits) != 1 || hits[0].ID != 1 {
		t.Fatalf("expected only wall 1, got %+v", hits)
	}
}

func TestQueryRadius(t *testing.T) {
	idx := NewIndex(50)
	idx.Rebuild(sampleWalls())
	hits := idx.QueryRadius(510, 510, 20)
	if len(hits) != 1 || hits[0].ID != 2 {
		t.Fatalf("expected only wall 2, got %+v", hits)
	}
	none := idx.QueryRadius(0, 0, 1000000)
	if len(none) != 2 {
		t.Fatalf("expected both active walls within a huge radius, got %+v", none)
	}
}

func TestQuerySegment(t *testing.T) {
	idx := NewIndex(50)
	idx.Rebuild(sampleWalls())
	hits := idx.QuerySegment(physics.Vec2{X: -20, Y: 5}, physics.Vec2{X: 20, Y: 5}, 2)
	if len(hits) != 1 || hits[0].ID != 1 {
		t.Fatalf("expected segment crossing wall 1, got %+v", hits)
	}
	miss := idx.QuerySegment(physics.Vec2{X: 200, Y: 200}, physics.Vec2{X: 250, Y: 250}, 2)
	if len(miss) != 0 {
		t.Fatalf("expected no walls along distant segment, got %+v", miss)
	}
}

func TestRebuildReplacesStaleState(t *testing.T) {
	idx := NewIndex(50)
	idx.Rebuild(sampleWalls())

	updated := sampleWalls()
	updated[0].Active = false // wall 1 destroyed
	idx.Rebuild(updated)

	if _, ok := idx.Get(1); ok {
		t.Fatalf("expected destroyed wall removed after rebuild")
	}
	if idx.Len() != 1 {
		t.Fatalf("expected 1 active wall after rebuild, got %d", idx.Len())
	}
}
