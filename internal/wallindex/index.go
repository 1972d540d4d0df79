// Package wallindex provides a spatial index over wall geometry for AABB,
// radius, and segment (raycast) queries. It is rebuilt wholesale whenever
// walls change rather than updated incrementally, since wall destruction and
// respawn are comparatively rare events next to the per-tick player/
// projectile churn that internal/spatial handles.
package wallindex

import (
	"massivegame/server/internal/physics"
)

// Wall is the geometry and liveness the index needs; callers supply whatever
// richer wall representation they hold via this narrow view.
type Wall struct {
	ID     uint64
	Box    physics.AABB
	Active bool // false for a destructible wall currently destroyed
}

type cellKey struct {
	cx, cy int32
}

// Index is a grid-bucketed AABB index, bulk-loaded on Rebuild. No R-tree
// implementation is available anywhere in the pack's dependency set, and
// wall counts per map are small enough (low hundreds) that a uniform grid
// bucketing wall AABBs into overlapping cells gives equivalent query
// performance without a hand-rolled tree-balancing implementation.
type Index struct {
	cellSize float64
	cells    map[cellKey][]Wall
	byID     map[uint64]Wall
}

// NewIndex constructs an empty Index with the given cell size.
func NewIndex(cellSize float64) *Index {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &Index{cellSize: cellSize, cells: make(map[cellKey][]Wall), byID: make(map[uint64]Wall)}
}

// Rebuild bulk-loads the index from the given set of walls, replacing any
// previous contents. Only active walls are indexed; destroyed destructible
// walls drop out until they respawn and are included in the next rebuild.
func (idx *Index) Rebuild(walls []Wall) {
	idx.cells = make(map[cellKey][]Wall)
	idx.byID = make(map[uint64]Wall)
	for _, w := range walls {
		if !w.Active {
			continue
		}
		idx.byID[w.ID] = w
		minKey := idx.keyFor(w.Box.MinX, w.Box.MinY)
		maxKey := idx.keyFor(w.Box.MaxX, w.Box.MaxY)
		for cx := minKey.cx; cx <= maxKey.cx; cx++ {
			for cy := minKey.cy; cy <= maxKey.cy; cy++ {
				k := cellKey{cx, cy}
				idx.cells[k] = append(idx.cells[k], w)
			}
		}
	}
}

func (idx *Index) keyFor(x, y float64) cellKey {
	return cellKey{cx: int32(floorDiv(x, idx.cellSize)), cy: int32(floorDiv(y, idx.cellSize))}
}

func floorDiv(v, size float64) float64 {
	q := v / size
	if q < 0 {
		return q - 1
	}
	return q
}

// Len reports the number of active walls currently indexed.
func (idx *Index) Len() int { return len(idx.byID) }

func (idx *Index) candidatesIn(box physics.AABB) []Wall {
	minKey := idx.keyFor(box.MinX, box.MinY)
	maxKey := idx.keyFor(box.MaxX, box.MaxY)
	seen := make(map[uint64]struct{})
	var out []Wall
	for cx := minKey.cx; cx <= maxKey.cx; cx++ {
		for cy := minKey.cy; cy <= maxKey.cy; cy++ {
			for _, w := range idx.cells[cellKey{cx, cy}] {
				if _, dup := seen[w.ID]; dup {
					continue
				}
				seen[w.ID] = struct{}{}
				out = append(out, w)
			}
		}
	}
	return out
}

// QueryAABB returns every indexed wall whose bounding box intersects box.
func (idx *Index) QueryAABB(box physics.AABB) []Wall {
	var out []Wall
	for _, w := range idx.candidatesIn(box) {
		if w.Box.Intersects(box) {
			out = append(out, w)
		}
	}
	return out
}

// QueryRadius returns every indexed wall overlapping a circle at (x,y) with
// radius r, via its enclosing AABB.
func (idx *Index) QueryRadius(x, y, r float64) []Wall {
	box := physics.BoundingCircle(physics.Vec2{X: x, Y: y}, r)
	var out []Wall
	for _, w := range idx.candidatesIn(box) {
		if w.Box.IntersectsCircle(physics.Vec2{X: x, Y: y}, r) {
			out = append(out, w)
		}
	}
	return out
}

// QuerySegment returns every indexed wall whose bounding box intersects the
// segment a-b, expanded by a small buffer, for raycast candidate gathering.
func (idx *Index) QuerySegment(a, b physics.Vec2, buffer float64) []Wall {
	box := physics.BoundingSegment(a, b, buffer)
	candidates := idx.candidatesIn(box)
	var out []Wall
	for _, w := range candidates {
		if w.Box.Intersects(box) {
			out = append(out, w)
		}
	}
	return out
}

// Get returns the currently indexed state of a wall by id.
func (idx *Index) Get(id uint64) (Wall, bool) {
	w, ok := idx.byID[id]
	return w, ok
}

// StalenessTicks is how often the caller should force a Rebuild as a
// safeguard against missed incremental invalidations, independent of
// destroy/respawn-triggered rebuilds.
const StalenessTicks = 150
