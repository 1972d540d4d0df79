// Package spatial provides a uniform-grid spatial index for players and
// projectiles, used by the simulation core to answer radius queries without
// scanning every tracked entity every tick.
package spatial

import (
	"sync"

	"massivegame/server/internal/idpool"
)

type cellKey struct {
	cx, cy int32
}

type cell struct {
	mu          sync.RWMutex
	players     map[idpool.Handle]struct{}
	projectiles map[uint64]struct{}
}

func newCell() *cell {
	return &cell{
		players:     make(map[idpool.Handle]struct{}),
		projectiles: make(map[uint64]struct{}),
	}
}

// PositionLookup resolves the current authoritative position of a tracked
// entity so that Query* calls can re-check candidates before emitting them,
// since a grid cell only over-approximates membership.
type PositionLookup func(id any) (x, y float64, ok bool)

// Grid is a fixed-cell-size uniform grid index over players and projectiles.
// Cell contents are guarded individually so that updates to unrelated areas
// of the world never contend with each other.
type Grid struct {
	cellSize float64

	cellsMu sync.RWMutex
	cells   map[cellKey]*cell

	playerCellsMu sync.RWMutex
	playerCells   map[idpool.Handle]cellKey

	projCellsMu sync.RWMutex
	projCells   map[uint64]cellKey
}

// NewGrid constructs a Grid with the given cell size in world units.
func NewGrid(cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &Grid{
		cellSize:    cellSize,
		cells:       make(map[cellKey]*cell),
		playerCells: make(map[idpool.Handle]cellKey),
		projCells:   make(map[uint64]cellKey),
	}
}

func (g *Grid) keyFor(x, y float64) cellKey {
	return cellKey{cx: int32(floorDiv(x, g.cellSize)), cy: int32(floorDiv(y, g.cellSize))}
}

func floorDiv(v, size float64) float64 {
	q := v / size
	if q < 0 {
		return q - 1 // floor for negative quotients so cell boundaries are consistent across the origin
	}
	return q
}

func (g *Grid) cellAt(k cellKey) *cell {
	g.cellsMu.RLock()
	c, ok := g.cells[k]
	g.cellsMu.RUnlock()
	if ok {
		return c
	}
	g.cellsMu.Lock()
	defer g.cellsMu.Unlock()
	if c, ok = g.cells[k]; ok {
		return c
	}
	c = newCell()
	g.cells[k] = c
	return c
}

// UpdatePlayer moves handle to the cell containing (x,y); a no-op if the
// entity is already tracked in that cell.
func (g *Grid) UpdatePlayer(handle idpool.Handle, x, y float64) {
	newKey := g.keyFor(x, y)

	g.playerCellsMu.Lock()
	oldKey, tracked := g.playerCells[handle]
	if tracked && oldKey == newKey {
		g.playerCellsMu.Unlock()
		return
	}
	g.playerCells[handle] = newKey
	g.playerCellsMu.Unlock()

	if tracked {
		oldCell := g.cellAt(oldKey)
		oldCell.mu.Lock()
		delete(oldCell.players, handle)
		oldCell.mu.Unlock()
	}
	newCell := g.cellAt(newKey)
	newCell.mu.Lock()
	newCell.players[handle] = struct{}{}
	newCell.mu.Unlock()
}

// RemovePlayer drops handle from the index entirely, e.g. on disconnect.
func (g *Grid) RemovePlayer(handle idpool.Handle) {
	g.playerCellsMu.Lock()
	key, tracked := g.playerCells[handle]
	delete(g.playerCells, handle)
	g.playerCellsMu.Unlock()
	if !tracked {
		return
	}
	c := g.cellAt(key)
	c.mu.Lock()
	delete(c.players, handle)
	c.mu.Unlock()
}

// UpdateProjectile moves a projectile id to the cell containing (x,y).
func (g *Grid) UpdateProjectile(id uint64, x, y float64) {
	newKey := g.keyFor(x, y)

	g.projCellsMu.Lock()
	oldKey, tracked := g.projCells[id]
	if tracked && oldKey == newKey {
		g.projCellsMu.Unlock()
		return
	}
	g.projCells[id] = newKey
	g.projCellsMu.Unlock()

	if tracked {
		oldCell := g.cellAt(oldKey)
		oldCell.mu.Lock()
		delete(oldCell.projectiles, id)
		oldCell.mu.Unlock()
	}
	newCell := g.cellAt(newKey)
	newCell.mu.Lock()
	newCell.projectiles[id] = struct{}{}
	newCell.mu.Unlock()
}

// BatchUpdateProjectiles applies UpdateProjectile for a whole tick's worth of
// projectile positions in one call.
func (g *Grid) BatchUpdateProjectiles(positions map[uint64][2]float64) {
	for id, pos := range positions {
		g.UpdateProjectile(id, pos[0], pos[1])
	}
}

// RemoveProjectile drops a projectile id from the index, e.g. on impact.
func (g *Grid) RemoveProjectile(id uint64) {
	g.projCellsMu.Lock()
	key, tracked := g.projCells[id]
	delete(g.projCells, id)
	g.projCellsMu.Unlock()
	if !tracked {
		return
	}
	c := g.cellAt(key)
	c.mu.Lock()
	delete(c.projectiles, id)
	c.mu.Unlock()
}

func (g *Grid) cellRange(x, y, r float64) (minKey, maxKey cellKey) {
	minKey = g.keyFor(x-r, y-r)
	maxKey = g.keyFor(x+r, y+r)
	return
}

// QueryRadiusPlayers returns every tracked player handle within r of (x,y).
// posOf supplies the authoritative current position for a candidate; cells
// only over-approximate membership, and stale entries are filtered out by
// this exact squared-distance re-check before the handle is emitted.
func (g *Grid) QueryRadiusPlayers(x, y, r float64, posOf func(idpool.Handle) (float64, float64, bool)) []idpool.Handle {
	minKey, maxKey := g.cellRange(x, y, r)
	r2 := r * r
	var out []idpool.Handle
	for cx := minKey.cx; cx <= maxKey.cx; cx++ {
		for cy := minKey.cy; cy <= maxKey.cy; cy++ {
			g.cellsMu.RLock()
			c, ok := g.cells[cellKey{cx, cy}]
			g.cellsMu.RUnlock()
			if !ok {
				continue
			}
			c.mu.RLock()
			for h := range c.players {
				px, py, live := posOf(h)
				if !live {
					continue
				}
				dx, dy := px-x, py-y
				if dx*dx+dy*dy <= r2 {
					out = append(out, h)
				}
			}
			c.mu.RUnlock()
		}
	}
	return out
}

// QueryRadiusProjectiles returns every tracked projectile id within r of (x,y).
func (g *Grid) QueryRadiusProjectiles(x, y, r float64, posOf func(uint64) (float64, float64, bool)) []uint64 {
	minKey, maxKey := g.cellRange(x, y, r)
	r2 := r * r
	var out []uint64
	for cx := minKey.cx; cx <= maxKey.cx; cx++ {
		for cy := minKey.cy; cy <= maxKey.cy; cy++ {
			g.cellsMu.RLock()
			c, ok := g.cells[cellKey{cx, cy}]
			g.cellsMu.RUnlock()
			if !ok {
				continue
			}
			c.mu.RLock()
			for id := range c.projectiles {
				px, py, live := posOf(id)
				if !live {
					continue
				}
				dx, dy := px-x, py-y
				if dx*dx+dy*dy <= r2 {
					out = append(out, id)
				}
			}
			c.mu.RUnlock()
		}
	}
	return out
}
