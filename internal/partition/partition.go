// Package partition divides the world into a fixed grid of partitions, each
// exclusively owning the walls that fall within it plus a local event queue
// and boundary-zone bookkeeping for neighbor coordination.
package partition

import (
	"massivegame/server/internal/eventqueue"
	"massivegame/server/internal/physics"
)

// Wall is the authoritative wall state; WorldPartitionManager is its sole
// owner per spec.md §3 "Ownership summary".
type Wall struct {
	ID           uint64
	Box          physics.AABB
	Destructible bool
	Health       int32
	MaxHealth    int32
}

// Key identifies one cell of the partition grid.
type Key struct {
	Col, Row int
}

// Partition owns a slice of the world: its walls, a snapshot of handles
// currently inside its boundary zone (for neighbor coordination, consumed
// opaquely by whatever sits above this package), and a local event queue for
// events generated by activity within its bounds.
type Partition struct {
	Key    Key
	Bounds physics.AABB

	walls map[uint64]*Wall

	boundaryZone []string // entity ids currently within the boundary margin
	Events       *eventqueue.Queue
}

// Manager is the WorldPartitionManager: a grid of Partitions covering the
// world bounds, with O(1) point-to-partition lookup.
type Manager struct {
	bounds        physics.AABB
	cols, rows    int
	cellW, cellH  float64
	boundaryWidth float64

	partitions []*Partition
	wallOwner  map[uint64]Key
}

// NewManager constructs a Manager with a cols x rows grid covering bounds.
func NewManager(bounds physics.AABB, cols, rows int, boundaryWidth float64) *Manager {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	m := &Manager{
		bounds:        bounds,
		cols:          cols,
		rows:          rows,
		cellW:         (bounds.MaxX - bounds.MinX) / float64(cols),
		cellH:         (bounds.MaxY - bounds.MinY) / float64(rows),
		boundaryWidth: boundaryWidth,
		wallOwner:     make(map[uint64]Key),
	}
	m.partitions = make([]*Partition, cols*rows)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			k := Key{Col: col, Row: row}
			box := physics.AABB{
				MinX: bounds.MinX + float64(col)*m.cellW,
				MinY: bounds.MinY + float64(row)*m.cellH,
				MaxX: bounds.MinX + float64(col+1)*m.cellW,
				MaxY: bounds.MinY + float64(row+1)*m.cellH,
			}
			m.partitions[m.index(k)] = &Partition{
				Key:    k,
				Bounds: box,
				walls:  make(map[uint64]*Wall),
				Events: eventqueue.New(),
			}
		}
	}
	return m
}

func (m *Manager) index(k Key) int { return k.Row*m.cols + k.Col }

// GetPartitionForPoint returns the partition containing (x,y) in O(1),
// clamping out-of-bounds coordinates to the nearest edge partition.
func (m *Manager) GetPartitionForPoint(x, y float64) *Partition {
	col := int((x - m.bounds.MinX) / m.cellW)
	row := int((y - m.bounds.MinY) / m.cellH)
	if col < 0 {
		col = 0
	}
	if col >= m.cols {
		col = m.cols - 1
	}
	if row < 0 {
		row = 0
	}
	if row >= m.rows {
		row = m.rows - 1
	}
	return m.partitions[m.index(Key{Col: col, Row: row})]
}

// AddWall registers a wall, assigning it to the partition that contains its
// center point.
func (m *Manager) AddWall(w *Wall) {
	cx := (w.Box.MinX + w.Box.MaxX) / 2
	cy := (w.Box.MinY + w.Box.MaxY) / 2
	p := m.GetPartitionForPoint(cx, cy)
	p.walls[w.ID] = w
	m.wallOwner[w.ID] = p.Key
}

// Wall returns the current state of a wall by id, if it is registered.
func (m *Manager) Wall(id uint64) (*Wall, bool) {
	key, ok := m.wallOwner[id]
	if !ok {
		return nil, false
	}
	w, ok := m.partitions[m.index(key)].walls[id]
	return w, ok
}

// Damage applies dmg to a destructible wall. If the wall's health reaches
// zero this tick, it reports destroyed=true and the wall's AABB center, so
// the caller can raise an explosion/destruction event and hand the wall to
// WallRespawnManager. Non-destructible or unknown walls are no-ops.
func (m *Manager) Damage(wallID uint64, dmg int32) (destroyed bool, center physics.Vec2, ok bool) {
	key, exists := m.wallOwner[wallID]
	if !exists {
		return false, physics.Vec2{}, false
	}
	w, exists := m.partitions[m.index(key)].walls[wallID]
	if !exists || !w.Destructible || w.Health <= 0 {
		return false, physics.Vec2{}, false
	}
	w.Health -= dmg
	if w.Health > 0 {
		return false, physics.Vec2{}, true
	}
	w.Health = 0
	center = physics.Vec2{X: (w.Box.MinX + w.Box.MaxX) / 2, Y: (w.Box.MinY + w.Box.MaxY) / 2}
	return true, center, true
}

// Respawn restores a destructible wall to full health.
func (m *Manager) Respawn(wallID uint64) {
	key, ok := m.wallOwner[wallID]
	if !ok {
		return
	}
	w, ok := m.partitions[m.index(key)].walls[wallID]
	if !ok {
		return
	}
	w.Health = w.MaxHealth
}

// ActiveWalls returns every wall currently with Health > 0, or that is
// non-destructible, across all partitions — the view internal/wallindex
// rebuilds from.
func (m *Manager) ActiveWalls() []*Wall {
	var out []*Wall
	for _, p := range m.partitions {
		for _, w := range p.walls {
			if !w.Destructible || w.Health > 0 {
				out = append(out, w)
			}
		}
	}
	return out
}

// Partitions returns every partition in the grid, for iteration by callers
// that need to drain local event queues or recompute boundary snapshots.
func (m *Manager) Partitions() []*Partition { return m.partitions }

// Walls returns every wall this partition owns, regardless of health, for
// AoI recompute's per-partition AABB intersection test.
func (p *Partition) Walls() []*Wall {
	out := make([]*Wall, 0, len(p.walls))
	for _, w := range p.walls {
		out = append(out, w)
	}
	return out
}

// UpdateBoundarySnapshot recomputes which of the given entity ids/positions
// currently fall within boundaryWidth of this partition's edge. Called every
// 30 ticks per spec.md §4.9.3 step 4; the resulting snapshot is opaque to
// the broadcaster and exists only for neighbor-partition coordination.
func (p *Partition) UpdateBoundarySnapshot(entities map[string][2]float64, boundaryWidth float64) {
	zone := p.Bounds.Expanded(-boundaryWidth)
	ids := make([]string, 0, len(p.boundaryZone))
	for id, pos := range entities {
		if !p.Bounds.Contains(physics.Vec2{X: pos[0], Y: pos[1]}) {
			continue
		}
		if zone.Contains(physics.Vec2{X: pos[0], Y: pos[1]}) {
			continue // well inside the partition, not near a boundary
		}
		ids = append(ids, id)
	}
	p.boundaryZone = ids
}

// BoundaryZone returns the entity ids currently in this partition's boundary
// margin, as of the last UpdateBoundarySnapshot call.
func (p *Partition) BoundaryZone() []string { return p.boundaryZone }
