package respawn

// WallTemplate is the full-health state a destructible wall is restored to.
type WallTemplate struct {
	WallID    uint64
	MaxHealth int32
}

type scheduledRespawn struct {
	template  WallTemplate
	readyAt   float64
}

// WallRespawnManager schedules destructible wall restoration after a
// health-tiered delay: <=100 max health -> 30s, <=200 -> 60s, else 90s.
type WallRespawnManager struct {
	templates map[uint64]WallTemplate
	scheduled map[uint64]scheduledRespawn

	tier1Seconds, tier2Seconds, tier3Seconds float64
}

// WallRespawnConfig bundles the tier delays from internal/config.
type WallRespawnConfig struct {
	Tier1Seconds, Tier2Seconds, Tier3Seconds float64
}

// NewWallRespawnManager constructs an empty WallRespawnManager.
func NewWallRespawnManager(cfg WallRespawnConfig) *WallRespawnManager {
	return &WallRespawnManager{
		templates:    make(map[uint64]WallTemplate),
		scheduled:    make(map[uint64]scheduledRespawn),
		tier1Seconds: cfg.Tier1Seconds,
		tier2Seconds: cfg.Tier2Seconds,
		tier3Seconds: cfg.Tier3Seconds,
	}
}

// Register records the full-health template for a destructible wall.
func (m *WallRespawnManager) Register(t WallTemplate) {
	m.templates[t.WallID] = t
}

func (m *WallRespawnManager) delayFor(maxHealth int32) float64 {
	switch {
	case maxHealth <= 100:
		return m.tier1Seconds
	case maxHealth <= 200:
		return m.tier2Seconds
	default:
		return m.tier3Seconds
	}
}

// OnDestroyed schedules wallID for respawn at now+delay. A duplicate
// destroy event for a wall already scheduled is ignored.
func (m *WallRespawnManager) OnDestroyed(wallID uint64, now float64) {
	if _, pending := m.scheduled[wallID]; pending {
		return
	}
	t, ok := m.templates[wallID]
	if !ok {
		return
	}
	m.scheduled[wallID] = scheduledRespawn{template: t, readyAt: now + m.delayFor(t.MaxHealth)}
}

// Tick returns every wall template whose scheduled respawn time has arrived
// by now, clearing their schedule entries. The caller restores the wall's
// live state (health, partition membership) using the returned templates.
func (m *WallRespawnManager) Tick(now float64) []WallTemplate {
	var ready []WallTemplate
	for id, s := range m.scheduled {
		if now >= s.readyAt {
			ready = append(ready, s.template)
			delete(m.scheduled, id)
		}
	}
	return ready
}

// Pending reports whether a wall currently has a respawn scheduled.
func (m *WallRespawnManager) Pending(wallID uint64) bool {
	_, ok := m.scheduled[wallID]
	return ok
}
