package respawn

import (
	"math/rand"
	"testing"
)

func testConfig() Config {
	return Config{
		PlayerRadius:                 15,
		SafeSpawnRadius:              300,
		SpawnProtectionSeconds:       3,
		SpawnProtectionCapMultiplier: 2,
	}
}

// chooseMany runs ChooseSpawn repeatedly so tests can assert over the set of
// possible outcomes rather than a single draw, since spec.md §4.7 picks
// uniformly at random among the top 3 scored candidates.
func chooseMany(m *Manager, playerTeam uint8, now float64, deathSite *Vec2, enemies []Vec2, probe WallProbe, trials int) []Vec2 {
	seen := make([]Vec2, 0, trials)
	for i := 0; i < trials; i++ {
		seen = append(seen, m.ChooseSpawn(playerTeam, now, deathSite, enemies, probe))
	}
	return seen
}

func TestChooseSpawnFiltersObstructedPoints(t *testing.T) {
	points := []*Point{
		{Position: Vec2{X: 0, Y: 0}, Tag: TagArena},
		{Position: Vec2{X: 100, Y: 100}, Tag: TagArena},
	}
	m := NewManager(points, testConfig(), rand.New(rand.NewSource(1)))
	probe := func(p Vec2, r float64) bool { return p.X == 0 && p.Y == 0 }

	for _, got := range chooseMany(m, 0, 10, nil, nil, probe, 20) {
		if got == (Vec2{X: 0, Y: 0}) {
			t.Fatalf("expected obstructed origin point never chosen, got %+v", got)
		}
	}
}

func TestChooseSpawnExcludesOpposingTeamBase(t *testing.T) {
	points := []*Point{
		{Position: Vec2{X: 0, Y: 0}, Tag: TagTeamBase, Team: 2},
		{Position: Vec2{X: 500, Y: 500}, Tag: TagTeamBase, Team: 1},
	}
	m := NewManager(points, testConfig(), rand.New(rand.NewSource(1)))

	for _, got := range chooseMany(m, 1, 10, nil, nil, nil, 20) {
		if got == (Vec2{X: 0, Y: 0}) {
			t.Fatalf("expected opposing team base never chosen, got %+v", got)
		}
	}
}

func TestChooseSpawnNeutralPlayerExcludesAllTeamBases(t *testing.T) {
	points := []*Point{
		{Position: Vec2{X: 0, Y: 0}, Tag: TagTeamBase, Team: 1},
		{Position: Vec2{X: 500, Y: 500}, Tag: TagArena},
	}
	m := NewManager(points, testConfig(), rand.New(rand.NewSource(1)))

	for _, got := range chooseMany(m, 0, 10, nil, nil, nil, 20) {
		if got == (Vec2{X: 0, Y: 0}) {
			t.Fatalf("expected neutral player to never spawn at a team base, got %+v", got)
		}
	}
}

func TestChooseSpawnFallsBackToFirstUnobstructedWhenNoCompatible(t *testing.T) {
	points := []*Point{
		{Position: Vec2{X: 1, Y: 1}, Tag: TagTeamBase, Team: 2},
	}
	m := NewManager(points, testConfig(), rand.New(rand.NewSource(1)))

	chosen := m.ChooseSpawn(1, 10, nil, nil, nil)
	if chosen != (Vec2{X: 1, Y: 1}) {
		t.Fatalf("expected fallback to the only unobstructed point, got %+v", chosen)
	}
}

func TestChooseSpawnAllObstructedReturnsOrigin(t *testing.T) {
	points := []*Point{{Position: Vec2{X: 1, Y: 1}, Tag: TagArena}}
	m := NewManager(points, testConfig(), rand.New(rand.NewSource(1)))
	probe := func(Vec2, float64) bool { return true }

	chosen := m.ChooseSpawn(0, 10, nil, nil, probe)
	if chosen != (Vec2{}) {
		t.Fatalf("expected origin fallback when every point obstructed, got %+v", chosen)
	}
}

func TestChooseSpawnAvoidsNearbyEnemiesOnAverage(t *testing.T) {
	points := []*Point{
		{Position: Vec2{X: 0, Y: 0}, Tag: TagArena},
		{Position: Vec2{X: 1000, Y: 1000}, Tag: TagArena},
		{Position: Vec2{X: 1000, Y: 1000}, Tag: TagArena},
		{Position: Vec2{X: 1000, Y: 1000}, Tag: TagArena},
	}
	m := NewManager(points, testConfig(), rand.New(rand.NewSource(1)))
	enemies := []Vec2{{X: 0, Y: 0}}

	farCount := 0
	for _, got := range chooseMany(m, 0, 10, nil, enemies, nil, 50) {
		if got == (Vec2{X: 1000, Y: 1000}) {
			farCount++
		}
	}
	if farCount == 0 {
		t.Fatalf("expected the far-from-enemy point to be chosen at least once across trials")
	}
}

func TestChooseSpawnMarksLastUsed(t *testing.T) {
	points := []*Point{{Position: Vec2{X: 1, Y: 1}, Tag: TagArena}}
	m := NewManager(points, testConfig(), rand.New(rand.NewSource(1)))
	m.ChooseSpawn(0, 42, nil, nil, nil)
	if points[0].LastUsed != 42 {
		t.Fatalf("expected LastUsed set to 42, got %v", points[0].LastUsed)
	}
}
