package broadcaster

import (
	"testing"
	"time"

	"massivegame/server/internal/idpool"
	"massivegame/server/internal/logging"
	"massivegame/server/internal/matchlogic"
	"massivegame/server/internal/partition"
	"massivegame/server/internal/physics"
	"massivegame/server/internal/playerstore"
	"massivegame/server/internal/protocol"
)

func testConfig() Config {
	return Config{
		SnapshotSizeCapBytes:        160 * 1024,
		MaxEventsPerDelta:           50,
		MaxChatPerTick:              10,
		MatchInfoTimeEpsilonSeconds: 0.5,
	}
}

func newPlayerUpdate(pool *idpool.Pool, id string, mask uint8) PlayerUpdate {
	h := pool.GetOrCreate(id)
	p := &playerstore.Player{Handle: h, Health: 100, MaxHealth: 100, Alive: true}
	return PlayerUpdate{Handle: h, Mask: mask, Snap: ToPlayerSnapshot(h, p, mask)}
}

func TestBuildInitialStateTruncatesWallsFirst(t *testing.T) {
	cfg := testConfig()
	cfg.SnapshotSizeCapBytes = 200

	walls := make([]protocol.WallState, 50)
	for i := range walls {
		walls[i] = protocol.WallState{ID: uint64(i), MinX: -5, MinY: -5, MaxX: 5, MaxY: 5, MaxHealth: 100, Health: 100}
	}
	projectiles := make([]protocol.ProjectileSnapshot, 50)
	for i := range projectiles {
		projectiles[i] = protocol.ProjectileSnapshot{ID: uint64(i), OwnerID: "a"}
	}

	metrics := NewMetrics()
	state := BuildInitialState(protocol.PlayerSnapshot{PlayerID: "self"}, nil, walls, projectiles, nil,
		matchlogic.Snapshot{TeamScores: map[uint8]int32{}}, "arena", 1000, cfg, logging.NewTestLogger(), metrics)

	if len(state.Walls) >= len(walls) {
		t.Fatalf("expected walls truncated, got %d of %d", len(state.Walls), len(walls))
	}
	if got := len(protocol.EncodeInitialState(state)); got > cfg.SnapshotSizeCapBytes && len(state.Walls) > 0 {
		t.Fatalf("expected truncation to converge toward the cap, got %d bytes with %d walls left", got, len(state.Walls))
	}
	drops := metrics.DropCounts()
	if drops["walls"] == 0 {
		t.Fatalf("expected wall truncation recorded in metrics, got %+v", drops)
	}
}

func TestBuildDeltaIncludesNewAndChangedVisiblePlayers(t *testing.T) {
	pool := idpool.New()
	cs := NewClientState()
	self := newPlayerUpdate(pool, "self", 0)
	near := newPlayerUpdate(pool, "near", protocol.ChangedPositionRotation)

	out, _ := BuildDelta(cs, DeltaInput{Now: 1, Self: self, Visible: []PlayerUpdate{near}}, testConfig())
	if len(out.UpdatedPlayers) != 1 || out.UpdatedPlayers[0].PlayerID != "near" {
		t.Fatalf("expected near player included as new, got %+v", out.UpdatedPlayers)
	}

	// Second tick, unchanged mask and already known: should not resend.
	near2 := near
	near2.Mask = 0
	out2, _ := BuildDelta(cs, DeltaInput{Now: 2, Self: self, Visible: []PlayerUpdate{near2}}, testConfig())
	if len(out2.UpdatedPlayers) != 0 {
		t.Fatalf("expected no resend for unchanged known player, got %+v", out2.UpdatedPlayers)
	}
}

func TestBuildDeltaReportsNoLongerVisibleAndLeftPlayers(t *testing.T) {
	pool := idpool.New()
	cs := NewClientState()
	self := newPlayerUpdate(pool, "self", 0)
	near := newPlayerUpdate(pool, "near", protocol.ChangedPositionRotation)

	BuildDelta(cs, DeltaInput{Now: 1, Self: self, Visible: []PlayerUpdate{near}}, testConfig())

	// near leaves AoI range (no longer reported visible) but hasn't left the match.
	out, _ := BuildDelta(cs, DeltaInput{Now: 2, Self: self}, testConfig())
	if len(out.RemovedPlayerIDs) != 1 || out.RemovedPlayerIDs[0] != "near" {
		t.Fatalf("expected near reported removed once no longer visible, got %+v", out.RemovedPlayerIDs)
	}

	// A different player who disconnects entirely must be reported even if
	// they were never visible to this client.
	far := pool.GetOrCreate("far")
	out2, _ := BuildDelta(cs, DeltaInput{Now: 3, Self: self, LeftMatch: []idpool.Handle{far}}, testConfig())
	if len(out2.RemovedPlayerIDs) != 1 || out2.RemovedPlayerIDs[0] != "far" {
		t.Fatalf("expected far reported removed on leaving the match, got %+v", out2.RemovedPlayerIDs)
	}
}

func TestBuildDeltaProjectilesAddAndRemove(t *testing.T) {
	pool := idpool.New()
	cs := NewClientState()
	self := newPlayerUpdate(pool, "self", 0)

	out, _ := BuildDelta(cs, DeltaInput{Now: 1, Self: self, Projectiles: []ProjectileView{{ID: 7}}}, testConfig())
	if len(out.AddedProjectiles) != 1 || out.AddedProjectiles[0].ID != 7 {
		t.Fatalf("expected projectile 7 added, got %+v", out.AddedProjectiles)
	}

	out2, _ := BuildDelta(cs, DeltaInput{Now: 2, Self: self}, testConfig())
	if len(out2.RemovedProjectileIDs) != 1 || out2.RemovedProjectileIDs[0] != 7 {
		t.Fatalf("expected projectile 7 removed, got %+v", out2.RemovedProjectileIDs)
	}
}

func TestBuildDeltaPickupsDeactivation(t *testing.T) {
	pool := idpool.New()
	cs := NewClientState()
	self := newPlayerUpdate(pool, "self", 0)

	out, _ := BuildDelta(cs, DeltaInput{Now: 1, Self: self, Pickups: []PickupUpdate{{ID: 3, Active: true}}}, testConfig())
	if len(out.UpdatedPickups) != 1 {
		t.Fatalf("expected new active pickup included, got %+v", out.UpdatedPickups)
	}

	out2, _ := BuildDelta(cs, DeltaInput{Now: 2, Self: self, Pickups: []PickupUpdate{{ID: 3, Active: false}}}, testConfig())
	if len(out2.UpdatedPickups) != 1 || out2.UpdatedPickups[0].Active {
		t.Fatalf("expected pickup reported inactive, got %+v", out2.UpdatedPickups)
	}

	out3, _ := BuildDelta(cs, DeltaInput{Now: 3, Self: self}, testConfig())
	if len(out3.DeactivatedPickupIDs) != 0 {
		t.Fatalf("expected no further deactivation once already reported inactive, got %+v", out3.DeactivatedPickupIDs)
	}
}

func TestBuildDeltaEventsCappedAndFiltered(t *testing.T) {
	pool := idpool.New()
	cs := NewClientState()
	self := newPlayerUpdate(pool, "self", 0)

	events := make([]matchlogic.Event, 60)
	for i := range events {
		events[i] = matchlogic.Event{Kind: matchlogic.EventPlayerDamaged, Value: int32(i)}
	}
	cfg := testConfig()
	out, _ := BuildDelta(cs, DeltaInput{Now: 1, Self: self, Events: events}, cfg)
	if len(out.Events) != cfg.MaxEventsPerDelta {
		t.Fatalf("expected events capped at %d, got %d", cfg.MaxEventsPerDelta, len(out.Events))
	}

	relevant := func(e matchlogic.Event) bool { return e.Value%2 == 0 }
	out2, _ := BuildDelta(cs, DeltaInput{Now: 2, Self: self, Events: events, RelevantTo: relevant}, cfg)
	for _, e := range out2.Events {
		if e.Value%2 != 0 {
			t.Fatalf("expected only even-valued events to pass the relevance filter, got %+v", e)
		}
	}
}

func TestBuildDeltaKillFeedBeyondLastSent(t *testing.T) {
	pool := idpool.New()
	cs := NewClientState()
	self := newPlayerUpdate(pool, "self", 0)

	feed := []matchlogic.KillFeedEntry{{Weapon: 1}, {Weapon: 2}}
	out, _ := BuildDelta(cs, DeltaInput{Now: 1, Self: self, KillFeed: feed}, testConfig())
	if len(out.KillFeed) != 2 {
		t.Fatalf("expected both kill feed entries on first send, got %d", len(out.KillFeed))
	}

	feed = append(feed, matchlogic.KillFeedEntry{Weapon: 3})
	out2, _ := BuildDelta(cs, DeltaInput{Now: 2, Self: self, KillFeed: feed}, testConfig())
	if len(out2.KillFeed) != 1 || out2.KillFeed[0].Weapon != 3 {
		t.Fatalf("expected only the new kill feed entry, got %+v", out2.KillFeed)
	}
}

func TestBuildDeltaMatchInfoOnlyWhenChanged(t *testing.T) {
	pool := idpool.New()
	cs := NewClientState()
	self := newPlayerUpdate(pool, "self", 0)
	cfg := testConfig()

	match := matchlogic.Snapshot{Phase: matchlogic.PhaseActive, TimeRemaining: 100, TeamScores: map[uint8]int32{1: 0}}
	out, _ := BuildDelta(cs, DeltaInput{Now: 1, Self: self, Match: match, HasMatch: true}, cfg)
	if !out.HasMatch {
		t.Fatalf("expected match info on first send")
	}

	match.TimeRemaining = 99.8
	out2, _ := BuildDelta(cs, DeltaInput{Now: 2, Self: self, Match: match, HasMatch: true}, cfg)
	if out2.HasMatch {
		t.Fatalf("expected no match info resend for sub-threshold time change")
	}

	match.TimeRemaining = 95
	out3, _ := BuildDelta(cs, DeltaInput{Now: 3, Self: self, Match: match, HasMatch: true}, cfg)
	if !out3.HasMatch {
		t.Fatalf("expected match info resend once time change passes the epsilon")
	}
}

func TestBuildDeltaWallsDestroyedAndUpdated(t *testing.T) {
	pool := idpool.New()
	cs := NewClientState()
	self := newPlayerUpdate(pool, "self", 0)

	walls := map[uint64]partition.Wall{
		1: {ID: 1, Box: physics.AABB{MinX: -5, MinY: -5, MaxX: 5, MaxY: 5}, Destructible: true, Health: 0, MaxHealth: 100},
	}
	lookup := func(id uint64) (partition.Wall, bool) { w, ok := walls[id]; return w, ok }

	out, _ := BuildDelta(cs, DeltaInput{
		Now: 1, Self: self,
		DestroyedWallsThisTick: []uint64{1},
		VisibleWallIDs:         []uint64{1},
		WallByID:               lookup,
	}, testConfig())
	if len(out.DestroyedWallIDs) != 1 || out.DestroyedWallIDs[0] != 1 {
		t.Fatalf("expected wall 1 reported destroyed, got %+v", out.DestroyedWallIDs)
	}

	// Same destroyed id again this tick must not repeat (already known).
	out2, _ := BuildDelta(cs, DeltaInput{
		Now: 2, Self: self,
		DestroyedWallsThisTick: []uint64{1},
		VisibleWallIDs:         []uint64{1},
		WallByID:               lookup,
	}, testConfig())
	if len(out2.DestroyedWallIDs) != 0 {
		t.Fatalf("expected no duplicate destroyed report, got %+v", out2.DestroyedWallIDs)
	}

	// Wall respawns (hp restored): reported as an update and cleared from
	// known-destroyed.
	w := walls[1]
	w.Health = 100
	walls[1] = w
	out3, _ := BuildDelta(cs, DeltaInput{
		Now: 3, Self: self,
		UpdatedWallsThisTick: []uint64{1},
		VisibleWallIDs:       []uint64{1},
		WallByID:             lookup,
	}, testConfig())
	if len(out3.UpdatedWalls) != 1 || out3.UpdatedWalls[0].Health != 100 {
		t.Fatalf("expected wall 1 reported restored to full health, got %+v", out3.UpdatedWalls)
	}
	if _, stillKnownDestroyed := cs.KnownDestroyedWallIDs[1]; stillKnownDestroyed {
		t.Fatalf("expected restored wall cleared from known-destroyed set")
	}
}

func TestBuildDeltaChatCappedAndSeqOrdered(t *testing.T) {
	pool := idpool.New()
	cs := NewClientState()
	self := newPlayerUpdate(pool, "self", 0)

	backlog := make([]protocol.Chat, 15)
	for i := range backlog {
		backlog[i] = protocol.Chat{Seq: uint64(i + 1), Message: "hi"}
	}
	cfg := testConfig()
	_, chat := BuildDelta(cs, DeltaInput{Now: 1, Self: self, ChatBacklog: backlog}, cfg)
	if len(chat) != cfg.MaxChatPerTick {
		t.Fatalf("expected chat capped at %d, got %d", cfg.MaxChatPerTick, len(chat))
	}
	if cs.LastChatSeqSent != uint64(cfg.MaxChatPerTick) {
		t.Fatalf("expected last chat seq sent advanced to %d, got %d", cfg.MaxChatPerTick, cs.LastChatSeqSent)
	}

	_, chat2 := BuildDelta(cs, DeltaInput{Now: 2, Self: self, ChatBacklog: backlog}, cfg)
	if len(chat2) != 5 {
		t.Fatalf("expected remaining 5 backlog messages sent, got %d", len(chat2))
	}
}

func TestRegistryOpenGetClose(t *testing.T) {
	pool := idpool.New()
	reg := NewRegistry()
	h := pool.GetOrCreate("c1")

	cs := reg.Open(h)
	if cs == nil {
		t.Fatalf("expected a fresh ClientState")
	}
	if got, ok := reg.Get(h); !ok || got != cs {
		t.Fatalf("expected Get to return the same ClientState")
	}
	reg.Close(h)
	if _, ok := reg.Get(h); ok {
		t.Fatalf("expected ClientState removed after Close")
	}
}

func TestBandwidthRegulatorThrottlesAndRefills(t *testing.T) {
	current := time.Unix(0, 0)
	clock := func() time.Time { return current }
	reg := NewBandwidthRegulator(100, clock)

	if !reg.Allow("c1", 90) {
		t.Fatalf("expected initial burst within capacity to be allowed")
	}
	if reg.Allow("c1", 50) {
		t.Fatalf("expected over-budget send to be denied")
	}
	current = current.Add(time.Second)
	if !reg.Allow("c1", 50) {
		t.Fatalf("expected send allowed after a full second of refill")
	}

	usage := reg.Snapshot()
	if usage["c1"].DeniedDeliveries != 1 {
		t.Fatalf("expected one denied delivery recorded, got %+v", usage["c1"])
	}

	reg.Forget("c1")
	if len(reg.Snapshot()) != 0 {
		t.Fatalf("expected usage cleared after Forget")
	}
}

func TestMetricsObserveAndForget(t *testing.T) {
	m := NewMetrics()
	m.Observe("c1", 1200)
	if got := m.BytesPerClient()["c1"]; got != 1200 {
		t.Fatalf("expected recorded payload size 1200, got %d", got)
	}
	m.ForgetClient("c1")
	if len(m.BytesPerClient()) != 0 {
		t.Fatalf("expected client forgotten")
	}
}
