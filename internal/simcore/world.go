// Package simcore wires the leaf packages — player store, spatial indices,
// wall partitions, match rules, respawn scheduling, and bot AI — into the
// five-stage per-tick simulation pipeline described in spec.md §4.9: input
// application, physics, game logic, state synchronization, and cleanup.
// World owns the projectile list and the per-tick queues stages hand off to
// one another; every other piece of authoritative state is owned by the
// package that implements it and reached here only through its API.
package simcore

import (
	"context"
	"math/rand"

	"massivegame/server/internal/aoi"
	"massivegame/server/internal/bots"
	"massivegame/server/internal/broadcaster"
	"massivegame/server/internal/combat"
	"massivegame/server/internal/config"
	"massivegame/server/internal/idpool"
	"massivegame/server/internal/logging"
	"massivegame/server/internal/matchlogic"
	"massivegame/server/internal/partition"
	"massivegame/server/internal/physics"
	"massivegame/server/internal/playerstore"
	"massivegame/server/internal/respawn"
	"massivegame/server/internal/spatial"
	"massivegame/server/internal/wallindex"
)

// Vec2 aliases the shared 2D vector type.
type Vec2 = physics.Vec2

// Projectile is one in-flight shot. Simulation is its sole owner per
// spec.md's ownership summary; SpatialIndex only ever holds a derived
// position for it.
type Projectile struct {
	ID          uint64
	Owner       idpool.Handle
	Weapon      combat.Weapon
	Pos         Vec2
	Vel         Vec2
	Damage      int32
	SpawnTime   float64
	MaxLifetime float64
}

// Config bundles every subordinate package's local Config, translated once
// from config.SimulationConfig at construction time rather than scattered
// across call sites.
type Config struct {
	Sim config.SimulationConfig

	Match       matchlogic.Config
	Bots        bots.Config
	AoI         aoi.Config
	Broadcast   broadcaster.Config
	Respawn     respawn.Config
	WallRespawn respawn.WallRespawnConfig
}

// NewConfig translates a config.SimulationConfig into every subordinate
// package's local Config struct.
func NewConfig(sim config.SimulationConfig) Config {
	return Config{
		Sim: sim,
		Match: matchlogic.Config{
			MinPlayersToStart: sim.MinPlayersToStart,
			RoundSeconds:      sim.MatchRoundSeconds,
			GraceSeconds:      sim.MatchGraceSeconds,

			PickupCollectionRadius:    sim.PickupCollectionRadius,
			PickupRespawnShortSeconds: sim.PickupRespawnShortSeconds,
			PickupRespawnMidSeconds:   sim.PickupRespawnMidSeconds,
			PickupRespawnLongSeconds:  sim.PickupRespawnLongSeconds,
			HealthPickupAmount:        sim.HealthPickupAmount,
			ShieldGrantAmount:         sim.ShieldGrantAmount,
			PowerupSeconds:            sim.PowerupSeconds,

			FlagAutoReturnSeconds: sim.FlagAutoReturnSeconds,
			ScoreToWin:            sim.ScoreToWin,

			// spec.md §9 notes the source this was distilled from disagreed
			// with itself here; current behavior preserves scores across an
			// Ended->Waiting transition, so that's what gets wired in.
			PreserveScoresBetweenRounds: true,
		},
		Bots: bots.Config{
			DecisionIntervalSeconds: sim.AIDecisionIntervalSeconds,
			StuckWindowSeconds:      sim.AIStuckWindowSeconds,
			StuckDistanceThreshold:  sim.AIStuckDistanceThreshold,
			RandomTargetMinDistance: sim.AIRandomTargetMinDistance,
			RandomTargetMaxDistance: sim.AIRandomTargetMaxDistance,
			MovementTolerance:       sim.AIMovementTolerance,
			ReactionDelaySeconds:    sim.AIReactionDelaySeconds,
			AimNoiseRadians:         sim.AIAimNoiseRadians,
			LowHealthFraction:       sim.AILowHealthFraction,
			LowAmmoFraction:         sim.AILowAmmoFraction,
			EscortOffsetUnits:       sim.AIEscortOffsetUnits,
			AttackRoleFraction:      sim.AIAttackRoleFraction,
			DefendRoleFraction:      sim.AIDefendRoleFraction,
		},
		AoI: aoi.Config{
			Radius:                       sim.AoIRadius,
			RecomputeIntervalSeconds:     sim.AoIRecomputeInterval.Seconds(),
			SignificantMovementThreshold: sim.SignificantMovementThreshold,
		},
		Broadcast: broadcaster.Config{
			SnapshotSizeCapBytes:        sim.SnapshotSizeCapBytes,
			MaxEventsPerDelta:           sim.MaxEventsPerDelta,
			MaxChatPerTick:              sim.MaxChatPerTick,
			MatchInfoTimeEpsilonSeconds: sim.MatchInfoTimeEpsilonSeconds,
		},
		Respawn: respawn.Config{
			PlayerRadius:                 sim.PlayerRadius,
			SafeSpawnRadius:              sim.SafeSpawnRadius,
			SpawnProtectionSeconds:       sim.SpawnProtectionSeconds,
			SpawnProtectionCapMultiplier: sim.SpawnProtectionCapMultiplier,
		},
		WallRespawn: respawn.WallRespawnConfig{
			Tier1Seconds: sim.WallRespawnTier1Seconds,
			Tier2Seconds: sim.WallRespawnTier2Seconds,
			Tier3Seconds: sim.WallRespawnTier3Seconds,
		},
	}
}

// World holds every piece of authoritative and derived simulation state,
// plus the per-tick queues the pipeline stages use to hand data to one
// another. Map geometry, spawn points, and pickup placement are supplied by
// the caller at construction time; loading them from map data is outside
// simcore's scope (spec.md §1 lists map generation seed data as an external
// collaborator).
type World struct {
	cfg Config
	log *logging.Logger
	rng *rand.Rand

	// botRng is a separate source from rng: spec.md §4.13 runs the input
	// and bot-AI stages concurrently, and math/rand.Rand is not safe for
	// concurrent use by multiple goroutines, so each stage gets its own.
	botRng *rand.Rand

	Pool       *idpool.Pool
	Players    *playerstore.Store
	Partitions *partition.Manager
	Grid       *spatial.Grid
	WallIndex  *wallindex.Index
	AoI        *aoi.Tracker
	Match      *matchlogic.State
	Respawns   *respawn.Manager
	Walls      *respawn.WallRespawnManager
	BotCtl     *bots.Controller

	Broadcast *broadcaster.Registry
	Metrics   *broadcaster.Metrics
	Bandwidth *broadcaster.BandwidthRegulator

	pickups      map[uint64]*matchlogic.Pickup
	nextPickupID uint64

	projectiles      map[uint64]*Projectile
	nextProjectileID uint64

	botStates    map[idpool.Handle]*bots.Bot
	patrolPoints []Vec2

	// aoiLastPos holds each player's position at its last AoI recompute, for
	// the state-sync stage's recompute gate; tickChangedMask holds the
	// broadcast stage's per-player diff mask and is rebuilt every tick.
	aoiLastPos      map[idpool.Handle][2]float64
	tickChangedMask map[idpool.Handle]uint8

	now       float64
	tickCount uint64

	// Cross-stage queues: populated during input application / physics.
	// meleeHits is drained during game logic; the wall-change lists are read
	// by the broadcast stage and cleared by RunCleanup.
	meleeHits              []matchlogic.MeleeHit
	destroyedWallsThisTick []uint64
	updatedWallsThisTick   []uint64

	// tickEvents buffers events raised during ApplyInputs/RunPhysics
	// (WeaponFired, WallImpact, WallDestroyed), which run before
	// RunGameLogic is able to return anything. RunGameLogic drains this
	// into its own return slice and clears it for the next tick.
	tickEvents []matchlogic.Event
}

// New constructs a World over an already-populated partition.Manager (walls
// registered via AddWall) and the given spawn points. homeBases supplies
// CTF flag homes by team; it is ignored for TDM. launcher may be nil, in
// which case the bot controller tracks counts without actually spawning
// anything — useful for tests.
func New(cfg Config, log *logging.Logger, rng *rand.Rand, partitions *partition.Manager, spawnPoints []*respawn.Point, mode matchlogic.Mode, homeBases map[uint8]Vec2, launcher bots.Launcher) *World {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	w := &World{
		cfg:        cfg,
		log:        log,
		rng:        rng,
		botRng:     rand.New(rand.NewSource(rng.Int63())),
		Pool:       idpool.New(),
		Players:    playerstore.New(cfg.Sim.PlayerShardCount),
		Partitions: partitions,
		Grid:       spatial.NewGrid(cfg.Sim.SpatialCellSize),
		WallIndex:  wallindex.NewIndex(cfg.Sim.SpatialCellSize),
		AoI:        aoi.NewTracker(),
		Match:      matchlogic.New(mode, cfg.Match, homeBases),
		Respawns:   respawn.NewManager(spawnPoints, cfg.Respawn, rng),
		Walls:      respawn.NewWallRespawnManager(cfg.WallRespawn),
		BotCtl: bots.NewController(bots.ControllerConfig{
			TargetPopulation: cfg.Sim.BotTargetPopulation,
			Launcher:         launcher,
		}),
		Broadcast:       broadcaster.NewRegistry(),
		Metrics:         broadcaster.NewMetrics(),
		Bandwidth:       broadcaster.NewBandwidthRegulator(cfg.Sim.BandwidthLimitBytesPerSecond, nil),
		pickups:         make(map[uint64]*matchlogic.Pickup),
		projectiles:     make(map[uint64]*Projectile),
		botStates:       make(map[idpool.Handle]*bots.Bot),
		aoiLastPos:      make(map[idpool.Handle][2]float64),
		tickChangedMask: make(map[idpool.Handle]uint8),
	}
	for _, wall := range partitions.ActiveWalls() {
		w.Walls.Register(respawn.WallTemplate{WallID: wall.ID, MaxHealth: wall.MaxHealth})
	}
	for _, sp := range spawnPoints {
		w.patrolPoints = append(w.patrolPoints, sp.Position)
	}
	w.rebuildWallIndex()
	_ = w.BotCtl.SetTargetPopulation(context.Background(), cfg.Sim.BotTargetPopulation)
	return w
}

// AddHumanPlayer inserts a connecting human player and notifies the bot
// controller so the bot pool reconciles to the new target immediately
// (spec.md §4.9.3 step 5 is event-driven, not polled per tick).
func (w *World) AddHumanPlayer(p *playerstore.Player) {
	w.Players.Add(p)
	_ = w.BotCtl.HumanConnected(context.Background())
}

// AddBotPlayer inserts a bot-controlled player without touching the human
// population count the controller reconciles against.
func (w *World) AddBotPlayer(p *playerstore.Player) {
	w.Players.Add(p)
	w.botStates[p.Handle] = &bots.Bot{Handle: p.Handle}
}

// RemovePlayer removes a player by handle, notifying the bot controller if
// it was human-controlled.
func (w *World) RemovePlayer(h idpool.Handle) {
	if _, isBot := w.botStates[h]; isBot {
		w.RemoveBotState(h)
	} else {
		_ = w.BotCtl.HumanDisconnected(context.Background())
	}
	w.Players.Remove(h)
	w.Grid.RemovePlayer(h)
	w.AoI.Remove(h)
	delete(w.aoiLastPos, h)
	delete(w.tickChangedMask, h)
}

// AddPickup registers a world pickup, assigning it the next entity id.
func (w *World) AddPickup(pos Vec2, kind matchlogic.PickupKind, weapon combat.Weapon) uint64 {
	w.nextPickupID++
	id := w.nextPickupID
	w.pickups[id] = &matchlogic.Pickup{ID: id, Position: pos, Kind: kind, Weapon: weapon, Active: true}
	return id
}

// Pickups returns every registered pickup, active or not.
func (w *World) Pickups() []*matchlogic.Pickup {
	out := make([]*matchlogic.Pickup, 0, len(w.pickups))
	for _, p := range w.pickups {
		out = append(out, p)
	}
	return out
}

// Projectiles returns every currently live projectile.
func (w *World) Projectiles() []*Projectile {
	out := make([]*Projectile, 0, len(w.projectiles))
	for _, p := range w.projectiles {
		out = append(out, p)
	}
	return out
}

// Now reports the simulation's current monotonic clock, in seconds.
func (w *World) Now() float64 { return w.now }

// TickCount reports how many ticks have been applied so far.
func (w *World) TickCount() uint64 { return w.tickCount }

func (w *World) spawnProjectile(owner idpool.Handle, weapon combat.Weapon, pos, vel Vec2, damage int32, lifetime float64) {
	w.nextProjectileID++
	id := w.nextProjectileID
	w.projectiles[id] = &Projectile{
		ID:          id,
		Owner:       owner,
		Weapon:      weapon,
		Pos:         pos,
		Vel:         vel,
		Damage:      damage,
		SpawnTime:   w.now,
		MaxLifetime: lifetime,
	}
	w.Grid.UpdateProjectile(id, pos.X, pos.Y)
}

func (w *World) removeProjectile(id uint64) {
	delete(w.projectiles, id)
	w.Grid.RemoveProjectile(id)
}

func (w *World) rebuildWallIndex() {
	var walls []wallindex.Wall
	for _, p := range w.Partitions.Partitions() {
		for _, wl := range p.Walls() {
			walls = append(walls, wallindex.Wall{ID: wl.ID, Box: wl.Box, Active: !wl.Destructible || wl.Health > 0})
		}
	}
	w.WallIndex.Rebuild(walls)
}

// RemoveBotState drops a retired bot's AI state, called when its player is removed.
func (w *World) RemoveBotState(h idpool.Handle) { delete(w.botStates, h) }

// worldAABB converts the configured world bounds into a physics.AABB for
// containment queries.
func (w *World) worldAABB() physics.AABB {
	b := w.cfg.Sim.World
	return physics.AABB{MinX: b.MinX, MinY: b.MinY, MaxX: b.MaxX, MaxY: b.MaxY}
}
