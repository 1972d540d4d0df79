package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAddr is the default TCP address the server listens on.
	DefaultAddr = ":43127"
	// DefaultGRPCAddr is the default TCP address the time-sync gRPC service listens on.
	DefaultGRPCAddr = ":43128"
	// DefaultMatchMode selects the match rule set when GAMESERVER_MATCH_MODE is unset.
	DefaultMatchMode = "tdm"
	// DefaultPingInterval controls the keepalive cadence for WebSocket connections.
	DefaultPingInterval = 30 * time.Second
	// DefaultMaxPayloadBytes limits inbound WebSocket frame size.
	DefaultMaxPayloadBytes int64 = 1 << 20
	// DefaultMaxClients bounds concurrent WebSocket connections. Zero disables the limit.
	DefaultMaxClients = 256

	// DefaultReplayDumpWindow bounds how frequently replay dump triggers may be requested.
	DefaultReplayDumpWindow = time.Minute
	// DefaultReplayDumpBurst sets how many replay dump requests may be made per window.
	DefaultReplayDumpBurst = 1

	// DefaultLogLevel controls verbosity for server logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "gameserver.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true

	// DefaultStateSnapshotInterval controls how frequently state snapshots are persisted.
	DefaultStateSnapshotInterval = 30 * time.Second

	// DefaultTickRateHz is the fixed simulation tick rate.
	DefaultTickRateHz = 30
	// DefaultTickBudget is the hard per-tick wall-clock budget before a tick is
	// logged as overrun.
	DefaultTickBudget = 16 * time.Millisecond
	// DefaultSlowTickWarn is the soft physics+logic warn threshold.
	DefaultSlowTickWarn = 12 * time.Millisecond
	// DefaultNetIOTimeout bounds the input-application stage.
	DefaultNetIOTimeout = 10 * time.Millisecond
	// DefaultAITimeout bounds the bot AI stage.
	DefaultAITimeout = 10 * time.Millisecond
	// DefaultFanOutTimeout bounds the broadcast stage.
	DefaultFanOutTimeout = 50 * time.Millisecond
	// DefaultPerSendTimeout is the default for SimulationConfig.PerSendTimeout.
	// No send path reads that field; individual client sends carry no
	// timeout of their own.
	DefaultPerSendTimeout = 50 * time.Millisecond
	// DefaultOverrunLogStride throttles the structured warning logged when a
	// budget is exceeded to at most once every this many ticks.
	DefaultOverrunLogStride = 60
	// DefaultMaxEventsPerDelta caps how many game events ride in a single
	// client's delta frame.
	DefaultMaxEventsPerDelta = 50
	// DefaultMaxChatPerTick caps how many chat messages are flushed to a
	// client in a single tick.
	DefaultMaxChatPerTick = 10
	// DefaultMatchInfoTimeEpsilonSeconds is the minimum time_remaining delta
	// that counts as a change worth re-sending match info.
	DefaultMatchInfoTimeEpsilonSeconds = 0.5
	// DefaultAIUpdateStride runs bot AI every Nth tick.
	DefaultAIUpdateStride = 2

	// DefaultWorldMinX/MaxX/MinY/MaxY bound the playable world.
	DefaultWorldMinX = -800
	DefaultWorldMaxX = 800
	DefaultWorldMinY = -600
	DefaultWorldMaxY = 600

	// DefaultPartitionGridSize is the NxN world partition grid dimension.
	DefaultPartitionGridSize = 8
	// DefaultSpatialCellSize is the uniform grid cell size for the player/projectile index.
	DefaultSpatialCellSize = 400
	// DefaultBoundaryZoneWidth is the width of the partition boundary handoff zone.
	DefaultBoundaryZoneWidth = 100

	// DefaultPlayerShardCount is the number of shards in the player store.
	DefaultPlayerShardCount = 96
	// DefaultPlayerRadius is the collision radius of a player.
	DefaultPlayerRadius = 15
	// DefaultBaseSpeed is the unboosted player movement speed in units/second.
	DefaultBaseSpeed = 150
	// DefaultSpeedBoostMultiplier scales base speed while a speed boost is active.
	DefaultSpeedBoostMultiplier = 1.5
	// DefaultMinPlayersToStart is the minimum player count, bots included,
	// before a match begins.
	DefaultMinPlayersToStart = 1

	// DefaultPickupCollectionRadius is the distance at which a pickup is collected.
	DefaultPickupCollectionRadius = 25
	// DefaultPickupRespawnSeconds is how long a collected pickup stays absent.
	DefaultPickupRespawnSeconds = 10
	// DefaultPickupRespawnShortSeconds is the respawn delay for Health/Ammo pickups.
	DefaultPickupRespawnShortSeconds = 10
	// DefaultPickupRespawnMidSeconds is the respawn delay for SpeedBoost/DamageBoost/Shield pickups.
	DefaultPickupRespawnMidSeconds = 15
	// DefaultPickupRespawnLongSeconds is the respawn delay for WeaponCrate pickups.
	DefaultPickupRespawnLongSeconds = 20
	// DefaultHealthPickupAmount is the health restored by a Health pickup.
	DefaultHealthPickupAmount = 50
	// DefaultShieldGrantAmount is the shield (and shield cap) granted by a Shield pickup.
	DefaultShieldGrantAmount = 50
	// DefaultPowerupSeconds is how long a SpeedBoost/DamageBoost pickup's effect lasts.
	DefaultPowerupSeconds = 10

	// DefaultMatchRoundSeconds is the time_remaining a TDM/CTF round starts with.
	DefaultMatchRoundSeconds = 600
	// DefaultMatchGraceSeconds is how long an Ended match waits before resetting to Waiting.
	DefaultMatchGraceSeconds = 10
	// DefaultFlagAutoReturnSeconds is how long a dropped CTF flag waits before auto-returning.
	DefaultFlagAutoReturnSeconds = 30
	// DefaultScoreToWin is the team score that ends a CTF match immediately.
	DefaultScoreToWin = 3

	// DefaultAntiCheatSlack is the allowed position delta beyond max_speed*dt.
	DefaultAntiCheatSlack = 10
	// DefaultAntiCheatViolationThreshold is consecutive bad ticks before snap-back.
	DefaultAntiCheatViolationThreshold = 5
	// DefaultMinShotIntervalSeconds is the minimum allowed interval between shots.
	DefaultMinShotIntervalSeconds = 0.05

	// DefaultShotgunPellets is the pellet count fired per shotgun shot.
	DefaultShotgunPellets = 8
	// DefaultShotgunSpreadRadians is the half-angle spread of shotgun pellets.
	DefaultShotgunSpreadRadians = 0.4

	// DefaultRespawnSeconds is the default time-to-respawn after death.
	DefaultRespawnSeconds = 5
	// DefaultInputQueueCapacity bounds queued unprocessed inputs per player.
	DefaultInputQueueCapacity = 32
	// DefaultSafeSpawnRadius is the minimum distance from an enemy for a spawn point
	// to be considered safe.
	DefaultSafeSpawnRadius = 300

	// DefaultSpawnProtectionSeconds governs the recency penalty decay in spawn scoring.
	DefaultSpawnProtectionSeconds = 3
	// DefaultSpawnProtectionCapMultiplier sets the recency-penalty window to this
	// multiple of DefaultSpawnProtectionSeconds; a spawn point last used longer
	// ago than that carries no penalty.
	DefaultSpawnProtectionCapMultiplier = 2

	// DefaultSignificantMovementThreshold is the linear displacement, in
	// world units, past which a player's AoI is eagerly recomputed even
	// before its throttle interval would otherwise require it.
	DefaultSignificantMovementThreshold = 50.0

	// DefaultAoIRadius is the area-of-interest visibility radius.
	DefaultAoIRadius = 600
	// DefaultAoIRecomputeInterval is the minimum interval between AoI recomputation
	// for a given player.
	DefaultAoIRecomputeInterval = 100 * time.Millisecond

	// DefaultBandwidthLimitBytesPerSecond is the refill rate of the per-client
	// BandwidthRegulator whose usage /metrics reports; broadcast sends do not
	// consult the regulator, so delivery is not throttled by it.
	DefaultBandwidthLimitBytesPerSecond = 48000.0 / 8.0
	// DefaultSnapshotSizeCapBytes bounds a single initial state payload before
	// wall/projectile truncation kicks in; delta payloads are not size-capped.
	DefaultSnapshotSizeCapBytes = 160 * 1024

	// DefaultBotTargetPopulation is the desired combined human+bot population.
	DefaultBotTargetPopulation = 16

	// DefaultPistolProjectileSpeed, DefaultShotgunProjectileSpeed,
	// DefaultRifleProjectileSpeed, DefaultSniperProjectileSpeed are per-weapon
	// projectile speeds in units/second.
	DefaultPistolProjectileSpeed  = 450
	DefaultShotgunProjectileSpeed = 400
	DefaultRifleProjectileSpeed   = 600
	DefaultSniperProjectileSpeed  = 800

	// DefaultWallRespawnTier1Seconds, DefaultWallRespawnTier2Seconds,
	// DefaultWallRespawnTier3Seconds list the tiered wall-segment respawn delays.
	DefaultWallRespawnTier1Seconds = 30
	DefaultWallRespawnTier2Seconds = 60
	DefaultWallRespawnTier3Seconds = 90

	// DefaultWallIndexRebuildStride is the default for
	// SimulationConfig.WallIndexRebuildStride; the physics stage's periodic
	// wall-index rebuild uses wallindex.StalenessTicks (also 150) and does not
	// read this field.
	DefaultWallIndexRebuildStride = 150

	// DefaultAIDecisionIntervalSeconds is how often a bot re-evaluates its
	// objective; stuck detection only replaces the target and restarts this
	// timer.
	DefaultAIDecisionIntervalSeconds = 2.0
	// DefaultAIStuckWindowSeconds and DefaultAIStuckDistanceThreshold detect a
	// bot wedged against geometry: if it travels less than the threshold
	// distance over the window, it picks a new random target.
	DefaultAIStuckWindowSeconds     = 2.0
	DefaultAIStuckDistanceThreshold = 10.0
	// DefaultAIRandomTargetMinDistance, DefaultAIRandomTargetMaxDistance bound
	// the unstick target's distance from the bot's current position.
	DefaultAIRandomTargetMinDistance = 100.0
	DefaultAIRandomTargetMaxDistance = 300.0
	// DefaultAIMovementTolerance is how close a bot must be to its target
	// position before it stops issuing move_forward.
	DefaultAIMovementTolerance = 10.0
	// DefaultAIReactionDelaySeconds makes a bot wait this long after a
	// redecision before it's allowed to shoot, modeling human reaction time.
	DefaultAIReactionDelaySeconds = 0.1
	// DefaultAIAimNoiseRadians is the max random heading error a bot adds to
	// its aim each tick.
	DefaultAIAimNoiseRadians = 0.05
	// DefaultAILowHealthFraction, DefaultAILowAmmoFraction trigger a TDM bot
	// to prioritize seeking a pickup over engaging.
	DefaultAILowHealthFraction = 0.3
	DefaultAILowAmmoFraction   = 0.25
	// DefaultAIEscortOffsetUnits is how far behind a flag carrier an escorting
	// teammate bot tries to stay.
	DefaultAIEscortOffsetUnits = 100.0
	// DefaultAIAttackRoleFraction, DefaultAIDefendRoleFraction split idle CTF
	// bots into roles; the remainder flexes between both.
	DefaultAIAttackRoleFraction = 0.6
	DefaultAIDefendRoleFraction = 0.25
)

// Config captures all runtime tunables for the game server process.
type Config struct {
	Address               string
	GRPCAddress           string
	MatchMode             string
	AllowedOrigins        []string
	MaxPayloadBytes       int64
	PingInterval          time.Duration
	MaxClients            int
	TLSCertPath           string
	TLSKeyPath            string
	AdminToken            string
	WSAuthSecret          string
	ReplayDumpWindow      time.Duration
	ReplayDumpBurst       int
	Logging               LoggingConfig
	StateSnapshotPath     string
	StateSnapshotInterval time.Duration
	Simulation            SimulationConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// WorldBounds describes the rectangular playable region.
type WorldBounds struct {
	MinX, MaxX, MinY, MaxY float64
}

// SimulationConfig captures the tunables that drive the fixed-tick
// simulation, partitioning, spatial indices, AoI, combat balance, and bot
// population control.
type SimulationConfig struct {
	TickRateHz     int
	TickBudget     time.Duration
	SlowTickWarn   time.Duration
	NetIOTimeout   time.Duration
	AITimeout      time.Duration
	FanOutTimeout  time.Duration
	AIUpdateStride int

	World             WorldBounds
	PartitionGridSize int
	SpatialCellSize   float64
	BoundaryZoneWidth float64

	PlayerShardCount     int
	PlayerRadius         float64
	BaseSpeed            float64
	SpeedBoostMultiplier float64
	MinPlayersToStart    int

	PickupCollectionRadius    float64
	PickupRespawnSeconds      float64
	PickupRespawnShortSeconds float64
	PickupRespawnMidSeconds   float64
	PickupRespawnLongSeconds  float64
	HealthPickupAmount        int32
	ShieldGrantAmount         int32
	PowerupSeconds            float64

	MatchRoundSeconds    float64
	MatchGraceSeconds    float64
	FlagAutoReturnSeconds float64
	ScoreToWin            int32

	AntiCheatSlack              float64
	AntiCheatViolationThreshold int
	MinShotIntervalSeconds      float64

	ShotgunPellets       int
	ShotgunSpreadRadians float64

	RespawnSeconds     float64
	InputQueueCapacity int
	SafeSpawnRadius    float64

	SpawnProtectionSeconds       float64
	SpawnProtectionCapMultiplier float64

	AoIRadius                    float64
	AoIRecomputeInterval         time.Duration
	SignificantMovementThreshold float64

	BandwidthLimitBytesPerSecond float64
	SnapshotSizeCapBytes         int
	PerSendTimeout               time.Duration
	OverrunLogStride             int
	MaxEventsPerDelta            int
	MaxChatPerTick               int
	MatchInfoTimeEpsilonSeconds  float64

	BotTargetPopulation int

	PistolProjectileSpeed  float64
	ShotgunProjectileSpeed float64
	RifleProjectileSpeed   float64
	SniperProjectileSpeed  float64

	WallRespawnTier1Seconds float64
	WallRespawnTier2Seconds float64
	WallRespawnTier3Seconds float64
	WallIndexRebuildStride  int

	AIDecisionIntervalSeconds  float64
	AIStuckWindowSeconds       float64
	AIStuckDistanceThreshold   float64
	AIRandomTargetMinDistance  float64
	AIRandomTargetMaxDistance  float64
	AIMovementTolerance        float64
	AIReactionDelaySeconds     float64
	AIAimNoiseRadians          float64
	AILowHealthFraction        float64
	AILowAmmoFraction          float64
	AIEscortOffsetUnits        float64
	AIAttackRoleFraction       float64
	AIDefendRoleFraction       float64
}

func defaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		TickRateHz:     DefaultTickRateHz,
		TickBudget:     DefaultTickBudget,
		SlowTickWarn:   DefaultSlowTickWarn,
		NetIOTimeout:   DefaultNetIOTimeout,
		AITimeout:      DefaultAITimeout,
		FanOutTimeout:  DefaultFanOutTimeout,
		AIUpdateStride: DefaultAIUpdateStride,

		World: WorldBounds{
			MinX: DefaultWorldMinX,
			MaxX: DefaultWorldMaxX,
			MinY: DefaultWorldMinY,
			MaxY: DefaultWorldMaxY,
		},
		PartitionGridSize: DefaultPartitionGridSize,
		SpatialCellSize:   DefaultSpatialCellSize,
		BoundaryZoneWidth: DefaultBoundaryZoneWidth,

		PlayerShardCount:     DefaultPlayerShardCount,
		PlayerRadius:         DefaultPlayerRadius,
		BaseSpeed:            DefaultBaseSpeed,
		SpeedBoostMultiplier: DefaultSpeedBoostMultiplier,
		MinPlayersToStart:    DefaultMinPlayersToStart,

		PickupCollectionRadius:    DefaultPickupCollectionRadius,
		PickupRespawnSeconds:      DefaultPickupRespawnSeconds,
		PickupRespawnShortSeconds: DefaultPickupRespawnShortSeconds,
		PickupRespawnMidSeconds:   DefaultPickupRespawnMidSeconds,
		PickupRespawnLongSeconds:  DefaultPickupRespawnLongSeconds,
		HealthPickupAmount:        DefaultHealthPickupAmount,
		ShieldGrantAmount:         DefaultShieldGrantAmount,
		PowerupSeconds:            DefaultPowerupSeconds,

		MatchRoundSeconds:     DefaultMatchRoundSeconds,
		MatchGraceSeconds:     DefaultMatchGraceSeconds,
		FlagAutoReturnSeconds: DefaultFlagAutoReturnSeconds,
		ScoreToWin:            DefaultScoreToWin,

		AntiCheatSlack:              DefaultAntiCheatSlack,
		AntiCheatViolationThreshold: DefaultAntiCheatViolationThreshold,
		MinShotIntervalSeconds:      DefaultMinShotIntervalSeconds,

		ShotgunPellets:       DefaultShotgunPellets,
		ShotgunSpreadRadians: DefaultShotgunSpreadRadians,

		RespawnSeconds:     DefaultRespawnSeconds,
		InputQueueCapacity: DefaultInputQueueCapacity,
		SafeSpawnRadius:    DefaultSafeSpawnRadius,

		SpawnProtectionSeconds:       DefaultSpawnProtectionSeconds,
		SpawnProtectionCapMultiplier: DefaultSpawnProtectionCapMultiplier,

		AoIRadius:                    DefaultAoIRadius,
		AoIRecomputeInterval:         DefaultAoIRecomputeInterval,
		SignificantMovementThreshold: DefaultSignificantMovementThreshold,

		BandwidthLimitBytesPerSecond: DefaultBandwidthLimitBytesPerSecond,
		SnapshotSizeCapBytes:         DefaultSnapshotSizeCapBytes,
		PerSendTimeout:               DefaultPerSendTimeout,
		OverrunLogStride:             DefaultOverrunLogStride,
		MaxEventsPerDelta:            DefaultMaxEventsPerDelta,
		MaxChatPerTick:               DefaultMaxChatPerTick,
		MatchInfoTimeEpsilonSeconds:  DefaultMatchInfoTimeEpsilonSeconds,

		BotTargetPopulation: DefaultBotTargetPopulation,

		PistolProjectileSpeed:  DefaultPistolProjectileSpeed,
		ShotgunProjectileSpeed: DefaultShotgunProjectileSpeed,
		RifleProjectileSpeed:   DefaultRifleProjectileSpeed,
		SniperProjectileSpeed:  DefaultSniperProjectileSpeed,

		WallRespawnTier1Seconds: DefaultWallRespawnTier1Seconds,
		WallRespawnTier2Seconds: DefaultWallRespawnTier2Seconds,
		WallRespawnTier3Seconds: DefaultWallRespawnTier3Seconds,
		WallIndexRebuildStride:  DefaultWallIndexRebuildStride,

		AIDecisionIntervalSeconds: DefaultAIDecisionIntervalSeconds,
		AIStuckWindowSeconds:      DefaultAIStuckWindowSeconds,
		AIStuckDistanceThreshold:  DefaultAIStuckDistanceThreshold,
		AIRandomTargetMinDistance: DefaultAIRandomTargetMinDistance,
		AIRandomTargetMaxDistance: DefaultAIRandomTargetMaxDistance,
		AIMovementTolerance:       DefaultAIMovementTolerance,
		AIReactionDelaySeconds:    DefaultAIReactionDelaySeconds,
		AIAimNoiseRadians:         DefaultAIAimNoiseRadians,
		AILowHealthFraction:       DefaultAILowHealthFraction,
		AILowAmmoFraction:         DefaultAILowAmmoFraction,
		AIEscortOffsetUnits:       DefaultAIEscortOffsetUnits,
		AIAttackRoleFraction:      DefaultAIAttackRoleFraction,
		AIDefendRoleFraction:      DefaultAIDefendRoleFraction,
	}
}

// Load reads the game server configuration from environment variables,
// applying sane defaults and returning descriptive errors for invalid
// overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Address:          getString("GAMESERVER_ADDR", DefaultAddr),
		GRPCAddress:      getString("GAMESERVER_GRPC_ADDR", DefaultGRPCAddr),
		MatchMode:        strings.ToLower(getString("GAMESERVER_MATCH_MODE", DefaultMatchMode)),
		AllowedOrigins:   parseList(os.Getenv("GAMESERVER_ALLOWED_ORIGINS")),
		MaxPayloadBytes:  DefaultMaxPayloadBytes,
		PingInterval:     DefaultPingInterval,
		MaxClients:       DefaultMaxClients,
		TLSCertPath:      strings.TrimSpace(os.Getenv("GAMESERVER_TLS_CERT")),
		TLSKeyPath:       strings.TrimSpace(os.Getenv("GAMESERVER_TLS_KEY")),
		AdminToken:       strings.TrimSpace(os.Getenv("GAMESERVER_ADMIN_TOKEN")),
		WSAuthSecret:     strings.TrimSpace(os.Getenv("GAMESERVER_WS_AUTH_SECRET")),
		ReplayDumpWindow: DefaultReplayDumpWindow,
		ReplayDumpBurst:  DefaultReplayDumpBurst,
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("GAMESERVER_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("GAMESERVER_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
		StateSnapshotPath:     strings.TrimSpace(os.Getenv("GAMESERVER_STATE_PATH")),
		StateSnapshotInterval: DefaultStateSnapshotInterval,
		Simulation:            defaultSimulationConfig(),
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("GAMESERVER_MAX_PAYLOAD_BYTES")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("GAMESERVER_MAX_PAYLOAD_BYTES must be a positive integer, got %q", raw))
		} else {
			cfg.MaxPayloadBytes = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GAMESERVER_PING_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("GAMESERVER_PING_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.PingInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GAMESERVER_MAX_CLIENTS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("GAMESERVER_MAX_CLIENTS must be a non-negative integer, got %q", raw))
		} else {
			cfg.MaxClients = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GAMESERVER_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("GAMESERVER_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GAMESERVER_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("GAMESERVER_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GAMESERVER_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("GAMESERVER_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GAMESERVER_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("GAMESERVER_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GAMESERVER_REPLAY_DUMP_WINDOW")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("GAMESERVER_REPLAY_DUMP_WINDOW must be a positive duration, got %q", raw))
		} else {
			cfg.ReplayDumpWindow = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GAMESERVER_REPLAY_DUMP_BURST")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("GAMESERVER_REPLAY_DUMP_BURST must be a positive integer, got %q", raw))
		} else {
			cfg.ReplayDumpBurst = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GAMESERVER_STATE_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("GAMESERVER_STATE_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.StateSnapshotInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GAMESERVER_TICK_RATE_HZ")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("GAMESERVER_TICK_RATE_HZ must be a positive integer, got %q", raw))
		} else {
			cfg.Simulation.TickRateHz = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GAMESERVER_BOT_TARGET_POPULATION")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("GAMESERVER_BOT_TARGET_POPULATION must be a non-negative integer, got %q", raw))
		} else {
			cfg.Simulation.BotTargetPopulation = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GAMESERVER_AOI_RADIUS")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("GAMESERVER_AOI_RADIUS must be a positive number, got %q", raw))
		} else {
			cfg.Simulation.AoIRadius = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GAMESERVER_BANDWIDTH_LIMIT_BPS")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("GAMESERVER_BANDWIDTH_LIMIT_BPS must be a positive number, got %q", raw))
		} else {
			cfg.Simulation.BandwidthLimitBytesPerSecond = value
		}
	}

	if (cfg.TLSCertPath == "") != (cfg.TLSKeyPath == "") {
		problems = append(problems, "GAMESERVER_TLS_CERT and GAMESERVER_TLS_KEY must be provided together")
	}

	if cfg.MatchMode != "tdm" && cfg.MatchMode != "ctf" {
		problems = append(problems, fmt.Sprintf("GAMESERVER_MATCH_MODE must be 'tdm' or 'ctf', got %q", cfg.MatchMode))
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			values = append(values, item)
		}
	}
	return values
}
