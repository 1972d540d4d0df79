// Package protocol defines the wire messages exchanged between the
// simulation core and connected clients, and a hand-written binary codec for
// them. The generated protobuf package the broker historically depended on
// for this (internal/proto/pb) is not available to this build — see
// DESIGN.md for why this repo uses a flat, length-prefixed encoding/binary
// framing instead of either generated protobuf or flatbuffers.
package protocol

// MsgType tags the payload carried by a GameMessage envelope.
type MsgType uint8

const (
	MsgTypeClientInput MsgType = iota + 1
	MsgTypeChat
	MsgTypeWelcome
	MsgTypeInitialState
	MsgTypeDeltaState
)

// String renders a human-readable message type name for logging.
func (t MsgType) String() string {
	switch t {
	case MsgTypeClientInput:
		return "ClientInput"
	case MsgTypeChat:
		return "Chat"
	case MsgTypeWelcome:
		return "Welcome"
	case MsgTypeInitialState:
		return "InitialState"
	case MsgTypeDeltaState:
		return "DeltaState"
	default:
		return "Unknown"
	}
}

// ChatMaxLen is the maximum accepted length of a chat message body.
const ChatMaxLen = 100

// ChangedField bits record which attribute group of a PlayerSnapshot changed
// this tick; see spec §3 "changed_fields bitmask".
const (
	ChangedPositionRotation uint8 = 1 << iota
	ChangedHealthAlive
	ChangedWeaponAmmo
	ChangedScoreStats
	ChangedPowerups
	ChangedShield
	ChangedFlag
)

// ClientInput is the client→server per-tick control payload.
type ClientInput struct {
	Timestamp        uint64
	Sequence         uint32
	MoveForward      bool
	MoveBackward     bool
	MoveLeft         bool
	MoveRight        bool
	Shooting         bool
	Reload           bool
	Rotation         float32
	MeleeAttack      bool
	ChangeWeaponSlot uint8
	UseAbilitySlot   uint8
}

// Chat is the bidirectional chat payload.
type Chat struct {
	Seq       uint64
	PlayerID  string
	Username  string
	Message   string
	Timestamp uint64
}

// Welcome is sent once, server→client, immediately after channel open.
type Welcome struct {
	PlayerID       string
	Message        string
	ServerTickRate uint16
}

// PlayerSnapshot is the full serialized state of one player, used for both
// self-state and visible-player entries in InitialState/DeltaState.
type PlayerSnapshot struct {
	PlayerID                   string
	X, Y                       float32
	VX, VY                     float32
	Rotation                   float32
	Health, MaxHealth          int32
	Shield, ShieldMax          int32
	Alive                      bool
	HasRespawnCountdown        bool
	RespawnCountdown           float32
	Weapon                     uint8
	Ammo                       int32
	HasReloadProgress          bool
	ReloadProgress             float32
	Score, Kills, Deaths       int32
	TeamID                     uint8
	CarriedFlagTeamID          uint8
	SpeedBoostRemaining        float32
	DamageBoostRemaining       float32
	LastProcessedInputSequence uint32
	ChangedFields              uint8
}

// ProjectileSnapshot is the serialized state of one active projectile.
type ProjectileSnapshot struct {
	ID         uint64
	OwnerID    string
	WeaponType uint8
	X, Y       float32
	VX, VY     float32
}

// PickupSnapshot is the serialized state of one pickup.
type PickupSnapshot struct {
	ID     uint64
	X, Y   float32
	Kind   uint8
	Active bool
}

// WallState is the serialized state of one wall.
type WallState struct {
	ID                      uint64
	MinX, MinY, MaxX, MaxY  float32
	Destructible            bool
	Health, MaxHealth       int32
}

// FlagState is the serialized state of one CTF flag.
type FlagState struct {
	TeamID              uint8
	Status              uint8
	X, Y                float32
	CarrierID           string
	HasCarrier          bool
	AutoReturnRemaining float32
}

// TeamScore pairs a team id with its current score, used in place of a map
// so wire order is deterministic.
type TeamScore struct {
	TeamID uint8
	Score  int32
}

// MatchInfo is the serialized match state.
type MatchInfo struct {
	TimeRemaining float32
	Mode          uint8
	State         uint8
	TeamScores    []TeamScore
	Flags         []FlagState
}

// GameEvent is one entry in the per-tick event stream forwarded to clients.
type GameEvent struct {
	Kind         uint8
	X, Y         float32
	InstigatorID string
	TargetID     string
	Weapon       uint8
	Value        int32
}

// KillFeedEntry is one kill-feed line.
type KillFeedEntry struct {
	AttackerID   string
	VictimID     string
	Weapon       uint8
	FriendlyFire bool
}

// InitialState is sent once per session, immediately after Welcome.
type InitialState struct {
	Timestamp       uint64
	Self            PlayerSnapshot
	VisiblePlayers  []PlayerSnapshot
	Walls           []WallState
	Projectiles     []ProjectileSnapshot
	Pickups         []PickupSnapshot
	Match           MatchInfo
	MapName         string
}

// DeltaState is sent once per tick after the initial snapshot.
type DeltaState struct {
	Timestamp                  uint64
	LastProcessedInputSequence uint32
	Self                       PlayerSnapshot
	UpdatedPlayers             []PlayerSnapshot
	RemovedPlayerIDs           []string
	AddedProjectiles           []ProjectileSnapshot
	RemovedProjectileIDs       []uint64
	UpdatedPickups             []PickupSnapshot
	DeactivatedPickupIDs       []uint64
	Events                     []GameEvent
	KillFeed                   []KillFeedEntry
	HasMatch                   bool
	Match                      MatchInfo
	DestroyedWallIDs           []uint64
	UpdatedWalls               []WallState
	ChatMessages               []Chat
}
