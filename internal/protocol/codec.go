package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrTruncated indicates a payload ended before a required field could be read.
var ErrTruncated = errors.New("protocol: truncated payload")

// scratchPool backs Encode* calls with a reusable byte buffer, per the
// design note "Builder-on-thread-local for serialization": a per-worker
// scratch buffer reset per message rather than a fresh allocation every tick.
var scratchPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, 4096)
		return &buf
	},
}

func acquireScratch() *[]byte {
	buf := scratchPool.Get().(*[]byte)
	*buf = (*buf)[:0]
	return buf
}

func releaseScratch(buf *[]byte) {
	if cap(*buf) > 1<<20 {
		// Drop oversized buffers (e.g. a large InitialState) rather than
		// pinning that much memory in the pool indefinitely.
		return
	}
	scratchPool.Put(buf)
}

// finish copies the scratch buffer contents out and releases it back to the
// pool, since the pooled slice's backing array is reused by the next caller.
func finish(buf *[]byte) []byte {
	out := make([]byte, len(*buf))
	copy(out, *buf)
	releaseScratch(buf)
	return out
}

func appendString(b []byte, s string) []byte {
	b = protowire.AppendVarint(b, uint64(len(s)))
	return append(b, s...)
}

func consumeString(b []byte) (string, []byte, error) {
	n, m := protowire.ConsumeVarint(b)
	if m < 0 {
		return "", nil, ErrTruncated
	}
	b = b[m:]
	if uint64(len(b)) < n {
		return "", nil, ErrTruncated
	}
	return string(b[:n]), b[n:], nil
}

func appendBool(b []byte, v bool) []byte {
	if v {
		return append(b, 1)
	}
	return append(b, 0)
}

func consumeBool(b []byte) (bool, []byte, error) {
	if len(b) < 1 {
		return false, nil, ErrTruncated
	}
	return b[0] != 0, b[1:], nil
}

func appendU8(b []byte, v uint8) []byte { return append(b, v) }

func consumeU8(b []byte) (uint8, []byte, error) {
	if len(b) < 1 {
		return 0, nil, ErrTruncated
	}
	return b[0], b[1:], nil
}

func appendU16(b []byte, v uint16) []byte { return binary.BigEndian.AppendUint16(b, v) }

func consumeU16(b []byte) (uint16, []byte, error) {
	if len(b) < 2 {
		return 0, nil, ErrTruncated
	}
	return binary.BigEndian.Uint16(b), b[2:], nil
}

func appendU32(b []byte, v uint32) []byte { return binary.BigEndian.AppendUint32(b, v) }

func consumeU32(b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, ErrTruncated
	}
	return binary.BigEndian.Uint32(b), b[4:], nil
}

func appendU64(b []byte, v uint64) []byte { return binary.BigEndian.AppendUint64(b, v) }

func consumeU64(b []byte) (uint64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, ErrTruncated
	}
	return binary.BigEndian.Uint64(b), b[8:], nil
}

func appendI32(b []byte, v int32) []byte { return appendU32(b, uint32(v)) }

func consumeI32(b []byte) (int32, []byte, error) {
	v, rest, err := consumeU32(b)
	return int32(v), rest, err
}

func appendF32(b []byte, v float32) []byte { return appendU32(b, math.Float32bits(v)) }

func consumeF32(b []byte) (float32, []byte, error) {
	v, rest, err := consumeU32(b)
	return math.Float32frombits(v), rest, err
}

func appendCount(b []byte, n int) []byte { return protowire.AppendVarint(b, uint64(n)) }

func consumeCount(b []byte) (int, []byte, error) {
	n, m := protowire.ConsumeVarint(b)
	if m < 0 {
		return 0, nil, ErrTruncated
	}
	return int(n), b[m:], nil
}

// EncodeEnvelope prepends the message type tag to an already-encoded payload.
func EncodeEnvelope(msgType MsgType, payload []byte) []byte {
	out := make([]byte, 1+len(payload))
	out[0] = byte(msgType)
	copy(out[1:], payload)
	return out
}

// DecodeEnvelope splits the leading message type tag from its payload.
func DecodeEnvelope(b []byte) (MsgType, []byte, error) {
	if len(b) < 1 {
		return 0, nil, ErrTruncated
	}
	return MsgType(b[0]), b[1:], nil
}

// EncodeClientInput serializes a ClientInput payload.
func EncodeClientInput(m ClientInput) []byte {
	buf := acquireScratch()
	b := *buf
	b = appendU64(b, m.Timestamp)
	b = appendU32(b, m.Sequence)
	b = appendBool(b, m.MoveForward)
	b = appendBool(b, m.MoveBackward)
	b = appendBool(b, m.MoveLeft)
	b = appendBool(b, m.MoveRight)
	b = appendBool(b, m.Shooting)
	b = appendBool(b, m.Reload)
	b = appendF32(b, m.Rotation)
	b = appendBool(b, m.MeleeAttack)
	b = appendU8(b, m.ChangeWeaponSlot)
	b = appendU8(b, m.UseAbilitySlot)
	*buf = b
	return finish(buf)
}

// DecodeClientInput parses a ClientInput payload.
func DecodeClientInput(b []byte) (ClientInput, error) {
	var m ClientInput
	var err error
	if m.Timestamp, b, err = consumeU64(b); err != nil {
		return m, fmt.Errorf("client input timestamp: %w", err)
	}
	if m.Sequence, b, err = consumeU32(b); err != nil {
		return m, fmt.Errorf("client input sequence: %w", err)
	}
	if m.MoveForward, b, err = consumeBool(b); err != nil {
		return m, err
	}
	if m.MoveBackward, b, err = consumeBool(b); err != nil {
		return m, err
	}
	if m.MoveLeft, b, err = consumeBool(b); err != nil {
		return m, err
	}
	if m.MoveRight, b, err = consumeBool(b); err != nil {
		return m, err
	}
	if m.Shooting, b, err = consumeBool(b); err != nil {
		return m, err
	}
	if m.Reload, b, err = consumeBool(b); err != nil {
		return m, err
	}
	if m.Rotation, b, err = consumeF32(b); err != nil {
		return m, err
	}
	if m.MeleeAttack, b, err = consumeBool(b); err != nil {
		return m, err
	}
	if m.ChangeWeaponSlot, b, err = consumeU8(b); err != nil {
		return m, err
	}
	if m.UseAbilitySlot, _, err = consumeU8(b); err != nil {
		return m, err
	}
	return m, nil
}

// EncodeChat serializes a Chat payload. Message is truncated to ChatMaxLen
// runes worth of bytes if the caller did not already enforce the limit.
func EncodeChat(m Chat) []byte {
	if len(m.Message) > ChatMaxLen {
		m.Message = m.Message[:ChatMaxLen]
	}
	buf := acquireScratch()
	b := *buf
	b = appendU64(b, m.Seq)
	b = appendString(b, m.PlayerID)
	b = appendString(b, m.Username)
	b = appendString(b, m.Message)
	b = appendU64(b, m.Timestamp)
	*buf = b
	return finish(buf)
}

// DecodeChat parses a Chat payload.
func DecodeChat(b []byte) (Chat, error) {
	var m Chat
	var err error
	if m.Seq, b, err = consumeU64(b); err != nil {
		return m, err
	}
	if m.PlayerID, b, err = consumeString(b); err != nil {
		return m, err
	}
	if m.Username, b, err = consumeString(b); err != nil {
		return m, err
	}
	if m.Message, b, err = consumeString(b); err != nil {
		return m, err
	}
	if m.Timestamp, _, err = consumeU64(b); err != nil {
		return m, err
	}
	if len(m.Message) > ChatMaxLen {
		m.Message = m.Message[:ChatMaxLen]
	}
	return m, nil
}

// EncodeWelcome serializes a Welcome payload.
func EncodeWelcome(m Welcome) []byte {
	buf := acquireScratch()
	b := *buf
	b = appendString(b, m.PlayerID)
	b = appendString(b, m.Message)
	b = appendU16(b, m.ServerTickRate)
	*buf = b
	return finish(buf)
}

// DecodeWelcome parses a Welcome payload.
func DecodeWelcome(b []byte) (Welcome, error) {
	var m Welcome
	var err error
	if m.PlayerID, b, err = consumeString(b); err != nil {
		return m, err
	}
	if m.Message, b, err = consumeString(b); err != nil {
		return m, err
	}
	if m.ServerTickRate, _, err = consumeU16(b); err != nil {
		return m, err
	}
	return m, nil
}

func appendPlayerSnapshot(b []byte, p PlayerSnapshot) []byte {
	b = appendString(b, p.PlayerID)
	b = appendF32(b, p.X)
	b = appendF32(b, p.Y)
	b = appendF32(b, p.VX)
	b = appendF32(b, p.VY)
	b = appendF32(b, p.Rotation)
	b = appendI32(b, p.Health)
	b = appendI32(b, p.MaxHealth)
	b = appendI32(b, p.Shield)
	b = appendI32(b, p.ShieldMax)
	b = appendBool(b, p.Alive)
	b = appendBool(b, p.HasRespawnCountdown)
	b = appendF32(b, p.RespawnCountdown)
	b = appendU8(b, p.Weapon)
	b = appendI32(b, p.Ammo)
	b = appendBool(b, p.HasReloadProgress)
	b = appendF32(b, p.ReloadProgress)
	b = appendI32(b, p.Score)
	b = appendI32(b, p.Kills)
	b = appendI32(b, p.Deaths)
	b = appendU8(b, p.TeamID)
	b = appendU8(b, p.CarriedFlagTeamID)
	b = appendF32(b, p.SpeedBoostRemaining)
	b = appendF32(b, p.DamageBoostRemaining)
	b = appendU32(b, p.LastProcessedInputSequence)
	b = appendU8(b, p.ChangedFields)
	return b
}

func consumePlayerSnapshot(b []byte) (PlayerSnapshot, []byte, error) {
	var p PlayerSnapshot
	var err error
	if p.PlayerID, b, err = consumeString(b); err != nil {
		return p, nil, err
	}
	if p.X, b, err = consumeF32(b); err != nil {
		return p, nil, err
	}
	if p.Y, b, err = consumeF32(b); err != nil {
		return p, nil, err
	}
	if p.VX, b, err = consumeF32(b); err != nil {
		return p, nil, err
	}
	if p.VY, b, err = consumeF32(b); err != nil {
		return p, nil, err
	}
	if p.Rotation, b, err = consumeF32(b); err != nil {
		return p, nil, err
	}
	if p.Health, b, err = consumeI32(b); err != nil {
		return p, nil, err
	}
	if p.MaxHealth, b, err = consumeI32(b); err != nil {
		return p, nil, err
	}
	if p.Shield, b, err = consumeI32(b); err != nil {
		return p, nil, err
	}
	if p.ShieldMax, b, err = consumeI32(b); err != nil {
		return p, nil, err
	}
	if p.Alive, b, err = consumeBool(b); err != nil {
		return p, nil, err
	}
	if p.HasRespawnCountdown, b, err = consumeBool(b); err != nil {
		return p, nil, err
	}
	if p.RespawnCountdown, b, err = consumeF32(b); err != nil {
		return p, nil, err
	}
	if p.Weapon, b, err = consumeU8(b); err != nil {
		return p, nil, err
	}
	if p.Ammo, b, err = consumeI32(b); err != nil {
		return p, nil, err
	}
	if p.HasReloadProgress, b, err = consumeBool(b); err != nil {
		return p, nil, err
	}
	if p.ReloadProgress, b, err = consumeF32(b); err != nil {
		return p, nil, err
	}
	if p.Score, b, err = consumeI32(b); err != nil {
		return p, nil, err
	}
	if p.Kills, b, err = consumeI32(b); err != nil {
		return p, nil, err
	}
	if p.Deaths, b, err = consumeI32(b); err != nil {
		return p, nil, err
	}
	if p.TeamID, b, err = consumeU8(b); err != nil {
		return p, nil, err
	}
	if p.CarriedFlagTeamID, b, err = consumeU8(b); err != nil {
		return p, nil, err
	}
	if p.SpeedBoostRemaining, b, err = consumeF32(b); err != nil {
		return p, nil, err
	}
	if p.DamageBoostRemaining, b, err = consumeF32(b); err != nil {
		return p, nil, err
	}
	if p.LastProcessedInputSequence, b, err = consumeU32(b); err != nil {
		return p, nil, err
	}
	if p.ChangedFields, b, err = consumeU8(b); err != nil {
		return p, nil, err
	}
	return p, b, nil
}

func appendProjectileSnapshot(b []byte, p ProjectileSnapshot) []byte {
	b = appendU64(b, p.ID)
	b = appendString(b, p.OwnerID)
	b = appendU8(b, p.WeaponType)
	b = appendF32(b, p.X)
	b = appendF32(b, p.Y)
	b = appendF32(b, p.VX)
	b = appendF32(b, p.VY)
	return b
}

func consumeProjectileSnapshot(b []byte) (ProjectileSnapshot, []byte, error) {
	var p ProjectileSnapshot
	var err error
	if p.ID, b, err = consumeU64(b); err != nil {
		return p, nil, err
	}
	if p.OwnerID, b, err = consumeString(b); err != nil {
		return p, nil, err
	}
	if p.WeaponType, b, err = consumeU8(b); err != nil {
		return p, nil, err
	}
	if p.X, b, err = consumeF32(b); err != nil {
		return p, nil, err
	}
	if p.Y, b, err = consumeF32(b); err != nil {
		return p, nil, err
	}
	if p.VX, b, err = consumeF32(b); err != nil {
		return p, nil, err
	}
	if p.VY, b, err = consumeF32(b); err != nil {
		return p, nil, err
	}
	return p, b, nil
}

func appendPickupSnapshot(b []byte, p PickupSnapshot) []byte {
	b = appendU64(b, p.ID)
	b = appendF32(b, p.X)
	b = appendF32(b, p.Y)
	b = appendU8(b, p.Kind)
	b = appendBool(b, p.Active)
	return b
}

func consumePickupSnapshot(b []byte) (PickupSnapshot, []byte, error) {
	var p PickupSnapshot
	var err error
	if p.ID, b, err = consumeU64(b); err != nil {
		return p, nil, err
	}
	if p.X, b, err = consumeF32(b); err != nil {
		return p, nil, err
	}
	if p.Y, b, err = consumeF32(b); err != nil {
		return p, nil, err
	}
	if p.Kind, b, err = consumeU8(b); err != nil {
		return p, nil, err
	}
	if p.Active, b, err = consumeBool(b); err != nil {
		return p, nil, err
	}
	return p, b, nil
}

func appendWallState(b []byte, w WallState) []byte {
	b = appendU64(b, w.ID)
	b = appendF32(b, w.MinX)
	b = appendF32(b, w.MinY)
	b = appendF32(b, w.MaxX)
	b = appendF32(b, w.MaxY)
	b = appendBool(b, w.Destructible)
	b = appendI32(b, w.Health)
	b = appendI32(b, w.MaxHealth)
	return b
}

func consumeWallState(b []byte) (WallState, []byte, error) {
	var w WallState
	var err error
	if w.ID, b, err = consumeU64(b); err != nil {
		return w, nil, err
	}
	if w.MinX, b, err = consumeF32(b); err != nil {
		return w, nil, err
	}
	if w.MinY, b, err = consumeF32(b); err != nil {
		return w, nil, err
	}
	if w.MaxX, b, err = consumeF32(b); err != nil {
		return w, nil, err
	}
	if w.MaxY, b, err = consumeF32(b); err != nil {
		return w, nil, err
	}
	if w.Destructible, b, err = consumeBool(b); err != nil {
		return w, nil, err
	}
	if w.Health, b, err = consumeI32(b); err != nil {
		return w, nil, err
	}
	if w.MaxHealth, b, err = consumeI32(b); err != nil {
		return w, nil, err
	}
	return w, b, nil
}

func appendFlagState(b []byte, f FlagState) []byte {
	b = appendU8(b, f.TeamID)
	b = appendU8(b, f.Status)
	b = appendF32(b, f.X)
	b = appendF32(b, f.Y)
	b = appendBool(b, f.HasCarrier)
	b = appendString(b, f.CarrierID)
	b = appendF32(b, f.AutoReturnRemaining)
	return b
}

func consumeFlagState(b []byte) (FlagState, []byte, error) {
	var f FlagState
	var err error
	if f.TeamID, b, err = consumeU8(b); err != nil {
		return f, nil, err
	}
	if f.Status, b, err = consumeU8(b); err != nil {
		return f, nil, err
	}
	if f.X, b, err = consumeF32(b); err != nil {
		return f, nil, err
	}
	if f.Y, b, err = consumeF32(b); err != nil {
		return f, nil, err
	}
	if f.HasCarrier, b, err = consumeBool(b); err != nil {
		return f, nil, err
	}
	if f.CarrierID, b, err = consumeString(b); err != nil {
		return f, nil, err
	}
	if f.AutoReturnRemaining, b, err = consumeF32(b); err != nil {
		return f, nil, err
	}
	return f, b, nil
}

func appendMatchInfo(b []byte, m MatchInfo) []byte {
	b = appendF32(b, m.TimeRemaining)
	b = appendU8(b, m.Mode)
	b = appendU8(b, m.State)
	b = appendCount(b, len(m.TeamScores))
	for _, ts := range m.TeamScores {
		b = appendU8(b, ts.TeamID)
		b = appendI32(b, ts.Score)
	}
	b = appendCount(b, len(m.Flags))
	for _, f := range m.Flags {
		b = appendFlagState(b, f)
	}
	return b
}

func consumeMatchInfo(b []byte) (MatchInfo, []byte, error) {
	var m MatchInfo
	var err error
	if m.TimeRemaining, b, err = consumeF32(b); err != nil {
		return m, nil, err
	}
	if m.Mode, b, err = consumeU8(b); err != nil {
		return m, nil, err
	}
	if m.State, b, err = consumeU8(b); err != nil {
		return m, nil, err
	}
	var n int
	if n, b, err = consumeCount(b); err != nil {
		return m, nil, err
	}
	m.TeamScores = make([]TeamScore, n)
	for i := 0; i < n; i++ {
		var ts TeamScore
		if ts.TeamID, b, err = consumeU8(b); err != nil {
			return m, nil, err
		}
		if ts.Score, b, err = consumeI32(b); err != nil {
			return m, nil, err
		}
		m.TeamScores[i] = ts
	}
	if n, b, err = consumeCount(b); err != nil {
		return m, nil, err
	}
	m.Flags = make([]FlagState, n)
	for i := 0; i < n; i++ {
		var f FlagState
		if f, b, err = consumeFlagState(b); err != nil {
			return m, nil, err
		}
		m.Flags[i] = f
	}
	return m, b, nil
}

func appendGameEvent(b []byte, e GameEvent) []byte {
	b = appendU8(b, e.Kind)
	b = appendF32(b, e.X)
	b = appendF32(b, e.Y)
	b = appendString(b, e.InstigatorID)
	b = appendString(b, e.TargetID)
	b = appendU8(b, e.Weapon)
	b = appendI32(b, e.Value)
	return b
}

func consumeGameEvent(b []byte) (GameEvent, []byte, error) {
	var e GameEvent
	var err error
	if e.Kind, b, err = consumeU8(b); err != nil {
		return e, nil, err
	}
	if e.X, b, err = consumeF32(b); err != nil {
		return e, nil, err
	}
	if e.Y, b, err = consumeF32(b); err != nil {
		return e, nil, err
	}
	if e.InstigatorID, b, err = consumeString(b); err != nil {
		return e, nil, err
	}
	if e.TargetID, b, err = consumeString(b); err != nil {
		return e, nil, err
	}
	if e.Weapon, b, err = consumeU8(b); err != nil {
		return e, nil, err
	}
	if e.Value, b, err = consumeI32(b); err != nil {
		return e, nil, err
	}
	return e, b, nil
}

func appendKillFeedEntry(b []byte, k KillFeedEntry) []byte {
	b = appendString(b, k.AttackerID)
	b = appendString(b, k.VictimID)
	b = appendU8(b, k.Weapon)
	b = appendBool(b, k.FriendlyFire)
	return b
}

func consumeKillFeedEntry(b []byte) (KillFeedEntry, []byte, error) {
	var k KillFeedEntry
	var err error
	if k.AttackerID, b, err = consumeString(b); err != nil {
		return k, nil, err
	}
	if k.VictimID, b, err = consumeString(b); err != nil {
		return k, nil, err
	}
	if k.Weapon, b, err = consumeU8(b); err != nil {
		return k, nil, err
	}
	if k.FriendlyFire, b, err = consumeBool(b); err != nil {
		return k, nil, err
	}
	return k, b, nil
}

// EncodeInitialState serializes the once-per-session InitialState payload.
func EncodeInitialState(m InitialState) []byte {
	buf := acquireScratch()
	b := *buf
	b = appendU64(b, m.Timestamp)
	b = appendPlayerSnapshot(b, m.Self)
	b = appendCount(b, len(m.VisiblePlayers))
	for _, p := range m.VisiblePlayers {
		b = appendPlayerSnapshot(b, p)
	}
	b = appendCount(b, len(m.Walls))
	for _, w := range m.Walls {
		b = appendWallState(b, w)
	}
	b = appendCount(b, len(m.Projectiles))
	for _, p := range m.Projectiles {
		b = appendProjectileSnapshot(b, p)
	}
	b = appendCount(b, len(m.Pickups))
	for _, p := range m.Pickups {
		b = appendPickupSnapshot(b, p)
	}
	b = appendMatchInfo(b, m.Match)
	b = appendString(b, m.MapName)
	*buf = b
	return finish(buf)
}

// DecodeInitialState parses an InitialState payload.
func DecodeInitialState(b []byte) (InitialState, error) {
	var m InitialState
	var err error
	if m.Timestamp, b, err = consumeU64(b); err != nil {
		return m, err
	}
	if m.Self, b, err = consumePlayerSnapshot(b); err != nil {
		return m, err
	}
	var n int
	if n, b, err = consumeCount(b); err != nil {
		return m, err
	}
	m.VisiblePlayers = make([]PlayerSnapshot, n)
	for i := 0; i < n; i++ {
		if m.VisiblePlayers[i], b, err = consumePlayerSnapshot(b); err != nil {
			return m, err
		}
	}
	if n, b, err = consumeCount(b); err != nil {
		return m, err
	}
	m.Walls = make([]WallState, n)
	for i := 0; i < n; i++ {
		if m.Walls[i], b, err = consumeWallState(b); err != nil {
			return m, err
		}
	}
	if n, b, err = consumeCount(b); err != nil {
		return m, err
	}
	m.Projectiles = make([]ProjectileSnapshot, n)
	for i := 0; i < n; i++ {
		if m.Projectiles[i], b, err = consumeProjectileSnapshot(b); err != nil {
			return m, err
		}
	}
	if n, b, err = consumeCount(b); err != nil {
		return m, err
	}
	m.Pickups = make([]PickupSnapshot, n)
	for i := 0; i < n; i++ {
		if m.Pickups[i], b, err = consumePickupSnapshot(b); err != nil {
			return m, err
		}
	}
	if m.Match, b, err = consumeMatchInfo(b); err != nil {
		return m, err
	}
	if m.MapName, _, err = consumeString(b); err != nil {
		return m, err
	}
	return m, nil
}

// EncodeDeltaState serializes a per-tick DeltaState payload.
func EncodeDeltaState(m DeltaState) []byte {
	buf := acquireScratch()
	b := *buf
	b = appendU64(b, m.Timestamp)
	b = appendU32(b, m.LastProcessedInputSequence)
	b = appendPlayerSnapshot(b, m.Self)

	b = appendCount(b, len(m.UpdatedPlayers))
	for _, p := range m.UpdatedPlayers {
		b = appendPlayerSnapshot(b, p)
	}
	b = appendCount(b, len(m.RemovedPlayerIDs))
	for _, id := range m.RemovedPlayerIDs {
		b = appendString(b, id)
	}

	b = appendCount(b, len(m.AddedProjectiles))
	for _, p := range m.AddedProjectiles {
		b = appendProjectileSnapshot(b, p)
	}
	b = appendCount(b, len(m.RemovedProjectileIDs))
	for _, id := range m.RemovedProjectileIDs {
		b = appendU64(b, id)
	}

	b = appendCount(b, len(m.UpdatedPickups))
	for _, p := range m.UpdatedPickups {
		b = appendPickupSnapshot(b, p)
	}
	b = appendCount(b, len(m.DeactivatedPickupIDs))
	for _, id := range m.DeactivatedPickupIDs {
		b = appendU64(b, id)
	}

	b = appendCount(b, len(m.Events))
	for _, e := range m.Events {
		b = appendGameEvent(b, e)
	}
	b = appendCount(b, len(m.KillFeed))
	for _, k := range m.KillFeed {
		b = appendKillFeedEntry(b, k)
	}

	b = appendBool(b, m.HasMatch)
	if m.HasMatch {
		b = appendMatchInfo(b, m.Match)
	}

	b = appendCount(b, len(m.DestroyedWallIDs))
	for _, id := range m.DestroyedWallIDs {
		b = appendU64(b, id)
	}
	b = appendCount(b, len(m.UpdatedWalls))
	for _, w := range m.UpdatedWalls {
		b = appendWallState(b, w)
	}

	b = appendCount(b, len(m.ChatMessages))
	for _, c := range m.ChatMessages {
		b = appendU64(b, c.Seq)
		b = appendString(b, c.PlayerID)
		b = appendString(b, c.Username)
		b = appendString(b, c.Message)
		b = appendU64(b, c.Timestamp)
	}

	*buf = b
	return finish(buf)
}

// DecodeDeltaState parses a per-tick DeltaState payload.
func DecodeDeltaState(b []byte) (DeltaState, error) {
	var m DeltaState
	var err error
	if m.Timestamp, b, err = consumeU64(b); err != nil {
		return m, err
	}
	if m.LastProcessedInputSequence, b, err = consumeU32(b); err != nil {
		return m, err
	}
	if m.Self, b, err = consumePlayerSnapshot(b); err != nil {
		return m, err
	}

	var n int
	if n, b, err = consumeCount(b); err != nil {
		return m, err
	}
	m.UpdatedPlayers = make([]PlayerSnapshot, n)
	for i := 0; i < n; i++ {
		if m.UpdatedPlayers[i], b, err = consumePlayerSnapshot(b); err != nil {
			return m, err
		}
	}
	if n, b, err = consumeCount(b); err != nil {
		return m, err
	}
	m.RemovedPlayerIDs = make([]string, n)
	for i := 0; i < n; i++ {
		if m.RemovedPlayerIDs[i], b, err = consumeString(b); err != nil {
			return m, err
		}
	}

	if n, b, err = consumeCount(b); err != nil {
		return m, err
	}
	m.AddedProjectiles = make([]ProjectileSnapshot, n)
	for i := 0; i < n; i++ {
		if m.AddedProjectiles[i], b, err = consumeProjectileSnapshot(b); err != nil {
			return m, err
		}
	}
	if n, b, err = consumeCount(b); err != nil {
		return m, err
	}
	m.RemovedProjectileIDs = make([]uint64, n)
	for i := 0; i < n; i++ {
		if m.RemovedProjectileIDs[i], b, err = consumeU64(b); err != nil {
			return m, err
		}
	}

	if n, b, err = consumeCount(b); err != nil {
		return m, err
	}
	m.UpdatedPickups = make([]PickupSnapshot, n)
	for i := 0; i < n; i++ {
		if m.UpdatedPickups[i], b, err = consumePickupSnapshot(b); err != nil {
			return m, err
		}
	}
	if n, b, err = consumeCount(b); err != nil {
		return m, err
	}
	m.DeactivatedPickupIDs = make([]uint64, n)
	for i := 0; i < n; i++ {
		if m.DeactivatedPickupIDs[i], b, err = consumeU64(b); err != nil {
			return m, err
		}
	}

	if n, b, err = consumeCount(b); err != nil {
		return m, err
	}
	m.Events = make([]GameEvent, n)
	for i := 0; i < n; i++ {
		if m.Events[i], b, err = consumeGameEvent(b); err != nil {
			return m, err
		}
	}
	if n, b, err = consumeCount(b); err != nil {
		return m, err
	}
	m.KillFeed = make([]KillFeedEntry, n)
	for i := 0; i < n; i++ {
		if m.KillFeed[i], b, err = consumeKillFeedEntry(b); err != nil {
			return m, err
		}
	}

	if m.HasMatch, b, err = consumeBool(b); err != nil {
		return m, err
	}
	if m.HasMatch {
		if m.Match, b, err = consumeMatchInfo(b); err != nil {
			return m, err
		}
	}

	if n, b, err = consumeCount(b); err != nil {
		return m, err
	}
	m.DestroyedWallIDs = make([]uint64, n)
	for i := 0; i < n; i++ {
		if m.DestroyedWallIDs[i], b, err = consumeU64(b); err != nil {
			return m, err
		}
	}
	if n, b, err = consumeCount(b); err != nil {
		return m, err
	}
	m.UpdatedWalls = make([]WallState, n)
	for i := 0; i < n; i++ {
		if m.UpdatedWalls[i], b, err = consumeWallState(b); err != nil {
			return m, err
		}
	}

	if n, b, err = consumeCount(b); err != nil {
		return m, err
	}
	m.ChatMessages = make([]Chat, n)
	for i := 0; i < n; i++ {
		var c Chat
		if c.Seq, b, err = consumeU64(b); err != nil {
			return m, err
		}
		if c.PlayerID, b, err = consumeString(b); err != nil {
			return m, err
		}
		if c.Username, b, err = consumeString(b); err != nil {
			return m, err
		}
		if c.Message, b, err = consumeString(b); err != nil {
			return m, err
		}
		if c.Timestamp, b, err = consumeU64(b); err != nil {
			return m, err
		}
		m.ChatMessages[i] = c
	}

	return m, nil
}
