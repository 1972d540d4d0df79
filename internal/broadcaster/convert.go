package broadcaster

import (
	"massivegame/server/internal/combat"
	"massivegame/server/internal/idpool"
	"massivegame/server/internal/matchlogic"
	"massivegame/server/internal/partition"
	"massivegame/server/internal/playerstore"
	"massivegame/server/internal/protocol"
)

// ProjectileView is the minimal view BuildInitialState/BuildDelta need of one
// live projectile; physics owns the authoritative projectile list and
// builds this from it each tick.
type ProjectileView struct {
	ID     uint64
	Owner  idpool.Handle
	Weapon combat.Weapon
	X, Y   float64
	VX, VY float64
}

// PickupUpdate is the minimal view of one pickup entity.
type PickupUpdate struct {
	ID       uint64
	Position Vec2
	Kind     matchlogic.PickupKind
	Active   bool
}

// PlayerUpdate bundles one player's handle, wire snapshot, and this tick's
// changed-fields mask, built by the caller from a playerstore.Player.
type PlayerUpdate struct {
	Handle idpool.Handle
	Mask   uint8
	Snap   protocol.PlayerSnapshot
}

// ToPlayerSnapshot renders one authoritative player as the wire snapshot
// format, tagging it with this tick's changed-fields mask.
func ToPlayerSnapshot(handle idpool.Handle, p *playerstore.Player, mask uint8) protocol.PlayerSnapshot {
	return protocol.PlayerSnapshot{
		PlayerID:                   handle.String(),
		X:                          float32(p.X),
		Y:                          float32(p.Y),
		VX:                         float32(p.VX),
		VY:                         float32(p.VY),
		Rotation:                   float32(p.Rotation),
		Health:                     p.Health,
		MaxHealth:                  p.MaxHealth,
		Shield:                     p.Shield,
		ShieldMax:                  p.ShieldMax,
		Alive:                      p.Alive,
		HasRespawnCountdown:        p.HasRespawnCountdown,
		RespawnCountdown:           float32(p.RespawnCountdown),
		Weapon:                     uint8(p.Weapon),
		Ammo:                       p.Ammo,
		HasReloadProgress:          p.HasReloadProgress,
		ReloadProgress:             float32(p.ReloadProgress),
		Score:                      p.Score,
		Kills:                      p.Kills,
		Deaths:                     p.Deaths,
		TeamID:                     p.TeamID,
		CarriedFlagTeamID:          p.CarriedFlagTeamID,
		SpeedBoostRemaining:        float32(p.SpeedBoostRemaining),
		DamageBoostRemaining:       float32(p.DamageBoostRemaining),
		LastProcessedInputSequence: p.LastProcessedInputSequence,
		ChangedFields:              mask,
	}
}

// ToProjectileSnapshot renders one live projectile as its wire snapshot.
func ToProjectileSnapshot(v ProjectileView) protocol.ProjectileSnapshot {
	return protocol.ProjectileSnapshot{
		ID:         v.ID,
		OwnerID:    v.Owner.String(),
		WeaponType: uint8(v.Weapon),
		X:          float32(v.X),
		Y:          float32(v.Y),
		VX:         float32(v.VX),
		VY:         float32(v.VY),
	}
}

// ToPickupSnapshot renders one pickup entity as its wire snapshot.
func ToPickupSnapshot(v PickupUpdate) protocol.PickupSnapshot {
	return protocol.PickupSnapshot{
		ID:     v.ID,
		X:      float32(v.Position.X),
		Y:      float32(v.Position.Y),
		Kind:   uint8(v.Kind),
		Active: v.Active,
	}
}

// ToWallState renders one partition-owned wall as its wire snapshot.
func ToWallState(w partition.Wall) protocol.WallState {
	return protocol.WallState{
		ID:           w.ID,
		MinX:         float32(w.Box.MinX),
		MinY:         float32(w.Box.MinY),
		MaxX:         float32(w.Box.MaxX),
		MaxY:         float32(w.Box.MaxY),
		Destructible: w.Destructible,
		Health:       w.Health,
		MaxHealth:    w.MaxHealth,
	}
}

// ToMatchInfo renders a match.Snapshot as its wire form. Flags and team
// scores are rendered in a deterministic order so repeated calls with
// unchanged state produce byte-identical output for the change comparison
// in BuildDelta.
func ToMatchInfo(s matchlogic.Snapshot) protocol.MatchInfo {
	teams := make([]protocol.TeamScore, 0, len(s.TeamScores))
	for id, score := range s.TeamScores {
		teams = append(teams, protocol.TeamScore{TeamID: id, Score: score})
	}
	sortTeamScores(teams)

	flags := make([]protocol.FlagState, 0, len(s.Flags))
	for _, f := range s.Flags {
		flags = append(flags, protocol.FlagState{
			TeamID:              f.TeamID,
			Status:              uint8(f.Status),
			X:                   float32(f.Position.X),
			Y:                   float32(f.Position.Y),
			CarrierID:           f.Carrier.String(),
			HasCarrier:          f.HasCarrier,
			AutoReturnRemaining: float32(f.AutoReturnRemaining),
		})
	}

	return protocol.MatchInfo{
		TimeRemaining: float32(s.TimeRemaining),
		Mode:          uint8(s.Mode),
		State:         uint8(s.Phase),
		TeamScores:    teams,
		Flags:         flags,
	}
}

func sortTeamScores(teams []protocol.TeamScore) {
	for i := 1; i < len(teams); i++ {
		for j := i; j > 0 && teams[j].TeamID < teams[j-1].TeamID; j-- {
			teams[j], teams[j-1] = teams[j-1], teams[j]
		}
	}
}

// ToGameEvent renders one domain event as its wire form.
func ToGameEvent(e matchlogic.Event) protocol.GameEvent {
	return protocol.GameEvent{
		Kind:         uint8(e.Kind),
		X:            float32(e.Position.X),
		Y:            float32(e.Position.Y),
		InstigatorID: e.Instigator.String(),
		TargetID:     e.Target.String(),
		Weapon:       e.Weapon,
		Value:        e.Value,
	}
}

// ToKillFeedEntry renders one kill-feed line as its wire form.
func ToKillFeedEntry(k matchlogic.KillFeedEntry) protocol.KillFeedEntry {
	return protocol.KillFeedEntry{
		AttackerID:   k.Attacker.String(),
		VictimID:     k.Victim.String(),
		Weapon:       k.Weapon,
		FriendlyFire: k.FriendlyFire,
	}
}
