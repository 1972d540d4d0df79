package matchlogic

import (
	"math"

	"massivegame/server/internal/combat"
	"massivegame/server/internal/idpool"
	"massivegame/server/internal/physics"
	"massivegame/server/internal/playerstore"
)

const (
	meleeQueryRadius = 70
	meleeRange       = 50
	meleeArcRadians  = 60 * math.Pi / 180
	meleeDamage      = 30
)

// MeleeHit is one queued melee swing awaiting resolution.
type MeleeHit struct {
	Attacker idpool.Handle
	Facing   float64
	Position Vec2
}

// QueryRadius finds candidate handles within r of (x,y); satisfied by
// *spatial.Grid.QueryRadiusPlayers.
type QueryRadius func(x, y, r float64) []idpool.Handle

// ResolveMelee drains queued melee hits per spec.md §4.9.3 step 4: for each
// attacker, candidates within meleeQueryRadius are filtered to meleeRange and
// a meleeArcRadians arc centered on the attacker's facing, then take
// meleeDamage. Kills apply the §4.10 scoring rules (including the
// friendly-fire penalty and TDM team score) and drop any flag the victim was
// carrying.
func ResolveMelee(hits []MeleeHit, cfg Config, state *State, byHandle map[idpool.Handle]*playerstore.Player, query QueryRadius) []Event {
	flagsByTeam := make(map[uint8]*Flag)
	for _, f := range state.Flags() {
		flagsByTeam[f.TeamID] = f
	}

	var events []Event
	for _, hit := range hits {
		attacker, ok := byHandle[hit.Attacker]
		if !ok || !attacker.Alive {
			continue
		}
		for _, h := range query(hit.Position.X, hit.Position.Y, meleeQueryRadius) {
			if h.Equal(hit.Attacker) {
				continue
			}
			target, ok := byHandle[h]
			if !ok || !target.Alive {
				continue
			}
			targetPos := physics.Vec2{X: target.X, Y: target.Y}
			if hit.Position.Distance(targetPos) > meleeRange {
				continue
			}
			heading := hit.Position.HeadingTo(targetPos)
			diff := physics.WrapAngle(heading - hit.Facing)
			if math.Abs(diff) > meleeArcRadians/2 {
				continue
			}

			newShield, newHealth, lethal := combat.AbsorbDamage(target.Shield, target.Health, meleeDamage)
			target.Shield, target.Health = newShield, newHealth
			target.MarkChanged(playerstore.ChangedHealthAlive | playerstore.ChangedShield)
			events = append(events, Event{
				Kind:       EventPlayerDamaged,
				Position:   targetPos,
				Instigator: hit.Attacker,
				Target:     h,
				Weapon:     uint8(combat.WeaponMelee),
				Value:      meleeDamage,
			})
			if !lethal {
				continue
			}

			target.Alive = false
			target.Deaths++
			selfKill := hit.Attacker.Equal(h)
			friendlyFire := !selfKill && attacker.TeamID != 0 && attacker.TeamID == target.TeamID
			attacker.Score += combat.ScoreDelta(attacker.TeamID, target.TeamID, selfKill)
			if !selfKill && !friendlyFire {
				attacker.Kills++
			}
			if combat.TeamScoreAwarded(attacker.TeamID, target.TeamID) {
				state.AddTeamScore(attacker.TeamID, 1)
			}
			attacker.MarkChanged(playerstore.ChangedScoreStats)
			target.MarkChanged(playerstore.ChangedScoreStats | playerstore.ChangedHealthAlive)
			state.PushKillFeed(KillFeedEntry{Attacker: hit.Attacker, Victim: h, Weapon: uint8(combat.WeaponMelee), FriendlyFire: friendlyFire})
			events = append(events, Event{Kind: EventPlayerKilled, Position: targetPos, Instigator: hit.Attacker, Target: h, Weapon: uint8(combat.WeaponMelee)})

			if target.CarriedFlagTeamID != 0 {
				if f := flagsByTeam[target.CarriedFlagTeamID]; f != nil {
					f.Drop(targetPos, cfg.FlagAutoReturnSeconds)
				}
				target.CarriedFlagTeamID = 0
				target.MarkChanged(playerstore.ChangedFlag)
			}
		}
	}
	return events
}
