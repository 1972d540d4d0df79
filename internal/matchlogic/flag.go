package matchlogic

import (
	"massivegame/server/internal/idpool"
	"massivegame/server/internal/playerstore"
)

// FlagStatus is a CTF flag's current disposition.
type FlagStatus uint8

const (
	FlagAtBase FlagStatus = iota + 1
	FlagCarried
	FlagDropped
)

// Flag is one team's CTF flag.
type Flag struct {
	TeamID              uint8
	Status              FlagStatus
	Home                Vec2
	Position            Vec2
	Carrier             idpool.Handle
	HasCarrier          bool
	AutoReturnRemaining float64
}

// Drop drops f at pos, starting its auto-return timer. Used by melee/combat
// resolution when a flag carrier is killed (own-team returns inside
// TickFlags are instant, not a drop).
func (f *Flag) Drop(pos Vec2, autoReturnSeconds float64) {
	f.Status = FlagDropped
	f.Position = pos
	f.HasCarrier = false
	f.Carrier = idpool.Handle{}
	f.AutoReturnRemaining = autoReturnSeconds
}

// TickFlags runs the CTF per-tick rules in spec.md §4.9.3 step 3: auto-return
// expiry, grabbing, own-team returns, and capture. Only called for
// Active-phase CTF matches. byHandle must contain every handle referenced by
// flags' Carrier field and every player in players.
func TickFlags(dt float64, cfg Config, state *State, players []*playerstore.Player, byHandle map[idpool.Handle]*playerstore.Player) []Event {
	flags := state.Flags()
	var events []Event

	//1.- Decrement auto-return timers on dropped flags; expiry returns to base.
	for _, f := range flags {
		if f.Status != FlagDropped {
			continue
		}
		f.AutoReturnRemaining -= dt
		if f.AutoReturnRemaining <= 0 {
			f.Status = FlagAtBase
			f.Position = f.Home
			events = append(events, Event{Kind: EventFlagReturned, Position: f.Home, Value: int32(f.TeamID)})
		}
	}

	//2.- Keep carried flags glued to their carrier's current position.
	for _, f := range flags {
		if f.Status != FlagCarried {
			continue
		}
		if carrier, ok := byHandle[f.Carrier]; ok {
			f.Position = Vec2{X: carrier.X, Y: carrier.Y}
		}
	}

	flagByTeam := make(map[uint8]*Flag, len(flags))
	for _, f := range flags {
		flagByTeam[f.TeamID] = f
	}

	//3.- Grabs and own-team returns: each alive non-carrier near a flag.
	for _, p := range players {
		if !p.Alive || p.CarriedFlagTeamID != 0 {
			continue
		}
		for _, f := range flags {
			pos := Vec2{X: p.X, Y: p.Y}
			if pos.Distance(f.Position) > cfg.PickupCollectionRadius {
				continue
			}
			if f.TeamID == p.TeamID {
				if f.Status == FlagDropped {
					f.Status = FlagAtBase
					f.Position = f.Home
					events = append(events, Event{Kind: EventFlagReturned, Position: f.Home, Value: int32(f.TeamID)})
				}
				continue
			}
			if f.Status == FlagAtBase {
				f.Status = FlagCarried
				f.HasCarrier = true
				f.Carrier = p.Handle
				p.CarriedFlagTeamID = f.TeamID
				p.MarkChanged(playerstore.ChangedFlag)
				events = append(events, Event{Kind: EventFlagGrabbed, Position: pos, Instigator: p.Handle, Value: int32(f.TeamID)})
			}
		}
	}

	//4.- Capture: a carrier of the enemy flag standing at their own base.
	for _, p := range players {
		if !p.Alive || p.CarriedFlagTeamID == 0 {
			continue
		}
		own := flagByTeam[p.TeamID]
		if own == nil || own.Status != FlagAtBase {
			continue
		}
		pos := Vec2{X: p.X, Y: p.Y}
		if pos.Distance(own.Home) > cfg.PickupCollectionRadius {
			continue
		}
		carried := flagByTeam[p.CarriedFlagTeamID]
		if carried == nil {
			continue
		}
		carried.Status = FlagAtBase
		carried.Position = carried.Home
		carried.HasCarrier = false
		carried.Carrier = idpool.Handle{}
		p.CarriedFlagTeamID = 0
		p.Score += 100
		p.MarkChanged(playerstore.ChangedFlag | playerstore.ChangedScoreStats)
		state.AddTeamScore(p.TeamID, 1)
		events = append(events, Event{Kind: EventFlagCaptured, Position: own.Home, Instigator: p.Handle, Value: int32(p.TeamID)})
		if state.ScoreToWinReached(p.TeamID) {
			events = append(events, state.EndMatch(p.TeamID))
		}
	}

	return events
}
