package broadcaster

import (
	"sort"

	"massivegame/server/internal/idpool"
	"massivegame/server/internal/matchlogic"
	"massivegame/server/internal/partition"
	"massivegame/server/internal/protocol"
)

// DeltaInput bundles everything BuildDelta needs for one client's tick,
// built by the caller from the current tick's authoritative and AoI-
// filtered views.
type DeltaInput struct {
	Now uint64

	// Self is always included in full, regardless of AoI.
	Self PlayerUpdate

	// Visible is every other player currently in this client's AoI, each
	// carrying this tick's changed-fields mask (0 if nothing changed).
	Visible []PlayerUpdate

	// LeftMatch lists players who disconnected entirely this tick; they are
	// reported in RemovedPlayerIDs regardless of visibility.
	LeftMatch []idpool.Handle

	Projectiles []ProjectileView
	Pickups     []PickupUpdate

	// Events is the full per-tick event stream; BuildDelta filters it down
	// to what's relevant to this client before applying the count cap.
	Events     []matchlogic.Event
	RelevantTo func(matchlogic.Event) bool
	KillFeed   []matchlogic.KillFeedEntry
	Match      matchlogic.Snapshot
	HasMatch   bool

	DestroyedWallsThisTick []uint64
	UpdatedWallsThisTick   []uint64
	VisibleWallIDs         []uint64
	WallByID               func(id uint64) (partition.Wall, bool)

	// ChatBacklog is every chat message not yet fully delivered to every
	// client, in ascending seq order; BuildDelta takes the slice with
	// seq > cs.LastChatSeqSent, up to cfg.MaxChatPerTick.
	ChatBacklog []protocol.Chat
}

// BuildDelta diffs in against cs, mutating cs to reflect what this call
// reports, and returns the per-tick DeltaState plus the chat messages to
// send as their own separate messages (spec.md §4.12's last bullet: chat
// rides outside the delta frame).
func BuildDelta(cs *ClientState, in DeltaInput, cfg Config) (protocol.DeltaState, []protocol.Chat) {
	out := protocol.DeltaState{
		Timestamp:                  in.Now,
		LastProcessedInputSequence: in.Self.Snap.LastProcessedInputSequence,
		Self:                       in.Self.Snap,
	}
	cs.LastKnownPlayers[in.Self.Handle] = in.Self.Snap

	diffPlayers(cs, in, &out)
	diffProjectiles(cs, in, &out)
	diffPickups(cs, in, &out)
	diffEvents(in, &out, cfg)
	diffKillFeed(cs, in, &out)
	diffMatch(cs, in, &out, cfg)
	diffWalls(cs, in, &out)

	chat := diffChat(cs, in, cfg)
	return out, chat
}

func diffPlayers(cs *ClientState, in DeltaInput, out *protocol.DeltaState) {
	stillVisible := make(map[idpool.Handle]struct{}, len(in.Visible))
	for _, v := range in.Visible {
		stillVisible[v.Handle] = struct{}{}
		_, known := cs.LastKnownPlayers[v.Handle]
		if v.Mask != 0 || !known {
			out.UpdatedPlayers = append(out.UpdatedPlayers, v.Snap)
			cs.LastKnownPlayers[v.Handle] = v.Snap
		}
	}

	left := make(map[idpool.Handle]struct{}, len(in.LeftMatch))
	for _, h := range in.LeftMatch {
		left[h] = struct{}{}
		out.RemovedPlayerIDs = append(out.RemovedPlayerIDs, h.String())
		delete(cs.LastKnownPlayers, h)
	}

	for h := range cs.LastKnownPlayers {
		if h.Equal(in.Self.Handle) {
			continue
		}
		if _, ok := stillVisible[h]; ok {
			continue
		}
		if _, alreadyReported := left[h]; alreadyReported {
			continue
		}
		out.RemovedPlayerIDs = append(out.RemovedPlayerIDs, h.String())
		delete(cs.LastKnownPlayers, h)
	}
}

func diffProjectiles(cs *ClientState, in DeltaInput, out *protocol.DeltaState) {
	current := make(map[uint64]struct{}, len(in.Projectiles))
	for _, p := range in.Projectiles {
		current[p.ID] = struct{}{}
		if _, known := cs.LastKnownProjectileIDs[p.ID]; !known {
			out.AddedProjectiles = append(out.AddedProjectiles, ToProjectileSnapshot(p))
			cs.LastKnownProjectileIDs[p.ID] = struct{}{}
		}
	}
	for id := range cs.LastKnownProjectileIDs {
		if _, ok := current[id]; !ok {
			out.RemovedProjectileIDs = append(out.RemovedProjectileIDs, id)
			delete(cs.LastKnownProjectileIDs, id)
		}
	}
}

func diffPickups(cs *ClientState, in DeltaInput, out *protocol.DeltaState) {
	visible := make(map[uint64]struct{}, len(in.Pickups))
	for _, p := range in.Pickups {
		visible[p.ID] = struct{}{}
		last, known := cs.LastKnownPickupActive[p.ID]
		if !known || last != p.Active {
			out.UpdatedPickups = append(out.UpdatedPickups, ToPickupSnapshot(p))
			cs.LastKnownPickupActive[p.ID] = p.Active
		}
	}
	for id, wasActive := range cs.LastKnownPickupActive {
		if _, stillVisible := visible[id]; stillVisible {
			continue
		}
		if wasActive {
			out.DeactivatedPickupIDs = append(out.DeactivatedPickupIDs, id)
		}
		delete(cs.LastKnownPickupActive, id)
	}
}

func diffEvents(in DeltaInput, out *protocol.DeltaState, cfg Config) {
	limit := cfg.MaxEventsPerDelta
	for _, e := range in.Events {
		if in.RelevantTo != nil && !in.RelevantTo(e) {
			continue
		}
		if limit > 0 && len(out.Events) >= limit {
			break
		}
		out.Events = append(out.Events, ToGameEvent(e))
	}
}

func diffKillFeed(cs *ClientState, in DeltaInput, out *protocol.DeltaState) {
	if len(in.KillFeed) <= cs.LastKillFeedCount {
		return
	}
	for _, k := range in.KillFeed[cs.LastKillFeedCount:] {
		out.KillFeed = append(out.KillFeed, ToKillFeedEntry(k))
	}
	cs.LastKillFeedCount = len(in.KillFeed)
}

func diffMatch(cs *ClientState, in DeltaInput, out *protocol.DeltaState, cfg Config) {
	if !in.HasMatch {
		return
	}
	info := ToMatchInfo(in.Match)
	if matchInfoChanged(cs.LastKnownMatch, cs.HasLastKnownMatch, info, cfg) {
		out.HasMatch = true
		out.Match = info
		cs.LastKnownMatch = info
		cs.HasLastKnownMatch = true
	}
}

func matchInfoChanged(last protocol.MatchInfo, hasLast bool, cur protocol.MatchInfo, cfg Config) bool {
	if !hasLast {
		return true
	}
	if last.State != cur.State {
		return true
	}
	eps := float32(cfg.MatchInfoTimeEpsilonSeconds)
	diff := cur.TimeRemaining - last.TimeRemaining
	if diff < 0 {
		diff = -diff
	}
	if diff >= eps {
		return true
	}
	return !teamScoresEqual(last.TeamScores, cur.TeamScores)
}

func teamScoresEqual(a, b []protocol.TeamScore) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func diffWalls(cs *ClientState, in DeltaInput, out *protocol.DeltaState) {
	for _, id := range in.DestroyedWallsThisTick {
		if _, already := cs.KnownDestroyedWallIDs[id]; already {
			continue
		}
		out.DestroyedWallIDs = append(out.DestroyedWallIDs, id)
		cs.KnownDestroyedWallIDs[id] = struct{}{}
	}

	updatedThisTick := make(map[uint64]struct{}, len(in.UpdatedWallsThisTick))
	for _, id := range in.UpdatedWallsThisTick {
		updatedThisTick[id] = struct{}{}
	}

	seen := make(map[uint64]struct{})
	for _, id := range in.VisibleWallIDs {
		_, touchedThisTick := updatedThisTick[id]
		last, knownHP := cs.LastKnownWalls[id]

		w, ok := in.WallByID(id)
		if !ok {
			continue
		}
		hpChanged := !knownHP || last.Health != w.Health || last.MaxHealth != w.MaxHealth

		if !touchedThisTick && !hpChanged {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		out.UpdatedWalls = append(out.UpdatedWalls, ToWallState(w))
		cs.LastKnownWalls[id] = WallHP{Health: w.Health, MaxHealth: w.MaxHealth}
		if touchedThisTick {
			delete(cs.KnownDestroyedWallIDs, id)
		}
	}

	sort.Slice(out.UpdatedWalls, func(i, j int) bool { return out.UpdatedWalls[i].ID < out.UpdatedWalls[j].ID })
}

func diffChat(cs *ClientState, in DeltaInput, cfg Config) []protocol.Chat {
	var out []protocol.Chat
	limit := cfg.MaxChatPerTick
	for _, c := range in.ChatBacklog {
		if c.Seq <= cs.LastChatSeqSent {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, c)
		cs.LastChatSeqSent = c.Seq
	}
	return out
}
