package main

import (
	"context"
	"sync"
	"time"

	"massivegame/server/internal/broadcaster"
	"massivegame/server/internal/idpool"
	"massivegame/server/internal/input"
	"massivegame/server/internal/logging"
	"massivegame/server/internal/matchlogic"
	"massivegame/server/internal/partition"
	"massivegame/server/internal/physics"
	"massivegame/server/internal/playerstore"
	"massivegame/server/internal/protocol"
	"massivegame/server/internal/respawn"
	"massivegame/server/internal/simcore"
	"massivegame/server/internal/transport"
)

// chatBacklogLimit bounds how many chat messages sessionHandler retains for
// late joiners' delta diffing; older entries have long since been delivered
// to every connected client.
const chatBacklogLimit = 200

// sessionHandler bridges transport.Server's connection lifecycle to the
// simulation: it turns a new WebSocket connection into a playerstore.Player,
// feeds validated ClientInput onto that player's input queue, and drives the
// per-tick broadcast fan-out the scheduler's Broadcast stage calls.
type sessionHandler struct {
	world      *simcore.World
	worldCfg   simcore.Config
	log        *logging.Logger
	gate       *input.Gate
	validator  *input.Validator
	tickRateHz uint16
	homeBases  map[uint8]matchlogic.Vec2

	mu      sync.Mutex
	senders map[idpool.Handle]transport.Sender
	left    []idpool.Handle

	chatMu      sync.Mutex
	chatSeq     uint64
	chatBacklog []protocol.Chat

	nextTeam uint32
}

func newSessionHandler(world *simcore.World, worldCfg simcore.Config, log *logging.Logger, gate *input.Gate, validator *input.Validator, tickRateHz int, homeBases map[uint8]matchlogic.Vec2) *sessionHandler {
	return &sessionHandler{
		world:      world,
		worldCfg:   worldCfg,
		log:        log,
		gate:       gate,
		validator:  validator,
		tickRateHz: uint16(tickRateHz),
		homeBases:  homeBases,
		senders:    make(map[idpool.Handle]transport.Sender),
	}
}

// OnOpen admits a newly connected human player into the match: assigns it to
// the less-populated team, places it at a spawn point chosen by
// respawn.Manager.ChooseSpawn (any non-base point or its own team's base),
// and sends the Welcome handshake. The full InitialState snapshot
// follows on the next broadcast tick, once the player is visible to itself.
func (h *sessionHandler) OnOpen(peerID string, sender transport.Sender) {
	handle := h.world.Pool.GetOrCreate(peerID)
	team := h.assignTeam()

	var enemyPositions []physics.Vec2
	h.world.Players.ForEach(func(p *playerstore.Player) {
		if p.Alive && p.TeamID != team {
			enemyPositions = append(enemyPositions, physics.Vec2{X: p.X, Y: p.Y})
		}
	})
	probe := func(p respawn.Vec2, radius float64) bool { return wallProbe(h.world, p, radius) }
	spawn := h.world.Respawns.ChooseSpawn(team, h.world.Now(), nil, enemyPositions, probe)

	player := newSpawnedPlayer(handle, spawn, team, true)
	h.world.AddHumanPlayer(player)
	h.world.Broadcast.Open(handle)

	h.mu.Lock()
	h.senders[handle] = sender
	h.mu.Unlock()

	welcome := protocol.Welcome{
		PlayerID:       handle.String(),
		Message:        "welcome to the match",
		ServerTickRate: h.tickRateHz,
	}
	_ = sender.Send(protocol.EncodeEnvelope(protocol.MsgTypeWelcome, protocol.EncodeWelcome(welcome)))

	h.log.Info("player joined", logging.String("player_id", handle.String()), logging.Int("team", int(team)))
}

// assignTeam puts a new player on whichever home-base team currently has the
// fewest players in the store (bots included), so team sizes stay within one
// of each other regardless of join order.
func (h *sessionHandler) assignTeam() uint8 {
	teams := make([]uint8, 0, len(h.homeBases))
	for team := range h.homeBases {
		teams = append(teams, team)
	}
	if len(teams) == 0 {
		return 0
	}
	if len(teams) == 1 {
		return teams[0]
	}
	counts := make(map[uint8]int, len(teams))
	h.world.Players.ForEach(func(p *playerstore.Player) { counts[p.TeamID]++ })
	best := teams[0]
	for _, t := range teams[1:] {
		if counts[t] < counts[best] {
			best = t
		}
	}
	return best
}

// OnMessage decodes one inbound frame and, for client input, runs it through
// the freshness gate and the plausibility validator before queuing it for
// the next ApplyInputs stage.
func (h *sessionHandler) OnMessage(peerID string, payload []byte) {
	handle, ok := h.world.Pool.Lookup(peerID)
	if !ok {
		return
	}

	msgType, body, err := protocol.DecodeEnvelope(payload)
	if err != nil {
		h.log.Debug("dropped malformed envelope", logging.String("player_id", peerID), logging.Error(err))
		return
	}

	switch msgType {
	case protocol.MsgTypeClientInput:
		h.handleClientInput(peerID, handle, body)
	case protocol.MsgTypeChat:
		h.handleChat(handle, body)
	default:
		h.log.Debug("dropped unexpected message type", logging.String("player_id", peerID), logging.String("type", msgType.String()))
	}
}

func (h *sessionHandler) handleClientInput(peerID string, handle idpool.Handle, body []byte) {
	in, err := protocol.DecodeClientInput(body)
	if err != nil {
		h.log.Debug("dropped malformed client input", logging.String("player_id", peerID), logging.Error(err))
		return
	}

	frame := input.Frame{
		ClientID:   peerID,
		SequenceID: uint64(in.Sequence),
		SentAt:     time.UnixMilli(int64(in.Timestamp)),
	}
	if decision := h.gate.Evaluate(frame); !decision.Accepted {
		return
	}

	controls := input.Controls{
		Rotation: float64(in.Rotation),
		Weapon:   int32(in.ChangeWeaponSlot),
		Ability:  int32(in.UseAbilitySlot),
	}
	decision := h.validator.Validate(peerID, handle.String(), controls)
	if !decision.Accepted {
		return
	}
	h.validator.Commit(peerID, handle.String(), controls)

	h.world.Players.GetMut(handle, func(p *playerstore.Player) {
		p.InputQueue = append(p.InputQueue, in)
	})
}

func (h *sessionHandler) handleChat(handle idpool.Handle, body []byte) {
	chat, err := protocol.DecodeChat(body)
	if err != nil {
		return
	}
	if len(chat.Message) > protocol.ChatMaxLen {
		chat.Message = chat.Message[:protocol.ChatMaxLen]
	}
	chat.PlayerID = handle.String()

	h.chatMu.Lock()
	h.chatSeq++
	chat.Seq = h.chatSeq
	h.chatBacklog = append(h.chatBacklog, chat)
	if len(h.chatBacklog) > chatBacklogLimit {
		h.chatBacklog = h.chatBacklog[len(h.chatBacklog)-chatBacklogLimit:]
	}
	h.chatMu.Unlock()
}

// OnClose retires a disconnected player from both the simulation and the
// broadcast registry, and records it so the next tick reports its removal
// to clients who still had it in their AoI.
func (h *sessionHandler) OnClose(peerID string) {
	handle, ok := h.world.Pool.Remove(peerID)
	if !ok {
		return
	}
	h.world.RemovePlayer(handle)
	h.world.Broadcast.Close(handle)
	h.world.Metrics.ForgetClient(handle.String())
	h.gate.Forget(peerID)
	h.validator.Forget(peerID)

	h.mu.Lock()
	delete(h.senders, handle)
	h.left = append(h.left, handle)
	h.mu.Unlock()

	h.log.Info("player left", logging.String("player_id", handle.String()))
}

// broadcastTick implements the scheduler's Broadcast stage: it builds one
// DeltaInput per connected client from this tick's authoritative state and
// that client's AoI set, sends the resulting DeltaState (and InitialState
// for first-time clients), and folds in any chat messages.
func (h *sessionHandler) broadcastTick(ctx context.Context, events []matchlogic.Event) {
	h.mu.Lock()
	left := h.left
	h.left = nil
	senders := make(map[idpool.Handle]transport.Sender, len(h.senders))
	for handle, s := range h.senders {
		senders[handle] = s
	}
	h.mu.Unlock()

	matchSnapshot := h.world.Match.Snapshot()
	projectiles := h.world.Projectiles()
	projectileByID := make(map[uint64]broadcaster.ProjectileView, len(projectiles))
	for _, proj := range projectiles {
		projectileByID[proj.ID] = broadcaster.ProjectileView{
			ID: proj.ID, Owner: proj.Owner, Weapon: proj.Weapon,
			X: proj.Pos.X, Y: proj.Pos.Y, VX: proj.Vel.X, VY: proj.Vel.Y,
		}
	}
	pickups := h.world.Pickups()
	pickupByID := make(map[uint64]broadcaster.PickupUpdate, len(pickups))
	for _, pk := range pickups {
		pickupByID[pk.ID] = broadcaster.PickupUpdate{ID: pk.ID, Position: pk.Position, Kind: pk.Kind, Active: pk.Active}
	}
	destroyedWalls, updatedWalls := h.world.DirtyWalls()

	h.chatMu.Lock()
	chatSnapshot := append([]protocol.Chat(nil), h.chatBacklog...)
	h.chatMu.Unlock()

	now := uint64(h.world.Now() * 1000)
	aoiRadiusSq := h.worldCfg.Sim.AoIRadius * h.worldCfg.Sim.AoIRadius

	tick := h.world.TickCount()
	_ = tick

	for handle, sender := range senders {
		select {
		case <-ctx.Done():
			return
		default:
		}

		self, ok := h.world.Players.Get(handle)
		if !ok {
			continue
		}
		cs, ok := h.world.Broadcast.Get(handle)
		if !ok {
			continue
		}

		selfSnap := broadcaster.ToPlayerSnapshot(handle, self, h.world.TickChangedMask(handle))
		selfPos := physics.Vec2{X: self.X, Y: self.Y}

		set, _ := h.world.AoI.Get(handle)

		visible := make([]broadcaster.PlayerUpdate, 0, len(set.Players))
		for _, ph := range set.Players {
			other, ok := h.world.Players.Get(ph)
			if !ok {
				continue
			}
			visible = append(visible, broadcaster.PlayerUpdate{
				Handle: ph,
				Mask:   h.world.TickChangedMask(ph),
				Snap:   broadcaster.ToPlayerSnapshot(ph, other, h.world.TickChangedMask(ph)),
			})
		}

		visibleProjectiles := make([]broadcaster.ProjectileView, 0, len(set.Projectiles))
		for _, id := range set.Projectiles {
			if view, ok := projectileByID[id]; ok {
				visibleProjectiles = append(visibleProjectiles, view)
			}
		}

		visiblePickups := make([]broadcaster.PickupUpdate, 0, len(set.Pickups))
		for _, id := range set.Pickups {
			if view, ok := pickupByID[id]; ok {
				visiblePickups = append(visiblePickups, view)
			}
		}

		relevantTo := func(e matchlogic.Event) bool {
			if e.Instigator.Equal(handle) || e.Target.Equal(handle) {
				return true
			}
			return e.Position.DistanceSquared(selfPos) <= aoiRadiusSq
		}

		in := broadcaster.DeltaInput{
			Now:         now,
			Self:        broadcaster.PlayerUpdate{Handle: handle, Mask: h.world.TickChangedMask(handle), Snap: selfSnap},
			Visible:     visible,
			LeftMatch:   left,
			Projectiles: visibleProjectiles,
			Pickups:     visiblePickups,
			Events:      events,
			RelevantTo:  relevantTo,
			KillFeed:    matchSnapshot.KillFeed,
			Match:       matchSnapshot,
			HasMatch:    true,

			DestroyedWallsThisTick: destroyedWalls,
			UpdatedWallsThisTick:   updatedWalls,
			VisibleWallIDs:         set.Walls,
			WallByID:               h.wallByID,

			ChatBacklog: chatSnapshot,
		}

		if !cs.SentInitial {
			h.sendInitialState(handle, sender, self, visible, in)
		}

		delta, chats := broadcaster.BuildDelta(cs, in, h.worldCfg.Broadcast)
		payload := protocol.EncodeEnvelope(protocol.MsgTypeDeltaState, protocol.EncodeDeltaState(delta))
		if err := sender.Send(payload); err != nil {
			continue
		}
		h.world.Metrics.Observe(handle.String(), len(payload))

		for _, chat := range chats {
			_ = sender.Send(protocol.EncodeEnvelope(protocol.MsgTypeChat, protocol.EncodeChat(chat)))
		}
	}
}

// wallByID adapts partition.Manager's pointer-returning lookup to the value
// signature broadcaster.DeltaInput.WallByID expects.
func (h *sessionHandler) wallByID(id uint64) (partition.Wall, bool) {
	w, ok := h.world.Partitions.Wall(id)
	if !ok {
		return partition.Wall{}, false
	}
	return *w, true
}

func (h *sessionHandler) sendInitialState(handle idpool.Handle, sender transport.Sender, self *playerstore.Player, visible []broadcaster.PlayerUpdate, in broadcaster.DeltaInput) {
	visiblePlayers := make([]protocol.PlayerSnapshot, 0, len(visible))
	for _, v := range visible {
		visiblePlayers = append(visiblePlayers, v.Snap)
	}

	active := h.world.Partitions.ActiveWalls()
	walls := make([]protocol.WallState, 0, len(active))
	for _, w := range active {
		walls = append(walls, broadcaster.ToWallState(*w))
	}

	projectiles := make([]protocol.ProjectileSnapshot, 0, len(in.Projectiles))
	for _, v := range in.Projectiles {
		projectiles = append(projectiles, broadcaster.ToProjectileSnapshot(v))
	}

	pickups := make([]protocol.PickupSnapshot, 0, len(in.Pickups))
	for _, v := range in.Pickups {
		pickups = append(pickups, broadcaster.ToPickupSnapshot(v))
	}

	state := broadcaster.BuildInitialState(
		in.Self.Snap,
		visiblePlayers,
		walls,
		projectiles,
		pickups,
		in.Match,
		"arena-01",
		in.Now,
		h.worldCfg.Broadcast,
		h.log,
		h.world.Metrics,
	)

	payload := protocol.EncodeEnvelope(protocol.MsgTypeInitialState, protocol.EncodeInitialState(state))
	if err := sender.Send(payload); err != nil {
		return
	}
	if cs, ok := h.world.Broadcast.Get(handle); ok {
		cs.SentInitial = true
	}
}
