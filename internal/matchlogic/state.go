package matchlogic

import (
	"sync"

	"massivegame/server/internal/idpool"
)

// Mode selects the active game mode's rule set.
type Mode uint8

const (
	ModeTDM Mode = iota + 1
	ModeCTF
)

// Phase is the match lifecycle phase.
type Phase uint8

const (
	PhaseWaiting Phase = iota + 1
	PhaseActive
	PhaseEnded
)

// Config bundles the tunables State and the pickup/flag/melee functions need
// from internal/config.
type Config struct {
	MinPlayersToStart int
	RoundSeconds      float64
	GraceSeconds      float64

	PickupCollectionRadius    float64
	PickupRespawnShortSeconds float64
	PickupRespawnMidSeconds   float64
	PickupRespawnLongSeconds  float64
	HealthPickupAmount        int32
	ShieldGrantAmount         int32
	PowerupSeconds            float64

	FlagAutoReturnSeconds float64
	ScoreToWin            int32

	// PreserveScoresBetweenRounds keeps team_scores across an Ended->Waiting
	// transition instead of zeroing them. The source this was distilled from
	// was inconsistent between comments and code; current behavior preserves
	// scores, so that's what this defaults to.
	PreserveScoresBetweenRounds bool
}

// Winner describes the outcome of a concluded match.
type Winner struct {
	TeamID uint8
	Draw   bool
	None   bool
}

// Snapshot is a stable, read-only view of the match state for the broadcast
// stage to consume without holding State's lock.
type Snapshot struct {
	Mode          Mode
	Phase         Phase
	TimeRemaining float64
	TeamScores    map[uint8]int32
	Flags         []Flag
	KillFeed      []KillFeedEntry
	Winner        Winner
}

// State is the authoritative TDM/CTF match state. The game-logic stage
// mutates it once per tick while the broadcast stage reads a Snapshot
// concurrently, so access is guarded by a RWMutex the same way the session
// state it's adapted from was.
type State struct {
	mu sync.RWMutex

	mode  Mode
	phase Phase
	cfg   Config

	timeRemaining float64
	graceElapsed  float64

	teamScores map[uint8]int32
	flags      []*Flag

	killFeed []KillFeedEntry
	winner   Winner
}

// New constructs a match in PhaseWaiting. homeBases supplies, for CTF, the
// home position of each team's flag; it's ignored for TDM.
func New(mode Mode, cfg Config, homeBases map[uint8]Vec2) *State {
	s := &State{
		mode:          mode,
		phase:         PhaseWaiting,
		cfg:           cfg,
		timeRemaining: cfg.RoundSeconds,
		teamScores:    make(map[uint8]int32),
	}
	if mode == ModeCTF {
		for team, home := range homeBases {
			s.flags = append(s.flags, &Flag{TeamID: team, Status: FlagAtBase, Home: home, Position: home})
		}
	}
	return s
}

// Snapshot returns a defensive copy of the current state for concurrent readers.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scores := make(map[uint8]int32, len(s.teamScores))
	for k, v := range s.teamScores {
		scores[k] = v
	}
	flags := make([]Flag, len(s.flags))
	for i, f := range s.flags {
		flags[i] = *f
	}
	feed := make([]KillFeedEntry, len(s.killFeed))
	copy(feed, s.killFeed)
	return Snapshot{
		Mode:          s.mode,
		Phase:         s.phase,
		TimeRemaining: s.timeRemaining,
		TeamScores:    scores,
		Flags:         flags,
		KillFeed:      feed,
		Winner:        s.winner,
	}
}

// AddTeamScore adds delta to team's score, creating the entry if absent.
func (s *State) AddTeamScore(team uint8, delta int32) {
	s.mu.Lock()
	s.teamScores[team] += delta
	s.mu.Unlock()
}

// PushKillFeed appends entry to the kill feed, trimming to the most recent
// killFeedCap entries.
const killFeedCap = 20

func (s *State) PushKillFeed(entry KillFeedEntry) {
	s.mu.Lock()
	s.killFeed = append(s.killFeed, entry)
	if len(s.killFeed) > killFeedCap {
		s.killFeed = s.killFeed[len(s.killFeed)-killFeedCap:]
	}
	s.mu.Unlock()
}

// Flags returns the live flag pointers for in-place mutation by TickFlags.
// Callers must only invoke this from the single-threaded game-logic stage.
func (s *State) Flags() []*Flag {
	return s.flags
}

// AdvanceLifecycle runs the Waiting/Active/Ended state machine in spec.md
// §4.9.3 step 1. resetPlayers reports whether the caller must zero
// per-player score/kills/deaths this tick (on Waiting->Active entry).
func (s *State) AdvanceLifecycle(dt float64, aliveCount int) (events []Event, resetPlayers bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseWaiting:
		if aliveCount >= s.cfg.MinPlayersToStart {
			s.phase = PhaseActive
			s.timeRemaining = s.cfg.RoundSeconds
			s.killFeed = nil
			s.winner = Winner{}
			s.resetFlagsLocked()
			resetPlayers = true
			events = append(events, Event{Kind: EventMatchStateChanged, Value: int32(PhaseActive)})
		}
	case PhaseActive:
		s.timeRemaining -= dt
		if s.timeRemaining <= 0 {
			s.timeRemaining = 0
			s.phase = PhaseEnded
			s.graceElapsed = 0
			s.winner = s.decideWinnerLocked()
			events = append(events, Event{Kind: EventMatchStateChanged, Value: int32(PhaseEnded)})
		}
	case PhaseEnded:
		s.graceElapsed += dt
		if s.graceElapsed >= s.cfg.GraceSeconds {
			s.phase = PhaseWaiting
			s.timeRemaining = s.cfg.RoundSeconds
			if !s.cfg.PreserveScoresBetweenRounds {
				s.teamScores = make(map[uint8]int32)
			}
			s.resetFlagsLocked()
			events = append(events, Event{Kind: EventMatchStateChanged, Value: int32(PhaseWaiting)})
		}
	}
	return events, resetPlayers
}

// EndMatch concludes the match immediately with team as the winner, used by
// the CTF score-to-win condition rather than the Active-phase timeout.
func (s *State) EndMatch(team uint8) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseEnded
	s.graceElapsed = 0
	s.winner = Winner{TeamID: team}
	return Event{Kind: EventMatchStateChanged, Value: int32(PhaseEnded)}
}

// ScoreToWinReached reports whether team's current score meets the
// configured win threshold.
func (s *State) ScoreToWinReached(team uint8) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.teamScores[team] >= s.cfg.ScoreToWin
}

func (s *State) decideWinnerLocked() Winner {
	var bestTeam uint8
	var best int32
	tie := false
	seen := false
	for team, score := range s.teamScores {
		if team == 0 {
			continue
		}
		if !seen || score > best {
			bestTeam, best, tie, seen = team, score, false, true
			continue
		}
		if score == best {
			tie = true
		}
	}
	if !seen || best == 0 {
		return Winner{None: true}
	}
	if tie {
		return Winner{Draw: true}
	}
	return Winner{TeamID: bestTeam}
}

func (s *State) resetFlagsLocked() {
	for _, f := range s.flags {
		f.Status = FlagAtBase
		f.Position = f.Home
		f.HasCarrier = false
		f.Carrier = idpool.Handle{}
		f.AutoReturnRemaining = 0
	}
}

// Phase reports the current lifecycle phase.
func (s *State) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Mode reports the configured game mode.
func (s *State) Mode() Mode {
	return s.mode
}
