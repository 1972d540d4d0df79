package simulation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"massivegame/server/internal/config"
	"massivegame/server/internal/logging"
	"massivegame/server/internal/matchlogic"
)

// Stages bundles the per-substage callbacks the scheduler drives every
// tick, in the order spec.md §4.13 names them. ApplyInputs and BotAI run
// concurrently with each other; every other stage runs sequentially on the
// driver goroutine once both have finished.
type Stages struct {
	ApplyInputs func(dt time.Duration)
	BotAI       func(dt time.Duration)
	Physics     func(dt time.Duration)
	GameLogic   func(dt time.Duration) []matchlogic.Event
	StateSync   func(dt time.Duration)
	Broadcast   func(ctx context.Context, events []matchlogic.Event)
	Cleanup     func()
}

// stage identifies one budgeted phase for overrun accounting.
type stage int

const (
	stageInput stage = iota
	stageBotAI
	stagePhysics
	stageBroadcast
	stageTotal
	stageCount
)

func (s stage) String() string {
	switch s {
	case stageInput:
		return "input"
	case stageBotAI:
		return "bot_ai"
	case stagePhysics:
		return "physics_gamelogic"
	case stageBroadcast:
		return "broadcast"
	case stageTotal:
		return "tick"
	default:
		return "unknown"
	}
}

// Scheduler drives Stages at a fixed tick rate over Loop's fixed-timestep
// accumulator, enforcing the cooperative stage budgets and overrun
// telemetry of spec.md §4.13: budgets are deadlines compared after the fact
// at stage boundaries, never preemption, and an overrun never aborts the
// tick — partial work from an overrun stage is kept and the next tick
// proceeds normally.
type Scheduler struct {
	stages Stages
	log    *logging.Logger
	loop   *Loop
	tick   *TickMonitor

	netIOTimeout  time.Duration
	aiTimeout     time.Duration
	slowTickWarn  time.Duration
	fanOutTimeout time.Duration
	tickBudget    time.Duration
	overrunStride uint64

	overrunCounts [stageCount]uint64
}

// NewScheduler builds a Scheduler bound to stages, reading its tick rate
// and timing budgets from cfg.
func NewScheduler(cfg config.SimulationConfig, log *logging.Logger, stages Stages) *Scheduler {
	s := &Scheduler{
		stages:        stages,
		log:           log,
		tick:          NewTickMonitor(),
		netIOTimeout:  cfg.NetIOTimeout,
		aiTimeout:     cfg.AITimeout,
		slowTickWarn:  cfg.SlowTickWarn,
		fanOutTimeout: cfg.FanOutTimeout,
		tickBudget:    cfg.TickBudget,
		overrunStride: uint64(cfg.OverrunLogStride),
	}
	if s.overrunStride == 0 {
		s.overrunStride = 60
	}
	s.loop = NewLoop(float64(cfg.TickRateHz), s.runTick)
	return s
}

// Start begins driving ticks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) { s.loop.Start(ctx) }

// Stop halts the driver and waits for any in-flight tick to finish.
func (s *Scheduler) Stop() { s.loop.Stop() }

// Metrics reports aggregate whole-tick timing for dashboards/health checks.
func (s *Scheduler) Metrics() TickMetricsSnapshot { return s.tick.Snapshot() }

func (s *Scheduler) runTick(step time.Duration) {
	start := time.Now()

	s.runConcurrentInputStages(step)

	stage2Start := time.Now()
	s.guarded(stagePhysics, func() { s.stages.Physics(step) })
	events := s.gameLogicGuarded(step)
	s.checkOverrun(stagePhysics, time.Since(stage2Start), s.slowTickWarn)

	s.guarded(stageTotal, func() { s.stages.StateSync(step) })

	bcStart := time.Now()
	bcCtx, cancel := context.WithTimeout(context.Background(), s.fanOutTimeout)
	s.guarded(stageBroadcast, func() { s.stages.Broadcast(bcCtx, events) })
	cancel()
	s.checkOverrun(stageBroadcast, time.Since(bcStart), s.fanOutTimeout)

	s.guarded(stageTotal, func() { s.stages.Cleanup() })

	elapsed := time.Since(start)
	s.tick.Observe(elapsed)
	s.checkOverrun(stageTotal, elapsed, s.tickBudget)
}

// runConcurrentInputStages runs input application and bot AI as sibling
// goroutines per spec.md §4.13 ("Stages 1a and 1b run concurrently"),
// returning once both have completed.
func (s *Scheduler) runConcurrentInputStages(step time.Duration) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		t := time.Now()
		s.guarded(stageInput, func() { s.stages.ApplyInputs(step) })
		s.checkOverrun(stageInput, time.Since(t), s.netIOTimeout)
	}()
	go func() {
		defer wg.Done()
		t := time.Now()
		s.guarded(stageBotAI, func() { s.stages.BotAI(step) })
		s.checkOverrun(stageBotAI, time.Since(t), s.aiTimeout)
	}()
	wg.Wait()
}

func (s *Scheduler) gameLogicGuarded(step time.Duration) (events []matchlogic.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logPanic(stagePhysics, r)
		}
	}()
	if s.stages.GameLogic == nil {
		return nil
	}
	return s.stages.GameLogic(step)
}

// guarded runs fn, recovering and logging any panic so a single bad tick
// never kills the driver goroutine.
func (s *Scheduler) guarded(st stage, fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logPanic(st, r)
		}
	}()
	fn()
}

func (s *Scheduler) logPanic(st stage, r interface{}) {
	if s.log == nil {
		return
	}
	s.log.Error("simulation stage panicked, tick continues",
		logging.String("stage", st.String()),
		logging.Error(fmt.Errorf("%v", r)),
	)
}

// checkOverrun logs a throttled structured warning when a stage's measured
// duration exceeds its budget. Exceeding a budget never aborts the tick;
// this is telemetry only, per spec.md §4.13's failure semantics.
func (s *Scheduler) checkOverrun(st stage, elapsed, budget time.Duration) {
	if budget <= 0 || elapsed <= budget {
		return
	}
	count := atomic.AddUint64(&s.overrunCounts[st], 1)
	if count%s.overrunStride != 1 {
		return
	}
	if s.log == nil {
		return
	}
	s.log.Warn("simulation stage exceeded budget",
		logging.String("stage", st.String()),
		logging.Int64("elapsed_us", elapsed.Microseconds()),
		logging.Int64("budget_us", budget.Microseconds()),
		logging.Int64("occurrences", int64(count)),
	)
}
