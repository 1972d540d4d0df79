package input

import (
	"math"
	"sync"
	"testing"
	"time"

	"massivegame/server/internal/logging"
)

type validatorClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *validatorClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *validatorClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestValidatorAcceptsWithinConstraints(t *testing.T) {
	clock := &validatorClock{now: time.UnixMilli(0)}
	validator := NewValidator(DefaultControlConstraints, logging.NewTestLogger(), WithValidatorClock(clock))

	controls := Controls{Rotation: 0.3, Weapon: 2, Ability: 0}
	decision := validator.Validate("client-A", "controller-A", controls)
	if !decision.Accepted {
		t.Fatalf("expected acceptance, got %+v", decision)
	}

	validator.Commit("client-A", "controller-A", controls)

	controls2 := Controls{Rotation: 0.5, Weapon: 3, Ability: 0}
	decision = validator.Validate("client-A", "controller-A", controls2)
	if !decision.Accepted {
		t.Fatalf("expected acceptance on second frame, got %+v", decision)
	}
}

func TestValidatorRejectsOutOfRange(t *testing.T) {
	clock := &validatorClock{now: time.UnixMilli(0)}
	validator := NewValidator(DefaultControlConstraints, logging.NewTestLogger(), WithValidatorClock(clock))

	controls := Controls{Rotation: math.Pi + 1, Weapon: 2, Ability: 0}
	decision := validator.Validate("client-B", "controller-B", controls)
	if decision.Accepted {
		t.Fatalf("expected rejection for rotation overflow")
	}
	if decision.Reason != ValidationReasonRotationRange {
		t.Fatalf("unexpected reason %s", decision.Reason)
	}
}

func TestValidatorRejectsWeaponOutOfRange(t *testing.T) {
	clock := &validatorClock{now: time.UnixMilli(0)}
	validator := NewValidator(DefaultControlConstraints, logging.NewTestLogger(), WithValidatorClock(clock))

	controls := Controls{Rotation: 0, Weapon: 9, Ability: 0}
	decision := validator.Validate("client-B2", "controller-B2", controls)
	if decision.Accepted {
		t.Fatalf("expected rejection for weapon slot overflow")
	}
	if decision.Reason != ValidationReasonWeaponRange {
		t.Fatalf("unexpected reason %s", decision.Reason)
	}
}

func TestValidatorRejectsRotationDeltaSpike(t *testing.T) {
	clock := &validatorClock{now: time.UnixMilli(0)}
	validator := NewValidator(DefaultControlConstraints, logging.NewTestLogger(), WithValidatorClock(clock))

	baseline := Controls{Rotation: 0.0, Weapon: 1, Ability: 0}
	if decision := validator.Validate("client-C", "controller-C", baseline); !decision.Accepted {
		t.Fatalf("baseline rejected: %+v", decision)
	}
	validator.Commit("client-C", "controller-C", baseline)

	cfg := DefaultControlConstraints
	cfg.Deltas.RotationPerTick = 0.2
	strictValidator := NewValidator(cfg, logging.NewTestLogger(), WithValidatorClock(clock))
	if decision := strictValidator.Validate("client-C2", "controller-C2", baseline); !decision.Accepted {
		t.Fatalf("baseline rejected: %+v", decision)
	}
	strictValidator.Commit("client-C2", "controller-C2", baseline)

	spike := Controls{Rotation: 2.5, Weapon: 1, Ability: 0}
	decision := strictValidator.Validate("client-C2", "controller-C2", spike)
	if decision.Accepted {
		t.Fatalf("expected rejection for rotation delta spike")
	}
	if decision.Reason != ValidationReasonRotationDelta {
		t.Fatalf("unexpected reason %s", decision.Reason)
	}
}

func TestAngularDistanceHandlesWraparound(t *testing.T) {
	got := angularDistance(3.0, -3.0)
	want := 2*math.Pi - 6.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected wraparound distance %f, got %f", want, got)
	}
	if d := angularDistance(0, math.Pi); math.Abs(d-math.Pi) > 1e-9 {
		t.Fatalf("expected opposite angles to be π apart, got %f", d)
	}
	if d := angularDistance(1.0, 1.0); d != 0 {
		t.Fatalf("expected zero distance for identical angles, got %f", d)
	}
}

func TestValidatorAppliesCooldownAfterBurst(t *testing.T) {
	clock := &validatorClock{now: time.UnixMilli(0)}
	cfg := DefaultControlConstraints
	cfg.InvalidBurstLimit = 3
	cfg.CooldownDuration = 300 * time.Millisecond
	validator := NewValidator(cfg, logging.NewTestLogger(), WithValidatorClock(clock))

	bad := Controls{Rotation: 0, Weapon: 9, Ability: 0}
	var lastDecision ValidationDecision
	for i := 0; i < cfg.InvalidBurstLimit; i++ {
		decision := validator.Validate("client-D", "controller-D", bad)
		if decision.Accepted {
			t.Fatalf("expected rejection at iteration %d", i)
		}
		lastDecision = decision
	}
	if lastDecision.Cooldown != cfg.CooldownDuration {
		t.Fatalf("expected cooldown duration %s, got %s", cfg.CooldownDuration, lastDecision.Cooldown)
	}

	decision := validator.Validate("client-D", "controller-D", Controls{Rotation: 0, Weapon: 1, Ability: 0})
	if decision.Accepted {
		t.Fatalf("expected cooldown to reject valid frame")
	}
	if decision.Reason != ValidationReasonCooldownActive {
		t.Fatalf("expected cooldown active reason, got %s", decision.Reason)
	}

	clock.Advance(cfg.CooldownDuration)
	decision = validator.Validate("client-D", "controller-D", Controls{Rotation: 0, Weapon: 1, Ability: 0})
	if !decision.Accepted {
		t.Fatalf("expected acceptance after cooldown, got %+v", decision)
	}
}
