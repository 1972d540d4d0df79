package broadcaster

import (
	"sync"
	"time"
)

// bucket is one client's token-bucket throttling state.
type bucket struct {
	tokens float64
	last   time.Time
	window time.Time
	sent   int64
	denied int64
}

// Usage reports a client's current bandwidth throttling state, exported for
// the metrics handler.
type Usage struct {
	AvailableBytes   float64
	BytesPerSecond   float64
	ObservedSeconds  float64
	DeniedDeliveries int64
}

// BandwidthRegulator enforces a per-client byte-rate budget so a single slow
// or abusive session cannot starve the broadcast stage's send loop; over
// budget sends are skipped for the tick rather than queued, matching the
// transport adapter's best-effort delivery contract (spec.md §6.1).
type BandwidthRegulator struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity float64
	refill   float64
	now      func() time.Time
}

// NewBandwidthRegulator constructs a regulator enforcing targetBytesPerSecond
// per client. A nil clock defaults to time.Now.
func NewBandwidthRegulator(targetBytesPerSecond float64, clock func() time.Time) *BandwidthRegulator {
	if clock == nil {
		clock = time.Now
	}
	return &BandwidthRegulator{
		buckets:  make(map[string]*bucket),
		capacity: targetBytesPerSecond,
		refill:   targetBytesPerSecond,
		now:      clock,
	}
}

func (r *BandwidthRegulator) replenish(b *bucket, now time.Time) {
	if now.Before(b.last) {
		return
	}
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		b.last = now
		return
	}
	b.tokens += elapsed * r.refill
	if b.tokens > r.capacity {
		b.tokens = r.capacity
	}
	b.last = now
}

// Allow charges payloadBytes against clientID's budget, returning false if
// the send should be skipped this tick. New clients start with a full
// bucket so the initial snapshot is never throttled.
func (r *BandwidthRegulator) Allow(clientID string, payloadBytes int) bool {
	if clientID == "" || payloadBytes <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[clientID]
	now := r.now()
	if !ok {
		b = &bucket{tokens: r.capacity, last: now, window: now}
		r.buckets[clientID] = b
	}
	r.replenish(b, now)

	cost := float64(payloadBytes)
	if cost > b.tokens {
		b.denied++
		return false
	}
	b.tokens -= cost
	b.sent += int64(payloadBytes)
	return true
}

// Forget drops clientID's bucket, called when its session closes.
func (r *BandwidthRegulator) Forget(clientID string) {
	if clientID == "" {
		return
	}
	r.mu.Lock()
	delete(r.buckets, clientID)
	r.mu.Unlock()
}

// Snapshot reports the latest throttling stats per client.
func (r *BandwidthRegulator) Snapshot() map[string]Usage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buckets) == 0 {
		return nil
	}

	now := r.now()
	out := make(map[string]Usage, len(r.buckets))
	for id, b := range r.buckets {
		r.replenish(b, now)
		observed := now.Sub(b.window).Seconds()
		if observed < 0 {
			observed = 0
		}
		rate := 0.0
		if observed > 0 {
			rate = float64(b.sent) / observed
		}
		out[id] = Usage{
			AvailableBytes:   b.tokens,
			BytesPerSecond:   rate,
			ObservedSeconds:  observed,
			DeniedDeliveries: b.denied,
		}
	}
	return out
}
