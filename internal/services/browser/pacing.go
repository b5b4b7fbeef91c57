package browser

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Point is a viewport coordinate
type Point struct {
	X, Y float64
}

// Pacer produces the randomized timings and movements that make automated
// sessions look like a person at the keyboard. The random source and the
// sleeper are injectable so tests run instantly and deterministically.
type Pacer struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer seeded from the clock
func NewPacer() *Pacer {
	return NewPacerWithSource(rand.NewSource(time.Now().UnixNano()), SleepContext)
}

// NewPacerWithSource creates a pacer with an explicit random source and sleeper
func NewPacerWithSource(src rand.Source, sleep func(ctx context.Context, d time.Duration) error) *Pacer {
	return &Pacer{
		rnd:   rand.New(src),
		sleep: sleep,
	}
}

// SleepContext waits for d or until ctx is done
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Pacer) intn(min, max int) int {
	if max <= min {
		return min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return min + p.rnd.Intn(max-min+1)
}

func (p *Pacer) chance(probability float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rnd.Float64() < probability
}

func (p *Pacer) uniform(min, max time.Duration) time.Duration {
	return time.Duration(p.intn(int(min), int(max)))
}

// Delay picks a pause between minMs and maxMs. One time in five a 1-3 s
// distraction is added, then +/-100 ms of jitter; the result is never below minMs.
func (p *Pacer) Delay(minMs, maxMs int) time.Duration {
	ms := p.intn(minMs, maxMs)
	if p.chance(0.2) {
		ms += p.intn(1000, 3000)
	}
	ms += p.intn(-100, 100)
	if ms < minMs {
		ms = minMs
	}
	return time.Duration(ms) * time.Millisecond
}

// Wait sleeps for Delay(minMs, maxMs)
func (p *Pacer) Wait(ctx context.Context, minMs, maxMs int) error {
	return p.sleep(ctx, p.Delay(minMs, maxMs))
}

// Pause sleeps for a uniform duration between min and max without extras
func (p *Pacer) Pause(ctx context.Context, min, max time.Duration) error {
	return p.sleep(ctx, p.uniform(min, max))
}

// KeystrokeDelays returns the wait before each character of text: 50-150 ms,
// with a 10% chance of an extra 200-500 ms hesitation.
func (p *Pacer) KeystrokeDelays(text string) []time.Duration {
	runes := []rune(text)
	delays := make([]time.Duration, len(runes))
	for i := range runes {
		d := time.Duration(p.intn(50, 150)) * time.Millisecond
		if p.chance(0.1) {
			d += time.Duration(p.intn(200, 500)) * time.Millisecond
		}
		delays[i] = d
	}
	return delays
}

// ScrollPlan splits a scroll of amount pixels (random 300-700 when zero,
// negative for up) into 3-6 steps
func (p *Pacer) ScrollPlan(amount int, up bool) []int {
	if amount == 0 {
		amount = p.intn(300, 700)
	}
	if up {
		amount = -amount
	}
	steps := p.intn(3, 6)
	step := amount / steps
	plan := make([]int, steps)
	for i := range plan {
		plan[i] = step
	}
	return plan
}

// ScrollStepDelay is the pause between scroll steps
func (p *Pacer) ScrollStepDelay() time.Duration {
	return time.Duration(p.intn(50, 150)) * time.Millisecond
}

// ScrollSettleDelay is the pause after a scroll, as if reading what appeared
func (p *Pacer) ScrollSettleDelay() time.Duration {
	return time.Duration(p.intn(300, 800)) * time.Millisecond
}

// MousePath returns an ease-out trajectory from start to target with at least
// five points and +/-2 px jitter per point
func (p *Pacer) MousePath(start, target Point) []Point {
	distance := math.Hypot(target.X-start.X, target.Y-start.Y)
	steps := int(distance / 50)
	if steps < 5 {
		steps = 5
	}

	path := make([]Point, steps)
	for i := 0; i < steps; i++ {
		progress := float64(i+1) / float64(steps)
		eased := 1 - (1-progress)*(1-progress)
		path[i] = Point{
			X: start.X + (target.X-start.X)*eased + float64(p.intn(-2, 2)),
			Y: start.Y + (target.Y-start.Y)*eased + float64(p.intn(-2, 2)),
		}
	}
	return path
}

// MouseStart picks the assumed pointer position before a movement
func (p *Pacer) MouseStart() Point {
	return Point{X: float64(p.intn(400, 600)), Y: float64(p.intn(300, 500))}
}

// MouseStepDelay is the pause between pointer moves
func (p *Pacer) MouseStepDelay() time.Duration {
	return time.Duration(p.intn(10, 30)) * time.Millisecond
}

// ReadingPlan returns how long to "read" and whether to nudge the page by a
// small scroll first (30% chance)
func (p *Pacer) ReadingPlan(min, max time.Duration) (time.Duration, bool) {
	return p.uniform(min, max), p.chance(0.3)
}

// Intn exposes the pacer's random source for small choices such as scroll counts
func (p *Pacer) Intn(min, max int) int {
	return p.intn(min, max)
}

// Sleep waits using the configured sleeper
func (p *Pacer) Sleep(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}
