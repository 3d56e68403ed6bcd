package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleet-route-service/internal/domain"
	"fleet-route-service/internal/platform/logger"
	"fleet-route-service/internal/platform/obs"
	"fleet-route-service/internal/ports"
)

var ErrReoptimizationInFlight = errors.New("reoptimization already in progress")

type RunnerOption func(*Runner)

func WithClock(c Clock) RunnerOption { return func(r *Runner) { r.clock = c } }

func WithPublishers(p ...ports.SnapshotPublisher) RunnerOption {
	return func(r *Runner) { r.publishers = append(r.publishers, p...) }
}

func WithRunnerLogger(l logger.Logger) RunnerOption { return func(r *Runner) { r.log = l } }

// WithReoptimizeTimeout bounds a single planner run.
func WithReoptimizeTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

// Runner is the single driving loop around a State. All mutations go through
// it, so Advance never runs concurrently with itself or with a merge.
type Runner struct {
	mu           sync.Mutex
	state        State
	generation   int
	reoptimizing bool
	// queue signature of the last run that could not drain the queue
	settledQueue string

	engine     *Engine
	clock      Clock
	publishers []ports.SnapshotPublisher
	log        logger.Logger
	timeout    time.Duration

	wg sync.WaitGroup
}

func NewRunner(state State, engine *Engine, opts ...RunnerOption) *Runner {
	r := &Runner{
		state:   state.Clone(),
		engine:  engine,
		clock:   RealClock(),
		log:     logger.NopLogger{},
		timeout: 30 * time.Second,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// State returns a copy of the current state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return NewSnapshot(r.state, r.reoptimizing)
}

// Reset replaces the whole simulation. A reoptimization still in flight for
// the previous state is discarded when it finishes.
func (r *Runner) Reset(state State) {
	r.mu.Lock()
	r.state = state.Clone()
	r.generation++
	r.reoptimizing = false
	r.settledQueue = ""
	r.mu.Unlock()
}

// Step advances the simulation by delta of wall time, starts an automatic
// reoptimization when the queue is long enough and publishes a snapshot.
// While a reoptimization is outstanding the simulated clock stays put.
func (r *Runner) Step(ctx context.Context, delta time.Duration) Snapshot {
	r.mu.Lock()
	if !r.reoptimizing {
		r.state = Advance(r.state, delta)
	}
	if !r.reoptimizing && ShouldReoptimize(r.state) && queueSignature(r.state.TicketQueue) != r.settledQueue {
		r.startLocked(ctx)
	}
	snap := NewSnapshot(r.state, r.reoptimizing)
	r.observeLocked()
	r.mu.Unlock()

	r.publish(ctx, snap)
	return snap
}

// startLocked pauses the simulation and runs the engine in the background.
func (r *Runner) startLocked(ctx context.Context) {
	snapshot, gen := r.pauseLocked()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		next, out, err := r.engine.Reoptimize(runCtx, snapshot)
		r.finish(gen, snapshot, next, out, err)
	}()
}

func (r *Runner) pauseLocked() (State, int) {
	r.reoptimizing = true
	r.state.IsRunning = false
	return r.state.Clone(), r.generation
}

// Reoptimize runs a reoptimization now and waits for it.
func (r *Runner) Reoptimize(ctx context.Context) (Outcome, error) {
	r.mu.Lock()
	if r.reoptimizing {
		r.mu.Unlock()
		return Outcome{}, ErrReoptimizationInFlight
	}
	snapshot, gen := r.pauseLocked()
	r.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	next, out, err := r.engine.Reoptimize(runCtx, snapshot)
	r.finish(gen, snapshot, next, out, err)
	return out, err
}

// finish swaps the merged state in. Tickets and control changes that arrived
// while the planner ran are carried over.
func (r *Runner) finish(gen int, before, next State, out Outcome, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.generation {
		return
	}
	r.reoptimizing = false

	if err != nil {
		r.log.Warnf("reoptimization failed, keeping current plan: %v", err)
		r.state.IsRunning = true
		r.settledQueue = queueSignature(before.TicketQueue)
		return
	}

	seen := make(map[string]bool, len(before.TicketQueue))
	for _, t := range before.TicketQueue {
		seen[t.ID] = true
	}
	for _, t := range r.state.TicketQueue {
		if !seen[t.ID] {
			next.TicketQueue = append(next.TicketQueue, t)
		}
	}
	next.SimulationSpeed = r.state.SimulationSpeed
	next.TicketGenerationEnabled = r.state.TicketGenerationEnabled
	next.AutoReoptimizeThreshold = r.state.AutoReoptimizeThreshold
	r.state = next

	r.settledQueue = ""
	if len(out.UnassignableTickets) > 0 {
		r.settledQueue = queueSignature(next.TicketQueue)
	}
}

// acceptsGenerated reports whether generated tickets are wanted and where they
// should be placed. A pause held by a reoptimization does not stop generation;
// tickets added meanwhile are carried over by the merge.
func (r *Runner) acceptsGenerated() (domain.Coordinates, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	running := r.state.IsRunning || r.reoptimizing
	return r.state.Depot.Coordinates, running && r.state.TicketGenerationEnabled
}

// Wait blocks until background reoptimizations have finished.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) AddTicket(t QueuedTicket) (QueuedTicket, error) {
	if err := validateTicket(t); err != nil {
		return QueuedTicket{}, err
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Stop.ID == "" {
		t.Stop.ID = t.ID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = AddTicketToQueue(r.state, t)
	return r.state.TicketQueue[len(r.state.TicketQueue)-1], nil
}

func validateTicket(t QueuedTicket) error {
	const op = "add ticket"
	if !t.Stop.Coordinates.Valid() {
		return domain.NewError(domain.KindValidation, op, "ticket stop has invalid coordinates")
	}
	if t.Stop.Type != "" && !t.Stop.Type.Valid() {
		return domain.NewError(domain.KindValidation, op, "ticket stop has unknown type")
	}
	if t.Stop.PackageCount < 0 {
		return domain.NewError(domain.KindValidation, op, "ticket stop has negative package count")
	}
	switch t.Priority {
	case "", PriorityNormal, PriorityUrgent:
	default:
		return domain.NewError(domain.KindValidation, op, "unknown ticket priority")
	}
	return nil
}

// SetRunning pauses or resumes the clock. It has no effect while a
// reoptimization is outstanding; the merge resumes the simulation.
func (r *Runner) SetRunning(running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reoptimizing {
		return
	}
	r.state.IsRunning = running
}

func (r *Runner) SetSpeed(speed float64) error {
	if speed <= 0 {
		return domain.NewError(domain.KindValidation, "set speed", "simulation speed must be positive")
	}
	r.mu.Lock()
	r.state.SimulationSpeed = speed
	r.mu.Unlock()
	return nil
}

func (r *Runner) SetTicketGeneration(enabled bool) {
	r.mu.Lock()
	r.state.TicketGenerationEnabled = enabled
	r.mu.Unlock()
}

// SetThreshold changes the auto-reoptimize queue length; 0 disables it.
func (r *Runner) SetThreshold(n int) error {
	if n < 0 {
		return domain.NewError(domain.KindValidation, "set threshold", "threshold must not be negative")
	}
	r.mu.Lock()
	r.state.AutoReoptimizeThreshold = n
	r.mu.Unlock()
	return nil
}

// Run ticks the simulation every interval until ctx is done.
func (r *Runner) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := r.clock.Now()
	for {
		select {
		case <-ctx.Done():
			r.Wait()
			return ctx.Err()
		case <-ticker.C:
			now := r.clock.Now()
			r.Step(ctx, now.Sub(last))
			last = now
		}
	}
}

func (r *Runner) publish(ctx context.Context, snap Snapshot) {
	if len(r.publishers) == 0 {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		r.log.Errorf("encode snapshot: %v", err)
		return
	}
	for _, p := range r.publishers {
		if err := p.Publish(ctx, payload); err != nil {
			r.log.Debugf("publish snapshot: %v", err)
		}
	}
}

func (r *Runner) observeLocked() {
	obs.TicketQueueLength.Set(float64(len(r.state.TicketQueue)))
	for status, n := range r.state.StatusCounts() {
		obs.SimulationVehicles.WithLabelValues(string(status)).Set(float64(n))
	}
}

func queueSignature(q []QueuedTicket) string {
	ids := make([]string, len(q))
	for i, t := range q {
		ids[i] = t.ID
	}
	return strings.Join(ids, ",")
}
