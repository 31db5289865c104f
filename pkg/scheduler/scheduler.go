package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/speedrun-hq/cyclerunner/pkg/actions"
	"github.com/speedrun-hq/cyclerunner/pkg/circuitbreaker"
	"github.com/speedrun-hq/cyclerunner/pkg/config"
	"github.com/speedrun-hq/cyclerunner/pkg/logger"
	"github.com/speedrun-hq/cyclerunner/pkg/metrics"
)

// Step is a playlist entry ready to run
type Step struct {
	Action actions.Action
	Delay  time.Duration
}

// Config holds the scheduler timing
type Config struct {
	CycleDuration   time.Duration
	InterCycleDelay time.Duration
	CircuitBreaker  config.CircuitBreakerConfig
}

// CycleState tracks the current logical cycle
type CycleState struct {
	CycleID string        `json:"cycle_id"`
	Number  int           `json:"number"`
	Start   time.Time     `json:"start"`
	Elapsed time.Duration `json:"elapsed"`
	// Pass counts playlist passes within the current cycle
	Pass int `json:"pass"`
}

// StepReport is the result of one step of a pass
type StepReport struct {
	Action  string         `json:"action"`
	Skipped bool           `json:"skipped"`
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Result  actions.Result `json:"-"`
}

// PassReport summarizes one playlist pass
type PassReport struct {
	CycleID   string       `json:"cycle_id"`
	Cycle     int          `json:"cycle"`
	Pass      int          `json:"pass"`
	Started   time.Time    `json:"started"`
	Finished  time.Time    `json:"finished"`
	Steps     []StepReport `json:"steps"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
}

// Scheduler runs the playlist in passes and tracks the logical cycle
type Scheduler struct {
	library  *actions.Library
	steps    []Step
	breakers []*circuitbreaker.CircuitBreaker
	config   Config
	clock    Clock
	sleeper  Sleeper
	logger   logger.Logger

	state    CycleState
	lastPass *PassReport
	mu       sync.RWMutex
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock replaces the wall clock
func WithClock(clock Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithSleeper replaces the real sleeper
func WithSleeper(sleeper Sleeper) Option {
	return func(s *Scheduler) {
		s.sleeper = sleeper
	}
}

// New creates a scheduler over the given playlist
func New(library *actions.Library, steps []Step, cfg Config, log logger.Logger, opts ...Option) *Scheduler {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if cfg.CycleDuration <= 0 {
		cfg.CycleDuration = config.DefaultCycleDuration
	}

	s := &Scheduler{
		library: library,
		steps:   steps,
		config:  cfg,
		clock:   realClock{},
		sleeper: realSleeper{},
		logger:  log,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.breakers = make([]*circuitbreaker.CircuitBreaker, len(steps))
	for i, step := range steps {
		s.breakers[i] = circuitbreaker.NewCircuitBreaker(
			step.Action.Name(),
			cfg.CircuitBreaker.Enabled,
			cfg.CircuitBreaker.Threshold,
			cfg.CircuitBreaker.WindowDuration,
			cfg.CircuitBreaker.ResetTimeout,
			s.clock.Now,
			log,
		)
	}
	return s
}

// BuildSteps converts playlist steps into scheduler steps
func BuildSteps(playlist []config.Step) ([]Step, error) {
	steps := make([]Step, 0, len(playlist))
	for i, entry := range playlist {
		action, err := actions.Build(entry)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		steps = append(steps, Step{Action: action, Delay: entry.Delay})
	}
	return steps, nil
}

// Run runs passes separated by the inter-cycle delay until the context is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.InfoWithAction(logger.TagCycle, "Starting automatic runs, cycle length %s", s.config.CycleDuration)

	for {
		s.RunPass(ctx)
		if ctx.Err() != nil {
			break
		}

		s.logger.InfoWithAction(logger.TagCycle, "Pass complete. Waiting %s for the next pass...", s.config.InterCycleDelay)
		if err := s.sleeper.Sleep(ctx, s.config.InterCycleDelay); err != nil {
			break
		}
	}

	s.logger.InfoWithAction(logger.TagCycle, "Scheduler stopped")
	return nil
}

// RunPass rolls the cycle if it has elapsed and runs every step once.
// Each step is followed by its delay whatever its result.
func (s *Scheduler) RunPass(ctx context.Context) PassReport {
	state := s.beginPass()
	s.logger.InfoWithAction(logger.TagCycle, "Elapsed time: %s", formatElapsed(state.Elapsed))
	s.logger.InfoWithAction(logger.TagCycle, "--- Running pass %d of cycle %d ---", state.Pass, state.Number)

	report := PassReport{
		CycleID: state.CycleID,
		Cycle:   state.Number,
		Pass:    state.Pass,
		Started: s.clock.Now(),
	}

	for i, step := range s.steps {
		if ctx.Err() != nil {
			break
		}

		name := step.Action.Name()
		stepReport := StepReport{Action: name}

		if s.breakers[i].IsOpen() {
			s.logger.NoticeWithAction(logger.TagCycle, "Skipping %s: circuit breaker open", name)
			metrics.ActionsSkipped.WithLabelValues(name).Inc()
			stepReport.Skipped = true
			report.Skipped++
		} else {
			s.logger.InfoWithAction(logger.TagCycle, "Action %d/%d: %s", i+1, len(s.steps), name)
			result := step.Action.Execute(ctx, s.library)
			stepReport.Result = result
			stepReport.Success = result.Success
			if result.Success {
				s.breakers[i].RecordSuccess()
				report.Succeeded++
			} else {
				if result.Err != nil {
					stepReport.Error = result.Err.Error()
				}
				s.breakers[i].RecordFailure()
				report.Failed++
			}
		}
		report.Steps = append(report.Steps, stepReport)

		if err := s.sleeper.Sleep(ctx, step.Delay); err != nil {
			break
		}
	}

	report.Finished = s.clock.Now()
	metrics.PassesTotal.Inc()
	s.logger.NoticeWithAction(logger.TagCycle, "Pass finished: %d succeeded, %d failed, %d skipped",
		report.Succeeded, report.Failed, report.Skipped)

	s.mu.Lock()
	s.lastPass = &report
	s.mu.Unlock()

	return report
}

// beginPass starts the first cycle or a new one when the cycle duration has elapsed
func (s *Scheduler) beginPass() CycleState {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state.Start.IsZero():
		s.startCycle(now)
	case now.Sub(s.state.Start) >= s.config.CycleDuration:
		s.logger.NoticeWithAction(logger.TagCycle, "%s have passed. Restarting the cycle...", s.config.CycleDuration)
		s.startCycle(now)
	}

	s.state.Pass++
	s.state.Elapsed = now.Sub(s.state.Start)
	return s.state
}

func (s *Scheduler) startCycle(now time.Time) {
	s.state = CycleState{
		CycleID: uuid.NewString(),
		Number:  s.state.Number + 1,
		Start:   now,
	}
	metrics.CycleNumber.Set(float64(s.state.Number))
	s.logger.InfoWithAction(logger.TagCycle, "Cycle %d started (%s)", s.state.Number, s.state.CycleID)
}

// State returns a snapshot of the current cycle
func (s *Scheduler) State() CycleState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := s.state
	if !state.Start.IsZero() {
		state.Elapsed = s.clock.Now().Sub(state.Start)
	}
	return state
}

// LastPass returns the report of the most recent pass, nil before the first one
func (s *Scheduler) LastPass() *PassReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastPass == nil {
		return nil
	}
	report := *s.lastPass
	return &report
}

// Breakers returns the state of every step's circuit breaker
func (s *Scheduler) Breakers() []circuitbreaker.State {
	states := make([]circuitbreaker.State, 0, len(s.breakers))
	for _, breaker := range s.breakers {
		states = append(states, breaker.State())
	}
	return states
}

func formatElapsed(elapsed time.Duration) string {
	total := int64(elapsed / time.Second)
	return fmt.Sprintf("%d hours, %d minutes, %d seconds", total/3600, (total%3600)/60, total%60)
}

// ResetBreakers closes the circuit breakers of every step running the named action
func (s *Scheduler) ResetBreakers(action string) int {
	reset := 0
	for i, step := range s.steps {
		if step.Action.Name() == action {
			s.breakers[i].Reset()
			reset++
		}
	}
	return reset
}
