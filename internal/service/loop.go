package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/noesis-dev/noesis/internal/domain"
	"github.com/noesis-dev/noesis/internal/store"
	"go.uber.org/zap"
)

const (
	// DefaultTopic seeds a brand new run.
	DefaultTopic = "the nature of consciousness and machine experience"

	// MaxConsecutiveErrors is the halt threshold. Three failed steps in a
	// row pause the run; a single success resets the counter.
	MaxConsecutiveErrors = 3

	// SnapshotPeriod is the identity snapshot cadence, in steps.
	SnapshotPeriod = 5
	// SummaryPeriod is the progress summary cadence, in steps.
	SummaryPeriod = 20
	// CleanupPeriod is the memory cleanup cadence, in steps.
	CleanupPeriod = 100
	// StagnationWindow is how many consecutive zero-depth steps count as a
	// stalled thread.
	StagnationWindow = 50

	DefaultStepInterval = 30 * time.Second

	// insightRestoreLimit caps how much of the insight log a restart
	// rejoins to the dialogue state, newest entries kept.
	insightRestoreLimit = 200
)

// threadAspects reseed an exhausted thread with a fresh angle on the
// current topic.
var threadAspects = []string{
	"the limits of %s",
	"the origins of %s",
	"how %s relates to language",
	"whether %s can be observed from the outside",
	"what %s implies about identity over time",
}

type stepper interface {
	Step(ctx context.Context, state domain.DialogueState) (StepResult, error)
}

type snapshotter interface {
	Build(ctx context.Context, runID uuid.UUID, iteration int) (*domain.IdentitySnapshot, error)
}

// ControllerStatus is the read-only view served by the status endpoint.
type ControllerStatus struct {
	Running      bool             `json:"running"`
	RunID        uuid.UUID        `json:"run_id"`
	Topic        string           `json:"topic"`
	CurrentAgent domain.AgentRole `json:"current_agent"`
	Phase        domain.Phase     `json:"phase"`
	Depth        int              `json:"depth"`
	StepCount    int              `json:"step_count"`
	InsightCount int              `json:"insight_count"`
	UptimeSec    float64          `json:"uptime_seconds"`
}

// Controller owns the authoritative dialogue state and drives the
// perpetual step loop. Step execution is delegated so the loop mechanics
// are testable without a model.
type Controller struct {
	stepper   stepper
	identity  snapshotter
	memories  *MemoryManager
	runs      domain.RunStore
	exchanges domain.ExchangeStore
	states    domain.StateStore
	insights  domain.InsightStore
	interval  time.Duration
	logger    *zap.Logger

	mu                sync.Mutex
	running           bool
	run               *domain.Run
	state             domain.DialogueState
	stepCount         int
	startedAt         time.Time
	zeroDepthStreak   int
	consecutiveErrors int
}

func NewController(
	step stepper,
	identity snapshotter,
	memories *MemoryManager,
	runs domain.RunStore,
	exchanges domain.ExchangeStore,
	states domain.StateStore,
	insights domain.InsightStore,
	interval time.Duration,
	logger *zap.Logger,
) *Controller {
	if interval <= 0 {
		interval = DefaultStepInterval
	}
	return &Controller{
		stepper:   step,
		identity:  identity,
		memories:  memories,
		runs:      runs,
		exchanges: exchanges,
		states:    states,
		insights:  insights,
		interval:  interval,
		logger:    logger,
	}
}

// Initialize resolves the run to continue (the one with the most
// exchanges), restores its latest state, and prepares storage. A fresh
// database yields a new run on the default topic.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	run, err := c.runs.MostActive(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Create fills in the generated id and timestamps.
		run = &domain.Run{
			Topic:  DefaultTopic,
			Status: domain.RunActive,
		}
		if err := c.runs.Create(ctx, run); err != nil {
			return fmt.Errorf("creating run: %w", err)
		}
		c.logger.Info("starting new run", zap.String("run_id", run.ID.String()), zap.String("topic", run.Topic))
	case err != nil:
		return fmt.Errorf("resolving run: %w", err)
	default:
		if err := c.runs.SetStatus(ctx, run.ID, domain.RunActive); err != nil {
			return fmt.Errorf("activating run: %w", err)
		}
		c.logger.Info("continuing run", zap.String("run_id", run.ID.String()), zap.String("topic", run.Topic))
	}
	c.run = run

	state, err := c.states.LatestByRun(ctx, run.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.state = domain.NewDialogueState(run.ID, run.Topic)
	case err != nil:
		return fmt.Errorf("restoring state: %w", err)
	default:
		c.state = *state
		c.state.Sanitize()
	}

	// The state row carries only context and thread; the insight log lives
	// in its own table and must be rejoined or reseeding and summaries
	// start from nothing after a restart.
	recent, err := c.insights.ListRecent(ctx, run.ID, insightRestoreLimit)
	if err != nil {
		return fmt.Errorf("restoring insights: %w", err)
	}
	c.state.Insights = make([]domain.Insight, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		c.state.Insights = append(c.state.Insights, recent[i])
	}

	count, err := c.exchanges.CountByRun(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("counting exchanges: %w", err)
	}
	c.stepCount = count

	c.memories.EnsureCollections(ctx)
	return nil
}

// Start runs the step loop until Stop is called or the context ends.
// Initialize must have succeeded first.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running || c.run == nil {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.startedAt = time.Now()
	c.consecutiveErrors = 0
	c.mu.Unlock()

	for {
		c.mu.Lock()
		if !c.running {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		c.stepOnce(ctx)

		select {
		case <-ctx.Done():
			c.Stop(context.WithoutCancel(ctx))
			return
		case <-time.After(c.interval):
		}
	}
}

func (c *Controller) stepOnce(ctx context.Context) {
	c.mu.Lock()
	state := c.state.Clone()
	c.mu.Unlock()

	if state.Depth >= domain.MaxDepth {
		state = c.startNewThread(ctx, state, "max depth reached")
	} else if c.isStagnant() {
		state = c.startNewThread(ctx, state, "stagnant thread")
	}

	result, err := c.stepper.Step(ctx, state)
	if err != nil {
		c.mu.Lock()
		c.consecutiveErrors++
		n := c.consecutiveErrors
		c.mu.Unlock()
		c.logger.Warn("step failed", zap.Int("consecutive_errors", n), zap.Error(err))
		if n >= MaxConsecutiveErrors {
			c.logger.Error("too many consecutive errors, pausing run",
				zap.Int("consecutive_errors", n))
			c.Stop(ctx)
		}
		return
	}

	c.persist(ctx, result)

	c.mu.Lock()
	c.state = result.State
	c.consecutiveErrors = 0
	c.stepCount++
	step := c.stepCount
	if result.State.Depth == 0 {
		c.zeroDepthStreak++
	} else {
		c.zeroDepthStreak = 0
	}
	c.mu.Unlock()

	c.logger.Info("step complete",
		zap.Int("step", step),
		zap.String("agent", string(result.Exchange.Agent)),
		zap.String("type", string(result.Exchange.Type)),
		zap.Int("depth", result.State.Depth),
		zap.Int("new_insights", len(result.NewInsights)))

	c.runPeriodicTasks(ctx, step)
}

// persist writes the step's durable records. Failures degrade to warnings;
// the in-memory state remains authoritative for the next step.
func (c *Controller) persist(ctx context.Context, result StepResult) {
	if err := c.exchanges.Create(ctx, &result.Exchange); err != nil {
		c.logger.Warn("persisting exchange failed", zap.Error(err))
	}
	st := result.State
	if err := c.states.Upsert(ctx, &st); err != nil {
		c.logger.Warn("persisting state failed", zap.Error(err))
	}
	for i := range result.NewInsights {
		if err := c.insights.Create(ctx, &result.NewInsights[i]); err != nil {
			c.logger.Warn("persisting insight failed", zap.Error(err))
		}
	}
	if err := c.runs.Touch(ctx, result.State.RunID); err != nil {
		c.logger.Warn("touching run failed", zap.Error(err))
	}
}

func (c *Controller) runPeriodicTasks(ctx context.Context, step int) {
	if step%SnapshotPeriod == 0 {
		if _, err := c.identity.Build(ctx, c.run.ID, step); err != nil {
			c.logger.Warn("identity snapshot skipped", zap.Error(err))
		}
	}
	if step%SummaryPeriod == 0 {
		c.logSummary(step)
	}
	if step%CleanupPeriod == 0 {
		c.memories.Cleanup(ctx, c.run.ID)
	}
}

func (c *Controller) logSummary(step int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	counts := map[domain.Significance]int{}
	for _, in := range c.state.Insights {
		counts[in.Significance]++
	}
	c.logger.Info("progress summary",
		zap.Int("step", step),
		zap.Duration("uptime", time.Since(c.startedAt)),
		zap.String("topic", c.state.Context.CurrentTopic),
		zap.Int("depth", c.state.Depth),
		zap.Int("insights_total", len(c.state.Insights)),
		zap.Int("insights_high", counts[domain.SignificanceHigh]+counts[domain.SignificanceBreakthrough]),
		zap.Strings("focus", c.state.Context.FocusAreas))
}

// isStagnant reports whether the thread has sat at depth zero for a full
// stagnation window. The modulo keeps a long flat stretch from reseeding
// on every step.
func (c *Controller) isStagnant() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stepCount > StagnationWindow &&
		c.zeroDepthStreak > 0 &&
		c.zeroDepthStreak%StagnationWindow == 0
}

// startNewThread reseeds the dialogue on a fresh topic. Topic choice drains
// the thread's unexplored aspects first, then falls back to concepts from
// recent insights, then the default topic. The new thread's unexplored set
// is refilled from the fixed aspect pool.
func (c *Controller) startNewThread(ctx context.Context, state domain.DialogueState, reason string) domain.DialogueState {
	oldTopic := state.Context.CurrentTopic
	topic := c.nextTopic(state)

	state.Depth = 0
	state.CurrentAgent = domain.AgentQuestioner
	state.Phase = domain.PhaseQuestioning
	state.Context.CurrentTopic = topic
	state.Thread = domain.QuestionThread{
		RootQuestion:      topic,
		ExploredAspects:   append(state.Thread.ExploredAspects, oldTopic),
		UnexploredAspects: aspectPool(topic),
	}
	state.Sanitize()

	c.logger.Info("starting new thread",
		zap.String("reason", reason),
		zap.String("previous_topic", oldTopic),
		zap.String("topic", topic))

	c.mu.Lock()
	c.zeroDepthStreak = 0
	c.state = state.Clone()
	c.mu.Unlock()

	st := state
	if err := c.states.Upsert(ctx, &st); err != nil {
		c.logger.Warn("persisting reseeded state failed", zap.Error(err))
	}
	return state
}

func (c *Controller) nextTopic(state domain.DialogueState) string {
	explored := make(map[string]bool, len(state.Thread.ExploredAspects))
	for _, a := range state.Thread.ExploredAspects {
		explored[a] = true
	}
	explored[state.Context.CurrentTopic] = true

	var candidates []string
	for _, a := range state.Thread.UnexploredAspects {
		if a != "" && !explored[a] {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) > 0 {
		return candidates[rand.Intn(len(candidates))]
	}

	for i := len(state.Insights) - 1; i >= 0; i-- {
		for _, concept := range state.Insights[i].RelatedConcepts {
			if concept != "" && !explored[concept] {
				return concept
			}
		}
	}
	return DefaultTopic
}

// aspectPool instantiates the fixed aspect templates for a topic.
func aspectPool(topic string) []string {
	aspects := make([]string, 0, len(threadAspects))
	for _, tmpl := range threadAspects {
		aspects = append(aspects, fmt.Sprintf(tmpl, topic))
	}
	return aspects
}

// Stop halts the loop and pauses the run. Safe to call more than once.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	run := c.run
	steps := c.stepCount
	insights := len(c.state.Insights)
	uptime := time.Since(c.startedAt)
	c.mu.Unlock()

	if err := c.runs.SetStatus(ctx, run.ID, domain.RunPaused); err != nil {
		c.logger.Warn("pausing run failed", zap.Error(err))
	}
	c.logger.Info("run paused",
		zap.String("run_id", run.ID.String()),
		zap.Int("steps", steps),
		zap.Int("insights", insights),
		zap.Duration("uptime", uptime))
}

// Status returns a point-in-time view for the ops endpoint.
func (c *Controller) Status() ControllerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := ControllerStatus{
		Running:      c.running,
		CurrentAgent: c.state.CurrentAgent,
		Phase:        c.state.Phase,
		Depth:        c.state.Depth,
		StepCount:    c.stepCount,
		InsightCount: len(c.state.Insights),
	}
	if c.run != nil {
		s.RunID = c.run.ID
		s.Topic = c.state.Context.CurrentTopic
	}
	if c.running {
		s.UptimeSec = time.Since(c.startedAt).Seconds()
	}
	return s
}
