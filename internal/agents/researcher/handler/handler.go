package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"go-alloy/internal/tools"
	"go-alloy/pkg/data"
	"go-alloy/pkg/llm"
	"go-alloy/pkg/logger"
	"go-alloy/pkg/memory/buffer"
	"go-alloy/pkg/metrics"
	"go-alloy/pkg/models"
	"go-alloy/pkg/prompts"
)

const (
	DefaultMaxTurns       = 12
	DefaultScratchpadTail = 6
)

type Option func(*Handler)

func WithMaxTurns(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxTurns = n
		}
	}
}

// WithDeadline bounds the wall-clock time spent planning and running tools.
// A run that hits it still completes with what it has gathered.
func WithDeadline(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.deadline = d
		}
	}
}

// WithScratchpadTail sets how many recent scratchpad records each planning prompt sees.
func WithScratchpadTail(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.tail = n
		}
	}
}

// Handler runs one research task through a plan-act-observe loop. A Handler
// is single use; every run owns its own state.
type Handler struct {
	task      models.Task
	llm       llm.Generator
	catalogue *tools.Catalogue
	maxTurns  int
	tail      int
	deadline  time.Duration

	state *runState
	l     zerolog.Logger
}

// runState is everything a run accumulates across turns.
type runState struct {
	steps      []string
	scratchpad buffer.Memories
	data       models.GatheredData
	sources    models.SourceRegistry
	turn       int
}

func (s *runState) completeStep(step string) {
	for _, done := range s.steps {
		if done == step {
			return
		}
	}
	s.steps = append(s.steps, step)
}

func New(task models.Task, generator llm.Generator, catalogue *tools.Catalogue, opts ...Option) *Handler {
	h := &Handler{
		task:      task,
		llm:       generator,
		catalogue: catalogue,
		maxTurns:  DefaultMaxTurns,
		tail:      DefaultScratchpadTail,
		state: &runState{
			steps:      []string{},
			scratchpad: buffer.Memories{Items: make([]buffer.Memory, 0)},
			data:       models.NewGatheredData(),
			sources:    models.SourceRegistry{},
		},
		l: log.With().Str(logger.AgentNameField, "researcher").Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run starts the loop and returns its event stream. The stream ends with a
// complete event, or closes early without one when ctx is cancelled.
func (h *Handler) Run(ctx context.Context) <-chan models.ProgressEvent {
	events := make(chan models.ProgressEvent)
	go func() {
		defer close(events)
		var (
			work   context.Context
			cancel context.CancelFunc
		)
		if h.deadline > 0 {
			work, cancel = context.WithTimeout(ctx, h.deadline)
		} else {
			work, cancel = context.WithCancel(ctx)
		}
		defer cancel()
		h.loop(ctx, work, events)
	}()
	return events
}

// Scratchpad returns the run's action log. Only read it after the stream closes.
func (h *Handler) Scratchpad() []buffer.Memory {
	return h.state.scratchpad.Items
}

type plannerAnswer struct {
	Thought string `json:"thought"`
	Action  *struct {
		ToolName   string         `json:"tool_name"`
		Parameters map[string]any `json:"parameters"`
	} `json:"action"`
}

// loop emits on ctx, which only the consumer cancels. Planner and tool calls
// run on work, which also carries the run deadline.
func (h *Handler) loop(ctx, work context.Context, events chan<- models.ProgressEvent) {
	s := h.state
	emit := func(ev models.ProgressEvent) bool {
		ev.Turn = s.turn
		ev.Time = time.Now()
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	defer func() {
		if ctx.Err() != nil {
			metrics.AgentRuns.WithLabelValues("cancelled").Inc()
		}
	}()

	for s.turn < h.maxTurns {
		if ctx.Err() != nil {
			return
		}
		if work.Err() != nil {
			h.outOfTime(emit)
			return
		}
		s.turn++
		metrics.AgentTurns.Inc()
		l := h.l.With().Int(logger.TurnField, s.turn).Logger()

		if !emit(models.ProgressEvent{Type: models.EventThinking, Message: fmt.Sprintf("planning step %d of at most %d", s.turn, h.maxTurns)}) {
			return
		}

		ans, err := h.plan(work)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if work.Err() != nil {
				h.outOfTime(emit)
				return
			}
			l.Error().Err(err).Msg("planner call failed, finishing with what has been gathered")
			h.finish(emit, fmt.Sprintf("planner unavailable: %v", err), false)
			return
		}

		match, err := data.SanitizeAnswer(ans)
		var answer plannerAnswer
		if err == nil {
			answer, err = parseAnswer(match)
		}
		if err != nil {
			l.Warn().Err(err).Msg("malformed planner answer")
			s.scratchpad.Add(buffer.Memory{
				Action: "(none)",
				Observation: fmt.Sprintf("Error: your last response could not be used (%v). Respond with only a json object "+
					`of the form {"thought": "...", "action": {"tool_name": "...", "parameters": {...}}}.`, err),
			})
			if !emit(models.ProgressEvent{Type: models.EventError, Message: fmt.Sprintf("malformed planner response: %v", err)}) {
				return
			}
			continue
		}

		if !emit(models.ProgressEvent{Type: models.EventThought, Message: answer.Thought}) {
			return
		}
		invocation := models.ToolInvocation{ToolName: answer.Action.ToolName, Parameters: answer.Action.Parameters}
		if invocation.Parameters == nil {
			invocation.Parameters = map[string]any{}
		}
		if !emit(models.ProgressEvent{Type: models.EventAction, Action: &invocation}) {
			return
		}

		if tools.Name(invocation.ToolName) == tools.Finish {
			l.Info().Msg("planner finished the research")
			h.finish(emit, tools.Params(invocation.Parameters).String("notes"), false)
			return
		}

		observation, sources := h.act(work, l, invocation)
		if ctx.Err() != nil {
			return
		}
		if work.Err() != nil {
			h.outOfTime(emit)
			return
		}
		for i := range sources {
			if !emit(models.ProgressEvent{Type: models.EventSource, Source: &sources[i]}) {
				return
			}
		}
		s.scratchpad.Add(buffer.Memory{
			Thought:     answer.Thought,
			Action:      describeAction(invocation),
			Observation: observation,
		})
		if !emit(models.ProgressEvent{Type: models.EventObservation, Message: observation}) {
			return
		}
	}

	h.l.Warn().Int("max_turns", h.maxTurns).Msg("turn budget exhausted, finishing with partial research")
	if !emit(models.ProgressEvent{Type: models.EventError, Message: fmt.Sprintf("turn budget of %d exhausted, report is based on partial research", h.maxTurns)}) {
		return
	}
	h.finish(emit, "", true)
}

func (h *Handler) outOfTime(emit func(models.ProgressEvent) bool) {
	h.l.Warn().Dur("deadline", h.deadline).Int(logger.TurnField, h.state.turn).Msg("run deadline reached, finishing with partial research")
	if !emit(models.ProgressEvent{Type: models.EventError, Message: fmt.Sprintf("run deadline of %s reached, report is based on partial research", h.deadline)}) {
		return
	}
	h.finish(emit, "", true)
}

func (h *Handler) plan(ctx context.Context) (string, error) {
	s := h.state
	prompt, err := prompts.Render(prompts.AgentTurnPrompt, map[string]any{
		"Acquirer":       h.task.Acquirer,
		"Target":         h.task.Target,
		"UserContext":    h.task.UserContext,
		"Tools":          h.catalogue.Describe(),
		"CompletedSteps": renderSteps(s.steps),
		"Scratchpad":     s.scratchpad.Render(h.tail),
		"Turn":           s.turn,
		"MaxTurns":       h.maxTurns,
	})
	if err != nil {
		return "", err
	}
	return h.llm.GenerateJSON(ctx, prompt)
}

// act runs one tool and folds its output into the run state. Every failure
// becomes an observation.
func (h *Handler) act(ctx context.Context, l zerolog.Logger, inv models.ToolInvocation) (string, []models.Source) {
	tool, err := h.catalogue.Lookup(inv.ToolName)
	if err != nil {
		l.Warn().Str(logger.ToolField, inv.ToolName).Msg("planner chose an unknown tool")
		names := make([]string, 0)
		for _, n := range h.catalogue.Names() {
			names = append(names, string(n))
		}
		return fmt.Sprintf("Error: %v. Available tools: %s, finish.", err, strings.Join(names, ", ")), nil
	}

	l.Info().Str(logger.ToolField, inv.ToolName).Msg("running tool")
	res := tools.Invoke(ctx, tool, tools.Params(inv.Parameters))
	if res.Err != nil {
		l.Warn().Err(res.Err).Str(logger.ToolField, inv.ToolName).Dur("duration", res.Duration).Msg("tool failed")
		return "Error: " + res.Err.Error(), nil
	}
	l.Debug().Str(logger.ToolField, inv.ToolName).Dur("duration", res.Duration).Msg("tool finished")

	h.record(l, tool.Name, res.Output)
	return res.Output.Context, res.Output.Sources
}

// slotsBySide maps the single-brand research tools to their slot, source
// bucket and completed-step tag for each side.
var slotsBySide = map[tools.Name]map[models.Side]struct {
	slot   models.Slot
	bucket string
	step   string
}{
	tools.WebSearch: {
		models.AcquirerSide: {models.AcquirerProfileSlot, models.AcquirerSources, "searched_acquirer_profile"},
		models.TargetSide:   {models.TargetProfileSlot, models.TargetSources, "searched_target_profile"},
	},
	tools.CorporateCulture: {
		models.AcquirerSide: {models.AcquirerCultureSlot, models.AcquirerCultureSources, "researched_acquirer_culture"},
		models.TargetSide:   {models.TargetCultureSlot, models.TargetCultureSources, "researched_target_culture"},
	},
	tools.FinancialAndMarket: {
		models.AcquirerSide: {models.AcquirerFinancialSlot, models.AcquirerFinancialSources, "researched_acquirer_financials"},
		models.TargetSide:   {models.TargetFinancialSlot, models.TargetFinancialSources, "researched_target_financials"},
	},
}

func (h *Handler) record(l zerolog.Logger, name tools.Name, out tools.Output) {
	s := h.state
	switch name {
	case tools.CulturalAnalysis:
		if out.Analysis != nil {
			s.data.SetCulturalAnalysis(*out.Analysis)
		}
		s.data.SetCultureClashes(out.Clashes)
		s.data.SetUntappedGrowths(out.Growths)
		s.sources.Add(models.CulturalAnalysisSources, out.Sources...)
		s.completeStep("performed_cultural_analysis")
	case tools.PersonaExpansion:
		if out.Persona != nil {
			s.data.SetPersonaExpansion(*out.Persona)
		}
		s.sources.Add(models.PersonaExpansionSources, out.Sources...)
		s.completeStep("performed_persona_expansion")
	default:
		sides, ok := slotsBySide[name]
		if !ok {
			return
		}
		side := SideOf(h.task, out.Subject)
		target, ok := sides[side]
		if !ok {
			l.Debug().Str(logger.ToolField, string(name)).Str("subject", out.Subject).Msg("result names neither company, dropping it")
			return
		}
		s.data.SetText(target.slot, out.Context)
		s.sources.Add(target.bucket, out.Sources...)
		s.completeStep(target.step)
	}
}

func (h *Handler) finish(emit func(models.ProgressEvent) bool, notes string, timedOut bool) {
	s := h.state
	outcome := "finished"
	if timedOut {
		outcome = "budget_exhausted"
	}
	metrics.AgentRuns.WithLabelValues(outcome).Inc()

	result := &models.ResearchResult{
		Task:           h.task,
		Data:           s.data,
		Sources:        s.sources,
		CompletedSteps: append([]string{}, s.steps...),
		Turns:          s.turn,
		TimedOut:       timedOut,
		PlannerNotes:   notes,
	}
	emit(models.ProgressEvent{Type: models.EventComplete, Message: "research complete", Result: result})
}

// SideOf decides which company a tool result is about. An exact name match
// wins; otherwise the subject must mention exactly one of the two names.
func SideOf(task models.Task, subject string) models.Side {
	subj := strings.ToLower(strings.TrimSpace(subject))
	acquirer := strings.ToLower(strings.TrimSpace(task.Acquirer))
	target := strings.ToLower(strings.TrimSpace(task.Target))
	if subj == "" {
		return models.NoSide
	}
	switch subj {
	case acquirer:
		return models.AcquirerSide
	case target:
		return models.TargetSide
	}
	hasAcquirer := acquirer != "" && strings.Contains(subj, acquirer)
	hasTarget := target != "" && strings.Contains(subj, target)
	switch {
	case hasAcquirer && !hasTarget:
		return models.AcquirerSide
	case hasTarget && !hasAcquirer:
		return models.TargetSide
	}
	return models.NoSide
}

func parseAnswer(answer string) (plannerAnswer, error) {
	res := plannerAnswer{}
	if err := json.Unmarshal([]byte(answer), &res); err != nil {
		return plannerAnswer{}, fmt.Errorf("unmarshal: %w", err)
	}
	if res.Action == nil {
		return plannerAnswer{}, errors.New(`missing "action" object`)
	}
	if strings.TrimSpace(res.Action.ToolName) == "" {
		return plannerAnswer{}, errors.New(`missing "action.tool_name"`)
	}
	res.Action.ToolName = strings.TrimSpace(res.Action.ToolName)
	return res, nil
}

func renderSteps(steps []string) string {
	if len(steps) == 0 {
		return "(none yet)"
	}
	var b strings.Builder
	for i, s := range steps {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + s)
	}
	return b.String()
}

func describeAction(inv models.ToolInvocation) string {
	params, err := json.Marshal(inv.Parameters)
	if err != nil {
		return inv.ToolName
	}
	return fmt.Sprintf("%s %s", inv.ToolName, params)
}
