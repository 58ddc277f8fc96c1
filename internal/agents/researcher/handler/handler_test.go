package handler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-alloy/internal/tools"
	"go-alloy/pkg/models"
)

// scriptedPlanner replays answers in order and repeats the last one forever.
type scriptedPlanner struct {
	mu      sync.Mutex
	answers []string
	err     error
	calls   int
	prompts []string
}

func (p *scriptedPlanner) Generate(ctx context.Context, prompt string) (string, error) {
	return p.GenerateJSON(ctx, prompt)
}

func (p *scriptedPlanner) GenerateJSON(_ context.Context, prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, prompt)
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	i := p.calls - 1
	if i >= len(p.answers) {
		i = len(p.answers) - 1
	}
	return p.answers[i], nil
}

func textTool(name tools.Name, param string) tools.Tool {
	return tools.Tool{
		Name:     name,
		Required: []string{param},
		Run: func(_ context.Context, p tools.Params) (tools.Output, error) {
			subject := p.String(param)
			return tools.Output{
				Context: string(name) + " about " + subject,
				Sources: []models.Source{{Title: subject, URL: "https://example.com/" + strings.ReplaceAll(subject, " ", "-")}},
				Subject: subject,
			}, nil
		},
	}
}

func fakeCatalogue() *tools.Catalogue {
	return tools.NewCatalogue(
		textTool(tools.WebSearch, "query"),
		textTool(tools.CorporateCulture, "brand_name"),
		textTool(tools.FinancialAndMarket, "brand_name"),
		tools.Tool{
			Name:     tools.CulturalAnalysis,
			Required: []string{"acquirer_name", "target_name"},
			Run: func(context.Context, tools.Params) (tools.Output, error) {
				return tools.Output{
					Context:  "overlap 20",
					Analysis: &models.CulturalAnalysis{OverlapScore: 20, Method: models.MethodProxyTasteGraph},
					Clashes:  []models.CultureClash{{Topic: "Sneakers", Severity: models.SeverityMedium}},
					Growths:  []models.UntappedGrowth{{Description: "Basketball", PotentialImpactScore: 8}},
				}, nil
			},
		},
		tools.Tool{
			Name:     tools.PersonaExpansion,
			Required: []string{"acquirer_name", "target_name"},
			Run: func(context.Context, tools.Params) (tools.Output, error) {
				return tools.Output{Context: "expansion 33.33", Persona: &models.PersonaExpansion{ExpansionScore: 33.33}}, nil
			},
		},
	)
}

var task = models.Task{Acquirer: "Nike", Target: "Patagonia"}

func drain(events <-chan models.ProgressEvent) []models.ProgressEvent {
	var out []models.ProgressEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func last(t *testing.T, events []models.ProgressEvent) *models.ResearchResult {
	t.Helper()
	require.NotEmpty(t, events)
	end := events[len(events)-1]
	require.Equal(t, models.EventComplete, end.Type)
	require.NotNil(t, end.Result)
	return end.Result
}

func TestRunFinishesAfterScriptedActions(t *testing.T) {
	planner := &scriptedPlanner{answers: []string{
		`{"thought": "profile first", "action": {"tool_name": "web_search", "parameters": {"query": "Nike brand profile"}}}`,
		`{"thought": "target culture", "action": {"tool_name": "corporate_culture", "parameters": {"brand_name": "patagonia"}}}`,
		`{"thought": "compare", "action": {"tool_name": "intelligent_cultural_analysis", "parameters": {"acquirer_name": "Nike", "target_name": "Patagonia"}}}`,
		`{"thought": "persona", "action": {"tool_name": "persona_expansion", "parameters": {"acquirer_name": "Nike", "target_name": "Patagonia"}}}`,
		"```json\n{\"thought\": \"done\", \"action\": {\"tool_name\": \"finish\", \"parameters\": {\"notes\": \"financials thin\"}}}\n```",
	}}

	res := last(t, drain(New(task, planner, fakeCatalogue()).Run(context.Background())))

	assert.Equal(t, 5, res.Turns)
	assert.Equal(t, 5, planner.calls)
	assert.False(t, res.TimedOut)
	assert.Equal(t, "financials thin", res.PlannerNotes)

	assert.Equal(t, "web_search about Nike brand profile", res.Data.AcquirerProfile)
	assert.Equal(t, "corporate_culture about patagonia", res.Data.TargetCulture)
	assert.Equal(t, 20.0, res.Data.CulturalAnalysis.OverlapScore)
	assert.Equal(t, 33.33, res.Data.PersonaExpansion.ExpansionScore)
	assert.Len(t, res.Data.CultureClashes, 1)
	assert.Len(t, res.Data.UntappedGrowths, 1)
	assert.Equal(t, []models.Slot{
		models.AcquirerProfileSlot, models.TargetCultureSlot,
		models.CulturalAnalysisSlot, models.CultureClashesSlot, models.UntappedGrowthsSlot,
		models.PersonaExpansionSlot,
	}, res.Data.Filled)

	assert.Equal(t, []string{
		"searched_acquirer_profile", "researched_target_culture",
		"performed_cultural_analysis", "performed_persona_expansion",
	}, res.CompletedSteps)
	assert.Len(t, res.Sources[models.AcquirerSources], 1)
	assert.Len(t, res.Sources[models.TargetCultureSources], 1)

	assert.Contains(t, planner.prompts[1], "- searched_acquirer_profile")
	assert.Contains(t, planner.prompts[1], "Observation: web_search about Nike brand profile")
}

func TestRunStopsAtTurnBudget(t *testing.T) {
	planner := &scriptedPlanner{answers: []string{
		`{"thought": "again", "action": {"tool_name": "financial_and_market", "parameters": {"brand_name": "Nike"}}}`,
	}}

	events := drain(New(task, planner, fakeCatalogue(), WithMaxTurns(3)).Run(context.Background()))
	res := last(t, events)

	assert.True(t, res.TimedOut)
	assert.Equal(t, 3, res.Turns)
	assert.Equal(t, 3, planner.calls)
	assert.NotEmpty(t, res.Data.AcquirerFinancial)
	assert.NotNil(t, res.Data.CultureClashes)
	assert.NotNil(t, res.Sources)

	warning := events[len(events)-2]
	assert.Equal(t, models.EventError, warning.Type)
	assert.Contains(t, warning.Message, "turn budget")
}

func TestRunSurvivesFailingTools(t *testing.T) {
	boom := tools.Tool{Name: tools.WebSearch, Required: []string{"query"}, Run: func(context.Context, tools.Params) (tools.Output, error) {
		return tools.Output{}, errors.New("search backend down")
	}}
	planner := &scriptedPlanner{answers: []string{
		`{"thought": "try", "action": {"tool_name": "web_search", "parameters": {"query": "Nike"}}}`,
	}}
	h := New(task, planner, tools.NewCatalogue(boom), WithMaxTurns(2))

	res := last(t, drain(h.Run(context.Background())))
	assert.True(t, res.TimedOut)
	assert.Empty(t, res.Data.Filled)

	require.Len(t, h.Scratchpad(), 2)
	assert.Equal(t, "Error: search backend down", h.Scratchpad()[0].Observation)
}

func TestRunPanickingTool(t *testing.T) {
	bad := tools.Tool{Name: tools.CorporateCulture, Required: []string{"brand_name"}, Run: func(context.Context, tools.Params) (tools.Output, error) {
		panic("nil map")
	}}
	planner := &scriptedPlanner{answers: []string{
		`{"thought": "try", "action": {"tool_name": "corporate_culture", "parameters": {"brand_name": "Nike"}}}`,
		`{"thought": "stop", "action": {"tool_name": "finish", "parameters": {}}}`,
	}}
	h := New(task, planner, tools.NewCatalogue(bad))

	res := last(t, drain(h.Run(context.Background())))
	assert.Equal(t, 2, res.Turns)
	assert.Contains(t, h.Scratchpad()[0].Observation, "panicked: nil map")
}

func TestRunEventOrder(t *testing.T) {
	planner := &scriptedPlanner{answers: []string{
		`{"thought": "search", "action": {"tool_name": "web_search", "parameters": {"query": "Patagonia"}}}`,
		`{"thought": "done", "action": {"tool_name": "finish", "parameters": {}}}`,
	}}

	events := drain(New(task, planner, fakeCatalogue()).Run(context.Background()))

	var types []models.EventType
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []models.EventType{
		models.EventThinking, models.EventThought, models.EventAction, models.EventSource, models.EventObservation,
		models.EventThinking, models.EventThought, models.EventAction, models.EventComplete,
	}, types)
	assert.Equal(t, 1, events[0].Turn)
	assert.Equal(t, "web_search", events[2].Action.ToolName)
	assert.Equal(t, "https://example.com/Patagonia", events[3].Source.URL)
	assert.Equal(t, 2, events[len(events)-1].Turn)
	assert.Equal(t, "web_search about Patagonia", last(t, events).Data.TargetProfile)
}

func TestRunRecoversFromMalformedAnswers(t *testing.T) {
	planner := &scriptedPlanner{answers: []string{
		"I think we should search first",
		`{"thought": "no action"}`,
		`{"thought": "done", "action": {"tool_name": "finish"}}`,
	}}
	h := New(task, planner, fakeCatalogue())

	events := drain(h.Run(context.Background()))
	res := last(t, events)

	assert.Equal(t, 3, res.Turns)
	assert.Equal(t, models.EventError, events[1].Type)
	require.Len(t, h.Scratchpad(), 2)
	assert.Contains(t, h.Scratchpad()[1].Observation, `missing "action" object`)
	assert.Contains(t, planner.prompts[2], "could not be used")
}

func TestRunUnknownTool(t *testing.T) {
	planner := &scriptedPlanner{answers: []string{
		`{"thought": "hack", "action": {"tool_name": "delete_database", "parameters": {}}}`,
		`{"thought": "done", "action": {"tool_name": "finish", "parameters": {}}}`,
	}}
	h := New(task, planner, fakeCatalogue())

	res := last(t, drain(h.Run(context.Background())))
	assert.Equal(t, 2, res.Turns)
	assert.Contains(t, h.Scratchpad()[0].Observation, "unknown tool 'delete_database'")
}

func TestRunPlannerFailureFinishes(t *testing.T) {
	planner := &scriptedPlanner{err: errors.New("quota exceeded")}

	events := drain(New(task, planner, fakeCatalogue()).Run(context.Background()))
	res := last(t, events)

	assert.Equal(t, 1, res.Turns)
	assert.False(t, res.TimedOut)
	assert.Contains(t, res.PlannerNotes, "quota exceeded")
	assert.Equal(t, models.NewGatheredData(), res.Data)
}

func TestRunCancelled(t *testing.T) {
	planner := &scriptedPlanner{answers: []string{
		`{"thought": "again", "action": {"tool_name": "web_search", "parameters": {"query": "Nike"}}}`,
	}}
	ctx, cancel := context.WithCancel(context.Background())
	events := New(task, planner, fakeCatalogue()).Run(ctx)

	<-events
	cancel()
	for ev := range events {
		assert.NotEqual(t, models.EventComplete, ev.Type)
	}
}

func TestRunDeadlineKeepsPartialResearch(t *testing.T) {
	slow := tools.Tool{Name: tools.CorporateCulture, Required: []string{"brand_name"}, Run: func(ctx context.Context, _ tools.Params) (tools.Output, error) {
		<-ctx.Done()
		return tools.Output{}, ctx.Err()
	}}
	planner := &scriptedPlanner{answers: []string{
		`{"thought": "profile", "action": {"tool_name": "web_search", "parameters": {"query": "Nike"}}}`,
		`{"thought": "culture", "action": {"tool_name": "corporate_culture", "parameters": {"brand_name": "Patagonia"}}}`,
	}}
	catalogue := tools.NewCatalogue(textTool(tools.WebSearch, "query"), slow)

	events := drain(New(task, planner, catalogue, WithDeadline(100*time.Millisecond)).Run(context.Background()))
	res := last(t, events)

	assert.True(t, res.TimedOut)
	assert.Equal(t, 2, res.Turns)
	assert.Equal(t, "web_search about Nike", res.Data.AcquirerProfile)
	assert.Equal(t, []string{"searched_acquirer_profile"}, res.CompletedSteps)
	assert.Len(t, res.Sources[models.AcquirerSources], 1)

	warning := events[len(events)-2]
	assert.Equal(t, models.EventError, warning.Type)
	assert.Contains(t, warning.Message, "run deadline")
}

func TestRunDropsResultsNamingBothOrNeither(t *testing.T) {
	planner := &scriptedPlanner{answers: []string{
		`{"thought": "both", "action": {"tool_name": "web_search", "parameters": {"query": "Nike acquires Patagonia"}}}`,
		`{"thought": "neither", "action": {"tool_name": "financial_and_market", "parameters": {"brand_name": "Adidas"}}}`,
		`{"thought": "done", "action": {"tool_name": "finish", "parameters": {}}}`,
	}}
	h := New(task, planner, fakeCatalogue())

	events := drain(h.Run(context.Background()))
	res := last(t, events)

	assert.Equal(t, models.NewGatheredData(), res.Data)
	assert.Empty(t, res.Sources)
	assert.Empty(t, res.CompletedSteps)

	require.Len(t, h.Scratchpad(), 2)
	assert.Equal(t, "web_search about Nike acquires Patagonia", h.Scratchpad()[0].Observation)
	assert.Equal(t, "financial_and_market about Adidas", h.Scratchpad()[1].Observation)
	assert.NotContains(t, planner.prompts[2], "- searched_acquirer_profile")
}

func TestSideOf(t *testing.T) {
	tests := []struct {
		subject string
		want    models.Side
	}{
		{"Nike", models.AcquirerSide},
		{" patagonia ", models.TargetSide},
		{"Nike brand history", models.AcquirerSide},
		{"Patagonia revenue 2023", models.TargetSide},
		{"Nike acquires Patagonia", models.NoSide},
		{"Adidas", models.NoSide},
		{"", models.NoSide},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SideOf(task, tt.subject), tt.subject)
	}
}
