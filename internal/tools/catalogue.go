package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-alloy/pkg/metrics"
	"go-alloy/pkg/models"
)

type Name string

const (
	WebSearch          Name = "web_search"
	CorporateCulture   Name = "corporate_culture"
	FinancialAndMarket Name = "financial_and_market"
	CulturalAnalysis   Name = "intelligent_cultural_analysis"
	PersonaExpansion   Name = "persona_expansion"
	// Finish is reserved for the planner; it is never in a Catalogue.
	Finish Name = "finish"
)

var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrMissingParameter = errors.New("missing parameter")
)

type Params map[string]any

// String returns the trimmed textual value of key, or "" if absent.
func (p Params) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Output is what a tool hands back to the agent. Context is always set.
type Output struct {
	Context string
	Sources []models.Source
	// Subject is the brand name or query the call targeted, for routing.
	Subject  string
	Analysis *models.CulturalAnalysis
	Persona  *models.PersonaExpansion
	Clashes  []models.CultureClash
	Growths  []models.UntappedGrowth
}

type Tool struct {
	Name        Name
	Description string
	Required    []string
	Run         func(ctx context.Context, p Params) (Output, error)
}

// Catalogue is the closed table of tools the planner may call.
type Catalogue struct {
	tools map[Name]Tool
	order []Name
}

func NewCatalogue(tools ...Tool) *Catalogue {
	c := &Catalogue{tools: make(map[Name]Tool, len(tools))}
	for _, t := range tools {
		if _, dup := c.tools[t.Name]; !dup {
			c.order = append(c.order, t.Name)
		}
		c.tools[t.Name] = t
	}
	return c
}

func (c *Catalogue) Lookup(name string) (Tool, error) {
	t, ok := c.tools[Name(name)]
	if !ok {
		return Tool{}, fmt.Errorf("%w '%s'", ErrUnknownTool, name)
	}
	return t, nil
}

func (c *Catalogue) Names() []Name {
	return append([]Name(nil), c.order...)
}

// Describe renders the catalogue for the planning prompt.
func (c *Catalogue) Describe() string {
	var b strings.Builder
	for i, n := range c.order {
		t := c.tools[n]
		if i > 0 {
			b.WriteString("\n")
		}
		params := make([]string, 0, len(t.Required))
		for _, r := range t.Required {
			params = append(params, fmt.Sprintf("%q: string", r))
		}
		fmt.Fprintf(&b, "\t- %s\n\t\t- description: %s\n\t\t- parameters: {%s}", t.Name, t.Description, strings.Join(params, ", "))
	}
	return b.String()
}

type Result struct {
	Output   Output
	Err      error
	Duration time.Duration
}

// Invoke runs a tool, turning missing parameters, returned errors and panics
// into a Result error. It never panics.
func Invoke(ctx context.Context, t Tool, p Params) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("tool '%s' panicked: %v", t.Name, r)}
		}
		res.Duration = time.Since(start)
		status := "ok"
		if res.Err != nil {
			status = "error"
		}
		metrics.ToolInvocations.WithLabelValues(string(t.Name), status).Inc()
		metrics.ToolDuration.WithLabelValues(string(t.Name)).Observe(res.Duration.Seconds())
	}()

	for _, key := range t.Required {
		if p.String(key) == "" {
			return Result{Err: fmt.Errorf("%w '%s' for tool '%s'", ErrMissingParameter, key, t.Name)}
		}
	}
	out, err := t.Run(ctx, p)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Output: out}
}
