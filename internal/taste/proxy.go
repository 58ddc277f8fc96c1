package taste

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"go-alloy/pkg/data"
	"go-alloy/pkg/llm"
	"go-alloy/pkg/prompts"
)

// ProxyExtractor mines concrete cultural artifacts from a company profile.
type ProxyExtractor struct {
	llm llm.Generator
}

func NewProxyExtractor(g llm.Generator) *ProxyExtractor {
	return &ProxyExtractor{llm: g}
}

// Extract returns at most MaxProxies names. Any failure yields nil.
func (p *ProxyExtractor) Extract(ctx context.Context, profile, subject string) []string {
	if strings.TrimSpace(profile) == "" {
		return nil
	}
	prompt, err := prompts.Render(prompts.ProxyExtractionPrompt, map[string]any{"Subject": subject, "Profile": profile})
	if err != nil {
		log.Error().Err(err).Msg("proxy prompt")
		return nil
	}
	ans, err := p.llm.GenerateJSON(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("proxy extraction failed")
		return nil
	}
	names, err := parseProxies(ans)
	if err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("unable to parse proxies")
		return nil
	}
	return cleanProxies(names, subject)
}

func parseProxies(ans string) ([]string, error) {
	s := data.StripFences(ans)
	if !strings.HasPrefix(s, "[") {
		if obj, err := data.SanitizeAnswer(s); err == nil {
			var wrapped struct {
				Proxies []string `json:"proxies"`
			}
			if err := json.Unmarshal([]byte(obj), &wrapped); err == nil && len(wrapped.Proxies) > 0 {
				return wrapped.Proxies, nil
			}
		}
	}
	arr, err := data.SanitizeArray(s)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal([]byte(arr), &names); err != nil {
		return nil, err
	}
	return names, nil
}

func cleanProxies(names []string, subject string) []string {
	subjectKey := strings.ToLower(strings.TrimSpace(subject))
	out := make([]string, 0, MaxProxies)
	seen := map[string]bool{}
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || key == subjectKey || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
		if len(out) == MaxProxies {
			break
		}
	}
	return out
}
