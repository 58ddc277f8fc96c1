package buffer

import (
	"fmt"
	"strings"
)

// Memories is an append-only scratchpad of (action, observation) records.
type Memories struct {
	Items []Memory `json:"memories"`
}

type Memory struct {
	Thought     string `json:"thought,omitempty"`
	Action      string `json:"action"`
	Observation string `json:"observation"`
}

func (m *Memories) Add(m2 Memory) {
	m.Items = append(m.Items, m2)
}

func (m *Memories) Len() int {
	return len(m.Items)
}

// Tail returns at most the n most recent records.
func (m *Memories) Tail(n int) []Memory {
	if n <= 0 {
		return nil
	}
	if len(m.Items) <= n {
		return m.Items
	}
	return m.Items[len(m.Items)-n:]
}

// Render formats the tail as prompt text.
func (m *Memories) Render(n int) string {
	tail := m.Tail(n)
	if len(tail) == 0 {
		return "(no actions taken yet)"
	}
	var b strings.Builder
	for i, item := range tail {
		if i > 0 {
			b.WriteString("\n")
		}
		if item.Thought != "" {
			fmt.Fprintf(&b, "Thought: %s\n", item.Thought)
		}
		fmt.Fprintf(&b, "Action: %s\nObservation: %s\n", item.Action, item.Observation)
	}
	return b.String()
}
