package models

import "time"

type EventType string

const (
	EventThinking    EventType = "thinking"
	EventThought     EventType = "thought"
	EventAction      EventType = "action"
	EventSource      EventType = "source"
	EventObservation EventType = "observation"
	EventComplete    EventType = "complete"
	// EventError reports a recoverable failure; the run continues.
	EventError EventType = "error"
	// EventReport is emitted by the report pipeline after synthesis, never by the agent.
	EventReport EventType = "report"
)

type ProgressEvent struct {
	Type    EventType       `json:"status"`
	Turn    int             `json:"turn"`
	Message string          `json:"message,omitempty"`
	Action  *ToolInvocation `json:"action,omitempty"`
	Source  *Source         `json:"source,omitempty"`
	Result  *ResearchResult `json:"result,omitempty"`
	Report  *Report         `json:"report,omitempty"`
	Time    time.Time       `json:"time"`
}
