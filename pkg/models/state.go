package models

// State is where a report run is in its lifecycle, as reported by GetStatus.
type State string

const (
	Init State = "init"
	// Thinking covers the whole research loop.
	Thinking     State = "thinking"
	Synthesizing State = "synthesizing"
	Failed       State = "failed" // dead state
	Finished     State = "finished"
)
