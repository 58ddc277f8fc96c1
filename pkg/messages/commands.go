package messages

import (
	"github.com/google/uuid"

	"go-alloy/pkg/models"
)

// NewReport starts an async report run on a report actor.
type NewReport struct {
	ReportID uuid.UUID
	Title    string
	models.Task
}

// StartResearch is sent by the report actor to its researcher child.
type StartResearch struct {
	ReportID uuid.UUID
	models.Task
}

type Progress struct {
	ReportID uuid.UUID
	Event    models.ProgressEvent
}

type ResearchComplete struct {
	ReportID uuid.UUID
	Event    models.ProgressEvent
}

// ReportFinished carries the synthesized and persisted report back to its actor.
type ReportFinished struct {
	Report models.Report
	Err    error
}

type GetStatus struct{}

type ReportError struct {
	Error models.Error
}
