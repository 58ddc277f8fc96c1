package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go-alloy/pkg/logger"
	"go-alloy/pkg/models"
)

type Researcher interface {
	Run(ctx context.Context) <-chan models.ProgressEvent
}

type Synthesizer interface {
	Synthesize(ctx context.Context, result models.ResearchResult) models.Analysis
}

type Saver interface {
	Save(ctx context.Context, r models.Report) error
}

// Handler turns research results into saved reports.
type Handler struct {
	newResearcher func(task models.Task) Researcher
	synthesizer   Synthesizer
	store         Saver
}

func New(newResearcher func(task models.Task) Researcher, synthesizer Synthesizer, store Saver) *Handler {
	return &Handler{newResearcher: newResearcher, synthesizer: synthesizer, store: store}
}

// Title is the default report title for a task.
func Title(task models.Task) string {
	return fmt.Sprintf("%s / %s cultural due diligence", task.Acquirer, task.Target)
}

// Finalize synthesizes the analysis and saves the report once. A failed save
// is returned alongside the report, which is still complete.
func (h *Handler) Finalize(ctx context.Context, id uuid.UUID, title string, task models.Task, result models.ResearchResult) (models.Report, error) {
	if strings.TrimSpace(title) == "" {
		title = Title(task)
	}
	now := time.Now().UTC()
	r := models.Report{
		ID:        id,
		Title:     title,
		Task:      task,
		Research:  result,
		Analysis:  h.synthesizer.Synthesize(ctx, result),
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.Status = models.ReportCompleted
	if r.Analysis.Failed {
		r.Status = models.ReportFailed
	}

	if h.store == nil {
		return r, nil
	}
	if err := h.store.Save(ctx, r); err != nil {
		log.Error().Err(err).Str(logger.ReportIDField, id.String()).Msg("unable to save report")
		return r, fmt.Errorf("save: %w", err)
	}
	log.Info().Str(logger.ReportIDField, id.String()).Str("status", string(r.Status)).Msg("report saved")
	return r, nil
}

// Stream runs research and synthesis in-process. Research events are
// forwarded as they happen; the stream ends with one report event.
func (h *Handler) Stream(ctx context.Context, id uuid.UUID, title string, task models.Task) <-chan models.ProgressEvent {
	out := make(chan models.ProgressEvent)
	go func() {
		defer close(out)
		send := func(ev models.ProgressEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var result *models.ResearchResult
		for ev := range h.newResearcher(task).Run(ctx) {
			if ev.Type == models.EventComplete {
				result = ev.Result
			}
			if !send(ev) {
				return
			}
		}
		if result == nil {
			return
		}

		r, err := h.Finalize(ctx, id, title, task, *result)
		ev := models.ProgressEvent{Type: models.EventReport, Turn: result.Turns, Message: "report ready", Report: &r, Time: time.Now()}
		if err != nil {
			ev.Message = fmt.Sprintf("report ready but not saved: %v", err)
		}
		send(ev)
	}()
	return out
}
