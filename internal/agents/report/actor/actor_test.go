package actor

import (
	"context"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reportHandler "go-alloy/internal/agents/report/handler"
	researcherActor "go-alloy/internal/agents/researcher/actor"
	researcherHandler "go-alloy/internal/agents/researcher/handler"
	"go-alloy/internal/tools"
	"go-alloy/pkg/messages"
	"go-alloy/pkg/models"
)

type finishingPlanner struct{}

func (finishingPlanner) Generate(context.Context, string) (string, error) { return "", nil }

func (finishingPlanner) GenerateJSON(context.Context, string) (string, error) {
	return `{"thought": "nothing to do", "action": {"tool_name": "finish", "parameters": {}}}`, nil
}

type synth struct{}

func (synth) Synthesize(context.Context, models.ResearchResult) models.Analysis {
	return models.Analysis{StrategicSummary: "ok"}
}

type memorySaver struct {
	saved chan models.Report
}

func (m memorySaver) Save(_ context.Context, r models.Report) error {
	m.saved <- r
	return nil
}

// gatedSynth holds synthesis until release is closed.
type gatedSynth struct {
	release chan struct{}
}

func (g gatedSynth) Synthesize(context.Context, models.ResearchResult) models.Analysis {
	<-g.release
	return models.Analysis{StrategicSummary: "ok"}
}

func status(t *testing.T, root *actor.RootContext, pid *actor.PID) (models.Status, bool) {
	t.Helper()
	res, err := root.RequestFuture(pid, messages.GetStatus{}, time.Second).Result()
	if err != nil {
		return models.Status{}, false
	}
	st, ok := res.(models.Status)
	return st, ok
}

func TestReportActorReportsSynthesizing(t *testing.T) {
	root := actor.NewActorSystem().Root
	factory := func(task models.Task) *researcherHandler.Handler {
		return researcherHandler.New(task, finishingPlanner{}, tools.NewCatalogue())
	}
	researcherProps := actor.PropsFromProducer(researcherActor.New(root, factory))

	synth := gatedSynth{release: make(chan struct{})}
	h := reportHandler.New(nil, synth, nil)
	pid := root.Spawn(actor.PropsFromProducer(New(root, h, researcherProps, time.Minute)))
	root.Send(pid, messages.NewReport{ReportID: uuid.New(), Task: models.Task{Acquirer: "Nike", Target: "Patagonia"}})

	require.Eventually(t, func() bool {
		st, ok := status(t, root, pid)
		return ok && st.State == models.Synthesizing
	}, 5*time.Second, 20*time.Millisecond)

	close(synth.release)
	require.Eventually(t, func() bool {
		st, ok := status(t, root, pid)
		return ok && st.State == models.Finished
	}, 5*time.Second, 20*time.Millisecond)
}

func TestReportActorRunsToCompletion(t *testing.T) {
	root := actor.NewActorSystem().Root
	factory := func(task models.Task) *researcherHandler.Handler {
		return researcherHandler.New(task, finishingPlanner{}, tools.NewCatalogue())
	}
	researcherProps := actor.PropsFromProducer(researcherActor.New(root, factory))

	saver := memorySaver{saved: make(chan models.Report, 1)}
	h := reportHandler.New(nil, synth{}, saver)
	pid := root.Spawn(actor.PropsFromProducer(New(root, h, researcherProps, time.Minute)))

	id := uuid.New()
	root.Send(pid, messages.NewReport{ReportID: id, Task: models.Task{Acquirer: "Nike", Target: "Patagonia"}})

	var status models.Status
	require.Eventually(t, func() bool {
		res, err := root.RequestFuture(pid, messages.GetStatus{}, time.Second).Result()
		if err != nil {
			return false
		}
		got, ok := res.(models.Status)
		status = got
		return ok && status.State == models.Finished
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, id, status.ReportID)
	require.NotNil(t, status.Report)
	assert.Equal(t, models.ReportCompleted, status.Report.Status)
	assert.Equal(t, "ok", status.Report.Analysis.StrategicSummary)

	types := make([]models.EventType, 0, len(status.Events))
	for _, ev := range status.Events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []models.EventType{
		models.EventThinking, models.EventThought, models.EventAction, models.EventComplete, models.EventReport,
	}, types)

	select {
	case r := <-saver.saved:
		assert.Equal(t, id, r.ID)
	case <-time.After(time.Second):
		t.Fatal("report was never saved")
	}
}
