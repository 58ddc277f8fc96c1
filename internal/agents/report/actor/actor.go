package actor

import (
	"context"
	"errors"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go-alloy/internal/agents/report/handler"
	"go-alloy/pkg/logger"
	"go-alloy/pkg/messages"
	"go-alloy/pkg/models"
)

// Report coordinates one async run: it spawns a researcher, keeps every
// progress event for status queries and finalizes the report.
type Report struct {
	root       *actor.RootContext
	handler    *handler.Handler
	researcher *actor.Props
	timeout    time.Duration

	id     uuid.UUID
	title  string
	task   models.Task
	state  models.State
	events []models.ProgressEvent
	report *models.Report
	err    *models.Error
}

func New(root *actor.RootContext, h *handler.Handler, researcher *actor.Props, timeout time.Duration) actor.Producer {
	return func() actor.Actor {
		return &Report{
			root:       root,
			handler:    h,
			researcher: researcher,
			timeout:    timeout,
			id:         uuid.Nil,
			state:      models.Init,
			events:     make([]models.ProgressEvent, 0),
		}
	}
}

func (agent *Report) Receive(ac actor.Context) {
	l := log.With().Fields(map[string]interface{}{logger.ActorIDField: ac.Self().GetId(), logger.AgentNameField: "report"}).Logger()
	switch msg := ac.Message().(type) {
	case *actor.Started:
		l.Debug().Msg("starting actor")
	case *actor.Stopping:
		l.Debug().Msg("stopping actor")
	case *actor.Stopped:
		l.Debug().Msg("stopped actor and its children")
	case *actor.Restarting:
		l.Debug().Msg("restarting actor")
	case *actor.Terminated:
		l.Debug().Msg("child actor terminated")
	case messages.GetStatus:
		l.Debug().Str(logger.ReportIDField, agent.id.String()).Msg("GetStatus message received")
		ac.Respond(agent.status())
	case messages.NewReport:
		l.Debug().Str(logger.ReportIDField, msg.ReportID.String()).Msgf("NewReport received: %v", msg.Task)
		agent.id = msg.ReportID
		agent.title = msg.Title
		agent.task = msg.Task
		agent.state = models.Thinking

		child := ac.Spawn(agent.researcher)
		l.Info().Str(logger.ReportIDField, agent.id.String()).Msg("sending task to researcher...")
		ac.Send(child, messages.StartResearch{ReportID: agent.id, Task: msg.Task})
	case messages.Progress:
		agent.events = append(agent.events, msg.Event)
	case messages.ResearchComplete:
		l.Info().Str(logger.ReportIDField, agent.id.String()).Msg("research complete, synthesizing report...")
		agent.events = append(agent.events, msg.Event)
		if msg.Event.Result == nil {
			agent.fail(errors.New("research finished without a result"))
			return
		}
		agent.state = models.Synthesizing
		agent.finalize(ac.Self(), *msg.Event.Result)
	case messages.ReportFinished:
		r := msg.Report
		agent.report = &r
		agent.events = append(agent.events, models.ProgressEvent{Type: models.EventReport, Message: "report ready", Report: &r, Time: time.Now()})
		if msg.Err != nil {
			agent.fail(msg.Err)
			return
		}
		agent.state = models.Finished
		l.Info().Str(logger.ReportIDField, agent.id.String()).Msg("Work complete!")
	case messages.ReportError:
		l.Debug().Str(logger.ReportIDField, agent.id.String()).Msgf("ReportError received from researcher: %v", msg)
		agent.state = models.Failed
		agent.err = &msg.Error
	default:
		l.Warn().Str(logger.ReportIDField, agent.id.String()).Msgf("unknown message: %v", msg)
	}
}

// finalize synthesizes off the mailbox loop so status queries stay answerable.
func (agent *Report) finalize(self *actor.PID, result models.ResearchResult) {
	id, title, task := agent.id, agent.title, agent.task
	go func() {
		ctx := context.Background()
		if agent.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, agent.timeout)
			defer cancel()
		}
		r, err := agent.handler.Finalize(ctx, id, title, task, result)
		agent.root.Send(self, messages.ReportFinished{Report: r, Err: err})
	}()
}

func (agent *Report) fail(err error) {
	t := time.Now()
	agent.state = models.Failed
	agent.err = &models.Error{ErrMessage: err.Error(), Time: &t}
	log.Error().Err(err).Str(logger.ReportIDField, agent.id.String()).Msg("report failed")
}

func (agent *Report) status() models.Status {
	return models.Status{
		ReportID: agent.id,
		State:    agent.state,
		Events:   append([]models.ProgressEvent{}, agent.events...),
		Report:   agent.report,
		Errs:     agent.err,
	}
}
