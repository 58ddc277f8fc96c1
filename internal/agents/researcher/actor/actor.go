package actor

import (
	"context"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/rs/zerolog/log"

	"go-alloy/internal/agents/researcher/handler"
	"go-alloy/pkg/logger"
	"go-alloy/pkg/messages"
	"go-alloy/pkg/models"
)

// Factory builds a fresh research handler for one task.
type Factory func(task models.Task) *handler.Handler

// Researcher hosts one research run and forwards its events to the parent.
type Researcher struct {
	root       *actor.RootContext
	newHandler Factory
	cancel     context.CancelFunc
	state      models.State
}

// New builds the researcher producer. Run deadlines belong to the handlers
// the factory builds; the actor only cancels a run when it is stopped.
func New(root *actor.RootContext, newHandler Factory) actor.Producer {
	return func() actor.Actor {
		return &Researcher{
			root:       root,
			newHandler: newHandler,
			state:      models.Init,
		}
	}
}

func (agent *Researcher) Receive(ac actor.Context) {
	l := log.With().Fields(map[string]interface{}{logger.ActorIDField: ac.Self().GetId(), logger.AgentNameField: "researcher"}).Logger()
	switch msg := ac.Message().(type) {
	case *actor.Started:
		l.Debug().Msg("starting actor")
	case *actor.Stopping:
		l.Debug().Msg("stopping actor")
		if agent.cancel != nil {
			agent.cancel()
		}
	case *actor.Stopped:
		l.Debug().Msg("stopped actor")
	case *actor.Restarting:
		l.Debug().Msg("restarting actor")
	case messages.StartResearch:
		if agent.state != models.Init {
			l.Warn().Str(logger.ReportIDField, msg.ReportID.String()).Msg("research already started, ignoring")
			return
		}
		l.Info().Str(logger.ReportIDField, msg.ReportID.String()).Msg("starting research")
		agent.state = models.Thinking

		ctx, cancel := context.WithCancel(context.Background())
		agent.cancel = cancel

		events := agent.newHandler(msg.Task).Run(ctx)
		go agent.forward(cancel, ac.Parent(), ac.Self(), msg, events)
	default:
		l.Warn().Msgf("unknown message: %v", msg)
	}
}

// forward drains the run outside the actor's mailbox loop, so only the root
// context is used here.
func (agent *Researcher) forward(cancel context.CancelFunc, parent, self *actor.PID, msg messages.StartResearch, events <-chan models.ProgressEvent) {
	defer cancel()
	completed := false
	for ev := range events {
		if ev.Type == models.EventComplete {
			completed = true
			agent.root.Send(parent, messages.ResearchComplete{ReportID: msg.ReportID, Event: ev})
			continue
		}
		agent.root.Send(parent, messages.Progress{ReportID: msg.ReportID, Event: ev})
	}
	if !completed {
		t := time.Now()
		agent.root.Send(parent, messages.ReportError{Error: models.Error{ErrMessage: "research was cancelled", Time: &t}})
	}
	agent.root.Stop(self)
}
