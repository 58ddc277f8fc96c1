package logger

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	AgentNameField  = "agent"
	ActorIDField    = "actor"
	ReportIDField   = "report"
	TurnField       = "turn"
	ToolField       = "tool"
	TermField       = "term"
	EntityTypeField = "entity_type"
	ServiceField    = "service"
)

func NewGlobal(level string, pretty bool) error {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}

	zerolog.SetGlobalLevel(l)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return nil
}
