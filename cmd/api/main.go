package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	zLog "github.com/rs/zerolog/log"

	reportActor "go-alloy/internal/agents/report/actor"
	researcherActor "go-alloy/internal/agents/researcher/actor"
	"go-alloy/internal/api"
	"go-alloy/internal/app"
	"go-alloy/pkg/config"
	"go-alloy/pkg/logger"
)

func main() {
	log.Println("starting server")
	cfg, err := config.Load()
	if err != nil {
		log.Panicf("failed to load config: %v", err)
	}
	err = logger.NewGlobal(cfg.App.LogLevel, cfg.App.LogPretty)
	if err != nil {
		log.Panicf("failed to initialize logger: %v", err)
	}

	deps, err := app.New(context.Background(), cfg)
	if err != nil {
		zLog.Panic().Err(err).Msg("failed to wire dependencies")
	}
	defer deps.Close()

	root := actor.NewActorSystem().Root

	decider := func(reason interface{}) actor.Directive {
		zLog.Error().Msgf("handling failure for child. reason: %v", reason)
		return actor.StopDirective
	}
	strategy := actor.NewOneForOneStrategy(3, 10000, decider)

	researcher := actor.PropsFromProducer(researcherActor.New(root, deps.Researcher))
	runs := actor.PropsFromProducer(reportActor.New(root, deps.Reports, researcher, cfg.Agent.RunTimeout), actor.WithSupervisor(strategy))

	server := api.New(root, api.Options{
		Port:     cfg.App.HTTPPort,
		Runs:     runs,
		Streamer: deps.Reports,
		Reports:  deps.Store,
	})

	go func() {
		err := server.Start()
		if err != nil {
			zLog.Panic().Err(err).Msg("server crash")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	stop()
	zLog.Info().Msg("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		zLog.Panic().Err(err).Msg("server forced to shutdown")
	}

	zLog.Info().Msg("server exiting")
}
