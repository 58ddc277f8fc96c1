package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	reportHandler "go-alloy/internal/agents/report/handler"
	"go-alloy/pkg/models"
)

var (
	acquirer    string
	target      string
	userContext string
	title       string
	save        bool
)

// researchCmd runs one research and synthesis pipeline in-process
var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Research a deal and print progress events as json lines",
	Example: `  alloy research --acquirer Nike --target Patagonia
  alloy research --acquirer Disney --target Pixar --context "focus on theme parks" --save`,
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().StringVar(&acquirer, "acquirer", "", "acquiring company")
	researchCmd.Flags().StringVar(&target, "target", "", "target company")
	researchCmd.Flags().StringVar(&userContext, "context", "", "extra context for the research")
	researchCmd.Flags().StringVar(&title, "title", "", "report title")
	researchCmd.Flags().BoolVar(&save, "save", false, "persist the finished report")
	_ = researchCmd.MarkFlagRequired("acquirer")
	_ = researchCmd.MarkFlagRequired("target")
}

func runResearch(cmd *cobra.Command, _ []string) error {
	task := models.Task{
		Acquirer:    strings.TrimSpace(acquirer),
		Target:      strings.TrimSpace(target),
		UserContext: strings.TrimSpace(userContext),
	}
	if err := validateTask(task); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := wire(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	saver := reportHandler.Saver(deps.Store)
	if !save {
		saver = nil
	}
	pipeline := reportHandler.New(func(task models.Task) reportHandler.Researcher {
		return deps.Researcher(task)
	}, deps.Synthesizer(), saver)

	return printEvents(cmd.OutOrStdout(), pipeline.Stream(ctx, uuid.New(), title, task))
}

func validateTask(task models.Task) error {
	switch {
	case task.Acquirer == "" || task.Target == "":
		return errors.New("both --acquirer and --target are required")
	case strings.EqualFold(task.Acquirer, task.Target):
		return errors.New("--acquirer and --target must name different companies")
	}
	return nil
}

func printEvents(w io.Writer, events <-chan models.ProgressEvent) error {
	enc := json.NewEncoder(w)
	gotReport := false
	for ev := range events {
		if ev.Type == models.EventReport {
			gotReport = true
		}
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
	}
	if !gotReport {
		return errors.New("research ended before a report was produced")
	}
	return nil
}
