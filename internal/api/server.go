package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"go-alloy/internal/store"
	"go-alloy/pkg/logger"
	"go-alloy/pkg/messages"
	"go-alloy/pkg/models"
)

type command struct {
	Acquirer    string `json:"acquirer_brand"`
	Target      string `json:"target_brand"`
	UserContext string `json:"context,omitempty"`
	Title       string `json:"title,omitempty"`
}

func (c command) task() models.Task {
	return models.Task{
		Acquirer:    strings.TrimSpace(c.Acquirer),
		Target:      strings.TrimSpace(c.Target),
		UserContext: strings.TrimSpace(c.UserContext),
	}
}

func (c command) validate() error {
	t := c.task()
	switch {
	case t.Acquirer == "":
		return errors.New("acquirer_brand is required")
	case t.Target == "":
		return errors.New("target_brand is required")
	case strings.EqualFold(t.Acquirer, t.Target):
		return errors.New("acquirer_brand and target_brand must differ")
	}
	return nil
}

type getStatus struct {
	Status models.Status `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Reports interface {
	Load(ctx context.Context, id uuid.UUID) (models.Report, error)
	List(ctx context.Context, limit int) ([]store.Summary, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Streamer interface {
	Stream(ctx context.Context, id uuid.UUID, title string, task models.Task) <-chan models.ProgressEvent
}

type Options struct {
	Port int
	// Runs builds the actor that hosts one async report run.
	Runs     *actor.Props
	Streamer Streamer
	Reports  Reports
}

type Server struct {
	ac     *actor.RootContext
	opts   Options
	server *http.Server
	state  *requestsCache
}

func New(ac *actor.RootContext, opts Options) *Server {
	s := &Server{ac: ac, opts: opts, state: newRequestsCache()}
	s.server = &http.Server{
		Addr:              fmt.Sprint(":", opts.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(logMiddleware())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/reports", func(r chi.Router) {
		r.Post("/", s.newReport)
		r.Post("/stream", s.streamReport)
		r.Get("/", s.listReports)
		r.Get("/{id}", s.getReport)
		r.Delete("/{id}", s.deleteReport)
		r.Get("/{id}/status", s.reportStatus)
	})
	return r
}

func (s *Server) newReport(w http.ResponseWriter, r *http.Request) {
	log.Debug().Msg("new report request")
	cmd, ok := decodeCommand(w, r)
	if !ok {
		return
	}

	pid := s.ac.Spawn(s.opts.Runs)
	id := uuid.New()
	s.ac.Send(pid, messages.NewReport{ReportID: id, Title: cmd.Title, Task: cmd.task()})
	s.state.add(id, pid)

	log.Debug().Str(logger.ReportIDField, id.String()).Msg("report job has been started")
	w.WriteHeader(http.StatusAccepted)
	render.JSON(w, r, struct {
		Id string `json:"id"`
	}{id.String()})
}

// streamReport runs a report in-process. Clients sending
// Accept: text/event-stream get server-sent events; others get a JSON array
// once the run ends.
func (s *Server) streamReport(w http.ResponseWriter, r *http.Request) {
	cmd, ok := decodeCommand(w, r)
	if !ok {
		return
	}
	id := uuid.New()
	log.Debug().Str(logger.ReportIDField, id.String()).Msg("report stream has been started")
	render.Respond(w, r, s.opts.Streamer.Stream(r.Context(), id, cmd.Title, cmd.task()))
}

func (s *Server) reportStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	pid, ok := s.state.get(id)
	if !ok {
		// finished runs from an earlier process only live in the store
		report, err := s.opts.Reports.Load(r.Context(), id)
		if err != nil {
			s.storeError(w, r, id, err)
			return
		}
		render.JSON(w, r, getStatus{models.Status{ReportID: id, State: models.Finished, Events: []models.ProgressEvent{}, Report: &report}})
		return
	}

	future := s.ac.RequestFuture(pid, messages.GetStatus{}, 10*time.Second) // blocking
	res, err := future.Result()
	if err != nil {
		s.state.remove(id)
		log.Error().Str(logger.ReportIDField, id.String()).Err(err).Msg("unable to get status from actor")
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: "unable to get status"})
		return
	}
	status, ok := res.(models.Status)
	if !ok {
		log.Error().Str(logger.ReportIDField, id.String()).Msgf("unknown status from actor: %T", res)
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: "unable to get status"})
		return
	}
	render.JSON(w, r, getStatus{status})
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	list, err := s.opts.Reports.List(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("unable to list reports")
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: "unable to list reports"})
		return
	}
	render.JSON(w, r, list)
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	report, err := s.opts.Reports.Load(r.Context(), id)
	if err != nil {
		s.storeError(w, r, id, err)
		return
	}
	render.JSON(w, r, report)
}

func (s *Server) deleteReport(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := s.opts.Reports.Delete(r.Context(), id); err != nil {
		s.storeError(w, r, id, err)
		return
	}
	if pid, ok := s.state.get(id); ok {
		s.ac.Stop(pid)
		s.state.remove(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) storeError(w http.ResponseWriter, r *http.Request, id uuid.UUID, err error) {
	if errors.Is(err, store.ErrNotFound) {
		log.Debug().Str(logger.ReportIDField, id.String()).Msg("cannot find id")
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, errorResponse{Error: "report not found"})
		return
	}
	log.Error().Err(err).Str(logger.ReportIDField, id.String()).Msg("report store failure")
	w.WriteHeader(http.StatusInternalServerError)
	render.JSON(w, r, errorResponse{Error: "report store failure"})
}

func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("http server starting")
	err := s.server.ListenAndServe()
	if err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	return nil
}

func logMiddleware() func(http.Handler) http.Handler {
	c := alice.New()
	c = c.Append(hlog.NewHandler(log.Logger))
	c = c.Append(hlog.RemoteAddrHandler("ip"))
	c = c.Append(hlog.UserAgentHandler("agent"))
	c = c.Append(hlog.RefererHandler("referer"))
	c = c.Append(hlog.RequestIDHandler("req_id", "Request-Id"))
	c = c.Append(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("verb", r.Method).
			Stringer("url", r.URL).
			Int("size", size).
			Int("status", status).
			Int64("duration", duration.Milliseconds()).
			Msg("REQ")
	}))

	return c.Then
}

func decodeCommand(w http.ResponseWriter, r *http.Request) (command, bool) {
	cmd := command{}
	if err := unmarshalRequestBody(r, &cmd); err != nil {
		log.Debug().Err(err).Msg("cannot parse body")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: "unable to parse body"})
		return command{}, false
	}
	if err := cmd.validate(); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, errorResponse{Error: err.Error()})
		return command{}, false
	}
	return cmd, true
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		log.Debug().Msg("cannot parse id")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: "unable to parse id"})
		return uuid.Nil, false
	}
	return id, true
}

func unmarshalRequestBody(req *http.Request, output interface{}) error {
	if req.Body == nil {
		return errors.New("invalid body in request")
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}
	if err = req.Body.Close(); err != nil {
		return err
	}
	if err = json.Unmarshal(body, &output); err != nil {
		return err
	}

	return nil
}
