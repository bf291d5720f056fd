// Package hostapi exposes voice sessions over HTTP: archived session
// records and recordings, the sessions running in this process, a websocket
// feed of host events, and Prometheus metrics.
package hostapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stylehub-project/news-sub000/pkg/storage"
	"github.com/stylehub-project/news-sub000/pkg/voicelive"
)

// Options configures a Server. All fields are optional.
type Options struct {
	Archive  *voicelive.Archive
	Files    storage.FileStore
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger

	// EventBuffer is the per-subscriber event queue length.
	EventBuffer int
}

// Server is the HTTP surface of a voicelive process.
type Server struct {
	archive *voicelive.Archive
	files   storage.FileStore
	gather  prometheus.Gatherer
	logger  *slog.Logger
	hub     *Hub

	mu   sync.Mutex
	live map[string]*voicelive.Engine
}

// New creates a Server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "hostapi")
	return &Server{
		archive: opts.Archive,
		files:   opts.Files,
		gather:  opts.Gatherer,
		logger:  logger,
		hub:     NewHub(logger, opts.EventBuffer),
		live:    make(map[string]*voicelive.Engine),
	}
}

// Hub returns the event hub.
func (s *Server) Hub() *Hub { return s.hub }

// Track lists e under /v1/live until it finishes.
func (s *Server) Track(e *voicelive.Engine) {
	id := e.ID()
	s.mu.Lock()
	s.live[id] = e
	s.mu.Unlock()
	go func() {
		<-e.Done()
		s.mu.Lock()
		delete(s.live, id)
		s.mu.Unlock()
	}()
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"live":        s.liveCount(),
			"subscribers": s.hub.Subscribers(),
		})
	})
	if s.gather != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/events", s.hub.ServeHTTP)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.listSessions)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getSession)
				r.Delete("/", s.deleteSession)
				r.Get("/recording", s.getRecording)
			})
		})

		r.Route("/live", func(r chi.Router) {
			r.Get("/", s.listLive)
			r.Get("/{id}", s.getLive)
			r.Delete("/{id}", s.closeLive)
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// sessionSummary is the list view of an archived session.
type sessionSummary struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	Seconds       float64   `json:"seconds"`
	Provider      string    `json:"provider"`
	State         string    `json:"state"`
	Turns         int       `json:"turns"`
	OutputSeconds float64   `json:"output_seconds"`
	Recording     bool      `json:"recording"`
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		respondError(w, http.StatusNotFound, "no session archive")
		return
	}
	records, err := s.archive.List(r.Context())
	if err != nil {
		s.logger.Error("list sessions", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		records = records[:min(n, len(records))]
	}
	out := make([]sessionSummary, 0, len(records))
	for _, rec := range records {
		out = append(out, sessionSummary{
			ID:            rec.ID,
			StartedAt:     rec.StartedAt,
			Seconds:       rec.Duration().Seconds(),
			Provider:      string(rec.Provider),
			State:         rec.State,
			Turns:         len(rec.Turns),
			OutputSeconds: rec.OutputSeconds,
			Recording:     rec.Recording != "",
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) record(w http.ResponseWriter, r *http.Request) (*voicelive.Record, bool) {
	if s.archive == nil {
		respondError(w, http.StatusNotFound, "no session archive")
		return nil, false
	}
	id := chi.URLParam(r, "id")
	rec, err := s.archive.Get(r.Context(), id)
	switch {
	case errors.Is(err, voicelive.ErrRecordNotFound):
		respondError(w, http.StatusNotFound, "session not found")
		return nil, false
	case err != nil:
		s.logger.Error("get session", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load session")
		return nil, false
	}
	return rec, true
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	if rec, ok := s.record(w, r); ok {
		respondJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(w, r)
	if !ok {
		return
	}
	if rec.Recording != "" && s.files != nil {
		if err := s.files.Delete(r.Context(), rec.Recording); err != nil {
			s.logger.Error("delete recording", "id", rec.ID, "path", rec.Recording, "error", err)
			respondError(w, http.StatusInternalServerError, "failed to delete recording")
			return
		}
	}
	if err := s.archive.Delete(r.Context(), rec.ID); err != nil {
		s.logger.Error("delete session", "id", rec.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getRecording(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(w, r)
	if !ok {
		return
	}
	if rec.Recording == "" || s.files == nil {
		respondError(w, http.StatusNotFound, "session has no recording")
		return
	}
	rc, err := s.files.Read(r.Context(), rec.Recording)
	if errors.Is(err, os.ErrNotExist) {
		respondError(w, http.StatusNotFound, "recording missing")
		return
	}
	if err != nil {
		s.logger.Error("read recording", "id", rec.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to read recording")
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", storage.ContentType(rec.Recording))
	w.Header().Set("Content-Disposition", `attachment; filename="`+rec.ID+`.wav"`)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Debug("send recording", "id", rec.ID, "error", err)
	}
}

// liveSession is the view of a running engine.
type liveSession struct {
	ID         string                 `json:"id"`
	State      voicelive.State        `json:"state"`
	Provider   string                 `json:"provider"`
	Microphone bool                   `json:"microphone"`
	Turns      []voicelive.Turn       `json:"turns"`
	Stats      voicelive.SessionStats `json:"stats"`
}

func viewLive(e *voicelive.Engine) liveSession {
	return liveSession{
		ID:         e.ID(),
		State:      e.State(),
		Provider:   string(e.Config().Session.Provider),
		Microphone: e.MicrophoneEnabled(),
		Turns:      e.Transcript(),
		Stats:      e.Stats(),
	}
}

func (s *Server) liveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

func (s *Server) engine(id string) *voicelive.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live[id]
}

func (s *Server) listLive(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	engines := make([]*voicelive.Engine, 0, len(s.live))
	for _, e := range s.live {
		engines = append(engines, e)
	}
	s.mu.Unlock()
	slices.SortFunc(engines, func(a, b *voicelive.Engine) int {
		return strings.Compare(a.ID(), b.ID())
	})
	out := make([]liveSession, 0, len(engines))
	for _, e := range engines {
		out = append(out, viewLive(e))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) getLive(w http.ResponseWriter, r *http.Request) {
	e := s.engine(chi.URLParam(r, "id"))
	if e == nil {
		respondError(w, http.StatusNotFound, "no such live session")
		return
	}
	respondJSON(w, http.StatusOK, viewLive(e))
}

func (s *Server) closeLive(w http.ResponseWriter, r *http.Request) {
	e := s.engine(chi.URLParam(r, "id"))
	if e == nil {
		respondError(w, http.StatusNotFound, "no such live session")
		return
	}
	e.Close()
	select {
	case <-e.Done():
	case <-r.Context().Done():
		return
	}
	respondJSON(w, http.StatusOK, viewLive(e))
}
