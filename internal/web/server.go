// Package web serves a read-only JSON view of the gateway.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/vitaminmoo/blesync/internal/gateway"
	"github.com/vitaminmoo/blesync/internal/reading"
)

// Source is what the server reports on.
type Source interface {
	Status() gateway.Status
	Readings() reading.Log
}

// Server exposes /health, /status and /readings.
type Server struct {
	src       Source
	logger    *slog.Logger
	accessLog io.Writer
}

// New creates a server. Access logs go to accessLog, or nowhere when nil.
func New(src Source, accessLog io.Writer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if accessLog == nil {
		accessLog = io.Discard
	}
	return &Server{src: src, logger: logger, accessLog: accessLog}
}

// Router returns the bare route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/status", s.status).Methods(http.MethodGet)
	r.HandleFunc("/readings", s.readings).Methods(http.MethodGet)
	return r
}

// Handler returns the router wrapped with access logging and panic recovery.
func (s *Server) Handler() http.Handler {
	recovered := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(s.Router())
	return handlers.LoggingHandler(s.accessLog, recovered)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type peripheralJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type syncJSON struct {
	At    time.Time `json:"at"`
	Count int       `json:"count"`
	Error string    `json:"error,omitempty"`
}

type statusJSON struct {
	State      string           `json:"state"`
	Peripheral *peripheralJSON  `json:"peripheral,omitempty"`
	Scanning   bool             `json:"scanning"`
	Online     bool             `json:"online"`
	Stored     int              `json:"stored"`
	Latest     *reading.Reading `json:"latest,omitempty"`
	LastSync   *syncJSON        `json:"last_sync,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	st := s.src.Status()
	out := statusJSON{
		State:    st.State.String(),
		Scanning: st.Scanning,
		Online:   st.Online,
		Stored:   st.Stored,
		Latest:   st.Latest,
	}
	if st.Peripheral != nil {
		out.Peripheral = &peripheralJSON{ID: st.Peripheral.ID, Name: st.Peripheral.Name}
	}
	if st.LastSync != nil {
		out.LastSync = &syncJSON{At: st.LastSync.At, Count: st.LastSync.Count}
		if st.LastSync.Err != nil {
			out.LastSync.Error = st.LastSync.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// readings returns the stored log. ?limit=N keeps only the newest N.
func (s *Server) readings(w http.ResponseWriter, r *http.Request) {
	log := s.src.Readings()

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		if n < len(log) {
			log = log[len(log)-n:]
		}
	}
	writeJSON(w, http.StatusOK, map[string]reading.Log{"data": log})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
