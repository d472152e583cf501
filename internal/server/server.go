// Package server exposes the control commands and the live feed over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/OCAP2/dronesim/internal/dispatcher"
	"github.com/OCAP2/dronesim/internal/handlers"
	"github.com/OCAP2/dronesim/internal/script"
	"github.com/OCAP2/dronesim/internal/sim"
	"github.com/OCAP2/dronesim/pkg/streaming"
)

const maxScriptBytes = 1 << 20

// actions maps /api/control/{action} to control commands.
var actions = map[string]string{
	"run":     handlers.CmdRun,
	"toggle":  handlers.CmdToggle,
	"stop":    handlers.CmdStop,
	"reset":   handlers.CmdReset,
	"takeoff": handlers.CmdTakeoff,
	"land":    handlers.CmdLand,
	"home":    handlers.CmdHome,
}

// Dispatcher routes control commands.
type Dispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// Server serves the control API.
type Server struct {
	disp     Dispatcher
	hub      *Hub
	logger   *slog.Logger
	router   *mux.Router
	upgrader websocket.Upgrader
	http     *http.Server
}

// New builds the router. hub may be nil to disable the live feed.
func New(addr string, d Dispatcher, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		disp:   d,
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	// Routes sit on the root router: mux reports a method mismatch inside a
	// subrouter as 404 rather than 405.
	r := mux.NewRouter()
	r.HandleFunc("/api/script", s.handleScript).Methods(http.MethodPost)
	r.HandleFunc("/api/control/{action}", s.handleControl).Methods(http.MethodPost)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/hud", s.handleHUD).Methods(http.MethodGet)
	if hub != nil {
		r.HandleFunc("/api/ws", s.handleWebSocket)
	}
	s.router = r

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control API listening", "addr", s.http.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down control API: %w", err)
		}
		return nil
	}
}

type scriptRequest struct {
	Script string `json:"script"`
}

type errorResponse struct {
	Error string `json:"error"`
	Line  int    `json:"line,omitempty"`
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxScriptBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	text := string(body)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req scriptRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid JSON: %v", err)})
			return
		}
		text = req.Script
	}

	s.dispatch(w, handlers.CmdScript, []string{text})
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	cmd, ok := actions[mux.Vars(r)["action"]]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown action"})
		return
	}
	s.dispatch(w, cmd, nil)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, handlers.CmdStatus, nil)
}

func (s *Server) handleHUD(w http.ResponseWriter, r *http.Request) {
	res, err := s.disp.Dispatch(dispatcher.Event{Command: handlers.CmdStatus, Source: "http"})
	if err != nil {
		writeError(w, err)
		return
	}
	snap, ok := res.(sim.Snapshot)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "unexpected status result"})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, snap.HUD()+"\n")
}

func (s *Server) dispatch(w http.ResponseWriter, cmd string, args []string) {
	res, err := s.disp.Dispatch(dispatcher.Event{Command: cmd, Args: args, Source: "http"})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := s.hub.register(conn)
	defer s.hub.unregister(c)

	if res, err := s.disp.Dispatch(dispatcher.Event{Command: handlers.CmdStatus, Source: "ws"}); err == nil {
		s.hub.sendTo(c, streaming.TypeSnapshot, res)
	}

	for {
		var msg streaming.ControlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read error", "error", err)
			}
			return
		}

		out := streaming.ResultMessage{Command: msg.Command}
		res, err := s.disp.Dispatch(dispatcher.Event{Command: msg.Command, Args: msg.Args, Source: "ws"})
		if err != nil {
			out.Error = err.Error()
		} else {
			out.Result = res
		}
		s.hub.sendTo(c, streaming.TypeResult, out)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var perr *script.ParseError
	switch {
	case errors.As(err, &perr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: perr.Error(), Line: perr.Line})
	case errors.Is(err, script.ErrEmpty):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No script to run."})
	case errors.Is(err, dispatcher.ErrUnknownCommand):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, dispatcher.ErrThrottled):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
