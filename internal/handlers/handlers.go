// Package handlers binds the control commands to the simulation.
package handlers

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/OCAP2/dronesim/internal/dispatcher"
	"github.com/OCAP2/dronesim/internal/script"
	"github.com/OCAP2/dronesim/internal/sim"
	"github.com/OCAP2/dronesim/internal/status"
)

// Control command names.
const (
	CmdScript  = ":SCRIPT:"
	CmdRun     = ":RUN:"
	CmdToggle  = ":TOGGLE:"
	CmdStop    = ":STOP:"
	CmdReset   = ":RESET:"
	CmdTakeoff = ":TAKEOFF:"
	CmdLand    = ":LAND:"
	CmdHome    = ":HOME:"
	CmdStatus  = ":STATUS:"
)

// Simulator is the part of sim.Simulation the handlers drive.
type Simulator interface {
	RunScript(text string) (int, error)
	Toggle() sim.RunState
	Stop()
	Reset()
	Takeoff() status.Event
	Land() status.Event
	ReturnHome()
	Snapshot() sim.Snapshot
	Status() status.Event
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Sim    Simulator
	Logger *slog.Logger
	// DefaultScript is run by :RUN: when no text is given.
	DefaultScript string
	// OnReset is called after the vehicle has been reset.
	OnReset func()
}

// ScriptResult is returned by :SCRIPT: and :RUN:.
type ScriptResult struct {
	Queued int    `json:"queued"`
	Status string `json:"status"`
}

// ActionResult is returned by the commands that only change state.
type ActionResult struct {
	State  string       `json:"state"`
	Status status.Event `json:"status"`
}

// toggleDebounce ignores key auto-repeat on run/pause.
const toggleDebounce = 150 * time.Millisecond

// Service provides the control command handlers.
type Service struct {
	deps Dependencies
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.DefaultScript == "" {
		deps.DefaultScript = script.DefaultScript
	}
	return &Service{deps: deps}
}

// Register adds every control command to d.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(CmdScript, s.handleScript, dispatcher.Logged())
	d.Register(CmdRun, s.handleRun, dispatcher.Logged())
	d.Register(CmdToggle, s.handleToggle, dispatcher.Logged(), dispatcher.Throttled(toggleDebounce))
	d.Register(CmdStop, s.handleStop, dispatcher.Logged())
	d.Register(CmdReset, s.handleReset, dispatcher.Logged())
	d.Register(CmdTakeoff, s.handleTakeoff, dispatcher.Logged())
	d.Register(CmdLand, s.handleLand, dispatcher.Logged())
	d.Register(CmdHome, s.handleHome, dispatcher.Logged())
	d.Register(CmdStatus, s.handleStatus)
}

// Args carry one script line each, or the whole script in a single arg.
func (s *Service) handleScript(e dispatcher.Event) (any, error) {
	return s.runScript(strings.Join(e.Args, "\n"), e.Source)
}

func (s *Service) handleRun(e dispatcher.Event) (any, error) {
	text := strings.Join(e.Args, "\n")
	if strings.TrimSpace(text) == "" {
		text = s.deps.DefaultScript
	}
	return s.runScript(text, e.Source)
}

func (s *Service) runScript(text, source string) (any, error) {
	n, err := s.deps.Sim.RunScript(text)
	res := ScriptResult{Queued: n, Status: s.deps.Sim.Status().Detail}
	if err != nil {
		var perr *script.ParseError
		if errors.As(err, &perr) {
			s.deps.Logger.Warn("script rejected", "line", perr.Line, "text", perr.Text, "source", source)
		}
		return res, err
	}
	s.deps.Logger.Info("script queued", "commands", n, "source", source)
	return res, nil
}

func (s *Service) handleToggle(e dispatcher.Event) (any, error) {
	state := s.deps.Sim.Toggle()
	return s.action(state), nil
}

func (s *Service) handleStop(e dispatcher.Event) (any, error) {
	s.deps.Sim.Stop()
	return s.action(sim.Paused), nil
}

func (s *Service) handleReset(e dispatcher.Event) (any, error) {
	s.deps.Sim.Reset()
	if s.deps.OnReset != nil {
		s.deps.OnReset()
	}
	return s.action(sim.Paused), nil
}

func (s *Service) handleTakeoff(e dispatcher.Event) (any, error) {
	ev := s.deps.Sim.Takeoff()
	return ActionResult{State: s.deps.Sim.Snapshot().State, Status: ev}, nil
}

func (s *Service) handleLand(e dispatcher.Event) (any, error) {
	ev := s.deps.Sim.Land()
	return ActionResult{State: s.deps.Sim.Snapshot().State, Status: ev}, nil
}

func (s *Service) handleHome(e dispatcher.Event) (any, error) {
	s.deps.Sim.ReturnHome()
	return ActionResult{State: s.deps.Sim.Snapshot().State, Status: s.deps.Sim.Status()}, nil
}

func (s *Service) handleStatus(e dispatcher.Event) (any, error) {
	return s.deps.Sim.Snapshot(), nil
}

func (s *Service) action(state sim.RunState) ActionResult {
	return ActionResult{State: state.String(), Status: s.deps.Sim.Status()}
}
