package worker

import (
	"github.com/OCAP2/dronesim/internal/geo"
	"github.com/OCAP2/dronesim/internal/sim"
	"github.com/OCAP2/dronesim/internal/status"
	"github.com/OCAP2/dronesim/pkg/core"
)

// VehicleState converts a snapshot. proj may be nil.
func VehicleState(s sim.Snapshot, proj *geo.Projector) core.VehicleState {
	st := core.VehicleState{
		Time:     s.Time,
		Tick:     s.Tick,
		Position: core.Position2D{X: s.X, Y: s.Y},
		Heading:  s.Heading,
		Speed:    s.Speed,
		Altitude: s.Altitude,
		Battery:  s.Battery,
		Flying:   s.Flying,
		RunState: s.State,
		QueueLen: s.QueueLen,
		Command:  s.Current,
	}
	if proj != nil {
		st.Geo = proj.Position(s.X, s.Y, s.Altitude)
	} else {
		st.Geo.Altitude = s.Altitude
	}
	return st
}

func StatusEvent(e sim.StatusEvent) core.StatusEvent {
	return core.StatusEvent{
		Time:   e.Time,
		Tick:   e.Tick,
		Kind:   e.Kind.String(),
		Detail: e.Detail,
	}
}

func CommandEvent(e sim.CommandEvent) core.CommandEvent {
	ev := core.CommandEvent{
		Time:    e.Time,
		Tick:    e.Tick,
		Kind:    string(e.Kind),
		Command: e.Command,
		Phase:   string(e.Phase),
	}
	if e.Outcome != status.None {
		ev.Outcome = e.Outcome.String()
	}
	return ev
}
