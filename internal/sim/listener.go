package sim

// Listener observes the simulation. Callbacks run on the goroutine that
// drove the change, after the simulation lock is released, so a listener may
// call back into the Simulation.
type Listener interface {
	OnStatus(StatusEvent)
	OnCommand(CommandEvent)
	OnSnapshot(Snapshot)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Status   func(StatusEvent)
	Command  func(CommandEvent)
	Snapshot func(Snapshot)
}

func (f ListenerFuncs) OnStatus(e StatusEvent) {
	if f.Status != nil {
		f.Status(e)
	}
}

func (f ListenerFuncs) OnCommand(e CommandEvent) {
	if f.Command != nil {
		f.Command(e)
	}
}

func (f ListenerFuncs) OnSnapshot(s Snapshot) {
	if f.Snapshot != nil {
		f.Snapshot(s)
	}
}

type notice struct {
	status   *StatusEvent
	command  *CommandEvent
	snapshot *Snapshot
}

func deliver(listeners []Listener, notices []notice) {
	for _, n := range notices {
		for _, l := range listeners {
			switch {
			case n.status != nil:
				l.OnStatus(*n.status)
			case n.command != nil:
				l.OnCommand(*n.command)
			case n.snapshot != nil:
				l.OnSnapshot(*n.snapshot)
			}
		}
	}
}
