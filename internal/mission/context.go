package mission

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/OCAP2/dronesim/pkg/core"
)

// Context holds the mission currently being flown and recorded.
type Context struct {
	mu      sync.RWMutex
	Mission *core.Mission
}

// NewContext creates a new Context with default values
func NewContext() *Context {
	return &Context{
		Mission: &core.Mission{MissionName: "No mission loaded"},
	}
}

// GetMission returns the current mission
func (mc *Context) GetMission() *core.Mission {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.Mission
}

// SetMission replaces the current mission.
func (mc *Context) SetMission(mission *core.Mission) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.Mission = mission
}

// Begin starts a fresh mission from template, assigning a new UUID and
// start time. template is copied, not retained.
func (mc *Context) Begin(template core.Mission, start time.Time) *core.Mission {
	m := template
	m.ID = 0
	m.UUID = uuid.NewString()
	m.StartTime = start
	if template.Arena.Obstacles != nil {
		m.Arena.Obstacles = append([]core.Obstacle(nil), template.Arena.Obstacles...)
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.Mission = &m
	return &m
}

// Name returns the current mission name for log context.
func (mc *Context) Name() string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.Mission.MissionName
}
