package engine

import (
	"sync"
	"time"

	"morse/pkg/protocol"
)

// Reading is the last observed value for one sensor kind. It is a
// cache, not a live poll: At says when it arrived.
type Reading struct {
	Kind    protocol.SensorKind
	Data    any
	Payload []byte
	At      time.Time
}

// Snapshot caches the latest reading per sensor kind. The reader loop
// is the only writer; any goroutine may read.
type Snapshot struct {
	mu       sync.RWMutex
	readings map[protocol.SensorKind]Reading
}

func NewSnapshot() *Snapshot {
	return &Snapshot{readings: make(map[protocol.SensorKind]Reading)}
}

func (s *Snapshot) update(ev protocol.Event) {
	s.mu.Lock()
	s.readings[ev.Sensor] = Reading{
		Kind:    ev.Sensor,
		Data:    ev.Data,
		Payload: ev.Payload,
		At:      ev.ReceivedAt,
	}
	s.mu.Unlock()
}

// Get returns the last reading for kind, if any has arrived yet.
func (s *Snapshot) Get(kind protocol.SensorKind) (Reading, bool) {
	s.mu.RLock()
	r, ok := s.readings[kind]
	s.mu.RUnlock()
	return r, ok
}

// All returns a copy of every cached reading.
func (s *Snapshot) All() map[protocol.SensorKind]Reading {
	s.mu.RLock()
	out := make(map[protocol.SensorKind]Reading, len(s.readings))
	for kind, r := range s.readings {
		out[kind] = r
	}
	s.mu.RUnlock()
	return out
}

func (s *Snapshot) reset() {
	s.mu.Lock()
	s.readings = make(map[protocol.SensorKind]Reading)
	s.mu.Unlock()
}
