// Package playback schedules decoded audio units for gapless sequential
// playback against a monotonic cursor.
package playback

import (
	"errors"
	"sync"
	"time"

	"ai-voice-tutor/internal/service/codec"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("playback: scheduler closed")

// Voice is one unit that has been handed to an Output.
type Voice interface {
	// Stop halts the unit. onEnded is not invoked after Stop.
	Stop()
}

// Output is an audio device with its own clock.
type Output interface {
	// CurrentTime is the output clock, starting at zero.
	CurrentTime() time.Duration

	// Start plays unit beginning at clock time at. onEnded must be invoked
	// asynchronously (never from within Start) once playback finishes.
	Start(unit *codec.PlaybackUnit, at time.Duration, onEnded func()) (Voice, error)
}

// Scheduler tracks the playback cursor and the set of sounding units.
type Scheduler struct {
	out    Output
	onIdle func()

	mu        sync.Mutex
	nextStart time.Duration
	active    map[uint64]Voice
	seq       uint64
	closed    bool
}

// NewScheduler returns a scheduler with its cursor at zero. onIdle, if not
// nil, runs every time a completion leaves the active set empty.
func NewScheduler(out Output, onIdle func()) *Scheduler {
	return &Scheduler{
		out:    out,
		onIdle: onIdle,
		active: make(map[uint64]Voice),
	}
}

// Enqueue schedules unit at max(cursor, current time) and advances the cursor
// by the unit's duration. It returns the scheduled start time.
func (s *Scheduler) Enqueue(unit *codec.PlaybackUnit) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	start := s.nextStart
	if now := s.out.CurrentTime(); now > start {
		start = now
	}

	s.seq++
	id := s.seq
	voice, err := s.out.Start(unit, start, func() { s.ended(id) })
	if err != nil {
		return 0, err
	}

	s.active[id] = voice
	s.nextStart = start + unit.Duration()
	return start, nil
}

func (s *Scheduler) ended(id uint64) {
	s.mu.Lock()
	if _, ok := s.active[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.active, id)
	idle := len(s.active) == 0
	s.mu.Unlock()

	if idle && s.onIdle != nil {
		s.onIdle()
	}
}

// IsPlaying reports whether any unit is scheduled or sounding.
func (s *Scheduler) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) > 0
}

// Active returns the size of the active set.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// NextStartTime returns the playback cursor.
func (s *Scheduler) NextStartTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

// StopAll halts every active unit and clears the set.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	voices := s.active
	s.active = make(map[uint64]Voice)
	s.mu.Unlock()

	for _, v := range voices {
		v.Stop()
	}
}

// Close stops all playback and rejects further units. Idempotent.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.StopAll()
}
