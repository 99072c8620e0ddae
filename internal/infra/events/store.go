// File: internal/infra/events/store.go
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"video-analysis-platform/internal/domain/model"
)

// Listener receives updates for one job. Registration returns a handle used
// to unsubscribe (func values are not comparable in Go).
type Listener func(model.JobUpdate)

// Store buffers job updates in memory and fans them out to live listeners.
// The inbound webhook and the outbound streaming connections are decoupled in
// time and cardinality: a push may arrive before any reader attaches, and a
// late reader can still replay history. History for a job is garbage-collected
// a fixed retention after its terminal update, to bound memory.
type Store struct {
	mu        sync.Mutex
	retention time.Duration
	updates   map[string][]model.JobUpdate
	subs      map[string]map[int]Listener
	gcTimers  map[string]*time.Timer
	nextSub   int
	log       *zerolog.Logger
}

func NewStore(retention time.Duration, logger *zerolog.Logger) *Store {
	if retention <= 0 {
		retention = time.Hour
	}
	return &Store{
		retention: retention,
		updates:   make(map[string][]model.JobUpdate),
		subs:      make(map[string]map[int]Listener),
		gcTimers:  make(map[string]*time.Timer),
		log:       logger,
	}
}

// Publish appends the update and synchronously delivers it to every listener
// registered at this moment. Returns how many listeners were notified.
// Publishing with zero subscribers is fine; the update stays readable.
func (s *Store) Publish(jobID string, update model.JobUpdate) int {
	if update.ReceivedAt.IsZero() {
		update.ReceivedAt = time.Now()
	}

	s.mu.Lock()
	s.updates[jobID] = append(s.updates[jobID], update)

	// Any fresh update pushes the GC window out; a terminal one arms it.
	if t, ok := s.gcTimers[jobID]; ok {
		t.Stop()
		delete(s.gcTimers, jobID)
	}
	if update.Terminal() {
		s.gcTimers[jobID] = time.AfterFunc(s.retention, func() { s.expire(jobID) })
	}

	listeners := make([]Listener, 0, len(s.subs[jobID]))
	for _, l := range s.subs[jobID] {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	// Deliver outside the lock; one misbehaving listener must not block the rest.
	for _, l := range listeners {
		s.deliver(l, update)
	}
	return len(listeners)
}

func (s *Store) deliver(l Listener, u model.JobUpdate) {
	defer func() {
		if r := recover(); r != nil && s.log != nil {
			s.log.Error().Str("job_id", u.JobID).Interface("panic", r).Msg("event listener panicked")
		}
	}()
	l(u)
}

// Subscribe registers a listener and returns its handle.
func (s *Store) Subscribe(jobID string, l Listener) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	if s.subs[jobID] == nil {
		s.subs[jobID] = make(map[int]Listener)
	}
	s.subs[jobID][id] = l
	return id
}

// Attach snapshots history and registers the listener under one lock, so a
// streaming reader can replay the past and then observe the future with no
// gap and no duplicate in between.
func (s *Store) Attach(jobID string, l Listener) ([]model.JobUpdate, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.updates[jobID]
	out := make([]model.JobUpdate, len(history))
	copy(out, history)

	s.nextSub++
	id := s.nextSub
	if s.subs[jobID] == nil {
		s.subs[jobID] = make(map[int]Listener)
	}
	s.subs[jobID][id] = l
	return out, id
}

// Unsubscribe removes one listener. Removing the last listener does not
// delete stored history; a late subscriber can still read past updates.
func (s *Store) Unsubscribe(jobID string, handle int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.subs[jobID]; m != nil {
		delete(m, handle)
		if len(m) == 0 {
			delete(s.subs, jobID)
		}
	}
}

// Updates returns a copy of the stored history for a job.
func (s *Store) Updates(jobID string) []model.JobUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.updates[jobID]
	out := make([]model.JobUpdate, len(history))
	copy(out, history)
	return out
}

// ListenerCount reports how many listeners are currently attached.
func (s *Store) ListenerCount(jobID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[jobID])
}

func (s *Store) expire(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.updates, jobID)
	delete(s.subs, jobID)
	delete(s.gcTimers, jobID)
	if s.log != nil {
		s.log.Debug().Str("job_id", jobID).Msg("expired job update history")
	}
}

// Close stops pending GC timers. History is in-memory only, nothing to flush.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.gcTimers {
		t.Stop()
		delete(s.gcTimers, id)
	}
}
