// Package journal keeps a small on-disk record of boots, recoveries and
// fatal escalations so they survive restarts.
package journal

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Kind classifies an event.
type Kind string

const (
	KindBoot     Kind = "boot"
	KindRecovery Kind = "recovery"
	KindFatal    Kind = "fatal"
)

// DefaultRetention is how long events are kept.
const DefaultRetention = 7 * 24 * time.Hour

// maxEvents caps the file size on small flash storage.
const maxEvents = 200

type Event struct {
	Kind      Kind      `json:"kind"`
	Reason    string    `json:"reason,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is a JSON file of events.
type Store struct {
	mu        sync.Mutex
	path      string
	retention time.Duration
	now       func() time.Time
}

func New(path string, retention time.Duration) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{path: path, retention: retention, now: time.Now}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// read returns the events on disk. A missing or corrupted file reads as
// empty; the next Add overwrites it.
func (s *Store) read() ([]Event, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Event{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return []Event{}, nil
	}
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return []Event{}, nil
	}
	return events, nil
}

// Add appends e, drops events older than the retention window and saves.
// A zero timestamp is set to now.
func (s *Store) Add(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	events, err := s.read()
	if err != nil {
		return err
	}
	events = append(events, e)

	cutoff := s.now().Add(-s.retention)
	recent := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.Timestamp.After(cutoff) {
			recent = append(recent, ev)
		}
	}
	if len(recent) > maxEvents {
		recent = recent[len(recent)-maxEvents:]
	}

	data, err := json.MarshalIndent(recent, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// List returns all events, newest first.
func (s *Store) List() ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.read()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// Last returns the newest event of the given kind.
func (s *Store) Last(kind Kind) (Event, bool, error) {
	events, err := s.List()
	if err != nil {
		return Event{}, false, err
	}
	for _, e := range events {
		if e.Kind == kind {
			return e, true, nil
		}
	}
	return Event{}, false, nil
}
