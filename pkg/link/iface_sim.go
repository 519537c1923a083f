package link

import (
	"context"
	"errors"
	"sync"
)

// Simulated is an in-memory network interface for development hosts.
type Simulated struct {
	mu        sync.Mutex
	connected bool
	rssi      int
	addr      string
	failing   bool
}

// NewSimulated returns an interface that associates instantly and reports
// the given signal strength.
func NewSimulated(rssi int) *Simulated {
	return &Simulated{rssi: rssi, addr: "127.0.0.1"}
}

func (s *Simulated) Associate(ctx context.Context, ssid, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("simulated association failure")
	}
	s.connected = true
	return ctx.Err()
}

func (s *Simulated) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Simulated) SignalStrength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return 0
	}
	return s.rssi
}

func (s *Simulated) LocalAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ""
	}
	return s.addr
}

// SetRSSI changes the reported signal strength.
func (s *Simulated) SetRSSI(rssi int) {
	s.mu.Lock()
	s.rssi = rssi
	s.mu.Unlock()
}

// Drop disconnects the link. When fail is set, later associations fail
// until Drop is called again with fail unset.
func (s *Simulated) Drop(fail bool) {
	s.mu.Lock()
	s.connected = false
	s.failing = fail
	s.mu.Unlock()
}
