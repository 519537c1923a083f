//go:build !linux

package link

import (
	"context"
	"errors"
)

var errUnsupported = errors.New("wireless interfaces are only supported on linux")

// NM is unavailable on this platform.
type NM struct{}

// NewNM always fails outside linux; use Simulated instead.
func NewNM(name string) (*NM, error) {
	return nil, errUnsupported
}

func (n *NM) Close() error { return nil }

func (n *NM) Associate(ctx context.Context, ssid, password string) error { return errUnsupported }

func (n *NM) Connected() bool { return false }

func (n *NM) SignalStrength() int { return 0 }

func (n *NM) LocalAddress() string { return "" }
