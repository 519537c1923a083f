//go:build linux

package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mdlayher/wifi"
)

// NM drives a wireless interface through NetworkManager for association
// and nl80211 for status and signal strength.
type NM struct {
	name string

	mu     sync.Mutex
	client *wifi.Client
}

// NewNM opens the wireless interface called name. An empty name selects
// the first station interface.
func NewNM(name string) (*NM, error) {
	client, err := wifi.New()
	if err != nil {
		return nil, fmt.Errorf("failed to open nl80211: %w", err)
	}
	n := &NM{name: name, client: client}
	ifi, err := n.lookup()
	if err != nil {
		client.Close()
		return nil, err
	}
	n.name = ifi.Name
	slog.Info("Using wireless interface", "name", n.name, "mac", ifi.HardwareAddr)
	return n, nil
}

// Close releases the nl80211 socket.
func (n *NM) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.client.Close()
}

func (n *NM) lookup() (*wifi.Interface, error) {
	ifis, err := n.client.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list wireless interfaces: %w", err)
	}
	for _, ifi := range ifis {
		if n.name == "" && ifi.Type == wifi.InterfaceTypeStation && ifi.Name != "" {
			return ifi, nil
		}
		if n.name != "" && ifi.Name == n.name {
			return ifi, nil
		}
	}
	if n.name == "" {
		return nil, errors.New("no wireless station interface found")
	}
	return nil, fmt.Errorf("wireless interface %q not found", n.name)
}

func (n *NM) Associate(ctx context.Context, ssid, password string) error {
	wait := 0
	if deadline, ok := ctx.Deadline(); ok {
		wait = int(time.Until(deadline).Seconds())
	}
	args := []string{"--wait", strconv.Itoa(max(wait, 1)), "device", "wifi", "connect", ssid, "password", password, "ifname", n.name}
	out, err := exec.CommandContext(ctx, "nmcli", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("nmcli connect: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (n *NM) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	ifi, err := n.lookup()
	if err != nil {
		return false
	}
	bss, err := n.client.BSS(ifi)
	if err != nil || bss.Status != wifi.BSSStatusAssociated {
		return false
	}
	return localIPv4(n.name) != ""
}

func (n *NM) SignalStrength() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	ifi, err := n.lookup()
	if err != nil {
		return 0
	}
	stations, err := n.client.StationInfo(ifi)
	if err != nil || len(stations) == 0 {
		return 0
	}
	return stations[0].Signal
}

func (n *NM) LocalAddress() string {
	return localIPv4(n.name)
}

func localIPv4(name string) string {
	ifc, err := net.InterfaceByName(name)
	if err != nil {
		return ""
	}
	addrs, err := ifc.Addrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return ""
}
