//go:build !(linux && arm64)

package camera

import "fmt"

// OpenPlatformDevice is a stub for platforms without a Raspberry Pi camera.
func OpenPlatformDevice() (Device, error) {
	return nil, fmt.Errorf("raspberry pi camera not available on this platform")
}
