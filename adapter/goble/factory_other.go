//go:build !darwin && !linux

package goble

import (
	"github.com/go-ble/ble"

	"github.com/srg/btman/adapter"
)

// DeviceFactory creates the platform BLE device (overridable in tests).
var DeviceFactory = func() (ble.Device, error) {
	return nil, adapter.ErrUnsupported
}
