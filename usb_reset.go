package fli

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ResetUSBDevice performs a USB-level reset of the device behind a tty
// path, recovering hardware stuck in an unresponsive state. It needs
// the usbreset utility from usbutils and permissions to use it.
//
// Returns ErrUSBResetNotAvailable if usbreset is not installed and
// ErrUSBInfoNotAvailable if the path is not a USB tty or its sysfs
// metadata cannot be read.
func ResetUSBDevice(path string) error {
	meta, err := usbSysfsInfo(filepath.Base(path))
	if err != nil {
		return err
	}
	if meta.BusNumber == "" || meta.DeviceNumber == "" {
		return ErrUSBInfoNotAvailable
	}

	if !IsUSBResetAvailable() {
		return ErrUSBResetNotAvailable
	}

	// usbreset addresses devices as zero-padded BBB/DDD.
	usbPath := fmt.Sprintf("%03s/%03s", meta.BusNumber, meta.DeviceNumber)

	cmd := exec.Command("usbreset", usbPath)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: usbreset %s: %v (%s)", ErrTransport, usbPath, err,
			strings.TrimSpace(string(output)))
	}

	// Re-enumeration usually takes a second or two.
	time.Sleep(2 * time.Second)
	return nil
}

// ResetUSBDeviceBySerial resets the USB camera or peripheral with the
// given serial number, regardless of which tty it enumerated as.
func ResetUSBDeviceBySerial(serialNumber string) error {
	devices, err := List(DomainUSB)
	if err != nil {
		return err
	}
	for _, d := range devices {
		if d.Serial == serialNumber {
			return ResetUSBDevice(d.Path)
		}
	}
	return fmt.Errorf("%w: no USB device with serial %q", ErrDeviceNotFound, serialNumber)
}

// IsUSBResetAvailable reports whether the usbreset utility is in PATH.
func IsUSBResetAvailable() bool {
	_, err := exec.LookPath("usbreset")
	return err == nil
}
