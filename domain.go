package fli

import (
	"fmt"
	"strings"
)

// Domain identifies how a device is reached and what kind of device it
// is. It is a bitwise OR of exactly one interface selector and one
// device-type selector, e.g. DomainUSB|DeviceCamera. A zero interface
// or device type acts as a wildcard during enumeration.
type Domain int

// Interface selectors.
const (
	DomainNone         Domain = 0x00
	DomainParallelPort Domain = 0x01
	DomainUSB          Domain = 0x02
	DomainSerial       Domain = 0x03
	DomainInet         Domain = 0x04
	DomainSerial19200  Domain = 0x05
	DomainSerial1200   Domain = 0x06

	// DomainInterfaceMask selects the interface bits of a Domain.
	DomainInterfaceMask Domain = 0x000f
)

// Device-type selectors.
const (
	DeviceNone          Domain = 0x000
	DeviceCamera        Domain = 0x100
	DeviceFilterWheel   Domain = 0x200
	DeviceFocuser       Domain = 0x300
	DeviceHSFilterWheel Domain = 0x400
	DeviceRaw           Domain = 0xf00

	// DomainDeviceMask selects the device-type bits of a Domain.
	DomainDeviceMask Domain = 0x0f00
)

// Interface returns the interface selector bits of d.
func (d Domain) Interface() Domain {
	return d & DomainInterfaceMask
}

// DeviceType returns the device-type selector bits of d.
func (d Domain) DeviceType() Domain {
	return d & DomainDeviceMask
}

// Matches reports whether d satisfies the enumeration filter. A zero
// interface or device type in the filter matches anything.
func (d Domain) Matches(filter Domain) bool {
	if fi := filter.Interface(); fi != DomainNone && fi != d.Interface() {
		return false
	}
	if ft := filter.DeviceType(); ft != DeviceNone && ft != d.DeviceType() {
		return false
	}
	return true
}

func (d Domain) String() string {
	var iface, dev string

	switch d.Interface() {
	case DomainNone:
		iface = "any"
	case DomainParallelPort:
		iface = "parallel"
	case DomainUSB:
		iface = "usb"
	case DomainSerial:
		iface = "serial"
	case DomainInet:
		iface = "inet"
	case DomainSerial19200:
		iface = "serial-19200"
	case DomainSerial1200:
		iface = "serial-1200"
	default:
		iface = fmt.Sprintf("interface(0x%02x)", int(d.Interface()))
	}

	switch d.DeviceType() {
	case DeviceNone:
		dev = "any"
	case DeviceCamera:
		dev = "camera"
	case DeviceFilterWheel:
		dev = "filterwheel"
	case DeviceFocuser:
		dev = "focuser"
	case DeviceHSFilterWheel:
		dev = "hs-filterwheel"
	case DeviceRaw:
		dev = "raw"
	default:
		dev = fmt.Sprintf("device(0x%03x)", int(d.DeviceType()))
	}

	return iface + "/" + dev
}

var interfaceNames = map[string]Domain{
	"parallel":     DomainParallelPort,
	"usb":          DomainUSB,
	"serial":       DomainSerial,
	"inet":         DomainInet,
	"serial-19200": DomainSerial19200,
	"serial-1200":  DomainSerial1200,
}

var deviceNames = map[string]Domain{
	"camera":         DeviceCamera,
	"filterwheel":    DeviceFilterWheel,
	"focuser":        DeviceFocuser,
	"hs-filterwheel": DeviceHSFilterWheel,
	"raw":            DeviceRaw,
}

// ParseDomain parses the textual form produced by Domain.String, e.g.
// "usb/camera". Either side may be "any" or empty to act as a
// wildcard.
func ParseDomain(s string) (Domain, error) {
	ifacePart, devPart, found := strings.Cut(s, "/")
	if !found {
		// A bare interface name is accepted as "all device types".
		devPart = "any"
	}

	var d Domain
	switch ifacePart {
	case "", "any":
	default:
		iface, ok := interfaceNames[strings.ToLower(ifacePart)]
		if !ok {
			return DomainNone, fmt.Errorf("%w: unknown interface %q", ErrInvalidArgument, ifacePart)
		}
		d |= iface
	}
	switch devPart {
	case "", "any":
	default:
		dev, ok := deviceNames[strings.ToLower(devPart)]
		if !ok {
			return DomainNone, fmt.Errorf("%w: unknown device type %q", ErrInvalidArgument, devPart)
		}
		d |= dev
	}
	return d, nil
}
