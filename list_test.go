package fli

import (
	"errors"
	"strings"
	"testing"
)

func TestListSimulatedBench(t *testing.T) {
	Simulate(5000)

	devices, err := List(DomainUSB)
	if err != nil {
		t.Fatalf("List(DomainUSB) failed: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("List(DomainUSB) = %d devices, want 3", len(devices))
	}

	cameras, err := List(DomainUSB | DeviceCamera)
	if err != nil {
		t.Fatalf("List(camera) failed: %v", err)
	}
	if len(cameras) != 1 || cameras[0].Name != "FLI-04" {
		t.Errorf("camera listing = %+v, want single FLI-04", cameras)
	}
	if cameras[0].Domain != DomainUSB|DeviceCamera {
		t.Errorf("camera domain = %v, want usb/camera", cameras[0].Domain)
	}
}

func TestDeviceListIterator(t *testing.T) {
	Simulate(5000)

	list, err := NewDeviceList(DomainUSB)
	if err != nil {
		t.Fatalf("NewDeviceList failed: %v", err)
	}
	if list.Len() != 3 {
		t.Fatalf("Len = %d, want 3", list.Len())
	}

	var names []string
	d, ok := list.First()
	for ok {
		names = append(names, d.Name)
		d, ok = list.Next()
	}
	if len(names) != 3 {
		t.Errorf("iterated %d devices, want 3", len(names))
	}

	// First rewinds.
	if d, ok := list.First(); !ok || d.Name != names[0] {
		t.Errorf("First after iteration = %v %v, want %s", d.Name, ok, names[0])
	}

	if err := list.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, ok := list.Next(); ok {
		t.Error("Next returned a device after Close")
	}
	if list.Len() != 0 {
		t.Error("Len nonzero after Close")
	}
	if err := list.Close(); !errors.Is(err, ErrListClosed) {
		t.Errorf("second Close = %v, want ErrListClosed", err)
	}
}

func TestSerialDiscovery(t *testing.T) {
	// Host-dependent: asserts the scan stays inside /dev and returns
	// only well-formed entries, whatever hardware is present.
	devices, err := List(DomainSerial)
	if err != nil {
		t.Fatalf("List(DomainSerial) failed: %v", err)
	}
	for _, d := range devices {
		if !strings.HasPrefix(d.Path, "/dev/") {
			t.Errorf("device path outside /dev: %s", d.Path)
		}
		if d.Domain.Interface() != DomainSerial {
			t.Errorf("device domain = %v, want serial interface", d.Domain)
		}
	}
}

func TestIsCharacterDevice(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"/dev/null", true},
		{"/dev/zero", true},
		{"/tmp", false},
		{"/nonexistent", false},
	}

	for _, tt := range tests {
		if got := isCharacterDevice(tt.path); got != tt.expected {
			t.Errorf("isCharacterDevice(%s) = %v, expected %v", tt.path, got, tt.expected)
		}
	}
}

func TestInetProbeNoDiscovery(t *testing.T) {
	devices, err := List(DomainInet)
	if err != nil {
		t.Fatalf("List(DomainInet) failed: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("inet discovery returned %d devices, want 0", len(devices))
	}
}
