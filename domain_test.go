package fli

import "testing"

func TestDomainAccessors(t *testing.T) {
	d := DomainUSB | DeviceCamera
	if d.Interface() != DomainUSB {
		t.Errorf("Interface() = %v, want DomainUSB", d.Interface())
	}
	if d.DeviceType() != DeviceCamera {
		t.Errorf("DeviceType() = %v, want DeviceCamera", d.DeviceType())
	}
}

func TestDomainMatches(t *testing.T) {
	tests := []struct {
		name   string
		d      Domain
		filter Domain
		want   bool
	}{
		{"exact match", DomainUSB | DeviceCamera, DomainUSB | DeviceCamera, true},
		{"wildcard interface", DomainUSB | DeviceCamera, DeviceCamera, true},
		{"wildcard device", DomainUSB | DeviceCamera, DomainUSB, true},
		{"full wildcard", DomainSerial | DeviceFocuser, DomainNone, true},
		{"wrong interface", DomainUSB | DeviceCamera, DomainSerial | DeviceCamera, false},
		{"wrong device", DomainUSB | DeviceCamera, DomainUSB | DeviceFilterWheel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.Matches(tt.filter); got != tt.want {
				t.Errorf("%v.Matches(%v) = %v, want %v", tt.d, tt.filter, got, tt.want)
			}
		})
	}
}

func TestDomainString(t *testing.T) {
	tests := []struct {
		d    Domain
		want string
	}{
		{DomainUSB | DeviceCamera, "usb/camera"},
		{DomainSerial19200 | DeviceFilterWheel, "serial-19200/filterwheel"},
		{DomainInet | DeviceFocuser, "inet/focuser"},
		{DomainNone, "any/any"},
	}

	for _, tt := range tests {
		if got := tt.d.String(); got != tt.want {
			t.Errorf("String(%#x) = %q, want %q", int(tt.d), got, tt.want)
		}
	}
}

func TestParseDomain(t *testing.T) {
	tests := []struct {
		in      string
		want    Domain
		wantErr bool
	}{
		{"usb/camera", DomainUSB | DeviceCamera, false},
		{"serial/focuser", DomainSerial | DeviceFocuser, false},
		{"inet/filterwheel", DomainInet | DeviceFilterWheel, false},
		{"usb", DomainUSB, false},
		{"any/camera", DeviceCamera, false},
		{"", DomainNone, false},
		{"usb/teapot", 0, true},
		{"carrier-pigeon/camera", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDomain(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDomain(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseDomain(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
