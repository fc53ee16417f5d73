package fli

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// DeviceInfo describes one discovered device. Values are immutable
// snapshots from the enumeration pass that produced them; rediscovery
// requires a new List or NewDeviceList call.
type DeviceInfo struct {
	Name   string // human-readable device name
	Path   string // transport address (tty path or host:port)
	Domain Domain // interface and device type
	Model  string
	Serial string
}

// Probe discovers devices on one interface domain and dials their
// transports. RegisterProbe swaps implementations, which is how the
// simulated hardware and any future transports plug in.
type Probe interface {
	// Discover returns devices of the given type (DeviceNone for all)
	// reachable through this interface. Finding nothing is not an
	// error.
	Discover(devType Domain) ([]DeviceInfo, error)
	// Dial opens the byte transport for a discovered device path.
	Dial(path string, dbg *Debug) (Transport, error)
}

var (
	probeMu sync.RWMutex
	probes  = map[Domain]Probe{
		DomainUSB:         usbProbe{},
		DomainSerial:      serialProbe{iface: DomainSerial},
		DomainSerial19200: serialProbe{iface: DomainSerial19200},
		DomainSerial1200:  serialProbe{iface: DomainSerial1200},
		DomainInet:        inetProbe{},
	}
)

// RegisterProbe installs p as the discoverer for an interface domain,
// replacing any existing one. A nil p removes the domain.
func RegisterProbe(iface Domain, p Probe) {
	probeMu.Lock()
	defer probeMu.Unlock()
	if p == nil {
		delete(probes, iface)
		return
	}
	probes[iface.Interface()] = p
}

func probeFor(iface Domain) (Probe, bool) {
	probeMu.RLock()
	defer probeMu.RUnlock()
	p, ok := probes[iface.Interface()]
	return p, ok
}

// List enumerates devices matching the domain filter. A zero interface
// or device type matches all; List(0) scans every domain. Devices are
// returned in discovery order, and an empty result is not an error.
func List(domain Domain) ([]DeviceInfo, error) {
	probeMu.RLock()
	var ifaces []Domain
	if want := domain.Interface(); want != DomainNone {
		ifaces = append(ifaces, want)
	} else {
		for iface := range probes {
			ifaces = append(ifaces, iface)
		}
	}
	probeMu.RUnlock()

	// Stable scan order across domains so repeated calls on unchanged
	// hardware agree.
	sort.Slice(ifaces, func(i, j int) bool { return ifaces[i] < ifaces[j] })

	var devices []DeviceInfo
	for _, iface := range ifaces {
		p, ok := probeFor(iface)
		if !ok {
			continue
		}
		found, err := p.Discover(domain.DeviceType())
		if err != nil {
			return nil, fmt.Errorf("discovery on %v: %w", iface, err)
		}
		devices = append(devices, found...)
	}
	return devices, nil
}

// DeviceList is an iterator view over one enumeration snapshot, for
// callers wanting incremental consumption instead of a materialized
// slice. The snapshot is taken at NewDeviceList time.
type DeviceList struct {
	mu      sync.Mutex
	devices []DeviceInfo
	pos     int
	closed  bool
}

// NewDeviceList enumerates devices matching domain and returns an
// iterator over the snapshot.
func NewDeviceList(domain Domain) (*DeviceList, error) {
	devices, err := List(domain)
	if err != nil {
		return nil, err
	}
	return &DeviceList{devices: devices}, nil
}

// First rewinds the iterator and returns the first device.
func (l *DeviceList) First() (DeviceInfo, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || len(l.devices) == 0 {
		return DeviceInfo{}, false
	}
	l.pos = 1
	return l.devices[0], true
}

// Next returns the next device in the snapshot.
func (l *DeviceList) Next() (DeviceInfo, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.pos >= len(l.devices) {
		return DeviceInfo{}, false
	}
	d := l.devices[l.pos]
	l.pos++
	return d, true
}

// Len returns the number of devices in the snapshot.
func (l *DeviceList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0
	}
	return len(l.devices)
}

// Close releases the snapshot. Further calls report no devices;
// closing twice returns ErrListClosed.
func (l *DeviceList) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrListClosed
	}
	l.closed = true
	l.devices = nil
	return nil
}

// ---- serial probe ----

// serialProbe walks /dev for platform serial ports. USB-serial bridges
// (ttyUSB/ttyACM) belong to the USB probe and are excluded here.
type serialProbe struct {
	iface Domain
}

// Patterns for native serial devices across platforms.
var serialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^ttyS\d+$`),   // Standard serial ports
	regexp.MustCompile(`^ttyAMA\d+$`), // ARM/Raspberry Pi serial
	regexp.MustCompile(`^ttymxc\d+$`), // i.MX serial ports
	regexp.MustCompile(`^ttyO\d+$`),   // OMAP serial ports
	regexp.MustCompile(`^ttySAC\d+$`), // Samsung serial ports
	regexp.MustCompile(`^ttyTHS\d+$`), // Tegra serial ports
}

func (p serialProbe) Discover(devType Domain) ([]DeviceInfo, error) {
	names, err := scanDev(serialPatterns)
	if err != nil {
		return nil, err
	}

	var devices []DeviceInfo
	for _, name := range names {
		devices = append(devices, DeviceInfo{
			Name:   name,
			Path:   filepath.Join("/dev", name),
			Domain: p.iface | orRaw(devType),
		})
	}
	return devices, nil
}

func (p serialProbe) Dial(path string, dbg *Debug) (Transport, error) {
	return openSerial(path, p.iface, dbg)
}

// ---- USB probe ----

// usbProbe finds USB-attached instruments behind ttyUSB/ttyACM bridge
// devices and enriches them with sysfs metadata.
type usbProbe struct{}

var usbPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^ttyUSB\d+$`), // USB serial adapters
	regexp.MustCompile(`^ttyACM\d+$`), // USB CDC/ACM devices
}

func (usbProbe) Discover(devType Domain) ([]DeviceInfo, error) {
	names, err := scanDev(usbPatterns)
	if err != nil {
		return nil, err
	}

	var devices []DeviceInfo
	for _, name := range names {
		info := DeviceInfo{
			Name:   name,
			Path:   filepath.Join("/dev", name),
			Domain: DomainUSB | orRaw(devType),
		}
		if meta, err := usbSysfsInfo(name); err == nil {
			if meta.Product != "" {
				info.Name = meta.Product
				info.Model = meta.Product
			}
			info.Serial = meta.SerialNumber
		}
		devices = append(devices, info)
	}
	return devices, nil
}

func (usbProbe) Dial(path string, dbg *Debug) (Transport, error) {
	return openSerial(path, DomainUSB, dbg)
}

// ---- inet probe ----

// inetProbe has no broadcast discovery; network devices are opened by
// explicit host:port address.
type inetProbe struct{}

func (inetProbe) Discover(devType Domain) ([]DeviceInfo, error) {
	return nil, nil
}

func (inetProbe) Dial(path string, dbg *Debug) (Transport, error) {
	return dialInet(path, dbg)
}

// ---- /dev scanning, shared by the serial and USB probes ----

// Exclude patterns for virtual terminals and other non-serial devices.
var devExcludePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^tty\d+$`),  // Virtual terminals (tty1, tty2, etc.)
	regexp.MustCompile(`^console$`), // Console
	regexp.MustCompile(`^ptmx$`),    // Pseudo-terminal multiplexer
	regexp.MustCompile(`^pty.*$`),   // Pseudo-terminals
	regexp.MustCompile(`^pts/.*$`),  // Pseudo-terminal slaves
}

// scanDev returns sorted /dev entry names that match one of the given
// patterns, are not excluded, and are character devices.
func scanDev(patterns []*regexp.Regexp) ([]string, error) {
	entries, err := os.ReadDir("/dev")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()

		excluded := false
		for _, excludePattern := range devExcludePatterns {
			if excludePattern.MatchString(name) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}

		matched := false
		for _, pattern := range patterns {
			if pattern.MatchString(name) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		if isCharacterDevice(filepath.Join("/dev", name)) {
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}

// isCharacterDevice checks if the given path is a character device
func isCharacterDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	mode := info.Mode()
	return mode&os.ModeCharDevice != 0
}

// orRaw substitutes DeviceRaw for an unspecified device type so a
// descriptor always carries a concrete type; the true type is
// confirmed when the device is opened.
func orRaw(devType Domain) Domain {
	if devType == DeviceNone {
		return DeviceRaw
	}
	return devType
}

// usbMeta holds USB metadata read from sysfs.
type usbMeta struct {
	VendorID     string
	ProductID    string
	SerialNumber string
	Manufacturer string
	Product      string
	BusNumber    string
	DeviceNumber string
}

// usbSysfsInfo reads USB metadata for a tty device by following the
// /sys/class/tty symlink up to the owning USB device directory, which
// holds idVendor, idProduct, serial, and the bus/device numbers.
func usbSysfsInfo(ttyName string) (*usbMeta, error) {
	devLink := filepath.Join("/sys/class/tty", ttyName, "device")
	resolved, err := filepath.EvalSymlinks(devLink)
	if err != nil {
		return nil, ErrUSBInfoNotAvailable
	}

	// The tty sits under <usb-device>/<interface>/...; walk up until a
	// directory carrying idVendor appears.
	dir := resolved
	for i := 0; i < 5; i++ {
		if _, err := os.Stat(filepath.Join(dir, "idVendor")); err == nil {
			break
		}
		dir = filepath.Dir(dir)
	}
	if _, err := os.Stat(filepath.Join(dir, "idVendor")); err != nil {
		return nil, ErrUSBInfoNotAvailable
	}

	readAttr := func(name string) string {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(b))
	}

	return &usbMeta{
		VendorID:     readAttr("idVendor"),
		ProductID:    readAttr("idProduct"),
		SerialNumber: readAttr("serial"),
		Manufacturer: readAttr("manufacturer"),
		Product:      readAttr("product"),
		BusNumber:    readAttr("busnum"),
		DeviceNumber: readAttr("devnum"),
	}, nil
}
