package fli

import (
	"fmt"

	"github.com/openastro/go-fli/internal/simdev"
)

// Simulate replaces USB discovery with an in-process simulated bench
// of one camera, one filter wheel, and one focuser. timeScale divides
// simulated exposure durations; pass 1 for real time. Tests and the
// CLI's --simulate flag use this to run every command path without
// hardware.
func Simulate(timeScale float64) {
	RegisterProbe(DomainUSB, newSimProbe(timeScale))
}

type simProbe struct {
	scale   float64
	entries []simEntry
}

type simEntry struct {
	info DeviceInfo
	kind simdev.Kind
	cfg  simdev.Config
}

func newSimProbe(scale float64) *simProbe {
	if scale <= 0 {
		scale = 1
	}
	return &simProbe{
		scale: scale,
		entries: []simEntry{
			{
				info: DeviceInfo{
					Name:   "FLI-04",
					Path:   "sim:cam0",
					Domain: DomainUSB | DeviceCamera,
					Model:  "MicroLine ML4022",
					Serial: "ML0001",
				},
				kind: simdev.KindCamera,
				cfg:  simdev.Config{Model: "MicroLine ML4022", Serial: "ML0001"},
			},
			{
				info: DeviceInfo{
					Name:   "FLI-21",
					Path:   "sim:fw0",
					Domain: DomainUSB | DeviceFilterWheel,
					Model:  "CFW-2-7",
					Serial: "FW0001",
				},
				kind: simdev.KindFilterWheel,
				cfg:  simdev.Config{Model: "CFW-2-7", Serial: "FW0001"},
			},
			{
				info: DeviceInfo{
					Name:   "FLI-39",
					Path:   "sim:foc0",
					Domain: DomainUSB | DeviceFocuser,
					Model:  "Atlas Focuser",
					Serial: "AF0001",
				},
				kind: simdev.KindFocuser,
				cfg:  simdev.Config{Model: "Atlas Focuser", Serial: "AF0001"},
			},
		},
	}
}

func (p *simProbe) Discover(devType Domain) ([]DeviceInfo, error) {
	var out []DeviceInfo
	for _, e := range p.entries {
		if e.info.Domain.Matches(devType) {
			out = append(out, e.info)
		}
	}
	return out, nil
}

func (p *simProbe) Dial(path string, dbg *Debug) (Transport, error) {
	for _, e := range p.entries {
		if e.info.Path != path {
			continue
		}
		cfg := e.cfg
		cfg.TimeScale = p.scale
		dev := simdev.New(e.kind, cfg)
		dbg.Infof("simulated transport open: %s", path)
		return &inetTransport{conn: dev.Start(), dbg: dbg}, nil
	}
	return nil, fmt.Errorf("%w: no simulated device at %q", ErrDeviceNotFound, path)
}
