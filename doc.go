// Package fli controls Finger Lakes Instrumentation CCD cameras,
// filter wheels, and focusers over USB, serial, and network
// transports.
//
// # Device Discovery
//
// Devices are addressed by a Domain, the OR of an interface selector
// and a device type:
//
//	devices, err := fli.List(fli.DomainUSB | fli.DeviceCamera)
//	for _, d := range devices {
//	    fmt.Printf("%s at %s (%v)\n", d.Name, d.Path, d.Domain)
//	}
//
// NewDeviceList provides an iterator view over the same snapshot for
// incremental consumption.
//
// # Sessions
//
// Open returns a Handle, an opaque session identifier. Handles are
// generation-tagged: a handle that has been closed never aliases a
// later session, and every operation on a stale handle fails with
// ErrInvalidHandle.
//
//	h, err := fli.Open("FLI-04", fli.DomainUSB|fli.DeviceCamera)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer fli.Close(h)
//
// Several sessions may share one physical device; LockDevice grants a
// session exclusive mutation rights while leaving reads open to all.
//
// # Taking a Frame
//
//	fli.SetExposureTime(h, 10000) // milliseconds
//	fli.SetFrameType(h, fli.FrameTypeDark)
//	fli.ExposeFrame(h)
//	for {
//	    remaining, _ := fli.GetExposureStatus(h)
//	    if remaining == 0 {
//	        break
//	    }
//	    time.Sleep(time.Duration(remaining) * time.Millisecond)
//	}
//	fli.EndExposure(h)
//	frame, err := fli.GrabFrame(h)
//
// Rows can instead be drained one at a time with GrabRow, which
// enforces strict top-to-bottom order.
//
// # Error Handling
//
// All failures wrap a small set of sentinel errors (ErrInvalidHandle,
// ErrDeviceBusy, ErrTimeout, ...) checked with errors.Is. StatusCode
// flattens any error to the negative status convention used by
// foreign-function boundaries.
//
// # Debug Output
//
// SetDebugLevel enables structured debug output globally; WithDebug
// scopes a Debug sink to one session. Levels are a bitmask over Info,
// Warn, Fail, and IO.
//
// # Simulation
//
// Simulate replaces USB discovery with an in-process simulated bench
// speaking the full wire protocol, used by the test suite and the
// flicam CLI's --simulate flag.
package fli
