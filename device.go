package fli

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/openastro/go-fli/internal/wire"
)

// Version reported by LibVersion.
const libVersion = "go-fli 1.2.0"

// LibVersion returns the library version string.
func LibVersion() string {
	return libVersion
}

// Handle is an opaque reference to an open device session. Handles are
// generation-tagged arena slots: the low bits index the slot, the high
// bits carry a generation incremented on every close, so a handle kept
// past Close is detected instead of aliasing a later session.
type Handle int64

// InvalidHandle is never a valid open session.
const InvalidHandle Handle = -1

const handleSlotBits = 32

func makeHandle(slot int, gen int64) Handle {
	return Handle(gen<<handleSlotBits | int64(slot))
}

func (h Handle) slot() int { return int(int64(h) & (1<<handleSlotBits - 1)) }
func (h Handle) gen() int64 { return int64(h) >> handleSlotBits }

func (h Handle) String() string {
	if h == InvalidHandle {
		return "Handle(invalid)"
	}
	return fmt.Sprintf("Handle(%d.%d)", h.slot(), h.gen())
}

// ExposureState tracks where a camera session is in the exposure
// lifecycle.
type ExposureState int

const (
	StateIdle ExposureState = iota
	StateConfiguring
	StateExposing
	StateAwaitingReadout
	StateReadingOut
)

func (s ExposureState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConfiguring:
		return "Configuring"
	case StateExposing:
		return "Exposing"
	case StateAwaitingReadout:
		return "AwaitingReadout"
	case StateReadingOut:
		return "ReadingOut"
	default:
		return fmt.Sprintf("ExposureState(%d)", int(s))
	}
}

// physDevice is the shared record for one physical device. All
// sessions opened on the same interface+path share it: one transport,
// one codec, one wire mutex, and one exclusive-access lock slot.
type physDevice struct {
	key  string
	mu   sync.Mutex // serializes all wire exchanges on this device
	tr   Transport
	cod  *codec
	refs int

	// lockOwner is the session currently holding the device lock,
	// InvalidHandle when unheld. Guarded by lockMu, not mu, so lock
	// checks never wait behind wire I/O.
	lockMu    sync.Mutex
	lockOwner Handle
}

func (p *physDevice) owner() Handle {
	p.lockMu.Lock()
	defer p.lockMu.Unlock()
	return p.lockOwner
}

// session is the per-handle state bound to one physical device.
type session struct {
	handle Handle
	info   DeviceInfo
	phys   *physDevice

	// Upper bound on blocking mechanical waits, fixed at Open.
	motionTimeout time.Duration

	// Camera lifecycle state, guarded by mu. Field values are only
	// meaningful when info.Domain carries DeviceCamera.
	mu        sync.Mutex
	cam       CameraConfig
	state     ExposureState
	rowsRead  int
	readoutW  int // binned pixels per row, latched at expose
	readoutH  int // rows in the frame, latched at expose
	bytesPP   int // bytes per pixel, latched at expose
	triggered bool
}

// manager is the process-wide session arena.
var manager = struct {
	mu    sync.Mutex
	slots []*session
	gens  []int64
	free  []int
	phys  map[string]*physDevice
}{phys: make(map[string]*physDevice)}

// Open opens a session on the named device. name is a device name or
// transport path from a prior enumeration, or a direct transport
// address for the interface (a /dev path for serial interfaces,
// host:port for inet). domain must carry both an interface and a
// device type.
func Open(name string, domain Domain, opts ...Option) (Handle, error) {
	if domain.Interface() == DomainNone || domain.DeviceType() == DeviceNone {
		return InvalidHandle, fmt.Errorf("%w: open requires a full domain, got %v", ErrInvalidArgument, domain)
	}

	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return InvalidHandle, err
		}
	}

	probe, ok := probeFor(domain)
	if !ok {
		return InvalidHandle, fmt.Errorf("%w: no probe for %v", ErrDeviceNotFound, domain)
	}

	info, err := resolveDevice(probe, name, domain)
	if err != nil {
		return InvalidHandle, err
	}

	key := physKey(domain, info.Path)

	manager.mu.Lock()
	phys := manager.phys[key]
	if phys != nil {
		phys.refs++
	}
	manager.mu.Unlock()

	if phys == nil {
		// Dial outside the arena lock: a slow connect must not stall
		// opens and closes on unrelated devices.
		tr, err := probe.Dial(info.Path, config.Debug)
		if err != nil {
			return InvalidHandle, err
		}
		cod := newCodec(tr, config.Debug)
		cod.timeout = config.CommandTimeout
		cod.rowTimeout = config.RowTimeout
		cod.retries = config.Retries

		manager.mu.Lock()
		if raced := manager.phys[key]; raced != nil {
			// Another Open dialed the same device first; keep the
			// established record and drop our transport.
			raced.refs++
			phys = raced
			manager.mu.Unlock()
			tr.Close()
		} else {
			phys = &physDevice{key: key, tr: tr, cod: cod, lockOwner: InvalidHandle, refs: 1}
			manager.phys[key] = phys
			manager.mu.Unlock()
		}
	}

	sess := &session{
		info:          info,
		phys:          phys,
		cam:           defaultCameraConfig(),
		motionTimeout: config.MotionTimeout,
	}

	manager.mu.Lock()
	var slot int
	if n := len(manager.free); n > 0 {
		slot = manager.free[n-1]
		manager.free = manager.free[:n-1]
	} else {
		slot = len(manager.slots)
		manager.slots = append(manager.slots, nil)
		manager.gens = append(manager.gens, 0)
	}
	sess.handle = makeHandle(slot, manager.gens[slot])
	manager.slots[slot] = sess
	manager.mu.Unlock()

	// Cameras seed their region of interest from the device's visible
	// area, so an expose without an explicit SetImageArea reads the
	// full sensor. This doubles as open-time validation that the
	// device really is the claimed class.
	if domain.DeviceType() == DeviceCamera {
		if err := sess.seedCameraDefaults(); err != nil {
			manager.mu.Lock()
			releaseLocked(sess)
			manager.mu.Unlock()
			return InvalidHandle, err
		}
	}

	config.Debug.Infof("opened %s as %v", info.Path, sess.handle)
	return sess.handle, nil
}

// resolveDevice matches name against the probe's discovery results, or
// accepts it as a direct transport address.
func resolveDevice(probe Probe, name string, domain Domain) (DeviceInfo, error) {
	devices, err := probe.Discover(domain.DeviceType())
	if err != nil {
		return DeviceInfo{}, err
	}
	for _, d := range devices {
		if d.Name == name || d.Path == name {
			d.Domain = domain
			return d, nil
		}
	}

	if directAddress(name, domain) {
		return DeviceInfo{Name: name, Path: name, Domain: domain}, nil
	}
	return DeviceInfo{}, fmt.Errorf("%w: %q in %v", ErrDeviceNotFound, name, domain)
}

// directAddress reports whether name can be dialed without discovery.
func directAddress(name string, domain Domain) bool {
	switch domain.Interface() {
	case DomainInet:
		return strings.Contains(name, ":")
	case DomainParallelPort:
		return strings.HasPrefix(name, "0x")
	default:
		return strings.HasPrefix(name, "/dev/")
	}
}

func physKey(domain Domain, path string) string {
	return fmt.Sprintf("%d|%s", int(domain.Interface()), path)
}

// lookup resolves a handle to its live session.
func lookup(h Handle) (*session, error) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	return lookupLocked(h)
}

func lookupLocked(h Handle) (*session, error) {
	slot := h.slot()
	if h == InvalidHandle || slot < 0 || slot >= len(manager.slots) {
		return nil, ErrInvalidHandle
	}
	sess := manager.slots[slot]
	if sess == nil || manager.gens[slot] != h.gen() {
		return nil, ErrInvalidHandle
	}
	return sess, nil
}

// Close tears down the session. The device lock, if held by this
// session, and the transport reference are released on every path.
// Closing an unknown or already-closed handle returns ErrInvalidHandle.
func Close(h Handle) error {
	sess, err := lookup(h)
	if err != nil {
		return err
	}

	// An exposure left running would keep the shutter timing gear
	// engaged; cancel it best-effort before the transport goes away.
	needCancel := false
	sess.mu.Lock()
	if sess.info.Domain.DeviceType() == DeviceCamera &&
		(sess.state == StateExposing || sess.state == StateAwaitingReadout) {
		needCancel = true
	}
	sess.mu.Unlock()

	if needCancel {
		sess.phys.mu.Lock()
		sess.phys.cod.exchange(wire.OpCancelExposure, nil)
		sess.phys.mu.Unlock()
	}

	manager.mu.Lock()
	defer manager.mu.Unlock()
	// Revalidate: a concurrent Close may have won while the cancel was
	// on the wire.
	if _, err := lookupLocked(h); err != nil {
		return err
	}
	return releaseLocked(sess)
}

// releaseLocked frees the session's slot, lock, and transport
// reference. Caller holds manager.mu.
func releaseLocked(sess *session) error {
	slot := sess.handle.slot()
	manager.slots[slot] = nil
	manager.gens[slot]++
	manager.free = append(manager.free, slot)

	phys := sess.phys
	phys.lockMu.Lock()
	if phys.lockOwner == sess.handle {
		phys.lockOwner = InvalidHandle
	}
	phys.lockMu.Unlock()
	phys.refs--
	if phys.refs == 0 {
		delete(manager.phys, phys.key)
		return phys.tr.Close()
	}
	return nil
}

// LockDevice acquires the exclusive per-physical-device lock for the
// session. The lock is advisory between sessions of this process:
// while held, mutating operations from any other session on the same
// physical device fail with ErrDeviceBusy. Locking a device already
// locked by the same session is a no-op.
func LockDevice(h Handle) error {
	sess, err := lookup(h)
	if err != nil {
		return err
	}

	sess.phys.lockMu.Lock()
	defer sess.phys.lockMu.Unlock()
	owner := sess.phys.lockOwner
	if owner != InvalidHandle && owner != h {
		return ErrDeviceBusy
	}
	sess.phys.lockOwner = h
	return nil
}

// UnlockDevice releases the device lock held by this session.
// Unlocking a device the session does not hold is an error when
// another session holds it, and a no-op when nobody does.
func UnlockDevice(h Handle) error {
	sess, err := lookup(h)
	if err != nil {
		return err
	}

	sess.phys.lockMu.Lock()
	defer sess.phys.lockMu.Unlock()
	owner := sess.phys.lockOwner
	switch owner {
	case InvalidHandle:
		return nil
	case h:
		sess.phys.lockOwner = InvalidHandle
		return nil
	default:
		return ErrDeviceBusy
	}
}

// checkMutate enforces the lock discipline for state-changing
// operations: the device lock must be unheld or held by this session.
func (s *session) checkMutate() error {
	owner := s.phys.owner()
	if owner != InvalidHandle && owner != s.handle {
		return ErrDeviceBusy
	}
	return nil
}

// sessionFor resolves a handle and optionally checks the device class.
// devType DeviceNone skips the class check.
func sessionFor(h Handle, devType Domain) (*session, error) {
	sess, err := lookup(h)
	if err != nil {
		return nil, err
	}
	if devType != DeviceNone && sess.info.Domain.DeviceType() != devType {
		return nil, fmt.Errorf("%w: %v is %v", ErrWrongDeviceType, h, sess.info.Domain)
	}
	return sess, nil
}

// exchange runs one codec exchange under the device's wire mutex.
func (s *session) exchange(op wire.Op, payload []byte) ([]byte, error) {
	s.phys.mu.Lock()
	defer s.phys.mu.Unlock()
	return s.phys.cod.exchange(op, payload)
}

// ---- device-generic operations ----

// GetModel returns the device's model string.
func GetModel(h Handle) (string, error) {
	sess, err := sessionFor(h, DeviceNone)
	if err != nil {
		return "", err
	}
	resp, err := sess.exchange(wire.OpGetModel, nil)
	if err != nil {
		return "", err
	}
	return cString(resp), nil
}

// GetSerialString returns the device's serial number string.
func GetSerialString(h Handle) (string, error) {
	sess, err := sessionFor(h, DeviceNone)
	if err != nil {
		return "", err
	}
	resp, err := sess.exchange(wire.OpGetSerial, nil)
	if err != nil {
		return "", err
	}
	return cString(resp), nil
}

// GetHWRevision returns the hardware revision.
func GetHWRevision(h Handle) (int64, error) {
	return getLong(h, wire.OpGetHWRevision)
}

// GetFWRevision returns the firmware revision.
func GetFWRevision(h Handle) (int64, error) {
	return getLong(h, wire.OpGetFWRevision)
}

// GetDeviceStatus returns the raw device status word. For cameras the
// low bits encode idle/waiting-for-trigger/exposing/reading-out and
// the top bit flags data-ready; filter wheels and focusers report
// their motion bits.
func GetDeviceStatus(h Handle) (int64, error) {
	return getLong(h, wire.OpGetDeviceStatus)
}

func getLong(h Handle, op wire.Op) (int64, error) {
	sess, err := sessionFor(h, DeviceNone)
	if err != nil {
		return 0, err
	}
	resp, err := sess.exchange(op, nil)
	if err != nil {
		return 0, err
	}
	return int64(wire.Int32(resp)), nil
}

// Camera status word bits, as reported by GetDeviceStatus.
const (
	CameraStatusMask       int64 = wire.CameraStatusMask
	CameraStatusIdle       int64 = wire.CameraStatusIdle
	CameraStatusWaitTrig   int64 = wire.CameraStatusWaitTrig
	CameraStatusExposing   int64 = wire.CameraStatusExposing
	CameraStatusReadingCCD int64 = wire.CameraStatusReadingCCD
	CameraDataReady        int64 = wire.CameraDataReady
)

// ---- I/O port ----

// ReadIOPort reads the device's auxiliary I/O port bits.
func ReadIOPort(h Handle) (int64, error) {
	return getLong(h, wire.OpReadIOPort)
}

// WriteIOPort writes the device's auxiliary I/O port bits.
func WriteIOPort(h Handle, bits int64) error {
	sess, err := sessionFor(h, DeviceNone)
	if err != nil {
		return err
	}
	if err := sess.checkMutate(); err != nil {
		return err
	}
	_, err = sess.exchange(wire.OpWriteIOPort, wire.AppendInt32(nil, int32(bits)))
	return err
}

// ConfigureIOPort sets the direction mask of the auxiliary I/O port.
func ConfigureIOPort(h Handle, bits int64) error {
	sess, err := sessionFor(h, DeviceNone)
	if err != nil {
		return err
	}
	if err := sess.checkMutate(); err != nil {
		return err
	}
	_, err = sess.exchange(wire.OpConfigureIOPort, wire.AppendInt32(nil, int32(bits)))
	return err
}

// ---- user EEPROM ----

// EEPROM locations.
const (
	EEPROMUser     = 0x00
	EEPROMPixelMap = 0x01
)

// ReadUserEEPROM reads length bytes at address from the given EEPROM
// location.
func ReadUserEEPROM(h Handle, loc, address, length int) ([]byte, error) {
	sess, err := sessionFor(h, DeviceNone)
	if err != nil {
		return nil, err
	}
	if length <= 0 || length > wire.MaxPayload {
		return nil, fmt.Errorf("%w: EEPROM read length %d", ErrInvalidArgument, length)
	}
	payload := wire.AppendInt32(nil, int32(loc))
	payload = wire.AppendInt32(payload, int32(address))
	payload = wire.AppendInt32(payload, int32(length))
	resp, err := sess.exchange(wire.OpReadEEPROM, payload)
	if err != nil {
		return nil, err
	}
	if len(resp) != length {
		return nil, fmt.Errorf("%w: EEPROM read returned %d bytes, want %d", ErrTransport, len(resp), length)
	}
	return resp, nil
}

// WriteUserEEPROM writes data at address in the given EEPROM location.
func WriteUserEEPROM(h Handle, loc, address int, data []byte) error {
	sess, err := sessionFor(h, DeviceNone)
	if err != nil {
		return err
	}
	if err := sess.checkMutate(); err != nil {
		return err
	}
	if len(data) == 0 || len(data) > wire.MaxPayload-8 {
		return fmt.Errorf("%w: EEPROM write length %d", ErrInvalidArgument, len(data))
	}
	payload := wire.AppendInt32(nil, int32(loc))
	payload = wire.AppendInt32(payload, int32(address))
	payload = append(payload, data...)
	_, err = sess.exchange(wire.OpWriteEEPROM, payload)
	return err
}

// ---- introspection for tooling ----

// SessionInfo describes an open session for diagnostic surfaces (the
// CLI monitor). It is a snapshot, not a live view.
type SessionInfo struct {
	Handle Handle
	Device DeviceInfo
	State  ExposureState
	Locked bool
}

// Sessions returns a snapshot of all open sessions.
func Sessions() []SessionInfo {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	var out []SessionInfo
	for _, sess := range manager.slots {
		if sess == nil {
			continue
		}
		sess.mu.Lock()
		state := sess.state
		sess.mu.Unlock()
		out = append(out, SessionInfo{
			Handle: sess.handle,
			Device: sess.info,
			State:  state,
			Locked: sess.phys.owner() == sess.handle,
		})
	}
	return out
}
