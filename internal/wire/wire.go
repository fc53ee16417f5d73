// Package wire defines the framed command/response protocol spoken
// between the library and FLI-style instruments. Both the client codec
// and the simulated device peer build on this package, so the two
// directions of the protocol can never drift apart.
//
// A command frame is laid out as:
//
//	STX(0x02) | opcode | seq | payload length (uint16 BE) | payload | CRC-16 (BE)
//
// A response frame is identical except the first byte is ACK (0x06) for
// success or NAK (0x15) for a device-reported fault, and the opcode and
// sequence number echo the command. The CRC covers everything from the
// start byte through the payload. NAK payloads carry a single fault
// code byte.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Frame start bytes.
const (
	STX = 0x02
	ACK = 0x06
	NAK = 0x15
)

// HeaderLen is the fixed portion of a frame before the payload, and
// TrailerLen the CRC that follows it.
const (
	HeaderLen  = 5
	TrailerLen = 2
)

// MaxPayload bounds a frame payload. Row reads of a full-width 16-bit
// sensor line are the largest legitimate payload.
const MaxPayload = 16384

// Op identifies a protocol command.
type Op byte

const (
	OpNone Op = iota

	// Device-generic
	OpGetModel
	OpGetSerial
	OpGetHWRevision
	OpGetFWRevision
	OpGetDeviceStatus
	OpReadIOPort
	OpWriteIOPort
	OpConfigureIOPort
	OpReadEEPROM
	OpWriteEEPROM
	OpHomeDevice

	// Camera configuration
	OpSetExposureTime
	OpSetImageArea
	OpSetHBin
	OpSetVBin
	OpSetFrameType
	OpSetBitDepth
	OpSetNFlushes
	OpGetArrayArea
	OpGetVisibleArea
	OpGetReadoutDims
	OpGetPixelSize

	// Exposure lifecycle
	OpExposeFrame
	OpExposureStatus
	OpCancelExposure
	OpEndExposure
	OpTriggerExposure
	OpGrabRow
	OpFlushRow

	// Thermal and auxiliary camera controls
	OpSetTemperature
	OpGetTemperature
	OpGetCoolerPower
	OpReadTemperature
	OpControlShutter
	OpControlBGFlush
	OpSetFanSpeed

	// Filter wheel
	OpSetFilterPos
	OpGetFilterPos
	OpGetFilterCount
	OpGetFilterName
	OpSetActiveWheel
	OpGetActiveWheel

	// Focuser
	OpStepMotor
	OpStepMotorAsync
	OpGetStepperPos
	OpGetStepsRemaining
	OpGetFocuserExtent

	opMax
)

var opNames = map[Op]string{
	OpGetModel:          "GetModel",
	OpGetSerial:         "GetSerial",
	OpGetHWRevision:     "GetHWRevision",
	OpGetFWRevision:     "GetFWRevision",
	OpGetDeviceStatus:   "GetDeviceStatus",
	OpReadIOPort:        "ReadIOPort",
	OpWriteIOPort:       "WriteIOPort",
	OpConfigureIOPort:   "ConfigureIOPort",
	OpReadEEPROM:        "ReadEEPROM",
	OpWriteEEPROM:       "WriteEEPROM",
	OpHomeDevice:        "HomeDevice",
	OpSetExposureTime:   "SetExposureTime",
	OpSetImageArea:      "SetImageArea",
	OpSetHBin:           "SetHBin",
	OpSetVBin:           "SetVBin",
	OpSetFrameType:      "SetFrameType",
	OpSetBitDepth:       "SetBitDepth",
	OpSetNFlushes:       "SetNFlushes",
	OpGetArrayArea:      "GetArrayArea",
	OpGetVisibleArea:    "GetVisibleArea",
	OpGetReadoutDims:    "GetReadoutDims",
	OpGetPixelSize:      "GetPixelSize",
	OpExposeFrame:       "ExposeFrame",
	OpExposureStatus:    "ExposureStatus",
	OpCancelExposure:    "CancelExposure",
	OpEndExposure:       "EndExposure",
	OpTriggerExposure:   "TriggerExposure",
	OpGrabRow:           "GrabRow",
	OpFlushRow:          "FlushRow",
	OpSetTemperature:    "SetTemperature",
	OpGetTemperature:    "GetTemperature",
	OpGetCoolerPower:    "GetCoolerPower",
	OpReadTemperature:   "ReadTemperature",
	OpControlShutter:    "ControlShutter",
	OpControlBGFlush:    "ControlBGFlush",
	OpSetFanSpeed:       "SetFanSpeed",
	OpSetFilterPos:      "SetFilterPos",
	OpGetFilterPos:      "GetFilterPos",
	OpGetFilterCount:    "GetFilterCount",
	OpGetFilterName:     "GetFilterName",
	OpSetActiveWheel:    "SetActiveWheel",
	OpGetActiveWheel:    "GetActiveWheel",
	OpStepMotor:         "StepMotor",
	OpStepMotorAsync:    "StepMotorAsync",
	OpGetStepperPos:     "GetStepperPos",
	OpGetStepsRemaining: "GetStepsRemaining",
	OpGetFocuserExtent:  "GetFocuserExtent",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Op(0x%02x)", byte(o))
}

// Valid reports whether o is a defined opcode.
func (o Op) Valid() bool {
	return o > OpNone && o < opMax
}

// Variable marks opcodes whose response payload length is only known
// from the frame itself (strings and pixel data).
const Variable = -1

// respSize maps each opcode to its expected response payload size in
// bytes. The transport gives no framing beyond what this protocol
// defines, so the codec validates every response length against this
// table before trusting it.
var respSize = map[Op]int{
	OpGetModel:          Variable,
	OpGetSerial:         Variable,
	OpGetHWRevision:     4,
	OpGetFWRevision:     4,
	OpGetDeviceStatus:   4,
	OpReadIOPort:        4,
	OpWriteIOPort:       0,
	OpConfigureIOPort:   0,
	OpReadEEPROM:        Variable,
	OpWriteEEPROM:       0,
	OpHomeDevice:        0,
	OpSetExposureTime:   0,
	OpSetImageArea:      0,
	OpSetHBin:           0,
	OpSetVBin:           0,
	OpSetFrameType:      0,
	OpSetBitDepth:       0,
	OpSetNFlushes:       0,
	OpGetArrayArea:      16,
	OpGetVisibleArea:    16,
	OpGetReadoutDims:    24,
	OpGetPixelSize:      16,
	OpExposeFrame:       0,
	OpExposureStatus:    8,
	OpCancelExposure:    0,
	OpEndExposure:       0,
	OpTriggerExposure:   0,
	OpGrabRow:           Variable,
	OpFlushRow:          0,
	OpSetTemperature:    0,
	OpGetTemperature:    8,
	OpGetCoolerPower:    8,
	OpReadTemperature:   8,
	OpControlShutter:    0,
	OpControlBGFlush:    0,
	OpSetFanSpeed:       0,
	OpSetFilterPos:      0,
	OpGetFilterPos:      4,
	OpGetFilterCount:    4,
	OpGetFilterName:     Variable,
	OpSetActiveWheel:    0,
	OpGetActiveWheel:    4,
	OpStepMotor:         0,
	OpStepMotorAsync:    0,
	OpGetStepperPos:     4,
	OpGetStepsRemaining: 4,
	OpGetFocuserExtent:  4,
}

// ResponseSize returns the expected response payload size for op, or
// Variable. Unknown opcodes report ok=false.
func ResponseSize(op Op) (size int, ok bool) {
	size, ok = respSize[op]
	return size, ok
}

// Fault codes carried in NAK payloads.
const (
	FaultUnknownOp      = 0x01
	FaultBadParameter   = 0x02
	FaultWrongDevice    = 0x03
	FaultNotImplemented = 0x04
	FaultHardware       = 0x05
)

// Camera status word bits reported by OpGetDeviceStatus and
// OpExposureStatus, matching the instrument's native encoding.
const (
	CameraStatusMask       = 0x00000003
	CameraStatusIdle       = 0x00
	CameraStatusWaitTrig   = 0x01
	CameraStatusExposing   = 0x02
	CameraStatusReadingCCD = 0x03
	CameraDataReady        = 0x80000000
)

// Focuser status word bits.
const (
	FocuserStatusMovingIn  = 0x00000001
	FocuserStatusMovingOut = 0x00000002
	FocuserStatusHoming    = 0x00000004
	FocuserStatusHome      = 0x00000080
	FocuserStatusLimit     = 0x00000040
)

// Filter wheel status word bits.
const (
	FilterStatusMovingCCW = 0x01
	FilterStatusMovingCW  = 0x02
	FilterStatusHoming    = 0x00000004
	FilterStatusHome      = 0x00000080
	FilterPositionUnknown = 0xff
)

// ErrShortFrame is returned by ParseFrame when the buffer does not yet
// hold a complete frame.
var ErrShortFrame = errors.New("incomplete frame")

// ErrBadFrame is returned for frames that are structurally invalid:
// wrong start byte, oversized payload, or CRC mismatch.
var ErrBadFrame = errors.New("malformed frame")

// Frame is a decoded protocol frame.
type Frame struct {
	Start   byte // STX, ACK or NAK
	Op      Op
	Seq     byte
	Payload []byte
}

// Ack reports whether the frame is a success response.
func (f Frame) Ack() bool { return f.Start == ACK }

// Fault returns the fault code of a NAK frame, or 0.
func (f Frame) Fault() byte {
	if f.Start == NAK && len(f.Payload) > 0 {
		return f.Payload[0]
	}
	return 0
}

// AppendFrame appends a complete frame to dst and returns the extended
// slice.
func AppendFrame(dst []byte, start byte, op Op, seq byte, payload []byte) []byte {
	base := len(dst)
	dst = append(dst, start, byte(op), seq)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(payload)))
	dst = append(dst, payload...)
	crc := Checksum(dst[base:])
	return binary.BigEndian.AppendUint16(dst, crc)
}

// ParseFrame decodes the first frame in buf. It returns the frame and
// the number of bytes consumed. ErrShortFrame means more bytes are
// needed; ErrBadFrame means the leading bytes do not form a valid frame
// and the caller should resynchronize.
func ParseFrame(buf []byte) (Frame, int, error) {
	if len(buf) < HeaderLen {
		return Frame{}, 0, ErrShortFrame
	}
	start := buf[0]
	if start != STX && start != ACK && start != NAK {
		return Frame{}, 0, ErrBadFrame
	}
	plen := int(binary.BigEndian.Uint16(buf[3:5]))
	if plen > MaxPayload {
		return Frame{}, 0, ErrBadFrame
	}
	total := HeaderLen + plen + TrailerLen
	if len(buf) < total {
		return Frame{}, 0, ErrShortFrame
	}
	want := binary.BigEndian.Uint16(buf[total-TrailerLen:])
	if Checksum(buf[:total-TrailerLen]) != want {
		return Frame{}, 0, ErrBadFrame
	}
	f := Frame{
		Start:   start,
		Op:      Op(buf[1]),
		Seq:     buf[2],
		Payload: append([]byte(nil), buf[HeaderLen:HeaderLen+plen]...),
	}
	return f, total, nil
}

// Checksum computes the CRC-16/CCITT-FALSE checksum used by the frame
// trailer.
func Checksum(data []byte) uint16 {
	crc := uint16(0xffff)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Integer and float payload helpers. All multi-byte fields on the wire
// are big-endian; longs travel as 32-bit two's complement.

func AppendInt32(dst []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(dst, uint32(v))
}

func Int32(b []byte) int32 {
	return int32(binary.BigEndian.Uint32(b))
}

func AppendFloat64(dst []byte, v float64) []byte {
	return binary.BigEndian.AppendUint64(dst, math.Float64bits(v))
}

func Float64(b []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}
