package kms

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Values from drm.h and drm_mode.h.
const (
	modeConnected = 1
	pageFlipEvent = 0x01

	eventFlipComplete = 0x02
	eventHeaderSize   = 8
	vblankEventSize   = 32

	modeNameLen        = 32
	mmPerInch          = 25.4
	fallbackDPI        = 96
	dumbBitsPerPixel   = 32
	framebufferDepth   = 24
	maxResourceEntries = 64
)

const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, nr, size uintptr) uintptr {
	return (dir << 30) | (size << 16) | ('d' << 8) | nr
}

func iowr[T any](nr uintptr) uintptr {
	var v T
	return ioc(iocRead|iocWrite, nr, unsafe.Sizeof(v))
}

var (
	ioctlSetMaster    = ioc(iocNone, 0x1e, 0)
	ioctlDropMaster   = ioc(iocNone, 0x1f, 0)
	ioctlGetResources = iowr[cardRes](0xa0)
	ioctlGetCrtc      = iowr[crtc](0xa1)
	ioctlSetCrtc      = iowr[crtc](0xa2)
	ioctlGetEncoder   = iowr[encoder](0xa6)
	ioctlGetConnector = iowr[connector](0xa7)
	ioctlAddFB        = iowr[fbCmd](0xae)
	ioctlRmFB         = iowr[uint32](0xaf)
	ioctlPageFlip     = iowr[pageFlip](0xb0)
	ioctlCreateDumb   = iowr[createDumb](0xb2)
	ioctlMapDumb      = iowr[mapDumb](0xb3)
	ioctlDestroyDumb  = iowr[destroyDumb](0xb4)
)

type cardRes struct {
	FBIDPtr        uint64
	CrtcIDPtr      uint64
	ConnectorIDPtr uint64
	EncoderIDPtr   uint64
	CountFBs       uint32
	CountCrtcs     uint32
	CountConns     uint32
	CountEncoders  uint32
	MinWidth       uint32
	MaxWidth       uint32
	MinHeight      uint32
	MaxHeight      uint32
}

type modeInfo struct {
	Clock      uint32
	HDisplay   uint16
	HSyncStart uint16
	HSyncEnd   uint16
	HTotal     uint16
	HSkew      uint16
	VDisplay   uint16
	VSyncStart uint16
	VSyncEnd   uint16
	VTotal     uint16
	VScan      uint16
	VRefresh   uint32
	Flags      uint32
	Type       uint32
	Name       [modeNameLen]byte
}

type connector struct {
	EncodersPtr     uint64
	ModesPtr        uint64
	PropsPtr        uint64
	PropValuesPtr   uint64
	CountModes      uint32
	CountProps      uint32
	CountEncoders   uint32
	EncoderID       uint32
	ConnectorID     uint32
	ConnectorType   uint32
	ConnectorTypeID uint32
	Connection      uint32
	MMWidth         uint32
	MMHeight        uint32
	Subpixel        uint32
	Pad             uint32
}

type encoder struct {
	EncoderID      uint32
	EncoderType    uint32
	CrtcID         uint32
	PossibleCrtcs  uint32
	PossibleClones uint32
}

type crtc struct {
	SetConnectorsPtr uint64
	CountConnectors  uint32
	CrtcID           uint32
	FBID             uint32
	X, Y             uint32
	GammaSize        uint32
	ModeValid        uint32
	Mode             modeInfo
}

type fbCmd struct {
	FBID   uint32
	Width  uint32
	Height uint32
	Pitch  uint32
	BPP    uint32
	Depth  uint32
	Handle uint32
}

type pageFlip struct {
	CrtcID   uint32
	FBID     uint32
	Flags    uint32
	Reserved uint32
	UserData uint64
}

type createDumb struct {
	Height uint32
	Width  uint32
	BPP    uint32
	Flags  uint32
	Handle uint32
	Pitch  uint32
	Size   uint64
}

type mapDumb struct {
	Handle uint32
	Pad    uint32
	Offset uint64
}

type destroyDumb struct {
	Handle uint32
}

func ioctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR, unix.EAGAIN:
			continue
		default:
			return errno
		}
	}
}

func ptr[T any](s []T) uint64 {
	if len(s) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&s[0])))
}

type resources struct {
	crtcs      []uint32
	connectors []uint32
	encoders   []uint32
}

// getResources asks for the counts first and then fills the ID
// arrays.
func getResources(fd uintptr) (resources, error) {
	var res cardRes
	err := ioctl(fd, ioctlGetResources, unsafe.Pointer(&res))
	if err != nil {
		return resources{}, fmt.Errorf("DRM_IOCTL_MODE_GETRESOURCES: %w", err)
	}

	out := resources{
		crtcs:      make([]uint32, min(res.CountCrtcs, maxResourceEntries)),
		connectors: make([]uint32, min(res.CountConns, maxResourceEntries)),
		encoders:   make([]uint32, min(res.CountEncoders, maxResourceEntries)),
	}
	res = cardRes{
		CrtcIDPtr:      ptr(out.crtcs),
		ConnectorIDPtr: ptr(out.connectors),
		EncoderIDPtr:   ptr(out.encoders),
		CountCrtcs:     uint32(len(out.crtcs)),
		CountConns:     uint32(len(out.connectors)),
		CountEncoders:  uint32(len(out.encoders)),
	}
	err = ioctl(fd, ioctlGetResources, unsafe.Pointer(&res))
	if err != nil {
		return resources{}, fmt.Errorf("DRM_IOCTL_MODE_GETRESOURCES: %w", err)
	}
	return out, nil
}

type connectorInfo struct {
	id        uint32
	connected bool
	encoderID uint32
	modes     []modeInfo
	encoders  []uint32
	physical  [2]uint32
}

func getConnector(fd uintptr, id uint32) (connectorInfo, error) {
	conn := connector{ConnectorID: id}
	err := ioctl(fd, ioctlGetConnector, unsafe.Pointer(&conn))
	if err != nil {
		return connectorInfo{}, fmt.Errorf("DRM_IOCTL_MODE_GETCONNECTOR %v: %w", id, err)
	}

	modes := make([]modeInfo, min(conn.CountModes, maxResourceEntries))
	encoders := make([]uint32, min(conn.CountEncoders, maxResourceEntries))
	conn = connector{
		ConnectorID:   id,
		ModesPtr:      ptr(modes),
		CountModes:    uint32(len(modes)),
		EncodersPtr:   ptr(encoders),
		CountEncoders: uint32(len(encoders)),
	}
	err = ioctl(fd, ioctlGetConnector, unsafe.Pointer(&conn))
	if err != nil {
		return connectorInfo{}, fmt.Errorf("DRM_IOCTL_MODE_GETCONNECTOR %v: %w", id, err)
	}

	return connectorInfo{
		id:        id,
		connected: conn.Connection == modeConnected,
		encoderID: conn.EncoderID,
		modes:     modes[:min(int(conn.CountModes), len(modes))],
		encoders:  encoders[:min(int(conn.CountEncoders), len(encoders))],
		physical:  [2]uint32{conn.MMWidth, conn.MMHeight},
	}, nil
}

func getEncoder(fd uintptr, id uint32) (encoder, error) {
	enc := encoder{EncoderID: id}
	err := ioctl(fd, ioctlGetEncoder, unsafe.Pointer(&enc))
	if err != nil {
		return enc, fmt.Errorf("DRM_IOCTL_MODE_GETENCODER %v: %w", id, err)
	}
	return enc, nil
}
