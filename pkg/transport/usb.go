package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	usb "github.com/kevmo314/go-usb"

	"github.com/kevmo314/go-iidc/pkg/errs"
	"github.com/kevmo314/go-iidc/pkg/registers"
)

// USB IIDC cameras tunnel register access through a vendor request whose
// wValue/wIndex carry the low 32 bits of the bus address.
const (
	requestTypeRead  = 0xC0
	requestTypeWrite = 0x40
	requestRegister  = 0x7F

	// VendorPointGrey is the vendor id of the USB cameras speaking IIDC.
	VendorPointGrey uint16 = 0x1E10
)

const DefaultUSBTimeout = time.Second

// USB is a Transport over a go-usb device handle.
type USB struct {
	handle  *usb.DeviceHandle
	Timeout time.Duration
}

func NewUSB(handle *usb.DeviceHandle) *USB {
	return &USB{handle: handle, Timeout: DefaultUSBTimeout}
}

// WrapUSB wraps an already opened usbfs file descriptor, for platforms where
// the application receives the descriptor from the system (Android).
func WrapUSB(fd uintptr) (*USB, error) {
	handle, err := usb.WrapSysDevice(int(fd))
	if err != nil {
		return nil, fmt.Errorf("%w: wrap usb device: %w", errs.ErrFailure, err)
	}
	return NewUSB(handle), nil
}

// USBDevice describes an IIDC capable device found on the USB buses.
type USBDevice struct {
	Path      string
	VendorID  uint16
	ProductID uint16
	Serial    string
	open      func() (*usb.DeviceHandle, error)
}

// Open opens the device and returns a transport for it.
func (d *USBDevice) Open() (*USB, error) {
	handle, err := d.open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", errs.ErrFailure, d.Path, err)
	}
	return NewUSB(handle), nil
}

// ListUSB returns the devices matching vendor (and product, when non-zero).
func ListUSB(vendor, product uint16) ([]*USBDevice, error) {
	devices, err := usb.DeviceList()
	if err != nil {
		return nil, fmt.Errorf("%w: list usb devices: %w", errs.ErrFailure, err)
	}
	var found []*USBDevice
	for _, dev := range devices {
		if dev.Descriptor.VendorID != vendor {
			continue
		}
		if product != 0 && dev.Descriptor.ProductID != product {
			continue
		}
		d := &USBDevice{
			Path:      dev.Path,
			VendorID:  dev.Descriptor.VendorID,
			ProductID: dev.Descriptor.ProductID,
			open:      dev.Open,
		}
		if dev.SysfsStrings != nil {
			d.Serial = dev.SysfsStrings.Serial
		}
		found = append(found, d)
	}
	return found, nil
}

func (t *USB) ReadQuadlet(offset uint64) (uint32, error) {
	addr := registers.ConfigROMBase + offset
	buf := make([]byte, 4)
	n, err := t.handle.ControlTransfer(
		requestTypeRead,
		requestRegister,
		uint16(addr&0xFFFF),
		uint16((addr>>16)&0xFFFF),
		buf,
		t.Timeout,
	)
	if err != nil {
		return 0, transferError("read", offset, err)
	}
	if n != len(buf) {
		return 0, fmt.Errorf("%w: read 0x%x: short transfer (%d bytes)", errs.ErrFailure, offset, n)
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func (t *USB) WriteQuadlet(offset uint64, value uint32) error {
	addr := registers.ConfigROMBase + offset
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, value)
	n, err := t.handle.ControlTransfer(
		requestTypeWrite,
		requestRegister,
		uint16(addr&0xFFFF),
		uint16((addr>>16)&0xFFFF),
		buf,
		t.Timeout,
	)
	if err != nil {
		return transferError("write", offset, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: write 0x%x: short transfer (%d bytes)", errs.ErrFailure, offset, n)
	}
	return nil
}

// transferError classifies a failed control transfer. Timeouts surface as
// errs.ErrTimeout, everything else as errs.ErrFailure.
func transferError(op string, offset uint64, err error) error {
	class := errs.ErrFailure
	if errors.Is(err, usb.ErrTimeout) {
		class = errs.ErrTimeout
	}
	return fmt.Errorf("%w: %s 0x%x: %w", class, op, offset, err)
}

func (t *USB) Close() error {
	return t.handle.Close()
}
