package iidc

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kevmo314/go-iidc/pkg/camera"
	"github.com/kevmo314/go-iidc/pkg/errs"
	"github.com/kevmo314/go-iidc/pkg/transport"
)

// Device is a camera reached over USB.
type Device struct {
	*camera.Camera
	usb *transport.USB
}

// NewDevice wraps an already opened USB file descriptor. The GUID is read
// from the camera when cfg leaves it zero.
func NewDevice(fd uintptr, cfg camera.Config, log zerolog.Logger) (*Device, error) {
	t, err := transport.WrapUSB(fd)
	if err != nil {
		return nil, err
	}
	return newDevice(t, cfg, log)
}

// OpenUSB opens the first camera matching vendor and product (any product
// when zero).
func OpenUSB(vendor, product uint16, cfg camera.Config, log zerolog.Logger) (*Device, error) {
	devices, err := transport.ListUSB(vendor, product)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: no usb camera %04x:%04x", errs.ErrFailure, vendor, product)
	}
	t, err := devices[0].Open()
	if err != nil {
		return nil, err
	}
	log.Debug().Str("path", devices[0].Path).Str("serial", devices[0].Serial).Msg("[iidc] open usb camera")
	return newDevice(t, cfg, log)
}

func newDevice(t *transport.USB, cfg camera.Config, log zerolog.Logger) (*Device, error) {
	cam := camera.New(transport.Traced(t, log), cfg)
	cam.Log = log
	if cfg.GUID == 0 {
		if _, err := cam.ReadGUID(); err != nil {
			_ = t.Close()
			return nil, err
		}
	}
	return &Device{Camera: cam, usb: t}, nil
}

func (d *Device) Close() error {
	return d.usb.Close()
}
