package iidc

import (
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/kevmo314/go-iidc/pkg/camera"
	"github.com/kevmo314/go-iidc/pkg/format7"
	"github.com/kevmo314/go-iidc/pkg/iso"
	"github.com/kevmo314/go-iidc/pkg/registers"
)

// Capture describes the frames a negotiated camera sends.
type Capture struct {
	ID       uuid.UUID
	Geometry format7.Geometry

	Port    int
	Node    uint16
	Channel uint8
	Speed   registers.Speed
	// Framerate is not defined for Format7 and stays zero.
	Framerate registers.Framerate

	FrameWidth, FrameHeight uint32
	// BufferSize is the size of one frame in bytes, padding included.
	BufferSize int
	// Buffer is nil when the DMA layer owns the frame buffers.
	Buffer []byte

	allocator *iso.Allocator
	cam       *camera.Camera
	allocated bool
	// bandwidth is in allocation units.
	bandwidth int

	mu     sync.Mutex
	closed bool
}

// Close frees the frame buffer and the channel and bandwidth claimed for the
// session. Grants of persistent devices are kept, and grants a bus reset took
// away are left alone.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if c.Buffer != nil {
		errs = append(errs, freeBuffer(c.Buffer))
		c.Buffer = nil
	}
	if c.allocated {
		// Only what the allocator still lists is ours; grants lost in a bus
		// reset may belong to another host by now.
		if g, ok := c.allocator.Grants(c.cam); ok && !g.Persist {
			if slices.Contains(g.Channels, c.Channel) {
				errs = append(errs, c.allocator.ReleaseChannel(c.cam, c.Channel))
			}
			if units := min(c.bandwidth, g.Bandwidth); units > 0 {
				errs = append(errs, c.allocator.ReleaseBandwidth(c.cam, units))
			}
		}
	}
	return errors.Join(errs...)
}

// BusReset claims the session's resources again after a bus reset and
// reprograms the camera's channel and speed.
func (c *Capture) BusReset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.allocated {
		if err := c.allocator.Reclaim(c.cam); err != nil {
			return err
		}
	}
	c.cam.Lock()
	defer c.cam.Unlock()
	return c.cam.SetIsoChannelAndSpeed(c.Channel, c.Speed)
}
