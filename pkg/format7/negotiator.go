// Package format7 negotiates scalable image geometry and packet size with an
// IIDC camera.
package format7

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kevmo314/go-iidc/pkg/camera"
	"github.com/kevmo314/go-iidc/pkg/errs"
	"github.com/kevmo314/go-iidc/pkg/registers"
)

const (
	DefaultHandshakeTimeout = time.Second
	DefaultPollInterval     = time.Millisecond
)

type Negotiator struct {
	Camera *camera.Camera

	// HandshakeTimeout bounds the wait for the camera to apply a commit.
	HandshakeTimeout time.Duration
	PollInterval     time.Duration

	Log zerolog.Logger
}

func New(cam *camera.Camera) *Negotiator {
	return &Negotiator{
		Camera:           cam,
		HandshakeTimeout: DefaultHandshakeTimeout,
		PollInterval:     DefaultPollInterval,
		Log:              cam.Log,
	}
}

// Negotiate programs the camera for req and returns the geometry it settled
// on. Transmission is paused for the duration and restarted only on success.
// Writes made before a failure are not rolled back.
func (n *Negotiator) Negotiate(req Request) (*Geometry, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	cam := n.Camera
	cam.Lock()
	defer cam.Unlock()

	caps := capabilitiesOf(cam.Version)
	mode := req.Mode

	transmitting, err := cam.IsoStatus()
	if err != nil {
		return nil, err
	}
	if transmitting {
		if err := cam.SetTransmission(false); err != nil {
			return nil, fmt.Errorf("stop transmission: %w", err)
		}
	}

	if err := cam.SetIsoChannelAndSpeed(req.Channel, req.Speed); err != nil {
		return nil, err
	}
	if err := cam.SetVideoFormat(registers.Format7); err != nil {
		return nil, err
	}
	if err := cam.SetVideoMode(mode); err != nil {
		return nil, err
	}
	if req.ColorCoding != 0 {
		if err := n.setColorCodingID(mode, caps, req.ColorCoding); err != nil {
			return nil, err
		}
	}

	packet := req.PacketBytes
	if packet.IsFromCamera() {
		bytes, err := n.BytesPerPacket(mode)
		if err != nil {
			return nil, err
		}
		packet = Literal(bytes)
	}

	g := &Geometry{Mode: mode}
	if err := n.resolveGeometry(req, caps, g); err != nil {
		return nil, err
	}
	if err := n.setImagePosition(mode, caps, g.Left, g.Top); err != nil {
		return nil, err
	}
	if err := n.setImageSize(mode, caps, g.Width, g.Height); err != nil {
		return nil, err
	}

	bytes, err := n.resolvePacketBytes(mode, packet)
	if err != nil {
		return nil, err
	}
	if err := n.setBytesPerPacket(mode, caps, bytes); err != nil {
		return nil, err
	}
	if g.PacketBytes, err = n.BytesPerPacket(mode); err != nil {
		return nil, err
	}
	g.QuadletsPerPacket = g.PacketBytes / 4
	if g.QuadletsPerPacket == 0 {
		return nil, fmt.Errorf("%w: %s settled on %d bytes per packet", errs.ErrFailure, mode, g.PacketBytes)
	}

	if g.ColorCoding, err = n.ColorCodingID(mode); err != nil {
		return nil, err
	}
	if caps.packetsPerFrame {
		if g.PacketsPerFrame, err = cam.Format7Register(mode, registers.Format7RegisterPacketPerFrame); err != nil {
			return nil, err
		}
	} else {
		num, den, ok := g.ColorCoding.BytesPerPixel()
		if !ok {
			return nil, fmt.Errorf("%w: %s reports color coding %s", errs.ErrFailure, mode, g.ColorCoding)
		}
		frame := uint64(g.Width) * uint64(g.Height) * num / den
		g.PacketsPerFrame = uint32((frame + uint64(g.PacketBytes) - 1) / uint64(g.PacketBytes))
	}
	g.QuadletsPerFrame = uint64(g.PacketsPerFrame) * uint64(g.PacketBytes) / 4
	if g.QuadletsPerFrame == 0 {
		return nil, fmt.Errorf("%w: %s reports %d packets per frame", errs.ErrFailure, mode, g.PacketsPerFrame)
	}
	g.FrameBytes = g.QuadletsPerFrame * 4

	if transmitting {
		if err := cam.SetTransmission(true); err != nil {
			return nil, fmt.Errorf("restart transmission: %w", err)
		}
	}

	n.Log.Debug().
		Uint64("guid", cam.GUID()).
		Stringer("mode", mode).
		Uint32("left", g.Left).Uint32("top", g.Top).
		Uint32("width", g.Width).Uint32("height", g.Height).
		Uint32("bpp", g.PacketBytes).
		Uint32("ppf", g.PacketsPerFrame).
		Msg("[format7] negotiated")
	return g, nil
}

// resolveGeometry turns the position and size policies into literals and
// checks them against the mode's granularity and bounds.
func (n *Negotiator) resolveGeometry(req Request, caps capabilities, g *Geometry) error {
	mode := req.Mode

	left, top, err := n.ImagePosition(mode)
	if err != nil {
		return err
	}
	if v, ok := req.Left.Value(); ok {
		left = v
	}
	if v, ok := req.Top.Value(); ok {
		top = v
	}

	width, height := req.Width, req.Height
	if width.IsFromCamera() || height.IsFromCamera() {
		w, h, err := n.ImageSize(mode)
		if err != nil {
			return err
		}
		width, height = fromCamera(width, w), fromCamera(height, h)
	}

	maxWidth, maxHeight, err := n.MaxImageSize(mode)
	if err != nil {
		return err
	}
	unitWidth, unitHeight, err := n.UnitSize(mode)
	if err != nil {
		return err
	}
	unitLeft, unitTop, err := n.unitPosition(mode, caps)
	if err != nil {
		return err
	}

	g.Left, g.Top = left, top
	g.Width = resolveDimension(width, maxWidth, left, unitWidth)
	g.Height = resolveDimension(height, maxHeight, top, unitHeight)

	for _, c := range []struct {
		name       string
		pos, size  uint32
		max        uint32
		unitPos    uint32
		unitLength uint32
	}{
		{"horizontal", g.Left, g.Width, maxWidth, unitLeft, unitWidth},
		{"vertical", g.Top, g.Height, maxHeight, unitTop, unitHeight},
	} {
		switch {
		case c.size == 0:
			return fmt.Errorf("%w: %s: %s size is zero", errs.ErrInvalidParameter, mode, c.name)
		case uint64(c.pos)+uint64(c.size) > uint64(c.max):
			return fmt.Errorf("%w: %s: %s position %d + size %d exceeds %d", errs.ErrInvalidParameter, mode, c.name, c.pos, c.size, c.max)
		case c.pos%max(c.unitPos, 1) != 0:
			return fmt.Errorf("%w: %s: %s position %d is not a multiple of %d", errs.ErrInvalidParameter, mode, c.name, c.pos, c.unitPos)
		case c.size%max(c.unitLength, 1) != 0:
			return fmt.Errorf("%w: %s: %s size %d is not a multiple of %d", errs.ErrInvalidParameter, mode, c.name, c.size, c.unitLength)
		}
	}
	return nil
}

// fromCamera adopts the camera's value; zero means the camera has none yet.
func fromCamera(p Param, current uint32) Param {
	if !p.IsFromCamera() {
		return p
	}
	if current == 0 {
		return Maximum
	}
	return Literal(current)
}

// resolveDimension returns the literal, or for Maximum the room left after
// pos rounded down to the unit.
func resolveDimension(p Param, maxLength, pos, unit uint32) uint32 {
	if v, ok := p.Value(); ok {
		return v
	}
	if pos >= maxLength {
		return 0
	}
	length := maxLength - pos
	return length - length%max(unit, 1)
}

func (n *Negotiator) resolvePacketBytes(mode registers.Mode, p Param) (uint32, error) {
	recommended, err := n.RecommendedBytesPerPacket(mode)
	if err != nil {
		return 0, err
	}
	unit, maxBytes, err := n.PacketParameters(mode)
	if err != nil {
		return 0, err
	}

	switch {
	case p.IsRecommended():
		if recommended > 0 {
			return recommended, nil
		}
		n.Log.Debug().Stringer("mode", mode).Uint32("max", maxBytes).Msg("[format7] no recommended packet size, using maximum")
		return maxBytes, nil
	case p.IsMaximum():
		return maxBytes, nil
	}
	bytes, _ := p.Value()
	return clampPacketBytes(bytes, unit, maxBytes), nil
}

// clampPacketBytes limits bytes to [unit, max] and rounds it down to a
// multiple of unit. A zero unit means packets must be max bytes.
func clampPacketBytes(bytes, unit, maxBytes uint32) uint32 {
	if unit == 0 {
		unit = maxBytes
	}
	if unit == 0 {
		return 0
	}
	if bytes > maxBytes {
		bytes = maxBytes
	} else if bytes < unit {
		bytes = unit
	}
	return bytes - bytes%unit
}
