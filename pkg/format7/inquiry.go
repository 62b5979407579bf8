package format7

import (
	"fmt"
	"math"

	"github.com/kevmo314/go-iidc/pkg/errs"
	"github.com/kevmo314/go-iidc/pkg/registers"
)

// The register accessors below do not lock the camera. Callers composing
// them into a sequence hold Camera.Lock.

func (n *Negotiator) halves(mode registers.Mode, reg registers.Format7Register) (uint32, uint32, error) {
	v, err := n.Camera.Format7Register(mode, reg)
	if err != nil {
		return 0, 0, err
	}
	return registers.Hi16(v), registers.Lo16(v), nil
}

func (n *Negotiator) MaxImageSize(mode registers.Mode) (width, height uint32, err error) {
	return n.halves(mode, registers.Format7RegisterMaxImageSizeInq)
}

func (n *Negotiator) UnitSize(mode registers.Mode) (width, height uint32, err error) {
	return n.halves(mode, registers.Format7RegisterUnitSizeInq)
}

// UnitPosition returns the position granularity. Cameras older than 1.30
// have no such register and use the unit size.
func (n *Negotiator) UnitPosition(mode registers.Mode) (left, top uint32, err error) {
	return n.unitPosition(mode, capabilitiesOf(n.Camera.Version))
}

func (n *Negotiator) unitPosition(mode registers.Mode, caps capabilities) (left, top uint32, err error) {
	if !caps.unitPosition {
		return n.UnitSize(mode)
	}
	return n.halves(mode, registers.Format7RegisterUnitPositionInq)
}

func (n *Negotiator) ImagePosition(mode registers.Mode) (left, top uint32, err error) {
	return n.halves(mode, registers.Format7RegisterImagePosition)
}

// SetImagePosition writes and commits the image position.
func (n *Negotiator) SetImagePosition(mode registers.Mode, left, top uint32) error {
	return n.setImagePosition(mode, capabilitiesOf(n.Camera.Version), left, top)
}

func (n *Negotiator) setImagePosition(mode registers.Mode, caps capabilities, left, top uint32) error {
	if err := n.Camera.SetFormat7Register(mode, registers.Format7RegisterImagePosition, registers.Pack16(left, top)); err != nil {
		return err
	}
	return n.commit(mode, caps, false)
}

func (n *Negotiator) ImageSize(mode registers.Mode) (width, height uint32, err error) {
	return n.halves(mode, registers.Format7RegisterImageSize)
}

// SetImageSize writes and commits the image size.
func (n *Negotiator) SetImageSize(mode registers.Mode, width, height uint32) error {
	return n.setImageSize(mode, capabilitiesOf(n.Camera.Version), width, height)
}

func (n *Negotiator) setImageSize(mode registers.Mode, caps capabilities, width, height uint32) error {
	if err := n.Camera.SetFormat7Register(mode, registers.Format7RegisterImageSize, registers.Pack16(width, height)); err != nil {
		return err
	}
	return n.commit(mode, caps, false)
}

func (n *Negotiator) ColorCodingID(mode registers.Mode) (registers.ColorCoding, error) {
	v, err := n.Camera.Format7Register(mode, registers.Format7RegisterColorCodingID)
	if err != nil {
		return 0, err
	}
	return registers.ColorCodingFromID(v >> 24), nil
}

// SetColorCodingID writes and commits the color coding.
func (n *Negotiator) SetColorCodingID(mode registers.Mode, coding registers.ColorCoding) error {
	return n.setColorCodingID(mode, capabilitiesOf(n.Camera.Version), coding)
}

func (n *Negotiator) setColorCodingID(mode registers.Mode, caps capabilities, coding registers.ColorCoding) error {
	if !coding.Valid() {
		return fmt.Errorf("%w: color coding %s", errs.ErrInvalidParameter, coding)
	}
	if err := n.Camera.SetFormat7Register(mode, registers.Format7RegisterColorCodingID, coding.ID()<<24); err != nil {
		return err
	}
	return n.commit(mode, caps, false)
}

// ColorCodings decodes COLOR_CODING_INQ, bit 31 being MONO8.
func (n *Negotiator) ColorCodings(mode registers.Mode) ([]registers.ColorCoding, error) {
	v, err := n.Camera.Format7Register(mode, registers.Format7RegisterColorCodingInq)
	if err != nil {
		return nil, err
	}
	var codings []registers.ColorCoding
	for c := registers.ColorCodingMin; c <= registers.ColorCodingMax; c++ {
		if v&(1<<(31-c.ID())) != 0 {
			codings = append(codings, c)
		}
	}
	return codings, nil
}

func (n *Negotiator) ColorFilter(mode registers.Mode) (registers.ColorFilter, error) {
	v, err := n.Camera.Format7Register(mode, registers.Format7RegisterColorFilterID)
	if err != nil {
		return 0, err
	}
	return registers.ColorFilterRGGB + registers.ColorFilter(v>>24), nil
}

func (n *Negotiator) SetColorFilter(mode registers.Mode, filter registers.ColorFilter) error {
	if filter < registers.ColorFilterRGGB || filter > registers.ColorFilterBGGR {
		return fmt.Errorf("%w: color filter %s", errs.ErrInvalidParameter, filter)
	}
	return n.Camera.SetFormat7Register(mode, registers.Format7RegisterColorFilterID, uint32(filter-registers.ColorFilterRGGB)<<24)
}

func (n *Negotiator) PixelNumber(mode registers.Mode) (uint32, error) {
	return n.Camera.Format7Register(mode, registers.Format7RegisterPixelNumberInq)
}

func (n *Negotiator) TotalBytes(mode registers.Mode) (uint64, error) {
	hi, err := n.Camera.Format7Register(mode, registers.Format7RegisterTotalBytesHiInq)
	if err != nil {
		return 0, err
	}
	lo, err := n.Camera.Format7Register(mode, registers.Format7RegisterTotalBytesLoInq)
	if err != nil {
		return 0, err
	}
	return uint64(lo) | uint64(hi)<<32, nil
}

// PacketParameters returns the packet size unit (minimum) and maximum.
func (n *Negotiator) PacketParameters(mode registers.Mode) (unit, max uint32, err error) {
	return n.halves(mode, registers.Format7RegisterPacketParaInq)
}

func (n *Negotiator) BytesPerPacket(mode registers.Mode) (uint32, error) {
	v, err := n.Camera.Format7Register(mode, registers.Format7RegisterBytePerPacket)
	if err != nil {
		return 0, err
	}
	return registers.Hi16(v), nil
}

// SetBytesPerPacket writes and commits the packet size, failing with
// errs.ErrInvalidPacketSize when the camera refuses it.
func (n *Negotiator) SetBytesPerPacket(mode registers.Mode, bytes uint32) error {
	return n.setBytesPerPacket(mode, capabilitiesOf(n.Camera.Version), bytes)
}

func (n *Negotiator) setBytesPerPacket(mode registers.Mode, caps capabilities, bytes uint32) error {
	if err := n.Camera.SetFormat7Register(mode, registers.Format7RegisterBytePerPacket, bytes<<16); err != nil {
		return err
	}
	return n.commit(mode, caps, true)
}

func (n *Negotiator) RecommendedBytesPerPacket(mode registers.Mode) (uint32, error) {
	v, err := n.Camera.Format7Register(mode, registers.Format7RegisterBytePerPacket)
	if err != nil {
		return 0, err
	}
	return registers.Lo16(v), nil
}

// PacketsPerFrame reads PACKET_PER_FRAME_INQ on 1.30 cameras. Older cameras
// get an estimate from the total bytes that ignores padding.
func (n *Negotiator) PacketsPerFrame(mode registers.Mode) (uint32, error) {
	if capabilitiesOf(n.Camera.Version).packetsPerFrame {
		return n.Camera.Format7Register(mode, registers.Format7RegisterPacketPerFrame)
	}
	bytes, err := n.BytesPerPacket(mode)
	if err != nil {
		return 0, err
	}
	if bytes == 0 {
		return 0, fmt.Errorf("%w: %s has no packet size", errs.ErrFailure, mode)
	}
	total, err := n.TotalBytes(mode)
	if err != nil {
		return 0, err
	}
	return uint32((total + uint64(bytes) - 1) / uint64(bytes)), nil
}

// DataDepth returns the number of significant bits per pixel (1.31).
func (n *Negotiator) DataDepth(mode registers.Mode) (uint32, error) {
	v, err := n.Camera.Format7Register(mode, registers.Format7RegisterDataDepthInq)
	if err != nil {
		return 0, err
	}
	return v >> 24, nil
}

// FrameInterval returns the minimum frame interval in seconds for the
// current settings (1.31).
func (n *Negotiator) FrameInterval(mode registers.Mode) (float32, error) {
	v, err := n.Camera.Format7Register(mode, registers.Format7RegisterFrameIntervalInq)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ValueSetting reads the handshake register. Cameras older than 1.30 report
// the feature absent without a register read.
func (n *Negotiator) ValueSetting(mode registers.Mode) (ValueSetting, error) {
	if !capabilitiesOf(n.Camera.Version).handshake {
		if !mode.IsFormat7() {
			return ValueSetting{}, fmt.Errorf("%w: %s is not a Format7 mode", errs.ErrInvalidParameter, mode)
		}
		return ValueSetting{}, nil
	}
	v, err := n.Camera.Format7Register(mode, registers.Format7RegisterValueSetting)
	if err != nil {
		return ValueSetting{}, err
	}
	return decodeValueSetting(v), nil
}
