// Package camera drives the command registers of an IIDC camera.
package camera

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kevmo314/go-iidc/pkg/errs"
	"github.com/kevmo314/go-iidc/pkg/registers"
	"github.com/kevmo314/go-iidc/pkg/transport"
)

// Config describes a camera whose unit directory has already been parsed.
type Config struct {
	GUID          uint64
	Port          int
	Node          uint16
	Version       registers.Version
	OperationMode registers.OperationMode
	CommandBase   uint64
}

// Camera is one IIDC device on a bus. Register methods do not lock; callers
// running a multi-register sequence hold Lock for its duration.
type Camera struct {
	Transport transport.Transport

	Port          int
	Node          uint16
	Version       registers.Version
	OperationMode registers.OperationMode
	CommandBase   uint64

	Log zerolog.Logger

	guid uint64
	mu   sync.Mutex
}

func New(t transport.Transport, cfg Config) *Camera {
	if cfg.OperationMode == 0 {
		cfg.OperationMode = registers.OperationModeLegacy
	}
	return &Camera{
		Transport:     t,
		Port:          cfg.Port,
		Node:          cfg.Node,
		Version:       cfg.Version,
		OperationMode: cfg.OperationMode,
		CommandBase:   cfg.CommandBase,
		Log:           zerolog.Nop(),
		guid:          cfg.GUID,
	}
}

func (c *Camera) GUID() uint64 {
	return c.guid
}

// Lock gives the caller exclusive use of the camera's registers.
func (c *Camera) Lock() {
	c.mu.Lock()
}

func (c *Camera) Unlock() {
	c.mu.Unlock()
}

// ChannelMask returns the isochronous channels the camera can be programmed
// with in its current operation mode.
func (c *Camera) ChannelMask() uint64 {
	if c.OperationMode == registers.OperationMode1394b {
		return ^uint64(0)
	}
	return 0xFFFF
}

func (c *Camera) ReadCommand(reg registers.CommandRegister) (uint32, error) {
	v, err := c.Transport.ReadQuadlet(c.CommandBase + uint64(reg))
	if err != nil {
		return 0, fmt.Errorf("read command register 0x%03x: %w", uint64(reg), err)
	}
	return v, nil
}

func (c *Camera) WriteCommand(reg registers.CommandRegister, value uint32) error {
	if err := c.Transport.WriteQuadlet(c.CommandBase+uint64(reg), value); err != nil {
		return fmt.Errorf("write command register 0x%03x: %w", uint64(reg), err)
	}
	return nil
}

// ReadGUID reads the 64-bit unique id from the bus info block.
func (c *Camera) ReadGUID() (uint64, error) {
	hi, err := c.Transport.ReadQuadlet(registers.GUIDHi)
	if err != nil {
		return 0, fmt.Errorf("read guid: %w", err)
	}
	lo, err := c.Transport.ReadQuadlet(registers.GUIDLo)
	if err != nil {
		return 0, fmt.Errorf("read guid: %w", err)
	}
	c.guid = uint64(hi)<<32 | uint64(lo)
	return c.guid, nil
}

// Initialize resets the camera to its factory defaults.
func (c *Camera) Initialize() error {
	c.Log.Debug().Uint64("guid", c.guid).Msg("[camera] initialize")
	return c.WriteCommand(registers.CommandRegisterInitialize, registers.InitializeCamera)
}

func (c *Camera) IsoStatus() (bool, error) {
	v, err := c.ReadCommand(registers.CommandRegisterISOEn)
	if err != nil {
		return false, err
	}
	return v&registers.ISOEnabled != 0, nil
}

// SetTransmission starts or stops isochronous transmission.
func (c *Camera) SetTransmission(on bool) error {
	var v uint32
	if on {
		v = registers.ISOEnabled
	}
	c.Log.Debug().Uint64("guid", c.guid).Bool("on", on).Msg("[camera] transmission")
	return c.WriteCommand(registers.CommandRegisterISOEn, v)
}

// SetIsoChannelAndSpeed programs ISO_DATA. Legacy mode carries a 4-bit
// channel and speeds up to S400, 1394B mode a 6-bit channel and any speed.
func (c *Camera) SetIsoChannelAndSpeed(channel uint8, speed registers.Speed) error {
	if !speed.Valid() {
		return fmt.Errorf("%w: speed %s", errs.ErrInvalidParameter, speed)
	}
	var v uint32
	if c.OperationMode == registers.OperationMode1394b {
		if channel > 63 {
			return fmt.Errorf("%w: channel %d", errs.ErrInvalidParameter, channel)
		}
		v = registers.OperationMode1394B | uint32(channel)<<8 | uint32(speed)
	} else {
		if channel > 15 {
			return fmt.Errorf("%w: channel %d in legacy mode", errs.ErrInvalidParameter, channel)
		}
		if speed > registers.Speed400 {
			return fmt.Errorf("%w: speed %s in legacy mode", errs.ErrInvalidParameter, speed)
		}
		v = uint32(channel)<<28 | uint32(speed)<<24
	}
	c.Log.Debug().Uint64("guid", c.guid).Uint8("channel", channel).Stringer("speed", speed).Msg("[camera] iso channel")
	return c.WriteCommand(registers.CommandRegisterISOData, v)
}

func (c *Camera) IsoChannelAndSpeed() (uint8, registers.Speed, error) {
	v, err := c.ReadCommand(registers.CommandRegisterISOData)
	if err != nil {
		return 0, 0, err
	}
	if v&registers.OperationMode1394B != 0 {
		return uint8(v >> 8 & 0x3F), registers.Speed(v & 0x7), nil
	}
	return uint8(v >> 28 & 0xF), registers.Speed(v >> 24 & 0x3), nil
}

func (c *Camera) VideoFormat() (registers.Format, error) {
	v, err := c.ReadCommand(registers.CommandRegisterCurVFormat)
	if err != nil {
		return 0, err
	}
	return registers.Format0 + registers.Format(v>>29), nil
}

func (c *Camera) SetVideoFormat(f registers.Format) error {
	return c.WriteCommand(registers.CommandRegisterCurVFormat, f.Index()<<29)
}

// VideoMode reads the current format and mode.
func (c *Camera) VideoMode() (registers.Mode, error) {
	f, err := c.VideoFormat()
	if err != nil {
		return 0, err
	}
	v, err := c.ReadCommand(registers.CommandRegisterCurVMode)
	if err != nil {
		return 0, err
	}
	m, ok := registers.ModeOf(f, v>>29)
	if !ok {
		return 0, fmt.Errorf("%w: camera reports mode %d of %s", errs.ErrFailure, v>>29, f)
	}
	return m, nil
}

// SetVideoMode writes the mode index only; the format is programmed
// separately with SetVideoFormat.
func (c *Camera) SetVideoMode(m registers.Mode) error {
	i, ok := m.Index()
	if !ok {
		return fmt.Errorf("%w: mode %s", errs.ErrInvalidParameter, m)
	}
	return c.WriteCommand(registers.CommandRegisterCurVMode, i<<29)
}

func (c *Camera) Framerate() (registers.Framerate, error) {
	v, err := c.ReadCommand(registers.CommandRegisterCurVFrmRate)
	if err != nil {
		return 0, err
	}
	return registers.FramerateMin + registers.Framerate(v>>29), nil
}

func (c *Camera) SetFramerate(f registers.Framerate) error {
	if !f.Valid() {
		return fmt.Errorf("%w: framerate %s", errs.ErrInvalidParameter, f)
	}
	return c.WriteCommand(registers.CommandRegisterCurVFrmRate, f.Index()<<29)
}

// Format7CSR returns the offset of a Format7 mode's register block.
func (c *Camera) Format7CSR(m registers.Mode) (uint64, error) {
	if !m.IsFormat7() {
		return 0, fmt.Errorf("%w: %s is not a Format7 mode", errs.ErrInvalidParameter, m)
	}
	n := uint64(m - registers.ModeFormat7Min)
	v, err := c.ReadCommand(registers.CommandRegisterVCSRInq70 + registers.CommandRegister(n*4))
	if err != nil {
		return 0, err
	}
	return uint64(v) * 4, nil
}

func (c *Camera) Format7Register(m registers.Mode, reg registers.Format7Register) (uint32, error) {
	base, err := c.Format7CSR(m)
	if err != nil {
		return 0, err
	}
	v, err := c.Transport.ReadQuadlet(base + uint64(reg))
	if err != nil {
		return 0, fmt.Errorf("read %s register 0x%03x: %w", m, uint64(reg), err)
	}
	return v, nil
}

func (c *Camera) SetFormat7Register(m registers.Mode, reg registers.Format7Register, value uint32) error {
	base, err := c.Format7CSR(m)
	if err != nil {
		return err
	}
	if err := c.Transport.WriteQuadlet(base+uint64(reg), value); err != nil {
		return fmt.Errorf("write %s register 0x%03x: %w", m, uint64(reg), err)
	}
	return nil
}
