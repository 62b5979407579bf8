// Package fakecam is a register file with just enough IIDC behavior to drive
// the negotiation and capture code in tests.
package fakecam

import (
	"fmt"
	"sync"

	"github.com/kevmo314/go-iidc/pkg/registers"
)

const (
	DefaultCommandBase uint64 = 0xF00000
	format7CSRBase     uint64 = 0xF10000
)

type Write struct {
	Offset uint64
	Value  uint32
}

// Mode is the initial register content of one Format7 mode.
type Mode struct {
	MaxWidth, MaxHeight   uint32
	UnitWidth, UnitHeight uint32
	UnitLeft, UnitTop     uint32
	Left, Top             uint32
	Width, Height         uint32
	Coding                registers.ColorCoding
	Codings               []registers.ColorCoding
	MinBytes, MaxBytes    uint32
	RecommendedBytes      uint32
	Bytes                 uint32
	PacketsPerFrame       uint32
	PixelNumber           uint32
	TotalBytes            uint64
	ValueSetting          bool
}

type Camera struct {
	mu   sync.Mutex
	regs map[uint64]uint32

	CommandBase uint64
	GUID        uint64

	// HandshakeReads is the number of value setting reads that still report
	// the setting bit after a commit request.
	HandshakeReads int
	// Stuck keeps the setting bit set forever.
	Stuck bool
	// HandshakeFlags returns the error flags raised when a commit completes,
	// given the last Format7 register written before it.
	HandshakeFlags func(mode registers.Mode, last registers.Format7Register) uint32
	// AdjustBytes lets the camera pick a different packet size than the one
	// written.
	AdjustBytes func(requested uint32) uint32

	FailRead  map[uint64]error
	FailWrite map[uint64]error

	writes  []Write
	pending map[registers.Mode]int
	last    map[registers.Mode]registers.Format7Register
}

func New() *Camera {
	c := &Camera{
		regs:        map[uint64]uint32{},
		CommandBase: DefaultCommandBase,
		GUID:        0x00B09D0100A1B2C3,
		FailRead:    map[uint64]error{},
		FailWrite:   map[uint64]error{},
		pending:     map[registers.Mode]int{},
		last:        map[registers.Mode]registers.Format7Register{},
	}
	c.regs[registers.GUIDHi] = uint32(c.GUID >> 32)
	c.regs[registers.GUIDLo] = uint32(c.GUID)
	return c
}

func (c *Camera) Command(reg registers.CommandRegister) uint64 {
	return c.CommandBase + uint64(reg)
}

func (c *Camera) Format7(mode registers.Mode, reg registers.Format7Register) uint64 {
	return format7CSRBase + uint64(mode-registers.ModeFormat7Min)*0x100 + uint64(reg)
}

// AddMode publishes a Format7 mode with the given content.
func (c *Camera) AddMode(mode registers.Mode, m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := uint32(mode - registers.ModeFormat7Min)
	c.regs[c.Command(registers.CommandRegisterVFormatInq)] |= 1 << (31 - registers.Format7.Index())
	c.regs[c.Command(registers.CommandRegisterVModeInq7)] |= 1 << (31 - n)
	c.regs[c.Command(registers.CommandRegisterVCSRInq70)+uint64(n)*4] = uint32(c.Format7(mode, 0) / 4)

	set := func(reg registers.Format7Register, v uint32) {
		c.regs[c.Format7(mode, reg)] = v
	}
	set(registers.Format7RegisterMaxImageSizeInq, registers.Pack16(m.MaxWidth, m.MaxHeight))
	set(registers.Format7RegisterUnitSizeInq, registers.Pack16(m.UnitWidth, m.UnitHeight))
	set(registers.Format7RegisterUnitPositionInq, registers.Pack16(m.UnitLeft, m.UnitTop))
	set(registers.Format7RegisterImagePosition, registers.Pack16(m.Left, m.Top))
	set(registers.Format7RegisterImageSize, registers.Pack16(m.Width, m.Height))
	if m.Coding.Valid() {
		set(registers.Format7RegisterColorCodingID, m.Coding.ID()<<24)
	}
	var inq uint32
	for _, coding := range m.Codings {
		inq |= 1 << (31 - coding.ID())
	}
	set(registers.Format7RegisterColorCodingInq, inq)
	set(registers.Format7RegisterPacketParaInq, registers.Pack16(m.MinBytes, m.MaxBytes))
	set(registers.Format7RegisterBytePerPacket, registers.Pack16(m.Bytes, m.RecommendedBytes))
	set(registers.Format7RegisterPacketPerFrame, m.PacketsPerFrame)
	set(registers.Format7RegisterPixelNumberInq, m.PixelNumber)
	set(registers.Format7RegisterTotalBytesHiInq, uint32(m.TotalBytes>>32))
	set(registers.Format7RegisterTotalBytesLoInq, uint32(m.TotalBytes))
	if m.ValueSetting {
		set(registers.Format7RegisterValueSetting, registers.ValueSettingPresent)
	}
}

// Reg returns the raw register content.
func (c *Camera) Reg(offset uint64) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[offset]
}

// Set overwrites a register without side effects.
func (c *Camera) Set(offset uint64, v uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs[offset] = v
}

// Writes returns the write log.
func (c *Camera) Writes() []Write {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Write(nil), c.writes...)
}

// Transmitting reports the ISO_EN state.
func (c *Camera) Transmitting() bool {
	return c.Reg(c.Command(registers.CommandRegisterISOEn))&registers.ISOEnabled != 0
}

func (c *Camera) format7Of(offset uint64) (registers.Mode, registers.Format7Register, bool) {
	if offset < format7CSRBase || offset >= format7CSRBase+uint64(registers.ModeFormat7Num)*0x100 {
		return 0, 0, false
	}
	rel := offset - format7CSRBase
	return registers.ModeFormat7Min + registers.Mode(rel/0x100), registers.Format7Register(rel % 0x100), true
}

func (c *Camera) ReadQuadlet(offset uint64) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.FailRead[offset]; err != nil {
		return 0, err
	}
	v := c.regs[offset]
	if mode, reg, ok := c.format7Of(offset); ok && reg == registers.Format7RegisterValueSetting {
		if n, busy := c.pending[mode]; busy {
			if c.Stuck || n > 0 {
				c.pending[mode] = n - 1
				return v | registers.ValueSettingSetting, nil
			}
			delete(c.pending, mode)
			v &^= registers.ValueSettingErrorFlag1 | registers.ValueSettingErrorFlag2
			if c.HandshakeFlags != nil {
				v |= c.HandshakeFlags(mode, c.last[mode])
			}
			c.regs[offset] = v
		}
	}
	return v, nil
}

func (c *Camera) WriteQuadlet(offset uint64, value uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.FailWrite[offset]; err != nil {
		return err
	}
	c.writes = append(c.writes, Write{Offset: offset, Value: value})

	mode, reg, ok := c.format7Of(offset)
	if !ok {
		c.regs[offset] = value
		return nil
	}
	switch reg {
	case registers.Format7RegisterValueSetting:
		if value&registers.ValueSettingSetting == 0 {
			return fmt.Errorf("fakecam: unexpected value setting write 0x%08x", value)
		}
		c.pending[mode] = c.HandshakeReads
		return nil
	case registers.Format7RegisterBytePerPacket:
		bytes := registers.Hi16(value)
		if c.AdjustBytes != nil {
			bytes = c.AdjustBytes(bytes)
		}
		c.regs[offset] = registers.Pack16(bytes, registers.Lo16(c.regs[offset]))
	default:
		c.regs[offset] = value
	}
	c.last[mode] = reg
	return nil
}
