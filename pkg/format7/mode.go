package format7

import (
	"github.com/kevmo314/go-iidc/pkg/registers"
)

// ModeDescriptor is everything a camera reports about one Format7 mode. It is
// read fresh on every query; bounds may change after a bus reset.
type ModeDescriptor struct {
	Mode registers.Mode

	MaxWidth, MaxHeight   uint32
	UnitWidth, UnitHeight uint32
	UnitLeft, UnitTop     uint32
	Left, Top             uint32
	Width, Height         uint32

	ColorCoding  registers.ColorCoding
	ColorCodings []registers.ColorCoding

	MinBytes, MaxBytes uint32
	RecommendedBytes   uint32
	PacketBytes        uint32
	PacketsPerFrame    uint32
	PixelNumber        uint32
	TotalBytes         uint64

	// Set on 1.31 cameras only.
	DataDepth     uint32
	FrameInterval float32
	ColorFilter   registers.ColorFilter
}

// SupportedModes lists the Format7 modes advertised in V_MODE_INQ_7.
func (n *Negotiator) SupportedModes() ([]registers.Mode, error) {
	formats, err := n.Camera.ReadCommand(registers.CommandRegisterVFormatInq)
	if err != nil {
		return nil, err
	}
	if formats&(1<<(31-registers.Format7.Index())) == 0 {
		return nil, nil
	}
	v, err := n.Camera.ReadCommand(registers.CommandRegisterVModeInq7)
	if err != nil {
		return nil, err
	}
	var modes []registers.Mode
	for i := 0; i < registers.ModeFormat7Num; i++ {
		if v&(1<<(31-i)) != 0 {
			modes = append(modes, registers.ModeFormat7Min+registers.Mode(i))
		}
	}
	return modes, nil
}

// QueryMode reads the full descriptor of mode under the camera lock.
func (n *Negotiator) QueryMode(mode registers.Mode) (*ModeDescriptor, error) {
	n.Camera.Lock()
	defer n.Camera.Unlock()
	return n.queryMode(mode)
}

func (n *Negotiator) queryMode(mode registers.Mode) (*ModeDescriptor, error) {
	d := &ModeDescriptor{Mode: mode}
	var err error

	if d.MaxWidth, d.MaxHeight, err = n.MaxImageSize(mode); err != nil {
		return nil, err
	}
	if d.UnitWidth, d.UnitHeight, err = n.UnitSize(mode); err != nil {
		return nil, err
	}
	if d.UnitLeft, d.UnitTop, err = n.UnitPosition(mode); err != nil {
		return nil, err
	}
	if d.Left, d.Top, err = n.ImagePosition(mode); err != nil {
		return nil, err
	}
	if d.Width, d.Height, err = n.ImageSize(mode); err != nil {
		return nil, err
	}
	if d.ColorCoding, err = n.ColorCodingID(mode); err != nil {
		return nil, err
	}
	if d.ColorCodings, err = n.ColorCodings(mode); err != nil {
		return nil, err
	}
	if d.MinBytes, d.MaxBytes, err = n.PacketParameters(mode); err != nil {
		return nil, err
	}
	if d.RecommendedBytes, err = n.RecommendedBytesPerPacket(mode); err != nil {
		return nil, err
	}
	if d.PacketBytes, err = n.BytesPerPacket(mode); err != nil {
		return nil, err
	}
	if d.PixelNumber, err = n.PixelNumber(mode); err != nil {
		return nil, err
	}
	if d.TotalBytes, err = n.TotalBytes(mode); err != nil {
		return nil, err
	}
	if d.PacketBytes > 0 {
		if d.PacketsPerFrame, err = n.PacketsPerFrame(mode); err != nil {
			return nil, err
		}
	}

	if capabilitiesOf(n.Camera.Version).extended {
		if d.DataDepth, err = n.DataDepth(mode); err != nil {
			return nil, err
		}
		if d.FrameInterval, err = n.FrameInterval(mode); err != nil {
			return nil, err
		}
		if d.ColorFilter, err = n.ColorFilter(mode); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// ModeSet queries every supported Format7 mode.
func (n *Negotiator) ModeSet() ([]*ModeDescriptor, error) {
	n.Camera.Lock()
	defer n.Camera.Unlock()

	modes, err := n.SupportedModes()
	if err != nil {
		return nil, err
	}
	set := make([]*ModeDescriptor, 0, len(modes))
	for _, m := range modes {
		d, err := n.queryMode(m)
		if err != nil {
			return nil, err
		}
		set = append(set, d)
	}
	return set, nil
}
