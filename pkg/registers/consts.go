package registers

import "fmt"

type Speed int

const (
	Speed100 Speed = iota
	Speed200
	Speed400
	Speed800
	Speed1600
	Speed3200
)

func (s Speed) String() string {
	if s < Speed100 || s > Speed3200 {
		return fmt.Sprintf("Speed(%d)", int(s))
	}
	return fmt.Sprintf("S%d", 100<<uint(s))
}

// Valid reports whether s is a defined speed.
func (s Speed) Valid() bool {
	return s >= Speed100 && s <= Speed3200
}

// ParseSpeed accepts "400", "s400" or "S400".
func ParseSpeed(str string) (Speed, error) {
	if len(str) > 0 && (str[0] == 's' || str[0] == 'S') {
		str = str[1:]
	}
	for s := Speed100; s <= Speed3200; s++ {
		if fmt.Sprint(100<<uint(s)) == str {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown iso speed %q", str)
}

type Framerate int

const (
	Framerate1_875 Framerate = iota + 32
	Framerate3_75
	Framerate7_5
	Framerate15
	Framerate30
	Framerate60
	Framerate120
	Framerate240
)

const (
	FramerateMin = Framerate1_875
	FramerateMax = Framerate240
)

func (f Framerate) Valid() bool {
	return f >= FramerateMin && f <= FramerateMax
}

// Index is the value stored in CUR_V_FRM_RATE.
func (f Framerate) Index() uint32 {
	return uint32(f - FramerateMin)
}

func (f Framerate) String() string {
	switch f {
	case Framerate1_875:
		return "1.875fps"
	case Framerate3_75:
		return "3.75fps"
	case Framerate7_5:
		return "7.5fps"
	case Framerate15:
		return "15fps"
	case Framerate30:
		return "30fps"
	case Framerate60:
		return "60fps"
	case Framerate120:
		return "120fps"
	case Framerate240:
		return "240fps"
	}
	return fmt.Sprintf("Framerate(%d)", int(f))
}

type Format int

const (
	Format0 Format = iota + 384
	Format1
	Format2
	Format6 Format = 390
	Format7 Format = 391
)

// Index is the value stored in CUR_V_FORMAT and the bit position in
// V_FORMAT_INQ.
func (f Format) Index() uint32 {
	return uint32(f - Format0)
}

func (f Format) String() string {
	switch f {
	case Format0, Format1, Format2, Format6, Format7:
		return fmt.Sprintf("Format_%d", f.Index())
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

type Mode int

// Format_0
const (
	Mode160x120YUV444 Mode = iota + 64
	Mode320x240YUV422
	Mode640x480YUV411
	Mode640x480YUV422
	Mode640x480RGB8
	Mode640x480Mono8
	Mode640x480Mono16
)

// Format_1
const (
	Mode800x600YUV422 Mode = iota + 96
	Mode800x600RGB8
	Mode800x600Mono8
	Mode1024x768YUV422
	Mode1024x768RGB8
	Mode1024x768Mono8
	Mode800x600Mono16
	Mode1024x768Mono16
)

// Format_2
const (
	Mode1280x960YUV422 Mode = iota + 128
	Mode1280x960RGB8
	Mode1280x960Mono8
	Mode1600x1200YUV422
	Mode1600x1200RGB8
	Mode1600x1200Mono8
	Mode1280x960Mono16
	Mode1600x1200Mono16
)

const ModeEXIF Mode = 256

// Format_7
const (
	ModeFormat7_0 Mode = iota + 288
	ModeFormat7_1
	ModeFormat7_2
	ModeFormat7_3
	ModeFormat7_4
	ModeFormat7_5
	ModeFormat7_6
	ModeFormat7_7
)

const (
	ModeFormat7Min = ModeFormat7_0
	ModeFormat7Max = ModeFormat7_7
	ModeFormat7Num = int(ModeFormat7Max-ModeFormat7Min) + 1
)

var formatModeRanges = []struct {
	format   Format
	min, max Mode
}{
	{Format0, Mode160x120YUV444, Mode640x480Mono16},
	{Format1, Mode800x600YUV422, Mode1024x768Mono16},
	{Format2, Mode1280x960YUV422, Mode1600x1200Mono16},
	{Format6, ModeEXIF, ModeEXIF},
	{Format7, ModeFormat7Min, ModeFormat7Max},
}

// Format returns the video format the mode belongs to.
func (m Mode) Format() (Format, bool) {
	for _, r := range formatModeRanges {
		if m >= r.min && m <= r.max {
			return r.format, true
		}
	}
	return 0, false
}

// Index is the position of the mode inside its format, the value stored in
// CUR_V_MODE.
func (m Mode) Index() (uint32, bool) {
	for _, r := range formatModeRanges {
		if m >= r.min && m <= r.max {
			return uint32(m - r.min), true
		}
	}
	return 0, false
}

// ModeOf is the inverse of Format and Index.
func ModeOf(f Format, index uint32) (Mode, bool) {
	for _, r := range formatModeRanges {
		if r.format == f && index <= uint32(r.max-r.min) {
			return r.min + Mode(index), true
		}
	}
	return 0, false
}

// IsFormat7 reports whether m is a scalable mode.
func (m Mode) IsFormat7() bool {
	return m >= ModeFormat7Min && m <= ModeFormat7Max
}

func (m Mode) String() string {
	if m.IsFormat7() {
		return fmt.Sprintf("Format7_%d", int(m-ModeFormat7Min))
	}
	if f, ok := m.Format(); ok {
		i, _ := m.Index()
		return fmt.Sprintf("%s/Mode_%d", f, i)
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

type ColorCoding int

const (
	ColorCodingMono8 ColorCoding = iota + 320
	ColorCodingYUV411
	ColorCodingYUV422
	ColorCodingYUV444
	ColorCodingRGB8
	ColorCodingMono16
	ColorCodingRGB16
	ColorCodingMono16S
	ColorCodingRGB16S
	ColorCodingRaw8
	ColorCodingRaw16
)

const (
	ColorCodingMin = ColorCodingMono8
	ColorCodingMax = ColorCodingRaw16
)

var colorCodingNames = [...]string{
	"MONO8", "YUV411", "YUV422", "YUV444", "RGB8", "MONO16", "RGB16", "MONO16S", "RGB16S", "RAW8", "RAW16",
}

func (c ColorCoding) Valid() bool {
	return c >= ColorCodingMin && c <= ColorCodingMax
}

// ID is the value carried in the top byte of COLOR_CODING_ID.
func (c ColorCoding) ID() uint32 {
	return uint32(c - ColorCodingMin)
}

// ColorCodingFromID is the inverse of ID.
func ColorCodingFromID(id uint32) ColorCoding {
	return ColorCodingMin + ColorCoding(id)
}

func (c ColorCoding) String() string {
	if !c.Valid() {
		return fmt.Sprintf("ColorCoding(%d)", int(c))
	}
	return colorCodingNames[c-ColorCodingMin]
}

// ParseColorCoding accepts the names printed by String, case sensitive.
func ParseColorCoding(s string) (ColorCoding, error) {
	for i, name := range colorCodingNames {
		if name == s {
			return ColorCodingMin + ColorCoding(i), nil
		}
	}
	return 0, fmt.Errorf("unknown color coding %q", s)
}

// BytesPerPixel returns the size of one pixel as halves of a byte, so YUV411
// is (3, 2). ok is false for codings without a fixed size.
func (c ColorCoding) BytesPerPixel() (num, den uint64, ok bool) {
	switch c {
	case ColorCodingMono8, ColorCodingRaw8:
		return 2, 2, true
	case ColorCodingYUV411:
		return 3, 2, true
	case ColorCodingYUV422, ColorCodingMono16, ColorCodingMono16S, ColorCodingRaw16:
		return 4, 2, true
	case ColorCodingYUV444, ColorCodingRGB8:
		return 6, 2, true
	case ColorCodingRGB16, ColorCodingRGB16S:
		return 12, 2, true
	}
	return 0, 0, false
}

type ColorFilter int

const (
	ColorFilterRGGB ColorFilter = iota + 512
	ColorFilterGBRG
	ColorFilterGRBG
	ColorFilterBGGR
)

func (f ColorFilter) String() string {
	switch f {
	case ColorFilterRGGB:
		return "RGGB"
	case ColorFilterGBRG:
		return "GBRG"
	case ColorFilterGRBG:
		return "GRBG"
	case ColorFilterBGGR:
		return "BGGR"
	}
	return fmt.Sprintf("ColorFilter(%d)", int(f))
}

type OperationMode int

const (
	OperationModeLegacy OperationMode = iota + 480
	OperationMode1394b
)

func (m OperationMode) String() string {
	if m == OperationMode1394b {
		return "1394b"
	}
	return "legacy"
}

func ParseOperationMode(s string) (OperationMode, error) {
	switch s {
	case "", "legacy":
		return OperationModeLegacy, nil
	case "1394b", "1394B":
		return OperationMode1394b, nil
	}
	return 0, fmt.Errorf("unknown operation mode %q", s)
}
