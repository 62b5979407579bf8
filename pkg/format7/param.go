package format7

import (
	"fmt"
	"strconv"

	"github.com/kevmo314/go-iidc/pkg/errs"
	"github.com/kevmo314/go-iidc/pkg/registers"
)

type paramKind int

const (
	paramFromCamera paramKind = iota
	paramLiteral
	paramMaximum
	paramRecommended
)

// Param is one requested position, size or packet size value: either a
// literal or a policy resolved against the camera during negotiation. The
// zero Param is FromCamera.
type Param struct {
	kind  paramKind
	value uint32
}

var (
	// FromCamera keeps the value currently programmed in the camera.
	FromCamera = Param{kind: paramFromCamera}
	// Maximum uses the largest value the camera allows.
	Maximum = Param{kind: paramMaximum}
	// Recommended uses the camera's recommended packet size. Only valid for
	// packet sizes.
	Recommended = Param{kind: paramRecommended}
)

func Literal(v uint32) Param {
	return Param{kind: paramLiteral, value: v}
}

// Value returns the literal value, ok is false for policies.
func (p Param) Value() (uint32, bool) {
	return p.value, p.kind == paramLiteral
}

func (p Param) IsFromCamera() bool  { return p.kind == paramFromCamera }
func (p Param) IsMaximum() bool     { return p.kind == paramMaximum }
func (p Param) IsRecommended() bool { return p.kind == paramRecommended }

func (p Param) String() string {
	switch p.kind {
	case paramLiteral:
		return strconv.FormatUint(uint64(p.value), 10)
	case paramMaximum:
		return "max"
	case paramRecommended:
		return "recommended"
	}
	return "query"
}

// ParseParam accepts "query", "max", "recommended" or a decimal number. An
// empty string is FromCamera.
func ParseParam(s string) (Param, error) {
	switch s {
	case "", "query":
		return FromCamera, nil
	case "max":
		return Maximum, nil
	case "recommended":
		return Recommended, nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return Param{}, fmt.Errorf("%w: %q is not a number, query, max or recommended", errs.ErrInvalidParameter, s)
	}
	return Literal(uint32(v)), nil
}

// Request is what a caller asks Negotiate for.
type Request struct {
	Mode    registers.Mode
	Channel uint8
	Speed   registers.Speed

	Left, Top     Param
	Width, Height Param
	PacketBytes   Param

	// ColorCoding is programmed before the geometry when set.
	ColorCoding registers.ColorCoding
}

func (r Request) validate() error {
	if !r.Mode.IsFormat7() {
		return fmt.Errorf("%w: %s is not a Format7 mode", errs.ErrInvalidParameter, r.Mode)
	}
	for _, p := range []Param{r.Left, r.Top} {
		if p.IsRecommended() || p.IsMaximum() {
			return fmt.Errorf("%w: position cannot be %s", errs.ErrInvalidParameter, p)
		}
	}
	for _, p := range []Param{r.Width, r.Height} {
		if p.IsRecommended() {
			return fmt.Errorf("%w: size cannot be %s", errs.ErrInvalidParameter, p)
		}
	}
	if r.ColorCoding != 0 && !r.ColorCoding.Valid() {
		return fmt.Errorf("%w: color coding %s", errs.ErrInvalidParameter, r.ColorCoding)
	}
	return nil
}

// Geometry is the outcome of a successful negotiation.
type Geometry struct {
	Mode        registers.Mode
	ColorCoding registers.ColorCoding

	Left, Top     uint32
	Width, Height uint32

	PacketBytes       uint32
	QuadletsPerPacket uint32
	PacketsPerFrame   uint32
	QuadletsPerFrame  uint64
	// FrameBytes is QuadletsPerFrame*4, the capture buffer size.
	FrameBytes uint64
}
