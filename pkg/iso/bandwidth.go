package iso

import (
	"fmt"

	"github.com/kevmo314/go-iidc/pkg/errs"
	"github.com/kevmo314/go-iidc/pkg/registers"
)

// isoOverhead is the packet header, header CRC and data CRC, in quadlets.
const isoOverhead = 3

// BandwidthUnits converts the payload of one isochronous packet sent at speed
// into allocation units.
func BandwidthUnits(packetBytes uint32, speed registers.Speed) (int, error) {
	if packetBytes == 0 {
		return 0, fmt.Errorf("%w: empty packet", errs.ErrInvalidParameter)
	}
	quadlets := int(packetBytes+3)/4 + isoOverhead
	switch speed {
	case registers.Speed100:
		return quadlets * 16, nil
	case registers.Speed200:
		return quadlets * 8, nil
	case registers.Speed400:
		return quadlets * 4, nil
	case registers.Speed800:
		return quadlets * 2, nil
	case registers.Speed1600:
		return quadlets, nil
	case registers.Speed3200:
		return (quadlets + 1) / 2, nil
	}
	return 0, fmt.Errorf("%w: speed %s", errs.ErrInvalidParameter, speed)
}
