package registers

import "fmt"

// Version is the IIDC specification level a camera implements. Values are
// ordered by capability, so comparisons such as v >= Version1_30 are valid.
// VersionPTGrey sorts below 1.30: those cameras report 0x114 but behave as
// 1.20 devices.
type Version int

const (
	Version1_04 Version = iota + 544
	Version1_20
	VersionPTGrey
	Version1_30
	Version1_31
	Version1_32
	Version1_33
	Version1_34
	Version1_35
	Version1_36
	Version1_37
	Version1_38
	Version1_39
)

const (
	VersionMin = Version1_04
	VersionMax = Version1_39
)

func (v Version) Valid() bool {
	return v >= VersionMin && v <= VersionMax
}

func (v Version) String() string {
	switch {
	case v == Version1_04:
		return "1.04"
	case v == Version1_20:
		return "1.20"
	case v == VersionPTGrey:
		return "ptgrey"
	case v >= Version1_30 && v <= Version1_39:
		return fmt.Sprintf("1.3%d", int(v-Version1_30))
	}
	return fmt.Sprintf("Version(%d)", int(v))
}

// ParseVersion is the inverse of String.
func ParseVersion(s string) (Version, error) {
	for v := VersionMin; v <= VersionMax; v++ {
		if v.String() == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown IIDC version %q", s)
}

// VersionFromUnitSWVersion maps the unit directory sw_version entry to a
// Version.
func VersionFromUnitSWVersion(sw uint32) (Version, error) {
	switch {
	case sw == 0x100:
		return Version1_04, nil
	case sw == 0x101:
		return Version1_20, nil
	case sw == 0x114:
		return VersionPTGrey, nil
	case sw >= 0x102 && sw <= 0x10B:
		return Version1_30 + Version(sw-0x102), nil
	}
	return 0, fmt.Errorf("unknown unit sw_version 0x%x", sw)
}
