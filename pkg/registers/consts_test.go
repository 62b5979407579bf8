package registers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHalves(t *testing.T) {
	q := Pack16(640, 480)
	if q != 0x028001E0 {
		t.Errorf("Pack16(640, 480) = 0x%08x, want 0x028001e0", q)
	}
	if Hi16(q) != 640 {
		t.Errorf("Hi16 = %d, want 640", Hi16(q))
	}
	if Lo16(q) != 480 {
		t.Errorf("Lo16 = %d, want 480", Lo16(q))
	}
}

func TestModeIndex(t *testing.T) {
	tests := []struct {
		mode   Mode
		format Format
		index  uint32
	}{
		{Mode160x120YUV444, Format0, 0},
		{Mode640x480Mono16, Format0, 6},
		{Mode1024x768Mono16, Format1, 7},
		{Mode1280x960YUV422, Format2, 0},
		{ModeEXIF, Format6, 0},
		{ModeFormat7_0, Format7, 0},
		{ModeFormat7_5, Format7, 5},
	}
	for _, tt := range tests {
		f, ok := tt.mode.Format()
		require.True(t, ok, tt.mode.String())
		assert.Equal(t, tt.format, f, tt.mode.String())
		i, ok := tt.mode.Index()
		require.True(t, ok)
		assert.Equal(t, tt.index, i, tt.mode.String())
	}

	_, ok := Mode(71).Format()
	assert.False(t, ok)
	assert.Equal(t, uint32(7), Format7.Index())
	assert.Equal(t, uint32(6), Format6.Index())
}

func TestVersionOrdering(t *testing.T) {
	assert.Less(t, int(VersionPTGrey), int(Version1_30))
	assert.Less(t, int(Version1_20), int(VersionPTGrey))

	for v := VersionMin; v <= VersionMax; v++ {
		parsed, err := ParseVersion(v.String())
		require.NoError(t, err)
		assert.Equal(t, v, parsed)
	}

	v, err := VersionFromUnitSWVersion(0x102)
	require.NoError(t, err)
	assert.Equal(t, Version1_30, v)
	v, err = VersionFromUnitSWVersion(0x114)
	require.NoError(t, err)
	assert.Equal(t, VersionPTGrey, v)
	_, err = VersionFromUnitSWVersion(0x200)
	assert.Error(t, err)
}

func TestColorCoding(t *testing.T) {
	assert.Equal(t, uint32(2), ColorCodingYUV422.ID())
	assert.Equal(t, ColorCodingRGB8, ColorCodingFromID(4))

	num, den, ok := ColorCodingYUV411.BytesPerPixel()
	require.True(t, ok)
	assert.Equal(t, 1.5, float64(num)/float64(den))

	_, _, ok = ColorCoding(0).BytesPerPixel()
	assert.False(t, ok)

	c, err := ParseColorCoding("RAW16")
	require.NoError(t, err)
	assert.Equal(t, ColorCodingRaw16, c)
}

func TestParseSpeed(t *testing.T) {
	for _, s := range []string{"400", "s400", "S400"} {
		speed, err := ParseSpeed(s)
		require.NoError(t, err)
		assert.Equal(t, Speed400, speed)
	}
	assert.Equal(t, "S3200", Speed3200.String())
	_, err := ParseSpeed("300")
	assert.Error(t, err)
}
