package format7

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevmo314/go-iidc/pkg/errs"
	"github.com/kevmo314/go-iidc/pkg/registers"
)

func TestParseParam(t *testing.T) {
	tests := []struct {
		in   string
		want Param
	}{
		{"", FromCamera},
		{"query", FromCamera},
		{"max", Maximum},
		{"recommended", Recommended},
		{"640", Literal(640)},
		{"0", Literal(0)},
	}
	for _, tt := range tests {
		p, err := ParseParam(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, p, tt.in)
	}
	for _, in := range []string{"-1", "big", "4294967296"} {
		_, err := ParseParam(in)
		assert.ErrorIs(t, err, errs.ErrInvalidParameter, in)
	}

	assert.Equal(t, "1024", Literal(1024).String())
	assert.Equal(t, "query", Param{}.String())
	v, ok := Literal(7).Value()
	assert.True(t, ok)
	assert.Equal(t, uint32(7), v)
	_, ok = Maximum.Value()
	assert.False(t, ok)
}

func TestQueryMode(t *testing.T) {
	m := vga()
	m.RecommendedBytes = 2048
	m.PixelNumber = 640 * 480
	m.TotalBytes = 614400
	n, fake := newNegotiator(t, registers.Version1_31, m)
	fake.Set(fake.Format7(mode, registers.Format7RegisterDataDepthInq), 12<<24)
	fake.Set(fake.Format7(mode, registers.Format7RegisterFrameIntervalInq), math.Float32bits(1.0/30))
	fake.Set(fake.Format7(mode, registers.Format7RegisterColorFilterID), 3<<24)

	d, err := n.QueryMode(mode)
	require.NoError(t, err)
	assert.Equal(t, uint32(640), d.MaxWidth)
	assert.Equal(t, uint32(480), d.MaxHeight)
	assert.Equal(t, uint32(2), d.UnitLeft)
	assert.Equal(t, []registers.ColorCoding{registers.ColorCodingMono8, registers.ColorCodingYUV422}, d.ColorCodings)
	assert.Equal(t, registers.ColorCodingYUV422, d.ColorCoding)
	assert.Equal(t, uint32(4), d.MinBytes)
	assert.Equal(t, uint32(4096), d.MaxBytes)
	assert.Equal(t, uint32(2048), d.RecommendedBytes)
	assert.Equal(t, uint32(512), d.PacketBytes)
	assert.Equal(t, uint32(600), d.PacketsPerFrame)
	assert.Equal(t, uint32(640*480), d.PixelNumber)
	assert.Equal(t, uint64(614400), d.TotalBytes)
	assert.Equal(t, uint32(12), d.DataDepth)
	assert.InDelta(t, 1.0/30, d.FrameInterval, 1e-6)
	assert.Equal(t, registers.ColorFilterBGGR, d.ColorFilter)

	_, err = n.QueryMode(registers.Mode640x480Mono8)
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)
}

func TestQueryModeLegacy(t *testing.T) {
	m := vga()
	m.UnitLeft, m.UnitTop = 0, 0
	m.TotalBytes = 1 << 32
	n, fake := newNegotiator(t, registers.Version1_20, m)
	fake.Set(fake.Format7(mode, registers.Format7RegisterDataDepthInq), 12<<24)

	d, err := n.QueryMode(mode)
	require.NoError(t, err)
	// Position granularity falls back to the unit size.
	assert.Equal(t, uint32(2), d.UnitLeft)
	assert.Equal(t, uint64(1<<32), d.TotalBytes)
	// Estimated from the total bytes.
	assert.Equal(t, uint32((1<<32)/512), d.PacketsPerFrame)
	assert.Zero(t, d.DataDepth)
}

func TestModeSet(t *testing.T) {
	n, fake := newNegotiator(t, registers.Version1_31, vga())
	m := vga()
	m.MaxWidth, m.MaxHeight = 320, 240
	fake.AddMode(registers.ModeFormat7_3, m)

	modes, err := n.SupportedModes()
	require.NoError(t, err)
	assert.Equal(t, []registers.Mode{registers.ModeFormat7_0, registers.ModeFormat7_3}, modes)

	set, err := n.ModeSet()
	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.Equal(t, registers.ModeFormat7_3, set[1].Mode)
	assert.Equal(t, uint32(320), set[1].MaxWidth)
}

func TestSupportedModesNoFormat7(t *testing.T) {
	n, fake := newNegotiator(t, registers.Version1_31, vga())
	fake.Set(fake.Command(registers.CommandRegisterVFormatInq), 0x80000000)

	modes, err := n.SupportedModes()
	require.NoError(t, err)
	assert.Empty(t, modes)
}

func TestValueSetting(t *testing.T) {
	n, fake := newNegotiator(t, registers.Version1_31, vga())
	fake.Set(fake.Format7(mode, registers.Format7RegisterValueSetting), registers.ValueSettingPresent|registers.ValueSettingErrorFlag2)

	vs, err := n.ValueSetting(mode)
	require.NoError(t, err)
	assert.Equal(t, ValueSetting{Present: true, ErrorFlag2: true}, vs)

	n.Camera.Version = registers.Version1_20
	vs, err = n.ValueSetting(mode)
	require.NoError(t, err)
	assert.False(t, vs.Present)
}

func TestColorFilter(t *testing.T) {
	n, fake := newNegotiator(t, registers.Version1_31, vga())
	require.NoError(t, n.SetColorFilter(mode, registers.ColorFilterGRBG))
	assert.Equal(t, uint32(2<<24), fake.Reg(fake.Format7(mode, registers.Format7RegisterColorFilterID)))

	f, err := n.ColorFilter(mode)
	require.NoError(t, err)
	assert.Equal(t, registers.ColorFilterGRBG, f)

	assert.ErrorIs(t, n.SetColorFilter(mode, registers.ColorFilter(1)), errs.ErrInvalidParameter)
}
