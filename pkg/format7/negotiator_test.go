package format7

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevmo314/go-iidc/internal/fakecam"
	"github.com/kevmo314/go-iidc/pkg/camera"
	"github.com/kevmo314/go-iidc/pkg/errs"
	"github.com/kevmo314/go-iidc/pkg/registers"
)

const mode = registers.ModeFormat7_0

func vga() fakecam.Mode {
	return fakecam.Mode{
		MaxWidth:        640,
		MaxHeight:       480,
		UnitWidth:       2,
		UnitHeight:      2,
		UnitLeft:        2,
		UnitTop:         2,
		Coding:          registers.ColorCodingYUV422,
		Codings:         []registers.ColorCoding{registers.ColorCodingMono8, registers.ColorCodingYUV422},
		MinBytes:        4,
		MaxBytes:        4096,
		Bytes:           512,
		PacketsPerFrame: 600,
		ValueSetting:    true,
	}
}

func newNegotiator(t *testing.T, version registers.Version, m fakecam.Mode) (*Negotiator, *fakecam.Camera) {
	t.Helper()
	fake := fakecam.New()
	fake.AddMode(mode, m)
	cam := camera.New(fake, camera.Config{Version: version, CommandBase: fake.CommandBase})
	n := New(cam)
	n.PollInterval = time.Microsecond
	return n, fake
}

func vgaRequest() Request {
	return Request{
		Mode:        mode,
		Channel:     1,
		Speed:       registers.Speed400,
		Left:        Literal(0),
		Top:         Literal(0),
		Width:       Maximum,
		Height:      Maximum,
		PacketBytes: Literal(1024),
	}
}

func wrote(fake *fakecam.Camera, offset uint64) bool {
	for _, w := range fake.Writes() {
		if w.Offset == offset {
			return true
		}
	}
	return false
}

func TestNegotiateFrameAccounting(t *testing.T) {
	for _, version := range []registers.Version{registers.Version1_20, registers.VersionPTGrey, registers.Version1_31} {
		t.Run(version.String(), func(t *testing.T) {
			n, fake := newNegotiator(t, version, vga())

			g, err := n.Negotiate(vgaRequest())
			require.NoError(t, err)

			if g.PacketsPerFrame != 600 {
				t.Errorf("PacketsPerFrame = %d, want 600", g.PacketsPerFrame)
			}
			if g.QuadletsPerFrame != 153600 {
				t.Errorf("QuadletsPerFrame = %d, want 153600", g.QuadletsPerFrame)
			}
			assert.Equal(t, uint32(1024), g.PacketBytes)
			assert.Equal(t, uint32(256), g.QuadletsPerPacket)
			assert.Equal(t, uint64(614400), g.FrameBytes)
			assert.Equal(t, registers.ColorCodingYUV422, g.ColorCoding)
			assert.Equal(t, uint32(640), g.Width)
			assert.Equal(t, uint32(480), g.Height)

			assert.Equal(t, registers.Pack16(640, 480), fake.Reg(fake.Format7(mode, registers.Format7RegisterImageSize)))
			assert.Equal(t, uint32(7<<29), fake.Reg(fake.Command(registers.CommandRegisterCurVFormat)))
			assert.Equal(t, uint32(0x12000000), fake.Reg(fake.Command(registers.CommandRegisterISOData)))
		})
	}
}

func TestNegotiateMaximumSize(t *testing.T) {
	n, _ := newNegotiator(t, registers.Version1_20, vga())
	req := vgaRequest()
	req.Left, req.Top = Literal(100), Literal(50)

	g, err := n.Negotiate(req)
	require.NoError(t, err)
	assert.Equal(t, uint32(540), g.Width)
	assert.Equal(t, uint32(430), g.Height)
	assert.Equal(t, uint32(100), g.Left)
	assert.Equal(t, uint32(50), g.Top)
}

func TestNegotiateFromCamera(t *testing.T) {
	m := vga()
	m.Left, m.Top = 16, 8
	m.Width, m.Height = 320, 0
	n, fake := newNegotiator(t, registers.Version1_20, m)

	req := vgaRequest()
	req.Left, req.Top = FromCamera, FromCamera
	req.Width, req.Height = FromCamera, FromCamera
	req.PacketBytes = FromCamera

	g, err := n.Negotiate(req)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), g.Left)
	assert.Equal(t, uint32(8), g.Top)
	assert.Equal(t, uint32(320), g.Width)
	// A zero size from the camera means the maximum.
	assert.Equal(t, uint32(472), g.Height)
	assert.Equal(t, uint32(512), g.PacketBytes)
	assert.Equal(t, registers.Pack16(16, 8), fake.Reg(fake.Format7(mode, registers.Format7RegisterImagePosition)))
}

func TestNegotiatePacketPolicy(t *testing.T) {
	tests := []struct {
		name        string
		packet      Param
		recommended uint32
		want        uint32
	}{
		{"recommended", Recommended, 2048, 2048},
		{"recommended unset", Recommended, 0, 4096},
		{"maximum", Maximum, 2048, 4096},
		{"literal rounded", Literal(1023), 0, 1020},
		{"literal too big", Literal(9000), 0, 4096},
		{"literal too small", Literal(1), 0, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := vga()
			m.RecommendedBytes = tt.recommended
			n, _ := newNegotiator(t, registers.Version1_20, m)

			req := vgaRequest()
			req.PacketBytes = tt.packet
			g, err := n.Negotiate(req)
			require.NoError(t, err)
			if g.PacketBytes != tt.want {
				t.Errorf("PacketBytes = %d, want %d", g.PacketBytes, tt.want)
			}
		})
	}
}

func TestClampPacketBytes(t *testing.T) {
	for _, unit := range []uint32{0, 4, 8, 12, 100} {
		for _, maxBytes := range []uint32{96, 1000, 4096} {
			for bytes := uint32(0); bytes < 5000; bytes += 7 {
				got := clampPacketBytes(bytes, unit, maxBytes)
				u := unit
				if u == 0 {
					u = maxBytes
				}
				if got > maxBytes {
					t.Fatalf("clampPacketBytes(%d, %d, %d) = %d exceeds max", bytes, unit, maxBytes, got)
				}
				if got%u != 0 {
					t.Fatalf("clampPacketBytes(%d, %d, %d) = %d is not a multiple of %d", bytes, unit, maxBytes, got, u)
				}
				if u <= maxBytes && got < u {
					t.Fatalf("clampPacketBytes(%d, %d, %d) = %d below unit", bytes, unit, maxBytes, got)
				}
			}
		}
	}
}

func TestNegotiateCameraAdjustsPacket(t *testing.T) {
	n, fake := newNegotiator(t, registers.Version1_20, vga())
	fake.AdjustBytes = func(uint32) uint32 { return 1000 }

	g, err := n.Negotiate(vgaRequest())
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), g.PacketBytes)
	assert.Equal(t, uint32(615), g.PacketsPerFrame)
	assert.Equal(t, uint64(153750), g.QuadletsPerFrame)
}

func TestNegotiateColorCoding(t *testing.T) {
	n, fake := newNegotiator(t, registers.Version1_20, vga())
	req := vgaRequest()
	req.ColorCoding = registers.ColorCodingMono8

	g, err := n.Negotiate(req)
	require.NoError(t, err)
	assert.Equal(t, registers.ColorCodingMono8, g.ColorCoding)
	assert.Equal(t, uint32(300), g.PacketsPerFrame)
	assert.Equal(t, uint32(0), fake.Reg(fake.Format7(mode, registers.Format7RegisterColorCodingID)))
}

func TestNegotiateUnknownColorCoding(t *testing.T) {
	n, fake := newNegotiator(t, registers.Version1_20, vga())
	fake.Set(fake.Format7(mode, registers.Format7RegisterColorCodingID), 20<<24)

	_, err := n.Negotiate(vgaRequest())
	assert.ErrorIs(t, err, errs.ErrFailure)
}

func TestNegotiateInvalidRequest(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Request)
		writes bool
	}{
		{"fixed mode", func(r *Request) { r.Mode = registers.Mode640x480Mono8 }, false},
		{"recommended width", func(r *Request) { r.Width = Recommended }, false},
		{"maximum left", func(r *Request) { r.Left = Maximum }, false},
		{"bad color coding", func(r *Request) { r.ColorCoding = 7 }, false},
		{"unaligned position", func(r *Request) { r.Left = Literal(3) }, true},
		{"unaligned size", func(r *Request) { r.Width = Literal(321) }, true},
		{"too wide", func(r *Request) { r.Left, r.Width = Literal(2), Literal(640) }, true},
		{"zero height", func(r *Request) { r.Height = Literal(0) }, true},
		{"position past max", func(r *Request) { r.Top = Literal(482) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, fake := newNegotiator(t, registers.Version1_31, vga())
			req := vgaRequest()
			tt.modify(&req)

			g, err := n.Negotiate(req)
			require.ErrorIs(t, err, errs.ErrInvalidParameter)
			assert.Nil(t, g)
			if !tt.writes {
				assert.Empty(t, fake.Writes())
			}
			assert.False(t, wrote(fake, fake.Format7(mode, registers.Format7RegisterImagePosition)))
			assert.False(t, wrote(fake, fake.Format7(mode, registers.Format7RegisterImageSize)))
		})
	}
}

func TestHandshake(t *testing.T) {
	n, fake := newNegotiator(t, registers.Version1_31, vga())
	fake.HandshakeReads = 3

	_, err := n.Negotiate(vgaRequest())
	require.NoError(t, err)

	var commits int
	for _, w := range fake.Writes() {
		if w.Offset == fake.Format7(mode, registers.Format7RegisterValueSetting) {
			assert.Equal(t, uint32(0x40000000), w.Value)
			commits++
		}
	}
	// position, size and packet size
	assert.Equal(t, 3, commits)
}

func TestHandshakeUsesNegotiationCapabilities(t *testing.T) {
	n, fake := newNegotiator(t, registers.Version1_31, vga())
	fake.AdjustBytes = func(requested uint32) uint32 {
		n.Camera.Version = registers.Version1_20
		return requested
	}

	g, err := n.Negotiate(vgaRequest())
	require.NoError(t, err)
	assert.Equal(t, uint32(600), g.PacketsPerFrame)

	var commits int
	for _, w := range fake.Writes() {
		if w.Offset == fake.Format7(mode, registers.Format7RegisterValueSetting) {
			commits++
		}
	}
	if commits != 3 {
		t.Errorf("commits = %d, want 3", commits)
	}
}

func TestHandshakeTrace(t *testing.T) {
	for _, tt := range []struct {
		version registers.Version
		want    []string
		absent  []string
	}{
		{registers.VersionPTGrey, []string{`"state":"idle"`}, []string{`"state":"pending"`}},
		{registers.Version1_31, []string{`"state":"pending"`, `"state":"committed"`}, []string{`"state":"idle"`}},
	} {
		t.Run(tt.version.String(), func(t *testing.T) {
			var buf bytes.Buffer
			n, _ := newNegotiator(t, tt.version, vga())
			n.Log = zerolog.New(&buf).Level(zerolog.TraceLevel)

			_, err := n.Negotiate(vgaRequest())
			require.NoError(t, err)
			for _, s := range tt.want {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

func TestHandshakeSkipped(t *testing.T) {
	for _, tt := range []struct {
		name    string
		version registers.Version
		present bool
	}{
		{"pre 1.30", registers.VersionPTGrey, true},
		{"not present", registers.Version1_30, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			m := vga()
			m.ValueSetting = tt.present
			n, fake := newNegotiator(t, tt.version, m)
			fake.Stuck = true

			_, err := n.Negotiate(vgaRequest())
			require.NoError(t, err)
			assert.False(t, wrote(fake, fake.Format7(mode, registers.Format7RegisterValueSetting)))
		})
	}
}

func TestHandshakeProtocolViolation(t *testing.T) {
	n, fake := newNegotiator(t, registers.Version1_31, vga())
	fake.HandshakeFlags = func(_ registers.Mode, last registers.Format7Register) uint32 {
		if last == registers.Format7RegisterImagePosition {
			return registers.ValueSettingErrorFlag1
		}
		return 0
	}

	g, err := n.Negotiate(vgaRequest())
	require.ErrorIs(t, err, errs.ErrProtocolViolation)
	assert.Nil(t, g)
	assert.False(t, wrote(fake, fake.Format7(mode, registers.Format7RegisterImageSize)))
}

func TestHandshakeInvalidPacketSize(t *testing.T) {
	n, fake := newNegotiator(t, registers.Version1_31, vga())
	fake.HandshakeFlags = func(_ registers.Mode, last registers.Format7Register) uint32 {
		if last == registers.Format7RegisterBytePerPacket {
			return registers.ValueSettingErrorFlag2
		}
		return 0
	}

	_, err := n.Negotiate(vgaRequest())
	require.ErrorIs(t, err, errs.ErrInvalidPacketSize)
	assert.False(t, errors.Is(err, errs.ErrProtocolViolation))
}

func TestHandshakeFlag2IgnoredOutsidePacketCommit(t *testing.T) {
	n, fake := newNegotiator(t, registers.Version1_31, vga())
	fake.HandshakeFlags = func(_ registers.Mode, last registers.Format7Register) uint32 {
		if last == registers.Format7RegisterImageSize {
			return registers.ValueSettingErrorFlag2
		}
		return 0
	}

	_, err := n.Negotiate(vgaRequest())
	require.NoError(t, err)
}

func TestHandshakeTimeout(t *testing.T) {
	n, fake := newNegotiator(t, registers.Version1_31, vga())
	n.HandshakeTimeout = 20 * time.Millisecond
	fake.Stuck = true

	start := time.Now()
	_, err := n.Negotiate(vgaRequest())
	require.ErrorIs(t, err, errs.ErrHandshakeTimeout)
	assert.ErrorIs(t, err, errs.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNegotiateRestartsTransmission(t *testing.T) {
	n, fake := newNegotiator(t, registers.Version1_31, vga())
	isoEn := fake.Command(registers.CommandRegisterISOEn)
	fake.Set(isoEn, registers.ISOEnabled)

	_, err := n.Negotiate(vgaRequest())
	require.NoError(t, err)
	assert.True(t, fake.Transmitting())

	writes := fake.Writes()
	require.NotEmpty(t, writes)
	assert.Equal(t, fakecam.Write{Offset: isoEn, Value: 0}, writes[0])
	assert.Equal(t, fakecam.Write{Offset: isoEn, Value: registers.ISOEnabled}, writes[len(writes)-1])
}

func TestNegotiateFailureLeavesTransmissionOff(t *testing.T) {
	n, fake := newNegotiator(t, registers.Version1_31, vga())
	fake.Set(fake.Command(registers.CommandRegisterISOEn), registers.ISOEnabled)
	fake.FailWrite[fake.Format7(mode, registers.Format7RegisterImageSize)] = errors.New("bus error")

	_, err := n.Negotiate(vgaRequest())
	require.Error(t, err)
	assert.False(t, fake.Transmitting())
}

func TestNegotiateSerializes(t *testing.T) {
	n, fake := newNegotiator(t, registers.Version1_31, vga())
	fake.HandshakeReads = 2

	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := n.Negotiate(vgaRequest())
			done <- err
		}()
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, <-done)
	}
}
