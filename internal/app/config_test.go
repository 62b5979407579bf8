package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevmo314/go-iidc/pkg/errs"
	"github.com/kevmo314/go-iidc/pkg/format7"
	"github.com/kevmo314/go-iidc/pkg/iso"
	"github.com/kevmo314/go-iidc/pkg/registers"
)

func TestParseConfString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"log.level=trace", "{log: {level: trace}}"},
		{"capture.width=640", "{capture: {width: 640}}"},
		{"camera.version=1.31", "{camera: {version: 1.31}}"},
		{"level=trace", ""},
		{"config.yaml", ""},
	}
	for _, tc := range tests {
		if got := string(parseConfString(tc.in)); got != tc.want {
			t.Errorf("parseConfString(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	camCfg, err := cfg.Camera.Config()
	require.NoError(t, err)
	assert.Equal(t, registers.Version1_31, camCfg.Version)
	assert.Equal(t, registers.OperationModeLegacy, camCfg.OperationMode)
	assert.Equal(t, uint64(0xF00000), camCfg.CommandBase)

	opts, err := cfg.Capture.Options()
	require.NoError(t, err)
	assert.Equal(t, registers.ModeFormat7_0, opts.Format7.Mode)
	assert.Equal(t, registers.Speed400, opts.Speed)
	assert.Equal(t, format7.Literal(0), opts.Format7.Left)
	assert.True(t, opts.Format7.Width.IsMaximum())
	assert.True(t, opts.Format7.Height.IsMaximum())
	assert.True(t, opts.Format7.PacketBytes.IsRecommended())
	assert.Equal(t, registers.ColorCoding(0), opts.Format7.ColorCoding)

	b, err := cfg.Builder()
	require.NoError(t, err)
	assert.Equal(t, time.Second, b.HandshakeTimeout)
	assert.Equal(t, iso.ReleaseClamp, b.Allocator.Policy)
}

func TestLoadConfigLayers(t *testing.T) {
	t.Setenv("IIDC_TEST_WIDTH", "320")

	path := filepath.Join(t.TempDir(), "iidc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  format: json
camera:
  version: "1.20"
  operation_mode: 1394b
capture:
  mode: 3
  width: ${IIDC_TEST_WIDTH}
  height: query
  packet: 2048
  color_coding: MONO8
  allocate: true
negotiation:
  handshake_timeout: 250ms
iso:
  release_policy: strict
`), 0o644))

	cfg, err := LoadConfig([]string{
		path,
		"{capture: {top: 8}}",
		"negotiation.poll_interval=5ms",
	})
	require.NoError(t, err)

	// Layered maps keep the defaults they do not override.
	assert.Equal(t, "json", cfg.Log["format"])
	assert.Equal(t, "info", cfg.Log["level"])

	camCfg, err := cfg.Camera.Config()
	require.NoError(t, err)
	assert.Equal(t, registers.Version1_20, camCfg.Version)
	assert.Equal(t, registers.OperationMode1394b, camCfg.OperationMode)

	opts, err := cfg.Capture.Options()
	require.NoError(t, err)
	assert.Equal(t, registers.ModeFormat7_3, opts.Format7.Mode)
	assert.True(t, opts.Allocate)
	assert.Equal(t, format7.Literal(8), opts.Format7.Top)
	assert.Equal(t, format7.Literal(320), opts.Format7.Width)
	assert.True(t, opts.Format7.Height.IsFromCamera())
	assert.Equal(t, format7.Literal(2048), opts.Format7.PacketBytes)
	assert.Equal(t, registers.ColorCodingMono8, opts.Format7.ColorCoding)

	b, err := cfg.Builder()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, b.HandshakeTimeout)
	assert.Equal(t, 5*time.Millisecond, b.PollInterval)
	assert.Equal(t, iso.ReleaseStrict, b.Allocator.Policy)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig([]string{filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	_, err = LoadConfig([]string{"{capture: [1, 2]}"})
	assert.Error(t, err)
}

func TestConfigConversionErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capture.Width = "wide"
	_, err := cfg.Capture.Options()
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)

	cfg = DefaultConfig()
	cfg.Capture.Mode = registers.ModeFormat7Num
	_, err = cfg.Capture.Options()
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Capture.Speed = "123"
	_, err = cfg.Capture.Options()
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Camera.Version = "2.0"
	_, err = cfg.Camera.Config()
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.ISO.ReleasePolicy = "lenient"
	_, err = cfg.Builder()
	assert.Error(t, err)
}

func TestFlag(t *testing.T) {
	var f Flag
	require.NoError(t, f.Set("a.yaml"))
	require.NoError(t, f.Set("log.level=debug"))
	assert.Equal(t, Flag{"a.yaml", "log.level=debug"}, f)
	assert.Equal(t, "a.yaml log.level=debug", f.String())
}
