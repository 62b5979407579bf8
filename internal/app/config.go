// Package app holds the configuration and logging shared by the tools in cmd.
package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	iidc "github.com/kevmo314/go-iidc"
	"github.com/kevmo314/go-iidc/pkg/camera"
	"github.com/kevmo314/go-iidc/pkg/format7"
	"github.com/kevmo314/go-iidc/pkg/iso"
	"github.com/kevmo314/go-iidc/pkg/registers"
	"github.com/kevmo314/go-iidc/pkg/transport"
)

type Config struct {
	Log         map[string]string `yaml:"log"`
	Camera      CameraConfig      `yaml:"camera"`
	Capture     CaptureConfig     `yaml:"capture"`
	Negotiation NegotiationConfig `yaml:"negotiation"`
	ISO         ISOConfig         `yaml:"iso"`
}

type CameraConfig struct {
	Vendor        uint16 `yaml:"vendor"`
	Product       uint16 `yaml:"product"`
	GUID          uint64 `yaml:"guid"`
	Version       string `yaml:"version"`
	OperationMode string `yaml:"operation_mode"`
	CommandBase   uint64 `yaml:"command_base"`
	Port          int    `yaml:"port"`
	Node          uint16 `yaml:"node"`
}

type CaptureConfig struct {
	Mode        int    `yaml:"mode"`
	Channel     uint8  `yaml:"channel"`
	ChannelMask uint64 `yaml:"channel_mask"`
	Allocate    bool   `yaml:"allocate"`
	Speed       string `yaml:"speed"`
	Left        string `yaml:"left"`
	Top         string `yaml:"top"`
	Width       string `yaml:"width"`
	Height      string `yaml:"height"`
	Packet      string `yaml:"packet"`
	ColorCoding string `yaml:"color_coding"`
	DMA         bool   `yaml:"dma"`
}

type NegotiationConfig struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	PollInterval     time.Duration `yaml:"poll_interval"`
}

type ISOConfig struct {
	Capacity      int    `yaml:"capacity"`
	ReleasePolicy string `yaml:"release_policy"`
	Persist       bool   `yaml:"persist"`
}

// DefaultConfig is what LoadConfig starts from.
func DefaultConfig() *Config {
	return &Config{
		Log: map[string]string{
			"level":  "info",
			"output": "stderr",
			"time":   "15:04:05.000",
		},
		Camera: CameraConfig{
			Vendor:      transport.VendorPointGrey,
			Version:     registers.Version1_31.String(),
			CommandBase: 0xF00000,
		},
		Capture: CaptureConfig{
			Speed:  "400",
			Left:   "0",
			Top:    "0",
			Width:  "max",
			Height: "max",
			Packet: "recommended",
		},
		Negotiation: NegotiationConfig{
			HandshakeTimeout: format7.DefaultHandshakeTimeout,
			PollInterval:     format7.DefaultPollInterval,
		},
		ISO: ISOConfig{
			Capacity: iso.DefaultCapacity,
		},
	}
}

// Flag collects repeated -config values.
type Flag []string

func (f *Flag) String() string {
	return strings.Join(*f, " ")
}

func (f *Flag) Set(value string) error {
	*f = append(*f, value)
	return nil
}

// LoadConfig layers every source over DefaultConfig in order. A source is a
// YAML file path, raw YAML starting with '{', or a dotted assignment such as
// capture.width=640. Environment variables in files are expanded.
func LoadConfig(sources []string) (*Config, error) {
	cfg := DefaultConfig()
	for _, src := range sources {
		if src == "" {
			continue
		}
		var data []byte
		switch {
		case src[0] == '{':
			data = []byte(src)
		case parseConfString(src) != nil:
			data = parseConfString(src)
		default:
			b, err := os.ReadFile(src)
			if err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
			data = []byte(os.ExpandEnv(string(b)))
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", src, err)
		}
	}
	return cfg, nil
}

// parseConfString turns `log.level=trace` into `{log: {level: trace}}`.
func parseConfString(s string) []byte {
	i := strings.IndexByte(s, '=')
	if i < 0 {
		return nil
	}
	items := strings.Split(s[:i], ".")
	if len(items) < 2 {
		return nil
	}
	var pre string
	var suf = s[i+1:]
	for _, item := range items {
		pre += "{" + item + ": "
		suf += "}"
	}
	return []byte(pre + suf)
}

func (c CameraConfig) Config() (camera.Config, error) {
	version, err := registers.ParseVersion(c.Version)
	if err != nil {
		return camera.Config{}, err
	}
	mode, err := registers.ParseOperationMode(c.OperationMode)
	if err != nil {
		return camera.Config{}, err
	}
	return camera.Config{
		GUID:          c.GUID,
		Port:          c.Port,
		Node:          c.Node,
		Version:       version,
		OperationMode: mode,
		CommandBase:   c.CommandBase,
	}, nil
}

func (c CaptureConfig) Options() (iidc.Options, error) {
	if c.Mode < 0 || c.Mode >= registers.ModeFormat7Num {
		return iidc.Options{}, fmt.Errorf("format7 mode %d out of range", c.Mode)
	}
	speed, err := registers.ParseSpeed(c.Speed)
	if err != nil {
		return iidc.Options{}, err
	}
	opts := iidc.Options{
		Allocate:    c.Allocate,
		ChannelMask: c.ChannelMask,
		Channel:     c.Channel,
		Speed:       speed,
		DMA:         c.DMA,
		Format7:     format7.Request{Mode: registers.ModeFormat7Min + registers.Mode(c.Mode)},
	}
	for _, p := range []struct {
		name string
		in   string
		out  *format7.Param
	}{
		{"left", c.Left, &opts.Format7.Left},
		{"top", c.Top, &opts.Format7.Top},
		{"width", c.Width, &opts.Format7.Width},
		{"height", c.Height, &opts.Format7.Height},
		{"packet", c.Packet, &opts.Format7.PacketBytes},
	} {
		if *p.out, err = format7.ParseParam(p.in); err != nil {
			return iidc.Options{}, fmt.Errorf("capture.%s: %w", p.name, err)
		}
	}
	if c.ColorCoding != "" {
		if opts.Format7.ColorCoding, err = registers.ParseColorCoding(c.ColorCoding); err != nil {
			return iidc.Options{}, err
		}
	}
	return opts, nil
}

// Allocator builds the in-process bus and allocator described by c.
func (c ISOConfig) Allocator() (*iso.Allocator, *iso.SharedBus, error) {
	policy, err := iso.ParseReleasePolicy(c.ReleasePolicy)
	if err != nil {
		return nil, nil, err
	}
	bus := iso.NewSharedBus(c.Capacity)
	bus.Log = GetLogger("iso")
	alloc := iso.NewAllocator(bus)
	alloc.Policy = policy
	alloc.Log = GetLogger("iso")
	return alloc, bus, nil
}

// Builder wires an allocator and the negotiation timeouts into a builder.
func (c *Config) Builder() (*iidc.Builder, error) {
	alloc, _, err := c.ISO.Allocator()
	if err != nil {
		return nil, err
	}
	b := iidc.NewBuilder(alloc)
	b.HandshakeTimeout = c.Negotiation.HandshakeTimeout
	b.PollInterval = c.Negotiation.PollInterval
	b.Log = GetLogger("iidc")
	return b, nil
}
