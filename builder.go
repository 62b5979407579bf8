// Package iidc prepares IIDC cameras for isochronous capture: it claims bus
// resources, negotiates a Format7 geometry and hands back a Capture describing
// the frames the camera will send.
package iidc

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kevmo314/go-iidc/pkg/camera"
	"github.com/kevmo314/go-iidc/pkg/errs"
	"github.com/kevmo314/go-iidc/pkg/format7"
	"github.com/kevmo314/go-iidc/pkg/iso"
	"github.com/kevmo314/go-iidc/pkg/registers"
)

type Options struct {
	// Allocate claims a channel from ChannelMask (zero means every channel
	// the camera supports) and the bandwidth one packet takes at Speed.
	// Otherwise Channel is programmed as is.
	Allocate    bool
	ChannelMask uint64
	Channel     uint8
	Speed       registers.Speed

	// Format7 is the geometry request. Its Channel and Speed are overwritten.
	Format7 format7.Request

	// DMA leaves the frame buffers to the DMA layer. Without it the capture
	// owns one frame sized buffer.
	DMA bool
}

type Builder struct {
	Allocator *iso.Allocator

	HandshakeTimeout time.Duration
	PollInterval     time.Duration

	Log zerolog.Logger
}

func NewBuilder(alloc *iso.Allocator) *Builder {
	return &Builder{
		Allocator:        alloc,
		HandshakeTimeout: format7.DefaultHandshakeTimeout,
		PollInterval:     format7.DefaultPollInterval,
		Log:              zerolog.Nop(),
	}
}

func (b *Builder) negotiator(cam *camera.Camera) *format7.Negotiator {
	n := format7.New(cam)
	n.HandshakeTimeout = b.HandshakeTimeout
	n.PollInterval = b.PollInterval
	n.Log = b.Log
	return n
}

// SetupFormat7 negotiates opts.Format7 on cam and returns the resulting
// capture. Resources claimed here are released again if a later step fails.
func (b *Builder) SetupFormat7(cam *camera.Camera, opts Options) (_ *Capture, err error) {
	if opts.Allocate && b.Allocator == nil {
		return nil, fmt.Errorf("%w: allocation requested without an allocator", errs.ErrInvalidParameter)
	}

	channel := opts.Channel
	if opts.Allocate {
		if channel, err = b.Allocator.AllocateChannel(cam, opts.ChannelMask); err != nil {
			return nil, err
		}
		defer func() {
			if err != nil {
				if rerr := b.Allocator.ReleaseChannel(cam, channel); rerr != nil {
					b.Log.Warn().Err(rerr).Uint8("channel", channel).Msg("[iidc] release channel")
				}
			}
		}()
	}

	req := opts.Format7
	req.Channel = channel
	req.Speed = opts.Speed
	g, err := b.negotiator(cam).Negotiate(req)
	if err != nil {
		return nil, err
	}

	var bandwidth int
	if opts.Allocate {
		if bandwidth, err = iso.BandwidthUnits(g.PacketBytes, opts.Speed); err != nil {
			return nil, err
		}
		if err = b.Allocator.AllocateBandwidth(cam, bandwidth); err != nil {
			return nil, err
		}
		defer func() {
			if err != nil {
				if rerr := b.Allocator.ReleaseBandwidth(cam, bandwidth); rerr != nil {
					b.Log.Warn().Err(rerr).Int("bandwidth", bandwidth).Msg("[iidc] release bandwidth")
				}
			}
		}()
	}

	c := &Capture{
		ID:          uuid.New(),
		Geometry:    *g,
		Port:        cam.Port,
		Node:        cam.Node,
		Channel:     channel,
		Speed:       opts.Speed,
		FrameWidth:  g.Width,
		FrameHeight: g.Height,
		BufferSize:  int(g.FrameBytes),
		allocator:   b.Allocator,
		cam:         cam,
		allocated:   opts.Allocate,
		bandwidth:   bandwidth,
	}
	if !opts.DMA {
		if c.Buffer, err = allocBuffer(c.BufferSize); err != nil {
			return nil, err
		}
	}

	b.Log.Info().
		Str("id", c.ID.String()).
		Uint64("guid", cam.GUID()).
		Uint8("channel", channel).
		Stringer("speed", opts.Speed).
		Uint32("width", c.FrameWidth).
		Uint32("height", c.FrameHeight).
		Int("buffer", c.BufferSize).
		Msg("[iidc] capture ready")
	return c, nil
}
