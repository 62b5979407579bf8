package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"

	iidc "github.com/kevmo314/go-iidc"
	"github.com/kevmo314/go-iidc/internal/app"
	"github.com/kevmo314/go-iidc/pkg/format7"
)

func main() {
	var configs app.Flag
	flag.Var(&configs, "config", "yaml file, raw yaml or key.sub=value, may be repeated")
	flag.Parse()

	cfg, err := app.LoadConfig(configs)
	if err != nil {
		panic(err)
	}

	tui := tview.NewApplication()

	logText := tview.NewTextView()
	logText.SetMaxLines(10).SetBorder(true).SetTitle("Log")
	logText.SetChangedFunc(func() { tui.Draw() })

	log := zerolog.New(zerolog.ConsoleWriter{Out: logText, NoColor: true, TimeFormat: "15:04:05.000"}).
		With().Timestamp().Logger()
	if lvl, err := zerolog.ParseLevel(cfg.Log["level"]); err == nil {
		log = log.Level(lvl)
	}

	camCfg, err := cfg.Camera.Config()
	if err != nil {
		panic(err)
	}
	dev, err := iidc.OpenUSB(cfg.Camera.Vendor, cfg.Camera.Product, camCfg, log)
	if err != nil {
		panic(err)
	}
	defer dev.Close()

	b, err := cfg.Builder()
	if err != nil {
		panic(err)
	}
	b.Log = log
	b.Allocator.Log = log

	n := format7.New(dev.Camera)
	n.Log = log

	modes := tview.NewList()
	modes.SetBorder(true).SetTitle("Format7 Modes")

	details := tview.NewTextView().SetDynamicColors(true)
	details.SetBorder(true).SetTitle("Mode")

	capture := tview.NewTextView().SetDynamicColors(true)
	capture.SetBorder(true).SetTitle("Capture")

	var active *iidc.Capture
	release := func() {
		if active == nil {
			return
		}
		if err := active.Close(); err != nil {
			log.Error().Err(err).Msg("[inspect] close capture")
		}
		active = nil
		capture.Clear()
	}
	defer release()

	set, err := n.ModeSet()
	if err != nil {
		panic(err)
	}
	if len(set) == 0 {
		log.Warn().Msg("[inspect] camera has no Format7 modes")
	}
	for _, d := range set {
		modes.AddItem(d.Mode.String(), fmt.Sprintf("%dx%d %s", d.MaxWidth, d.MaxHeight, d.ColorCoding), 0, func() {
			desc, err := n.QueryMode(d.Mode)
			if err != nil {
				log.Error().Err(err).Str("mode", d.Mode.String()).Msg("[inspect] query mode")
				return
			}
			details.SetText(modeText(desc))
		})
	}

	// n negotiates the highlighted mode with the configured capture options,
	// r releases it.
	modes.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() != tcell.KeyRune {
			return event
		}
		switch event.Rune() {
		case 'n':
			if len(set) == 0 {
				return nil
			}
			release()
			opts, err := cfg.Capture.Options()
			if err != nil {
				log.Error().Err(err).Msg("[inspect] capture config")
				return nil
			}
			opts.Format7.Mode = set[modes.GetCurrentItem()].Mode
			c, err := b.SetupFormat7(dev.Camera, opts)
			if err != nil {
				log.Error().Err(err).Msg("[inspect] setup")
				return nil
			}
			active = c
			capture.SetText(captureText(c))
			return nil
		case 'r':
			release()
			return nil
		case 'q':
			tui.Stop()
			return nil
		}
		return event
	})

	flex := tview.NewFlex().
		AddItem(modes, 0, 1, true).
		AddItem(details, 0, 2, false).
		AddItem(capture, 0, 2, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(flex, 0, 1, true).
		AddItem(logText, 10, 0, false)

	if err := tui.SetRoot(root, true).Run(); err != nil {
		panic(err)
	}
}

func modeText(d *format7.ModeDescriptor) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[yellow]%s[white]\n\n", d.Mode)
	fmt.Fprintf(&sb, "Max size:       %dx%d\n", d.MaxWidth, d.MaxHeight)
	fmt.Fprintf(&sb, "Unit size:      %dx%d\n", d.UnitWidth, d.UnitHeight)
	fmt.Fprintf(&sb, "Unit position:  %dx%d\n", d.UnitLeft, d.UnitTop)
	fmt.Fprintf(&sb, "Image:          %dx%d+%d+%d\n", d.Width, d.Height, d.Left, d.Top)
	fmt.Fprintf(&sb, "Color coding:   %s\n", d.ColorCoding)
	fmt.Fprintf(&sb, "Codings:        %v\n", d.ColorCodings)
	fmt.Fprintf(&sb, "Packet bytes:   %d (min %d, max %d, recommended %d)\n",
		d.PacketBytes, d.MinBytes, d.MaxBytes, d.RecommendedBytes)
	fmt.Fprintf(&sb, "Packets/frame:  %d\n", d.PacketsPerFrame)
	fmt.Fprintf(&sb, "Pixels:         %d\n", d.PixelNumber)
	fmt.Fprintf(&sb, "Total bytes:    %d\n", d.TotalBytes)
	if d.DataDepth != 0 {
		fmt.Fprintf(&sb, "Data depth:     %d\n", d.DataDepth)
		fmt.Fprintf(&sb, "Frame interval: %gs\n", d.FrameInterval)
		fmt.Fprintf(&sb, "Color filter:   %s\n", d.ColorFilter)
	}
	return sb.String()
}

func captureText(c *iidc.Capture) string {
	g := c.Geometry
	var sb strings.Builder
	fmt.Fprintf(&sb, "[green]%s[white]\n\n", c.ID)
	fmt.Fprintf(&sb, "Mode:           %s %s\n", g.Mode, g.ColorCoding)
	fmt.Fprintf(&sb, "Image:          %dx%d+%d+%d\n", g.Width, g.Height, g.Left, g.Top)
	fmt.Fprintf(&sb, "Channel:        %d at %s\n", c.Channel, c.Speed)
	fmt.Fprintf(&sb, "Packet bytes:   %d (%d quadlets)\n", g.PacketBytes, g.QuadletsPerPacket)
	fmt.Fprintf(&sb, "Packets/frame:  %d\n", g.PacketsPerFrame)
	fmt.Fprintf(&sb, "Frame:          %d quadlets, %d bytes\n", g.QuadletsPerFrame, g.FrameBytes)
	fmt.Fprintf(&sb, "Buffer:         %d bytes\n", c.BufferSize)
	return sb.String()
}
