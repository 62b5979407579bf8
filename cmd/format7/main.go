package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"

	iidc "github.com/kevmo314/go-iidc"
	"github.com/kevmo314/go-iidc/internal/app"
	"github.com/kevmo314/go-iidc/pkg/format7"
)

func main() {
	var configs app.Flag
	flag.Var(&configs, "config", "yaml file, raw yaml or key.sub=value, may be repeated")
	list := flag.Bool("list", false, "print the Format7 modes and exit")
	flag.Parse()

	cfg, err := app.LoadConfig(configs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	app.InitLogger(cfg.Log)
	log := app.GetLogger("format7")

	// run returns before exiting so the camera and capture are closed.
	if err := run(cfg, *list, log); err != nil {
		log.Fatal().Err(err).Msg("[format7] exit")
	}
}

func run(cfg *app.Config, list bool, log zerolog.Logger) error {
	camCfg, err := cfg.Camera.Config()
	if err != nil {
		return fmt.Errorf("camera config: %w", err)
	}
	dev, err := iidc.OpenUSB(cfg.Camera.Vendor, cfg.Camera.Product, camCfg, app.GetLogger("camera"))
	if err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	defer dev.Close()

	if list {
		n := format7.New(dev.Camera)
		n.Log = log
		set, err := n.ModeSet()
		if err != nil {
			return fmt.Errorf("mode set: %w", err)
		}
		for _, d := range set {
			printMode(d)
		}
		return nil
	}

	opts, err := cfg.Capture.Options()
	if err != nil {
		return fmt.Errorf("capture config: %w", err)
	}
	b, err := cfg.Builder()
	if err != nil {
		return fmt.Errorf("iso config: %w", err)
	}
	if cfg.ISO.Persist {
		if err := b.Allocator.SetPersist(dev.Camera); err != nil {
			return fmt.Errorf("persist: %w", err)
		}
	}

	c, err := b.SetupFormat7(dev.Camera, opts)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Error().Err(err).Msg("[format7] close")
		}
	}()

	g := c.Geometry
	fmt.Printf("%s %s %dx%d+%d+%d\n", g.Mode, g.ColorCoding, g.Width, g.Height, g.Left, g.Top)
	fmt.Printf("  channel %d at %s\n", c.Channel, c.Speed)
	fmt.Printf("  %d bytes per packet, %d packets per frame\n", g.PacketBytes, g.PacketsPerFrame)
	fmt.Printf("  %d quadlets per frame (%d bytes)\n", g.QuadletsPerFrame, g.FrameBytes)

	// Hold the iso resources until interrupted.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	return nil
}

func printMode(d *format7.ModeDescriptor) {
	fmt.Printf("%s:\n", d.Mode)
	fmt.Printf("  Max: %dx%d, unit %dx%d, unit position %dx%d\n",
		d.MaxWidth, d.MaxHeight, d.UnitWidth, d.UnitHeight, d.UnitLeft, d.UnitTop)
	fmt.Printf("  Current: %dx%d+%d+%d %s\n", d.Width, d.Height, d.Left, d.Top, d.ColorCoding)
	fmt.Printf("  Codings: %v\n", d.ColorCodings)
	fmt.Printf("  Packet: %d..%d bytes, recommended %d, current %d\n",
		d.MinBytes, d.MaxBytes, d.RecommendedBytes, d.PacketBytes)
	fmt.Printf("  Frame: %d packets, %d pixels, %d bytes\n", d.PacketsPerFrame, d.PixelNumber, d.TotalBytes)
	if d.DataDepth != 0 {
		fmt.Printf("  Data depth %d, frame interval %gs, filter %s\n", d.DataDepth, d.FrameInterval, d.ColorFilter)
	}
}
