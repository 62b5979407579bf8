package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/kevmo314/go-iidc/pkg/camera"
	"github.com/kevmo314/go-iidc/pkg/registers"
	"github.com/kevmo314/go-iidc/pkg/transport"
)

func main() {
	vendor := flag.Uint("vendor", uint(transport.VendorPointGrey), "usb vendor id")
	product := flag.Uint("product", 0, "usb product id, 0 for any")
	flag.Parse()

	devices, err := transport.ListUSB(uint16(*vendor), uint16(*product))
	if err != nil {
		log.Fatalf("Failed to list devices: %v", err)
	}

	if len(devices) == 0 {
		fmt.Printf("No IIDC cameras found for vendor %04x\n", *vendor)
		return
	}

	fmt.Printf("Found %d camera(s):\n\n", len(devices))

	for i, dev := range devices {
		fmt.Printf("Camera %d:\n", i+1)
		fmt.Printf("  Path: %s\n", dev.Path)
		fmt.Printf("  VID:PID: %04x:%04x\n", dev.VendorID, dev.ProductID)
		if dev.Serial != "" {
			fmt.Printf("  Serial: %s\n", dev.Serial)
		}

		t, err := dev.Open()
		if err != nil {
			fmt.Printf("  (Could not open: %v)\n\n", err)
			continue
		}
		cam := camera.New(t, camera.Config{Version: registers.Version1_31, CommandBase: 0xF00000})
		if guid, err := cam.ReadGUID(); err != nil {
			fmt.Printf("  (Could not read GUID: %v)\n", err)
		} else {
			fmt.Printf("  GUID: %016x\n", guid)
		}
		if on, err := cam.IsoStatus(); err == nil {
			fmt.Printf("  Transmitting: %t\n", on)
		}
		if ch, speed, err := cam.IsoChannelAndSpeed(); err == nil {
			fmt.Printf("  ISO channel %d at %s\n", ch, speed)
		}
		t.Close()

		fmt.Println()
	}
}
