//go:build !windows

package main

import (
	"log"

	"screen-capture/src/screenshot"
)

func enableDPIAwareness() {}

func logMonitorConfiguration() {
	b, err := screenshot.VirtualBounds()
	if err != nil {
		log.Printf("MONITOR: %v", err)
		return
	}
	log.Printf("MONITOR: %d displays, virtual screen %s", screenshot.DisplayCount(), b)
}
