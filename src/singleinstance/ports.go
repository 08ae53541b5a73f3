package singleinstance

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

const (
	defaultPortStart = 49500
	defaultPortEnd   = 49550
)

// PortRange is the inclusive loopback range a resident listens in. The
// resident binds Start; clients scan the whole range.
type PortRange struct {
	Start int
	End   int
}

func (r PortRange) String() string { return fmt.Sprintf("%d-%d", r.Start, r.End) }

// PortRangeFromEnv reads SCREEN_CAPTURE_PORT_START and SCREEN_CAPTURE_PORT_END.
// Unset or invalid values keep the defaults; the result is clamped to
// unprivileged ports.
func PortRangeFromEnv() PortRange {
	r := PortRange{Start: envPort("SCREEN_CAPTURE_PORT_START", defaultPortStart), End: envPort("SCREEN_CAPTURE_PORT_END", defaultPortEnd)}
	r.Start = max(r.Start, 1024)
	r.End = min(r.End, 65535)
	if r.End < r.Start {
		r.Start, r.End = r.End, r.Start
	}
	return r
}

func envPort(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func residentAddr(port int) string {
	return net.JoinHostPort(residentHost, strconv.Itoa(port))
}
