package singleinstance

import (
	"bufio"
	"context"
	"io"
	"net"
	"time"
)

const findTimeout = 300 * time.Millisecond

// Resident is a running instance that answered the handshake.
type Resident struct {
	Port int
}

// Addr is the loopback address the resident listens on.
func (r Resident) Addr() string { return residentAddr(r.Port) }

// FindResident scans the port range for a listener that answers PING.
func FindResident(ctx context.Context) (Resident, bool) {
	timeout := findTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = min(timeout, max(time.Until(dl), time.Millisecond))
	}
	r := PortRangeFromEnv()
	for port := r.Start; port <= r.End; port++ {
		if ctx.Err() != nil {
			return Resident{}, false
		}
		if ping(residentAddr(port), timeout) {
			return Resident{Port: port}, true
		}
	}
	return Resident{}, false
}

// ping reports whether addr speaks the resident protocol. Other services
// that happen to hold a port in the range fail the PONG check.
func ping(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	if _, err := io.WriteString(conn, pingRequest); err != nil {
		return false
	}
	resp, err := bufio.NewReader(conn).ReadString('\n')
	return err == nil && resp == pongResponse
}
