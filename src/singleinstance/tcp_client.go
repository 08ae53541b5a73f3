package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"time"
)

type tcpClient struct{}

func newTcpClient() Client { return &tcpClient{} }

func (c *tcpClient) TryDelegate(ctx context.Context, req Request) (bool, string, error) {
	deadline := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			deadline = d
		}
	}
	r := PortRangeFromEnv()
	for port := r.Start; port <= r.End; port++ {
		addr := residentAddr(port)
		if !ping(addr, deadline) {
			continue
		}
		conn, err := net.DialTimeout("tcp", addr, deadline)
		if err != nil {
			continue
		}
		w := bufio.NewWriter(conn)
		if _, err = w.WriteString(encodeRequest(req)); err != nil {
			conn.Close()
			return true, "", err
		}
		if err := w.Flush(); err != nil {
			conn.Close()
			return true, "", err
		}
		br := bufio.NewReader(conn)
		status, err := br.ReadString('\n')
		if err != nil {
			conn.Close()
			return true, "", err
		}
		if status == "SUCCESS\n" {
			b, _ := io.ReadAll(br)
			conn.Close()
			return true, string(b), nil
		}
		if status == "ERROR\n" {
			msg, _ := io.ReadAll(br)
			conn.Close()
			return true, "", errors.New(string(msg))
		}
		conn.Close()
	}
	return false, "", nil
}
