package singleinstance

import (
	"fmt"
	"strings"
)

const (
	residentHost = "127.0.0.1"
	pingRequest  = "PING\n"
	pongResponse = "PONG\n"

	modeStdout    = "STDOUT"
	modeClipboard = "CLIPBOARD"
)

// encodeRequest renders the request line: "RUN <action> <STDOUT|CLIPBOARD>\n".
func encodeRequest(req Request) string {
	action := req.Action
	if action == "" {
		action = DefaultAction
	}
	mode := modeClipboard
	if req.OutputToStdout {
		mode = modeStdout
	}
	return fmt.Sprintf("RUN %s %s\n", action, mode)
}

// decodeRequest parses a request line. The bare "STDOUT"/"CLIPBOARD" lines
// of older clients map to DefaultAction.
func decodeRequest(line string) (Request, error) {
	fields := strings.Fields(line)
	switch {
	case len(fields) == 1 && (fields[0] == modeStdout || fields[0] == modeClipboard):
		return Request{Action: DefaultAction, OutputToStdout: fields[0] == modeStdout}, nil
	case len(fields) == 3 && fields[0] == "RUN":
		if fields[2] != modeStdout && fields[2] != modeClipboard {
			return Request{}, fmt.Errorf("unknown output mode %q", fields[2])
		}
		return Request{Action: fields[1], OutputToStdout: fields[2] == modeStdout}, nil
	default:
		return Request{}, fmt.Errorf("malformed request %q", strings.TrimSpace(line))
	}
}
