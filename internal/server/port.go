package server

import (
	"fmt"
	"net"
	"strconv"

	"github.com/ksyq12/labcmdr/internal/errors"
	"github.com/ksyq12/labcmdr/internal/logger"
)

// ProbeAttempts bounds the linear port search
const ProbeAttempts = 100

const maxPort = 65535

// listen is swapped out in tests
var listen = net.Listen

// ProbePort binds host:start, then start+1 and so on, for at most attempts
// ports, never past 65535. The bound listener is returned so the port cannot
// be taken between probe and serve.
func ProbePort(host string, start, attempts int) (net.Listener, int, error) {
	if start < 1 || start > maxPort {
		return nil, 0, errors.Validation(fmt.Sprintf("port %d out of range 1-65535", start))
	}
	if attempts < 1 {
		attempts = 1
	}

	for port := start; port < start+attempts && port <= maxPort; port++ {
		ln, err := listen("tcp4", net.JoinHostPort(host, strconv.Itoa(port)))
		if err == nil {
			if port != start {
				logger.Info("Port %d in use, using %d", start, port)
			}
			return ln, port, nil
		}
		logger.Debug("Port %d unavailable: %v", port, err)
	}
	return nil, 0, errors.PortUnavailable(start, attempts)
}
