package proc

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// parseTarget normalizes a connection target to a dialable host:port
// address. Accepted forms: a bare port ("8042"), host:port
// ("127.0.0.1:8042"), or a URL with explicit port
// ("tcp://127.0.0.1:8042").
func parseTarget(target string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("empty target")
	}

	if port, err := strconv.Atoi(target); err == nil {
		if port <= 0 || port > 65535 {
			return "", fmt.Errorf("port %d out of range", port)
		}
		return net.JoinHostPort("127.0.0.1", target), nil
	}

	if strings.Contains(target, "://") {
		u, err := url.Parse(target)
		if err != nil {
			return "", fmt.Errorf("parse url %q: %w", target, err)
		}
		if u.Port() == "" {
			return "", fmt.Errorf("url %q has no port", target)
		}
		return net.JoinHostPort(u.Hostname(), u.Port()), nil
	}

	host, port, err := net.SplitHostPort(target)
	if err != nil {
		return "", fmt.Errorf("parse address %q: %w", target, err)
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port), nil
}
