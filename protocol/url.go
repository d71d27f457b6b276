package protocol

import (
	"net"
	"strconv"
	"strings"

	httperrors "github.com/nczempin/httpxfer/errors"
)

const (
	schemePrefix = "http://"
	DefaultPort  = 80
)

// URLTarget is the parsed form of http://host[:port]/path.
type URLTarget struct {
	Host string
	Port int
	Path string
}

// Address returns host:port suitable for logging and dialing.
func (u URLTarget) Address() string {
	return net.JoinHostPort(u.Host, strconv.Itoa(u.Port))
}

func (u URLTarget) String() string {
	if u.Port == DefaultPort {
		return schemePrefix + hostLiteral(u.Host) + u.Path
	}
	return schemePrefix + u.Address() + u.Path
}

func hostLiteral(host string) string {
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}

// ParseURL splits rawURL into host, port and path. Both host:port/path and
// host/path forms are accepted; the port defaults to 80 and the path to "/".
// A fragment is dropped, a query string is kept as part of the path.
func ParseURL(rawURL string) (URLTarget, error) {
	if !strings.HasPrefix(rawURL, schemePrefix) {
		return URLTarget{}, malformedURL(rawURL, "missing http:// prefix")
	}
	rest := rawURL[len(schemePrefix):]
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest = rest[:i]
	}

	hostPort, path := rest, "/"
	if i := strings.IndexAny(rest, "/?"); i >= 0 {
		hostPort, path = rest[:i], rest[i:]
		if path[0] == '?' {
			path = "/" + path
		}
	}
	if strings.ContainsAny(path, " \t\r\n") {
		return URLTarget{}, malformedURL(rawURL, "whitespace in path")
	}

	host, port, err := splitHostPort(hostPort)
	if err != nil {
		return URLTarget{}, malformedURL(rawURL, err.Error())
	}

	return URLTarget{Host: host, Port: port, Path: path}, nil
}

func splitHostPort(hostPort string) (string, int, error) {
	host, portStr := hostPort, ""
	if strings.HasPrefix(hostPort, "[") || strings.Count(hostPort, ":") == 1 {
		if strings.HasPrefix(hostPort, "[") && strings.HasSuffix(hostPort, "]") {
			host = hostPort[1 : len(hostPort)-1]
		} else {
			h, p, err := net.SplitHostPort(hostPort)
			if err != nil {
				return "", 0, err
			}
			host, portStr = h, p
		}
	}

	if host == "" {
		return "", 0, httperrors.NewInvalidArgumentError("empty host")
	}
	if strings.ContainsAny(host, " \t\r\n@") {
		return "", 0, httperrors.NewInvalidArgumentError("invalid host " + strconv.Quote(host))
	}

	if portStr == "" {
		if strings.HasSuffix(hostPort, ":") {
			return "", 0, httperrors.NewInvalidArgumentError("empty port")
		}
		return host, DefaultPort, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, httperrors.NewInvalidArgumentError("invalid port " + strconv.Quote(portStr))
	}
	return host, port, nil
}

func malformedURL(rawURL, reason string) error {
	return httperrors.NewProtocolError(httperrors.ProtocolErrorMalformedURL, strconv.Quote(rawURL)+": "+reason)
}
