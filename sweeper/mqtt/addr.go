package mqtt

import "errors"

// SplitHostPort splits a host:port string on its last colon.
func SplitHostPort(addr string) (host, port string, err error) {
	colonIdx := -1
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			colonIdx = i
			break
		}
	}
	if colonIdx == -1 {
		return "", "", errors.New("missing port in address")
	}

	host = addr[:colonIdx]
	port = addr[colonIdx+1:]
	if host == "" {
		return "", "", errors.New("empty host")
	}
	if port == "" {
		return "", "", errors.New("empty port")
	}
	return host, port, nil
}

// ParsePort converts a decimal port to uint16. It returns 0 for anything
// that is not a valid port.
func ParsePort(portStr string) uint16 {
	if portStr == "" || len(portStr) > 5 {
		return 0
	}
	var port uint32
	for i := 0; i < len(portStr); i++ {
		if portStr[i] < '0' || portStr[i] > '9' {
			return 0
		}
		port = port*10 + uint32(portStr[i]-'0')
	}
	if port > 65535 {
		return 0
	}
	return uint16(port)
}
