package http

import (
	"log/slog"
	"net/netip"
	"net/url"
	"strings"
)

// checkTarget logs warnings for risky target URLs. The backend makes the
// actual call, so nothing is blocked here.
func checkTarget(logger *slog.Logger, rawURL string) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		logger.Warn("target URL does not parse, sending as typed", "url", rawURL, "error", err)
		return
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme == "http" {
		logger.Warn("using insecure HTTP connection, data will be transmitted unencrypted", "url", rawURL)
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return
	}

	switch host := strings.ToLower(hostname); {
	case metadataHosts[host]:
		logger.Warn("target is a cloud metadata endpoint", "host", hostname)
	case host == "localhost":
		logger.Warn("target is a localhost/loopback address, resolved from the backend's side", "host", hostname)
	default:
		addr, err := netip.ParseAddr(host)
		if err != nil {
			return
		}
		switch {
		case addr.IsLoopback():
			logger.Warn("target is a localhost/loopback address, resolved from the backend's side", "host", hostname)
		case internalAddr(addr):
			logger.Warn("target is a private/internal IP address", "host", hostname)
		}
	}
}

var metadataHosts = map[string]bool{
	"169.254.169.254":          true,
	"169.254.170.2":            true,
	"100.100.100.200":          true,
	"metadata.google.internal": true,
	"metadata.goog":            true,
}

var thisNetwork = netip.MustParsePrefix("0.0.0.0/8")

func internalAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsPrivate() || addr.IsLinkLocalUnicast() || thisNetwork.Contains(addr)
}
