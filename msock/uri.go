package msock

import (
	"fmt"
	"net/url"
)

// parseAddress splits a "tcp://host:port" or "unix:///path/to/socket" URI
// into the net.Dial/net.Listen network and address arguments. Any other
// scheme is rejected with ErrUnsupportedScheme.
func parseAddress(uri string) (network, address string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("msock: parsing address %q: %w", uri, err)
	}

	switch u.Scheme {
	case "tcp":
		return "tcp", u.Host, nil
	case "unix":
		// "unix:///abs/path" parses with an empty Host and Path holding
		// the full path. A two-slash form like "unix://relative/path" is
		// also accepted (matching a Go URI parser's host/path split
		// rather than requiring three slashes): url.Parse puts "relative"
		// in Host and "/path" in Path, so Host must be folded back in or
		// that leading path segment is silently dropped. "unix:path"
		// (no slashes at all) lands in Opaque instead.
		path := u.Host + u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == "" {
			return "", "", fmt.Errorf("msock: unix socket uri %q has no path", uri)
		}
		return "unix", path, nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}
