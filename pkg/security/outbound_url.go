package security

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

var ErrDisallowedEndpoint = errors.New("disallowed endpoint")

// OutboundURLOptions configures which provider endpoints may be contacted.
type OutboundURLOptions struct {
	// AllowHTTP permits plain HTTP URLs. HTTPS is always allowed.
	AllowHTTP bool
	// AllowLocalNetworks permits loopback/private/link-local IP targets and localhost hostnames.
	AllowLocalNetworks bool
}

// LocalTestingOptions allows http and loopback targets, e.g. httptest servers
// or a local proxy in front of a provider.
func LocalTestingOptions() OutboundURLOptions {
	return OutboundURLOptions{AllowHTTP: true, AllowLocalNetworks: true}
}

var localSuffixes = []string{".localhost", ".local", ".internal"}

// ValidateOutboundURL checks a provider endpoint before credentials are sent
// to it. IP literals are checked without DNS lookups, hostnames only by name.
// Credentials belong in headers or the query, never in the URL's userinfo.
func ValidateOutboundURL(rawURL string, opts OutboundURLOptions) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrap(ErrDisallowedEndpoint, "invalid URL")
	}
	if err := opts.checkScheme(u.Scheme); err != nil {
		return err
	}
	if u.User != nil {
		return errors.Wrap(ErrDisallowedEndpoint, "userinfo in provider URL")
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return errors.Wrap(ErrDisallowedEndpoint, "URL host is required")
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return opts.checkAddr(addr)
	}
	return opts.checkHostname(host)
}

func (o OutboundURLOptions) checkScheme(scheme string) error {
	switch {
	case scheme == "https":
		return nil
	case scheme == "http" && o.AllowHTTP:
		return nil
	case scheme == "http":
		return errors.Wrap(ErrDisallowedEndpoint, "http scheme is not allowed")
	default:
		return errors.Wrapf(ErrDisallowedEndpoint, "unsupported URL scheme %q", scheme)
	}
}

func (o OutboundURLOptions) checkHostname(host string) error {
	if o.AllowLocalNetworks {
		return nil
	}
	if host == "localhost" {
		return errors.Wrapf(ErrDisallowedEndpoint, "local hostname %q", host)
	}
	for _, suffix := range localSuffixes {
		if strings.HasSuffix(host, suffix) {
			return errors.Wrapf(ErrDisallowedEndpoint, "local hostname %q", host)
		}
	}
	return nil
}

func (o OutboundURLOptions) checkAddr(addr netip.Addr) error {
	zoned := addr.Zone() != ""
	addr = addr.Unmap()
	if addr.IsUnspecified() || addr.IsMulticast() {
		return errors.Wrapf(ErrDisallowedEndpoint, "IP address %s", addr)
	}
	if o.AllowLocalNetworks {
		return nil
	}
	local := zoned || addr.IsLoopback() || addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast()
	if local {
		return errors.Wrapf(ErrDisallowedEndpoint, "local network IP %s", addr)
	}
	return nil
}
