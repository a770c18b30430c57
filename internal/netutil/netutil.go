package netutil

import (
	"fmt"
	"net/url"
	"strings"
)

// Fqdn is a validated fully qualified domain name, split into the host
// label and the remaining domain.
type Fqdn struct {
	Host   string
	Domain string
}

// ParseFqdn validates s and splits it into host and domain. The host is
// the first label, the domain everything after the first dot.
func ParseFqdn(s string) (Fqdn, error) {
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return Fqdn{}, fmt.Errorf("fqdn '%s' must contain both a hostname and a domain part", s)
	}
	for _, part := range parts {
		if !validLabel(part) {
			return Fqdn{}, fmt.Errorf("fqdn part '%s' contains invalid characters", part)
		}
	}
	// A purely numeric TLD would make the name indistinguishable from an
	// IP address for some resolvers.
	if isNumeric(parts[len(parts)-1]) {
		return Fqdn{}, fmt.Errorf("fqdn '%s' must not have a purely numeric top-level domain", s)
	}
	return Fqdn{Host: parts[0], Domain: strings.Join(parts[1:], ".")}, nil
}

func (f Fqdn) String() string {
	return f.Host + "." + f.Domain
}

// UnmarshalText lets Fqdn be decoded directly from configuration files.
func (f *Fqdn) UnmarshalText(text []byte) error {
	parsed, err := ParseFqdn(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func validLabel(s string) bool {
	if s == "" || len(s) > 63 {
		return false
	}
	if s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return true
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// CheckURL verifies that s is an absolute http or https URL with a host.
func CheckURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL '%s': %w", s, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL '%s': scheme must be http or https", s)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL '%s': missing host", s)
	}
	return nil
}
