package fetch

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Mode selects the answer document source for a run.
type Mode string

const (
	ModeISO       Mode = "iso"
	ModePartition Mode = "partition"
	ModeHTTP      Mode = "http"
)

func (m *Mode) UnmarshalText(text []byte) error {
	switch Mode(text) {
	case ModeISO, ModePartition, ModeHTTP:
		*m = Mode(text)
		return nil
	}
	return errors.New("fetch-from value not one of 'http', 'iso', or 'partition'")
}

// HTTPOptions configures the HTTP source.
type HTTPOptions struct {
	URL             string `toml:"url"`
	CertFingerprint string `toml:"cert_fingerprint"`
}

// Settings selects the answer source, either parsed from the mode file on
// the install medium or from command line arguments.
type Settings struct {
	Mode Mode        `toml:"mode"`
	HTTP HTTPOptions `toml:"http"`
}

// LoadSettings reads and strictly decodes the mode file.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Could not find needed file '%s' in live environment: %v", path, err)
	}

	var settings Settings
	md, err := toml.Decode(string(data), &settings)
	if err != nil {
		return nil, fmt.Errorf("Failed to parse '%s': %v", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("Failed to parse '%s': unknown key '%s'", path, undecoded[0].String())
	}
	if settings.Mode == "" {
		return nil, fmt.Errorf("Failed to parse '%s': 'mode' must be set", path)
	}
	return &settings, nil
}

func usage(prog string) error {
	return fmt.Errorf("usage: %s <http|iso|partition> [<http-url>] [<tls-cert-fingerprint>]", prog)
}

// ParseArgs builds Settings from a full argument vector of the form
// <http|iso|partition> [<url>] [<fingerprint>]. Asking for help counts as
// a failure: an unattended run that ends up printing usage has been
// invoked wrongly and must not look successful.
func ParseArgs(args []string) (*Settings, error) {
	if len(args) < 2 {
		return nil, usage(args[0])
	}

	var mode Mode
	switch strings.ToLower(args[1]) {
	case "iso":
		mode = ModeISO
	case "http":
		mode = ModeHTTP
	case "partition":
		mode = ModePartition
	case "-h", "--help":
		return nil, usage(args[0])
	default:
		return nil, errors.New("failed to parse fetch-from argument, not one of 'http', 'iso', or 'partition'")
	}

	if len(args) > 4 {
		return nil, usage(args[0])
	}
	if len(args) > 2 && mode != ModeHTTP {
		return nil, errors.New("only 'http' fetch-from mode supports additional url and cert-fingerprint arguments")
	}

	settings := &Settings{Mode: mode}
	if len(args) > 2 {
		settings.HTTP.URL = args[2]
	}
	if len(args) > 3 {
		settings.HTTP.CertFingerprint = args[3]
	}
	return settings, nil
}
