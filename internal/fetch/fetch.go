// Package fetch retrieves the answer document for an unattended
// installation. Exactly one source is consulted per run; when it does not
// yield an answer the run fails rather than silently falling back to
// another source, since mixing sources would make it impossible to reason
// about which configuration wiped a machine.
package fetch

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"autoinst/internal/config"
	"autoinst/internal/httpclient"
	"autoinst/internal/netutil"
)

// ErrNoAnswer is the terminal error when the configured source did not
// yield an answer document.
var ErrNoAnswer = errors.New("Could not find any answer file!")

// Source fetchers as variables so tests can substitute them.
var (
	fetchISO       = FetchFromISO
	fetchPartition = FetchFromPartition
	fetchHTTP      = FetchFromHTTP
	httpGet        = httpclient.Get
)

// FetchAnswer consults the source selected by settings exactly once. The
// concrete failure is logged; callers only see ErrNoAnswer.
func FetchAnswer(cfg *config.Config, settings *Settings) (string, error) {
	logrus.Infof("Fetching answer file in mode %s:", settings.Mode)
	switch settings.Mode {
	case ModeISO:
		answer, err := fetchISO(cfg)
		if err == nil {
			return answer, nil
		}
		logrus.Infof("Fetching answer file from ISO failed: %v", err)
	case ModePartition:
		answer, err := fetchPartition(cfg)
		if err == nil {
			return answer, nil
		}
		logrus.Infof("Fetching answer file from partition failed: %v", err)
	case ModeHTTP:
		answer, err := fetchHTTP(&settings.HTTP)
		if err == nil {
			return answer, nil
		}
		logrus.Infof("Fetching answer file via HTTP failed: %v", err)
	default:
		return "", fmt.Errorf("unknown fetch mode '%s'", settings.Mode)
	}
	return "", ErrNoAnswer
}

// FetchFromISO reads the answer file baked into the install medium.
func FetchFromISO(cfg *config.Config) (string, error) {
	data, err := os.ReadFile(cfg.AnswerFilePath())
	if err != nil {
		return "", fmt.Errorf("reading '%s': %v", cfg.AnswerFilePath(), err)
	}
	return string(data), nil
}

// FetchFromHTTP retrieves the answer document from the configured URL,
// pinning the server certificate when a fingerprint is given. The URL is
// checked before any connection is attempted.
func FetchFromHTTP(opts *HTTPOptions) (string, error) {
	if opts.URL == "" {
		return "", errors.New("no URL configured for HTTP fetch")
	}
	if err := netutil.CheckURL(opts.URL); err != nil {
		return "", err
	}
	return httpGet(opts.URL, opts.CertFingerprint)
}
