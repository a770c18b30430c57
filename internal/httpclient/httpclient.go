// Package httpclient issues the HTTP requests of the installer: fetching
// answer documents, retrieving first boot hooks and posting notification
// payloads. Servers can be verified against the usual trust store or
// pinned to a single certificate fingerprint, which is what makes
// self-signed deployment servers usable in unattended setups.
package httpclient

import (
	"bytes"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// requestTimeout bounds every request, connection setup included.
const requestTimeout = 60 * time.Second

// Client issues GET and POST requests with a fixed timeout.
type Client struct {
	hc *http.Client
}

// New returns a client verifying TLS peers against the system trust store.
func New() *Client {
	return &Client{hc: &http.Client{Timeout: requestTimeout}}
}

// NewPinned returns a client accepting exactly the server certificate
// whose SHA-256 digest matches fingerprint. The fingerprint is hex, case
// insensitive, with or without colon separators. Chain and hostname
// verification do not apply; the pin is the entire trust decision.
func NewPinned(fingerprint string) (*Client, error) {
	pin, err := decodeFingerprint(fingerprint)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		// Verification happens in VerifyPeerCertificate instead.
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return verifyFingerprint(rawCerts, pin)
		},
	}

	return &Client{hc: &http.Client{
		Timeout:   requestTimeout,
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}}, nil
}

// ForFingerprint returns a pinned client when fingerprint is set and a
// trust store backed one otherwise.
func ForFingerprint(fingerprint string) (*Client, error) {
	if fingerprint == "" {
		return New(), nil
	}
	return NewPinned(fingerprint)
}

// Get fetches url and returns the response body. A non-empty fingerprint
// pins the server certificate.
var Get = func(url, fingerprint string) (string, error) {
	client, err := ForFingerprint(fingerprint)
	if err != nil {
		return "", err
	}
	return client.Get(url)
}

// Post sends payload as JSON to url and returns the response body. A
// non-empty fingerprint pins the server certificate.
var Post = func(url, fingerprint, payload string) (string, error) {
	client, err := ForFingerprint(fingerprint)
	if err != nil {
		return "", err
	}
	return client.Post(url, payload)
}

// Get fetches url and returns the response body.
func (c *Client) Get(url string) (string, error) {
	resp, err := c.hc.Get(url)
	if err != nil {
		return "", err
	}
	return readBody(resp)
}

// Post sends payload as JSON to url and returns the response body.
func (c *Client) Post(url, payload string) (string, error) {
	resp, err := c.hc.Post(url, "application/json; charset=utf-8", strings.NewReader(payload))
	if err != nil {
		return "", err
	}
	return readBody(resp)
}

func readBody(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status code %d (%s)", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return string(body), nil
}

func decodeFingerprint(fingerprint string) ([]byte, error) {
	sanitized := strings.ReplaceAll(fingerprint, ":", "")
	pin, err := hex.DecodeString(sanitized)
	if err != nil {
		return nil, fmt.Errorf("invalid certificate fingerprint '%s': %w", fingerprint, err)
	}
	if len(pin) != sha256.Size {
		return nil, fmt.Errorf("invalid certificate fingerprint '%s': got %d bytes, expected %d", fingerprint, len(pin), sha256.Size)
	}
	return pin, nil
}

func verifyFingerprint(rawCerts [][]byte, pin []byte) error {
	if len(rawCerts) == 0 {
		return errors.New("server presented no certificate")
	}
	// Only the leaf matters; the pin replaces the whole chain.
	sum := sha256.Sum256(rawCerts[0])
	if !bytes.Equal(sum[:], pin) {
		return errors.New("Fingerprint did not match!")
	}
	return nil
}
