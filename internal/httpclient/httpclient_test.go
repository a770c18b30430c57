package httpclient

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serverFingerprint(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	sum := sha256.Sum256(srv.Certificate().Raw)
	return hex.EncodeToString(sum[:])
}

func colonize(fp string) string {
	var parts []string
	for i := 0; i < len(fp); i += 2 {
		parts = append(parts, fp[i:i+2])
	}
	return strings.Join(parts, ":")
}

func TestGetPlain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		io.WriteString(w, "[global]\ncountry = \"at\"\n")
	}))
	defer srv.Close()

	body, err := New().Get(srv.URL)
	require.NoError(t, err)
	assert.Contains(t, body, "country")
}

func TestGetPinned(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "answer")
	}))
	defer srv.Close()

	fp := serverFingerprint(t, srv)

	tests := []struct {
		name        string
		fingerprint string
	}{
		{"plain hex", fp},
		{"upper case", strings.ToUpper(fp)},
		{"with colons", colonize(fp)},
		{"upper case with colons", strings.ToUpper(colonize(fp))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewPinned(tt.fingerprint)
			require.NoError(t, err)

			body, err := client.Get(srv.URL)
			require.NoError(t, err)
			assert.Equal(t, "answer", body)
		})
	}
}

func TestGetPinnedMismatch(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "answer")
	}))
	defer srv.Close()

	// Flip the first byte of the real fingerprint.
	fp := serverFingerprint(t, srv)
	wrong := "00" + fp[2:]
	if strings.HasPrefix(fp, "00") {
		wrong = "11" + fp[2:]
	}

	client, err := NewPinned(wrong)
	require.NoError(t, err)

	_, err = client.Get(srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Fingerprint did not match!")
}

func TestPinRejectsUntrustedWithoutPin(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "answer")
	}))
	defer srv.Close()

	// Without a pin the self-signed test certificate must not be accepted.
	_, err := New().Get(srv.URL)
	assert.Error(t, err)
}

func TestNewPinnedBadFingerprint(t *testing.T) {
	tests := []struct {
		name        string
		fingerprint string
	}{
		{"not hex", "zz:zz"},
		{"too short", "deadbeef"},
		{"too long", strings.Repeat("ab", 33)},
		{"odd length", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPinned(tt.fingerprint)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid certificate fingerprint")
		})
	}
}

func TestPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json; charset=utf-8", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"product": "pve"}`, string(body))
		io.WriteString(w, "received")
	}))
	defer srv.Close()

	body, err := New().Post(srv.URL, `{"product": "pve"}`)
	require.NoError(t, err)
	assert.Equal(t, "received", body)
}

func TestStatusCodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New().Get(srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code 404")
}

func TestForFingerprint(t *testing.T) {
	client, err := ForFingerprint("")
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = ForFingerprint("not-a-fingerprint")
	assert.Error(t, err)
}
