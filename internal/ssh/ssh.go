// Package ssh validates the public keys an answer file installs for root.
// A typo in a key would only surface at first login, long after the
// machine was wiped, so they are checked up front.
package ssh

import (
	"fmt"

	"golang.org/x/crypto/ssh"
)

// CheckAuthorizedKey validates a single OpenSSH authorized_keys line.
func CheckAuthorizedKey(line string) error {
	if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line)); err != nil {
		return fmt.Errorf("not a valid OpenSSH public key: %w", err)
	}
	return nil
}

// Fingerprint returns the key type and SHA256 fingerprint of an
// authorized key line, with the comment appended when one is present.
func Fingerprint(line string) (string, error) {
	key, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
	if err != nil {
		return "", fmt.Errorf("not a valid OpenSSH public key: %w", err)
	}
	if comment != "" {
		return fmt.Sprintf("%s %s (%s)", key.Type(), ssh.FingerprintSHA256(key), comment), nil
	}
	return fmt.Sprintf("%s %s", key.Type(), ssh.FingerprintSHA256(key)), nil
}
