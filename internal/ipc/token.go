package ipc

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GenerateToken returns a 256-bit random token, hex-encoded.
// One token is generated per supervisor session.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// TokenEqual compares two tokens in constant time.
func TokenEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// SocketPath returns the socket location for a named endpoint.
func SocketPath(dir, name string) string {
	return filepath.Join(dir, "overblick-"+name+".sock")
}

// TokenPath returns the token file location for a named endpoint.
func TokenPath(dir, name string) string {
	return filepath.Join(dir, "overblick-"+name+".token")
}

// DefaultSocketDir is where sockets and token files live unless configured.
func DefaultSocketDir() string {
	return filepath.Join(os.TempDir(), "overblick")
}

// WriteTokenFile persists the token with owner-only permissions. Children
// discover the token by reading this file; it is never passed through the
// environment (env vars leak to ps and grandchild processes).
func WriteTokenFile(path, token string) error {
	if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	// WriteFile applies the mode only on create; clamp it on rewrite too.
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("chmod token file: %w", err)
	}
	return nil
}

// ReadTokenFile loads a token written by WriteTokenFile.
func ReadTokenFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
