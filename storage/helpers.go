package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
)

// generateSecureToken creates a random token encoded as URL-safe base64.
func generateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// hashSHA256 returns the hex-encoded SHA-256 hash of a string.
func hashSHA256(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// TokenHash returns the stored form of a raw session token.
func TokenHash(token string) string {
	return hashSHA256(token)
}

// GetDefaultDBPath returns the default SQLite database path.
func GetDefaultDBPath() string {
	if runtime.GOOS == "windows" {
		pd := os.Getenv("PROGRAMDATA")
		if pd == "" {
			pd = "C:\\ProgramData"
		}
		return filepath.Join(pd, "JiConnect", "server", "jiconnect.db")
	}
	return "/var/lib/jiconnect/jiconnect.db"
}
