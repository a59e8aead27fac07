// ABOUTME: Gate verifies opaque API keys against a static set loaded at startup
// ABOUTME: Plain keys compare in constant time; hashed entries use bcrypt

package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// GateConfig is the credential set a Gate accepts
type GateConfig struct {
	Keys      []string
	KeyHashes []string
	// Disabled admits every connection. Only for local development.
	Disabled bool
}

// Gate is the admission credential check
type Gate struct {
	digests  [][sha256.Size]byte
	hashes   [][]byte
	disabled bool
	logger   *slog.Logger
}

// NewGate builds a Gate from cfg. Blank keys are ignored; malformed bcrypt
// hashes are an error.
func NewGate(cfg GateConfig, logger *slog.Logger) (*Gate, error) {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		disabled: cfg.Disabled,
		logger:   logger.With("component", "auth"),
	}

	for _, key := range cfg.Keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		g.digests = append(g.digests, sha256.Sum256([]byte(key)))
	}

	for i, h := range cfg.KeyHashes {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return nil, fmt.Errorf("auth.api_key_hashes[%d]: %w", i, err)
		}
		g.hashes = append(g.hashes, []byte(h))
	}

	if g.disabled {
		g.logger.Warn("authentication disabled: every connection will be admitted")
	} else if g.Size() == 0 {
		g.logger.Warn("no API keys configured: every connection will be rejected")
	}

	return g, nil
}

// Verify reports whether credential is in the accepted set.
func (g *Gate) Verify(credential string) bool {
	if g.disabled {
		return true
	}
	if credential == "" {
		return false
	}

	digest := sha256.Sum256([]byte(credential))
	match := 0
	for i := range g.digests {
		match |= subtle.ConstantTimeCompare(digest[:], g.digests[i][:])
	}
	if match == 1 {
		return true
	}

	for _, h := range g.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(credential)) == nil {
			return true
		}
	}
	return false
}

// Size returns the number of configured credentials.
func (g *Gate) Size() int {
	return len(g.digests) + len(g.hashes)
}

// Fingerprint returns a short, non-reversible identifier for a credential,
// safe to put in logs.
func Fingerprint(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return "key-" + hex.EncodeToString(sum[:4])
}
