package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fingerprintLen is the length of the hex fingerprint handed to the quota
// tracker. Half a SHA-256 is plenty for a rate-limiting key.
const fingerprintLen = 32

// Signals is the bundle of weak environment hints a browser reports about
// itself. None of them identify a person; together they are stable enough to
// rate-limit one device/browser combination.
type Signals struct {
	ScreenResolution string
	Timezone         string
	Locale           string
	Platform         string
	RendererDigest   string
	UserAgent        string
}

// Fingerprint derives a fixed-length opaque key from the signals. It is
// deterministic for the same device/browser combination and never fails:
// missing signals just reduce entropy. The result is a rate-limiting key
// only, never an identity.
func Fingerprint(s Signals) string {
	// Truncate the user agent so minor version bumps within the same major
	// build keep the fingerprint stable-ish without carrying the full string.
	ua := s.UserAgent
	if len(ua) > 64 {
		ua = ua[:64]
	}

	canonical := strings.Join([]string{
		s.ScreenResolution,
		s.Timezone,
		s.Locale,
		s.Platform,
		s.RendererDigest,
		ua,
	}, "|")

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}
