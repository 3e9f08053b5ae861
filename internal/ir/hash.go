package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainComposition = "aqlengine/composition/v1"
	DomainEHR         = "aqlengine/ehr/v1"
	DomainQuery       = "aqlengine/query/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash hashes the canonical form of v under domain.
// Equal values hash identically regardless of key order or number scale.
func ContentHash(domain string, v Value) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ContentHash: failed to marshal: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// QueryFingerprint identifies query text independent of layout: runs of
// whitespace collapse to a single space before hashing. The first 16 hex
// characters are returned, which is enough for log correlation.
func QueryFingerprint(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	return hashWithDomain(DomainQuery, []byte(collapsed))[:16]
}
