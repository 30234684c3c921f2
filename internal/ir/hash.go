package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainDocument = "deskquery/document/v1"
	DomainTrace    = "deskquery/trace/v1"
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
func ContentHash(domain string, v Value) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ContentHash: failed to marshal: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// DocumentKey identifies a document by its location: the URL of the file
// and the path of the entry inside it (empty for plain files).
func DocumentKey(url, ipath string) string {
	key, _ := ContentHash(DomainDocument, Object{
		"url":   String(url),
		"ipath": String(ipath),
	})
	return key
}

// TraceHash fingerprints a sequence of parser events.
func TraceHash(events Array) (string, error) {
	return ContentHash(DomainTrace, events)
}
