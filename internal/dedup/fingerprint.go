// Package dedup fingerprints chunk text and separates new chunks from ones
// already present in the vector store.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"

	"docrag/internal/domain"
)

// Fingerprint returns the SHA-256 digest of the UTF-8 bytes of text.
// Callers pass normalized text; no further folding is applied.
func Fingerprint(text string) domain.Fingerprint {
	sum := sha256.Sum256([]byte(text))
	return domain.Fingerprint(hex.EncodeToString(sum[:]))
}

// Set is a set of fingerprints.
type Set map[domain.Fingerprint]struct{}

// NewSet builds a set from fingerprints.
func NewSet(fps ...domain.Fingerprint) Set {
	s := make(Set, len(fps))
	for _, fp := range fps {
		s[fp] = struct{}{}
	}
	return s
}

// FromTexts fingerprints stored texts. Stored text is already normalized.
func FromTexts(texts []string) Set {
	s := make(Set, len(texts))
	for _, t := range texts {
		s[Fingerprint(t)] = struct{}{}
	}
	return s
}

// Has reports whether fp is in the set.
func (s Set) Has(fp domain.Fingerprint) bool {
	_, ok := s[fp]
	return ok
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for fp := range s {
		c[fp] = struct{}{}
	}
	return c
}
