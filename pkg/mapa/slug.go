package mapa

import (
	"crypto/rand"
	"encoding/binary"
	"strconv"
	"strings"
)

// Slugify lower-cases text and reduces it to URL-safe characters.
// Runs of anything outside [a-z0-9] collapse to a single hyphen.
func Slugify(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	hyphen := false
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			hyphen = false
		default:
			if !hyphen && b.Len() > 0 {
				b.WriteByte('-')
				hyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// NewSlug derives a URL-safe identifier from text with a random
// base-36 disambiguator appended. The disambiguator sidesteps most
// collisions up front but does not prove uniqueness; callers must
// still write under a unique constraint and retry on ErrSlugTaken.
func NewSlug(text string) string {
	slug := Slugify(text)
	if slug == "" {
		slug = "untitled"
	}
	return slug + "-" + randomSuffix()
}

func randomSuffix() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	n := binary.BigEndian.Uint64(buf[:]) & 0xffffffffff // 40 bits
	return strconv.FormatUint(n, 36)
}
