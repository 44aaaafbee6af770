package service

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/aestrial/keymaster/internal/catalog"
)

const (
	segmentLength = 5
	segmentCount  = 3
	keyAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateKeyString builds a key of the form PREFIX-XXXXX-XXXXX-XXXXX.
// Segments are drawn from crypto/rand with rejection sampling so every
// alphabet character is equally likely.
func GenerateKeyString(game catalog.Game) (string, error) {
	prefix, ok := catalog.KeyPrefix(game)
	if !ok {
		return "", fmt.Errorf("no key prefix for game %q", game)
	}

	parts := make([]string, 0, segmentCount+1)
	parts = append(parts, prefix)
	for i := 0; i < segmentCount; i++ {
		segment, err := randomSegment(segmentLength)
		if err != nil {
			return "", err
		}
		parts = append(parts, segment)
	}
	return strings.Join(parts, "-"), nil
}

func randomSegment(length int) (string, error) {
	// Largest multiple of len(keyAlphabet) below 256; bytes at or above
	// it are rejected to avoid modulo bias.
	limit := byte(256 - 256%len(keyAlphabet))

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, keyAlphabet[int(b)%len(keyAlphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}
