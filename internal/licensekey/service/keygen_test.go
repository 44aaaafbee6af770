package service

import (
	"regexp"
	"testing"

	"github.com/aestrial/keymaster/internal/catalog"
)

func TestGenerateKeyStringFormat(t *testing.T) {
	patterns := map[catalog.Game]*regexp.Regexp{
		catalog.GamePUBGMobile: regexp.MustCompile(`^PBGM(-[A-Z0-9]{5}){3}$`),
		catalog.GameLastIsland: regexp.MustCompile(`^LIOS(-[A-Z0-9]{5}){3}$`),
		catalog.GameStandoff2:  regexp.MustCompile(`^STDF(-[A-Z0-9]{5}){3}$`),
	}

	for game, re := range patterns {
		for i := 0; i < 50; i++ {
			key, err := GenerateKeyString(game)
			if err != nil {
				t.Fatalf("GenerateKeyString(%q): %v", game, err)
			}
			if !re.MatchString(key) {
				t.Fatalf("key %q does not match %q", key, re)
			}
		}
	}
}

func TestGenerateKeyStringUnknownGame(t *testing.T) {
	if _, err := GenerateKeyString(catalog.Game("TETRIS")); err == nil {
		t.Fatal("expected error for unknown game")
	}
}

func TestRandomSegmentUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		seg, err := randomSegment(segmentLength)
		if err != nil {
			t.Fatalf("randomSegment: %v", err)
		}
		if seen[seg] {
			t.Fatalf("segment %q repeated within 1000 draws", seg)
		}
		seen[seg] = true
	}
}
