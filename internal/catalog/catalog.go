// Package catalog holds the closed set of games keys can be issued for.
// Adding a game requires updating both the enum and the prefix table.
package catalog

// Game identifies a supported game title.
type Game string

const (
	GamePUBGMobile Game = "PUBG MOBILE"
	GameLastIsland Game = "LAST ISLAND OF SURVIVAL"
	GameStandoff2  Game = "STANDOFF2"
)

var keyPrefixes = map[Game]string{
	GamePUBGMobile: "PBGM",
	GameLastIsland: "LIOS",
	GameStandoff2:  "STDF",
}

// Games returns the full catalog in a stable order.
func Games() []Game {
	return []Game{GamePUBGMobile, GameLastIsland, GameStandoff2}
}

// IsValid reports whether the game is part of the catalog.
func IsValid(game Game) bool {
	_, ok := keyPrefixes[game]
	return ok
}

// KeyPrefix returns the four-letter key prefix for a game.
// The second return is false for games outside the catalog.
func KeyPrefix(game Game) (string, bool) {
	prefix, ok := keyPrefixes[game]
	return prefix, ok
}
