// Package types defines shared types and constants for the application.
package types

// ClientIDType represents a unique identifier for a client connection.
// Identifiers are minted by the server: 20 random bytes, base32-encoded
// without padding (32 ASCII characters).
type ClientIDType string

// RoomIDType represents a unique identifier for a game room. Rooms use
// the same identifier scheme as clients.
type RoomIDType string

// DisplayNameType represents the human-readable name for a player.
type DisplayNameType string

// Room limits. A game needs at least two players; the board supports up
// to six players with up to six pieces each.
const (
	MinPlayerCount = 2
	MaxPlayerCount = 6
	MinPieceCount  = 2
	MaxPieceCount  = 6
)
