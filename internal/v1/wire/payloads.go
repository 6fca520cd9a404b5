package wire

import (
	"github.com/AdventurerAmer/yutnori/internal/v1/board"
	"github.com/AdventurerAmer/yutnori/internal/v1/types"
)

// Payload structs for every kind with a non-empty body. Field names are
// part of the protocol; keep them snake_case.

// ConnectPayload carries the freshly minted identity to a new client.
type ConnectPayload struct {
	ClientID types.ClientIDType `json:"client_id"`
}

type CreateRoomRequest struct {
	Name string `json:"name"`
}

type CreateRoomResponse struct {
	RoomID types.RoomIDType `json:"room_id"`
}

type ExitRoomResponse struct {
	Exit bool `json:"exit"`
}

type SetPieceCountRequest struct {
	PieceCount uint8 `json:"piece_count"`
}

type SetPieceCountResponse struct {
	ShouldSet  bool  `json:"should_set"`
	PieceCount uint8 `json:"piece_count"`
}

// PlayerLeftPayload announces a departure. Master is the re-elected
// master when the leaver held the role, empty otherwise.
type PlayerLeftPayload struct {
	Player types.ClientIDType `json:"player"`
	Master types.ClientIDType `json:"master"`
	Kicked bool               `json:"kicked"`
}

type EnterRoomRequest struct {
	RoomID types.RoomIDType `json:"room_id"`
	Name   string           `json:"name"`
}

// PlayerInfo is the membership snapshot entry sent to a joiner.
type PlayerInfo struct {
	ClientID types.ClientIDType `json:"client_id"`
	Name     string             `json:"name"`
	IsReady  bool               `json:"is_ready"`
}

type EnterRoomResponse struct {
	RoomID     types.RoomIDType   `json:"room_id"`
	Join       bool               `json:"join"`
	Master     types.ClientIDType `json:"master"`
	PieceCount uint8              `json:"piece_count"`
	Players    []PlayerInfo       `json:"players"`
}

type PlayerJoinedPayload struct {
	ClientID types.ClientIDType `json:"client_id"`
	Name     string             `json:"name"`
}

type ReadyRequest struct {
	IsReady bool `json:"is_ready"`
}

type ReadyResponse struct {
	Player  types.ClientIDType `json:"player"`
	IsReady bool               `json:"is_ready"`
}

type KickPlayerRequest struct {
	Player types.ClientIDType `json:"player"`
}

type StartGameResponse struct {
	ShouldStart    bool               `json:"should_start"`
	StartingPlayer types.ClientIDType `json:"starting_player"`
}

type CanRollPayload struct {
	Player types.ClientIDType `json:"player"`
}

type EndRollPayload struct {
	ShouldAppend bool `json:"should_append"`
	Roll         int  `json:"roll"`
}

type EndTurnPayload struct {
	NextPlayer types.ClientIDType `json:"next_player"`
}

type SelectingMovePayload struct {
	Player types.ClientIDType `json:"player"`
}

// MoveRequest is the body of both BeginMove and EndMove from a client:
// spend `roll` on piece index `piece`, landing on `cell`.
type MoveRequest struct {
	Roll  int        `json:"roll"`
	Piece int        `json:"piece"`
	Cell  board.Cell `json:"cell"`
}

type BeginMoveResponse struct {
	Player     types.ClientIDType `json:"player"`
	ShouldMove bool               `json:"should_move"`
	Roll       int                `json:"roll"`
	Cell       board.Cell         `json:"cell"`
	Piece      int                `json:"piece"`
	Finished   bool               `json:"finished"`
}

type EndGamePayload struct {
	Winner types.ClientIDType `json:"winner"`
}

type ChangeNameRequest struct {
	Name string `json:"name"`
}

type ChangeNameResponse struct {
	Player types.ClientIDType `json:"player"`
	Name   string             `json:"name"`
}
