package room

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdventurerAmer/yutnori/internal/v1/board"
	"github.com/AdventurerAmer/yutnori/internal/v1/game"
	"github.com/AdventurerAmer/yutnori/internal/v1/types"
	"github.com/AdventurerAmer/yutnori/internal/v1/wire"
)

// enter admits a mock client synchronously.
func enter(r *Room, c *mockClient, name string) {
	r.handle(enterAction{client: c, name: name})
}

func testRoom(t *testing.T, memberNames ...string) (*Room, []*mockClient) {
	t.Helper()
	r := NewForTest("room-1", 42)
	clients := make([]*mockClient, 0, len(memberNames))
	for _, name := range memberNames {
		c := newMockClient(name)
		enter(r, c, name)
		clients = append(clients, c)
	}
	return r, clients
}

func TestEnter_FirstJoinerBecomesMaster(t *testing.T) {
	r, clients := testRoom(t, "alice")
	alice := clients[0]

	assert.Equal(t, types.ClientIDType("alice"), r.master)
	assert.Same(t, r, alice.attached)

	var resp wire.EnterRoomResponse
	require.True(t, alice.lastOf(wire.KindEnterRoom, &resp))
	assert.True(t, resp.Join)
	assert.Equal(t, types.ClientIDType("alice"), resp.Master)
	assert.Equal(t, uint8(DefaultPieceCount), resp.PieceCount)
	assert.Empty(t, resp.Players)
}

func TestEnter_SnapshotAndJoinBroadcast(t *testing.T) {
	r, clients := testRoom(t, "alice", "bob")
	alice, bob := clients[0], clients[1]

	var resp wire.EnterRoomResponse
	require.True(t, bob.lastOf(wire.KindEnterRoom, &resp))
	assert.True(t, resp.Join)
	require.Len(t, resp.Players, 1)
	assert.Equal(t, types.ClientIDType("alice"), resp.Players[0].ClientID)

	var joined wire.PlayerJoinedPayload
	require.True(t, alice.lastOf(wire.KindPlayerJoined, &joined))
	assert.Equal(t, types.ClientIDType("bob"), joined.ClientID)
	// the joiner does not echo its own join
	assert.Equal(t, 0, bob.countOf(wire.KindPlayerJoined))

	assert.Len(t, r.members, 2)
}

func TestEnter_FullRoomRejected(t *testing.T) {
	names := make([]string, types.MaxPlayerCount)
	for i := range names {
		names[i] = fmt.Sprintf("p%d", i)
	}
	r, clients := testRoom(t, names...)

	late := newMockClient("late")
	enter(r, late, "late")

	var resp wire.EnterRoomResponse
	require.True(t, late.lastOf(wire.KindEnterRoom, &resp))
	assert.False(t, resp.Join)
	assert.Nil(t, late.attached)
	assert.Len(t, r.members, types.MaxPlayerCount)
	// no join broadcast for a refused entry
	for _, c := range clients {
		assert.Equal(t, types.MaxPlayerCount-1-indexOf(names, string(c.id)), c.countOf(wire.KindPlayerJoined))
	}
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func TestExit_LastMemberStopsRoom(t *testing.T) {
	r, clients := testRoom(t, "alice")
	r.handle(exitAction{target: "alice"})

	assert.Empty(t, r.members)
	assert.True(t, r.emptied)
	assert.Equal(t, 1, clients[0].detached)

	var resp wire.ExitRoomResponse
	require.True(t, clients[0].lastOf(wire.KindExitRoom, &resp))
	assert.True(t, resp.Exit)
}

func TestExit_UnknownTargetIsNoop(t *testing.T) {
	r, clients := testRoom(t, "alice")
	before := len(clients[0].frames)
	r.handle(exitAction{target: "ghost"})
	assert.Len(t, clients[0].frames, before)
	assert.False(t, r.emptied)
}

func TestExit_MasterReelectedFromRemaining(t *testing.T) {
	r, clients := testRoom(t, "alice", "bob", "carol", "dave")
	r.handle(exitAction{target: "alice"})

	assert.NotEqual(t, types.ClientIDType("alice"), r.master)
	assert.GreaterOrEqual(t, r.memberIdx(r.master), 0)

	var left wire.PlayerLeftPayload
	require.True(t, clients[1].lastOf(wire.KindPlayerLeft, &left))
	assert.Equal(t, types.ClientIDType("alice"), left.Player)
	assert.Equal(t, r.master, left.Master)
	assert.False(t, left.Kicked)
}

func TestExit_NonMasterLeavesMasterUnchanged(t *testing.T) {
	r, clients := testRoom(t, "alice", "bob")
	r.handle(exitAction{target: "bob"})

	assert.Equal(t, types.ClientIDType("alice"), r.master)
	var left wire.PlayerLeftPayload
	require.True(t, clients[0].lastOf(wire.KindPlayerLeft, &left))
	assert.Equal(t, types.ClientIDType(""), left.Master)
}

func TestKick_ClearsPointerAndAnnounces(t *testing.T) {
	r, clients := testRoom(t, "alice", "bob")
	bob := clients[1]

	r.handle(exitAction{target: "bob", kicked: true})

	assert.Equal(t, 1, bob.detached)
	var left wire.PlayerLeftPayload
	require.True(t, bob.lastOf(wire.KindPlayerLeft, &left))
	assert.True(t, left.Kicked)
	assert.Equal(t, types.ClientIDType("bob"), left.Player)
	// kicked members get no exit response
	assert.Equal(t, 0, bob.countOf(wire.KindExitRoom))
	assert.Len(t, r.members, 1)
}

func TestReady_Broadcasts(t *testing.T) {
	r, clients := testRoom(t, "alice", "bob")
	r.handle(readyAction{client: clients[0], ready: true})

	for _, c := range clients {
		var resp wire.ReadyResponse
		require.True(t, c.lastOf(wire.KindReady, &resp))
		assert.Equal(t, types.ClientIDType("alice"), resp.Player)
		assert.True(t, resp.IsReady)
	}
}

func TestReady_NonMemberRejected(t *testing.T) {
	r, _ := testRoom(t, "alice")
	ghost := newMockClient("ghost")
	r.handle(readyAction{client: ghost, ready: true})

	var resp wire.ReadyResponse
	require.True(t, ghost.lastOf(wire.KindReady, &resp))
	assert.Equal(t, types.ClientIDType(""), resp.Player)
}

func TestSetPieceCount_MasterOnlyAndClamped(t *testing.T) {
	r, clients := testRoom(t, "alice", "bob")
	alice, bob := clients[0], clients[1]

	r.handle(setPieceCountAction{client: bob, count: 5})
	var resp wire.SetPieceCountResponse
	require.True(t, bob.lastOf(wire.KindSetPieceCount, &resp))
	assert.False(t, resp.ShouldSet)
	assert.Equal(t, uint8(DefaultPieceCount), r.pieces)

	r.handle(setPieceCountAction{client: alice, count: 9})
	require.True(t, alice.lastOf(wire.KindSetPieceCount, &resp))
	assert.True(t, resp.ShouldSet)
	assert.Equal(t, uint8(types.MaxPieceCount), resp.PieceCount)
	assert.Equal(t, uint8(types.MaxPieceCount), r.pieces)

	r.handle(setPieceCountAction{client: alice, count: 0})
	require.True(t, alice.lastOf(wire.KindSetPieceCount, &resp))
	assert.True(t, resp.ShouldSet)
	assert.Equal(t, uint8(types.MinPieceCount), resp.PieceCount)
}

func TestChangeName_BroadcastsSanitized(t *testing.T) {
	r, clients := testRoom(t, "alice", "bob")
	r.handle(changeNameAction{client: clients[0], name: "  Yut Master  "})

	var resp wire.ChangeNameResponse
	require.True(t, clients[1].lastOf(wire.KindChangeName, &resp))
	assert.Equal(t, "Yut Master", resp.Name)
	assert.Equal(t, "Yut Master", r.members[r.memberIdx("alice")].name)
}

func readyAll(r *Room, clients []*mockClient) {
	for _, c := range clients {
		r.handle(readyAction{client: c, ready: true})
	}
}

func TestStartGame_RequiresMasterAndReady(t *testing.T) {
	r, clients := testRoom(t, "alice", "bob")
	alice, bob := clients[0], clients[1]

	// not everyone ready
	r.handle(startGameAction{client: alice})
	var resp wire.StartGameResponse
	require.True(t, alice.lastOf(wire.KindStartGame, &resp))
	assert.False(t, resp.ShouldStart)

	readyAll(r, clients)

	// not the master
	r.handle(startGameAction{client: bob})
	require.True(t, bob.lastOf(wire.KindStartGame, &resp))
	assert.False(t, resp.ShouldStart)

	r.handle(startGameAction{client: alice})
	require.True(t, alice.lastOf(wire.KindStartGame, &resp))
	assert.True(t, resp.ShouldStart)
	assert.Equal(t, game.CanRoll, r.game.State())

	// both see StartGame and BeginTurn; only the starter sees CanRoll
	starter := resp.StartingPlayer
	for _, c := range clients {
		assert.Equal(t, 1, c.countOf(wire.KindBeginTurn))
		expect := 0
		if c.id == starter {
			expect = 1
		}
		assert.Equal(t, expect, c.countOf(wire.KindCanRoll))
	}
}

func TestStartGame_RejectedSolo(t *testing.T) {
	r, clients := testRoom(t, "alice")
	readyAll(r, clients)
	r.handle(startGameAction{client: clients[0]})

	var resp wire.StartGameResponse
	require.True(t, clients[0].lastOf(wire.KindStartGame, &resp))
	assert.False(t, resp.ShouldStart)
}

func TestStartGame_RejectedMidGame(t *testing.T) {
	r, clients := testRoom(t, "alice", "bob")
	readyAll(r, clients)
	r.handle(startGameAction{client: clients[0]})
	require.Equal(t, game.CanRoll, r.game.State())

	r.handle(startGameAction{client: clients[0]})
	var resp wire.StartGameResponse
	require.True(t, clients[0].lastOf(wire.KindStartGame, &resp))
	assert.False(t, resp.ShouldStart)
}

func TestMidGameDepartureResetsGame(t *testing.T) {
	r, clients := testRoom(t, "alice", "bob", "carol")
	readyAll(r, clients)
	r.handle(startGameAction{client: clients[0]})
	require.Equal(t, game.CanRoll, r.game.State())

	r.handle(exitAction{target: "carol"})

	assert.Equal(t, game.GameEnded, r.game.State())
	for _, m := range r.members {
		assert.False(t, m.ready)
	}
	pieces, ok := r.game.Pieces("alice")
	require.True(t, ok)
	for _, p := range pieces {
		assert.True(t, p.AtStart)
		assert.Equal(t, board.BottomRight, p.Cell)
	}
}

func TestBeginRoll_RejectedForNonTurnPlayer(t *testing.T) {
	r, clients := testRoom(t, "alice", "bob")
	readyAll(r, clients)
	r.handle(startGameAction{client: clients[0]})

	turn := r.game.TurnPlayer()
	var other *mockClient
	for _, c := range clients {
		if c.id != turn {
			other = c
		}
	}
	before := other.countOf(wire.KindEndRoll)
	r.handle(beginRollAction{client: other})

	var resp wire.EndRollPayload
	require.True(t, other.lastOf(wire.KindEndRoll, &resp))
	assert.False(t, resp.ShouldAppend)
	assert.Equal(t, before+1, other.countOf(wire.KindEndRoll))
	// a rejection is not broadcast
	turnClient := clients[0]
	if turnClient.id != turn {
		turnClient = clients[1]
	}
	assert.Equal(t, 0, turnClient.countOf(wire.KindEndRoll))
}

// TestGameDrive plays a seeded room forward and checks the protocol
// stays coherent: every roll is broadcast, selection only follows a
// non-empty pool, and a win broadcasts EndGame exactly once.
func TestGameDrive(t *testing.T) {
	r, clients := testRoom(t, "alice", "bob")
	byID := map[types.ClientIDType]*mockClient{"alice": clients[0], "bob": clients[1]}
	readyAll(r, clients)
	r.handle(setPieceCountAction{client: clients[0], count: 2})
	r.handle(startGameAction{client: clients[0]})
	require.Equal(t, game.CanRoll, r.game.State())

	for step := 0; step < 4000 && r.game.State() != game.GameEnded; step++ {
		switch r.game.State() {
		case game.CanRoll:
			turn := byID[r.game.TurnPlayer()]
			rolls := clients[0].countOf(wire.KindEndRoll)
			r.handle(beginRollAction{client: turn})
			assert.Equal(t, rolls+1, clients[0].countOf(wire.KindEndRoll))
		case game.SelectingMove:
			require.NotEmpty(t, r.game.Rolls())
			turnID := r.game.TurnPlayer()
			move, found := findLegalMove(r)
			if !found {
				t.Log("stranded on an unspendable back-up, stopping drive")
				return
			}
			r.handle(beginMoveAction{client: byID[turnID], move: move})
			var resp wire.BeginMoveResponse
			require.True(t, clients[1].lastOf(wire.KindBeginMove, &resp))
			require.True(t, resp.ShouldMove)
		case game.BeginMove:
			for _, c := range clients {
				r.handle(endMoveAction{client: c, move: wire.MoveRequest{}})
			}
		default:
			t.Fatalf("unexpected state %s", r.game.State())
		}
	}

	if r.game.State() == game.GameEnded {
		for _, c := range clients {
			assert.Equal(t, 1, c.countOf(wire.KindEndGame))
		}
		var end wire.EndGamePayload
		require.True(t, clients[0].lastOf(wire.KindEndGame, &end))
		assert.Contains(t, []types.ClientIDType{"alice", "bob"}, end.Winner)
	}
}

func findLegalMove(r *Room) (wire.MoveRequest, bool) {
	turn := r.game.TurnPlayer()
	pieces, _ := r.game.Pieces(turn)
	for _, roll := range r.game.Rolls() {
		for i := 0; i < int(r.pieces); i++ {
			if pieces[i].Finished {
				continue
			}
			pathA, pathB, _ := board.MoveSequence(pieces[i], roll)
			if len(pathA) > 0 {
				return wire.MoveRequest{Roll: roll, Piece: i, Cell: pathA[len(pathA)-1]}, true
			}
			if len(pathB) > 0 {
				return wire.MoveRequest{Roll: roll, Piece: i, Cell: pathB[len(pathB)-1]}, true
			}
		}
	}
	return wire.MoveRequest{}, false
}
