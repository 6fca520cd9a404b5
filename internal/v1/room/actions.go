package room

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/AdventurerAmer/yutnori/internal/v1/game"
	"github.com/AdventurerAmer/yutnori/internal/v1/metrics"
	"github.com/AdventurerAmer/yutnori/internal/v1/types"
	"github.com/AdventurerAmer/yutnori/internal/v1/wire"
)

// action is one room mailbox message. apply runs on the actor goroutine
// and is the only place room state is touched.
type action interface {
	apply(r *Room)
}

// --- Enter ---

type enterAction struct {
	client Client
	name   string
}

// PostEnter asks the room to admit a client. The joiner receives the
// full snapshot (or join=false), existing members see PlayerJoined.
func (r *Room) PostEnter(c Client, name string) { r.post(enterAction{client: c, name: name}) }

func (a enterAction) apply(r *Room) {
	if len(r.members) >= types.MaxPlayerCount {
		r.sendTo(a.client, wire.KindEnterRoom, wire.EnterRoomResponse{RoomID: r.id, Join: false})
		metrics.RejectedActions.WithLabelValues("enter_room").Inc()
		return
	}
	if r.memberIdx(a.client.ID()) >= 0 {
		r.sendTo(a.client, wire.KindEnterRoom, wire.EnterRoomResponse{RoomID: r.id, Join: false})
		return
	}

	name := sanitizeName(a.name, a.client.ID())
	if len(r.members) == 0 {
		r.master = a.client.ID()
	}
	a.client.AttachRoom(r)

	snapshot := wire.EnterRoomResponse{
		RoomID:     r.id,
		Join:       true,
		Master:     r.master,
		PieceCount: r.pieces,
		Players:    make([]wire.PlayerInfo, 0, len(r.members)),
	}
	for _, m := range r.members {
		snapshot.Players = append(snapshot.Players, wire.PlayerInfo{
			ClientID: m.client.ID(),
			Name:     m.name,
			IsReady:  m.ready,
		})
	}
	r.sendTo(a.client, wire.KindEnterRoom, snapshot)

	// announce before adding so the joiner does not echo its own join
	r.broadcast(wire.KindPlayerJoined, wire.PlayerJoinedPayload{ClientID: a.client.ID(), Name: name})

	r.members = append(r.members, &member{client: a.client, name: name})
	r.playerGauge()
	r.logInfo("player joined", zap.String("client_id", string(a.client.ID())), zap.String("name", name))
}

// --- Exit / Kick ---

type exitAction struct {
	target types.ClientIDType
	kicked bool
}

// PostExit removes a member, voluntarily or by kick. Unknown targets
// are a no-op.
func (r *Room) PostExit(target types.ClientIDType, kicked bool) {
	r.post(exitAction{target: target, kicked: kicked})
}

func (a exitAction) apply(r *Room) {
	idx := r.memberIdx(a.target)
	if idx < 0 {
		return
	}
	leaving := r.members[idx]

	// any departure mid-game voids the game for everyone
	if r.game.State() != game.GameEnded {
		r.resetGame()
		r.logInfo("game reset on departure", zap.String("client_id", string(a.target)))
	}

	// swap-remove
	r.members[idx] = r.members[len(r.members)-1]
	r.members = r.members[:len(r.members)-1]
	r.playerGauge()

	if len(r.members) == 0 {
		leaving.client.DetachRoom()
		if a.kicked {
			r.sendTo(leaving.client, wire.KindPlayerLeft, wire.PlayerLeftPayload{Player: a.target, Kicked: true})
		} else {
			r.sendTo(leaving.client, wire.KindExitRoom, wire.ExitRoomResponse{Exit: true})
		}
		r.emptied = true
		return
	}

	var newMaster types.ClientIDType
	if r.master == a.target {
		newMaster = r.members[r.rng.Intn(len(r.members))].client.ID()
		r.master = newMaster
		r.logInfo("master re-elected", zap.String("master", string(newMaster)))
	}

	left := wire.PlayerLeftPayload{Player: a.target, Master: newMaster, Kicked: a.kicked}
	r.broadcast(wire.KindPlayerLeft, left)

	leaving.client.DetachRoom()
	if a.kicked {
		// the kicked client learns from the same announcement
		r.sendTo(leaving.client, wire.KindPlayerLeft, left)
	} else {
		r.sendTo(leaving.client, wire.KindExitRoom, wire.ExitRoomResponse{Exit: true})
	}
	r.logInfo("player left",
		zap.String("client_id", string(a.target)),
		zap.Bool("kicked", a.kicked))
}

// --- Ready ---

type readyAction struct {
	client Client
	ready  bool
}

func (r *Room) PostReady(c Client, ready bool) { r.post(readyAction{client: c, ready: ready}) }

func (a readyAction) apply(r *Room) {
	idx := r.memberIdx(a.client.ID())
	if idx < 0 {
		r.sendTo(a.client, wire.KindReady, wire.ReadyResponse{})
		return
	}
	r.members[idx].ready = a.ready
	r.broadcast(wire.KindReady, wire.ReadyResponse{Player: a.client.ID(), IsReady: a.ready})
}

// --- SetPieceCount ---

type setPieceCountAction struct {
	client Client
	count  uint8
}

func (r *Room) PostSetPieceCount(c Client, count uint8) {
	r.post(setPieceCountAction{client: c, count: count})
}

func (a setPieceCountAction) apply(r *Room) {
	if a.client.ID() != r.master || r.game.State() != game.GameEnded {
		r.sendTo(a.client, wire.KindSetPieceCount, wire.SetPieceCountResponse{ShouldSet: false})
		metrics.RejectedActions.WithLabelValues("set_piece_count").Inc()
		return
	}
	count := min(max(a.count, types.MinPieceCount), types.MaxPieceCount)
	r.pieces = count
	r.broadcast(wire.KindSetPieceCount, wire.SetPieceCountResponse{ShouldSet: true, PieceCount: count})
}

// --- ChangeName ---

type changeNameAction struct {
	client Client
	name   string
}

func (r *Room) PostChangeName(c Client, name string) {
	r.post(changeNameAction{client: c, name: name})
}

func (a changeNameAction) apply(r *Room) {
	idx := r.memberIdx(a.client.ID())
	if idx < 0 {
		r.sendTo(a.client, wire.KindChangeName, wire.ChangeNameResponse{})
		return
	}
	name := sanitizeName(a.name, a.client.ID())
	r.members[idx].name = name
	r.broadcast(wire.KindChangeName, wire.ChangeNameResponse{Player: a.client.ID(), Name: name})
}

// --- StartGame ---

type startGameAction struct {
	client Client
}

func (r *Room) PostStartGame(c Client) { r.post(startGameAction{client: c}) }

func (a startGameAction) apply(r *Room) {
	if a.client.ID() != r.master ||
		r.game.State() != game.GameEnded ||
		len(r.members) < types.MinPlayerCount ||
		!r.allReady() {
		r.sendTo(a.client, wire.KindStartGame, wire.StartGameResponse{ShouldStart: false})
		metrics.RejectedActions.WithLabelValues("start_game").Inc()
		return
	}

	starter := r.game.Start(r.memberIDs(), r.pieces)
	metrics.GamesStarted.Inc()
	r.logInfo("game started",
		zap.String("starter", string(starter)),
		zap.Uint8("piece_count", r.pieces),
		zap.Int("players", len(r.members)))

	r.broadcast(wire.KindStartGame, wire.StartGameResponse{ShouldStart: true, StartingPlayer: starter})
	r.broadcast(wire.KindBeginTurn, nil)
	r.sendToID(starter, wire.KindCanRoll, wire.CanRollPayload{Player: starter})
}

func (r *Room) allReady() bool {
	for _, m := range r.members {
		if !m.ready {
			return false
		}
	}
	return true
}

// --- BeginRoll ---

type beginRollAction struct {
	client Client
}

func (r *Room) PostBeginRoll(c Client) { r.post(beginRollAction{client: c}) }

func (a beginRollAction) apply(r *Room) {
	res, ok := r.game.Roll(a.client.ID())
	if !ok {
		r.sendTo(a.client, wire.KindEndRoll, wire.EndRollPayload{ShouldAppend: false})
		metrics.RejectedActions.WithLabelValues("begin_roll").Inc()
		return
	}
	metrics.DiceRolls.WithLabelValues(strconv.Itoa(res.Value)).Inc()
	r.broadcast(wire.KindEndRoll, wire.EndRollPayload{ShouldAppend: res.ShouldAppend, Roll: res.Value})
	r.rollTransition(res.Next, res.NextPlayer)
}

// --- BeginMove ---

type beginMoveAction struct {
	client Client
	move   wire.MoveRequest
}

func (r *Room) PostBeginMove(c Client, move wire.MoveRequest) {
	r.post(beginMoveAction{client: c, move: move})
}

func (a beginMoveAction) apply(r *Room) {
	finished, ok := r.game.BeginMove(a.client.ID(), a.move.Roll, a.move.Piece, a.move.Cell)
	if !ok {
		r.sendTo(a.client, wire.KindBeginMove, wire.BeginMoveResponse{
			Player:     a.client.ID(),
			ShouldMove: false,
		})
		metrics.RejectedActions.WithLabelValues("begin_move").Inc()
		return
	}
	r.broadcast(wire.KindBeginMove, wire.BeginMoveResponse{
		Player:     a.client.ID(),
		ShouldMove: true,
		Roll:       a.move.Roll,
		Cell:       a.move.Cell,
		Piece:      a.move.Piece,
		Finished:   finished,
	})
}

// --- EndMove ---

type endMoveAction struct {
	client Client
	move   wire.MoveRequest
}

func (r *Room) PostEndMove(c Client, move wire.MoveRequest) {
	r.post(endMoveAction{client: c, move: move})
}

func (a endMoveAction) apply(r *Room) {
	out, done := r.game.AckEndMove(a.client.ID())
	if !done {
		return
	}
	if out.Next == game.TransitionGameWon {
		metrics.GamesFinished.Inc()
		r.logInfo("game won", zap.String("winner", string(out.Winner)))
		r.broadcast(wire.KindEndGame, wire.EndGamePayload{Winner: out.Winner})
		return
	}
	r.rollTransition(out.Next, out.NextPlayer)
}

// sanitizeName trims and caps a display name, substituting a stable
// default derived from the client id when nothing usable remains.
func sanitizeName(name string, id types.ClientIDType) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > 32 {
		runes := []rune(name)
		name = string(runes[:32])
	}
	if name == "" {
		short := string(id)
		if len(short) > 6 {
			short = short[:6]
		}
		name = "player-" + short
	}
	return name
}
