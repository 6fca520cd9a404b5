// Package room implements the per-room actor. Every mutation of
// membership, master, or the game instance happens inside the room's
// single mailbox goroutine; callers interact only by posting actions.
package room

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/AdventurerAmer/yutnori/internal/v1/game"
	"github.com/AdventurerAmer/yutnori/internal/v1/logging"
	"github.com/AdventurerAmer/yutnori/internal/v1/metrics"
	"github.com/AdventurerAmer/yutnori/internal/v1/types"
	"github.com/AdventurerAmer/yutnori/internal/v1/wire"
)

// DefaultPieceCount is the piece count a fresh room starts with; the
// master can change it within [MinPieceCount, MaxPieceCount].
const DefaultPieceCount = 4

const mailboxSize = 32

// Client is the room's borrowed handle to a connection endpoint. Enqueue
// must never block: the transport drops the connection on overflow.
type Client interface {
	ID() types.ClientIDType
	Enqueue(frame []byte)
	AttachRoom(r *Room)
	DetachRoom()
}

type member struct {
	client Client
	name   string
	ready  bool
}

// Room owns its membership and game instance. Exported methods only
// post to the mailbox; all state lives behind the run loop.
type Room struct {
	id types.RoomIDType

	members []*member
	master  types.ClientIDType
	pieces  uint8
	game    *game.Instance
	rng     *rand.Rand

	mailbox chan action
	done    chan struct{}
	onEmpty func(types.RoomIDType)
	emptied bool
}

// New creates a room and starts its actor. onEmpty runs once, from the
// actor goroutine, after the last member has left.
func New(id types.RoomIDType, onEmpty func(types.RoomIDType)) *Room {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	r := &Room{
		id:      id,
		pieces:  DefaultPieceCount,
		game:    game.New(rng),
		rng:     rng,
		mailbox: make(chan action, mailboxSize),
		done:    make(chan struct{}),
		onEmpty: onEmpty,
	}
	go r.run()
	return r
}

// NewForTest builds a room with a seeded rng and no actor goroutine;
// tests drive the mailbox synchronously via handle().
func NewForTest(id types.RoomIDType, seed int64) *Room {
	rng := rand.New(rand.NewSource(seed))
	return &Room{
		id:      id,
		pieces:  DefaultPieceCount,
		game:    game.New(rng),
		rng:     rng,
		mailbox: make(chan action, mailboxSize),
		done:    make(chan struct{}),
	}
}

func (r *Room) ID() types.RoomIDType { return r.id }

func (r *Room) run() {
	for {
		a := <-r.mailbox
		r.handle(a)
		if r.emptied {
			r.logInfo("room emptied, stopping actor")
			close(r.done)
			if r.onEmpty != nil {
				r.onEmpty(r.id)
			}
			return
		}
	}
}

func (r *Room) handle(a action) {
	a.apply(r)
}

// post delivers an action to the actor. Once the room has shut down the
// action is dropped; the poster's endpoint is either gone or about to
// learn it has no room.
func (r *Room) post(a action) {
	select {
	case r.mailbox <- a:
	case <-r.done:
	}
}

func (r *Room) memberIdx(id types.ClientIDType) int {
	for i, m := range r.members {
		if m.client.ID() == id {
			return i
		}
	}
	return -1
}

func (r *Room) memberIDs() []types.ClientIDType {
	ids := make([]types.ClientIDType, len(r.members))
	for i, m := range r.members {
		ids[i] = m.client.ID()
	}
	return ids
}

// broadcast serializes once and enqueues the frame on every member.
func (r *Room) broadcast(kind wire.Kind, payload any) {
	frame := wire.MustEncode(kind, payload)
	for _, m := range r.members {
		m.client.Enqueue(frame)
	}
}

func (r *Room) sendTo(c Client, kind wire.Kind, payload any) {
	c.Enqueue(wire.MustEncode(kind, payload))
}

func (r *Room) sendToID(id types.ClientIDType, kind wire.Kind, payload any) {
	if i := r.memberIdx(id); i >= 0 {
		r.sendTo(r.members[i].client, kind, payload)
	}
}

// resetGame rehomes every piece and clears ready flags. Used on
// mid-game departure; starting a fresh game resets through game.Start.
func (r *Room) resetGame() {
	r.game.Reset(r.memberIDs(), r.pieces)
	for _, m := range r.members {
		m.ready = false
	}
}

// rollTransition emits the broadcasts that follow a roll or an applied
// move: extra roll, turn advance, or move selection.
func (r *Room) rollTransition(next game.Transition, nextPlayer types.ClientIDType) {
	switch next {
	case game.TransitionExtraRoll:
		r.sendToID(r.game.TurnPlayer(), wire.KindCanRoll, wire.CanRollPayload{Player: r.game.TurnPlayer()})
	case game.TransitionTurnEnded:
		r.broadcast(wire.KindEndTurn, wire.EndTurnPayload{NextPlayer: nextPlayer})
		r.broadcast(wire.KindBeginTurn, nil)
		r.sendToID(nextPlayer, wire.KindCanRoll, wire.CanRollPayload{Player: nextPlayer})
	case game.TransitionSelecting:
		r.broadcast(wire.KindSelectingMove, wire.SelectingMovePayload{Player: r.game.TurnPlayer()})
	}
}

func (r *Room) logCtx() context.Context {
	return context.WithValue(context.Background(), logging.RoomIDKey, string(r.id))
}

func (r *Room) logInfo(msg string, fields ...zap.Field) {
	logging.Info(r.logCtx(), msg, fields...)
}

func (r *Room) playerGauge() {
	if len(r.members) > 0 {
		metrics.RoomPlayers.WithLabelValues(string(r.id)).Set(float64(len(r.members)))
	} else {
		metrics.RoomPlayers.DeleteLabelValues(string(r.id))
	}
}
