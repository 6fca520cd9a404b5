// Package session accepts TCP connections, mints identities, and routes
// client requests to the hub or the client's current room.
package session

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/AdventurerAmer/yutnori/internal/v1/logging"
	"github.com/AdventurerAmer/yutnori/internal/v1/metrics"
	"github.com/AdventurerAmer/yutnori/internal/v1/room"
	"github.com/AdventurerAmer/yutnori/internal/v1/types"
	"github.com/AdventurerAmer/yutnori/internal/v1/wire"
)

const (
	// sendQueueSize bounds the outbound queue; a slow consumer that
	// falls this far behind is torn down.
	sendQueueSize  = 256
	roomNoteSize   = 8
	writeWait      = 10 * time.Second
	keepaliveEvery = time.Minute
)

// Client is one connection endpoint: a reader goroutine decoding frames
// into hub/room actions, and a writer goroutine draining the outbound
// queue. The writer is the sole mutator of the current-room pointer.
type Client struct {
	id   types.ClientIDType
	conn net.Conn
	hub  *Hub

	send    chan []byte
	roomCh  chan *room.Room
	current atomic.Pointer[room.Room]

	closeOnce sync.Once
	dead      chan struct{}

	ctx context.Context // carries correlation and client ids for logs
}

func newClient(id types.ClientIDType, conn net.Conn, hub *Hub, ctx context.Context) *Client {
	return &Client{
		id:     id,
		conn:   conn,
		hub:    hub,
		send:   make(chan []byte, sendQueueSize),
		roomCh: make(chan *room.Room, roomNoteSize),
		dead:   make(chan struct{}),
		ctx:    ctx,
	}
}

func (c *Client) ID() types.ClientIDType { return c.id }

// Enqueue queues a frame for the writer. Never blocks: a full queue
// means the connection has failed and it is torn down.
func (c *Client) Enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		logging.Warn(c.ctx, "outbound queue overflow, dropping connection")
		c.teardown()
	}
}

// AttachRoom notifies the endpoint it has entered a room. Called from
// the room actor; the writer applies it to the current-room pointer.
func (c *Client) AttachRoom(r *room.Room) { c.noteRoom(r) }

// DetachRoom clears the endpoint's room pointer (exit or kick).
func (c *Client) DetachRoom() { c.noteRoom(nil) }

func (c *Client) noteRoom(r *room.Room) {
	select {
	case c.roomCh <- r:
	default:
		// an endpoint this far behind on membership changes is wedged
		c.teardown()
	}
}

// Room returns the endpoint's current room, or nil outside any room.
func (c *Client) Room() *room.Room { return c.current.Load() }

// teardown marks the connection failed. The writer owns the socket: it
// flushes what it can and closes the conn, which unwinds the reader;
// the reader's exit path informs room and hub.
func (c *Client) teardown() {
	c.closeOnce.Do(func() {
		close(c.dead)
	})
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(keepaliveEvery)
	defer ticker.Stop()
	defer c.conn.Close()
	defer c.teardown()

	keepalive := wire.MustEncode(wire.KindKeepalive, nil)
	write := func(frame []byte) bool {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := wire.WriteFrame(c.conn, frame); err != nil {
			logging.Warn(c.ctx, "write failed", zap.Error(err))
			return false
		}
		metrics.FramesWritten.Inc()
		ticker.Reset(keepaliveEvery)
		return true
	}

	for {
		// room notifications take effect before any queued frame is
		// written, so a client never observes a frame that postdates a
		// membership change its endpoint has not applied yet
		select {
		case r := <-c.roomCh:
			c.current.Store(r)
			continue
		default:
		}
		select {
		case frame := <-c.send:
			// a note posted before this frame is already queued; apply
			// it before the frame goes out
			for drained := false; !drained; {
				select {
				case r := <-c.roomCh:
					c.current.Store(r)
				default:
					drained = true
				}
			}
			if !write(frame) {
				return
			}
		case r := <-c.roomCh:
			c.current.Store(r)
		case <-ticker.C:
			if !write(keepalive) {
				return
			}
		case <-c.dead:
			c.flush()
			return
		}
	}
}

// flush drains already-queued frames under one absolute deadline so a
// shutdown notice still reaches a responsive peer.
func (c *Client) flush() {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	for {
		select {
		case frame := <-c.send:
			if _, err := c.conn.Write(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) readLoop() {
	defer func() {
		c.teardown()
		if r := c.current.Load(); r != nil {
			r.PostExit(c.id, false)
		}
		c.hub.postUnregister(c)
		logging.Info(c.ctx, "connection closed")
	}()

	for {
		kind, payload, err := wire.ReadFrame(c.conn)
		if err != nil {
			return
		}
		metrics.FramesRead.Inc()
		if !c.dispatch(kind, payload) {
			return
		}
	}
}

// dispatch routes one inbound frame. Malformed payloads and unknown
// kinds terminate the connection; actions that need a room the endpoint
// is not in get a local negative response.
func (c *Client) dispatch(kind wire.Kind, payload []byte) bool {
	switch kind {
	case wire.KindKeepalive:
		return true

	case wire.KindCreateRoom:
		var req wire.CreateRoomRequest
		if wire.Decode(payload, &req) != nil {
			return false
		}
		c.hub.postCreateRoom(c, req.Name)

	case wire.KindEnterRoom:
		var req wire.EnterRoomRequest
		if wire.Decode(payload, &req) != nil {
			return false
		}
		c.hub.postEnterRoom(c, req.RoomID, req.Name)

	case wire.KindExitRoom:
		if r := c.Room(); r != nil {
			r.PostExit(c.id, false)
		} else {
			c.Enqueue(wire.MustEncode(wire.KindExitRoom, wire.ExitRoomResponse{Exit: false}))
		}

	case wire.KindSetPieceCount:
		var req wire.SetPieceCountRequest
		if wire.Decode(payload, &req) != nil {
			return false
		}
		if r := c.Room(); r != nil {
			r.PostSetPieceCount(c, req.PieceCount)
		} else {
			c.Enqueue(wire.MustEncode(wire.KindSetPieceCount, wire.SetPieceCountResponse{ShouldSet: false}))
		}

	case wire.KindReady:
		var req wire.ReadyRequest
		if wire.Decode(payload, &req) != nil {
			return false
		}
		if r := c.Room(); r != nil {
			r.PostReady(c, req.IsReady)
		} else {
			c.Enqueue(wire.MustEncode(wire.KindReady, wire.ReadyResponse{}))
		}

	case wire.KindKickPlayer:
		var req wire.KickPlayerRequest
		if wire.Decode(payload, &req) != nil {
			return false
		}
		if r := c.Room(); r != nil {
			r.PostExit(req.Player, true)
		}

	case wire.KindStartGame:
		if r := c.Room(); r != nil {
			r.PostStartGame(c)
		} else {
			c.Enqueue(wire.MustEncode(wire.KindStartGame, wire.StartGameResponse{ShouldStart: false}))
		}

	case wire.KindBeginRoll:
		if r := c.Room(); r != nil {
			r.PostBeginRoll(c)
		} else {
			c.Enqueue(wire.MustEncode(wire.KindEndRoll, wire.EndRollPayload{ShouldAppend: false}))
		}

	case wire.KindBeginMove:
		var req wire.MoveRequest
		if wire.Decode(payload, &req) != nil {
			return false
		}
		if r := c.Room(); r != nil {
			r.PostBeginMove(c, req)
		} else {
			c.Enqueue(wire.MustEncode(wire.KindBeginMove, wire.BeginMoveResponse{Player: c.id, ShouldMove: false}))
		}

	case wire.KindEndMove:
		var req wire.MoveRequest
		if wire.Decode(payload, &req) != nil {
			return false
		}
		if r := c.Room(); r != nil {
			r.PostEndMove(c, req)
		}

	case wire.KindChangeName:
		var req wire.ChangeNameRequest
		if wire.Decode(payload, &req) != nil {
			return false
		}
		if r := c.Room(); r != nil {
			r.PostChangeName(c, req.Name)
		} else {
			c.Enqueue(wire.MustEncode(wire.KindChangeName, wire.ChangeNameResponse{}))
		}

	default:
		logging.Warn(c.ctx, "unexpected frame kind", zap.String("kind", kind.String()))
		return false
	}
	return true
}
