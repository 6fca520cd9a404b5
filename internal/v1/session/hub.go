package session

import (
	"context"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/AdventurerAmer/yutnori/internal/v1/logging"
	"github.com/AdventurerAmer/yutnori/internal/v1/metrics"
	"github.com/AdventurerAmer/yutnori/internal/v1/ratelimit"
	"github.com/AdventurerAmer/yutnori/internal/v1/room"
	"github.com/AdventurerAmer/yutnori/internal/v1/types"
	"github.com/AdventurerAmer/yutnori/internal/v1/wire"
)

// Hub is the single owner of the room table and the set of accepted
// connections. Like the rooms it is an actor: every mutation goes
// through its mailbox.
type Hub struct {
	mailbox chan hubAction
	rooms   map[types.RoomIDType]*room.Room
	clients map[types.ClientIDType]*Client

	limiter *ratelimit.ConnectionLimiter
	tracer  trace.Tracer

	done chan struct{}
	wg   sync.WaitGroup
}

// Stats is a point-in-time snapshot for the health endpoint.
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

// NewHub creates a hub. The limiter may be nil to disable the accept
// gate (tests).
func NewHub(limiter *ratelimit.ConnectionLimiter) *Hub {
	return &Hub{
		mailbox: make(chan hubAction, 64),
		rooms:   make(map[types.RoomIDType]*room.Room),
		clients: make(map[types.ClientIDType]*Client),
		limiter: limiter,
		tracer:  otel.Tracer("yutnori/session"),
		done:    make(chan struct{}),
	}
}

// Run drives the hub mailbox until ctx is cancelled, then closes every
// live connection and returns once the pumps have unwound.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case a := <-h.mailbox:
			a.apply(h)
		case <-ctx.Done():
			close(h.done)
			goodbye := wire.MustEncode(wire.KindDisconnect, nil)
			for _, c := range h.clients {
				c.Enqueue(goodbye)
				c.teardown()
			}
			h.wg.Wait()
			logging.Info(ctx, "hub stopped", zap.Int("connections_closed", len(h.clients)))
			return
		}
	}
}

// Serve accepts connections until the listener is closed. Each accepted
// connection is handed to the hub mailbox for registration.
func (h *Hub) Serve(lis net.Listener) error {
	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-h.done:
				return nil
			default:
				return err
			}
		}
		if h.limiter != nil && !h.limiter.Allow(context.Background(), remoteIP(conn)) {
			metrics.RateLimitExceeded.WithLabelValues("accept").Inc()
			conn.Close()
			continue
		}
		h.post(registerAction{conn: conn})
	}
}

func remoteIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

func (h *Hub) post(a hubAction) {
	select {
	case h.mailbox <- a:
	case <-h.done:
	}
}

// Stats asks the actor for a snapshot; a cancelled ctx or a stopped hub
// yields the zero value.
func (h *Hub) Stats(ctx context.Context) Stats {
	reply := make(chan Stats, 1)
	h.post(statsAction{reply: reply})
	select {
	case s := <-reply:
		return s
	case <-ctx.Done():
		return Stats{}
	case <-h.done:
		return Stats{}
	}
}

// --- mailbox actions ---

type hubAction interface {
	apply(h *Hub)
}

type registerAction struct {
	conn net.Conn
}

func (a registerAction) apply(h *Hub) {
	id, err := newIdentity()
	if err != nil {
		logging.Error(context.Background(), "identity mint failed", zap.Error(err))
		a.conn.Close()
		return
	}
	clientID := types.ClientIDType(id)
	if _, dup := h.clients[clientID]; dup {
		// vanishingly improbable; reject rather than share an identity
		logging.Error(context.Background(), "duplicate identity minted", zap.String("client_id", id))
		a.conn.Close()
		return
	}

	ctx := context.WithValue(context.Background(), logging.CorrelationIDKey, uuid.NewString())
	ctx = context.WithValue(ctx, logging.ClientIDKey, id)

	_, span := h.tracer.Start(ctx, "session.register",
		trace.WithAttributes(attribute.String("client.id", id)))
	defer span.End()

	c := newClient(clientID, a.conn, h, ctx)
	h.clients[clientID] = c
	metrics.ActiveConnections.Inc()

	c.Enqueue(wire.MustEncode(wire.KindConnect, wire.ConnectPayload{ClientID: clientID}))

	h.wg.Add(2)
	go func() { defer h.wg.Done(); c.writeLoop() }()
	go func() { defer h.wg.Done(); c.readLoop() }()

	logging.Info(ctx, "connection registered", zap.String("remote", a.conn.RemoteAddr().String()))
}

type unregisterAction struct {
	client *Client
}

func (h *Hub) postUnregister(c *Client) { h.post(unregisterAction{client: c}) }

func (a unregisterAction) apply(h *Hub) {
	if cur, ok := h.clients[a.client.id]; ok && cur == a.client {
		delete(h.clients, a.client.id)
		metrics.ActiveConnections.Dec()
	}
}

type createRoomAction struct {
	client *Client
	name   string
}

func (h *Hub) postCreateRoom(c *Client, name string) { h.post(createRoomAction{client: c, name: name}) }

func (a createRoomAction) apply(h *Hub) {
	id, err := newIdentity()
	if err != nil {
		logging.Error(a.client.ctx, "identity mint failed", zap.Error(err))
		return
	}
	roomID := types.RoomIDType(id)

	_, span := h.tracer.Start(a.client.ctx, "session.create_room",
		trace.WithAttributes(attribute.String("room.id", id)))
	defer span.End()

	r := room.New(roomID, h.postDestroyRoom)
	h.rooms[roomID] = r
	metrics.ActiveRooms.Inc()

	a.client.Enqueue(wire.MustEncode(wire.KindCreateRoom, wire.CreateRoomResponse{RoomID: roomID}))
	r.PostEnter(a.client, a.name)
	logging.Info(a.client.ctx, "room created", zap.String("room_id", id))
}

type enterRoomAction struct {
	client *Client
	roomID types.RoomIDType
	name   string
}

func (h *Hub) postEnterRoom(c *Client, roomID types.RoomIDType, name string) {
	h.post(enterRoomAction{client: c, roomID: roomID, name: name})
}

func (a enterRoomAction) apply(h *Hub) {
	r, ok := h.rooms[a.roomID]
	if !ok {
		a.client.Enqueue(wire.MustEncode(wire.KindEnterRoom, wire.EnterRoomResponse{
			RoomID: a.roomID,
			Join:   false,
		}))
		return
	}
	r.PostEnter(a.client, a.name)
}

type destroyRoomAction struct {
	roomID types.RoomIDType
}

func (h *Hub) postDestroyRoom(id types.RoomIDType) { h.post(destroyRoomAction{roomID: id}) }

func (a destroyRoomAction) apply(h *Hub) {
	if _, ok := h.rooms[a.roomID]; ok {
		delete(h.rooms, a.roomID)
		metrics.ActiveRooms.Dec()
		logging.Info(context.Background(), "room destroyed", zap.String("room_id", string(a.roomID)))
	}
}

type statsAction struct {
	reply chan Stats
}

func (a statsAction) apply(h *Hub) {
	a.reply <- Stats{Connections: len(h.clients), Rooms: len(h.rooms)}
}
