// Package game implements the per-room Yutnori state machine. An
// Instance is owned by exactly one room actor and is never touched from
// outside that actor's mailbox loop, so nothing here locks.
package game

import (
	"math/rand"

	"github.com/AdventurerAmer/yutnori/internal/v1/board"
	"github.com/AdventurerAmer/yutnori/internal/v1/types"
)

// State enumerates the game phases.
type State uint8

const (
	GameEnded State = iota
	GameStarted
	BeginTurn
	EndTurn
	CanRoll
	BeginRoll
	EndRoll
	BeginMove
	EndMove
	SelectingMove
)

var stateNames = [...]string{
	"GameEnded", "GameStarted", "BeginTurn", "EndTurn", "CanRoll",
	"BeginRoll", "EndRoll", "BeginMove", "EndMove", "SelectingMove",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "State(?)"
}

// Player is one seat in the game. Only Pieces[0:pieceCount] participate;
// the rest stay inert in their home position.
type Player struct {
	ID     types.ClientIDType
	Pieces [types.MaxPieceCount]board.Piece
}

// Move is a legality-checked move waiting for its end-move acks.
type Move struct {
	Roll     int
	Piece    int
	Cell     board.Cell
	Finishes bool
}

// Transition tells the room which broadcasts follow a roll or a move.
type Transition uint8

const (
	// TransitionExtraRoll keeps the turn player rolling (rolled 4 or 5,
	// or stomped an opponent).
	TransitionExtraRoll Transition = iota
	// TransitionTurnEnded advances to the next player.
	TransitionTurnEnded
	// TransitionSelecting hands the turn player the move selection.
	TransitionSelecting
	// TransitionGameWon ends the game.
	TransitionGameWon
)

// RollResult reports one dice roll and the state that follows it.
type RollResult struct {
	Value        int
	ShouldAppend bool
	Next         Transition
	NextPlayer   types.ClientIDType // set when Next is TransitionTurnEnded
}

// MoveOutcome reports the application of an acknowledged move.
type MoveOutcome struct {
	Stomped    bool
	Next       Transition
	Winner     types.ClientIDType // set when Next is TransitionGameWon
	NextPlayer types.ClientIDType // set when Next is TransitionTurnEnded
}

// Instance is the authoritative game data for one room.
type Instance struct {
	players    []Player
	pieceCount uint8
	state      State
	turnIdx    int
	rolls      []int
	acks       map[types.ClientIDType]struct{}
	current    Move
	rng        *rand.Rand
}

// New returns an idle instance. The rng is owned by the caller's actor
// goroutine; tests seed it for determinism.
func New(rng *rand.Rand) *Instance {
	return &Instance{
		state: GameEnded,
		acks:  make(map[types.ClientIDType]struct{}),
		rng:   rng,
	}
}

func (g *Instance) State() State { return g.state }

// TurnPlayer returns the id of the player whose turn it is, or "" when
// no game is running.
func (g *Instance) TurnPlayer() types.ClientIDType {
	if g.state == GameEnded || len(g.players) == 0 {
		return ""
	}
	return g.players[g.turnIdx].ID
}

// Rolls returns a copy of the unconsumed roll pool.
func (g *Instance) Rolls() []int {
	out := make([]int, len(g.rolls))
	copy(out, g.rolls)
	return out
}

// Pieces returns the piece array for a player, and whether the player
// is seated.
func (g *Instance) Pieces(id types.ClientIDType) ([types.MaxPieceCount]board.Piece, bool) {
	for i := range g.players {
		if g.players[i].ID == id {
			return g.players[i].Pieces, true
		}
	}
	return [types.MaxPieceCount]board.Piece{}, false
}

// Reset rehomes every piece, clears the roll pool and ack set, and
// returns the instance to GameEnded. Applying it twice is the same as
// applying it once.
func (g *Instance) Reset(playerIDs []types.ClientIDType, pieceCount uint8) {
	g.players = g.players[:0]
	for _, id := range playerIDs {
		p := Player{ID: id}
		for i := range p.Pieces {
			p.Pieces[i] = board.NewPiece()
		}
		g.players = append(g.players, p)
	}
	g.pieceCount = pieceCount
	g.state = GameEnded
	g.turnIdx = 0
	g.rolls = g.rolls[:0]
	clear(g.acks)
	g.current = Move{}
}

// Start resets and begins a fresh game, choosing the starting player
// uniformly at random. The instance lands in CanRoll waiting for the
// starter's first roll.
func (g *Instance) Start(playerIDs []types.ClientIDType, pieceCount uint8) types.ClientIDType {
	g.Reset(playerIDs, pieceCount)
	g.turnIdx = g.rng.Intn(len(g.players))
	g.state = CanRoll
	return g.players[g.turnIdx].ID
}

// Roll performs a dice roll for the turn player. It is legal only in
// CanRoll and only from the turn player; an illegal request returns
// ok=false with the instance unchanged.
func (g *Instance) Roll(id types.ClientIDType) (RollResult, bool) {
	if g.state != CanRoll || g.TurnPlayer() != id {
		return RollResult{}, false
	}
	return g.applyRoll(g.rollValue()), true
}

// applyRoll folds one dice value into the pool and settles the next
// phase. Split from Roll so the pool rules can be exercised with fixed
// values.
func (g *Instance) applyRoll(value int) RollResult {
	res := RollResult{Value: value}
	switch {
	case res.Value == 0:
		g.rolls = g.rolls[:0]
	case res.Value < 0 && len(g.rolls) == 0 && g.allAtStart(g.turnIdx):
		// a lone back-up with nothing on the board would be unspendable
	default:
		g.rolls = append(g.rolls, res.Value)
		res.ShouldAppend = true
	}

	switch {
	case res.Value == 4 || res.Value == 5:
		g.state = CanRoll
		res.Next = TransitionExtraRoll
	case len(g.rolls) == 0:
		res.NextPlayer = g.advanceTurn()
		res.Next = TransitionTurnEnded
	default:
		g.state = SelectingMove
		res.Next = TransitionSelecting
	}
	return res
}

// BeginMove validates a move request from the turn player. On success
// the roll is consumed, the move is snapshotted, the ack set is reset
// and the instance waits in BeginMove for every member's EndMove.
func (g *Instance) BeginMove(id types.ClientIDType, roll, piece int, cell board.Cell) (finished bool, ok bool) {
	if g.state != SelectingMove || g.TurnPlayer() != id {
		return false, false
	}
	if piece < 0 || piece >= int(g.pieceCount) {
		return false, false
	}
	p := g.players[g.turnIdx].Pieces[piece]
	if p.Finished {
		return false, false
	}
	rollIdx := -1
	for i, r := range g.rolls {
		if r == roll {
			rollIdx = i
			break
		}
	}
	if rollIdx < 0 {
		return false, false
	}
	pathA, pathB, finish := board.MoveSequence(p, roll)
	landsA := len(pathA) > 0 && pathA[len(pathA)-1] == cell
	landsB := len(pathB) > 0 && pathB[len(pathB)-1] == cell
	if !landsA && !landsB {
		return false, false
	}

	g.rolls = append(g.rolls[:rollIdx], g.rolls[rollIdx+1:]...)
	g.current = Move{Roll: roll, Piece: piece, Cell: cell, Finishes: finish}
	clear(g.acks)
	g.state = BeginMove
	return finish, true
}

// CurrentMove returns the move awaiting acknowledgement.
func (g *Instance) CurrentMove() Move { return g.current }

// AckEndMove records one member's animation-complete report. When every
// seated player has acknowledged, the move is applied and the outcome
// returned with done=true.
func (g *Instance) AckEndMove(id types.ClientIDType) (MoveOutcome, bool) {
	if g.state != BeginMove {
		return MoveOutcome{}, false
	}
	seated := false
	for i := range g.players {
		if g.players[i].ID == id {
			seated = true
			break
		}
	}
	if !seated {
		return MoveOutcome{}, false
	}
	g.acks[id] = struct{}{}
	if len(g.acks) < len(g.players) {
		return MoveOutcome{}, false
	}
	return g.applyMove(), true
}

// applyMove executes the snapshotted move: carry the stack, stomp
// opponents, then settle the next phase.
func (g *Instance) applyMove() MoveOutcome {
	mover := &g.players[g.turnIdx]
	named := mover.Pieces[g.current.Piece]

	if named.AtStart {
		mover.Pieces[g.current.Piece] = board.Piece{
			Cell:     g.current.Cell,
			Finished: g.current.Finishes,
		}
	} else {
		// stacked pieces travel together
		for i := 0; i < int(g.pieceCount); i++ {
			p := &mover.Pieces[i]
			if p.AtStart || p.Finished || p.Cell != named.Cell {
				continue
			}
			p.Cell = g.current.Cell
			p.Finished = g.current.Finishes
		}
	}

	var out MoveOutcome
	for i := range g.players {
		if i == g.turnIdx {
			continue
		}
		for j := 0; j < int(g.pieceCount); j++ {
			p := &g.players[i].Pieces[j]
			if p.AtStart || p.Finished || p.Cell != g.current.Cell {
				continue
			}
			*p = board.NewPiece()
			out.Stomped = true
		}
	}

	clear(g.acks)
	g.current = Move{}

	switch {
	case g.allFinished(g.turnIdx):
		out.Next = TransitionGameWon
		out.Winner = mover.ID
		g.state = GameEnded
	case out.Stomped:
		out.Next = TransitionExtraRoll
		g.state = CanRoll
	case len(g.rolls) == 0:
		out.NextPlayer = g.advanceTurn()
		out.Next = TransitionTurnEnded
	default:
		out.Next = TransitionSelecting
		g.state = SelectingMove
	}
	return out
}

func (g *Instance) advanceTurn() types.ClientIDType {
	g.turnIdx = (g.turnIdx + 1) % len(g.players)
	g.state = CanRoll
	return g.players[g.turnIdx].ID
}

func (g *Instance) allAtStart(idx int) bool {
	for i := 0; i < int(g.pieceCount); i++ {
		if !g.players[idx].Pieces[i].AtStart {
			return false
		}
	}
	return true
}

func (g *Instance) allFinished(idx int) bool {
	for i := 0; i < int(g.pieceCount); i++ {
		if !g.players[idx].Pieces[i].Finished {
			return false
		}
	}
	return true
}
