package room

import (
	"github.com/AdventurerAmer/yutnori/internal/v1/types"
	"github.com/AdventurerAmer/yutnori/internal/v1/wire"
)

// mockClient records everything the room pushes at an endpoint.
type mockClient struct {
	id       types.ClientIDType
	frames   [][]byte
	attached *Room
	detached int
}

func newMockClient(id string) *mockClient {
	return &mockClient{id: types.ClientIDType(id)}
}

func (m *mockClient) ID() types.ClientIDType { return m.id }
func (m *mockClient) Enqueue(frame []byte)   { m.frames = append(m.frames, frame) }
func (m *mockClient) AttachRoom(r *Room)     { m.attached = r }
func (m *mockClient) DetachRoom() {
	m.attached = nil
	m.detached++
}

// kinds lists the kinds of every recorded frame, in order.
func (m *mockClient) kinds() []wire.Kind {
	out := make([]wire.Kind, len(m.frames))
	for i, f := range m.frames {
		out[i] = wire.Kind(f[0])
	}
	return out
}

// lastOf decodes the most recent frame of the given kind into v,
// returning false when none was recorded.
func (m *mockClient) lastOf(kind wire.Kind, v any) bool {
	for i := len(m.frames) - 1; i >= 0; i-- {
		if wire.Kind(m.frames[i][0]) == kind {
			if err := wire.Decode(m.frames[i][wire.HeaderSize:], v); err != nil {
				return false
			}
			return true
		}
	}
	return false
}

func (m *mockClient) countOf(kind wire.Kind) int {
	n := 0
	for _, f := range m.frames {
		if wire.Kind(f[0]) == kind {
			n++
		}
	}
	return n
}
