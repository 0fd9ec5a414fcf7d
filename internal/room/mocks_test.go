package room

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"canvaslab/internal/protocol"
)

// fakeClient implements Client with an unbounded frame log. Setting
// full makes Send report overflow, which is how the slow-consumer path
// is exercised.
type fakeClient struct {
	sid   string
	uid   string
	color string

	mu     sync.Mutex
	frames [][]byte

	full       atomic.Bool
	slowClosed atomic.Bool
	shutdowns  atomic.Int32
}

func newFakeClient(sid, uid string) *fakeClient {
	return &fakeClient{sid: sid, uid: uid, color: "#" + uid}
}

func (c *fakeClient) SessionID() string { return c.sid }
func (c *fakeClient) UserID() string    { return c.uid }
func (c *fakeClient) Color() string     { return c.color }

func (c *fakeClient) Send(frame []byte) bool {
	if c.full.Load() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	c.frames = append(c.frames, cp)
	return true
}

func (c *fakeClient) CloseSlow() { c.slowClosed.Store(true) }
func (c *fakeClient) Shutdown()  { c.shutdowns.Add(1) }

// received decodes every frame the client has been sent.
func (c *fakeClient) received(t *testing.T) []*protocol.Message {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*protocol.Message, 0, len(c.frames))
	for _, f := range c.frames {
		var m protocol.Message
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, &m)
	}
	return out
}

// typed returns the client's frames of one message type.
func (c *fakeClient) typed(t *testing.T, msgType string) []*protocol.Message {
	t.Helper()
	var out []*protocol.Message
	for _, m := range c.received(t) {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// decodeLast unmarshals the payload of the newest frame of a type and
// fails the test when none arrived.
func (c *fakeClient) decodeLast(t *testing.T, msgType string, v any) *protocol.Message {
	t.Helper()
	msgs := c.typed(t, msgType)
	require.NotEmpty(t, msgs, "expected a %s frame", msgType)
	m := msgs[len(msgs)-1]
	if v != nil {
		require.NoError(t, json.Unmarshal(m.Data, v))
	}
	return m
}

// settle waits until the actor has processed everything submitted so
// far. Commands are handled in order, so a round trip through the inbox
// proves the earlier ones are done.
func settle(t *testing.T, r *Room) {
	t.Helper()
	_, err := r.Info()
	require.NoError(t, err)
}

// dispatch routes a raw payload the way a session would.
func dispatch(t *testing.T, r *Room, from Client, msgType string, payload any) {
	t.Helper()
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		data = raw
	}
	require.NoError(t, r.Dispatch(from, &protocol.Message{Type: msgType, Data: data}))
}
