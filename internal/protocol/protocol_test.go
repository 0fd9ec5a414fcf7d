package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvaslab/internal/canvas"
)

func TestParse(t *testing.T) {
	t.Run("valid frame", func(t *testing.T) {
		m, err := Parse([]byte(`{"type":"add","data":{"id":"e1"}}`))
		require.NoError(t, err)
		assert.Equal(t, TypeAdd, m.Type)
		assert.JSONEq(t, `{"id":"e1"}`, string(m.Data))
	})

	t.Run("missing type", func(t *testing.T) {
		_, err := Parse([]byte(`{"data":{}}`))
		assert.ErrorIs(t, err, ErrMissingType)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := Parse([]byte(`nope`))
		assert.Error(t, err)
	})

	t.Run("inbound identity stamps are ignored by decode", func(t *testing.T) {
		m, err := Parse([]byte(`{"type":"cursor","userId":"spoofed","data":{"x":1,"y":2}}`))
		require.NoError(t, err)
		var c CursorData
		require.NoError(t, m.DecodeData(&c))
		assert.Equal(t, 1.0, c.X)
	})
}

func TestDecodeData(t *testing.T) {
	m := &Message{Type: TypeDelete}
	var d DeleteData
	assert.Error(t, m.DecodeData(&d), "empty data is an error")

	m.Data = json.RawMessage(`{"id":"e1"}`)
	require.NoError(t, m.DecodeData(&d))
	assert.Equal(t, "e1", d.ID)
}

func TestOutboundEncode(t *testing.T) {
	t.Run("stamps the originator", func(t *testing.T) {
		m, err := Outbound(TypeDelete, DeleteData{ID: "e1"}, "u1", "Alice")
		require.NoError(t, err)
		frame, err := m.Encode()
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"delete","data":{"id":"e1"},"userId":"u1","userName":"Alice"}`, string(frame))
	})

	t.Run("system frames omit the stamp", func(t *testing.T) {
		m, err := Outbound(TypePing, nil, "", "")
		require.NoError(t, err)
		frame, err := m.Encode()
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"ping"}`, string(frame))
	})
}

func TestInitDataShape(t *testing.T) {
	init := InitData{
		Elements:            []*canvas.Element{},
		Layers:              []*canvas.Layer{{ID: "layer_0", Name: "Layer 1", Visible: true}},
		Camera:              canvas.DefaultCamera(),
		IsPasswordProtected: true,
		UserRole:            RoleReadonly,
		UserCount:           3,
	}
	raw, err := json.Marshal(init)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{"elements", "layers", "camera", "isPasswordProtected", "userRole", "userCount"} {
		assert.Contains(t, decoded, key)
	}
	assert.NotContains(t, decoded, "message", "notice is omitted when empty")
	assert.Equal(t, "readonly", decoded["userRole"])
}

func TestMoveDataFlattensPatch(t *testing.T) {
	raw := []byte(`{"id":"e1","x":10,"action":"resizing"}`)
	var mv MoveData
	require.NoError(t, json.Unmarshal(raw, &mv))
	assert.Equal(t, "e1", mv.ID)
	require.NotNil(t, mv.X)
	assert.Equal(t, 10.0, *mv.X)
	assert.Equal(t, "resizing", mv.Action)
	assert.Nil(t, mv.Y)
}

func TestRoleCanWrite(t *testing.T) {
	assert.True(t, RoleAdmin.CanWrite())
	assert.False(t, RoleReadonly.CanWrite())
	assert.False(t, Role("").CanWrite())
}
