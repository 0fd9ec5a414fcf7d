package canvas

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	s := NewState(DefaultLimits())
	require.NoError(t, s.AddLayer(&Layer{ID: "layer_1", Name: "Detail", Visible: true, Locked: true}))
	require.NoError(t, s.AddElement(testElement("a")))
	b := testElement("b")
	b.Shape = "text"
	b.Text = "hello"
	b.FontSize = 14
	b.LayerID = "layer_1"
	require.NoError(t, s.AddElement(b))
	s.SetCamera(Camera{X: 120, Y: -40, Zoom: 2.5})
	s.SetPasswords("adminhash", "rohash")

	snap, version := s.ToSnapshot("blue-fox-12")
	assert.Equal(t, s.Version(), version)
	assert.Equal(t, "blue-fox-12", snap.Room)

	// The snapshot survives JSON encoding, the on-disk format.
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored := FromSnapshot(&decoded, DefaultLimits())
	assert.Equal(t, s.Elements(), restored.Elements())
	assert.Equal(t, s.Layers(), restored.Layers())
	assert.Equal(t, s.Camera(), restored.Camera())
	assert.Equal(t, "adminhash", restored.AdminHash())
	assert.Equal(t, "rohash", restored.ReadonlyHash())
	assert.False(t, restored.Dirty(), "a freshly loaded document is clean")
	assert.WithinDuration(t, s.CreatedAt(), restored.CreatedAt(), time.Second)
}

func TestToSnapshotIsACopy(t *testing.T) {
	s := NewState(DefaultLimits())
	require.NoError(t, s.AddElement(testElement("a")))

	snap, _ := s.ToSnapshot("room")
	snap.Elements[0].X = 9999
	snap.Layers[0].Name = "mangled"

	assert.Equal(t, 10.0, s.Element("a").X)
	assert.Equal(t, "Layer 1", s.Layers()[0].Name)
}

func TestToSnapshotEmptyDocument(t *testing.T) {
	s := NewState(DefaultLimits())
	snap, _ := s.ToSnapshot("room")
	assert.NotNil(t, snap.Elements, "empty document marshals as [], not null")
	assert.Len(t, snap.Layers, 1)
}

func TestFromSnapshotTolerance(t *testing.T) {
	t.Run("no layers gets the default", func(t *testing.T) {
		s := FromSnapshot(&Snapshot{Room: "r"}, DefaultLimits())
		layers := s.Layers()
		require.Len(t, layers, 1)
		assert.Equal(t, DefaultLayerID, layers[0].ID)
	})

	t.Run("duplicate and blank layers are dropped", func(t *testing.T) {
		s := FromSnapshot(&Snapshot{
			Room: "r",
			Layers: []*Layer{
				{ID: "base", Name: "Base", Visible: true},
				{ID: "base", Name: "Copy"},
				{ID: ""},
				nil,
			},
		}, DefaultLimits())
		layers := s.Layers()
		require.Len(t, layers, 1)
		assert.Equal(t, "Base", layers[0].Name)
	})

	t.Run("elements on unknown layers are reassigned", func(t *testing.T) {
		e := testElement("a")
		e.LayerID = "gone"
		s := FromSnapshot(&Snapshot{
			Room:     "r",
			Elements: []*Element{e},
			Layers:   []*Layer{{ID: "base", Name: "Base", Visible: true}},
		}, DefaultLimits())
		assert.Equal(t, "base", s.Element("a").LayerID)
		assert.Equal(t, []string{"a"}, s.ElementsOnLayer("base"))
	})

	t.Run("bad geometry is repaired", func(t *testing.T) {
		e := testElement("a")
		e.X = MaxCoordinate * 5
		e.Width = 0
		e.Height = -3
		s := FromSnapshot(&Snapshot{
			Room:     "r",
			Elements: []*Element{e},
			Layers:   []*Layer{{ID: DefaultLayerID, Visible: true}},
		}, DefaultLimits())
		got := s.Element("a")
		assert.Equal(t, float64(MaxCoordinate), got.X)
		assert.Equal(t, 1.0, got.Width)
		assert.Equal(t, 1.0, got.Height)
	})

	t.Run("duplicate element ids keep the first", func(t *testing.T) {
		first := testElement("a")
		first.Color = "#111111"
		second := testElement("a")
		second.Color = "#222222"
		s := FromSnapshot(&Snapshot{
			Room:     "r",
			Elements: []*Element{first, second},
			Layers:   []*Layer{{ID: DefaultLayerID, Visible: true}},
		}, DefaultLimits())
		assert.Equal(t, 1, s.ElementCount())
		assert.Equal(t, "#111111", s.Element("a").Color)
	})

	t.Run("zero camera becomes the default", func(t *testing.T) {
		s := FromSnapshot(&Snapshot{Room: "r"}, DefaultLimits())
		assert.Equal(t, DefaultCamera(), s.Camera())
	})

	t.Run("wild camera is clamped", func(t *testing.T) {
		s := FromSnapshot(&Snapshot{Room: "r", Camera: Camera{Zoom: 80}}, DefaultLimits())
		assert.Equal(t, MaxZoom, s.Camera().Zoom)
	})
}
