package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"canvaslab/internal/canvas"
)

func newTestStore(t *testing.T) (*Store, string, string) {
	t.Helper()
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	uploadsDir := filepath.Join(dir, "uploads")
	st, err := New(dataDir, uploadsDir, zap.NewNop())
	require.NoError(t, err)
	return st, dataDir, uploadsDir
}

func sampleSnapshot(room string, modified time.Time) *canvas.Snapshot {
	return &canvas.Snapshot{
		Room: room,
		Elements: []*canvas.Element{{
			ID:      "e1",
			Shape:   "rectangle",
			X:       10,
			Y:       20,
			Width:   100,
			Height:  50,
			Color:   "#336699",
			LayerID: canvas.DefaultLayerID,
		}},
		Layers:         []*canvas.Layer{{ID: canvas.DefaultLayerID, Name: "Layer 1", Visible: true}},
		Camera:         canvas.Camera{X: 1, Y: 2, Zoom: 1.5},
		AdminHash:      "$2a$10$fakehashfakehashfakehash",
		CreatedAt:      modified.Add(-time.Hour),
		LastModifiedAt: modified,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st, dataDir, _ := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, st.Save(sampleSnapshot("alpha-room", now)))

	got, err := st.Load("alpha-room")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alpha-room", got.Room)
	require.Len(t, got.Elements, 1)
	assert.Equal(t, "e1", got.Elements[0].ID)
	assert.Equal(t, 1.5, got.Camera.Zoom)
	assert.Equal(t, "$2a$10$fakehashfakehashfakehash", got.AdminHash)
	assert.True(t, got.LastModifiedAt.Equal(now))

	// The atomic write leaves nothing behind but the snapshot itself.
	dirents, err := os.ReadDir(dataDir)
	require.NoError(t, err)
	require.Len(t, dirents, 1)
	assert.Equal(t, "alpha-room.json", dirents[0].Name())
}

func TestSaveOverwrites(t *testing.T) {
	st, _, _ := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, st.Save(sampleSnapshot("alpha-room", now)))
	second := sampleSnapshot("alpha-room", now)
	second.Elements = append(second.Elements, &canvas.Element{
		ID: "e2", Shape: "circle", X: 0, Y: 0, Width: 5, Height: 5, LayerID: canvas.DefaultLayerID,
	})
	require.NoError(t, st.Save(second))

	got, err := st.Load("alpha-room")
	require.NoError(t, err)
	assert.Len(t, got.Elements, 2)
}

func TestLoadMissingIsNotAnError(t *testing.T) {
	st, _, _ := newTestStore(t)

	got, err := st.Load("never-saved")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadQuarantinesCorruptSnapshot(t *testing.T) {
	st, dataDir, _ := newTestStore(t)
	path := filepath.Join(dataDir, "mangled.json")
	require.NoError(t, os.WriteFile(path, []byte("{ this is not json"), 0o644))

	got, err := st.Load("mangled")
	require.NoError(t, err, "corruption must not take the room down")
	assert.Nil(t, got, "the room starts fresh instead")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "the bad file is moved aside")
	aside, statErr := os.Stat(path + ".corrupt")
	require.NoError(t, statErr)
	assert.Greater(t, aside.Size(), int64(0))
}

func TestExistsAndDelete(t *testing.T) {
	st, _, uploadsDir := newTestStore(t)
	now := time.Now().UTC()

	assert.False(t, st.Exists("alpha-room"))
	require.NoError(t, st.Save(sampleSnapshot("alpha-room", now)))
	assert.True(t, st.Exists("alpha-room"))

	_, err := st.SaveUpload("alpha-room", ".png", strings.NewReader("pngbytes"))
	require.NoError(t, err)

	require.NoError(t, st.Delete("alpha-room"))
	assert.False(t, st.Exists("alpha-room"))
	_, err = os.Stat(filepath.Join(uploadsDir, "alpha-room"))
	assert.True(t, os.IsNotExist(err), "uploads go with the snapshot")

	// Deleting a room that has nothing on disk is a no-op.
	assert.NoError(t, st.Delete("alpha-room"))
}

func TestListReportsSnapshotAges(t *testing.T) {
	st, dataDir, _ := newTestStore(t)
	old := time.Now().UTC().Add(-40 * 24 * time.Hour).Truncate(time.Second)
	fresh := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, st.Save(sampleSnapshot("old-room", old)))
	require.NoError(t, st.Save(sampleSnapshot("fresh-room", fresh)))

	// Files the sweep must not trip over.
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "leftover.json.corrupt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "partial.12345.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "garbled.json"), []byte("not json"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dataDir, "subdir.json"), 0o755))

	entries, err := st.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	ages := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		ages[e.Name] = e.LastModifiedAt
	}
	assert.True(t, ages["old-room"].Equal(old))
	assert.True(t, ages["fresh-room"].Equal(fresh))
}

func TestSaveUpload(t *testing.T) {
	st, _, uploadsDir := newTestStore(t)

	name, err := st.SaveUpload("alpha-room", ".png", strings.NewReader("imagebytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".png"))
	assert.NotContains(t, name, "/")

	data, err := os.ReadFile(filepath.Join(uploadsDir, "alpha-room", name))
	require.NoError(t, err)
	assert.Equal(t, "imagebytes", string(data))

	// A second upload of the same content gets its own name.
	name2, err := st.SaveUpload("alpha-room", ".png", strings.NewReader("imagebytes"))
	require.NoError(t, err)
	assert.NotEqual(t, name, name2)

	dirents, err := os.ReadDir(filepath.Join(uploadsDir, "alpha-room"))
	require.NoError(t, err)
	assert.Len(t, dirents, 2, "no temp files left behind")
}

func TestUploadPath(t *testing.T) {
	st, _, uploadsDir := newTestStore(t)

	path, err := st.UploadPath("alpha-room", "abc.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(uploadsDir, "alpha-room", "abc.png"), path)

	for _, bad := range []string{"", "../secret.png", "a/b.png", `a\b.png`, "..", "sneaky..png"} {
		_, err := st.UploadPath("alpha-room", bad)
		assert.ErrorIs(t, err, ErrBadFilename, "filename %q", bad)
	}
}
