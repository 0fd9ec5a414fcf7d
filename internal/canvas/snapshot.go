package canvas

import "time"

// Snapshot is the on-disk document for one room. Elements and layers are
// arrays so insertion order survives the round trip; a load followed by a
// save reproduces the same bytes modulo encoding whitespace.
type Snapshot struct {
	Room           string     `json:"room"`
	Elements       []*Element `json:"elements"`
	Layers         []*Layer   `json:"layers"`
	Camera         Camera     `json:"camera"`
	AdminHash      string     `json:"adminPasswordHash,omitempty"`
	ReadonlyHash   string     `json:"readonlyPasswordHash,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastModifiedAt time.Time  `json:"lastModifiedAt"`
}

// ToSnapshot deep-copies the document for persistence and returns the
// version the copy was taken at, so the save can be acknowledged later
// without masking edits that raced it.
func (s *State) ToSnapshot(room string) (*Snapshot, uint64) {
	snap := &Snapshot{
		Room:           room,
		Elements:       s.Elements(),
		Layers:         s.Layers(),
		Camera:         s.camera,
		AdminHash:      s.adminHash,
		ReadonlyHash:   s.readonlyHash,
		CreatedAt:      s.createdAt,
		LastModifiedAt: s.lastModifiedAt,
	}
	if snap.Elements == nil {
		snap.Elements = []*Element{}
	}
	if snap.Layers == nil {
		snap.Layers = []*Layer{}
	}
	return snap, s.version
}

// FromSnapshot rebuilds room state from a loaded snapshot. Loading is
// tolerant: a snapshot with no layers gets the default layer, elements
// pointing at unknown layers are reassigned to the first layer, and the
// camera is clamped. The restored document starts clean.
func FromSnapshot(snap *Snapshot, limits Limits) *State {
	s := NewState(limits)
	if !snap.CreatedAt.IsZero() {
		s.createdAt = snap.CreatedAt
	}
	if !snap.LastModifiedAt.IsZero() {
		s.lastModifiedAt = snap.LastModifiedAt
	}
	s.adminHash = snap.AdminHash
	s.readonlyHash = snap.ReadonlyHash

	if len(snap.Layers) > 0 {
		s.layers = make([]*Layer, 0, len(snap.Layers))
		seen := make(map[string]bool, len(snap.Layers))
		for _, l := range snap.Layers {
			if l == nil || l.ID == "" || seen[l.ID] {
				continue
			}
			seen[l.ID] = true
			s.layers = append(s.layers, l.Clone())
		}
		if len(s.layers) == 0 {
			s.layers = []*Layer{{ID: DefaultLayerID, Name: "Layer 1", Visible: true}}
		}
	}

	for _, e := range snap.Elements {
		if e == nil || e.ID == "" {
			continue
		}
		if _, dup := s.elements[e.ID]; dup {
			continue
		}
		c := e.Clone()
		if s.layerIndex(c.LayerID) < 0 {
			c.LayerID = s.layers[0].ID
		}
		c.X = clampCoordinate(c.X)
		c.Y = clampCoordinate(c.Y)
		if c.Width <= 0 {
			c.Width = 1
		}
		if c.Height <= 0 {
			c.Height = 1
		}
		s.elements[c.ID] = c
		s.order = append(s.order, c.ID)
	}

	s.camera = snap.Camera
	if s.camera.Zoom == 0 {
		s.camera = DefaultCamera()
	}
	s.camera.Normalize()
	s.rebuildIndex()
	s.dirty = false
	return s
}
