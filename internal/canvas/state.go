package canvas

import (
	"errors"
	"time"
)

// State mutation errors surfaced to clients as error frames.
var (
	ErrDuplicateElement = errors.New("element id already exists")
	ErrUnknownElement   = errors.New("element not found")
	ErrUnknownLayer     = errors.New("layer not found")
	ErrDuplicateLayer   = errors.New("layer id already exists")
	ErrLastLayer        = errors.New("cannot delete the last layer")
	ErrTooManyElements  = errors.New("element limit reached")
	ErrTooManyLayers    = errors.New("layer limit reached")
)

// Limits caps per-room state growth.
type Limits struct {
	MaxElements int
	MaxLayers   int
}

// DefaultLimits mirrors the server defaults.
func DefaultLimits() Limits {
	return Limits{MaxElements: 10000, MaxLayers: 100}
}

// DefaultLayerID is the id of the layer a fresh room starts with.
const DefaultLayerID = "layer_0"

// State is the full document of one room: elements in insertion order,
// layers, the shared camera, transient holds and the password hashes.
// It is owned by a single room goroutine and is not safe for concurrent
// use; everything else sees deep copies via ToSnapshot.
type State struct {
	elements map[string]*Element
	order    []string // element ids, insertion order
	layers   []*Layer
	byLayer  map[string][]string // layer id -> element ids, insertion order
	camera   Camera
	holders  map[string]Holder // element id -> holder

	adminHash    string
	readonlyHash string

	createdAt      time.Time
	lastModifiedAt time.Time

	limits  Limits
	dirty   bool
	version uint64
}

// NewState builds an empty document with one default layer.
func NewState(limits Limits) *State {
	now := time.Now().UTC()
	s := &State{
		elements:       make(map[string]*Element),
		byLayer:        make(map[string][]string),
		holders:        make(map[string]Holder),
		camera:         DefaultCamera(),
		createdAt:      now,
		lastModifiedAt: now,
		limits:         limits,
	}
	s.layers = []*Layer{{ID: DefaultLayerID, Name: "Layer 1", Visible: true}}
	return s
}

// Version is a monotonic change counter used to acknowledge snapshot
// writes without losing edits that raced the write.
func (s *State) Version() uint64 { return s.version }

// Dirty reports whether the document changed since the last acknowledged
// snapshot.
func (s *State) Dirty() bool { return s.dirty }

// MarkSaved clears the dirty flag, but only when no edit landed after the
// snapshot at version was taken.
func (s *State) MarkSaved(version uint64) {
	if s.version == version {
		s.dirty = false
	}
}

func (s *State) touch() {
	s.dirty = true
	s.version++
	s.lastModifiedAt = time.Now().UTC()
}

func (s *State) CreatedAt() time.Time      { return s.createdAt }
func (s *State) LastModifiedAt() time.Time { return s.lastModifiedAt }

// ElementCount returns the number of elements.
func (s *State) ElementCount() int { return len(s.order) }

// Element returns the live element for id, or nil.
func (s *State) Element(id string) *Element { return s.elements[id] }

// Elements returns the elements in insertion order as a fresh slice of
// copies.
func (s *State) Elements() []*Element {
	out := make([]*Element, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.elements[id].Clone())
	}
	return out
}

// Layers returns copies of the layers in order.
func (s *State) Layers() []*Layer {
	out := make([]*Layer, 0, len(s.layers))
	for _, l := range s.layers {
		out = append(out, l.Clone())
	}
	return out
}

// ElementsOnLayer returns the ids of the elements on the given layer in
// insertion order.
func (s *State) ElementsOnLayer(layerID string) []string {
	ids := s.byLayer[layerID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Camera returns the shared viewport.
func (s *State) Camera() Camera { return s.camera }

// SetCamera clamps and stores the shared viewport.
func (s *State) SetCamera(c Camera) {
	c.Normalize()
	s.camera = c
	s.touch()
}

// AddElement validates, sanitizes and inserts a new element. An empty or
// unknown layerId falls back to the first layer.
func (s *State) AddElement(e *Element) error {
	if s.limits.MaxElements > 0 && len(s.order) >= s.limits.MaxElements {
		return ErrTooManyElements
	}
	SanitizeElement(e)
	if err := ValidateElement(e); err != nil {
		return err
	}
	if _, ok := s.elements[e.ID]; ok {
		return ErrDuplicateElement
	}
	if s.layerIndex(e.LayerID) < 0 {
		e.LayerID = s.layers[0].ID
	}
	e.X = clampCoordinate(e.X)
	e.Y = clampCoordinate(e.Y)
	s.elements[e.ID] = e
	s.order = append(s.order, e.ID)
	s.byLayer[e.LayerID] = append(s.byLayer[e.LayerID], e.ID)
	s.touch()
	return nil
}

// PatchElement merges a partial update into an existing element. The
// merged result is re-validated; on failure the element is rolled back
// untouched.
func (s *State) PatchElement(p *ElementPatch) error {
	e, ok := s.elements[p.ID]
	if !ok {
		return ErrUnknownElement
	}
	SanitizePatch(p)
	merged := e.Clone()
	layerChanged := p.apply(merged)
	if layerChanged && s.layerIndex(merged.LayerID) < 0 {
		return ErrUnknownLayer
	}
	if err := ValidateElement(merged); err != nil {
		return err
	}
	*e = *merged
	if layerChanged {
		s.rebuildIndex()
	}
	s.touch()
	return nil
}

// DeleteElement removes an element and any hold on it.
func (s *State) DeleteElement(id string) error {
	e, ok := s.elements[id]
	if !ok {
		return ErrUnknownElement
	}
	delete(s.elements, id)
	delete(s.holders, id)
	s.order = removeID(s.order, id)
	s.byLayer[e.LayerID] = removeID(s.byLayer[e.LayerID], id)
	s.touch()
	return nil
}

// Clear removes every element but keeps layers, camera and passwords.
func (s *State) Clear() {
	s.elements = make(map[string]*Element)
	s.order = nil
	s.byLayer = make(map[string][]string)
	s.holders = make(map[string]Holder)
	s.touch()
}

// AddLayer validates and appends a new layer.
func (s *State) AddLayer(l *Layer) error {
	if s.limits.MaxLayers > 0 && len(s.layers) >= s.limits.MaxLayers {
		return ErrTooManyLayers
	}
	l.Name = SanitizeName(l.Name, MaxLayerName)
	if err := ValidateLayer(l); err != nil {
		return err
	}
	if s.layerIndex(l.ID) >= 0 {
		return ErrDuplicateLayer
	}
	s.layers = append(s.layers, l)
	s.touch()
	return nil
}

// PatchLayer merges a partial update into an existing layer.
func (s *State) PatchLayer(p *LayerPatch) error {
	i := s.layerIndex(p.ID)
	if i < 0 {
		return ErrUnknownLayer
	}
	if p.Name != nil {
		n := SanitizeName(*p.Name, MaxLayerName)
		p.Name = &n
	}
	merged := s.layers[i].Clone()
	p.apply(merged)
	if err := ValidateLayer(merged); err != nil {
		return err
	}
	s.layers[i] = merged
	s.touch()
	return nil
}

// DeleteLayer removes a layer and cascades to its elements. The last
// remaining layer cannot be deleted. Returns the ids of the removed
// elements.
func (s *State) DeleteLayer(id string) ([]string, error) {
	i := s.layerIndex(id)
	if i < 0 {
		return nil, ErrUnknownLayer
	}
	if len(s.layers) == 1 {
		return nil, ErrLastLayer
	}
	removed := s.byLayer[id]
	for _, eid := range removed {
		delete(s.elements, eid)
		delete(s.holders, eid)
		s.order = removeID(s.order, eid)
	}
	delete(s.byLayer, id)
	s.layers = append(s.layers[:i], s.layers[i+1:]...)
	s.touch()
	return removed, nil
}

// ReplaceAll swaps in a complete new element and layer set atomically.
// It is the client-side undo path, so it normalizes rather than rejects:
// names are sanitized, coordinates clamped, elements on unknown layers
// reassigned to the first layer, and entries without an id (or with a
// duplicate one) skipped. Only structural failures reject the whole sync
// and leave the previous document untouched. Holds on elements that no
// longer exist are dropped.
func (s *State) ReplaceAll(elements []*Element, layers []*Layer) error {
	if s.limits.MaxElements > 0 && len(elements) > s.limits.MaxElements {
		return ErrTooManyElements
	}
	if s.limits.MaxLayers > 0 && len(layers) > s.limits.MaxLayers {
		return ErrTooManyLayers
	}
	nextLayers := make([]*Layer, 0, len(layers))
	layerIDs := make(map[string]bool, len(layers))
	for _, l := range layers {
		if l == nil || l.ID == "" || layerIDs[l.ID] {
			continue
		}
		c := l.Clone()
		c.Name = SanitizeName(c.Name, MaxLayerName)
		layerIDs[c.ID] = true
		nextLayers = append(nextLayers, c)
	}
	if len(nextLayers) == 0 {
		return ErrUnknownLayer
	}
	elems := make(map[string]*Element, len(elements))
	order := make([]string, 0, len(elements))
	for _, e := range elements {
		if e == nil || e.ID == "" {
			continue
		}
		if _, dup := elems[e.ID]; dup {
			continue
		}
		c := e.Clone()
		SanitizeElement(c)
		if !layerIDs[c.LayerID] {
			c.LayerID = nextLayers[0].ID
		}
		c.X = clampCoordinate(c.X)
		c.Y = clampCoordinate(c.Y)
		elems[c.ID] = c
		order = append(order, c.ID)
	}
	s.elements = elems
	s.order = order
	s.layers = nextLayers
	for id := range s.holders {
		if _, ok := s.elements[id]; !ok {
			delete(s.holders, id)
		}
	}
	s.rebuildIndex()
	s.touch()
	return nil
}

// Hold marks an element as held. A later hold on the same element
// overwrites the previous one; holds are advisory.
func (s *State) Hold(elementID string, h Holder) error {
	if _, ok := s.elements[elementID]; !ok {
		return ErrUnknownElement
	}
	h.AcquiredAt = time.Now()
	s.holders[elementID] = h
	return nil
}

// Release drops a hold, but only for the user who owns it.
func (s *State) Release(elementID, userID string) bool {
	h, ok := s.holders[elementID]
	if !ok || h.UserID != userID {
		return false
	}
	delete(s.holders, elementID)
	return true
}

// ReleaseAllHeldBy force-releases every hold owned by a user and returns
// the affected element ids. Used when a session disconnects.
func (s *State) ReleaseAllHeldBy(userID string) []string {
	var released []string
	for id, h := range s.holders {
		if h.UserID == userID {
			delete(s.holders, id)
			released = append(released, id)
		}
	}
	return released
}

// HolderOf returns the current hold on an element, if any.
func (s *State) HolderOf(elementID string) (Holder, bool) {
	h, ok := s.holders[elementID]
	return h, ok
}

// Holds returns a copy of the hold table.
func (s *State) Holds() map[string]Holder {
	out := make(map[string]Holder, len(s.holders))
	for id, h := range s.holders {
		out[id] = h
	}
	return out
}

// SetPasswords stores bcrypt hashes. Empty strings clear the slot.
func (s *State) SetPasswords(adminHash, readonlyHash string) {
	s.adminHash = adminHash
	s.readonlyHash = readonlyHash
	s.touch()
}

func (s *State) AdminHash() string    { return s.adminHash }
func (s *State) ReadonlyHash() string { return s.readonlyHash }

// Protected reports whether any password is set on the room.
func (s *State) Protected() bool {
	return s.adminHash != "" || s.readonlyHash != ""
}

func (s *State) layerIndex(id string) int {
	for i, l := range s.layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// rebuildIndex recomputes the layer index from element insertion order.
func (s *State) rebuildIndex() {
	s.byLayer = make(map[string][]string, len(s.layers))
	for _, id := range s.order {
		e := s.elements[id]
		s.byLayer[e.LayerID] = append(s.byLayer[e.LayerID], id)
	}
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
