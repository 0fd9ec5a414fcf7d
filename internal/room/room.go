package room

import (
	"errors"

	"go.uber.org/zap"

	"canvaslab/internal/canvas"
	"canvaslab/internal/logging"
	"canvaslab/internal/metrics"
	"canvaslab/internal/protocol"
)

var (
	// ErrRoomClosed reports a command sent to a stopped room.
	ErrRoomClosed = errors.New("room closed")
	// ErrRoomFull rejects joins beyond the per-room session cap.
	ErrRoomFull = errors.New("room is full")
	// ErrNotAuthorized rejects writes from readonly sessions.
	ErrNotAuthorized = errors.New("not authorized to modify this canvas")
)

const inboxSize = 64

// Info is a cheap point-in-time view of a room, answered inline by the
// actor.
type Info struct {
	Protected    bool
	AdminHash    string
	ReadonlyHash string
	UserCount    int
}

// Options configures a room at creation.
type Options struct {
	// MaxSessions caps concurrent clients; zero means unlimited.
	MaxSessions int
	// OnEmpty is invoked from the actor goroutine when the last client
	// detaches. It must not block; schedule work and return.
	OnEmpty func(name string)
	Log     *zap.Logger
}

// Room owns one collaborative document. A single goroutine consumes the
// inbox and is the only code that touches the state, so no lock guards
// the document. Everything outside talks to the room through commands.
type Room struct {
	name  string
	inbox chan command
	done  chan struct{}

	// below are owned by the actor goroutine
	state   *canvas.State
	clients map[string]*attachment // session id -> attachment
	opts    Options
	log     *zap.Logger
}

// New starts the actor for a document and returns its handle.
func New(name string, state *canvas.State, opts Options) *Room {
	log := opts.Log
	if log == nil {
		log = logging.L()
	}
	r := &Room{
		name:    name,
		inbox:   make(chan command, inboxSize),
		done:    make(chan struct{}),
		state:   state,
		clients: make(map[string]*attachment),
		opts:    opts,
		log:     log.With(zap.String("room", name)),
	}
	go r.run()
	return r
}

func (r *Room) Name() string { return r.name }

// submit delivers a command unless the room has stopped.
func (r *Room) submit(cmd command) error {
	select {
	case r.inbox <- cmd:
		return nil
	case <-r.done:
		return ErrRoomClosed
	}
}

// request sends a command carrying a reply channel and waits for the
// answer, bailing out if the room stops first. The reply channel is
// buffered so a racing stop cannot strand the actor.
func request[T any](r *Room, build func(chan T) command) (T, error) {
	reply := make(chan T, 1)
	var zero T
	if err := r.submit(build(reply)); err != nil {
		return zero, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-r.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrRoomClosed
		}
	}
}

// Join attaches a client. On success the actor sends the init frame
// before it picks up any later command, so the client sees the document
// exactly as of its own join.
func (r *Room) Join(c Client, userName, password string) (protocol.Role, error) {
	rep, err := request(r, func(reply chan joinReply) command {
		return cmdJoin{Client: c, UserName: userName, Password: password, Reply: reply}
	})
	if err != nil {
		return "", err
	}
	return rep.Role, rep.Err
}

// Leave detaches a client. Safe to call for clients that never joined
// or were already dropped.
func (r *Room) Leave(c Client) {
	_ = r.submit(cmdLeave{Client: c})
}

// Snapshot asks the actor for a consistent copy of the document.
func (r *Room) Snapshot() (*canvas.Snapshot, uint64, bool, error) {
	rep, err := request(r, func(reply chan snapshotReply) command {
		return cmdSnapshot{Reply: reply}
	})
	if err != nil {
		return nil, 0, false, err
	}
	return rep.Snapshot, rep.Version, rep.Dirty, nil
}

// MarkSaved tells the room its snapshot at version reached disk.
func (r *Room) MarkSaved(version uint64) {
	_ = r.submit(cmdSaved{Version: version})
}

// Info returns the room's protection status and population.
func (r *Room) Info() (Info, error) {
	rep, err := request(r, func(reply chan roomInfo) command {
		return cmdInfo{Reply: reply}
	})
	if err != nil {
		return Info{}, err
	}
	return Info(rep), nil
}

// SetPasswordHashes stores pre-hashed passwords on behalf of the HTTP
// API, which authorizes the caller before invoking this.
func (r *Room) SetPasswordHashes(adminHash, readonlyHash string) error {
	return r.submit(cmdSetPasswords{AdminHash: adminHash, ReadonlyHash: readonlyHash})
}

// Stop shuts the actor down, closing attached sessions, and returns the
// final state of the document so the caller can flush it. After Stop no
// command can mutate the room, which makes the returned snapshot the
// last word.
func (r *Room) Stop() (*canvas.Snapshot, uint64, bool, error) {
	rep, err := request(r, func(reply chan snapshotReply) command {
		return cmdStop{Reply: reply}
	})
	if err != nil {
		return nil, 0, false, err
	}
	return rep.Snapshot, rep.Version, rep.Dirty, nil
}

// Dispatch decodes a session frame into a command and submits it. The
// caller reports decode failures to its own client; unknown types are
// logged and dropped here.
func (r *Room) Dispatch(from Client, m *protocol.Message) error {
	switch m.Type {
	case protocol.TypeAdd:
		var el canvas.Element
		if err := m.DecodeData(&el); err != nil {
			return err
		}
		return r.submit(cmdAdd{From: from, Element: &el})
	case protocol.TypeUpdate:
		var p canvas.ElementPatch
		if err := m.DecodeData(&p); err != nil {
			return err
		}
		return r.submit(cmdUpdate{From: from, Patch: &p})
	case protocol.TypeMove:
		var mv protocol.MoveData
		if err := m.DecodeData(&mv); err != nil {
			return err
		}
		return r.submit(cmdMove{From: from, Patch: &mv.ElementPatch, Action: mv.Action})
	case protocol.TypeDelete:
		var d protocol.DeleteData
		if err := m.DecodeData(&d); err != nil {
			return err
		}
		return r.submit(cmdDelete{From: from, ID: d.ID})
	case protocol.TypeClear:
		return r.submit(cmdClear{From: from})
	case protocol.TypeShapeSelect:
		var sel protocol.ShapeSelectData
		if err := m.DecodeData(&sel); err != nil {
			return err
		}
		return r.submit(cmdShapeSelect{From: from, ID: sel.ID, Action: sel.Action})
	case protocol.TypeShapeRelease:
		var rel protocol.ShapeReleaseData
		if err := m.DecodeData(&rel); err != nil {
			return err
		}
		return r.submit(cmdShapeRelease{From: from, ID: rel.ID})
	case protocol.TypeCursor:
		var cur protocol.CursorData
		if err := m.DecodeData(&cur); err != nil {
			return err
		}
		return r.submit(cmdCursor{From: from, Data: cur})
	case protocol.TypeAddLayer:
		var l canvas.Layer
		if err := m.DecodeData(&l); err != nil {
			return err
		}
		return r.submit(cmdAddLayer{From: from, Layer: &l})
	case protocol.TypeUpdateLayer:
		var p canvas.LayerPatch
		if err := m.DecodeData(&p); err != nil {
			return err
		}
		return r.submit(cmdUpdateLayer{From: from, Patch: &p})
	case protocol.TypeDeleteLayer:
		var d protocol.DeleteLayerData
		if err := m.DecodeData(&d); err != nil {
			return err
		}
		return r.submit(cmdDeleteLayer{From: from, ID: d.ID})
	case protocol.TypeFullSync:
		var fs protocol.FullSyncData
		if err := m.DecodeData(&fs); err != nil {
			return err
		}
		return r.submit(cmdFullSync{From: from, Elements: fs.Elements, Layers: fs.Layers, Camera: fs.Camera})
	case protocol.TypeRoomPasswordChanged:
		var sp protocol.SetPasswordsData
		if err := m.DecodeData(&sp); err != nil {
			return err
		}
		adminHash, err := HashPassword(sp.AdminPassword)
		if err != nil {
			return err
		}
		roHash, err := HashPassword(sp.ReadonlyPassword)
		if err != nil {
			return err
		}
		return r.submit(cmdSetPasswords{From: from, AdminHash: adminHash, ReadonlyHash: roHash})
	case protocol.TypeUserInfo:
		var ui protocol.UserInfoData
		if err := m.DecodeData(&ui); err != nil {
			return err
		}
		return r.submit(cmdUserInfo{From: from, UserName: canvas.SanitizeName(ui.UserName, 100)})
	default:
		r.log.Debug("ignoring unknown message type", zap.String("type", m.Type))
		return nil
	}
}

// run is the actor loop. It exits on cmdStop; commands that raced into
// the inbox after that are abandoned.
func (r *Room) run() {
	for cmd := range r.inbox {
		switch c := cmd.(type) {
		case cmdJoin:
			r.handleJoin(c)
		case cmdLeave:
			r.handleLeave(c)
		case cmdAdd:
			r.handleAdd(c)
		case cmdUpdate:
			r.handleUpdate(c)
		case cmdMove:
			r.handleMove(c)
		case cmdDelete:
			r.handleDelete(c)
		case cmdClear:
			r.handleClear(c)
		case cmdShapeSelect:
			r.handleShapeSelect(c)
		case cmdShapeRelease:
			r.handleShapeRelease(c)
		case cmdAddLayer:
			r.handleAddLayer(c)
		case cmdUpdateLayer:
			r.handleUpdateLayer(c)
		case cmdDeleteLayer:
			r.handleDeleteLayer(c)
		case cmdFullSync:
			r.handleFullSync(c)
		case cmdSetPasswords:
			r.handleSetPasswords(c)
		case cmdCursor:
			r.handleCursor(c)
		case cmdUserInfo:
			r.handleUserInfo(c)
		case cmdSnapshot:
			snap, version := r.state.ToSnapshot(r.name)
			c.Reply <- snapshotReply{Snapshot: snap, Version: version, Dirty: r.state.Dirty()}
		case cmdSaved:
			r.state.MarkSaved(c.Version)
		case cmdInfo:
			c.Reply <- roomInfo{
				Protected:    r.state.Protected(),
				AdminHash:    r.state.AdminHash(),
				ReadonlyHash: r.state.ReadonlyHash(),
				UserCount:    len(r.clients),
			}
		case cmdStop:
			snap, version := r.state.ToSnapshot(r.name)
			c.Reply <- snapshotReply{Snapshot: snap, Version: version, Dirty: r.state.Dirty()}
			r.shutdown()
			return
		}
	}
}

func (r *Room) shutdown() {
	close(r.done)
	for _, a := range r.clients {
		a.client.Shutdown()
	}
	metrics.ActiveSessions.Sub(float64(len(r.clients)))
	r.clients = make(map[string]*attachment)
	r.log.Info("room stopped")
}

func (r *Room) handleJoin(c cmdJoin) {
	if r.opts.MaxSessions > 0 && len(r.clients) >= r.opts.MaxSessions {
		c.Reply <- joinReply{Err: ErrRoomFull}
		metrics.CommandsProcessed.WithLabelValues("join", "rejected").Inc()
		return
	}
	role, err := authorize(r.state.AdminHash(), r.state.ReadonlyHash(), c.Password)
	if err != nil {
		c.Reply <- joinReply{Err: err}
		r.log.Info("join rejected", zap.String("userId", c.Client.UserID()))
		metrics.CommandsProcessed.WithLabelValues("join", "rejected").Inc()
		return
	}
	a := &attachment{
		client:   c.Client,
		role:     role,
		userName: c.UserName,
	}
	r.clients[c.Client.SessionID()] = a
	metrics.ActiveSessions.Inc()
	c.Reply <- joinReply{Role: role}

	init := protocol.InitData{
		Elements:            r.state.Elements(),
		Layers:              r.state.Layers(),
		Camera:              r.state.Camera(),
		IsPasswordProtected: r.state.Protected(),
		UserRole:            role,
		UserCount:           len(r.clients),
	}
	r.sendTo(a, protocol.TypeInit, init)
	if _, still := r.clients[c.Client.SessionID()]; !still {
		return
	}
	r.broadcast(protocol.TypeUserJoined, protocol.UserJoinedData{
		UserCount: len(r.clients),
		Color:     c.Client.Color(),
	}, a, false)
	r.log.Info("user joined",
		zap.String("userId", c.Client.UserID()),
		zap.String("role", string(role)),
		zap.Int("userCount", len(r.clients)))
	metrics.CommandsProcessed.WithLabelValues("join", "ok").Inc()
}

func (r *Room) handleLeave(c cmdLeave) {
	a, ok := r.clients[c.Client.SessionID()]
	if !ok {
		return
	}
	r.detach(a, false)
}

// detach removes a client, announces its departure and released holds,
// and fires the empty callback when the room drains. closeConn is set
// on the slow-consumer path, where the actor initiates the close.
func (r *Room) detach(a *attachment, closeConn bool) {
	delete(r.clients, a.client.SessionID())
	if closeConn {
		a.client.CloseSlow()
	}
	for _, id := range r.state.ReleaseAllHeldBy(a.client.UserID()) {
		r.broadcast(protocol.TypeShapeRelease, protocol.ShapeReleaseData{ID: id}, a, false)
	}
	r.broadcast(protocol.TypeUserLeft, protocol.UserLeftData{UserCount: len(r.clients)}, a, false)
	r.log.Info("user left",
		zap.String("userId", a.client.UserID()),
		zap.Int("userCount", len(r.clients)))
	metrics.ActiveSessions.Dec()
	if len(r.clients) == 0 && r.opts.OnEmpty != nil {
		r.opts.OnEmpty(r.name)
	}
}

func (r *Room) handleAdd(c cmdAdd) {
	a := r.requireWriter(c.From, "add")
	if a == nil {
		return
	}
	if err := r.state.AddElement(c.Element); err != nil {
		r.reject(a, "add", err)
		return
	}
	r.broadcast(protocol.TypeAdd, c.Element, a, false)
	metrics.CommandsProcessed.WithLabelValues("add", "ok").Inc()
}

func (r *Room) handleUpdate(c cmdUpdate) {
	a := r.requireWriter(c.From, "update")
	if a == nil {
		return
	}
	switch err := r.state.PatchElement(c.Patch); {
	case err == nil:
		r.broadcast(protocol.TypeUpdate, c.Patch, a, false)
		metrics.CommandsProcessed.WithLabelValues("update", "ok").Inc()
	case errors.Is(err, canvas.ErrUnknownElement), errors.Is(err, canvas.ErrUnknownLayer):
		metrics.CommandsProcessed.WithLabelValues("update", "ignored").Inc()
	default:
		r.reject(a, "update", err)
	}
}

func (r *Room) handleMove(c cmdMove) {
	a := r.requireWriter(c.From, "move")
	if a == nil {
		return
	}
	switch err := r.state.PatchElement(c.Patch); {
	case err == nil:
		action := c.Action
		if action == "" {
			action = "moving"
		}
		_ = r.state.Hold(c.Patch.ID, canvas.Holder{
			UserID:   a.client.UserID(),
			UserName: a.userName,
			Action:   action,
		})
		r.broadcast(protocol.TypeMove, protocol.MoveData{ElementPatch: *c.Patch, Action: action}, a, false)
		metrics.CommandsProcessed.WithLabelValues("move", "ok").Inc()
	case errors.Is(err, canvas.ErrUnknownElement), errors.Is(err, canvas.ErrUnknownLayer):
		metrics.CommandsProcessed.WithLabelValues("move", "ignored").Inc()
	default:
		r.reject(a, "move", err)
	}
}

func (r *Room) handleDelete(c cmdDelete) {
	a := r.requireWriter(c.From, "delete")
	if a == nil {
		return
	}
	if err := r.state.DeleteElement(c.ID); err != nil {
		metrics.CommandsProcessed.WithLabelValues("delete", "ignored").Inc()
		return
	}
	r.broadcast(protocol.TypeDelete, protocol.DeleteData{ID: c.ID}, a, false)
	metrics.CommandsProcessed.WithLabelValues("delete", "ok").Inc()
}

func (r *Room) handleClear(c cmdClear) {
	a := r.requireWriter(c.From, "clear")
	if a == nil {
		return
	}
	r.state.Clear()
	r.broadcast(protocol.TypeClear, nil, a, false)
	metrics.CommandsProcessed.WithLabelValues("clear", "ok").Inc()
}

func (r *Room) handleShapeSelect(c cmdShapeSelect) {
	a, ok := r.clients[c.From.SessionID()]
	if !ok {
		return
	}
	if err := r.state.Hold(c.ID, canvas.Holder{
		UserID:   a.client.UserID(),
		UserName: a.userName,
		Action:   c.Action,
	}); err != nil {
		metrics.CommandsProcessed.WithLabelValues("shapeSelect", "ignored").Inc()
		return
	}
	r.broadcast(protocol.TypeShapeSelect, protocol.ShapeSelectData{
		ID:     c.ID,
		Action: c.Action,
		Color:  a.client.Color(),
	}, a, false)
	metrics.CommandsProcessed.WithLabelValues("shapeSelect", "ok").Inc()
}

func (r *Room) handleShapeRelease(c cmdShapeRelease) {
	a, ok := r.clients[c.From.SessionID()]
	if !ok {
		return
	}
	if !r.state.Release(c.ID, a.client.UserID()) {
		metrics.CommandsProcessed.WithLabelValues("shapeRelease", "ignored").Inc()
		return
	}
	r.broadcast(protocol.TypeShapeRelease, protocol.ShapeReleaseData{ID: c.ID}, a, false)
	metrics.CommandsProcessed.WithLabelValues("shapeRelease", "ok").Inc()
}

func (r *Room) handleAddLayer(c cmdAddLayer) {
	a := r.requireWriter(c.From, "addLayer")
	if a == nil {
		return
	}
	if err := r.state.AddLayer(c.Layer); err != nil {
		r.reject(a, "addLayer", err)
		return
	}
	r.broadcast(protocol.TypeAddLayer, c.Layer, a, false)
	metrics.CommandsProcessed.WithLabelValues("addLayer", "ok").Inc()
}

func (r *Room) handleUpdateLayer(c cmdUpdateLayer) {
	a := r.requireWriter(c.From, "updateLayer")
	if a == nil {
		return
	}
	switch err := r.state.PatchLayer(c.Patch); {
	case err == nil:
		r.broadcast(protocol.TypeUpdateLayer, c.Patch, a, false)
		metrics.CommandsProcessed.WithLabelValues("updateLayer", "ok").Inc()
	case errors.Is(err, canvas.ErrUnknownLayer):
		metrics.CommandsProcessed.WithLabelValues("updateLayer", "ignored").Inc()
	default:
		r.reject(a, "updateLayer", err)
	}
}

func (r *Room) handleDeleteLayer(c cmdDeleteLayer) {
	a := r.requireWriter(c.From, "deleteLayer")
	if a == nil {
		return
	}
	switch _, err := r.state.DeleteLayer(c.ID); {
	case err == nil:
		r.broadcast(protocol.TypeDeleteLayer, protocol.DeleteLayerData{ID: c.ID}, a, false)
		metrics.CommandsProcessed.WithLabelValues("deleteLayer", "ok").Inc()
	case errors.Is(err, canvas.ErrUnknownLayer):
		metrics.CommandsProcessed.WithLabelValues("deleteLayer", "ignored").Inc()
	default:
		r.reject(a, "deleteLayer", err)
	}
}

func (r *Room) handleFullSync(c cmdFullSync) {
	a := r.requireWriter(c.From, "fullSync")
	if a == nil {
		return
	}
	if err := r.state.ReplaceAll(c.Elements, c.Layers); err != nil {
		r.reject(a, "fullSync", err)
		return
	}
	if c.Camera != nil {
		r.state.SetCamera(*c.Camera)
	}
	cam := r.state.Camera()
	r.broadcast(protocol.TypeFullSync, protocol.FullSyncData{
		Elements: r.state.Elements(),
		Layers:   r.state.Layers(),
		Camera:   &cam,
	}, a, false)
	metrics.CommandsProcessed.WithLabelValues("fullSync", "ok").Inc()
}

func (r *Room) handleSetPasswords(c cmdSetPasswords) {
	var from *attachment
	if c.From != nil {
		a := r.requireWriter(c.From, "setPasswords")
		if a == nil {
			return
		}
		from = a
	}
	r.state.SetPasswords(c.AdminHash, c.ReadonlyHash)
	r.broadcast(protocol.TypeRoomPasswordChanged, protocol.PasswordChangedData{
		IsPasswordProtected: r.state.Protected(),
	}, from, false)
	r.log.Info("room passwords changed", zap.Bool("protected", r.state.Protected()))
	metrics.CommandsProcessed.WithLabelValues("setPasswords", "ok").Inc()
}

func (r *Room) handleCursor(c cmdCursor) {
	a, ok := r.clients[c.From.SessionID()]
	if !ok {
		return
	}
	c.Data.Color = a.client.Color()
	r.broadcast(protocol.TypeCursor, c.Data, a, false)
}

func (r *Room) handleUserInfo(c cmdUserInfo) {
	if a, ok := r.clients[c.From.SessionID()]; ok && c.UserName != "" {
		a.userName = c.UserName
	}
}

// requireWriter resolves the sender's attachment and enforces the admin
// role on mutations. A nil return means the command was already dealt
// with (ignored or rejected).
func (r *Room) requireWriter(from Client, op string) *attachment {
	a, ok := r.clients[from.SessionID()]
	if !ok {
		return nil
	}
	if !a.role.CanWrite() {
		r.reject(a, op, ErrNotAuthorized)
		return nil
	}
	return a
}

// reject sends an error frame back to the offending client only.
func (r *Room) reject(a *attachment, op string, err error) {
	r.sendTo(a, protocol.TypeError, protocol.ErrorData{Message: err.Error()})
	r.log.Debug("command rejected",
		zap.String("op", op),
		zap.String("userId", a.client.UserID()),
		zap.Error(err))
	metrics.CommandsProcessed.WithLabelValues(op, "rejected").Inc()
}

// sendTo delivers a system frame to a single client.
func (r *Room) sendTo(a *attachment, msgType string, payload any) {
	m, err := protocol.Outbound(msgType, payload, "", "")
	if err != nil {
		r.log.Error("encode failed", zap.String("type", msgType), zap.Error(err))
		return
	}
	frame, err := m.Encode()
	if err != nil {
		r.log.Error("encode failed", zap.String("type", msgType), zap.Error(err))
		return
	}
	if !a.client.Send(frame) {
		r.dropSlow(a)
	}
}

// broadcast fans a frame out to every attached client except, unless
// includeSelf, the originator. Frames are encoded once; each client gets
// the same bytes in commit order. Clients whose outbox is full are
// dropped as slow consumers.
func (r *Room) broadcast(msgType string, payload any, from *attachment, includeSelf bool) {
	var userID, userName string
	if from != nil {
		userID = from.client.UserID()
		userName = from.userName
	}
	m, err := protocol.Outbound(msgType, payload, userID, userName)
	if err != nil {
		r.log.Error("encode failed", zap.String("type", msgType), zap.Error(err))
		return
	}
	frame, err := m.Encode()
	if err != nil {
		r.log.Error("encode failed", zap.String("type", msgType), zap.Error(err))
		return
	}
	var slow []*attachment
	sent := 0
	for _, a := range r.clients {
		if !includeSelf && from != nil && a.client.SessionID() == from.client.SessionID() {
			continue
		}
		if a.client.Send(frame) {
			sent++
		} else {
			slow = append(slow, a)
		}
	}
	metrics.FramesBroadcast.WithLabelValues(msgType).Add(float64(sent))
	for _, a := range slow {
		r.dropSlow(a)
	}
}

// dropSlow removes a client that could not keep up. Its session is
// closed; the client resynchronizes with a fresh init on reconnect.
func (r *Room) dropSlow(a *attachment) {
	if _, ok := r.clients[a.client.SessionID()]; !ok {
		return
	}
	r.log.Warn("dropping slow consumer", zap.String("userId", a.client.UserID()))
	r.detach(a, true)
}
