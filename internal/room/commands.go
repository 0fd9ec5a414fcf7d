package room

import (
	"canvaslab/internal/canvas"
	"canvaslab/internal/protocol"
)

// command is a typed message on a room's inbox. Every mutation of room
// state travels as one of these; the actor goroutine is the only
// consumer.
type command interface {
	commandName() string
}

// joinReply carries the outcome of a join back to the session.
type joinReply struct {
	Role protocol.Role
	Err  error
}

type cmdJoin struct {
	Client   Client
	UserName string
	Password string
	Reply    chan joinReply // buffered, the actor never blocks on it
}

type cmdLeave struct {
	Client Client
}

type cmdAdd struct {
	From    Client
	Element *canvas.Element
}

type cmdUpdate struct {
	From  Client
	Patch *canvas.ElementPatch
}

type cmdMove struct {
	From   Client
	Patch  *canvas.ElementPatch
	Action string
}

type cmdDelete struct {
	From Client
	ID   string
}

type cmdClear struct {
	From Client
}

type cmdShapeSelect struct {
	From   Client
	ID     string
	Action string
}

type cmdShapeRelease struct {
	From Client
	ID   string
}

type cmdAddLayer struct {
	From  Client
	Layer *canvas.Layer
}

type cmdUpdateLayer struct {
	From  Client
	Patch *canvas.LayerPatch
}

type cmdDeleteLayer struct {
	From Client
	ID   string
}

type cmdFullSync struct {
	From     Client
	Elements []*canvas.Element
	Layers   []*canvas.Layer
	Camera   *canvas.Camera
}

// cmdSetPasswords carries pre-hashed passwords; hashing happens on the
// caller's goroutine so a bcrypt round never stalls the room.
type cmdSetPasswords struct {
	From         Client // nil when the HTTP API is the originator
	AdminHash    string
	ReadonlyHash string
}

type cmdCursor struct {
	From Client
	Data protocol.CursorData
}

type cmdUserInfo struct {
	From     Client
	UserName string
}

// snapshotReply hands the persistence writer a consistent copy.
type snapshotReply struct {
	Snapshot *canvas.Snapshot
	Version  uint64
	Dirty    bool
}

type cmdSnapshot struct {
	Reply chan snapshotReply
}

// cmdSaved acknowledges a successful snapshot write at a version.
type cmdSaved struct {
	Version uint64
}

// roomInfo answers lightweight queries without copying the document.
type roomInfo struct {
	Protected    bool
	AdminHash    string
	ReadonlyHash string
	UserCount    int
}

type cmdInfo struct {
	Reply chan roomInfo
}

// cmdStop ends the actor loop. The reply carries a final snapshot so
// the caller can flush without racing late edits: once the reply is
// built no further command will ever touch the state.
type cmdStop struct {
	Reply chan snapshotReply
}

func (cmdJoin) commandName() string         { return "join" }
func (cmdLeave) commandName() string        { return "leave" }
func (cmdAdd) commandName() string          { return "add" }
func (cmdUpdate) commandName() string       { return "update" }
func (cmdMove) commandName() string         { return "move" }
func (cmdDelete) commandName() string       { return "delete" }
func (cmdClear) commandName() string        { return "clear" }
func (cmdShapeSelect) commandName() string  { return "shapeSelect" }
func (cmdShapeRelease) commandName() string { return "shapeRelease" }
func (cmdAddLayer) commandName() string     { return "addLayer" }
func (cmdUpdateLayer) commandName() string  { return "updateLayer" }
func (cmdDeleteLayer) commandName() string  { return "deleteLayer" }
func (cmdFullSync) commandName() string     { return "fullSync" }
func (cmdSetPasswords) commandName() string { return "setPasswords" }
func (cmdCursor) commandName() string       { return "cursor" }
func (cmdUserInfo) commandName() string     { return "userInfo" }
func (cmdSnapshot) commandName() string     { return "snapshot" }
func (cmdSaved) commandName() string        { return "saved" }
func (cmdInfo) commandName() string         { return "info" }
func (cmdStop) commandName() string         { return "stop" }
