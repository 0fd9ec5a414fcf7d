// Package protocol defines the JSON frames exchanged over a session
// socket. Every frame is a single text message {"type": ..., "data": ...};
// broadcast frames additionally carry the originating user's id and name
// at the top level.
package protocol

import (
	"encoding/json"
	"errors"

	"canvaslab/internal/canvas"
)

// Message types, client to server.
const (
	TypeJoinRoom     = "joinRoom"
	TypeUserInfo     = "userInfo"
	TypePong         = "pong"
	TypeAdd          = "add"
	TypeUpdate       = "update"
	TypeDelete       = "delete"
	TypeClear        = "clear"
	TypeMove         = "move"
	TypeShapeSelect  = "shapeSelect"
	TypeShapeRelease = "shapeRelease"
	TypeCursor       = "cursor"
	TypeAddLayer     = "addLayer"
	TypeDeleteLayer  = "deleteLayer"
	TypeUpdateLayer  = "updateLayer"
	TypeFullSync     = "fullSync"
)

// Message types, server to client. Mutation types are shared with the
// client side; the rest only ever originate from the server.
const (
	TypeInit                = "init"
	TypeError               = "error"
	TypePing                = "ping"
	TypeUserJoined          = "userJoined"
	TypeUserLeft            = "userLeft"
	TypeRoomPasswordChanged = "roomPasswordChanged"
)

// Role is the authorization tier a session is granted when it joins.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleReadonly Role = "readonly"
)

// CanWrite reports whether the role may mutate room state.
func (r Role) CanWrite() bool { return r == RoleAdmin }

// Message is the wire envelope. Data is kept raw on the inbound path and
// decoded per type; UserID and UserName are stamped by the server on
// broadcasts and ignored on inbound frames.
type Message struct {
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	UserName string          `json:"userName,omitempty"`
}

// ErrMissingType rejects frames without a type tag.
var ErrMissingType = errors.New("message has no type")

// Parse decodes one inbound frame.
func Parse(raw []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m.Type == "" {
		return nil, ErrMissingType
	}
	return &m, nil
}

// DecodeData unmarshals the frame payload into v.
func (m *Message) DecodeData(v any) error {
	if len(m.Data) == 0 {
		return errors.New("message has no data")
	}
	return json.Unmarshal(m.Data, v)
}

// Outbound builds a server frame with a marshaled payload, stamped with
// the originator. Pass empty strings for frames the system originates.
func Outbound(msgType string, payload any, userID, userName string) (*Message, error) {
	m := &Message{Type: msgType, UserID: userID, UserName: userName}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		m.Data = raw
	}
	return m, nil
}

// Encode serializes a frame for the socket.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// JoinRoomData opens a session's room binding. UserID is client-chosen
// and opaque; Password is optional.
type JoinRoomData struct {
	RoomName string `json:"roomName"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Password string `json:"password,omitempty"`
}

// UserInfoData updates the session's display name.
type UserInfoData struct {
	UserName string `json:"userName"`
}

// InitData is the full resynchronization sent to a session right after a
// successful join. Message carries a best-effort notice, for example when
// the previous session was dropped as a slow consumer.
type InitData struct {
	Elements            []*canvas.Element `json:"elements"`
	Layers              []*canvas.Layer   `json:"layers"`
	Camera              canvas.Camera     `json:"camera"`
	IsPasswordProtected bool              `json:"isPasswordProtected"`
	UserRole            Role              `json:"userRole"`
	UserCount           int               `json:"userCount"`
	Message             string            `json:"message,omitempty"`
}

// ErrorData is the payload of an error frame.
type ErrorData struct {
	Message string `json:"message"`
}

// DeleteData identifies the element to remove.
type DeleteData struct {
	ID string `json:"id"`
}

// MoveData is an element patch that additionally advertises what the
// mover is doing, so the hold table can track it.
type MoveData struct {
	canvas.ElementPatch
	Action string `json:"action,omitempty"`
}

// ShapeSelectData claims a soft hold on an element.
type ShapeSelectData struct {
	ID     string `json:"id"`
	Action string `json:"action,omitempty"`
	Color  string `json:"color,omitempty"` // stamped on broadcast
}

// ShapeReleaseData drops a soft hold.
type ShapeReleaseData struct {
	ID string `json:"id"`
}

// CursorData is a pointer position in screen and world coordinates.
// Color is stamped by the server on the way out.
type CursorData struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	WorldX float64 `json:"worldX"`
	WorldY float64 `json:"worldY"`
	Action string  `json:"action,omitempty"`
	Color  string  `json:"color,omitempty"`
}

// DeleteLayerData identifies the layer to remove.
type DeleteLayerData struct {
	ID string `json:"id"`
}

// FullSyncData replaces the whole document. Camera is optional; when
// present it updates the stored default view.
type FullSyncData struct {
	Elements []*canvas.Element `json:"elements"`
	Layers   []*canvas.Layer   `json:"layers"`
	Camera   *canvas.Camera    `json:"camera,omitempty"`
}

// SetPasswordsData is the inbound roomPasswordChanged payload. Plaintext
// passwords are hashed server-side; an empty string clears that slot.
type SetPasswordsData struct {
	AdminPassword    string `json:"adminPassword"`
	ReadonlyPassword string `json:"readonlyPassword"`
}

// PasswordChangedData is the outbound roomPasswordChanged broadcast.
type PasswordChangedData struct {
	IsPasswordProtected bool `json:"isPasswordProtected"`
}

// UserJoinedData announces a new participant to the rest of the room.
type UserJoinedData struct {
	UserCount int    `json:"userCount"`
	Color     string `json:"color,omitempty"`
}

// UserLeftData announces a departure.
type UserLeftData struct {
	UserCount int `json:"userCount"`
}
