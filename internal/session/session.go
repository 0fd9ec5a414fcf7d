// Package session owns one WebSocket connection per instance: framing,
// heartbeat, rate budgets and the room binding. A session decodes
// nothing canvas-specific beyond the join handshake; everything else is
// handed to its room, which replies through the bounded outbox.
package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"canvaslab/internal/canvas"
	"canvaslab/internal/logging"
	"canvaslab/internal/protocol"
	"canvaslab/internal/room"
)

const (
	// outboxSize bounds frames queued toward one client. Overflow marks
	// the client a slow consumer and the room drops it.
	outboxSize = 256
	// maxFrameBytes closes the socket on oversized inbound frames.
	maxFrameBytes = 1 << 20
	// missedPongLimit is how many heartbeat intervals may pass without
	// a pong before the session is disconnected.
	missedPongLimit = 3
	// writeTimeout bounds every socket write.
	writeTimeout = 10 * time.Second
	// preJoinReadTimeout bounds how long a fresh connection may idle
	// before its first successful join.
	preJoinReadTimeout = 60 * time.Second
	// commandsPerSecond and commandBurst budget inbound frames.
	commandsPerSecond = 30
	commandBurst      = 10
	// cursorInterval coalesces cursor frames before forwarding.
	cursorInterval = 50 * time.Millisecond

	maxUserNameLen = 100
)

// pingInterval is the application-level heartbeat cadence. A var so
// tests can shorten it.
var pingInterval = 50 * time.Second

// Session pairs a socket with at most one room binding.
type Session struct {
	id   string
	conn *websocket.Conn
	reg  *room.Registry
	log  *zap.Logger

	userID string
	color  string
	bound  *room.Room

	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	closeCode int
	closeText string

	lastPong  atomic.Int64
	limiter   *rate.Limiter
	cursorLim *rate.Limiter
}

// New wraps an upgraded connection. Run must be called to start the
// pumps.
func New(conn *websocket.Conn, reg *room.Registry, log *zap.Logger) *Session {
	if log == nil {
		log = logging.L()
	}
	s := &Session{
		id:        uuid.NewString(),
		conn:      conn,
		reg:       reg,
		log:       log,
		out:       make(chan []byte, outboxSize),
		closed:    make(chan struct{}),
		limiter:   rate.NewLimiter(commandsPerSecond, commandBurst),
		cursorLim: rate.NewLimiter(rate.Every(cursorInterval), 1),
	}
	s.lastPong.Store(time.Now().UnixNano())
	return s
}

// SessionID implements room.Client.
func (s *Session) SessionID() string { return s.id }

// UserID implements room.Client. Empty until the join handshake.
func (s *Session) UserID() string { return s.userID }

// Color implements room.Client.
func (s *Session) Color() string { return s.color }

// Send implements room.Client: non-blocking enqueue into the outbox.
// A frame for a session that is already closing is dropped quietly.
func (s *Session) Send(frame []byte) bool {
	select {
	case s.out <- frame:
		return true
	default:
	}
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// CloseSlow implements room.Client for the outbox overflow path.
func (s *Session) CloseSlow() {
	s.close(websocket.ClosePolicyViolation, "slow consumer")
}

// Shutdown implements room.Client for room and server stop.
func (s *Session) Shutdown() {
	s.close(websocket.CloseNormalClosure, "room closed")
}

// close records the closure reason once and signals the write pump,
// which owns the socket teardown. Safe from any goroutine.
func (s *Session) close(code int, text string) {
	s.closeOnce.Do(func() {
		s.closeCode = code
		s.closeText = text
		close(s.closed)
	})
}

// Run services the connection until it dies, then detaches from the
// room. It blocks for the lifetime of the socket.
func (s *Session) Run() {
	s.conn.SetReadLimit(maxFrameBytes)
	s.conn.SetReadDeadline(time.Now().Add(preJoinReadTimeout))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writePump()
	}()

	s.readPump()
	if s.bound != nil {
		s.bound.Leave(s)
	}
	s.close(websocket.CloseNormalClosure, "")
	wg.Wait()
	s.conn.Close()
}

func (s *Session) readPump() {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("socket read ended", zap.String("session", s.id), zap.Error(err))
			}
			return
		}
		if !s.limiter.Allow() {
			s.log.Debug("message budget exceeded, dropping frame",
				zap.String("session", s.id), zap.String("userId", s.userID))
			continue
		}
		msg, err := protocol.Parse(raw)
		if err != nil {
			s.close(websocket.CloseProtocolError, "protocol error")
			return
		}
		if !s.route(msg) {
			return
		}
	}
}

// route handles one inbound frame. It returns false when the session
// must stop reading.
func (s *Session) route(m *protocol.Message) bool {
	switch m.Type {
	case protocol.TypePong:
		s.lastPong.Store(time.Now().UnixNano())
		return true
	case protocol.TypeJoinRoom:
		s.handleJoin(m)
		return true
	default:
		if s.bound == nil {
			s.sendError("join a room first")
			return true
		}
		if m.Type == protocol.TypeCursor && !s.cursorLim.Allow() {
			return true
		}
		if err := s.bound.Dispatch(s, m); err != nil {
			if errors.Is(err, room.ErrRoomClosed) {
				s.close(websocket.CloseGoingAway, "room closed")
				return false
			}
			s.sendError("invalid " + m.Type + " payload")
		}
		return true
	}
}

// handleJoin performs the joinRoom handshake. A rejected join keeps the
// socket open so the client can retry with another password or name. A
// join that races the room's eviction is retried against the revived
// room once.
func (s *Session) handleJoin(m *protocol.Message) {
	if s.bound != nil {
		s.sendError("already joined a room")
		return
	}
	var jd protocol.JoinRoomData
	if err := m.DecodeData(&jd); err != nil {
		s.sendError("invalid joinRoom payload")
		return
	}
	userName := canvas.SanitizeName(jd.UserName, maxUserNameLen)
	if userName == "" {
		userName = "Anonymous"
	}
	if jd.UserID == "" {
		jd.UserID = uuid.NewString()
	}
	s.userID = jd.UserID
	s.color = ColorFor(jd.UserID)

	for attempt := 0; attempt < 2; attempt++ {
		r, err := s.reg.GetOrCreate(jd.RoomName)
		if err != nil {
			s.sendError(joinErrorText(err))
			return
		}
		_, err = r.Join(s, userName, jd.Password)
		if errors.Is(err, room.ErrRoomClosed) {
			continue
		}
		if err != nil {
			s.sendError(err.Error())
			return
		}
		s.bound = r
		s.conn.SetReadDeadline(time.Time{})
		s.log.Info("session joined room",
			zap.String("session", s.id),
			zap.String("room", r.Name()),
			zap.String("userId", s.userID))
		return
	}
	s.sendError("room is restarting, try again")
}

func joinErrorText(err error) string {
	switch {
	case errors.Is(err, room.ErrInvalidRoomName):
		return "invalid room name"
	case errors.Is(err, room.ErrTooManyRooms):
		return "server is at room capacity"
	default:
		return "could not open room"
	}
}

func (s *Session) sendError(text string) {
	m, err := protocol.Outbound(protocol.TypeError, protocol.ErrorData{Message: text}, "", "")
	if err != nil {
		return
	}
	frame, err := m.Encode()
	if err != nil {
		return
	}
	s.Send(frame)
}

// writePump owns all socket writes: queued frames, heartbeat pings and
// the final close frame. It exits when the session closes or a write
// fails.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case frame := <-s.out:
			if !s.write(websocket.TextMessage, frame) {
				return
			}
		case <-ticker.C:
			if s.pongOverdue() {
				s.close(websocket.CloseGoingAway, "heartbeat timeout")
				s.log.Info("closing unresponsive session",
					zap.String("session", s.id), zap.String("userId", s.userID))
				s.finishClose()
				return
			}
			ping, err := pingFrame()
			if err != nil || !s.write(websocket.TextMessage, ping) {
				return
			}
		case <-s.closed:
			s.finishClose()
			return
		}
	}
}

func (s *Session) write(messageType int, payload []byte) bool {
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteMessage(messageType, payload); err != nil {
		s.close(websocket.CloseAbnormalClosure, "write failed")
		s.conn.Close()
		return false
	}
	return true
}

// finishClose sends the recorded close frame best-effort and tears the
// socket down, which also unblocks the read pump.
func (s *Session) finishClose() {
	s.close(websocket.CloseNormalClosure, "")
	s.conn.SetWriteDeadline(time.Now().Add(time.Second))
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(s.closeCode, s.closeText))
	s.conn.Close()
}

func (s *Session) pongOverdue() bool {
	last := time.Unix(0, s.lastPong.Load())
	return time.Since(last) > missedPongLimit*pingInterval
}

func pingFrame() ([]byte, error) {
	m, err := protocol.Outbound(protocol.TypePing, nil, "", "")
	if err != nil {
		return nil, err
	}
	return m.Encode()
}
