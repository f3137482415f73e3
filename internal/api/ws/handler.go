package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/playground/internal/domain/bundle"
	"github.com/GriffinCanCode/playground/internal/domain/workspace"
	"github.com/GriffinCanCode/playground/internal/infrastructure/logging"
	"github.com/GriffinCanCode/playground/internal/preview/bridge"
	"github.com/GriffinCanCode/playground/internal/preview/sandbox"
	"github.com/GriffinCanCode/playground/internal/shared/id"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 1 << 20
	cmdTimeout = 5 * time.Second
)

var errUnknownType = errors.New("unknown message type")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Editors are served from anywhere in dev
	},
}

// Client message types.
const (
	TypeSource        = "source"
	TypeToggleInspect = "toggle_inspect"
	TypeInput         = "input"
	TypePing          = "ping"
)

// Server-only frame types; the rest mirror bridge.EventType.
const (
	TypeSystem = "system"
	TypePong   = "pong"
	TypeError  = "error"
)

// ClientMessage is a frame sent by the editor.
type ClientMessage struct {
	Type    string `json:"type"`
	Kind    string `json:"kind,omitempty"` // buffer kind for source, input kind for input
	Content string `json:"content,omitempty"`
	Target  string `json:"target,omitempty"`
}

// ServerMessage is a frame pushed to the editor.
type ServerMessage struct {
	Type       string `json:"type"`
	Message    string `json:"message,omitempty"`
	Generation uint64 `json:"generation"`
	Selection  any    `json:"selection,omitempty"`
	Inspecting *bool  `json:"inspecting,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// Recorder counts stream traffic. monitoring.Metrics satisfies it.
type Recorder interface {
	RecordWSMessage(direction, msgType string)
	IncWSConnections()
	DecWSConnections()
}

type nopRecorder struct{}

func (nopRecorder) RecordWSMessage(string, string) {}
func (nopRecorder) IncWSConnections()              {}
func (nopRecorder) DecWSConnections()              {}

// Handler manages WebSocket connections
type Handler struct {
	workspaces *workspace.Manager
	recorder   Recorder
	logger     *logging.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(workspaces *workspace.Manager, recorder Recorder, logger *logging.Logger) *Handler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		workspaces: workspaces,
		recorder:   recorder,
		logger:     logger.Component("ws"),
	}
}

// conn serialises writes; gorilla allows one concurrent writer.
type conn struct {
	ws       *websocket.Conn
	mu       sync.Mutex
	id       id.ConnID
	recorder Recorder
}

func (c *conn) send(msg ServerMessage) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	c.recorder.RecordWSMessage("outbound", msg.Type)
	return nil
}

func (c *conn) sendError(generation uint64, msg string) error {
	return c.send(ServerMessage{Type: TypeError, Message: msg, Generation: generation})
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// HandleConnection streams host events of one workspace and applies the
// commands the editor sends back.
func (h *Handler) HandleConnection(c *gin.Context) {
	w, err := h.workspaces.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	cn := &conn{ws: ws, id: id.NewConnID(), recorder: h.recorder}
	h.recorder.IncWSConnections()
	defer h.recorder.DecWSConnections()

	log := h.logger.With(zap.String("conn", cn.id.String()), zap.String("workspace", w.ID().String()))
	log.Debug("stream opened")
	defer log.Debug("stream closed")

	host := w.Host()
	events, cancel := host.Subscribe()
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go h.pump(cn, events, done)

	_ = cn.send(ServerMessage{
		Type:       TypeSystem,
		Message:    "connected to workspace " + w.ID().String(),
		Generation: host.Preview().Generation,
	})

	ws.SetReadLimit(maxMessage)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := c.Request.Context()
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			_ = cn.sendError(host.Preview().Generation, "malformed message")
			continue
		}
		h.recorder.RecordWSMessage("inbound", msg.Type)
		if err := h.handle(ctx, cn, w, msg); err != nil {
			_ = cn.sendError(host.Preview().Generation, err.Error())
		}
	}
}

func (h *Handler) handle(ctx context.Context, cn *conn, w *workspace.Workspace, msg ClientMessage) error {
	ctx, cancel := context.WithTimeout(ctx, cmdTimeout)
	defer cancel()

	host := w.Host()
	switch msg.Type {
	case TypeSource:
		kind, err := bundle.ParseKind(msg.Kind)
		if err != nil {
			return err
		}
		return w.Update(kind, msg.Content)
	case TypeToggleInspect:
		_, err := host.ToggleInspect(ctx)
		return err
	case TypeInput:
		return host.Dispatch(ctx, sandbox.Input{Kind: sandbox.InputKind(msg.Kind), Target: msg.Target})
	case TypePing:
		return cn.send(ServerMessage{Type: TypePong, Generation: host.Preview().Generation})
	default:
		return errUnknownType
	}
}

// pump forwards host events and keeps the connection alive until done.
func (h *Handler) pump(cn *conn, events <-chan bridge.Event, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = cn.ws.Close()
				return
			}
			if err := cn.send(frame(ev)); err != nil {
				return
			}
		case <-ticker.C:
			if err := cn.ping(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// frame converts a host event into its wire frame.
func frame(ev bridge.Event) ServerMessage {
	msg := ServerMessage{
		Type:       string(ev.Type),
		Message:    ev.Text,
		Generation: ev.Generation,
	}
	switch ev.Type {
	case bridge.EventSelection:
		if ev.Selection != nil {
			msg.Selection = ev.Selection.Display()
		}
	case bridge.EventInspect:
		inspecting := ev.Inspecting
		msg.Inspecting = &inspecting
	}
	return msg
}
