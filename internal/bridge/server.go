package bridge

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sketchd/internal/agents"
	"sketchd/internal/canvas"
	"sketchd/internal/config"
	"sketchd/internal/gemini"
	"sketchd/internal/logging"
	"sketchd/internal/session"
)

// Server exposes the client-facing HTTP surface: a health probe and the
// websocket upgrade endpoint. Each accepted websocket gets its own read
// loop, audio relay, and serialized writer; session state lives in the
// registry and survives reconnects until swept.
type Server struct {
	cfg      *config.Config
	registry *session.Registry
	engine   *gin.Engine
	upgrader websocket.Upgrader

	// audioFactory builds the relay's generation connection; overridable in
	// tests.
	audioFactory func() liveStream
}

// NewServer wires the HTTP surface over a session registry.
func NewServer(cfg *config.Config, registry *session.Registry) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.audioFactory = func() liveStream {
		return gemini.NewLiveClient(gemini.LiveConfig{
			Endpoint:          cfg.Gen.LiveEndpoint,
			APIKey:            cfg.Gen.APIKey,
			Model:             cfg.Gen.LiveModel,
			SystemInstruction: agents.ExecutorSystem(cfg.Prompts.ExecutorSystem),
			Modalities:        []string{"AUDIO"},
			ReadTimeout:       cfg.GenReadTimeout(),
		})
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/ws", s.handleWS)
	s.engine = engine
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": s.registry.Len(),
	})
}

// handleWS upgrades the request and serves the connection until the client
// goes away. Client disconnect closes the relay's generation connection; a
// drawing turn in flight notices through its sink write failing.
func (s *Server) handleWS(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.BridgeError("upgrade failed: %v", err)
		return
	}
	s.serve(newConn(ws))
}

func (s *Server) serve(conn *Conn) {
	relay := newAudioRelay(conn, s.audioFactory)
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		relay.Close()
		conn.Close()
	}()

	var current *session.Controller

	for {
		raw, err := conn.readRaw()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Bridge("client connection dropped: %v", err)
			}
			return
		}

		msg, err := decodeInbound(raw)
		if err != nil {
			conn.SendError("unparseable message")
			continue
		}

		switch {
		case msg.Type == inboundAudio:
			if err := relay.Forward(ctx, msg.Data); err != nil {
				logging.BridgeError("audio relay failed: %v", err)
				conn.SendError("audio relay failed")
			}

		case msg.Type == inboundCancel:
			ctrl := current
			if msg.SessionID != "" {
				ctrl = s.registry.Get(msg.SessionID)
			}
			if ctrl != nil {
				ctrl.Cancel()
			}

		case msg.isTurnRequest():
			id := msg.SessionID
			if id == "" {
				id = uuid.NewString()
			}
			current = s.registry.GetOrCreate(id)
			go s.runTurn(ctx, current, msg, conn)

		default:
			conn.SendError("unknown message type")
		}
	}
}

func (s *Server) runTurn(ctx context.Context, ctrl *session.Controller, msg inboundMessage, conn *Conn) {
	req := session.TurnRequest{
		Message:          msg.latestUserText(),
		ContextItems:     msg.ContextItems,
		Bounds:           msg.ViewportBounds,
		SuggesterEnabled: msg.IsSuggesterEnabled && s.cfg.Session.ReviewEnabled,
	}
	for _, raw := range msg.SelectedShapes {
		req.SelectedShapes = append(req.SelectedShapes, canvas.ShapeFromPayload(raw))
	}

	err := ctrl.RunTurn(ctx, req, conn)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrTurnInFlight):
		conn.SendError("a turn is already in flight")
	default:
		logging.BridgeError("session %s: turn aborted: %v", ctrl.ID(), err)
	}
}
