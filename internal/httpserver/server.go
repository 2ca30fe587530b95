package httpserver

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/BuckyMcYolo/ai-call-center-voice-server/internal/call"
	"github.com/BuckyMcYolo/ai-call-center-voice-server/internal/config"
	"github.com/BuckyMcYolo/ai-call-center-voice-server/internal/middleware"
	"github.com/BuckyMcYolo/ai-call-center-voice-server/internal/webhook"
)

// StreamPath is the telephony media-stream WebSocket route.
const StreamPath = "/voice-agent"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// Twilio's media-stream client sends no browser Origin.
		return true
	},
}

// Server bundles the echo router and the per-call session factory.
type Server struct {
	E        *echo.Echo
	sessions *call.Factory
}

// New constructs the HTTP server with routes.
func New(cfg config.Config, sessions *call.Factory) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(middleware.TwilioAuth(func() string { return cfg.TwilioAuthToken }))

	s := &Server{E: e, sessions: sessions}

	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Server is running")
	})
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	webhook.Handlers{
		PublicHost:   cfg.PublicHost,
		StreamPath:   StreamPath,
		StreamAPIKey: cfg.StreamAPIKey,
	}.Register(e)

	e.GET(StreamPath, s.handleStream)

	return s
}

// handleStream authorizes and upgrades the telephony media stream, then runs
// the call session until either leg closes.
func (s *Server) handleStream(c echo.Context) error {
	r := c.Request()
	if !middleware.HasTwilioSignature(r) {
		log.Printf("stream: rejecting upgrade without vendor signature from %s", r.RemoteAddr)
		return c.String(http.StatusUnauthorized, "Unauthorized")
	}

	conn, err := upgrader.Upgrade(c.Response(), r, nil)
	if err != nil {
		log.Printf("stream: upgrade error: %v", err)
		return nil
	}

	sess, err := s.sessions.Open(context.Background(), conn)
	if err != nil {
		log.Printf("stream: failed to open call session: %v", err)
		_ = conn.Close()
		return nil
	}

	for {
		mt, data, rerr := conn.ReadMessage()
		if rerr != nil {
			sess.Teardown("telephony socket closed")
			return nil
		}
		if mt != websocket.TextMessage {
			continue
		}
		sess.HandleTelephony(data)
	}
}
