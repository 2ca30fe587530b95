package webhook

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/twilio/twilio-go/twiml"
)

// Handlers serves the Twilio voice webhooks that point inbound calls at the
// media-stream WebSocket.
type Handlers struct {
	// PublicHost is the externally reachable host for the stream URL. When
	// empty, the request host is used.
	PublicHost string
	// StreamPath is the WebSocket route the TwiML connects to.
	StreamPath string
	// StreamAPIKey is the opaque key passed to the stream as a parameter.
	StreamAPIKey string
}

func (h Handlers) Register(e *echo.Echo) {
	e.POST("/twilio/voice", h.voice)
}

// voice answers the inbound-call webhook with a TwiML document that opens a
// bidirectional media stream back to this server.
func (h Handlers) voice(c echo.Context) error {
	params, ok := c.Get("twilioParams").(map[string]string)
	if !ok {
		return c.String(http.StatusInternalServerError, "Failed to get Twilio parameters")
	}

	fromNumber := params["From"]
	toNumber := params["To"]
	c.Echo().Logger.Infof("Call from %s to %s - connecting media stream", fromNumber, toNumber)

	stream := &twiml.VoiceStream{Url: h.streamURL(c)}
	if h.StreamAPIKey != "" {
		stream.InnerElements = []twiml.Element{
			&twiml.VoiceParameter{Name: "apiKey", Value: h.StreamAPIKey},
		}
	}
	connect := &twiml.VoiceConnect{InnerElements: []twiml.Element{stream}}

	response, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		return c.String(http.StatusInternalServerError, "failed to build TwiML")
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml")
	return c.String(http.StatusOK, response)
}

func (h Handlers) streamURL(c echo.Context) string {
	host := h.PublicHost
	if host == "" {
		host = c.Request().Host
	}
	path := h.StreamPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("wss://%s%s", host, path)
}
