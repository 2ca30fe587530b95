package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client holds the process-wide voice-agent service configuration. It is
// built once at startup and shared by every call; per-call state lives in
// Session.
type Client struct {
	APIKey string
	URL    string
	// NewSettings produces the session configuration for a fresh call.
	// Called once per Dial so time-derived fields stay current.
	NewSettings func() Settings
}

// Session is one live connection to the voice-agent service.
type Session struct {
	conn     *websocket.Conn
	handlers Handlers

	wmu sync.Mutex // serializes writes; reads happen on one goroutine

	mu     sync.Mutex
	closed bool
}

// Dial opens a session, sends the session configuration, and starts the
// reader goroutine that feeds h.
func (c *Client) Dial(ctx context.Context, h Handlers) (*Session, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("agent: API key is empty")
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+c.APIKey)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, c.URL, headers)
	if err != nil {
		if resp != nil {
			log.Printf("agent: connection failed with status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("agent: failed to connect: %w", err)
	}

	s := &Session{conn: conn, handlers: h}

	settings := c.NewSettings()
	settings.Type = "SettingsConfiguration"
	if err := s.writeJSON(settings); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("agent: failed to send settings: %w", err)
	}

	go s.readLoop()
	log.Println("agent: connection opened and configured")
	return s, nil
}

// SendAudio forwards one chunk of caller audio to the agent.
func (s *Session) SendAudio(chunk []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.isClosed() {
		return fmt.Errorf("agent: session closed")
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, chunk)
}

// InjectMessage makes the agent speak text outside its normal turn flow.
func (s *Session) InjectMessage(text string) error {
	return s.writeJSON(injectMessage{Type: "InjectAgentMessage", Message: text})
}

// RespondToFunction resolves a pending tool call. Output is the serialized
// tool result; every request must be answered exactly once.
func (s *Session) RespondToFunction(callID, output string) error {
	return s.writeJSON(functionCallResponse{
		Type:           "FunctionCallResponse",
		FunctionCallID: callID,
		Output:         output,
	})
}

// Close shuts the connection down. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.conn.Close()
	log.Println("agent: connection closed")
	return err
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) writeJSON(v interface{}) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.isClosed() {
		return fmt.Errorf("agent: session closed")
	}
	return s.conn.WriteJSON(v)
}

func (s *Session) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("agent: recovered from panic in readLoop: %v", r)
		}
	}()
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.isClosed() {
				log.Printf("agent: read error: %v", err)
			}
			if s.handlers.OnClose != nil {
				s.handlers.OnClose()
			}
			return
		}
		if mt == websocket.BinaryMessage {
			if s.handlers.OnAudio != nil {
				s.handlers.OnAudio(data)
			}
			continue
		}
		s.processMessage(data)
	}
}

func (s *Session) processMessage(data []byte) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		log.Printf("agent: dropping malformed event: %v", err)
		return
	}

	switch base.Type {
	case "Welcome", "SettingsApplied":
		log.Printf("agent: %s", base.Type)
	case "UserStartedSpeaking":
		if s.handlers.OnUserStartedSpeaking != nil {
			s.handlers.OnUserStartedSpeaking()
		}
	case "AgentStartedSpeaking":
		if s.handlers.OnAgentStartedSpeaking != nil {
			s.handlers.OnAgentStartedSpeaking()
		}
	case "AgentAudioDone":
		if s.handlers.OnAgentAudioDone != nil {
			s.handlers.OnAgentAudioDone()
		}
	case "AgentThinking":
		log.Println("agent: thinking")
	case "ConversationText":
		var msg conversationText
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("agent: bad ConversationText event: %v", err)
			return
		}
		if s.handlers.OnConversationText != nil {
			s.handlers.OnConversationText(msg.Role, msg.Content)
		}
	case "FunctionCallRequest":
		var req FunctionCallRequest
		if err := json.Unmarshal(data, &req); err != nil {
			log.Printf("agent: bad FunctionCallRequest event: %v", err)
			return
		}
		if s.handlers.OnFunctionCall != nil {
			s.handlers.OnFunctionCall(req)
		}
	case "Error":
		var msg errorMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("agent: bad Error event: %v", err)
			return
		}
		desc := msg.Description
		if desc == "" {
			desc = msg.Message
		}
		if s.handlers.OnError != nil {
			s.handlers.OnError(fmt.Errorf("agent: %s", desc))
		}
	default:
		log.Printf("agent: unknown event type %q", base.Type)
	}
}
