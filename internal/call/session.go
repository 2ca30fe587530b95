package call

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/BuckyMcYolo/ai-call-center-voice-server/internal/agent"
	"github.com/BuckyMcYolo/ai-call-center-voice-server/internal/relay"
)

// State is the call lifecycle position.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Telephony is the caller-side WebSocket leg.
type Telephony interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Agent is the agent-side connection consumed by the session.
type Agent interface {
	SendAudio(chunk []byte) error
	InjectMessage(text string) error
	RespondToFunction(callID, output string) error
	Close() error
}

// AgentDialer opens agent sessions.
type AgentDialer interface {
	Dial(ctx context.Context, h agent.Handlers) (Agent, error)
}

// AgentDialerFunc adapts a closure (typically around *agent.Client) to the
// AgentDialer interface.
type AgentDialerFunc func(ctx context.Context, h agent.Handlers) (Agent, error)

func (f AgentDialerFunc) Dial(ctx context.Context, h agent.Handlers) (Agent, error) {
	return f(ctx, h)
}

// Conversation is the narrow surface tool handlers may drive.
type Conversation interface {
	// Inject speaks a synthetic utterance through the agent.
	Inject(text string)
	// Respond resolves a pending tool call with serialized output.
	Respond(callID, output string)
	// SetBusy toggles the agent-responding flag that gates the liveness
	// timer.
	SetBusy(busy bool)
	// ScheduleHangup closes the call after the grace delay, letting any
	// farewell audio flush first.
	ScheduleHangup(d time.Duration)
	// Alive reports whether the session can still act on results.
	Alive() bool
}

// Dispatcher routes agent tool calls to backend operations.
type Dispatcher interface {
	Dispatch(conv Conversation, req agent.FunctionCallRequest)
}

// TranscriptStore archives the finished call transcript.
type TranscriptStore interface {
	Upload(objectKey string, contentType string, body []byte) error
}

// Config carries per-deployment session parameters.
type Config struct {
	Liveness LivenessConfig
	// FarewellGrace is how long after the farewell prompt the socket closes.
	FarewellGrace time.Duration
}

func DefaultConfig() Config {
	return Config{
		Liveness:      DefaultLivenessConfig(),
		FarewellGrace: 6500 * time.Millisecond,
	}
}

// Factory builds call sessions around process-wide collaborators.
type Factory struct {
	Dialer     AgentDialer
	Dispatcher Dispatcher
	Store      TranscriptStore // optional
	Config     Config
}

// transcriptLine is one finalized conversational turn.
type transcriptLine struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Session owns all mutable state for one phone call: the telephony leg, the
// agent leg, the liveness timers, and teardown ordering.
type Session struct {
	id         string
	tel        Telephony
	agent      Agent
	relay      *relay.Relay
	liveness   *Liveness
	dispatcher Dispatcher
	store      TranscriptStore
	cfg        Config

	responding atomic.Bool
	state      atomic.Int32

	mu         sync.Mutex
	closeTimer *time.Timer
	transcript []transcriptLine

	closeOnce sync.Once
}

const (
	warningPrompt  = "Are you still there?"
	silenceGoodbye = "Since I haven't heard from you, I'll end the call now. Feel free to call back when you're ready. Goodbye!"
)

// Open wires up a session for a freshly upgraded telephony connection. The
// agent leg is dialed and configured before Open returns; on error nothing is
// left running.
func (f *Factory) Open(ctx context.Context, tel Telephony) (*Session, error) {
	s := &Session{
		id:         uuid.NewString(),
		tel:        tel,
		dispatcher: f.Dispatcher,
		store:      f.Store,
		cfg:        f.Config,
	}
	s.state.Store(int32(StateConnecting))

	s.relay = relay.New(tel, relay.Events{
		OnStart: func(streamSid string) {
			log.Printf("[%s] telephony stream started: %s", s.id, streamSid)
		},
		OnAudio: s.onCallerAudio,
		OnStop: func() {
			s.Teardown("telephony stop event")
		},
	})

	s.liveness = NewLiveness(f.Config.Liveness, LivenessEvents{
		Busy:       s.responding.Load,
		OnWarning:  func() { s.Inject(warningPrompt) },
		OnFarewell: s.onSilenceFarewell,
	})

	ag, err := f.Dialer.Dial(ctx, agent.Handlers{
		OnAudio:                s.onAgentAudio,
		OnUserStartedSpeaking:  s.onUserStartedSpeaking,
		OnAgentStartedSpeaking: s.onAgentStartedSpeaking,
		OnAgentAudioDone:       s.onAgentAudioDone,
		OnConversationText:     s.onConversationText,
		OnFunctionCall:         s.onFunctionCall,
		OnError: func(err error) {
			log.Printf("[%s] agent error: %v", s.id, err)
		},
		OnClose: func() {
			s.Teardown("agent session closed")
		},
	})
	if err != nil {
		s.liveness.Close()
		return nil, fmt.Errorf("call: opening agent session: %w", err)
	}
	s.agent = ag

	s.state.Store(int32(StateActive))
	s.liveness.Arm()
	log.Printf("[%s] call session active", s.id)
	return s, nil
}

// ID returns the session's log-correlation identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Alive reports whether the session is in a non-terminal state.
func (s *Session) Alive() bool { return s.State() < StateClosing }

// HandleTelephony processes one raw frame from the telephony socket.
func (s *Session) HandleTelephony(data []byte) {
	if !s.Alive() {
		return
	}
	s.relay.HandleMessage(data)
}

func (s *Session) onCallerAudio(audio []byte) {
	if err := s.agent.SendAudio(audio); err != nil {
		log.Printf("[%s] failed to forward caller audio: %v", s.id, err)
	}
}

func (s *Session) onAgentAudio(chunk []byte) {
	s.relay.SendAudio(chunk)
}

// onUserStartedSpeaking handles barge-in: the caller's new utterance cancels
// pending timers, resets the idle-period warning state, and flushes buffered
// agent playback on the telephony leg.
func (s *Session) onUserStartedSpeaking() {
	s.responding.Store(false)
	s.liveness.UserTurn()
	s.relay.SendClear()
}

func (s *Session) onAgentStartedSpeaking() {
	if s.liveness.WarningInFlight() {
		s.liveness.AckWarningSpoken()
		return
	}
	s.responding.Store(true)
	s.liveness.Disarm()
}

func (s *Session) onAgentAudioDone() {
	if s.liveness.WarningInFlight() {
		return
	}
	s.responding.Store(false)
	s.liveness.ArmAfter(s.cfg.Liveness.RearmSettle)
}

func (s *Session) onConversationText(role, content string) {
	s.mu.Lock()
	s.transcript = append(s.transcript, transcriptLine{Role: role, Content: content, At: time.Now()})
	s.mu.Unlock()

	if role != "assistant" {
		return
	}
	if s.liveness.WarningInFlight() {
		return
	}
	s.responding.Store(true)
	s.liveness.Disarm()
}

func (s *Session) onFunctionCall(req agent.FunctionCallRequest) {
	log.Printf("[%s] function call: %s (%s)", s.id, req.FunctionName, req.FunctionCallID)
	if s.dispatcher == nil {
		log.Printf("[%s] no dispatcher configured, ignoring %s", s.id, req.FunctionName)
		return
	}
	s.dispatcher.Dispatch(s, req)
}

func (s *Session) onSilenceFarewell() {
	s.Inject(silenceGoodbye)
	s.ScheduleHangup(s.cfg.FarewellGrace)
}

// Inject implements Conversation.
func (s *Session) Inject(text string) {
	if !s.Alive() {
		return
	}
	if err := s.agent.InjectMessage(text); err != nil {
		log.Printf("[%s] failed to inject agent message: %v", s.id, err)
	}
}

// Respond implements Conversation.
func (s *Session) Respond(callID, output string) {
	if !s.Alive() {
		return
	}
	if err := s.agent.RespondToFunction(callID, output); err != nil {
		log.Printf("[%s] failed to send function call response: %v", s.id, err)
	}
}

// SetBusy implements Conversation. Marking busy also cancels pending silence
// timers, since a backend call counts as the agent working on a response.
func (s *Session) SetBusy(busy bool) {
	s.responding.Store(busy)
	if busy {
		s.liveness.Disarm()
	}
}

// ScheduleHangup implements Conversation. A later call supersedes an earlier
// pending one.
func (s *Session) ScheduleHangup(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Alive() {
		return
	}
	if s.closeTimer != nil {
		s.closeTimer.Stop()
	}
	s.closeTimer = time.AfterFunc(d, func() {
		s.Teardown("scheduled hangup")
	})
}

// Teardown releases everything the session owns: timers first, then the
// agent leg, then the telephony socket. Idempotent; both legs signalling
// close near-simultaneously is the normal case, not an error.
func (s *Session) Teardown(reason string) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		log.Printf("[%s] tearing down call session: %s", s.id, reason)

		s.liveness.Close()
		s.mu.Lock()
		if s.closeTimer != nil {
			s.closeTimer.Stop()
			s.closeTimer = nil
		}
		s.mu.Unlock()

		if err := s.agent.Close(); err != nil {
			log.Printf("[%s] agent close: %v", s.id, err)
		}
		if err := s.tel.Close(); err != nil {
			log.Printf("[%s] telephony close: %v", s.id, err)
		}

		s.state.Store(int32(StateClosed))
		s.archiveTranscript()
	})
}

// archiveTranscript uploads the conversation log, best effort.
func (s *Session) archiveTranscript() {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	lines := make([]transcriptLine, len(s.transcript))
	copy(lines, s.transcript)
	s.mu.Unlock()
	if len(lines) == 0 {
		return
	}

	body, err := json.Marshal(lines)
	if err != nil {
		log.Printf("[%s] failed to encode transcript: %v", s.id, err)
		return
	}
	key := fmt.Sprintf("transcript_%s_%d.json", s.id, time.Now().Unix())
	go func() {
		if err := s.store.Upload(key, "application/json", body); err != nil {
			log.Printf("[%s] failed to archive transcript: %v", s.id, err)
			return
		}
		log.Printf("[%s] transcript archived: %s", s.id, key)
	}()
}
