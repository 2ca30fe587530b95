package agent

// Wire messages for the voice-agent converse socket. The service speaks JSON
// text frames for events and binary frames for synthesized audio.

// Settings is the one-shot session configuration sent after the socket opens.
type Settings struct {
	Type    string          `json:"type"`
	Audio   AudioSettings   `json:"audio"`
	Agent   AgentSettings   `json:"agent"`
	Context ContextSettings `json:"context"`
}

type AudioSettings struct {
	Input  AudioFormat `json:"input"`
	Output AudioFormat `json:"output"`
}

type AudioFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Container  string `json:"container,omitempty"`
}

type AgentSettings struct {
	Listen ListenSettings `json:"listen"`
	Speak  SpeakSettings  `json:"speak"`
	Think  ThinkSettings  `json:"think"`
}

type ListenSettings struct {
	Model string `json:"model"`
}

type SpeakSettings struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voice_id,omitempty"`
}

type ThinkSettings struct {
	Provider     ThinkProvider    `json:"provider"`
	Model        string           `json:"model"`
	Instructions string           `json:"instructions"`
	Functions    []FunctionSchema `json:"functions,omitempty"`
}

type ThinkProvider struct {
	Type string `json:"type"`
}

// FunctionSchema declares one callable tool to the agent.
type FunctionSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type ContextSettings struct {
	Messages []ContextMessage `json:"messages"`
	Replay   bool             `json:"replay"`
}

type ContextMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// injectMessage asks the agent to speak a synthetic utterance.
type injectMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// functionCallResponse resolves a FunctionCallRequest issued by the agent.
type functionCallResponse struct {
	Type           string `json:"type"`
	FunctionCallID string `json:"function_call_id"`
	Output         string `json:"output"`
}

// FunctionCallRequest is a tool invocation issued by the remote agent.
type FunctionCallRequest struct {
	Type           string                 `json:"type"`
	FunctionName   string                 `json:"function_name"`
	FunctionCallID string                 `json:"function_call_id"`
	Input          map[string]interface{} `json:"input"`
}

// conversationText carries a finalized conversational turn, either role.
type conversationText struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

type errorMessage struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

// Handlers are the event callbacks a session host wires up. Nil fields are
// skipped. Callbacks run on the session's reader goroutine.
type Handlers struct {
	OnAudio                func(chunk []byte)
	OnUserStartedSpeaking  func()
	OnAgentStartedSpeaking func()
	OnAgentAudioDone       func()
	OnConversationText     func(role, content string)
	OnFunctionCall         func(req FunctionCallRequest)
	OnError                func(err error)
	OnClose                func()
}
