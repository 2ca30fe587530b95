package relay

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"sync"
)

// FrameWriter sends one JSON frame to the telephony leg.
// *websocket.Conn satisfies it.
type FrameWriter interface {
	WriteJSON(v interface{}) error
}

// Events lets the host react to decoded telephony traffic.
type Events struct {
	// OnStart fires once when the stream identifier becomes known.
	OnStart func(streamSid string)
	// OnAudio receives the decoded inbound audio payload.
	OnAudio func(audio []byte)
	// OnStop fires when the telephony leg signals the end of the call.
	OnStop func()
}

// envelope is the Twilio media-stream message format, both directions.
type envelope struct {
	Event     string        `json:"event"`
	StreamSid string        `json:"streamSid,omitempty"`
	Start     *startPayload `json:"start,omitempty"`
	Media     *mediaPayload `json:"media,omitempty"`
}

type startPayload struct {
	StreamSid string `json:"streamSid"`
}

type mediaPayload struct {
	Payload string `json:"payload"`
}

// Relay translates telephony envelope messages into a raw audio byte stream
// and back. It owns the stream identifier for the lifetime of the call:
// outbound media cannot be addressed before "start" or after "stop".
type Relay struct {
	conn FrameWriter
	ev   Events

	mu        sync.Mutex
	streamSid string
	stopped   bool
}

func New(conn FrameWriter, ev Events) *Relay {
	return &Relay{conn: conn, ev: ev}
}

// StreamSid returns the current stream identifier, or "" when unknown.
func (r *Relay) StreamSid() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streamSid
}

// HandleMessage processes one inbound telephony frame. Malformed frames and
// unknown event kinds are logged and dropped; they never fail the call.
func (r *Relay) HandleMessage(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("relay: dropping malformed telephony frame: %v", err)
		return
	}

	switch env.Event {
	case "start":
		if env.Start == nil || env.Start.StreamSid == "" {
			log.Printf("relay: start event without streamSid")
			return
		}
		r.mu.Lock()
		r.streamSid = env.Start.StreamSid
		r.mu.Unlock()
		log.Printf("relay: call started, StreamSID: %s", env.Start.StreamSid)
		if r.ev.OnStart != nil {
			r.ev.OnStart(env.Start.StreamSid)
		}
	case "media":
		if env.Media == nil || env.Media.Payload == "" {
			return
		}
		r.mu.Lock()
		sid := r.streamSid
		r.mu.Unlock()
		if sid == "" {
			log.Printf("relay: media before start, dropping frame")
			return
		}
		audio, err := base64.StdEncoding.DecodeString(env.Media.Payload)
		if err != nil {
			log.Printf("relay: dropping media frame with invalid payload: %v", err)
			return
		}
		if r.ev.OnAudio != nil {
			r.ev.OnAudio(audio)
		}
	case "stop":
		r.mu.Lock()
		r.streamSid = ""
		r.stopped = true
		r.mu.Unlock()
		log.Printf("relay: call ended")
		if r.ev.OnStop != nil {
			r.ev.OnStop()
		}
	default:
		log.Printf("relay: unknown telephony event %q", env.Event)
	}
}

// SendAudio wraps an agent audio chunk in a media envelope addressed to the
// current stream. Chunks with no addressable stream are dropped.
func (r *Relay) SendAudio(audio []byte) {
	r.mu.Lock()
	sid := r.streamSid
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		return
	}
	if sid == "" {
		log.Printf("relay: no StreamSID available, cannot send audio")
		return
	}
	msg := envelope{
		Event:     "media",
		StreamSid: sid,
		Media:     &mediaPayload{Payload: base64.StdEncoding.EncodeToString(audio)},
	}
	if err := r.conn.WriteJSON(msg); err != nil {
		log.Printf("relay: failed to send media frame: %v", err)
	}
}

// SendClear tells the telephony leg to flush buffered playback so a new
// utterance can begin immediately (barge-in).
func (r *Relay) SendClear() {
	r.mu.Lock()
	sid := r.streamSid
	stopped := r.stopped
	r.mu.Unlock()
	if stopped || sid == "" {
		return
	}
	if err := r.conn.WriteJSON(envelope{Event: "clear", StreamSid: sid}); err != nil {
		log.Printf("relay: failed to send clear frame: %v", err)
	}
}
