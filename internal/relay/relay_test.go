package relay

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"
)

type frameRecorder struct {
	frames []envelope
	err    error
}

func (f *frameRecorder) WriteJSON(v interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, v.(envelope))
	return nil
}

func startFrame(sid string) []byte {
	b, _ := json.Marshal(map[string]interface{}{
		"event": "start",
		"start": map[string]string{"streamSid": sid},
	})
	return b
}

func mediaFrame(payload []byte) []byte {
	b, _ := json.Marshal(map[string]interface{}{
		"event": "media",
		"media": map[string]string{"payload": base64.StdEncoding.EncodeToString(payload)},
	})
	return b
}

func TestRelay_ForwardsDecodedAudioAfterStart(t *testing.T) {
	var got [][]byte
	r := New(&frameRecorder{}, Events{OnAudio: func(a []byte) { got = append(got, a) }})

	// media before start must be dropped
	r.HandleMessage(mediaFrame([]byte{1, 2, 3}))
	if len(got) != 0 {
		t.Fatalf("expected media before start to be dropped, got %d chunks", len(got))
	}

	r.HandleMessage(startFrame("MZ123"))
	if r.StreamSid() != "MZ123" {
		t.Fatalf("expected streamSid MZ123, got %q", r.StreamSid())
	}
	r.HandleMessage(mediaFrame([]byte{9, 8, 7}))
	if len(got) != 1 || got[0][0] != 9 {
		t.Fatalf("expected one decoded chunk, got %v", got)
	}
}

func TestRelay_MalformedFramesAreSwallowed(t *testing.T) {
	stops := 0
	r := New(&frameRecorder{}, Events{OnStop: func() { stops++ }})
	r.HandleMessage([]byte("not json"))
	r.HandleMessage([]byte(`{"event":"bogus"}`))
	r.HandleMessage([]byte(`{"event":"media","media":{"payload":"!!!not-base64!!!"}}`))
	if stops != 0 {
		t.Fatalf("malformed frames must not trigger stop")
	}
}

func TestRelay_OutboundAddressing(t *testing.T) {
	rec := &frameRecorder{}
	r := New(rec, Events{})

	// no streamSid yet: chunk dropped
	r.SendAudio([]byte{1})
	if len(rec.frames) != 0 {
		t.Fatalf("expected chunk without streamSid to be dropped")
	}

	r.HandleMessage(startFrame("MZ1"))
	r.SendAudio([]byte{0x10, 0x20})
	if len(rec.frames) != 1 {
		t.Fatalf("expected one outbound frame, got %d", len(rec.frames))
	}
	f := rec.frames[0]
	if f.Event != "media" || f.StreamSid != "MZ1" {
		t.Fatalf("unexpected outbound envelope: %+v", f)
	}
	decoded, err := base64.StdEncoding.DecodeString(f.Media.Payload)
	if err != nil || len(decoded) != 2 || decoded[0] != 0x10 {
		t.Fatalf("payload round-trip failed: %v %v", decoded, err)
	}

	// after stop, nothing is emitted
	r.HandleMessage([]byte(`{"event":"stop"}`))
	r.SendAudio([]byte{1})
	r.SendClear()
	if len(rec.frames) != 1 {
		t.Fatalf("expected no frames after stop, got %d", len(rec.frames))
	}
}

func TestRelay_SendClear(t *testing.T) {
	rec := &frameRecorder{}
	r := New(rec, Events{})
	r.SendClear() // no stream yet: dropped
	r.HandleMessage(startFrame("MZ9"))
	r.SendClear()
	if len(rec.frames) != 1 {
		t.Fatalf("expected one clear frame, got %d", len(rec.frames))
	}
	if rec.frames[0].Event != "clear" || rec.frames[0].StreamSid != "MZ9" {
		t.Fatalf("unexpected clear frame: %+v", rec.frames[0])
	}
}

func TestRelay_WriteErrorsAreNotFatal(t *testing.T) {
	rec := &frameRecorder{err: fmt.Errorf("socket gone")}
	r := New(rec, Events{})
	r.HandleMessage(startFrame("MZ2"))
	r.SendAudio([]byte{1}) // must not panic
	r.SendClear()
}
