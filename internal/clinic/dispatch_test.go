package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BuckyMcYolo/ai-call-center-voice-server/internal/agent"
	"github.com/BuckyMcYolo/ai-call-center-voice-server/internal/scheduling"
)

type fakeBackend struct {
	record     *scheduling.PatientRecord
	recordErr  error
	slots      []scheduling.TimeSlot
	slotsErr   error
	booking    *scheduling.BookingConfirmation
	bookingErr error
	cancel     *scheduling.CancelConfirmation
	cancelErr  error

	mu      sync.Mutex
	queries []scheduling.PatientQuery
}

func (f *fakeBackend) PatientRecord(ctx context.Context, q scheduling.PatientQuery) (*scheduling.PatientRecord, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	return f.record, f.recordErr
}

func (f *fakeBackend) AvailableSlots(ctx context.Context, q scheduling.SlotQuery) ([]scheduling.TimeSlot, error) {
	return f.slots, f.slotsErr
}

func (f *fakeBackend) BookSlot(ctx context.Context, r scheduling.BookingRequest) (*scheduling.BookingConfirmation, error) {
	return f.booking, f.bookingErr
}

func (f *fakeBackend) CancelAppointment(ctx context.Context, r scheduling.CancelRequest) (*scheduling.CancelConfirmation, error) {
	return f.cancel, f.cancelErr
}

// fakeConv records Conversation calls and signals each Respond on a channel so
// tests can wait for the async handlers.
type fakeConv struct {
	mu        sync.Mutex
	injected  []string
	busy      []bool
	hangups   []time.Duration
	responses map[string]string
	alive     bool
	responded chan struct{}
}

func newFakeConv() *fakeConv {
	return &fakeConv{
		responses: map[string]string{},
		alive:     true,
		responded: make(chan struct{}, 4),
	}
}

func (f *fakeConv) Inject(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.injected = append(f.injected, text)
}

func (f *fakeConv) Respond(callID, output string) {
	f.mu.Lock()
	f.responses[callID] = output
	f.mu.Unlock()
	f.responded <- struct{}{}
}

func (f *fakeConv) SetBusy(busy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = append(f.busy, busy)
}

func (f *fakeConv) ScheduleHangup(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hangups = append(f.hangups, d)
}

func (f *fakeConv) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeConv) waitRespond(t *testing.T) string {
	t.Helper()
	select {
	case <-f.responded:
	case <-time.After(2 * time.Second):
		t.Fatalf("tool call was never answered")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, out := range f.responses {
		return out
	}
	return ""
}

func callReq(name string, input map[string]interface{}) agent.FunctionCallRequest {
	return agent.FunctionCallRequest{
		FunctionName:   name,
		FunctionCallID: "fc-test",
		Input:          input,
	}
}

func TestDispatch_HangUpFarewellAndResponse(t *testing.T) {
	d := NewDispatcher(&fakeBackend{})
	conv := newFakeConv()

	d.Dispatch(conv, callReq("hang_up", nil))

	out := conv.waitRespond(t)
	if !strings.Contains(out, "Call ended") {
		t.Fatalf("expected call-ended result, got %q", out)
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	if len(conv.injected) != 1 || conv.injected[0] != hangupFarewell {
		t.Fatalf("expected farewell injection, got %v", conv.injected)
	}
	if len(conv.hangups) != 1 || conv.hangups[0] != hangupGraceTime {
		t.Fatalf("expected hangup scheduled with grace %v, got %v", hangupGraceTime, conv.hangups)
	}
}

func TestDispatch_PatientRecordSuccess(t *testing.T) {
	backend := &fakeBackend{
		record: &scheduling.PatientRecord{ID: "pat-9", FirstName: "Ada", LastName: "Lovelace"},
	}
	d := NewDispatcher(backend)
	conv := newFakeConv()

	d.Dispatch(conv, callReq("get_patient_record", map[string]interface{}{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"dob":       "1990-12-10",
		"ssn":       float64(1234),
	}))

	out := conv.waitRespond(t)
	var rec scheduling.PatientRecord
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("result is not a patient record: %v", err)
	}
	if rec.ID != "pat-9" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	backend.mu.Lock()
	q := backend.queries[0]
	backend.mu.Unlock()
	if q.Last4SSN != "1234" {
		t.Fatalf("expected numeric ssn coerced to %q, got %q", "1234", q.Last4SSN)
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()
	if len(conv.busy) != 1 || !conv.busy[0] {
		t.Fatalf("expected busy set before backend call, got %v", conv.busy)
	}
}

func TestDispatch_PatientRecordFailure(t *testing.T) {
	d := NewDispatcher(&fakeBackend{recordErr: errors.New("upstream 503")})
	conv := newFakeConv()

	d.Dispatch(conv, callReq("get_patient_record", map[string]interface{}{"firstName": "Ada"}))

	out := conv.waitRespond(t)
	var payload map[string]string
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("error result not JSON: %v", err)
	}
	if payload["error"] == "" {
		t.Fatalf("expected structured error result, got %q", out)
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()
	if len(conv.injected) != 1 || conv.injected[0] != recordApology {
		t.Fatalf("expected apology injection, got %v", conv.injected)
	}
	if len(conv.busy) != 2 || conv.busy[1] {
		t.Fatalf("expected busy dropped after failure, got %v", conv.busy)
	}
}

func TestDispatch_AvailableSlotsSpeaksInterim(t *testing.T) {
	d := NewDispatcher(&fakeBackend{slots: []scheduling.TimeSlot{{Date: "2026/09/01", StartTime: "09:00", EndTime: "09:30"}}})
	conv := newFakeConv()

	d.Dispatch(conv, callReq("get_available_time_slots", map[string]interface{}{
		"start": "2026-09-01T09:00:00", "end": "2026-09-01T17:00:00", "patientId": "pat-9",
	}))

	out := conv.waitRespond(t)
	var slots []scheduling.TimeSlot
	if err := json.Unmarshal([]byte(out), &slots); err != nil {
		t.Fatalf("result is not a slot list: %v", err)
	}
	if len(slots) != 1 || slots[0].StartTime != "09:00" {
		t.Fatalf("unexpected slots: %+v", slots)
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()
	if len(conv.injected) != 1 || conv.injected[0] != slotInterim {
		t.Fatalf("expected interim line before slot lookup, got %v", conv.injected)
	}
}

func TestDispatch_BookSlotFailureApologizes(t *testing.T) {
	d := NewDispatcher(&fakeBackend{bookingErr: errors.New("slot taken")})
	conv := newFakeConv()

	d.Dispatch(conv, callReq("book_time_slot", map[string]interface{}{
		"patientId": "pat-9", "date": "2026/09/01", "start": "09:00", "end": "09:30",
	}))

	out := conv.waitRespond(t)
	if !strings.Contains(out, "slot taken") {
		t.Fatalf("expected error detail in result, got %q", out)
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	if len(conv.injected) != 1 || conv.injected[0] != bookingApology {
		t.Fatalf("expected booking apology, got %v", conv.injected)
	}
}

func TestDispatch_CancelAppointmentSuccess(t *testing.T) {
	d := NewDispatcher(&fakeBackend{cancel: &scheduling.CancelConfirmation{Message: "Appointment cancelled successfully"}})
	conv := newFakeConv()

	d.Dispatch(conv, callReq("cancel_appointment", map[string]interface{}{
		"appointmentId": "apt-3", "patientId": "pat-9", "cancellationReason": "schedule conflict",
	}))

	out := conv.waitRespond(t)
	var conf scheduling.CancelConfirmation
	if err := json.Unmarshal([]byte(out), &conf); err != nil {
		t.Fatalf("result is not a cancel confirmation: %v", err)
	}
	if !strings.Contains(conf.Message, "cancelled") {
		t.Fatalf("unexpected confirmation: %+v", conf)
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	if len(conv.injected) != 1 || conv.injected[0] != cancelInterim {
		t.Fatalf("expected cancel interim line, got %v", conv.injected)
	}
}

func TestDispatch_UnknownFunctionIgnored(t *testing.T) {
	d := NewDispatcher(&fakeBackend{})
	conv := newFakeConv()

	d.Dispatch(conv, callReq("transfer_call", nil))

	select {
	case <-conv.responded:
		t.Fatalf("unknown function should not be answered")
	case <-time.After(50 * time.Millisecond):
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	if len(conv.injected) != 0 || len(conv.busy) != 0 {
		t.Fatalf("unknown function should not touch the conversation, got injected=%v busy=%v", conv.injected, conv.busy)
	}
}

func TestDispatch_ResultDroppedAfterSessionEnds(t *testing.T) {
	d := NewDispatcher(&fakeBackend{record: &scheduling.PatientRecord{}})
	conv := newFakeConv()
	conv.mu.Lock()
	conv.alive = false
	conv.mu.Unlock()

	d.Dispatch(conv, callReq("get_patient_record", map[string]interface{}{"firstName": "Ada"}))

	select {
	case <-conv.responded:
		t.Fatalf("dead session should not receive results")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStringArgCoercion(t *testing.T) {
	input := map[string]interface{}{
		"str":  "hello",
		"num":  float64(42),
		"flag": true,
		"nil":  nil,
	}
	if got := stringArg(input, "str"); got != "hello" {
		t.Fatalf("str: got %q", got)
	}
	if got := stringArg(input, "num"); got != "42" {
		t.Fatalf("num: got %q", got)
	}
	if got := stringArg(input, "flag"); got != "true" {
		t.Fatalf("flag: got %q", got)
	}
	if got := stringArg(input, "nil"); got != "" {
		t.Fatalf("nil: got %q", got)
	}
	if got := stringArg(input, "missing"); got != "" {
		t.Fatalf("missing: got %q", got)
	}
}
