package clinic

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/BuckyMcYolo/ai-call-center-voice-server/internal/agent"
	"github.com/BuckyMcYolo/ai-call-center-voice-server/internal/call"
	"github.com/BuckyMcYolo/ai-call-center-voice-server/internal/scheduling"
)

// Backend is the scheduling surface the dispatcher calls into.
// *scheduling.Client satisfies it.
type Backend interface {
	PatientRecord(ctx context.Context, q scheduling.PatientQuery) (*scheduling.PatientRecord, error)
	AvailableSlots(ctx context.Context, q scheduling.SlotQuery) ([]scheduling.TimeSlot, error)
	BookSlot(ctx context.Context, r scheduling.BookingRequest) (*scheduling.BookingConfirmation, error)
	CancelAppointment(ctx context.Context, r scheduling.CancelRequest) (*scheduling.CancelConfirmation, error)
}

const (
	hangupFarewell  = "If you have any further questions, please don't hesitate to call us back. Goodbye!"
	slotInterim     = "I can help you with that. Let me check the available time slots for you."
	cancelInterim   = "Let me cancel the appointment for you."
	recordApology   = "I'm sorry, I'm having trouble finding the patient record right now."
	slotsApology    = "I'm sorry, I'm having trouble finding available time slots right now."
	bookingApology  = "I'm sorry, I'm having trouble booking the time slot right now."
	cancelApology   = "I'm sorry, I'm having trouble cancelling the appointment right now."
	hangupGraceTime = 5500 * time.Millisecond
	backendTimeout  = 15 * time.Second
)

// Dispatcher maps agent function calls onto the scheduling backend. Backend
// work runs asynchronously; every dispatched call is answered exactly once,
// success or failure, so the agent's turn is never left stalled.
type Dispatcher struct {
	backend Backend
	timeout time.Duration
}

func NewDispatcher(backend Backend) *Dispatcher {
	return &Dispatcher{backend: backend, timeout: backendTimeout}
}

// Dispatch implements call.Dispatcher. Unknown function names are logged and
// ignored; the protocol requires no response for them.
func (d *Dispatcher) Dispatch(conv call.Conversation, req agent.FunctionCallRequest) {
	switch req.FunctionName {
	case "hang_up":
		d.hangUp(conv, req)
	case "get_patient_record":
		conv.SetBusy(true)
		go d.patientRecord(conv, req)
	case "get_available_time_slots":
		conv.SetBusy(true)
		conv.Inject(slotInterim)
		go d.availableSlots(conv, req)
	case "book_time_slot":
		conv.SetBusy(true)
		go d.bookSlot(conv, req)
	case "cancel_appointment":
		conv.SetBusy(true)
		conv.Inject(cancelInterim)
		go d.cancelAppointment(conv, req)
	default:
		log.Printf("dispatch: unknown function %q, ignoring", req.FunctionName)
	}
}

func (d *Dispatcher) hangUp(conv call.Conversation, req agent.FunctionCallRequest) {
	conv.Inject(hangupFarewell)
	conv.ScheduleHangup(hangupGraceTime)
	conv.Respond(req.FunctionCallID, toolOutput(map[string]string{"message": "Call ended"}))
}

func (d *Dispatcher) patientRecord(conv call.Conversation, req agent.FunctionCallRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	rec, err := d.backend.PatientRecord(ctx, scheduling.PatientQuery{
		FirstName:   stringArg(req.Input, "firstName"),
		LastName:    stringArg(req.Input, "lastName"),
		DateOfBirth: stringArg(req.Input, "dob"),
		Last4SSN:    stringArg(req.Input, "ssn"),
	})
	d.finish(conv, req, rec, err, recordApology)
}

func (d *Dispatcher) availableSlots(conv call.Conversation, req agent.FunctionCallRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	slots, err := d.backend.AvailableSlots(ctx, scheduling.SlotQuery{
		StartTime: stringArg(req.Input, "start"),
		EndTime:   stringArg(req.Input, "end"),
		PatientID: stringArg(req.Input, "patientId"),
	})
	d.finish(conv, req, slots, err, slotsApology)
}

func (d *Dispatcher) bookSlot(conv call.Conversation, req agent.FunctionCallRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	conf, err := d.backend.BookSlot(ctx, scheduling.BookingRequest{
		PatientID: stringArg(req.Input, "patientId"),
		Date:      stringArg(req.Input, "date"),
		StartTime: stringArg(req.Input, "start"),
		EndTime:   stringArg(req.Input, "end"),
		Notes:     stringArg(req.Input, "notes"),
	})
	d.finish(conv, req, conf, err, bookingApology)
}

func (d *Dispatcher) cancelAppointment(conv call.Conversation, req agent.FunctionCallRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	conf, err := d.backend.CancelAppointment(ctx, scheduling.CancelRequest{
		AppointmentID: stringArg(req.Input, "appointmentId"),
		PatientID:     stringArg(req.Input, "patientId"),
		Reason:        stringArg(req.Input, "cancellationReason"),
	})
	d.finish(conv, req, conf, err, cancelApology)
}

// finish delivers the single terminal outcome for a tool call. On failure the
// caller hears the apology, the busy flag drops so silence detection can
// resume, and the agent still receives a structured error result.
func (d *Dispatcher) finish(conv call.Conversation, req agent.FunctionCallRequest, result interface{}, err error, apology string) {
	if !conv.Alive() {
		log.Printf("dispatch: %s completed after session ended, dropping result", req.FunctionName)
		return
	}
	if err != nil {
		log.Printf("dispatch: %s failed: %v", req.FunctionName, err)
		conv.SetBusy(false)
		conv.Inject(apology)
		conv.Respond(req.FunctionCallID, toolOutput(map[string]string{"error": err.Error()}))
		return
	}
	conv.Respond(req.FunctionCallID, toolOutput(result))
}

// toolOutput serializes a tool result for the wire. Serialization problems
// degrade to an error payload rather than leaving the call unanswered.
func toolOutput(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(b)
}

// stringArg reads a named argument leniently: the model sometimes sends
// numbers where the schema says string (and vice versa for the ssn field).
func stringArg(input map[string]interface{}, key string) string {
	v, ok := input[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
