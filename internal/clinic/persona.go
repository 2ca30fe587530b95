package clinic

import (
	"fmt"
	"time"

	"github.com/BuckyMcYolo/ai-call-center-voice-server/internal/agent"
)

// Greeting is the assistant's opening line, replayed as soon as the call
// connects.
const Greeting = "Hello! Thanks for calling Axon AI medical clinic. I'm Ava, your virtual assistant. How can I help you today?"

const instructions = `Your name is Ava. You are a helpful AI Agent that handles appointment scheduling for Axon AI medical clinic. You can schedule, cancel and reschedule patient appointments. You can also provide information about the clinic, such as hours of operation, location, and services.

## Instructions
1. When a patient calls to make changes to an appointment, you should first fetch the patient's record and verify their identity. If one is not found please verify the details with the patient. If the fetch is successful, you'll receive a patient object with the appointments array that contains the patient's appointments and appointment ids.

2. If the patient wants to cancel an appointment, you should go ahead and cancel the given appointment on the date they are requesting. Then you should prompt them to go ahead and schedule a new appointment. If they are not able to at this time, then just tell them to call back when they are ready.

3. If the patient wants to schedule or reschedule an appointment, you should first fetch the available appointments, then ask the patient when they are free or looking to reschedule for. Once they have chosen an appointment, you should book the appointment for them.

### Additional Details

When listing times, always say them as 10 o clock AM or 2 o clock PM. For instance, 10:00 AM should be said as 10 o clock AM. 2:00 PM should be said as 2 o clock PM. Dates should be read as for instance April fifth twenty twenty five. You should narrow down what appointment dates the patient wants to a narrow range (2-3 days). Do not list off a long range of times just have a natural dialog with the patient about when they are looking to schedule the appointment and suggest dates if they are unsure.

HANG UP ONLY WHEN THE USER SAYS GOODBYE OR INDICATES THEY ARE DONE. DO NOT HANG UP IF THE USER IS JUST SAYING THANKS BUT CONTINUING THE CONVERSATION.`

// clinicTimezone is the civil timezone used when telling the agent what
// "today" means.
const clinicTimezone = "America/Chicago"

// NewSettings builds the immutable per-call agent session configuration:
// codec parameters for the telephony leg, the persona, the tool catalog, and
// the greeting. now is injected so tests can pin the date.
func NewSettings(voiceID string, now time.Time) agent.Settings {
	if loc, err := time.LoadLocation(clinicTimezone); err == nil {
		now = now.In(loc)
	}

	return agent.Settings{
		Audio: agent.AudioSettings{
			Input:  agent.AudioFormat{Encoding: "mulaw", SampleRate: 8000},
			Output: agent.AudioFormat{Encoding: "mulaw", SampleRate: 8000, Container: "none"},
		},
		Agent: agent.AgentSettings{
			Listen: agent.ListenSettings{Model: "nova-3"},
			Speak:  agent.SpeakSettings{Provider: "eleven_labs", VoiceID: voiceID},
			Think: agent.ThinkSettings{
				Provider:     agent.ThinkProvider{Type: "open_ai"},
				Model:        "gpt-4o-mini",
				Instructions: instructions,
				Functions:    toolCatalog(now),
			},
		},
		Context: agent.ContextSettings{
			Messages: []agent.ContextMessage{{Role: "assistant", Content: Greeting}},
			Replay:   true,
		},
	}
}

func toolCatalog(now time.Time) []agent.FunctionSchema {
	return []agent.FunctionSchema{
		{
			Name: "hang_up",
			Description: `End the conversation and close the connection. Call this function when:
- User says goodbye, thank you, etc.
- User indicates they're done ("that's all I need", "I'm all set", etc.)
- User wants to end the conversation

Do not call this function if the user is just saying thanks but continuing the conversation.`,
			Parameters: agent.ParameterSchema{
				Type: "object",
				Properties: map[string]agent.Property{
					"shouldHangUp": {Type: "boolean", Description: "true if the call should be hung up"},
				},
				Required: []string{"shouldHangUp"},
			},
		},
		{
			Name: "get_patient_record",
			Description: `Get the patient record (including appointments) from a patient name, date of birth, and last 4 of social security number. If the patient is not found, you should verify the details you received with the patient.

For instance, if the patient's name is "John Doe", you should clarify the spelling by saying "Is the spelling J-O-H-N D-O-E?"

If the patient record is found you should use the returned appointments array to get the appointment ids for the cancelling function call.`,
			Parameters: agent.ParameterSchema{
				Type: "object",
				Properties: map[string]agent.Property{
					"firstName": {Type: "string", Description: "The patient's first name"},
					"lastName":  {Type: "string", Description: "The patient's last name"},
					"dob":       {Type: "string", Description: "The patient's date of birth. Formatted as YYYY-MM-DD"},
					"ssn":       {Type: "number", Description: "The last 4 digits of the patient's social security number (optional)"},
				},
				Required: []string{"firstName", "lastName", "dob"},
			},
		},
		{
			Name: "get_available_time_slots",
			Description: "Get the available time slots for a given date range. You should call this function first when the caller asks to schedule an appointment. After you get the available time slots, you should present a few options to the caller and ask them to choose one." +
				fmt.Sprintf(" The current date is %s and the current day of the week is %s.",
					now.Format("2006/01/02"), now.Format("Monday")),
			Parameters: agent.ParameterSchema{
				Type: "object",
				Properties: map[string]agent.Property{
					"start":     {Type: "string", Description: "The start date for the time slots to search for. (in ISO 8601 format) CST"},
					"end":       {Type: "string", Description: "The end date for the time slots to search for. (in ISO 8601 format) CST"},
					"patientId": {Type: "string", Description: "The patient's ID. This is returned from the get_patient_record function"},
				},
				Required: []string{"start", "end", "patientId"},
			},
		},
		{
			Name:        "book_time_slot",
			Description: "Book a time slot for a patient. You should call this function after the patient has chosen an available time slot and you have presented them to them. If the booking is successful, you should provide a confirmation message to the patient.",
			Parameters: agent.ParameterSchema{
				Type: "object",
				Properties: map[string]agent.Property{
					"patientId": {Type: "string", Description: "The patient's ID. This is returned from the get_patient_record function"},
					"start":     {Type: "string", Description: "The start date and time for the appointment. (in ISO 8601 format) CST"},
					"end":       {Type: "string", Description: "The end date and time for the appointment. (in ISO 8601 format) CST"},
					"date":      {Type: "string", Description: "The date of the appointment. (in YYYY-MM-DD format)"},
					"notes":     {Type: "string", Description: "Any notes or comments for the appointment"},
				},
				Required: []string{"patientId", "start", "end", "date"},
			},
		},
		{
			Name:        "cancel_appointment",
			Description: "Cancel an existing appointment for a patient. You should call this function after fetching the patient record and confirming which appointment the patient wants cancelled.",
			Parameters: agent.ParameterSchema{
				Type: "object",
				Properties: map[string]agent.Property{
					"appointmentId":      {Type: "string", Description: "The appointment's ID. This is returned from the get_patient_record function"},
					"patientId":          {Type: "string", Description: "The patient's ID. This is returned from the get_patient_record function"},
					"cancellationReason": {Type: "string", Description: "The reason for cancelling the appointment"},
				},
				Required: []string{"appointmentId", "patientId", "cancellationReason"},
			},
		},
	}
}
