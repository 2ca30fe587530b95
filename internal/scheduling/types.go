package scheduling

// PatientQuery identifies a patient for record lookup.
type PatientQuery struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DateOfBirth string `json:"dateOfBirth"`
	Last4SSN    string `json:"last4SSN,omitempty"`
}

// Appointment is one scheduled visit on a patient record.
type Appointment struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Notes     string `json:"notes,omitempty"`
}

// PatientRecord is the lookup result, including the appointment ids the
// agent needs for cancellation.
type PatientRecord struct {
	ID           string        `json:"id"`
	FirstName    string        `json:"firstName"`
	LastName     string        `json:"lastName"`
	DateOfBirth  string        `json:"dateOfBirth"`
	Appointments []Appointment `json:"appointments"`
}

// SlotQuery is a search window for open appointment slots.
type SlotQuery struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	PatientID string `json:"patientId,omitempty"`
	Duration  int    `json:"duration,omitempty"`
}

// TimeSlot is one bookable window.
type TimeSlot struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// BookingRequest reserves a slot for a patient.
type BookingRequest struct {
	PatientID string `json:"patientId"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Notes     string `json:"notes,omitempty"`
}

// BookingConfirmation acknowledges a successful booking.
type BookingConfirmation struct {
	AppointmentID string `json:"appointmentId"`
	Message       string `json:"message"`
}

// CancelRequest cancels an existing appointment.
type CancelRequest struct {
	AppointmentID string `json:"appointmentId"`
	PatientID     string `json:"patientId"`
	Reason        string `json:"reason,omitempty"`
}

// CancelConfirmation acknowledges a successful cancellation.
type CancelConfirmation struct {
	Message string `json:"message"`
}
