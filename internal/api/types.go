package api

// CreateTaskRequest represents the payload for adding a routine task
type CreateTaskRequest struct {
	Text string `json:"text" validate:"required"`
	Type string `json:"type,omitempty"`
	Time string `json:"time,omitempty"`
}

// UpdateTaskRequest represents a partial task update; nil fields are
// left unchanged
type UpdateTaskRequest struct {
	Text      *string `json:"text,omitempty"`
	Type      *string `json:"type,omitempty"`
	Time      *string `json:"time,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// CreateJournalRequest represents the payload for adding a typed
// journal entry
type CreateJournalRequest struct {
	Text string `json:"text" validate:"required"`
}

// CreateVoiceJournalRequest carries a base64 audio recording to be
// transcribed into a journal entry
type CreateVoiceJournalRequest struct {
	AudioData  string `json:"audio_data" validate:"required"` // base64 encoded
	SampleRate int    `json:"sample_rate,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
	Language   string `json:"language,omitempty"`
}

// CreateAppointmentRequest represents the payload for adding an
// appointment
type CreateAppointmentRequest struct {
	Date        string `json:"date" validate:"required"` // "Jan 2, 2006"
	Time        string `json:"time" validate:"required"` // "3:04 PM"
	Title       string `json:"title" validate:"required"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
