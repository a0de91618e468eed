package dto

import "time"

// MessageLevel classifies a user-facing notice.
type MessageLevel string

const (
	MessageSuccess MessageLevel = "success"
	MessageInfo    MessageLevel = "info"
	MessageWarning MessageLevel = "warning"
	MessageError   MessageLevel = "error"
)

// Message is one user-facing notice attached to a response.
type Message struct {
	Level MessageLevel `json:"level" example:"warning"`
	Text  string       `json:"text" example:"Returned 2 day(s) late. Fine: 2000 UGX"`
}

// Messages collects notices in the order they were produced.
type Messages []Message

// Add appends a notice.
func (m *Messages) Add(level MessageLevel, text string) {
	*m = append(*m, Message{Level: level, Text: text})
}

// Success appends a success notice
func (m *Messages) Success(text string) { m.Add(MessageSuccess, text) }

// Warning appends a warning notice
func (m *Messages) Warning(text string) { m.Add(MessageWarning, text) }

// Error appends an error notice
func (m *Messages) Error(text string) { m.Add(MessageError, text) }

// Texts returns the notice texts at the given level.
func (m Messages) Texts(level MessageLevel) []string {
	out := make([]string, 0, len(m))
	for _, msg := range m {
		if msg.Level == level {
			out = append(out, msg.Text)
		}
	}
	return out
}

// APIResponse is the envelope every endpoint returns.
type APIResponse struct {
	Success   bool         `json:"success" example:"true"`
	Message   string       `json:"message,omitempty" example:"Operation completed successfully"`
	Data      interface{}  `json:"data,omitempty"`
	Messages  Messages     `json:"messages,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp" example:"2026-04-23T12:01:05.123Z"`
}

// NewSuccessResponse wraps data in a successful envelope.
func NewSuccessResponse(data interface{}, message string) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// WithMessages attaches user-facing notices.
func (r APIResponse) WithMessages(msgs Messages) APIResponse {
	r.Messages = msgs
	return r
}
