package dto

// Envelope is the success response wrapper shared by every endpoint.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// OK wraps data in a success envelope.
func OK(message string, data interface{}) Envelope {
	return Envelope{Success: true, Message: message, Data: data}
}
