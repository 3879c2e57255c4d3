// Package models defines API response envelopes shared by the HTTP handlers.
package models

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusRecorded indicates an event was accepted and recorded.
	APIStatusRecorded APIStatus = "recorded"
	// APIStatusIgnored indicates an event was acknowledged but carried no
	// actionable content.
	APIStatusIgnored APIStatus = "ignored"
)

// APIResponse is the standard JSON envelope returned by all endpoints.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// Recorded creates a response acknowledging a recorded event.
func Recorded(message string) APIResponse {
	return APIResponse{Status: string(APIStatusRecorded), Message: message}
}

// Ignored creates a response acknowledging a dropped event. Webhook providers
// retry on non-2xx, so even unusable payloads are acknowledged this way.
func Ignored(message string) APIResponse {
	return APIResponse{Status: string(APIStatusIgnored), Message: message}
}
