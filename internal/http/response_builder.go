// This file implements the Builder Pattern for JSON responses. It also sets
// the HX-Trigger header so HTMX clients know which views to re-query.

package http

import (
	"encoding/json"
	"net/http"
)

// Event names sent in HX-Trigger.
const (
	TriggerExpenseCreated      = "expense:created"
	TriggerExpenseDeleted      = "expense:deleted"
	TriggerContributionCreated = "contribution:created"
	TriggerContributionDeleted = "contribution:deleted"
	TriggerAttachmentCreated   = "attachment:created"
	TriggerDashboardRefresh    = "dashboard:refresh"
	TriggerSignedOut           = "auth:signed-out"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	triggers   map[string]interface{}
	statusCode int
	body       interface{}
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		triggers:   make(map[string]interface{}),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named trigger with optional data to the HX-Trigger header.
func (b *ResponseBuilder) Trigger(name string, data interface{}) *ResponseBuilder {
	if data == nil {
		data = struct{}{}
	}
	b.triggers[name] = data
	return b
}

// TriggerRecord adds name with the record id, followed by a dashboard refresh.
func (b *ResponseBuilder) TriggerRecord(name, id string) *ResponseBuilder {
	return b.Trigger(name, map[string]string{"id": id}).Trigger(TriggerDashboardRefresh, nil)
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v interface{}) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		if triggerJSON, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string      `json:"error"`
	Message   string      `json:"message"`
	Field     string      `json:"field,omitempty"`
	SignInURL string      `json:"sign_in_url,omitempty"`
	Stored    interface{} `json:"stored,omitempty"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, code, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(ErrorBody{Error: code, Message: message})
}
