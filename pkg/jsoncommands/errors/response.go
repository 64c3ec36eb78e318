package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorResponse is the body returned to clients when a request fails
type ErrorResponse struct {
	Error ErrorResponseData `json:"Error"`
}

type ErrorResponseData struct {
	Message  *string   `json:"Message"`
	Metadata *Metadata `json:"Metadata,omitempty"`
}

// LegacyErrorResponse is the flat error body used by older clients
type LegacyErrorResponse struct {
	UserMessage   *string `json:"UserMessage"`
	SystemMessage *string `json:"SystemMessage"`
}

// NewErrorResponse creates the response body for a failed request. Metadata is
// only included when there is a user message to go with it.
func NewErrorResponse(userMessage, systemMessage *string, legacy bool) any {
	if legacy {
		return &LegacyErrorResponse{
			UserMessage:   userMessage,
			SystemMessage: systemMessage,
		}
	}

	if userMessage == nil {
		return &ErrorResponse{
			Error: ErrorResponseData{
				Message: systemMessage,
			},
		}
	}

	return &ErrorResponse{
		Error: ErrorResponseData{
			Message:  userMessage,
			Metadata: ParseMetadata(systemMessage),
		},
	}
}

const ErrorResponseContentType string = "application/json; charset=utf-8"

// WriteErrorResponse writes a serialized error response to w
func WriteErrorResponse(w http.ResponseWriter, code int, response any) {
	w.Header().Add("Content-Type", ErrorResponseContentType)
	w.WriteHeader(code)

	b, err := json.Marshal(response)
	if err == nil {
		w.Write(b)
	}
}

// NewErrorFromResponse converts an error response received from a json
// commands service back into an error
func NewErrorFromResponse(code int, body []byte) error {
	response := &struct {
		Error         *ErrorResponseData `json:"Error"`
		UserMessage   *string            `json:"UserMessage"`
		SystemMessage *string            `json:"SystemMessage"`
	}{}

	err := json.Unmarshal(body, response)
	if err != nil {
		return fmt.Errorf("failed to process error response with status code %d: %w", code, err)
	}

	msg := http.StatusText(code)
	if response.Error != nil && response.Error.Message != nil {
		msg = *response.Error.Message
	} else if response.UserMessage != nil {
		msg = *response.UserMessage
	} else if response.SystemMessage != nil {
		msg = *response.SystemMessage
	}

	if code >= http.StatusInternalServerError {
		return &ServerError{msg: msg, code: code}
	}

	return NewClientError(msg, WithStatusCode(code))
}

// ServerError is returned by clients when the service failed with a 5xx status
type ServerError struct {
	msg  string
	code int
}

func (se *ServerError) Error() string   { return se.msg }
func (se *ServerError) StatusCode() int { return se.code }
