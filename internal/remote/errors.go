package remote

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gosuda/vibetodo/internal/domain"
)

// APIError is a non-2xx response. It unwraps to the domain error matching
// its status so callers can use errors.Is.
type APIError struct {
	Service string
	Status  int
	Code    string
	Message string
	kind    error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %d %s: %s", e.Service, e.Status, e.Code, msg)
	}
	return fmt.Sprintf("%s: %d: %s", e.Service, e.Status, msg)
}

func (e *APIError) Unwrap() error { return e.kind }

// Classify maps an HTTP status to the error kind callers branch on.
//
// Authentication, throttling and server faults all mean the backend cannot
// serve the request right now; nothing is retried here.
func Classify(status int) error {
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		return domain.ErrValidation
	default:
		return domain.ErrBackendUnavailable
	}
}

func newAPIError(service string, status int, body []byte) *APIError {
	e := &APIError{Service: service, Status: status, kind: Classify(status)}

	// Notion: {"object":"error","code":"...","message":"..."}
	// Graph:  {"error":{"code":"...","message":"..."}}
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		e.Code, e.Message = payload.Code, payload.Message
		if payload.Error != nil {
			e.Code, e.Message = payload.Error.Code, payload.Error.Message
		}
	} else {
		e.Message = strings.TrimSpace(string(body))
		if len(e.Message) > 200 {
			e.Message = e.Message[:200]
		}
	}

	return e
}
