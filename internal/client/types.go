package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/GriffinCanCode/playground/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/playground/internal/preview/wire"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("playground api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("playground api: %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// serverFault reports whether err should count against the breaker: transport
// errors and 5xx answers do, client errors do not.
func serverFault(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
}

// Health is the body of GET /health.
type Health struct {
	Status     string               `json:"status"`
	Workspaces int                  `json:"workspaces"`
	Uptime     string               `json:"uptime"`
	Metrics    *monitoring.Snapshot `json:"metrics,omitempty"`
}

// Logs is the log stream of one preview generation.
type Logs struct {
	Generation uint64   `json:"generation"`
	Logs       []string `json:"logs"`
}

// Selection is the last picked element of a workspace.
type Selection struct {
	Selected   bool           `json:"selected"`
	Inspecting bool           `json:"inspecting"`
	Element    *wire.Snapshot `json:"element,omitempty"`
}

// InputResult is the preview state after simulated input.
type InputResult struct {
	Inspecting  bool     `json:"inspecting"`
	Highlighted []string `json:"highlighted"`
}

// DOM is a sanitised snapshot of the live preview body.
type DOM struct {
	Generation uint64 `json:"generation"`
	HTML       string `json:"html"`
}

// Document is the compiled preview document.
type Document struct {
	HTML string
	ETag string
	// NotModified is set when the server answered 304 to a conditional get.
	NotModified bool
}

// Frame is one event pushed over the workspace stream.
type Frame struct {
	Type       string         `json:"type"`
	Message    string         `json:"message,omitempty"`
	Generation uint64         `json:"generation"`
	Selection  *wire.Snapshot `json:"selection,omitempty"`
	Inspecting *bool          `json:"inspecting,omitempty"`
	Timestamp  int64          `json:"timestamp"`
}
