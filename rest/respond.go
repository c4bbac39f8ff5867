package rest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/ezrec/nesbridge/bridge"
	"github.com/ezrec/nesbridge/ops"
)

// statusFor maps the bridge error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, bridge.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, bridge.ErrUnsafe):
		return http.StatusForbidden
	case errors.Is(err, bridge.ErrEngineUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, bridge.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, bridge.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ops.ErrNotSupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(value)
	if err != nil {
		log.Printf("rest: encode response: %v", err)
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}
