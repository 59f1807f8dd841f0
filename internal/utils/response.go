package utils

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/rohits-web03/softvault/internal/apperr"
)

type Payload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Page is the Data of every paginated listing.
type Page[T any] struct {
	Total int64 `json:"total"`
	Items []T   `json:"items"`
}

// JSONResponse sends a JSON response with given status, success flag, and payload
func JSONResponse(w http.ResponseWriter, status int, payload Payload) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// ErrorResponse answers with the status apperr assigns to err.
func ErrorResponse(w http.ResponseWriter, err error) {
	JSONResponse(w, apperr.Status(err), Payload{
		Success: false,
		Message: apperr.Message(err),
	})
}

// ClientIP is the first X-Forwarded-For hop, else the peer address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
