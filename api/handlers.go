package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// maxAuthBodySize caps auth request bodies. The requests carry three short
// strings; anything near the cap is abuse.
const maxAuthBodySize = 1 << 20

// decodeJSON reads and decodes a JSON request body, writing the error
// response itself when decoding fails.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, maxBytes int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, codeValidation, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		}
		return v, false
	}
	// Trailing content after the JSON document is malformed input, not a
	// second document.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return v, false
	}
	return v, true
}

// Health handles GET /health. It reports per-subsystem checks and answers
// 503 when any of them is down, which is what load balancers key on.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]HealthCheck)
	status := "healthy"
	httpStatus := http.StatusOK

	if p, ok := a.repo.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			checks["database"] = HealthCheck{Status: "unhealthy", Detail: "connection failed"}
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
			a.log.LogAttrs(r.Context(), slog.LevelError, "health check failed",
				slog.String("subsystem", "database"),
				slog.String("error", err.Error()),
			)
		} else {
			checks["database"] = HealthCheck{Status: "healthy"}
		}
	}

	writeJSON(w, httpStatus, HealthResponse{Status: status, Checks: checks})
}
