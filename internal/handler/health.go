package handler

import "net/http"

// HealthResponse is the body of the liveness probe. Provider is the event
// provider's circuit breaker state ("closed", "half-open" or "open").
type HealthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider,omitempty"`
}

// HealthHandler reports liveness. An open breaker does not fail the probe;
// the service still answers from the local catalog.
type HealthHandler struct {
	providerState func() string
}

// NewHealthHandler creates a HealthHandler. providerState may be nil.
func NewHealthHandler(providerState func() string) *HealthHandler {
	return &HealthHandler{providerState: providerState}
}

// HandleHealth is the liveness probe.
//
// HTTP: GET /health and GET /api/health
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.providerState != nil {
		resp.Provider = h.providerState()
	}
	writeJSON(w, http.StatusOK, resp)
}
