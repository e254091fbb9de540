package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/Suyash-Gaurav/gaas-system/internal/service"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status           string            `json:"status"` // "healthy" or "unhealthy"
	RegisteredAgents int               `json:"registered_agents"`
	LoadedPolicies   int               `json:"loaded_policies"`
	PolicySnapshot   string            `json:"policy_snapshot"`
	Checks           map[string]string `json:"checks"`
	Version          string            `json:"version,omitempty"`
}

// HealthChecker verifies component health.
type HealthChecker struct {
	registry     *service.AgentRegistry
	policies     policyAdmin
	auditService *service.AuditService
	version      string
}

// NewHealthChecker creates a HealthChecker with optional components.
// Pass nil for components that aren't available.
func NewHealthChecker(
	registry *service.AgentRegistry,
	policies policyAdmin,
	auditService *service.AuditService,
	version string,
) *HealthChecker {
	return &HealthChecker{
		registry:     registry,
		policies:     policies,
		auditService: auditService,
		version:      version,
	}
}

// Check performs health checks on all components.
func (h *HealthChecker) Check() HealthResponse {
	checks := make(map[string]string)
	healthy := true

	resp := HealthResponse{Version: h.version}

	if h.registry != nil {
		resp.RegisteredAgents = h.registry.Count()
		checks["agent_registry"] = "ok"
	} else {
		checks["agent_registry"] = "not configured"
	}

	if h.policies != nil {
		resp.LoadedPolicies = h.policies.Count()
		resp.PolicySnapshot = fmt.Sprintf("%016x", h.policies.Fingerprint())
		checks["policy_store"] = "ok"
	} else {
		checks["policy_store"] = "not configured"
	}

	// Audit channel depth: sustained backpressure means decisions are being
	// made faster than they can be persisted.
	if h.auditService != nil {
		depth := h.auditService.ChannelDepth()
		capacity := h.auditService.ChannelCapacity()
		percentFull := 0
		if capacity > 0 {
			percentFull = depth * 100 / capacity
		}

		if percentFull > 90 {
			checks["audit"] = fmt.Sprintf("degraded: %d/%d (%d%%)", depth, capacity, percentFull)
			healthy = false
		} else {
			checks["audit"] = fmt.Sprintf("ok: %d/%d (%d%%)", depth, capacity, percentFull)
		}

		if drops := h.auditService.DroppedRecords(); drops > 0 {
			checks["audit_drops"] = fmt.Sprintf("%d dropped", drops)
		}
	} else {
		checks["audit"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	resp.Checks = checks
	resp.Status = "healthy"
	if !healthy {
		resp.Status = "unhealthy"
	}
	return resp
}

// Handler returns an HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check()

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(health)
	})
}
