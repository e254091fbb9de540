package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Suyash-Gaurav/gaas-system/internal/clock"
	"github.com/Suyash-Gaurav/gaas-system/internal/domain/actionlog"
	"github.com/Suyash-Gaurav/gaas-system/internal/domain/agent"
	"github.com/Suyash-Gaurav/gaas-system/internal/domain/policy"
	"github.com/Suyash-Gaurav/gaas-system/internal/service"
)

const apiVersion = "1.0.0"

// maxEffectiveDateHorizon rejects policies scheduled more than a year out.
const maxEffectiveDateHorizon = 365 * 24 * time.Hour

// Handler serves the GaaS HTTP API.
type Handler struct {
	registry    *service.AgentRegistry
	compliance  *service.ComplianceService
	enforcement *service.EnforcementService
	reports     *service.ReportService
	policies    policyAdmin
	actionLogs  actionlog.Store
	clock       clock.Clock
	metrics     *Metrics
	validate    *validator.Validate
	uploadAuth  *UploadKeyAuth // nil disables upload authentication

	logCounter atomic.Int64
}

// policyAdmin is the policy store surface the upload and health endpoints need.
type policyAdmin interface {
	SavePolicy(ctx context.Context, p *policy.Policy) error
	Count() int
	Fingerprint() uint64
}

// NewHandler creates the API handler.
func NewHandler(
	registry *service.AgentRegistry,
	compliance *service.ComplianceService,
	enforcement *service.EnforcementService,
	reports *service.ReportService,
	policies policyAdmin,
	actionLogs actionlog.Store,
	clk clock.Clock,
	metrics *Metrics,
	uploadAuth *UploadKeyAuth,
) *Handler {
	return &Handler{
		registry:    registry,
		compliance:  compliance,
		enforcement: enforcement,
		reports:     reports,
		policies:    policies,
		actionLogs:  actionLogs,
		clock:       clk,
		metrics:     metrics,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		uploadAuth:  uploadAuth,
	}
}

// errorResponse is the JSON error body for all endpoints.
type errorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: true, Message: message})
}

// Index handles GET / with API information.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Governance-as-a-Service (GaaS) Backend",
		"version": apiVersion,
		"endpoints": []string{
			"/register_agent",
			"/submit_action_log",
			"/enforcement_decision",
			"/upload_policy",
			"/compliance_report",
		},
	})
}

// agentRegistrationRequest is the POST /register_agent body.
type agentRegistrationRequest struct {
	AgentID      string   `json:"agent_id" validate:"required,min=3,max=50"`
	Name         string   `json:"name" validate:"required,min=1,max=100"`
	Capabilities []string `json:"capabilities" validate:"required,min=1"`
	AgentType    string   `json:"agent_type" validate:"required"`
	ContactInfo  string   `json:"contact_info,omitempty"`
}

// agentRegistrationResponse is the POST /register_agent response.
type agentRegistrationResponse struct {
	Success      bool         `json:"success"`
	AgentID      string       `json:"agent_id"`
	Status       agent.Status `json:"status"`
	RegisteredAt time.Time    `json:"registration_timestamp"`
	Message      string       `json:"message"`
}

// RegisterAgent handles POST /register_agent.
func (h *Handler) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req agentRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	registered, err := h.registry.Register(agent.Agent{
		ID:           req.AgentID,
		Name:         req.Name,
		Capabilities: req.Capabilities,
		AgentType:    req.AgentType,
		ContactInfo:  req.ContactInfo,
	})
	if err != nil {
		if errors.Is(err, agent.ErrAgentExists) {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("Agent with ID %s already exists", req.AgentID))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.metrics.RegisteredAgents.Set(float64(h.registry.Count()))

	LoggerFromContext(r.Context()).Info("agent registered",
		"agent_id", registered.ID,
		"agent_type", registered.AgentType,
	)

	writeJSON(w, http.StatusOK, agentRegistrationResponse{
		Success:      true,
		AgentID:      registered.ID,
		Status:       registered.Status,
		RegisteredAt: registered.RegisteredAt,
		Message:      "Agent registered successfully",
	})
}

// actionLogRequest is the POST /submit_action_log body.
type actionLogRequest struct {
	AgentID           string         `json:"agent_id" validate:"required"`
	ActionType        string         `json:"action_type" validate:"required,oneof=data_access system_modification user_interaction external_api_call"`
	ActionDescription string         `json:"action_description" validate:"required"`
	Timestamp         time.Time      `json:"timestamp" validate:"required"`
	Context           map[string]any `json:"context"`
	ResourceAccessed  string         `json:"resource_accessed,omitempty"`
}

// actionLogResponse is the POST /submit_action_log response.
type actionLogResponse struct {
	Success            bool     `json:"success"`
	LogID              string   `json:"log_id"`
	Message            string   `json:"message"`
	ViolationsDetected []string `json:"violations_detected"`
}

// SubmitActionLog handles POST /submit_action_log.
func (h *Handler) SubmitActionLog(w http.ResponseWriter, r *http.Request) {
	var req actionLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	if _, err := h.registry.RequireActive(req.AgentID); err != nil {
		writeAgentError(w, req.AgentID, err)
		return
	}

	violations, err := h.compliance.Evaluate(r.Context(),
		req.AgentID, req.ActionType, req.ActionDescription, req.Context)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logID := h.nextLogID()
	rec := actionlog.Record{
		LogID:            logID,
		AgentID:          req.AgentID,
		ActionType:       req.ActionType,
		Description:      req.ActionDescription,
		Timestamp:        req.Timestamp,
		ResourceAccessed: req.ResourceAccessed,
		ViolationCount:   len(violations),
	}
	messages := make([]string, 0, len(violations))
	for _, v := range violations {
		rec.ViolationTypes = append(rec.ViolationTypes, v.ViolationType)
		messages = append(messages, fmt.Sprintf("%s: %s", v.ViolationType, v.Description))
		h.metrics.ViolationsTotal.WithLabelValues(string(v.Severity)).Inc()
	}

	if err := h.actionLogs.Append(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store action log: "+err.Error())
		return
	}

	LoggerFromContext(r.Context()).Info("action log submitted",
		"agent_id", req.AgentID,
		"log_id", logID,
		"violations", len(violations),
	)

	writeJSON(w, http.StatusOK, actionLogResponse{
		Success:            true,
		LogID:              logID,
		Message:            "Action log submitted successfully",
		ViolationsDetected: messages,
	})
}

// nextLogID generates a unique action log ID.
func (h *Handler) nextLogID() string {
	n := h.logCounter.Add(1)
	return fmt.Sprintf("LOG_%s_%06d", h.clock.Now().Format("20060102150405"), n)
}

// EnforcementDecision handles GET /enforcement_decision.
// Query parameters: agent_id, proposed_action, context (JSON object string).
func (h *Handler) EnforcementDecision(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	proposedAction := r.URL.Query().Get("proposed_action")
	if agentID == "" || proposedAction == "" {
		writeError(w, http.StatusBadRequest, "agent_id and proposed_action are required")
		return
	}

	if _, err := h.registry.Get(agentID); err != nil {
		writeAgentError(w, agentID, err)
		return
	}

	reqContext := map[string]any{}
	if raw := r.URL.Query().Get("context"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &reqContext); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON format for context parameter")
			return
		}
	}

	actionType := service.ClassifyActionType(proposedAction)
	violations, err := h.compliance.Evaluate(r.Context(), agentID, actionType, proposedAction, reqContext)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	decision := h.enforcement.Decide(r.Context(), agentID, proposedAction, violations)
	h.metrics.DecisionsTotal.WithLabelValues(string(decision.Action)).Inc()
	for _, v := range violations {
		h.metrics.ViolationsTotal.WithLabelValues(string(v.Severity)).Inc()
	}

	writeJSON(w, http.StatusOK, decision)
}

// policyUploadRequest is the POST /upload_policy body.
type policyUploadRequest struct {
	PolicyID      string                 `json:"policy_id" validate:"required"`
	PolicyName    string                 `json:"policy_name" validate:"required"`
	PolicyType    string                 `json:"policy_type" validate:"required,oneof=access_control data_governance compliance security"`
	PolicyContent policy.DocumentContent `json:"policy_content"`
	Version       string                 `json:"version" validate:"required"`
	EffectiveDate time.Time              `json:"effective_date" validate:"required"`
	ExpiryDate    *time.Time             `json:"expiry_date,omitempty"`
}

// policyUploadResponse is the POST /upload_policy response.
type policyUploadResponse struct {
	Success          bool      `json:"success"`
	PolicyID         string    `json:"policy_id"`
	Version          string    `json:"version"`
	UploadTimestamp  time.Time `json:"upload_timestamp"`
	Message          string    `json:"message"`
	ValidationErrors []string  `json:"validation_errors"`
}

// UploadPolicy handles POST /upload_policy.
func (h *Handler) UploadPolicy(w http.ResponseWriter, r *http.Request) {
	if h.uploadAuth != nil {
		if !h.uploadAuth.Authorize(r) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="gaas"`)
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
	}

	var req policyUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	now := h.clock.Now()
	var validationErrors []string

	if len(req.PolicyContent.Rules) == 0 &&
		len(req.PolicyContent.AgentScope) == 0 &&
		len(req.PolicyContent.ActionTypes) == 0 &&
		len(req.PolicyContent.Conditions) == 0 {
		validationErrors = append(validationErrors, "Policy content cannot be empty")
	}
	if req.EffectiveDate.After(now.Add(maxEffectiveDateHorizon)) {
		validationErrors = append(validationErrors, "Effective date cannot be more than 1 year in the future")
	}
	if req.ExpiryDate != nil && !req.ExpiryDate.After(req.EffectiveDate) {
		validationErrors = append(validationErrors, "Expiry date must be after effective date")
	}

	if len(validationErrors) == 0 {
		doc := policy.Document{
			PolicyID:        req.PolicyID,
			PolicyName:      req.PolicyName,
			PolicyType:      req.PolicyType,
			Version:         req.Version,
			PolicyContent:   req.PolicyContent,
			EffectiveDate:   req.EffectiveDate.Format(time.RFC3339),
			UploadTimestamp: now.Format(time.RFC3339),
		}
		if req.ExpiryDate != nil {
			expiry := req.ExpiryDate.Format(time.RFC3339)
			doc.ExpiryDate = &expiry
		}

		parsed, err := doc.Parse()
		if err != nil {
			validationErrors = append(validationErrors, err.Error())
		} else if err := h.policies.SavePolicy(r.Context(), parsed); err != nil {
			validationErrors = append(validationErrors, "Failed to save policy to storage")
		}
	}

	success := len(validationErrors) == 0
	message := "Policy uploaded successfully"
	if !success {
		message = "Policy upload failed"
	}

	if success {
		h.metrics.ActivePolicies.Set(float64(h.policies.Count()))
	}
	LoggerFromContext(r.Context()).Info("policy upload",
		"policy_id", req.PolicyID,
		"version", req.Version,
		"success", success,
	)

	writeJSON(w, http.StatusOK, policyUploadResponse{
		Success:          success,
		PolicyID:         req.PolicyID,
		Version:          req.Version,
		UploadTimestamp:  now,
		Message:          message,
		ValidationErrors: orEmpty(validationErrors),
	})
}

// ComplianceReport handles GET /compliance_report.
// Query parameters: start_date, end_date (RFC3339), agent_id, include_violations.
func (h *Handler) ComplianceReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := parseReportDate(q.Get("start_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format. Use ISO format (YYYY-MM-DDTHH:MM:SS)")
		return
	}
	end, err := parseReportDate(q.Get("end_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format. Use ISO format (YYYY-MM-DDTHH:MM:SS)")
		return
	}
	if !start.Before(end) {
		writeError(w, http.StatusBadRequest, "Start date must be before end date")
		return
	}

	agentID := q.Get("agent_id")
	if agentID != "" {
		if _, err := h.registry.Get(agentID); err != nil {
			writeAgentError(w, agentID, err)
			return
		}
	}

	includeViolations := true
	if raw := q.Get("include_violations"); raw != "" {
		includeViolations, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "include_violations must be a boolean")
			return
		}
	}

	report, err := h.reports.Generate(r.Context(), start, end, agentID, includeViolations)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// parseReportDate accepts RFC3339 and naive ISO timestamps.
func parseReportDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", s)
}

// writeAgentError maps registry errors to API status codes.
func writeAgentError(w http.ResponseWriter, agentID string, err error) {
	switch {
	case errors.Is(err, agent.ErrAgentNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("Agent %s is not registered", agentID))
	case errors.Is(err, agent.ErrAgentNotActive):
		writeError(w, http.StatusForbidden, fmt.Sprintf("Agent %s is not active", agentID))
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// validationMessage flattens validator errors into one message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, e := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", e.Field(), e.Tag()))
		}
		data, _ := json.Marshal(msgs)
		return "validation failed: " + string(data)
	}
	return err.Error()
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
