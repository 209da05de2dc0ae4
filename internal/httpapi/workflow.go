// Package httpapi exposes the orchestrator over HTTP: a run endpoint
// for the request-handling layer and a websocket stream of step events
// for the coaching UI. Conditional composition is library-only since
// predicates are code, not wire data.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/resumeforge/orchestrator/internal/workflow"
)

// WorkflowHandler serves workflow run requests.
type WorkflowHandler struct {
	engine    *workflow.Engine
	logger    *zap.Logger
	authToken string
}

// NewWorkflowHandler creates a handler. An empty authToken disables
// auth.
func NewWorkflowHandler(engine *workflow.Engine, logger *zap.Logger, authToken string) *WorkflowHandler {
	return &WorkflowHandler{engine: engine, logger: logger, authToken: authToken}
}

// RegisterRoutes registers the run and health endpoints.
func (h *WorkflowHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/workflows/run", h.handleRun)
	mux.HandleFunc("/health", h.handleHealth)
}

type stepPayload struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Type      string                 `json:"type"`
	ModelTier string                 `json:"model_tier,omitempty"`
	Input     map[string]interface{} `json:"input"`
}

type runRequest struct {
	Mode      string        `json:"mode"`
	SessionID string        `json:"session_id"`
	UserID    string        `json:"user_id"`
	Steps     []stepPayload `json:"steps"`
}

type runResponse struct {
	Success    bool                `json:"success"`
	Results    []workflow.Outcome  `json:"results"`
	TokenUsage workflow.TokenUsage `json:"token_usage"`
	DurationMs int64               `json:"duration_ms"`
}

func (h *WorkflowHandler) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req runRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id required")
		return
	}
	if len(req.Steps) == 0 {
		writeError(w, http.StatusBadRequest, "steps required")
		return
	}

	steps := make([]*workflow.Step, len(req.Steps))
	for i, p := range req.Steps {
		steps[i] = &workflow.Step{
			ID:        p.ID,
			Name:      p.Name,
			Type:      workflow.StepType(p.Type),
			ModelTier: workflow.ModelTier(p.ModelTier),
			Input:     p.Input,
		}
	}
	wctx := &workflow.Context{SessionID: req.SessionID, UserID: req.UserID}

	var res *workflow.Result
	switch req.Mode {
	case "sequential", "":
		res = h.engine.RunSequential(r.Context(), steps, wctx)
	case "parallel":
		res = h.engine.RunParallel(r.Context(), steps, wctx)
	default:
		writeError(w, http.StatusBadRequest, "mode must be sequential or parallel")
		return
	}

	h.logger.Info("Run request served",
		zap.String("session_id", req.SessionID),
		zap.String("mode", req.Mode),
		zap.Int("steps", len(steps)),
		zap.Bool("success", res.Success),
	)
	writeJSON(w, http.StatusOK, runResponse{
		Success:    res.Success,
		Results:    res.Results,
		TokenUsage: res.TokenUsage,
		DurationMs: res.Duration.Milliseconds(),
	})
}

func (h *WorkflowHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *WorkflowHandler) authorized(r *http.Request) bool {
	if h.authToken == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == h.authToken
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
