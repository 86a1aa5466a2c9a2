package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pitabwire/util"
	"github.com/rs/xid"

	appconfig "github.com/antinvestor/codecraft/apps/refactor/config"
	"github.com/antinvestor/codecraft/internal/store"
	"github.com/antinvestor/codecraft/internal/workflow"
)

// supportedLanguages are the language tags the service accepts.
//
//nolint:gochecknoglobals // fixed language registry
var supportedLanguages = map[string]bool{
	"python": true, "go": true, "javascript": true, "typescript": true,
	"java": true, "ruby": true, "rust": true, "terraform": true,
	"json": true, "yaml": true,
}

// RefactorHandler handles refactor session submissions.
type RefactorHandler struct {
	cfg          *appconfig.RefactorConfig
	orchestrator workflow.Orchestrator
	sessions     store.SessionRepository
	profiles     store.ProfileRepository
	users        store.UserRepository
}

// NewRefactorHandler creates a new refactor handler.
func NewRefactorHandler(
	cfg *appconfig.RefactorConfig,
	orchestrator workflow.Orchestrator,
	sessions store.SessionRepository,
	profiles store.ProfileRepository,
	users store.UserRepository,
) *RefactorHandler {
	return &RefactorHandler{
		cfg:          cfg,
		orchestrator: orchestrator,
		sessions:     sessions,
		profiles:     profiles,
		users:        users,
	}
}

// RefactorRequest represents an incoming refactor submission.
type RefactorRequest struct {
	// Code is the source snippet to evaluate and refactor (required).
	Code string `json:"code"`

	// Language is the snippet's programming language (required).
	Language string `json:"language"`

	// PolicyProfileID names the policy profile to evaluate against (required).
	PolicyProfileID string `json:"policy_profile_id"`

	// FilePath is an optional hint used for prompts and test execution.
	FilePath string `json:"file_path,omitempty"`

	// RequestedBy identifies who made the request (optional).
	RequestedBy string `json:"requested_by,omitempty"`

	// ForceRefactor runs the refactoring step even without violations.
	ForceRefactor bool `json:"force_refactor,omitempty"`
}

// RefactorResponse is returned on successful completion.
type RefactorResponse struct {
	SessionID      string                     `json:"session_id"`
	Status         string                     `json:"status"`
	OriginalCode   string                     `json:"original_code"`
	RefactoredCode string                     `json:"refactored_code"`
	Suggestions    []workflow.Suggestion      `json:"suggestions"`
	Violations     []workflow.PolicyViolation `json:"violations"`
	Metric         workflow.ComplianceMetric  `json:"metric"`
	Warnings       []string                   `json:"warnings"`
}

// ServeHTTP handles POST /api/v1/refactor.
func (h *RefactorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := util.Log(ctx)

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Only POST method is allowed", nil)
		return
	}

	bodyReader := http.MaxBytesReader(w, r.Body, int64(h.cfg.MaxCodeSize)+4096)
	body, err := io.ReadAll(bodyReader)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request_too_large",
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", h.cfg.MaxCodeSize), nil)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request",
			"Failed to read request body", nil)
		return
	}

	var request RefactorRequest
	if unmarshalErr := json.Unmarshal(body, &request); unmarshalErr != nil {
		writeError(w, http.StatusBadRequest, "invalid_json",
			"Failed to parse JSON request body",
			map[string]string{"parse_error": unmarshalErr.Error()})
		return
	}

	if validationErr := h.validateRequest(&request); validationErr != nil {
		writeError(w, http.StatusBadRequest, "validation_error",
			validationErr.Error(), map[string]string{"field": validationErr.Field})
		return
	}

	if _, profileErr := h.profiles.GetByID(ctx, request.PolicyProfileID); profileErr != nil {
		if errors.Is(profileErr, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile_not_found",
				fmt.Sprintf("Policy profile %s does not exist", request.PolicyProfileID), nil)
			return
		}
		log.WithError(profileErr).Error("profile lookup failed")
		writeError(w, http.StatusInternalServerError, "storage_error",
			"Failed to look up policy profile", nil)
		return
	}

	requestedBy := request.RequestedBy
	if requestedBy != "" && h.users != nil {
		user, userErr := h.users.Upsert(ctx, requestedBy)
		if userErr != nil {
			log.WithError(userErr).Warn("could not upsert requesting user")
		} else {
			requestedBy = user.ID
		}
	}

	sessionID := xid.New().String()
	session := &store.RefactorSession{
		ID:           sessionID,
		ProfileID:    request.PolicyProfileID,
		RequestedBy:  requestedBy,
		Language:     request.Language,
		FilePath:     request.FilePath,
		Status:       store.SessionStatusPending,
		OriginalCode: request.Code,
	}
	if createErr := h.sessions.Create(ctx, session); createErr != nil {
		log.WithError(createErr).Error("could not create session")
		writeError(w, http.StatusInternalServerError, "storage_error",
			"Failed to create refactor session", nil)
		return
	}

	result, runErr := h.orchestrator.RunSession(ctx, workflow.RunInput{
		SessionID:     sessionID,
		ProfileID:     request.PolicyProfileID,
		Code:          request.Code,
		Language:      request.Language,
		FilePath:      request.FilePath,
		ForceRefactor: request.ForceRefactor,
	})
	if runErr != nil {
		log.WithError(runErr).Error("session run failed", "session_id", sessionID)
		writeError(w, http.StatusUnprocessableEntity, "session_failed",
			runErr.Error(), map[string]string{"session_id": sessionID})
		return
	}

	log.Info("session completed",
		"session_id", sessionID,
		"profile_id", request.PolicyProfileID,
		"violations", len(result.Violations),
	)

	writeJSON(w, http.StatusCreated, RefactorResponse{
		SessionID:      sessionID,
		Status:         string(store.SessionStatusCompleted),
		OriginalCode:   request.Code,
		RefactoredCode: result.RefactoredCode,
		Suggestions:    result.Suggestions,
		Violations:     result.Violations,
		Metric:         result.Metric,
		Warnings:       result.Warnings,
	})
}

// validateRequest validates the refactor submission.
func (h *RefactorHandler) validateRequest(req *RefactorRequest) *ValidationError {
	if req.Code == "" {
		return &ValidationError{Field: "code", Message: "code is required"}
	}
	if len(req.Code) > h.cfg.MaxCodeSize {
		return &ValidationError{
			Field:   "code",
			Message: fmt.Sprintf("code must be %d bytes or less", h.cfg.MaxCodeSize),
		}
	}
	if req.Language == "" {
		return &ValidationError{Field: "language", Message: "language is required"}
	}
	if !supportedLanguages[req.Language] {
		return &ValidationError{Field: "language", Message: "unsupported language"}
	}
	if req.PolicyProfileID == "" {
		return &ValidationError{
			Field:   "policy_profile_id",
			Message: "policy_profile_id is required",
		}
	}
	return nil
}
