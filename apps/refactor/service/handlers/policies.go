package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/pitabwire/util"

	"github.com/antinvestor/codecraft/internal/policy"
	"github.com/antinvestor/codecraft/internal/store"
)

// maxPolicyDocumentSize bounds an imported policy document.
const maxPolicyDocumentSize = 256 * 1024

// PoliciesHandler serves policy profiles and document import.
type PoliciesHandler struct {
	profiles store.ProfileRepository
	cache    *store.ProfileCache
}

// NewPoliciesHandler creates a new policies handler.
func NewPoliciesHandler(profiles store.ProfileRepository, cache *store.ProfileCache) *PoliciesHandler {
	return &PoliciesHandler{profiles: profiles, cache: cache}
}

// PolicyImportRequest carries a YAML or JSON policy document plus
// optional header overrides.
type PolicyImportRequest struct {
	Document string `json:"document"`
	Name     string `json:"name,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Version  string `json:"version,omitempty"`
}

// PolicyImportResponse is returned after a successful import.
type PolicyImportResponse struct {
	ProfileID string `json:"policy_profile_id"`
	Name      string `json:"name"`
	RuleCount int    `json:"rule_count"`
}

// PolicyListResponse is the list response envelope.
type PolicyListResponse struct {
	Profiles []*policy.Profile `json:"profiles"`
	Count    int               `json:"count"`
}

// ServeHTTP handles GET /api/v1/policies and POST /api/v1/policies/import.
func (h *PoliciesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet:
		h.list(w, r)
	case r.Method == http.MethodPost:
		h.importDocument(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Only GET and POST methods are allowed", nil)
	}
}

func (h *PoliciesHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.profiles.List(ctx)
	if err != nil {
		util.Log(ctx).WithError(err).Error("policy list failed")
		writeError(w, http.StatusInternalServerError, "storage_error",
			"Failed to list policy profiles", nil)
		return
	}

	profiles := make([]*policy.Profile, 0, len(records))
	for _, record := range records {
		profiles = append(profiles, record.ToDomain())
	}

	writeJSON(w, http.StatusOK, PolicyListResponse{
		Profiles: profiles,
		Count:    len(profiles),
	})
}

func (h *PoliciesHandler) importDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := util.Log(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPolicyDocumentSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request",
			"Failed to read request body", nil)
		return
	}

	var request PolicyImportRequest
	if unmarshalErr := json.Unmarshal(body, &request); unmarshalErr != nil {
		writeError(w, http.StatusBadRequest, "invalid_json",
			"Failed to parse JSON request body",
			map[string]string{"parse_error": unmarshalErr.Error()})
		return
	}
	if request.Document == "" {
		writeError(w, http.StatusBadRequest, "validation_error",
			"document is required", map[string]string{"field": "document"})
		return
	}

	profile, parseErr := policy.ParseDocument(request.Document, policy.ImportOverrides{
		Name:    request.Name,
		Domain:  request.Domain,
		Version: request.Version,
	})
	if parseErr != nil {
		if errors.Is(parseErr, policy.ErrInvalidDocument) {
			writeError(w, http.StatusBadRequest, "invalid_document",
				parseErr.Error(), nil)
			return
		}
		log.WithError(parseErr).Error("policy document parse failed")
		writeError(w, http.StatusInternalServerError, "parse_error",
			"Failed to parse policy document", nil)
		return
	}

	if createErr := h.profiles.Create(ctx, store.ProfileFromDomain(profile)); createErr != nil {
		log.WithError(createErr).Error("policy profile create failed")
		writeError(w, http.StatusInternalServerError, "storage_error",
			"Failed to store policy profile", nil)
		return
	}

	if h.cache != nil {
		if cacheErr := h.cache.Invalidate(ctx, profile.ProfileID); cacheErr != nil {
			log.WithError(cacheErr).Warn("could not invalidate profile cache")
		}
	}

	log.Info("policy profile imported",
		"profile_id", profile.ProfileID,
		"name", profile.Name,
		"rules", len(profile.Rules),
	)

	writeJSON(w, http.StatusCreated, PolicyImportResponse{
		ProfileID: profile.ProfileID,
		Name:      profile.Name,
		RuleCount: len(profile.Rules),
	})
}
