package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antinvestor/codecraft/internal/policy"
	"github.com/antinvestor/codecraft/internal/store"
)

const tabPolicyYAML = `
profile:
  name: Style Guide
  domain: style
rules:
  - rule_key: no-tabs
    description: Indentation must use spaces
    expression: "\t"
    severity: high
`

func TestPoliciesHandler_Import(t *testing.T) {
	profiles := store.NewMemoryProfileRepository()
	handler := NewPoliciesHandler(profiles, nil)

	body, err := json.Marshal(PolicyImportRequest{Document: tabPolicyYAML})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/policies/import", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var response PolicyImportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.NotEmpty(t, response.ProfileID)
	require.Equal(t, "Style Guide", response.Name)
	require.Equal(t, 1, response.RuleCount)

	stored, err := profiles.GetByID(context.Background(), response.ProfileID)
	require.NoError(t, err)
	require.Len(t, stored.Rules, 1)
	require.Equal(t, "no-tabs", stored.Rules[0].RuleKey)
}

func TestPoliciesHandler_ImportOverrides(t *testing.T) {
	profiles := store.NewMemoryProfileRepository()
	handler := NewPoliciesHandler(profiles, nil)

	body, err := json.Marshal(PolicyImportRequest{
		Document: tabPolicyYAML,
		Name:     "Corporate Style",
		Version:  "2.1.0",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/policies/import", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var response PolicyImportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Equal(t, "Corporate Style", response.Name)
}

func TestPoliciesHandler_ImportInvalidDocument(t *testing.T) {
	testCases := []struct {
		name     string
		document string
		code     string
	}{
		{
			name:     "missing rule_key",
			document: "rules:\n  - description: something\n",
			code:     "invalid_document",
		},
		{
			name:     "malformed yaml",
			document: "rules:\n  - [unterminated\n    nested",
			code:     "invalid_document",
		},
		{
			name:     "empty document",
			document: "",
			code:     "validation_error",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewPoliciesHandler(store.NewMemoryProfileRepository(), nil)

			body, err := json.Marshal(PolicyImportRequest{Document: tc.document})
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/policies/import", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var response ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
			require.Equal(t, tc.code, response.Error)
		})
	}
}

func TestPoliciesHandler_List(t *testing.T) {
	profiles := store.NewMemoryProfileRepository()
	require.NoError(t, profiles.Create(context.Background(), store.ProfileFromDomain(&policy.Profile{
		ProfileID: "prof-a",
		Name:      "Profile A",
		Rules:     []policy.Rule{{RuleID: "r-1", RuleKey: "no-tabs", Expression: `\t`}},
	})))
	handler := NewPoliciesHandler(profiles, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/policies", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var response PolicyListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Equal(t, 1, response.Count)
	require.Equal(t, "Profile A", response.Profiles[0].Name)
	require.Len(t, response.Profiles[0].Rules, 1)
}

func TestSessionsHandler_GetAndList(t *testing.T) {
	sessions := store.NewMemorySessionRepository()
	require.NoError(t, sessions.Create(context.Background(), &store.RefactorSession{
		ID:           "sess-1",
		ProfileID:    "prof-a",
		Language:     "python",
		OriginalCode: "x = 1",
	}))
	handler := NewSessionsHandler(sessions)

	t.Run("get by id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/sess-1", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var session store.RefactorSession
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
		require.Equal(t, "sess-1", session.ID)
		require.Equal(t, store.SessionStatusPending, session.Status)
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/sess-missing", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var response SessionListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		require.Equal(t, 1, response.Count)
	})

	t.Run("bad limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?limit=zero", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
