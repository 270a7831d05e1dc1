package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backend(t *testing.T, status int, body any) *api.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, api.EndpointPrequalification, r.URL.Path)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return api.NewClient(srv.URL, nil)
}

func TestSyncApplicationRestoresProgress(t *testing.T) {
	s := NewStore()
	client := backend(t, http.StatusOK, map[string]any{"data": map[string]any{
		"id":              "app-42",
		"current_step":    3,
		"company_name":    "Acme Trading",
		"legal_structure": "llc",
	}})

	require.NoError(t, s.SyncApplication(context.Background(), client))
	st := s.Snapshot()
	assert.Equal(t, "app-42", st.ApplicationID)
	assert.Equal(t, 3, st.CurrentStep)
	require.NotNil(t, st.ConversationData)
	assert.Equal(t, "Acme Trading", st.ConversationData.CompanyName)
	assert.Equal(t, LegalStructureLLC, st.ConversationData.LegalEntityType)
}

func TestSyncApplicationWithoutApplication(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.SyncApplication(context.Background(), backend(t, http.StatusNotFound, map[string]string{"error": "not found"})))
	assert.Empty(t, s.Snapshot().ApplicationID)
	assert.Nil(t, s.Snapshot().ConversationData)
}

func TestSyncApplicationFailure(t *testing.T) {
	s := NewStore()
	err := s.SyncApplication(context.Background(), backend(t, http.StatusInternalServerError, map[string]string{"error": "boom"}))
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "boom", apiErr.Message)
}
