package citation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-answer-api/internal/config"
)

func TestResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req resolveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "doc-1", req.DocID)
		assert.Equal(t, "main", req.Bucket)

		json.NewEncoder(w).Encode(&resolveResponse{Link: "https://docs.example.com/doc-1"})
	}))
	defer srv.Close()

	r := NewResolver(&config.CitationServiceConfig{Endpoint: srv.URL}, nil)
	link, err := r.Resolve(context.Background(), "doc-1", "main")
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example.com/doc-1", link)
}

func TestResolveServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewResolver(&config.CitationServiceConfig{Endpoint: srv.URL}, nil)
	_, err := r.Resolve(context.Background(), "doc-1", "")
	assert.Error(t, err)
}

func TestResolveEmptyEndpoint(t *testing.T) {
	r := NewResolver(&config.CitationServiceConfig{}, nil)
	_, err := r.Resolve(context.Background(), "doc-1", "")
	assert.Error(t, err)
}
