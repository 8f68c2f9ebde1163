package reranker

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

func TestScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "query text", req.Query)
		assert.Equal(t, []string{"doc a", "doc b"}, req.Documents)

		json.NewEncoder(w).Encode(&scoreResponse{Scores: []float64{0.9, 0.1}})
	}))
	defer srv.Close()

	c := NewClient(&config.RerankerServiceConfig{Endpoint: srv.URL})
	scores, err := c.Score(context.Background(), "query text", []string{"doc a", "doc b"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.1}, scores)
}

func TestScoreServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(&config.RerankerServiceConfig{Endpoint: srv.URL})
	_, err := c.Score(context.Background(), "q", []string{"d"})
	assert.Error(t, err)
}

func TestScoreEmptyEndpoint(t *testing.T) {
	c := NewClient(&config.RerankerServiceConfig{})
	_, err := c.Score(context.Background(), "q", []string{"d"})
	assert.Error(t, err)
}
