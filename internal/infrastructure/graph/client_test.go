package graph

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-answer-api/internal/application/retrieval"
	"rag-answer-api/internal/config"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tipping points", req.Query)
		assert.Equal(t, []float32{0.1, 0.2}, req.Embedding)
		assert.Equal(t, 5, req.Limit)
		assert.Equal(t, "main", req.Bucket)
		assert.True(t, req.IncludeCommunities)

		json.NewEncoder(w).Encode(&searchResponse{Items: []searchItem{
			{Content: "graph fact one", SimilarityScore: 0.8, DocumentName: "Doc A", DocumentID: "a", Bucket: "main"},
			{Content: "   ", SimilarityScore: 0.7},
			{Content: "graph fact two", SimilarityScore: 0.6, DocumentID: "b"},
		}})
	}))
	defer srv.Close()

	c := NewClient(&config.GraphServiceConfig{
		Endpoint:             srv.URL,
		IncludeCommunities:   true,
		IncludeRelationships: true,
	})

	cands, err := c.Search(context.Background(), &retrieval.GraphQuery{
		Query:  "tipping points",
		Vector: []float32{0.1, 0.2},
		Bucket: "main",
		Limit:  5,
	})
	require.NoError(t, err)

	// 空内容条目被丢弃
	require.Len(t, cands, 2)
	assert.Equal(t, retrieval.SourceGraph, cands[0].Source)
	assert.Equal(t, "graph fact one", cands[0].Text)
	assert.Equal(t, "a", cands[0].DocID)
	assert.Equal(t, "Doc A", cands[0].DocTitle)
	assert.Equal(t, 0.8, cands[0].Score)
	assert.Equal(t, "b", cands[1].DocID)
}

func TestSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(&config.GraphServiceConfig{Endpoint: srv.URL})
	_, err := c.Search(context.Background(), &retrieval.GraphQuery{Query: "q"})
	assert.Error(t, err)
}

func TestSearchEmptyEndpoint(t *testing.T) {
	c := NewClient(&config.GraphServiceConfig{})
	_, err := c.Search(context.Background(), &retrieval.GraphQuery{Query: "q"})
	assert.Error(t, err)
}

func TestSearchContextCancel(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 先读完请求体，服务端才能感知到客户端取消
		_, _ = io.Copy(io.Discard, r.Body)
		close(started)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(&config.GraphServiceConfig{Endpoint: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := c.Search(ctx, &retrieval.GraphQuery{Query: "q"})
	assert.Error(t, err)
}
