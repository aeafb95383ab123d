package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/randalmurphal/code-context/internal/errors"
)

// fakeVoyage serves canned embedding responses.
func fakeVoyage(t *testing.T, dimension int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req voyageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := voyageResponse{}
		for i := range req.Input {
			emb := make([]float32, dimension)
			emb[0] = float32(i) + 1
			resp.Data = append(resp.Data, voyageEmbedding{Embedding: emb, Index: i})
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestVoyageEmbedBatch(t *testing.T) {
	srv := fakeVoyage(t, 1024)
	defer srv.Close()

	client := NewVoyageClient("dummy", "voyage-code-3")
	client.baseURL = srv.URL

	vectors, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	require.Len(t, vectors, 2)
	assert.Equal(t, 1024, vectors[0].Dimension)
	assert.Equal(t, float32(1), vectors[0].Values[0])
	assert.Equal(t, float32(2), vectors[1].Values[0])
}

func TestVoyageEmbedSingle(t *testing.T) {
	srv := fakeVoyage(t, 512)
	defer srv.Close()

	client := NewVoyageClient("dummy", "voyage-4-lite")
	client.baseURL = srv.URL

	v, err := client.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, 512, v.Dimension)
}

func TestVoyageEmbedBatchEmpty(t *testing.T) {
	client := NewVoyageClient("dummy", "voyage-code-3")
	vectors, err := client.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestVoyageInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": []}`)
	}))
	defer srv.Close()

	client := NewVoyageClient("dummy", "voyage-code-3")
	client.baseURL = srv.URL

	_, err := client.Embed(context.Background(), "hello")
	require.Error(t, err)
	require.True(t, cerrors.IsInvalidResponse(err))
	assert.Contains(t, err.Error(), "voyage")
}

func TestVoyageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewVoyageClient("dummy", "voyage-code-3")
	client.baseURL = srv.URL

	_, err := client.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestVoyageDimension(t *testing.T) {
	tests := []struct {
		model    string
		expected int
	}{
		{"voyage-code-3", 1024},
		{"voyage-3-large", 1024},
		{"voyage-4-lite", 512},
		{"voyage-3-lite", 512},
		{"unknown-model", 1024}, // default
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			client := NewVoyageClient("dummy", tt.model)
			assert.Equal(t, tt.expected, client.Dimension())
		})
	}
}

func TestVoyageDetectDimension(t *testing.T) {
	srv := fakeVoyage(t, 256)
	defer srv.Close()

	client := NewVoyageClient("dummy", "voyage-code-3")
	client.baseURL = srv.URL

	dim, err := client.DetectDimension(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 256, dim)
}

func TestVoyageProviderName(t *testing.T) {
	assert.Equal(t, "voyage", NewVoyageClient("k", "").ProviderName())
}
