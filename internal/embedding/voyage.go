package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	cerrors "github.com/randalmurphal/code-context/internal/errors"
)

const voyageAPIURL = "https://api.voyageai.com/v1/embeddings"

// VoyageClient generates embeddings via the Voyage AI API.
type VoyageClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewVoyageClient creates a Voyage embedding client.
func NewVoyageClient(apiKey, model string) *VoyageClient {
	if model == "" {
		model = "voyage-code-3"
	}
	return &VoyageClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: voyageAPIURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type voyageRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

type voyageResponse struct {
	Data  []voyageEmbedding `json:"data"`
	Usage voyageUsage       `json:"usage"`
}

type voyageEmbedding struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type voyageUsage struct {
	TotalTokens int `json:"total_tokens"`
}

// Embed generates the embedding for a single text.
func (c *VoyageClient) Embed(ctx context.Context, text string) (Vector, error) {
	vectors, err := c.embed(ctx, []string{text})
	if err != nil {
		return Vector{}, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds the texts in API-sized sub-batches, preserving order.
func (c *VoyageClient) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	const apiBatchSize = 128
	var all []Vector
	for i := 0; i < len(texts); i += apiBatchSize {
		end := i + apiBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := c.embed(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d failed: %w", i, end, err)
		}
		all = append(all, vectors...)
	}
	return all, nil
}

func (c *VoyageClient) embed(ctx context.Context, texts []string) ([]Vector, error) {
	reqBody := voyageRequest{
		Input:     texts,
		Model:     c.model,
		InputType: "document",
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var voyageResp voyageResponse
	if err := json.Unmarshal(body, &voyageResp); err != nil {
		return nil, cerrors.NewInvalidResponse(c.ProviderName(), err)
	}
	if len(voyageResp.Data) != len(texts) {
		return nil, cerrors.NewInvalidResponse(c.ProviderName(),
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(voyageResp.Data)))
	}

	// Order by index so output matches input.
	vectors := make([]Vector, len(texts))
	for _, emb := range voyageResp.Data {
		if emb.Index < 0 || emb.Index >= len(texts) || len(emb.Embedding) == 0 {
			return nil, cerrors.NewInvalidResponse(c.ProviderName(),
				fmt.Errorf("embedding %d missing or out of range", emb.Index))
		}
		vectors[emb.Index] = Vector{Values: emb.Embedding, Dimension: len(emb.Embedding)}
	}
	return vectors, nil
}

// Dimension returns the vector dimension for the configured model.
func (c *VoyageClient) Dimension() int {
	switch c.model {
	case "voyage-4-lite", "voyage-3-lite":
		return 512
	default:
		return 1024
	}
}

// DetectDimension embeds a probe string and reports the produced dimension.
func (c *VoyageClient) DetectDimension(ctx context.Context) (int, error) {
	v, err := c.Embed(ctx, "dimension probe")
	if err != nil {
		return 0, err
	}
	return v.Dimension, nil
}

// ProviderName identifies this embedder in errors and logs.
func (c *VoyageClient) ProviderName() string {
	return "voyage"
}
