package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"quiz-race-service/internal/domain"
)

// HTTPGenerator calls an external content-generation endpoint.
// Request:  POST {url} {"text": "..."}
// Response: {"title": "...", "short_description": "...", "materials": [...]}
type HTTPGenerator struct {
	url    string
	client *http.Client
}

func NewHTTPGenerator(url string, timeout time.Duration) *HTTPGenerator {
	return &HTTPGenerator{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Text string `json:"text"`
}

func (g *HTTPGenerator) Generate(ctx context.Context, text string) (domain.GeneratedMaterial, error) {
	body, err := json.Marshal(generateRequest{Text: text})
	if err != nil {
		return domain.GeneratedMaterial{}, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return domain.GeneratedMaterial{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return domain.GeneratedMaterial{}, fmt.Errorf("call generator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.GeneratedMaterial{}, fmt.Errorf("generator returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out domain.GeneratedMaterial
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.GeneratedMaterial{}, fmt.Errorf("decode generator response: %w", err)
	}
	if len(out.Materials) == 0 {
		return domain.GeneratedMaterial{}, fmt.Errorf("generator returned no materials")
	}
	return out, nil
}
