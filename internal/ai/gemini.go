package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GeminiClient talks to the Google Generative Language API over plain HTTP.
type GeminiClient struct {
	http    *http.Client
	apiKey  string
	baseURL string
}

// NewGeminiClient builds a client for the given endpoint. Credentials are
// passed in explicitly; this package never reads the environment.
func NewGeminiClient(apiKey, baseURL string, timeout time.Duration) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("missing API key")
	}
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &GeminiClient{
		http:    &http.Client{Timeout: timeout},
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (c *GeminiClient) Name() string { return "gemini" }

type gmPart struct {
	Text string `json:"text"`
}

type gmContent struct {
	Role  string   `json:"role,omitempty"`
	Parts []gmPart `json:"parts"`
}

type gmGenerationConfig struct {
	ResponseMIMEType string `json:"response_mime_type,omitempty"`
}

type gmReq struct {
	Contents         []gmContent         `json:"contents"`
	GenerationConfig *gmGenerationConfig `json:"generationConfig,omitempty"`
}

type gmResp struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate sends one generateContent call and returns the joined candidate
// text. HTTP 429 is mapped to ErrRateLimited with the upstream body preserved
// in the message so callers can read server-suggested wait hints out of it.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (Response, error) {
	payload := gmReq{
		Contents: []gmContent{{Role: "user", Parts: []gmPart{{Text: req.Prompt}}}},
	}
	if req.JSONResponse {
		payload.GenerationConfig = &gmGenerationConfig{ResponseMIMEType: "application/json"}
	}

	body, err := json.Marshal(&payload)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(req.Model), url.QueryEscape(c.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return Response{}, fmt.Errorf("gemini 429: %s: %w", strings.TrimSpace(string(slurp)), ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return Response{}, fmt.Errorf("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(slurp)))
	}

	var r gmResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if len(r.Candidates) == 0 {
		return Response{}, errors.New("no candidates in response")
	}

	var parts []string
	for _, p := range r.Candidates[0].Content.Parts {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	if len(parts) == 0 {
		return Response{}, errors.New("empty candidate content")
	}
	return Response{Text: strings.Join(parts, "\n")}, nil
}

type gmModelsResp struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the model names the API key can use, without the
// "models/" prefix.
func (c *GeminiClient) ListModels(ctx context.Context) ([]string, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models?key=%s", c.baseURL, url.QueryEscape(c.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gemini status %d", resp.StatusCode)
	}
	var r gmModelsResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(r.Models))
	for _, m := range r.Models {
		names = append(names, strings.TrimPrefix(m.Name, "models/"))
	}
	return names, nil
}
