package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	geminiAPIURLTemplate = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s"
)

const geminiSystemPrompt = `You are an assistant for a registered investment advisor.
Given a security being sold to harvest a tax loss, suggest replacement securities
that preserve similar market exposure but are NOT substantially identical to the
sold security under the IRS wash-sale rule (no other share classes of the same
fund, no funds tracking the identical index).

Respond with ONLY a JSON array, no prose, where each element is:
{"symbol": "...", "name": "...", "reason": "...", "exposure": "...",
 "estimated_correlation": 0.0, "wash_sale_safe": true}`

// GeminiProvider implements Provider using Google's Gemini API
type GeminiProvider struct {
	config  *ProviderConfig
	client  *http.Client
	logger  *zap.Logger
	tracer  trace.Tracer
	limiter *rate.Limiter
}

// NewGeminiProvider creates a new Gemini suggestion provider
func NewGeminiProvider(config *ProviderConfig, logger *zap.Logger) *GeminiProvider {
	rps := float64(config.RateLimitRPM) / 60.0
	limiter := rate.NewLimiter(rate.Limit(rps), 1)

	return &GeminiProvider{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		logger:  logger,
		tracer:  otel.Tracer("gemini-advisory"),
		limiter: limiter,
	}
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Suggest asks Gemini for replacement candidates for the sold security.
func (p *GeminiProvider) Suggest(ctx context.Context, req *SuggestionRequest) ([]Candidate, error) {
	ctx, span := p.tracer.Start(ctx, "gemini.suggest", trace.WithAttributes(
		attribute.String("symbol", req.Symbol),
	))
	defer span.End()

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	prompt := fmt.Sprintf(
		"Sold security: %s (%s). Harvested loss: $%s. Suggest up to %d replacements.",
		req.Symbol, req.SecurityName, req.LossAmount.StringFixed(2), req.MaxResults,
	)

	body := geminiRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: geminiSystemPrompt}},
		},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens: p.config.MaxTokens,
			Temperature:     p.config.Temperature,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf(geminiAPIURLTemplate, p.config.Model, p.config.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	text := geminiResp.text()
	candidates, err := parseCandidates(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse candidates: %w", err)
	}

	p.logger.Debug("gemini suggestions received",
		zap.String("symbol", req.Symbol),
		zap.Int("candidates", len(candidates)),
		zap.Duration("duration", time.Since(start)),
	)

	return candidates, nil
}

// parseCandidates extracts the JSON array from the model output, tolerating
// markdown code fences around it.
func parseCandidates(text string) ([]Candidate, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array in model output")
	}

	var candidates []Candidate
	if err := json.Unmarshal([]byte(text[start:end+1]), &candidates); err != nil {
		return nil, err
	}

	return candidates, nil
}

// Gemini wire types

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (r *geminiResponse) text() string {
	var sb strings.Builder
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}
