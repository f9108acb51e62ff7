// Package analysis turns marketplace-chat screenshots into a structured
// negotiation read. The heavy lifting happens in a hosted multimodal
// model; this package builds the request, then does best-effort recovery
// of the JSON shape the model was asked for, falling back to a
// deterministic degraded result when the reply cannot be structured.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hagglekit/hagglekit/pkg/config"
	"github.com/hagglekit/hagglekit/pkg/errdefs"
	"github.com/hagglekit/hagglekit/pkg/logger"
)

const extractPrompt = `You are analyzing a screenshot of a %s marketplace chat between a buyer and a seller.

Read the conversation in the image and respond with ONLY a JSON object in exactly this shape:
{
  "sentiment": "positive" | "neutral" | "negative",
  "key_points": ["..."],
  "suggested_response": "a short reply the buyer can send next",
  "tips": ["..."],
  "mentioned_price": "any price mentioned by the seller, empty if none",
  "price_flexibility": "high" | "medium" | "low",
  "urgency": "high" | "medium" | "low",
  "counterpart_motivation": "one sentence on what the seller seems to want"
}

Rules:
- Base everything only on what is visible in the screenshot
- Keep key_points and tips to at most 4 short items each
- Return ONLY valid JSON, no explanations`

// Extractor analyzes screenshots through a hosted multimodal model.
type Extractor struct {
	client *genai.Client
	cfg    config.AnalysisConfig
}

func NewExtractor(ctx context.Context, apiKey string, cfg config.AnalysisConfig) (*Extractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("analysis provider has no API key configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating multimodal client: %w", err)
	}
	return &Extractor{client: client, cfg: cfg}, nil
}

// Extract sends the image upstream and parses the reply into a Result.
// A reply that cannot be structured yields the deterministic fallback
// with Degraded set, not an error; only upstream failures error out.
func (e *Extractor) Extract(ctx context.Context, imageBytes []byte, mimeType, category string) (*Result, error) {
	if category == "" {
		category = "general"
	}

	prompt := fmt.Sprintf(extractPrompt, category)
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(imageBytes, mimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	temp := float32(e.cfg.Temperature)
	resp, err := e.client.Models.GenerateContent(ctx, e.cfg.Model, contents, &genai.GenerateContentConfig{
		Temperature:      &temp,
		MaxOutputTokens:  int32(e.cfg.MaxTokens),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, errdefs.Transport("gemini", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errdefs.Parse("analysis response", fmt.Errorf("empty response"))
	}

	raw := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			raw += part.Text
		}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errdefs.Parse("analysis response", fmt.Errorf("no text parts in response"))
	}

	result := ParseReply(raw)
	if result.Degraded {
		logger.WarnCF("analysis", "Reply could not be structured, using fallback",
			map[string]interface{}{"reply_len": len(raw)})
	}
	return result, nil
}

// ParseReply recovers a Result from the model's free-text reply. Stages:
// raw unmarshal, code-fence strip, first balanced object, truncation
// repair. When everything fails the deterministic fallback carries the
// raw reply as the suggested response.
func ParseReply(raw string) *Result {
	base := []string{
		raw,
		stripCodeFence(raw),
		firstJSONObject(raw),
		firstJSONObject(stripCodeFence(raw)),
	}
	candidates := append([]string{}, base...)
	for _, c := range base {
		candidates = append(candidates, repairTruncated(c))
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		var r Result
		if err := json.Unmarshal([]byte(c), &r); err != nil {
			continue
		}
		if r.SuggestedResponse == "" && r.Sentiment == "" {
			// A parseable object with none of the required fields is
			// no better than prose.
			continue
		}
		r.Degraded = false
		r.Normalize()
		return &r
	}

	return FallbackResult(raw)
}
