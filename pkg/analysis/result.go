package analysis

import "unicode/utf8"

// Sentiment classifies the counterpart's tone in the screenshot.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Level grades price flexibility and urgency.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// Result is the structured outcome of one screenshot analysis. It is
// produced whole and replaced whole on re-analysis, never partially
// mutated. Degraded marks results built from the fallback path because
// the upstream reply could not be parsed into this shape.
type Result struct {
	Sentiment             Sentiment `json:"sentiment"`
	KeyPoints             []string  `json:"key_points"`
	SuggestedResponse     string    `json:"suggested_response"`
	Tips                  []string  `json:"tips"`
	MentionedPrice        string    `json:"mentioned_price,omitempty"`
	PriceFlexibility      Level     `json:"price_flexibility"`
	Urgency               Level     `json:"urgency"`
	CounterpartMotivation string    `json:"counterpart_motivation"`
	Degraded              bool      `json:"degraded"`
}

// maxFallbackResponse bounds how much raw reply text is carried into a
// fallback suggested response.
const maxFallbackResponse = 500

// FallbackResult is the deterministic substitute used when the upstream
// reply has no parseable structure. The raw reply (truncated) becomes
// the suggested response so the user still gets something usable.
func FallbackResult(raw string) *Result {
	return &Result{
		Sentiment:             SentimentNeutral,
		KeyPoints:             []string{"Automatic analysis could not structure this conversation"},
		SuggestedResponse:     truncate(raw, maxFallbackResponse),
		Tips:                  []string{"Re-read the conversation yourself before replying", "Ask an open question to learn the seller's position"},
		PriceFlexibility:      LevelMedium,
		Urgency:               LevelMedium,
		CounterpartMotivation: "unknown",
		Degraded:              true,
	}
}

// Normalize clamps out-of-domain enum values so a Result is always
// internally consistent regardless of what the model emitted.
func (r *Result) Normalize() {
	switch r.Sentiment {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
	default:
		r.Sentiment = SentimentNeutral
	}
	switch r.PriceFlexibility {
	case LevelHigh, LevelMedium, LevelLow:
	default:
		r.PriceFlexibility = LevelMedium
	}
	switch r.Urgency {
	case LevelHigh, LevelMedium, LevelLow:
	default:
		r.Urgency = LevelMedium
	}
	if r.CounterpartMotivation == "" {
		r.CounterpartMotivation = "unknown"
	}
}

// truncate cuts s to at most maxLen bytes on a rune boundary so the
// result stays valid UTF-8.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
