package providers

import (
	"fmt"

	"github.com/hagglekit/hagglekit/pkg/config"
)

// CreateProvider builds the chat provider stack from config: the
// configured primary wrapped with any fallback entries.
func CreateProvider(cfg *config.Config) (ChatProvider, error) {
	primary, err := createNamed(cfg, cfg.Assistant.Provider, cfg.Assistant.Model)
	if err != nil {
		return nil, err
	}

	if len(cfg.Assistant.FallbackProviders) == 0 {
		return primary, nil
	}

	var fallbacks []FallbackEntry
	for _, fb := range cfg.Assistant.FallbackProviders {
		p, err := createNamed(cfg, fb.Provider, fb.Model)
		if err != nil {
			return nil, fmt.Errorf("fallback provider %q: %w", fb.Provider, err)
		}
		fallbacks = append(fallbacks, FallbackEntry{Provider: p, Model: fb.Model})
	}

	return NewFallbackProvider(primary, cfg.Assistant.Model, fallbacks), nil
}

func createNamed(cfg *config.Config, name, model string) (ChatProvider, error) {
	pc, defaultBase := cfg.Providers.GetByName(name)
	if pc.APIKey == "" {
		return nil, fmt.Errorf("provider %q has no API key configured", name)
	}
	base := pc.APIBase
	if base == "" {
		base = defaultBase
	}

	switch name {
	case "anthropic":
		return NewAnthropicProvider(pc.APIKey, pc.APIBase, model), nil
	case "openai":
		// The SDK default base is fine unless overridden.
		return NewOpenAIProvider(pc.APIKey, pc.APIBase, model), nil
	default:
		// Anything else is assumed to be an OpenAI-compatible gateway.
		return NewOpenAIProvider(pc.APIKey, base, model), nil
	}
}
