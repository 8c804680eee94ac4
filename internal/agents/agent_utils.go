package agents

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/dyike/CortexTrade/config"
)

const deepSeekBaseURL = "https://api.deepseek.com/v1"

// NewChatModel builds the text-completion model shared by every persona and
// the query path.
func NewChatModel(ctx context.Context, cfg config.Config) (model.ChatModel, error) {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}

	switch cfg.LLMProvider {
	case "deepseek":
		cm, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    cfg.DeepSeekAPIKey,
			Model:     modelOr(cfg.LLMModel, "deepseek-chat"),
			MaxTokens: maxTokens,
			Timeout:   cfg.LLMTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create deepseek model: %w", err)
		}
		return cm, nil
	case "openai", "":
		apiKey := cfg.OpenAIAPIKey
		baseURL := cfg.BackendURL
		// an OpenAI compatible endpoint with only a DeepSeek key talks to DeepSeek
		if apiKey == "" && cfg.DeepSeekAPIKey != "" {
			apiKey = cfg.DeepSeekAPIKey
			if baseURL == "" {
				baseURL = deepSeekBaseURL
			}
		}
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   baseURL,
			APIKey:    apiKey,
			Model:     modelOr(cfg.LLMModel, "gpt-4o-mini"),
			MaxTokens: &maxTokens,
			Timeout:   cfg.LLMTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		return cm, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}

func modelOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
