package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/divya-pal4/study-assitant-rag/internal/config"
	"github.com/divya-pal4/study-assitant-rag/internal/models"
)

// Generator produces a completion for a single prompt. Calls are synchronous
// and are not retried.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

func NewGenerator(llmConfig *config.LLMConfig) (Generator, error) {
	log.Debug().Interface("llmConfig", map[string]string{
		"provider": llmConfig.Provider,
		"base_url": llmConfig.BaseURL,
		"model":    llmConfig.Model,
	}).Msg("Creating generator")

	switch llmConfig.Provider {
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrModelLoad, err)
		}
		return &LangchainGenerator{llm: llm, temperature: llmConfig.Temperature}, nil
	case config.ProviderOpenAI:
		return NewOpenAIGenerator(llmConfig), nil
	default:
		return nil, fmt.Errorf("%w: unsupported llm provider %q", models.ErrModelLoad, llmConfig.Provider)
	}
}

// LangchainGenerator drives any langchaingo model with a single human message.
type LangchainGenerator struct {
	llm         llms.Model
	temperature float64
}

func NewLangchainGenerator(llm llms.Model, temperature float64) *LangchainGenerator {
	return &LangchainGenerator{llm: llm, temperature: temperature}
}

func (g *LangchainGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	msgContent := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}

	res, err := g.llm.GenerateContent(ctx, msgContent, llms.WithTemperature(g.temperature))
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrModel, err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", models.ErrModel)
	}
	return res.Choices[0].Content, nil
}

// OpenAIGenerator talks to any OpenAI-compatible chat completions endpoint.
type OpenAIGenerator struct {
	client      openai.Client
	model       string
	temperature float64
}

func NewOpenAIGenerator(llmConfig *config.LLMConfig) *OpenAIGenerator {
	client := openai.NewClient(
		option.WithBaseURL(llmConfig.BaseURL),
		option.WithAPIKey(strings.TrimPrefix(llmConfig.APIKey, "Bearer ")),
		option.WithMaxRetries(0),
	)
	return &OpenAIGenerator{
		client:      client,
		model:       llmConfig.Model,
		temperature: llmConfig.Temperature,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	chat, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(g.temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: status %d: %v", models.ErrModel, apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("%w: %v", models.ErrModel, err)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", models.ErrModel)
	}
	return chat.Choices[0].Message.Content, nil
}
