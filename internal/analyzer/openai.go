package analyzer

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const systemPrompt = "You are an impact assessment expert for changes to production AI systems. " +
	"Answer with JSON only."

// OpenAIConfig OpenAI 兼容接口配置
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
}

// openAIAnalyzer 通过 Chat Completions 接口完成影响分析
type openAIAnalyzer struct {
	client      openai.Client
	model       string
	temperature float64
}

// NewOpenAIAnalyzer 创建 OpenAI 分析器
func NewOpenAIAnalyzer(cfg OpenAIConfig) Analyzer {
	var client openai.Client
	if cfg.BaseURL != "" {
		client = openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
			option.WithMaxRetries(0),
		)
	} else {
		client = openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithMaxRetries(0),
		)
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &openAIAnalyzer{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
	}
}

// Analyze 实现 Analyzer 接口
func (a *openAIAnalyzer) Analyze(ctx context.Context, summary ChangeSummary) (*StructuredAssessment, error) {
	response, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(summary.Prompt()),
		},
		Temperature: openai.Float(a.temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get analyzer response: %w", err)
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response from analyzer")
	}

	return ParseStructured(response.Choices[0].Message.Content)
}
