package aiservice

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openaiService backs the Service interface with the OpenAI chat
// completions API.
type openaiService struct {
	client openai.Client
	model  string
}

const defaultOpenAIModel = string(openai.ChatModelGPT4o)

var openaiPricing = pricing{input: 25000, output: 100000}

func newOpenAI(cfg Config) *openaiService {
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &openaiService{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  model,
	}
}

func (s *openaiService) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, Usage, error) {
	model := s.model
	if opts.Model != "" {
		model = opts.Model
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if opts.System != "" {
		messages = append(messages, openai.SystemMessage(opts.System))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(opts.MaxTokens)
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}

	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", Usage{}, fmt.Errorf("openai: %w", err)
	}

	usage := Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	usage.CostCents = openaiPricing.cost(usage)

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", usage, ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, usage, nil
}

func (s *openaiService) Analyze(ctx context.Context, content string, opts AnalyzeOptions) (Analysis, Usage, error) {
	return analyzeViaGenerate(ctx, s, content, opts)
}
