package aiservice

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicService backs the Service interface with the Anthropic
// Messages API.
type anthropicService struct {
	client anthropic.Client
	model  string
}

const defaultAnthropicModel = string(anthropic.ModelClaudeSonnet4_0)

// Cost per million tokens in hundredths of a cent, input/output.
// Approximate; used only for metrics, never billing.
var anthropicPricing = pricing{input: 30000, output: 150000}

func newAnthropic(cfg Config) *anthropicService {
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	return &anthropicService{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  model,
	}
}

func (s *anthropicService) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, Usage, error) {
	model := s.model
	if opts.Model != "" {
		model = opts.Model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if opts.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.System}}
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}

	msg, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return "", Usage{}, fmt.Errorf("anthropic: %w", err)
	}

	usage := Usage{
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}
	usage.CostCents = anthropicPricing.cost(usage)

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", usage, ErrEmptyResponse
	}
	return text, usage, nil
}

func (s *anthropicService) Analyze(ctx context.Context, content string, opts AnalyzeOptions) (Analysis, Usage, error) {
	return analyzeViaGenerate(ctx, s, content, opts)
}
