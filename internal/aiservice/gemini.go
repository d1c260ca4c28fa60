package aiservice

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// geminiService backs the Service interface with the Gemini API.
type geminiService struct {
	client *genai.Client
	model  string
}

const defaultGeminiModel = "gemini-1.5-pro"

var geminiPricing = pricing{input: 12500, output: 50000}

func newGemini(ctx context.Context, cfg Config) (*geminiService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &geminiService{client: client, model: model}, nil
}

func (s *geminiService) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, Usage, error) {
	name := s.model
	if opts.Model != "" {
		name = opts.Model
	}

	model := s.client.GenerativeModel(name)
	if opts.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(opts.System)}}
	}
	if opts.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		model.SetTemperature(float32(opts.Temperature))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", Usage{}, fmt.Errorf("gemini: %w", err)
	}

	var usage Usage
	if resp.UsageMetadata != nil {
		usage.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	usage.CostCents = geminiPricing.cost(usage)

	var text string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text += string(t)
			}
		}
	}
	if text == "" {
		return "", usage, ErrEmptyResponse
	}
	return text, usage, nil
}

func (s *geminiService) Analyze(ctx context.Context, content string, opts AnalyzeOptions) (Analysis, Usage, error) {
	return analyzeViaGenerate(ctx, s, content, opts)
}

// Close releases the underlying client connection.
func (s *geminiService) Close() error {
	return s.client.Close()
}
