package aiservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// pricing holds per-million-token rates in hundredths of a cent.
type pricing struct {
	input  int64
	output int64
}

func (p pricing) cost(u Usage) int64 {
	return (u.InputTokens*p.input + u.OutputTokens*p.output) / 1_000_000
}

// analyzeViaGenerate runs Analyze over a provider's generation
// endpoint. The model is asked for the Analysis JSON shape; if the
// reply is not valid JSON the raw text becomes the summary rather than
// failing the call.
func analyzeViaGenerate(ctx context.Context, s Service, content string, opts AnalyzeOptions) (Analysis, Usage, error) {
	prompt := content
	if opts.Task != "" {
		prompt = fmt.Sprintf("Task: %s\n\n%s", opts.Task, content)
	}

	text, usage, err := s.Generate(ctx, prompt, GenerateOptions{
		Model:  opts.Model,
		System: analysisSystemPrompt,
	})
	if err != nil {
		return Analysis{}, usage, err
	}

	return parseAnalysis(text), usage, nil
}

func parseAnalysis(text string) Analysis {
	// Models sometimes wrap JSON in a fenced block.
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	if !gjson.Valid(trimmed) {
		return Analysis{Summary: text}
	}

	parsed := gjson.Parse(trimmed)
	summary := parsed.Get("summary").String()
	if summary == "" {
		return Analysis{Summary: text}
	}

	a := Analysis{Summary: summary}
	for _, f := range parsed.Get("findings").Array() {
		a.Findings = append(a.Findings, Finding{
			Severity: f.Get("severity").String(),
			Message:  f.Get("message").String(),
			Location: f.Get("location").String(),
		})
	}
	return a
}
