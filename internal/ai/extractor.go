package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"text/template"

	"github.com/amishk599/statejobs/internal/model"
)

const (
	maxBullets     = 3
	maxBulletWords = 10
	maxListItems   = 5
)

var codeFence = regexp.MustCompile("(?s)```(?:\\w+)?\\s*\\n(.*?)```")

// LLMExtractor implements model.Extractor using an LLM.
type LLMExtractor struct {
	provider LLMProvider
	tmpl     *template.Template
	logger   *slog.Logger
}

// NewLLMExtractor creates an extractor that renders tmpl with the posting text.
func NewLLMExtractor(provider LLMProvider, tmpl *template.Template, logger *slog.Logger) *LLMExtractor {
	return &LLMExtractor{
		provider: provider,
		tmpl:     tmpl,
		logger:   logger,
	}
}

// Extract returns the structured fields for text. A response that is not
// valid JSON yields an empty Extraction and no error; provider failures are
// returned so the record is retried next cycle.
func (e *LLMExtractor) Extract(ctx context.Context, text string) (model.Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return model.Extraction{}, nil
	}

	var promptBuf bytes.Buffer
	if err := e.tmpl.Execute(&promptBuf, struct{ Text string }{Text: text}); err != nil {
		return model.Extraction{}, fmt.Errorf("render prompt: %w", err)
	}

	raw, err := e.provider.Complete(ctx, promptBuf.String())
	if err != nil {
		return model.Extraction{}, fmt.Errorf("llm complete: %w", err)
	}

	var out model.Extraction
	if err := json.Unmarshal([]byte(stripCodeBlock(raw)), &out); err != nil {
		if e.logger != nil {
			e.logger.Warn("discarding unparseable extraction", "error", err)
		}
		return model.Extraction{}, nil
	}
	return normalize(out), nil
}

// stripCodeBlock replaces ```lang ... ``` fences with their content.
func stripCodeBlock(text string) string {
	return strings.TrimSpace(codeFence.ReplaceAllString(text, "$1"))
}

func normalize(e model.Extraction) model.Extraction {
	e.SemanticJobTitle = strings.TrimSpace(e.SemanticJobTitle)

	bullets := clean(e.BulletPoints, maxBullets)
	for i, b := range bullets {
		if words := strings.Fields(b); len(words) > maxBulletWords {
			bullets[i] = strings.Join(words[:maxBulletWords], " ")
		}
	}
	e.BulletPoints = bullets
	e.MinQualifications = clean(e.MinQualifications, maxListItems)
	e.PrefQualifications = clean(e.PrefQualifications, maxListItems)
	e.Duties = clean(e.Duties, maxListItems)
	return e
}

// clean trims items, drops blanks and keeps at most limit.
func clean(items []string, limit int) []string {
	out := make([]string, 0, min(len(items), limit))
	for _, item := range items {
		if len(out) == limit {
			break
		}
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
