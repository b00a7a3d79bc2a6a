package ai

import (
	_ "embed"
	"text/template"
)

//go:embed prompts/extract_job.md
var extractJobPromptRaw string

// ExtractJobTemplate is the parsed prompt template for posting extraction.
// Parsed once at package init; reused on every Extract call.
var ExtractJobTemplate = template.Must(template.New("extract_job").Parse(extractJobPromptRaw))
