package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"text/template"
)

// mockProvider is a stub LLMProvider for testing.
type mockProvider struct {
	response string
	err      error
	prompts  []string
}

func (m *mockProvider) Complete(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.response, m.err
}

func newTestExtractor(provider LLMProvider) *LLMExtractor {
	tmpl := template.Must(template.New("test").Parse("text: {{.Text}}"))
	return NewLLMExtractor(provider, tmpl, nil)
}

func TestExtract_SkipsEmptyText(t *testing.T) {
	provider := &mockProvider{}
	got, err := newTestExtractor(provider).Extract(context.Background(), "   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsEmpty() {
		t.Errorf("expected empty extraction, got %+v", got)
	}
	if len(provider.prompts) != 0 {
		t.Error("provider should not be called for empty text")
	}
}

func TestExtract_ParsesFencedJSON(t *testing.T) {
	response := "```json\n" + `{
		"semanticJobTitle": " Registered Nurse ",
		"threeBulletPointsDescription": ["Provide care", "Work nights", "Join a team"],
		"minQualifications": ["RN license"],
		"prefQualifications": [],
		"duties": ["Administer medication"]
	}` + "\n```"
	provider := &mockProvider{response: response}

	got, err := newTestExtractor(provider).Extract(context.Background(), "Nurse 1 posting")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SemanticJobTitle != "Registered Nurse" {
		t.Errorf("SemanticJobTitle = %q", got.SemanticJobTitle)
	}
	if len(got.BulletPoints) != 3 || got.BulletPoints[0] != "Provide care" {
		t.Errorf("BulletPoints = %v", got.BulletPoints)
	}
	if len(got.MinQualifications) != 1 || len(got.Duties) != 1 {
		t.Errorf("unexpected lists: %+v", got)
	}
	if provider.prompts[0] != "text: Nurse 1 posting" {
		t.Errorf("prompt = %q", provider.prompts[0])
	}
}

func TestExtract_MalformedJSONYieldsEmpty(t *testing.T) {
	provider := &mockProvider{response: "Sorry, I cannot help with that."}

	got, err := newTestExtractor(provider).Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("malformed output should not be an error, got %v", err)
	}
	if !got.IsEmpty() {
		t.Errorf("expected empty extraction, got %+v", got)
	}
}

func TestExtract_ProviderErrorPropagates(t *testing.T) {
	provider := &mockProvider{err: errors.New("network error")}

	if _, err := newTestExtractor(provider).Extract(context.Background(), "text"); err == nil {
		t.Fatal("expected error from provider failure")
	}
}

func TestNormalize_CapsBulletsAndLists(t *testing.T) {
	provider := &mockProvider{response: `{
		"threeBulletPointsDescription": ["one two three four five six seven eight nine ten eleven twelve", "", "b", "c", "d"],
		"duties": ["1","2","3","4","5","6","7"]
	}`}

	got, err := newTestExtractor(provider).Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.BulletPoints) != 3 {
		t.Fatalf("expected 3 bullets, got %v", got.BulletPoints)
	}
	if n := len(strings.Fields(got.BulletPoints[0])); n != 10 {
		t.Errorf("first bullet has %d words, want 10", n)
	}
	if got.BulletPoints[1] != "b" {
		t.Errorf("blank bullets should be dropped, got %v", got.BulletPoints)
	}
	if len(got.Duties) != 5 {
		t.Errorf("expected 5 duties, got %d", len(got.Duties))
	}
}

func TestStripCodeBlock(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{}\n```", "{}"},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripCodeBlock(tt.in); got != tt.want {
			t.Errorf("stripCodeBlock(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractJobTemplateRenders(t *testing.T) {
	var b strings.Builder
	if err := ExtractJobTemplate.Execute(&b, struct{ Text string }{Text: "Duties: file things"}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(b.String(), "Duties: file things") || !strings.Contains(b.String(), "semanticJobTitle") {
		t.Error("rendered prompt is missing the text or the field list")
	}
}
