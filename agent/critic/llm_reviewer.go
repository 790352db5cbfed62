package critic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"
)

// Completer is the minimal text-completion surface an LLM reviewer needs.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LLMReviewerConfig LLM 评审后端配置
type LLMReviewerConfig struct {
	PromptTemplate string        `json:"prompt_template"`
	Timeout        time.Duration `json:"timeout"`
	// MaxContextKeys 限制写入提示词的上下文键数量
	MaxContextKeys int `json:"max_context_keys"`
}

// DefaultReviewPromptTemplate 默认评审提示模板
const DefaultReviewPromptTemplate = `You are acting as the {{.RoleName}} reviewer of a multi-team workflow.
{{if eq .Role "red_team"}}Look for weaknesses, exploitable assumptions and failure modes in the output.{{else}}Check whether the output defends against known risks and is safe to adopt.{{end}}

## Context keys
{{range .ContextKeys}}- {{.}}
{{end}}
## Output under review
{{.Output}}

## Output Format
Respond with a JSON object:
{
  "approved": <bool>,
  "fixes": ["<string>"],
  "score": <severity between 0 and 1>,
  "notes": "<string>"
}`

// DefaultLLMReviewerConfig 返回默认配置
func DefaultLLMReviewerConfig() LLMReviewerConfig {
	return LLMReviewerConfig{
		PromptTemplate: DefaultReviewPromptTemplate,
		Timeout:        60 * time.Second,
		MaxContextKeys: 32,
	}
}

// LLMReviewer implements Reviewer on top of a Completer.
type LLMReviewer struct {
	completer Completer
	config    LLMReviewerConfig
	tmpl      *template.Template
	logger    *zap.Logger
}

// NewLLMReviewer 创建 LLM 评审后端
func NewLLMReviewer(completer Completer, config LLMReviewerConfig, logger *zap.Logger) (*LLMReviewer, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.PromptTemplate == "" {
		config.PromptTemplate = DefaultReviewPromptTemplate
	}
	if config.MaxContextKeys <= 0 {
		config.MaxContextKeys = DefaultLLMReviewerConfig().MaxContextKeys
	}

	tmpl, err := template.New("review").Parse(config.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	return &LLMReviewer{
		completer: completer,
		config:    config,
		tmpl:      tmpl,
		logger:    logger.With(zap.String("component", "llm_reviewer")),
	}, nil
}

// Review renders the role prompt, calls the completer and parses its verdict.
func (r *LLMReviewer) Review(ctx context.Context, req ReviewRequest) (*Verdict, error) {
	prompt, err := r.buildPrompt(req)
	if err != nil {
		return nil, err
	}

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	content, err := r.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	v, err := parseVerdict(content)
	if err != nil {
		r.logger.Warn("unparseable review response",
			zap.String("role", string(req.Role)),
			zap.Error(err),
		)
		return nil, err
	}
	return v, nil
}

func (r *LLMReviewer) buildPrompt(req ReviewRequest) (string, error) {
	keys := make([]string, 0, len(req.Snapshot))
	for k := range req.Snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > r.config.MaxContextKeys {
		keys = keys[:r.config.MaxContextKeys]
	}

	data := struct {
		Role        string
		RoleName    string
		ContextKeys []string
		Output      string
	}{
		Role:        string(req.Role),
		RoleName:    strings.ReplaceAll(string(req.Role), "_", " "),
		ContextKeys: keys,
		Output:      req.Output,
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}

// parseVerdict extracts the first JSON object from content.
func parseVerdict(content string) (*Verdict, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var raw struct {
		Approved *bool    `json:"approved"`
		Fixes    []string `json:"fixes"`
		Score    float64  `json:"score"`
		Notes    string   `json:"notes"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if raw.Approved == nil {
		return nil, fmt.Errorf("verdict is missing the approved field")
	}

	v := &Verdict{
		Approved: *raw.Approved,
		Fixes:    raw.Fixes,
		Score:    clamp(raw.Score, 0, 1),
		Notes:    raw.Notes,
	}
	if v.Fixes == nil {
		v.Fixes = []string{}
	}
	return v, nil
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
