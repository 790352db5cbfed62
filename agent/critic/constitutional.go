package critic

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/BaSui01/crucible/types"
)

// Principle is one rule the constitutional critic enforces.
// A match of Pattern against the rendered output is a violation.
type Principle struct {
	Name     string
	Pattern  *regexp.Regexp
	Fix      string
	Severity float64
}

// PrincipleSpec is the configuration form of a Principle.
type PrincipleSpec struct {
	Name     string  `yaml:"name" json:"name"`
	Pattern  string  `yaml:"pattern" json:"pattern"`
	Fix      string  `yaml:"fix" json:"fix"`
	Severity float64 `yaml:"severity" json:"severity"`
}

// CompilePrinciples 编译配置中的原则，模式默认不区分大小写
func CompilePrinciples(specs []PrincipleSpec) ([]Principle, error) {
	out := make([]Principle, 0, len(specs))
	for _, s := range specs {
		re, err := regexp.Compile("(?i)" + s.Pattern)
		if err != nil {
			return nil, fmt.Errorf("principle %q: %w", s.Name, err)
		}
		out = append(out, Principle{Name: s.Name, Pattern: re, Fix: s.Fix, Severity: s.Severity})
	}
	return out, nil
}

// DefaultPrinciples 返回默认原则集合
func DefaultPrinciples() []Principle {
	return []Principle{
		{
			Name:     "no_credentials",
			Pattern:  regexp.MustCompile(`(?i)(api[_-]?key|secret[_-]?key|password)\s*[:=]\s*\S+`),
			Fix:      "remove embedded credentials from the output",
			Severity: 0.9,
		},
		{
			Name:     "no_destructive_commands",
			Pattern:  regexp.MustCompile(`(?i)(rm\s+-rf\s+/|drop\s+database|mkfs\.)`),
			Fix:      "replace destructive commands with a reversible alternative",
			Severity: 0.8,
		},
		{
			Name:     "no_private_keys",
			Pattern:  regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`),
			Fix:      "strip private key material",
			Severity: 1.0,
		},
	}
}

// ConstitutionalCritic checks outputs against a fixed set of principles
// without any external backend.
type ConstitutionalCritic struct {
	principles []Principle
}

// NewConstitutionalCritic 创建宪法评审器，principles 为空时使用默认原则
func NewConstitutionalCritic(principles []Principle) *ConstitutionalCritic {
	if len(principles) == 0 {
		principles = DefaultPrinciples()
	}
	return &ConstitutionalCritic{principles: principles}
}

func (c *ConstitutionalCritic) Name() string { return "constitutional" }

func (c *ConstitutionalCritic) Review(ctx context.Context, output any, _ map[string]any) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}

	text := types.Text(output)
	v := Verdict{Approved: true, Fixes: []string{}}
	var violated []string
	for _, p := range c.principles {
		if !p.Pattern.MatchString(text) {
			continue
		}
		v.Approved = false
		violated = append(violated, p.Name)
		if p.Fix != "" {
			v.Fixes = append(v.Fixes, p.Fix)
		}
		if p.Severity > v.Score {
			v.Score = p.Severity
		}
	}

	if len(violated) == 0 {
		v.Notes = fmt.Sprintf("%d principles satisfied", len(c.principles))
	} else {
		v.Notes = "violated: " + strings.Join(violated, ", ")
	}
	return v, nil
}
