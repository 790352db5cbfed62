package critic

import (
	"fmt"
	"strings"
)

// Gate merges several critic verdicts into one decision.
type Gate struct {
	// ApprovalThreshold 为 0 时要求全部批准；否则批准比例需不低于该值
	ApprovalThreshold float64
}

// NewGate 创建合并门
func NewGate(approvalThreshold float64) *Gate {
	return &Gate{ApprovalThreshold: approvalThreshold}
}

// Merge concatenates fixes in input order, keeps the highest severity and
// decides approval under the gate's policy. No verdicts means approval.
func (g *Gate) Merge(verdicts []NamedVerdict) Verdict {
	merged := Verdict{Approved: true, Fixes: []string{}}
	if len(verdicts) == 0 {
		merged.Notes = "no critics"
		return merged
	}

	approved := 0
	notes := make([]string, 0, len(verdicts))
	for _, nv := range verdicts {
		v := nv.Verdict
		if v.Approved {
			approved++
		}
		merged.Fixes = append(merged.Fixes, v.Fixes...)
		if v.Score > merged.Score {
			merged.Score = v.Score
		}
		if v.Notes != "" {
			notes = append(notes, fmt.Sprintf("%s: %s", nv.Name, v.Notes))
		}
	}

	threshold := 0.0
	if g != nil {
		threshold = g.ApprovalThreshold
	}
	if threshold <= 0 {
		merged.Approved = approved == len(verdicts)
	} else {
		merged.Approved = float64(approved)/float64(len(verdicts)) >= threshold
	}
	merged.Notes = strings.Join(notes, "; ")
	return merged
}
