package workflow

import (
	"math"
	"sort"
)

// Candidate 密封拍卖的一个报价
type Candidate struct {
	Agent   string  `json:"agent"`
	Bid     float64 `json:"bid"`
	Content any     `json:"content"`
}

// OracleMetrics 拍卖统计
type OracleMetrics struct {
	CandidateCount int     `json:"candidate_count"`
	AverageBid     float64 `json:"average_bid"`
}

// OracleResult 拍卖结果，记录在 team_outputs["oracle_result"]
type OracleResult struct {
	Winner  string        `json:"winner"`
	Price   float64       `json:"price"`
	Content any           `json:"content"`
	Bids    []Candidate   `json:"bids"`
	Metrics OracleMetrics `json:"metrics"`
}

// RunOracle 二价密封拍卖：出价最高者胜出，成交价为第二高出价，
// 只有一个候选时为 0。出价相同按输入顺序（稳定排序）。
// NaN 或无穷出价按 0 处理。没有候选时返回 nil。
func RunOracle(candidates []Candidate) *OracleResult {
	if len(candidates) == 0 {
		return nil
	}

	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		ranked[i].Bid = finiteBid(ranked[i].Bid)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Bid > ranked[j].Bid
	})

	var total float64
	for _, c := range ranked {
		total += c.Bid
	}

	result := &OracleResult{
		Winner:  ranked[0].Agent,
		Content: ranked[0].Content,
		Bids:    ranked,
		Metrics: OracleMetrics{
			CandidateCount: len(candidates),
			AverageBid:     total / float64(len(candidates)),
		},
	}
	if len(ranked) > 1 {
		result.Price = ranked[1].Bid
	}
	return result
}

// CandidateFromOutput 从团队输出中提取报价.
// 出价依次取 bid、confidence、score 字段，内容取 content 或 solution，
// 都没有时整个输出作为内容、出价为 0。
func CandidateFromOutput(agent string, output any) Candidate {
	c := Candidate{Agent: agent, Content: output}

	m, ok := output.(map[string]any)
	if !ok {
		return c
	}
	for _, key := range []string{"bid", "confidence", "score"} {
		if bid, ok := toFloat(m[key]); ok {
			c.Bid = finiteBid(bid)
			break
		}
	}
	for _, key := range []string{"content", "solution"} {
		if v, ok := m[key]; ok {
			c.Content = v
			break
		}
	}
	return c
}

func finiteBid(bid float64) float64 {
	if math.IsNaN(bid) || math.IsInf(bid, 0) {
		return 0
	}
	return bid
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
