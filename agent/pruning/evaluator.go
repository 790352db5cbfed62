package pruning

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/crucible/llm/embedding"
	"github.com/BaSui01/crucible/types"
)

// Config 剪枝评估配置
type Config struct {
	// Window 参与评估的最近输出条数
	Window int `yaml:"window" json:"window"`
	// Epsilon 防止除零
	Epsilon float64 `yaml:"epsilon" json:"epsilon"`
	// MaxSignatureLength 签名原文截断长度
	MaxSignatureLength int `yaml:"max_signature_length" json:"max_signature_length"`

	// 剪枝阈值：三者同时满足才剪枝
	MinNovelty  float64 `yaml:"min_novelty" json:"min_novelty"`
	MinGrowth   float64 `yaml:"min_growth" json:"min_growth"`
	MaxCostGain float64 `yaml:"max_cost_gain" json:"max_cost_gain"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Window:             5,
		Epsilon:            1e-6,
		MaxSignatureLength: 2048,
		MinNovelty:         0.1,
		MinGrowth:          0,
		MaxCostGain:        30,
	}
}

// Score 单次评估结果，不做持久化
type Score struct {
	Novelty  float64 `json:"novelty"`
	Growth   float64 `json:"growth"`
	CostGain float64 `json:"cost_gain"`
}

// Evaluator 剪枝评估器
type Evaluator struct {
	embedder embedding.Embedder
	config   Config
	logger   *zap.Logger
}

// NewEvaluator 创建评估器；embedder 为 nil 时使用特征哈希嵌入
func NewEvaluator(embedder embedding.Embedder, config Config, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if embedder == nil {
		embedder = embedding.NewHashingEmbedder(0)
	}
	defaults := DefaultConfig()
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.Epsilon <= 0 {
		config.Epsilon = defaults.Epsilon
	}
	if config.MaxSignatureLength <= 0 {
		config.MaxSignatureLength = defaults.MaxSignatureLength
	}
	return &Evaluator{
		embedder: embedder,
		config:   config,
		logger:   logger.With(zap.String("component", "pruning_evaluator")),
	}
}

// Config 返回生效配置
func (e *Evaluator) Config() Config {
	return e.config
}

// Evaluate 计算分支分数。own 为空、增长序列为空或含 NaN/Inf、成本非法时
// 返回 PRUNING_INPUT 错误和零值分数。
func (e *Evaluator) Evaluate(ctx context.Context, own, siblings []string, growthSeries []float64, costMs float64) (Score, error) {
	own = e.window(own)
	siblings = e.window(siblings)

	if len(own) == 0 {
		return Score{}, pruningInputError("own outputs are empty")
	}
	if len(growthSeries) == 0 {
		return Score{}, pruningInputError("growth series is empty")
	}
	for i, g := range growthSeries {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return Score{}, pruningInputError("growth series sample %d is not finite", i)
		}
	}
	if math.IsNaN(costMs) || math.IsInf(costMs, 0) || costMs < 0 {
		return Score{}, pruningInputError("cost %v is invalid", costMs)
	}

	novelty, err := e.novelty(ctx, own, siblings)
	if err != nil {
		return Score{}, err
	}

	growth := Growth(growthSeries)
	return Score{
		Novelty:  novelty,
		Growth:   growth,
		CostGain: CostGain(costMs, growth, e.config.Epsilon),
	}, nil
}

// Score 与 Evaluate 相同，但出错时记录日志并返回零值分数.
func (e *Evaluator) Score(ctx context.Context, own, siblings []string, growthSeries []float64, costMs float64) Score {
	s, err := e.Evaluate(ctx, own, siblings, growthSeries, costMs)
	if err != nil {
		e.logger.Warn("pruning score degraded to zero", zap.Error(err))
		return Score{}
	}
	return s
}

// ShouldPrune 低新颖度、低增长、高成本同时成立时返回 true
func (e *Evaluator) ShouldPrune(s Score) bool {
	return s.Novelty < e.config.MinNovelty &&
		s.Growth <= e.config.MinGrowth &&
		s.CostGain >= e.config.MaxCostGain
}

// Signature 使用评估器的截断长度计算路径签名
func (e *Evaluator) Signature(steps, tools, decisions []string) PathSignature {
	return ComputeSignature(steps, tools, decisions, e.config.MaxSignatureLength)
}

func (e *Evaluator) window(items []string) []string {
	if len(items) > e.config.Window {
		return items[len(items)-e.config.Window:]
	}
	return items
}

func (e *Evaluator) novelty(ctx context.Context, own, siblings []string) (float64, error) {
	ownVec, err := e.embedder.Embed(ctx, strings.Join(own, "\n"))
	if err != nil {
		return 0, fmt.Errorf("embed own outputs: %w", err)
	}

	centroid := ownVec
	if len(siblings) > 0 {
		vecs, err := embedding.EmbedAll(ctx, e.embedder, siblings)
		if err != nil {
			return 0, fmt.Errorf("embed sibling outputs: %w", err)
		}
		centroid = Centroid(vecs)
	}

	return clamp(1-CosineSimilarity(ownVec, centroid), 0, 1), nil
}

// Growth 增长序列首尾之差
func Growth(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	return series[len(series)-1] - series[0]
}

// CostGain 单位增长成本：(cost_ms/1000) / max(eps, growth+eps)
func CostGain(costMs, growth, epsilon float64) float64 {
	return (costMs / 1000.0) / math.Max(epsilon, growth+epsilon)
}

// CosineSimilarity 余弦相似度；维度不一致或零向量返回 0
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Centroid 逐维平均
func Centroid(vecs [][]float64) []float64 {
	if len(vecs) == 0 {
		return nil
	}
	out := make([]float64, len(vecs[0]))
	for _, v := range vecs {
		for i := range out {
			if i < len(v) {
				out[i] += v[i]
			}
		}
	}
	for i := range out {
		out[i] /= float64(len(vecs))
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func pruningInputError(format string, args ...any) *types.Error {
	return types.NewError(types.ErrPruningInput, fmt.Sprintf(format, args...))
}
