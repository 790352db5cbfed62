package embedding

import "context"

// Embedder 将文本映射为固定维度的向量.
// 同一个 Embedder 的所有调用返回相同维度.
type Embedder interface {
	// Embed 为单段文本生成嵌入.
	Embed(ctx context.Context, text string) ([]float64, error)

	// Name 返回提供者名称.
	Name() string

	// Dimensions 返回嵌入维度.
	Dimensions() int
}

// BatchEmbedder 是支持批量请求的可选扩展.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// EmbedAll 批量嵌入；提供者支持批量时走一次请求，否则逐条调用.
func EmbedAll(ctx context.Context, e Embedder, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	if b, ok := e.(BatchEmbedder); ok {
		return b.EmbedBatch(ctx, texts)
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
