// 版权所有 2024 Crucible Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 embedding 提供统一的文本嵌入（Embedding）接口与实现，
供剪枝评估器计算分支新颖度使用。

# 核心接口

  - Embedder：Embed(ctx, text) 返回固定维度向量。
  - BatchEmbedder：可选的批量扩展，EmbedAll 自动选择。
  - BaseProvider：公共基类，封装 HTTP 请求与错误映射。

# 实现

  - HashingEmbedder：确定性的特征哈希嵌入，离线可用，默认实现。
  - OpenAIProvider：OpenAI 兼容的 /v1/embeddings 接口。
  - CachedEmbedder：基于 Redis 的嵌入缓存装饰器。

# 使用方式

	e, err := embedding.New(embedding.Config{Provider: "hashing", Dimensions: 256})
	vec, err := e.Embed(ctx, "候选方案文本")
*/
package embedding
