// Copyright (c) Crucible Authors.
// Licensed under the MIT License.

/*
Package pruning 提供分支剪枝评估能力，用于判断某条探索分支是否值得继续。

# 概述

评估器综合三个指标：

  - Novelty：分支最近输出与兄弟分支输出质心的余弦距离，取值 [0,1]。
  - Growth：增长序列首尾之差，样本不足两个时为 0。
  - CostGain：单位增长的耗时成本（秒 / 增长）。

三者同时满足"低新颖度、低增长、高成本"时 ShouldPrune 返回 true。

# 路径签名

ComputeSignature 将步骤、工具与关键决策按顺序拼接、截断后做 SHA-256，
得到对顺序敏感的确定性指纹。SignatureRegistry 记录出现过的签名以及
被惩罚（剪枝）的签名，提供内存与 Redis 两种实现。

# 错误处理

输入为空或非法时 Evaluate 返回 PRUNING_INPUT 错误和零值分数；
Score 方法吞掉该错误，仅记录日志，适合在工作流引擎中直接调用。
*/
package pruning
