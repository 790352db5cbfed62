// Copyright (c) Crucible Authors.
// Licensed under the MIT License.

/*
Package critic 提供对抗阶段输出的评审与裁决合并（CriticPanel / Gate）。

# 概述

critic 将团队输出交给零个或多个可插拔评审器审查，再由 Gate 合并为
单一裁决。评审器是封闭的变体集合，统一实现 Critic 接口：

  - ConstitutionalCritic — 本地正则原则检查，无需外部后端
  - RedTeamCritic        — 以攻击者视角调用 Reviewer 后端
  - BlueTeamCritic       — 以防守者视角调用 Reviewer 后端
  - NullCritic           — 未配置后端时的降级实现，始终批准且分数为 0

# 合并策略

Gate.Merge 拼接所有 fixes，取最大严重度作为分数；ApprovalThreshold 为 0
时要求全部批准，否则要求批准比例不低于阈值。

# 后端

LLMReviewer 将角色提示词（text/template）发送给 Completer，并从回复中
解析 JSON 裁决。
*/
package critic
