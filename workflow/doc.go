// Copyright (c) Crucible Authors.
// Licensed under the MIT License.

/*
Package workflow 提供多团队工作流引擎。

# 概述

Engine 按阶段表逐个执行阶段，每个阶段等待上一阶段的汇合完成后才开始。
默认流水线为：

	competitive_pair → adversary_pair → innovators_disruptors → broadcast_findings → security_quality → DONE

共享上下文只由引擎持有。阶段拿到的是经过隔离过滤的浅拷贝快照，返回的
增量在阶段结束时于唯一写入点合并回上下文。

# 核心接口与类型

  - Team              — 团队接口 Run(ctx, objective, snapshot) (output, error)
  - Binding           — 阶段绑定的团队（Solo / Pair）
  - StageDescriptor   — 阶段描述 {id, kind, pair_mode, isolate_from, dependencies}
  - Engine            — 阶段状态机，Run 返回 WorkflowState
  - JoinN             — 并发运行 N 个团队并汇合，单成员超时与失败互不影响
  - RunOracle         — 二价密封拍卖，稳定排序
  - FilterContext / FilterTeamOutputs — 上下文隔离过滤
  - StatusBoard       — 单写者团队状态表
  - Orchestrator      — 日志与广播协作方
  - RunHistory        — 阶段执行历史

# 错误处理

阶段表或团队注册错误是 CONFIGURATION 错误，在 NewEngine 时立即返回。
团队失败与超时按成员降级：记录占位输出与失败评审结论，兄弟成员的结果照常
传播，WorkflowState.Degraded 置位。

# 团队装饰器

  - RateLimitedTeam — 基于 golang.org/x/time/rate 的调用限流
  - BreakerTeam     — 连续失败熔断
*/
package workflow
