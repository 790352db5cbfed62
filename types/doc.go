// Copyright (c) Crucible Authors.
// Licensed under the MIT License.

/*
Package types 提供 Crucible 引擎的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 workflow、agent、llm
等上层模块提供统一的错误码与 context 传播约定。

# 核心类型

  - Error / ErrorCode — 结构化错误体系（CONFIGURATION、TEAM_EXECUTION、
    CRITIC_UNAVAILABLE、PRUNING_INPUT、TIMEOUT 等）
  - AsError / IsErrorCode / IsRetryable — 错误链工具

# Context 传播

  - WithRunID / WithStageID / WithTeamName / WithTraceID
*/
package types
