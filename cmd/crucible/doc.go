// Copyright (c) Crucible Authors.
// Licensed under the MIT License.

/*
Package main 提供 Crucible 命令行入口。

# 概述

cmd/crucible 按配置组装工作流引擎、评审面板、剪枝评估器与运行记录存储，
用脚本化的演示团队执行一次运行，并把最终 WorkflowState 以 JSON 输出。

# 主要能力

  - 子命令：run（执行一次运行）、runs（列出已保存的运行）、version
  - 配置：YAML 文件加环境变量覆盖（前缀 CRUCIBLE）
  - 观测：metrics.listen_addr 非空时暴露 /metrics 与 /healthz，
    --wait 保持端点直到收到 SIGINT/SIGTERM
  - 存储：persistence.backend 选择 memory、redis 或 database
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
