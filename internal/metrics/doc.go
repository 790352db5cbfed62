// 版权所有 2024 Crucible Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的工作流指标采集能力，覆盖
阶段、团队、评审、拍卖与剪枝五个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto.With
注册到调用方提供的 Registerer（为 nil 时使用默认 Registry）。所有指标按
namespace 隔离，Collector 的记录方法对 nil 接收者安全，引擎可以不配置指标。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理。

# 主要能力

  - 阶段指标：执行耗时、按 stage/status 计数。
  - 团队指标：执行总数与耗时，按 team/status 分组。
  - 评审指标：按 critic/approved 计数。
  - 拍卖指标：成交价 Gauge。
  - 剪枝指标：新颖度分布与剪枝决策计数。
*/
package metrics
