// 版权所有 2024 Crucible Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供观测端点的 HTTP 服务器生命周期管理。

# 概述

Manager 封装 net/http.Server，负责非阻塞启动、优雅关闭与系统信号监听。
NewHandler 构建 /metrics（Prometheus）与 /healthz（依赖健康检查）两个端点，
由命令行在配置了 metrics.listen_addr 时启动。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道，
    提供 Start/Shutdown/WaitForShutdown。
  - Config：监听地址、读写超时、空闲超时与优雅关闭超时。
  - HealthCheck：命名的依赖检查，任一失败时 /healthz 返回 503。
*/
package server
