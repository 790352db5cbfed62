// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 Crucible 工作流引擎提供 TracerProvider 和 MeterProvider。
// 引擎的 workflow.run / workflow.stage span 通过全局 TracerProvider 导出。
// 当遥测功能禁用时，使用 noop 实现，不连接任何外部服务。
package telemetry
