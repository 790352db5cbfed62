// Package config 提供 Crucible 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 CRUCIBLE）的顺序叠加，
// 覆盖引擎阶段表、评审、剪枝、嵌入、Redis、数据库、日志、指标与遥测。
package config
