// 版权所有 2024 Crucible Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 persistence 提供工作流运行结果的持久化存储。

# 概述

引擎运行结束后得到一份 WorkflowState。本包把它转换为 RunRecord，
按运行 ID 保存，供进程退出后查询与回放。状态、是否降级、失败数与
Oracle 胜者被拷贝为独立列，完整状态以 JSON 文档保存在 State 字段。

# 核心接口

  - Store: 所有存储的基础接口，提供 Close 和 Ping 健康检查。
    Close 不会关闭共享连接，连接由创建方负责关闭。
  - RunStore: 运行记录存储，支持保存、查询、过滤分页列表、删除与按保留期清理。

# 后端实现

  - Memory: 内存实现，适合开发与测试，重启后数据丢失。
  - Redis: 复用 cache.Manager 的连接，记录为 JSON 字符串，
    以更新时间为分数的 Sorted Set 作为索引，记录按保留期过期。
  - Database: 基于 GORM，支持 postgres、mysql 与纯 Go sqlite，
    启动时 AutoMigrate 建表，写入走带重试的事务。

# 使用方式

	store, err := persistence.NewRunStore(ctx, cfg.Persistence, persistence.Backends{
		Cache: cacheManager,
		Pool:  pool,
	}, logger)
	rec, err := persistence.NewRunRecord(state)
	err = store.SaveRun(ctx, rec)
*/
package persistence
