// 版权所有 2024 Crucible Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库连接池管理，供运行记录持久化使用。

# 概述

Open 按 config.DatabaseConfig 选择方言（postgres、mysql，或纯 Go 的
glebarez sqlite），随后由 PoolManager 统一管理连接生命周期、空闲回收与
最大连接数限制。后台健康检查定时探活，Close 时停止。

# 核心类型

  - PoolManager：连接池管理器，提供 DB()、Ping()、Stats()、Close()。
  - PoolConfig：连接池配置及其 Validate。
  - TransactionFunc：事务回调函数类型。

# 事务

WithTransaction 执行单次事务；WithTransactionRetry 对死锁、序列化失败、
sqlite 锁冲突等瞬时错误按指数退避重试。
*/
package database
