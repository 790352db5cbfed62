// Copyright (c) Crucible Authors.
// Licensed under the MIT License.

/*
包 cache 提供基于 Redis 的缓存管理能力，供嵌入缓存与路径签名注册表使用。

# 核心类型

  - Manager：持有 go-redis 客户端，提供 Get/Set/SetNX/Delete/Exists
    以及 GetJSON/SetJSON 便捷序列化方法，并在后台定时健康检查。
  - Config：地址、密码、键前缀、默认 TTL 与健康检查间隔。

# 错误语义

  - ErrCacheMiss / IsCacheMiss：键不存在
  - ErrClosed：管理器已关闭
*/
package cache
