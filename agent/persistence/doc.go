// 版权所有 2024 ResearchHub Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 persistence 提供交接历史的外部镜像（审计导出）实现。

# 概述

Coordinator 的内存历史是唯一权威记录；本包中的 Sink 仅把每条
HistoryEntry 经后台写入协程按序镜像到外部存储，便于审计与离线分析。镜像失败只会被
记录日志和指标，不会影响交接结果，也不会改变内存历史的大小。

# 后端实现

  - RedisHistorySink: 以 JSON 追加到 Redis 列表（RPUSH），可选 LTRIM 限制长度。
  - SQLHistorySink: 通过 GORM 写入关系表，支持 postgres / mysql / sqlite。

# 使用方式

	sink, closer, err := persistence.NewHistorySink(cfg, logger)
	coord, err := handoff.NewCoordinator(workers, handoff.WithHistorySink(sink))
	defer closer.Close()
	defer coord.Close() // 先刷出待写条目，再关闭 Sink
*/
package persistence
