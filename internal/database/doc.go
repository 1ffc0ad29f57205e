// 版权所有 2024 ResearchHub Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库接入与连接池管理，
为执行历史的数据库镜像（agent/persistence.SQLHistorySink）提供存储。

# 核心类型

  - Open：按 config.DatabaseConfig 的 driver 选择 postgres、mysql 或
    sqlite（glebarez，纯 Go 实现）方言并打开 *gorm.DB。
  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB()、Ping()、
    Stats()、Close() 与事务辅助方法，后台定时探活。
  - PoolConfig：连接池参数，可由 PoolConfigFrom 从数据库配置转换。

# 事务

WithTransaction 执行单次事务；WithTransactionRetry 对死锁、序列化失败、
连接中断等瞬时错误按 llm/retry 的指数退避策略重试。
*/
package database
