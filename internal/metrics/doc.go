// 版权所有 2024 ResearchHub Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的交接引擎指标采集能力，覆盖
交接（handoff）、执行计划（plan）、推理服务与历史日志四大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，默认使用 promauto
自动注册到全局 Registry，也可以通过 NewCollectorWithRegistry 注入独立
Registry（测试与嵌入场景）。所有指标按 namespace 隔离。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理。nil Collector 上的记录
    方法均为空操作。

# 主要能力

  - 交接指标：执行总数、执行耗时，按 worker/status 分组。
  - 计划指标：执行总数、执行耗时、超时次数，按 strategy/status 分组。
  - 推理指标：请求总数、请求耗时、Token 用量（input/output），按 model 分组。
  - 历史指标：日志条目数 Gauge、历史镜像写入失败计数，按 sink 分组。
*/
package metrics
