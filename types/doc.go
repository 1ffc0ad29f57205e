// Copyright (c) ResearchHub Authors.
// Licensed under the MIT License.

/*
Package types 提供 ResearchHub 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 agent、llm、config 等
上层模块提供统一的错误契约，以避免循环依赖。

# 核心类型

  - Error / ErrorCode：结构化错误体系，含 Retryable 标记与 Cause 链

# 主要能力

  - 交接引擎错误码：PLAN_VALIDATION / PLAN_TIMEOUT / PLAN_CANCELLED /
    UNKNOWN_WORKER / WORKER_FAILED / WORKER_PANIC
  - 推理服务错误码：UPSTREAM_ERROR / UPSTREAM_TIMEOUT / RATE_LIMITED 等
  - 错误工具链：AsError / IsErrorCode / IsRetryable / GetErrorCode
*/
package types
