// Copyright (c) ResearchHub Authors.
// Licensed under the MIT License.

/*
Package main 提供 ResearchHub 命令行入口。

# 概述

cmd/researchhub 把配置、日志、遥测、指标、历史镜像、推理客户端与交接引擎
装配在一起，并通过子命令对外提供：

  - ask       通过编排器处理自然语言请求（分析 → 计划 → 执行 → 合成）
  - research  运行预置研究工作流（web → analyzer → summary）
  - run       执行 YAML 计划文件，条件计划可用 --min-confidence 设置阈值
  - version   显示版本信息
  - help      显示帮助

运行期间若配置了 metrics.listen_addr，会额外启动 /metrics 监听。
构建时可通过 ldflags 注入 Version、BuildTime、GitCommit。
*/
package main
