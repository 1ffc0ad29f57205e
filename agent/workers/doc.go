// 版权所有 2024 ResearchHub Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 workers 提供五个基于 llm.Reasoner 的研究型 Worker 实现。

# 概述

每个 Worker 实现 handoff.Worker：根据任务文本与上下文构造提示词，
以各自的系统提示词与最大 token 数调用推理服务，并返回结构化结果
map{"agent", "result", "status": "completed", ...}。推理失败时返回失败结果，
错误码保存在 Metadata["error_code"]。

# Worker 列表

  - WebResearcher: 任务即查询
  - DocumentAnalyzer: 上下文 content / analysis_type（默认 general）
  - SummaryGenerator: 上下文 content / summary_type（默认 standard）/ length（默认 medium）
  - QAAgent: 任务即问题，可选 context / conversation_history
  - CitationManager: 上下文 source_info / citation_style（默认 APA）

链式执行时上游结果通过 previous_result 注入；当 content 缺失时，
分析与摘要 Worker 会直接使用上游结果作为输入内容。

# 使用方式

	roster, err := workers.NewRoster(reasoner, cfg.Workers, logger)
	coord, err := handoff.NewCoordinator(roster)
*/
package workers
