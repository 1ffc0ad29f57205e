// 版权所有 2024 ResearchHub Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 handoff 提供多 Worker 之间的任务交接编排引擎。

# 概述

handoff 解决的核心问题是：给定一份声明式的执行计划（Plan），如何把其中
的每一次交接（Handoff）按照选定策略调度到对应的 Worker 上执行，同时管理
并发、传递上下文与中间结果、执行计划级超时、记录执行历史，并在个别
Worker 失败时依然产出确定、可检查的结果。

# 核心模型

本包围绕以下类型展开：

  - WorkerID：封闭的 Worker 身份枚举（web_researcher、document_analyzer、
    summary_generator、qa_agent、citation_manager）
  - Handoff：一次交接请求，构造后不可变，包含目标 Worker、任务、上下文、
    优先级（仅作记录）与可选元数据
  - Outcome：一次交接的执行结果，Success 为 true 时 Error 为空，
    否则 Result 为空且 Error 非空
  - Plan：执行计划，包含策略、交接列表、是否合并并行结果与计划级超时
  - Worker：统一的能力接口 Execute(ctx, task, input) Outcome
  - Coordinator：编排引擎，持有 Worker 注册表与进程级历史日志

# 执行策略

  - sequential：逐个执行，失败不中断，按输入顺序返回全部结果
  - parallel：全部并发执行并等待（join），结果按输入顺序返回，可选合并视图
  - conditional：逐个执行，调用方提供的谓词返回 false 时提前结束
  - chain：逐个执行，上一步成功结果写入下一步上下文 previous_result，
    任一步失败立即返回该失败结果

# 超时与取消

计划级超时通过 context 传递给所有在途 Worker。无法及时响应取消的 Worker
会被放弃，其迟到的结果被丢弃；未完成的交接以带 timeout 元数据的失败
Outcome 表示。

# 历史日志

每一次实际派发的交接都会以 (Handoff, Outcome, 时间戳) 的形式追加到
Coordinator 自有的历史日志中；日志只读访问、可显式清空，并可通过
HistorySink 镜像到 Redis 或数据库作为审计记录。
*/
package handoff
