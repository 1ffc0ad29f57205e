// 版权所有 2024 ResearchHub Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 orchestrator 位于交接引擎之上，把自然语言请求转换为执行计划并汇总结果。

# 流程

	Process: Analyze → PlanFor → Coordinator.ExecutePlan → 失败重试 → 合成回答

各阶段行为：

  - Analyze 请推理服务输出 JSON 工作流；推理失败、JSON 无法解析或工作流为空时，
    退化为单步 qa_agent 计划。未知 Worker 名称会被丢弃并记录警告。
  - 失败重试按指数退避重新派发未被中断的失败交接（llm/retry）；超时或取消的
    交接不会重试；链式与条件计划在失败处即停止，整体不重试。
  - 合成阶段再次调用推理服务；失败时退化为各成功结果的拼接文本。

# 预置工作流

  - ResearchWorkflow: web_researcher → document_analyzer → summary_generator
  - QAWorkflow: （可选 document_analyzer）→ qa_agent

Orchestrator 同时维护有上限的对话记录，见 Conversation / ClearConversation。
*/
package orchestrator
