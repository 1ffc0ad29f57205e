// 版权所有 2024 ResearchHub Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供 Worker 与编排器共用的推理服务接入层。

# 核心接口

  - [Reasoner]：单轮推理接口，输入系统提示词与用户提示词，返回文本与 token 用量
  - [AnthropicReasoner]：基于 anthropic-sdk-go 的实现，HTTP 错误映射为 types.Error
    并按可重试语义交给 llm/retry 做指数退避
  - [RateLimited]：基于 golang.org/x/time/rate 的客户端限流装饰器
  - [Instrumented]：记录 Prometheus 指标与 OpenTelemetry span 的装饰器

装饰器可以自由组合：

	var r llm.Reasoner = anthropicReasoner
	r = llm.NewRateLimited(r, 2, 4, logger)
	r = llm.NewInstrumented(r, collector, "claude-sonnet-4-5")
*/
package llm
