// 版权所有 2024 ResearchHub Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理 CLI 运行期间的辅助 HTTP 监听（Prometheus /metrics 与 /healthz）。

# 概述

Manager 封装 net/http.Server：Start 非阻塞地监听并服务，异步错误经 Errors()
传出，Shutdown 在 ShutdownTimeout 内优雅关闭。信号处理由调用方负责
（cmd/researchhub 使用 signal.NotifyContext）。

# 使用方式

	m := server.NewMetricsManager(cfg.Metrics.ListenAddr, collector.Handler(), logger)
	if err := m.Start(); err != nil { ... }
	defer m.Shutdown(context.Background())
*/
package server
