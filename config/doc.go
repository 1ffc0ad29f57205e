// Package config 提供 ResearchHub 的配置管理功能。
//
// 配置来源按优先级依次为：默认值、YAML 文件、环境变量（默认前缀 RESEARCHHUB）。
// 环境变量名由各层 env 标签拼接而成，例如
// RESEARCHHUB_COORDINATOR_DEFAULT_TIMEOUT=90s。
package config
