// Package api 暴露证明任务的 REST 接口：提交任务、查询状态与统计，以及列出可用程序及其验证密钥。
package api
