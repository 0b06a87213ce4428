// Package biz 实现助手的上下文组装与记忆检索流水线。
//
// 每条入站消息依次经过：自动附件、事实捕获、分支判定（文档 / 联网搜索 / 记忆），
// 然后以流式方式产出回复，并在结束时保证持久化已产出的内容。
package biz
