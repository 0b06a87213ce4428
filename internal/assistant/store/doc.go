// Package store 提供助手服务的数据存储层。
//
// 会话、记忆、文件元数据与文档块各自有 MongoDB 与内存两种实现，
// 向量索引有 Milvus 与内存两种实现。
package store
