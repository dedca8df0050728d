package models

import "errors"

var (
	// ErrDocumentNotFound 文档不存在错误
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidDocumentStatus 无效的文档状态错误
	ErrInvalidDocumentStatus = errors.New("invalid document status")

	// ErrIndexNotBuilt 索引尚未构建错误
	// 与"索引为空"不同，这表示调用方在Build之前发起了查询
	ErrIndexNotBuilt = errors.New("index not built")

	// ErrInvalidConfig 配置无效错误
	// 在配置加载阶段即返回，不允许进入构建或查询流程
	ErrInvalidConfig = errors.New("invalid configuration")
)
