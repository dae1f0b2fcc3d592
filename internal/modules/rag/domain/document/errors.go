package document

import "errors"

// 流水线各阶段的哨兵错误。IngestPipeline 用它们把底层失败归类成
// 文档上可读的 error_message；QueryPipeline 用 ErrGeneration 标注
// 降级原因；ErrConfiguration 标注启动期的装配失败。
var (
	// ErrExtraction 文件不可读或没有可提取的文本
	ErrExtraction = errors.New("extraction failed")
	// ErrEmbedding 向量化调用失败或超时
	ErrEmbedding = errors.New("embedding failed")
	// ErrVectorStore 向量库写入/检索/删除失败（含维度不匹配）
	ErrVectorStore = errors.New("vector store failed")
	// ErrGeneration 生成模型调用失败或超时
	ErrGeneration = errors.New("generation failed")
	// ErrConfiguration 配置错误（启动期致命，不做请求级恢复）
	ErrConfiguration = errors.New("configuration error")

	// ErrDocumentNotFound 文档不存在或不属于当前用户
	ErrDocumentNotFound = errors.New("document not found")
	// ErrDocumentBusy 文档已有一个进行中的索引任务
	ErrDocumentBusy = errors.New("document ingestion already in progress")
)
