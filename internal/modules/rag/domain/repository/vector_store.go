package repository

import "context"

// VectorStore 是 domain 层定义的"向量库能力抽象"。
//
// 设计约束：
// 1) application / infrastructure/pipeline 只依赖本接口，不直接依赖 Milvus SDK。
// 2) namespace（= 文档 owner_id）是硬隔离边界：任何按 namespace U 的查询
//    都不得返回其他 namespace 写入的向量，实现必须在过滤条件里强制携带。
// 3) Upsert 幂等：相同 ID 重复写入是覆盖；DeleteByIDs 删除不存在的 ID 不报错。

// VectorRecord 向量写入所需的标准字段
type VectorRecord struct {
	ID         string
	Vector     []float32
	DocumentID string
	Filename   string
	Position   int
	Content    string
}

// VectorHit 相似度检索命中，Score 为余弦相似度（[-1, 1]，越大越相似）
type VectorHit struct {
	ID         string
	Score      float32
	DocumentID string
	Filename   string
	Position   int
	Content    string
}

// VectorStore 向量数据库接口（Upsert/Query/Delete，全部按 namespace 分区）
type VectorStore interface {
	Upsert(ctx context.Context, namespace string, records []VectorRecord) error
	// Query 返回按 Score 降序排列、且 Score >= minScore 的至多 topK 条命中；
	// 满足阈值的不足 topK 条时返回更少，不补齐。
	Query(ctx context.Context, namespace string, vector []float32, topK int, minScore float32) ([]VectorHit, error)
	DeleteByIDs(ctx context.Context, namespace string, ids []string) error
}
