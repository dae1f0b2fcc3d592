package request

// DocumentListRequest 文档列表请求（query 参数）
type DocumentListRequest struct {
	Skip  int `form:"skip"`  // 偏移量（默认0）
	Limit int `form:"limit"` // 每页数量（默认20，上限100）
}

// DocumentReindexRequest 触发重建索引请求（路径参数携带文档 ID，body 为空）
type DocumentReindexRequest struct{}
