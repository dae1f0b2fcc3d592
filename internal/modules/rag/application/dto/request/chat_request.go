package request

// ChatQueryRequest 文档问答请求
type ChatQueryRequest struct {
	Query          string  `json:"query" binding:"required"` // 用户问题（必填）
	TopK           int     `json:"top_k"`                    // 召回条数（默认走配置）
	Temperature    float32 `json:"temperature"`              // 生成温度（0-2，默认0.7）
	IncludeSources bool    `json:"include_sources"`          // 是否返回来源引用
}

// ChatHistoryRequest 会话历史请求（query 参数）
type ChatHistoryRequest struct {
	Skip  int `form:"skip"`
	Limit int `form:"limit"`
}
