package respond

import "time"

// DocumentRespond 文档记录响应
type DocumentRespond struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	ByteSize     int64     `json:"byte_size"`
	Status       string    `json:"status"`        // pending/processing/indexed/failed
	ChunkCount   int       `json:"chunk_count"`   // 仅 indexed 状态大于 0
	ErrorMessage string    `json:"error_message"` // 仅 failed 状态非空
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DocumentListRespond 文档列表响应
type DocumentListRespond struct {
	Documents []DocumentRespond `json:"documents"`
	Total     int64             `json:"total"`
	Skip      int               `json:"skip"`
	Limit     int               `json:"limit"`
}

// DocumentUploadRespond 上传响应：返回文档 ID 供前端轮询状态
type DocumentUploadRespond struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
}
