package document

import (
	"time"
)

// 文档生命周期状态。状态机由 IngestPipeline 独占驱动：
// pending → processing → indexed | failed；failed/indexed 可被重建（reindex）重置为 processing。
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusIndexed    = "indexed"
	StatusFailed     = "failed"
)

// Document 用户上传的文档记录，状态字段是前端轮询的唯一事实来源。
//
// 不变式：ChunkCount > 0 仅当 Status == indexed；ErrorMessage 非空当且仅当 Status == failed。
type Document struct {
	Id           string    `gorm:"column:id;type:char(36);primaryKey" json:"id"`
	OwnerId      string    `gorm:"column:owner_id;type:char(36);not null;index:idx_document_owner" json:"owner_id"`
	Filename     string    `gorm:"column:filename;type:varchar(255);not null" json:"filename"`
	ByteSize     int64     `gorm:"column:byte_size;not null" json:"byte_size"`
	Status       string    `gorm:"column:status;type:varchar(20);not null;index:idx_document_status" json:"status"`
	ChunkCount   int       `gorm:"column:chunk_count;type:int;not null;default:0" json:"chunk_count"`
	ErrorMessage string    `gorm:"column:error_message;type:varchar(255)" json:"error_message,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at;type:datetime;not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;type:datetime;not null" json:"updated_at"`
}

func (Document) TableName() string { return "document" }

// ChatMessage 问答会话日志。Sources 里只记录实际进入上下文的引用。
type ChatMessage struct {
	Id          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OwnerId     string    `gorm:"column:owner_id;type:char(36);not null;index:idx_chat_message_owner" json:"owner_id"`
	Role        string    `gorm:"column:role;type:varchar(10);not null" json:"role"`
	Content     string    `gorm:"column:content;type:mediumtext" json:"content"`
	SourcesJson string    `gorm:"column:sources_json;type:json" json:"-"`
	CreatedAt   time.Time `gorm:"column:created_at;type:datetime;not null" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_message" }

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
