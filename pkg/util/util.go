package util

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID 生成标准 v4 UUID，文档 ID 和令牌主体标识都用它
func GenerateUUID() string {
	return uuid.New().String()
}

// GenerateShortUUID 去掉中划线的紧凑形式，适合拼进文件名等不便带分隔符的场景
func GenerateShortUUID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
