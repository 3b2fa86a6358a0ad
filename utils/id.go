package utils

import (
	"github.com/google/uuid"
)

// GenerateID 生成请求唯一的文件名前缀
func GenerateID() string {
	return uuid.NewString()
}
