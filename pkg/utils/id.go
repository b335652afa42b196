package utils

import (
	"fmt"

	"crowdvote/pkg/apperror"

	"github.com/google/uuid"
)

// ParseID 校验路径或请求里的资源 ID，返回规范形式。
// 主键都是 uuid，格式不合法的 ID 对应的记录不存在
func ParseID(raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apperror.NotFound(fmt.Sprintf("no record with id %q", raw))
	}
	return id.String(), nil
}
