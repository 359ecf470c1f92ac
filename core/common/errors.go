/*
HomeAdmin - 智能家居插件管理接口

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// core/common/errors.go

package common

import (
	"fmt"
	"log/slog"

	"github.com/samber/oops"
)

// 错误码
const (
	CodeConfigNotFound = "CONFIG_NOT_FOUND"
	CodeSectionExists  = "SECTION_EXISTS"
	CodeSectionMissing = "SECTION_MISSING"
	CodeLegacyConfig   = "LEGACY_CONFIG"
	CodeConfigRead     = "CONFIG_READ"
	CodeConfigWrite    = "CONFIG_WRITE"
	CodeDescriptorRead = "DESCRIPTOR_READ"
	CodeBodyInvalid    = "BODY_INVALID"
)

// ErrorCode 返回错误携带的错误码，无错误码时返回空字符串
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok || oopsErr.Code() == nil {
		return ""
	}
	return fmt.Sprint(oopsErr.Code())
}

// HasCode 判断错误是否携带指定错误码
func HasCode(err error, code string) bool {
	return code != "" && ErrorCode(err) == code
}

// LogError 记录错误，oops错误会附带错误码和上下文
func LogError(logger *slog.Logger, msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{
			"error", oopsErr.Error(),
		}
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
		logger.Error(msg, attrs...)
	} else {
		logger.Error(msg, "error", err)
	}
}
